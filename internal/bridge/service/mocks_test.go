package service

import (
	"context"

	"github.com/ledger-rail-bridge/internal/domain/entry"
	"github.com/stretchr/testify/mock"
)

type MockActionProcessor struct {
	mock.Mock
}

func (m *MockActionProcessor) Apply(ctx context.Context, e *entry.Entry, action entry.Action, accepted bool) (*entry.Entry, error) {
	args := m.Called(ctx, e, action, accepted)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entry.Entry), args.Error(1)
}

type MockLedgerNotifier struct {
	mock.Mock
}

func (m *MockLedgerNotifier) Notify(ctx context.Context, e *entry.Entry, action entry.Action, notifyStates ...entry.State) string {
	args := m.Called(ctx, e, action, notifyStates)
	return args.String(0)
}
