package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ledger-rail-bridge/internal/domain/intent"
)

// IntentServiceImpl implements the IntentService interface
type IntentServiceImpl struct {
	repo     intent.Repository
	executor Executor
	logger   *slog.Logger
	now      func() time.Time
}

func NewIntentService(repo intent.Repository, executor Executor, logger *slog.Logger) IntentService {
	return &IntentServiceImpl{
		repo:     repo,
		executor: executor,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *IntentServiceImpl) Submit(ctx context.Context, handle string, payload json.RawMessage) error {
	in, err := intent.FromPayload(handle, payload, s.now().UTC())
	if err != nil {
		return fmt.Errorf("invalid intent payload: %w", err)
	}

	detached := context.WithoutCancel(ctx)
	return s.executor.Submit(func() {
		s.logger.Info("Intent update received", "handle", in.Handle, "status", in.Status)
		if err := s.repo.Upsert(detached, in); err != nil {
			s.logger.Error("Failed to store intent", "handle", in.Handle, "error", err)
		}
	})
}

func (s *IntentServiceImpl) Get(ctx context.Context, handle string) (*intent.Intent, error) {
	return s.repo.Get(ctx, handle)
}
