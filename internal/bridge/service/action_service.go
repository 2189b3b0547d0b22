package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ledger-rail-bridge/internal/bridge/decision"
	"github.com/ledger-rail-bridge/internal/bridge/lock"
	"github.com/ledger-rail-bridge/internal/domain/entry"
	"github.com/ledger-rail-bridge/internal/domain/outcome"
	"github.com/ledger-rail-bridge/internal/domain/shared"
	"github.com/ledger-rail-bridge/internal/metrics"
	"github.com/ledger-rail-bridge/internal/platform/messaging/producers"
)

// ActionServiceImpl implements the ActionService interface
type ActionServiceImpl struct {
	side      shared.Side
	repo      entry.Repository
	locker    lock.Locker
	binding   decision.Binding
	processor ActionProcessor
	notifier  LedgerNotifier
	executor  Executor
	outcomes  producers.OutcomePublisher // nil when the audit trail is off
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

func NewActionService(
	side shared.Side,
	repo entry.Repository,
	locker lock.Locker,
	binding decision.Binding,
	processor ActionProcessor,
	notifier LedgerNotifier,
	executor Executor,
	outcomes producers.OutcomePublisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) ActionService {
	return &ActionServiceImpl{
		side:      side,
		repo:      repo,
		locker:    locker,
		binding:   binding,
		processor: processor,
		notifier:  notifier,
		executor:  executor,
		outcomes:  outcomes,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *ActionServiceImpl) Submit(ctx context.Context, cmd Command) error {
	if !cmd.Action.Valid() {
		return fmt.Errorf("unknown action %q", cmd.Action)
	}
	if cmd.Handle == "" {
		return errors.New("handle is required")
	}

	detached := context.WithoutCancel(ctx)
	return s.executor.Submit(func() {
		if _, err := s.Execute(detached, cmd); err != nil && !errors.Is(err, entry.ErrEntryNotFound{}) {
			s.commandLogger(cmd).Error("Action pipeline failed", "error", err)
		}
	})
}

func (s *ActionServiceImpl) Execute(ctx context.Context, cmd Command) (*entry.Entry, error) {
	logger := s.commandLogger(cmd)

	unlock, err := s.locker.Lock(ctx, cmd.Handle)
	if err != nil {
		return nil, fmt.Errorf("failed to lock handle %s: %w", cmd.Handle, err)
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("Failed to release handle lock", "error", err)
		}
	}()

	e, err := s.loadEntry(ctx, cmd)
	if err != nil {
		if errors.Is(err, entry.ErrEntryNotFound{}) {
			logger.Warn("Entry not found")
		}
		return nil, err
	}

	from := e.State
	e.Begin(cmd.Action, cmd.Hash, cmd.Data, cmd.Meta)
	e.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, e); err != nil {
		return nil, fmt.Errorf("failed to stamp %s as processing: %w", cmd.Action, err)
	}
	logger.Info("State transition", "from", from, "to", e.State)

	accepted := s.binding.For(cmd.Action).Decide(ctx, s.decisionRequest(e, cmd))
	s.metrics.ObserveDecision(string(cmd.Action), accepted)
	logger.Info("Decision made", "accepted", accepted)

	e, err = s.processor.Apply(ctx, e, cmd.Action, accepted)
	if err != nil {
		return nil, err
	}

	state := e.Record(cmd.Action).State
	s.metrics.ObserveAction(string(cmd.Action), string(state))

	result := s.notifier.Notify(ctx, e, cmd.Action, state)
	logger.Debug("Ledger notification finished", "state", state, "result", result)
	s.publishOutcome(ctx, e, cmd.Action, logger)

	return e, nil
}

func (s *ActionServiceImpl) GetEntry(ctx context.Context, handle string) (*entry.Entry, error) {
	return s.repo.Get(ctx, handle)
}

// loadEntry returns the entry the command acts on. Prepare creates it on
// first sight; commit and abort require it.
func (s *ActionServiceImpl) loadEntry(ctx context.Context, cmd Command) (*entry.Entry, error) {
	e, err := s.repo.Get(ctx, cmd.Handle)
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, entry.ErrEntryNotFound{}) || cmd.Action != entry.ActionPrepare {
		return nil, err
	}

	e = entry.New(entry.Seed{
		Handle: cmd.Handle,
		Hash:   cmd.Hash,
		Data:   cmd.Data,
		Meta:   cmd.Meta,
	}, s.now().UTC())

	err = s.repo.Create(ctx, e)
	switch {
	case err == nil:
		s.commandLogger(cmd).Info("Entry created")
		return e, nil
	case errors.Is(err, entry.ErrDuplicateHandle{}):
		// Created by another instance between Get and Create
		return s.repo.Get(ctx, cmd.Handle)
	default:
		return nil, fmt.Errorf("failed to create entry: %w", err)
	}
}

// decisionRequest prefers display fields of the stored entry over those of
// the request payload.
func (s *ActionServiceImpl) decisionRequest(e *entry.Entry, cmd Command) decision.Request {
	stored, err := entry.ParseTransfer(e.Data)
	if err != nil {
		s.logger.Debug("Stored entry data is not a transfer", "handle", e.Handle, "error", err)
	}
	requested, err := entry.ParseTransfer(cmd.Data)
	if err != nil {
		s.logger.Debug("Request data is not a transfer", "handle", e.Handle, "error", err)
	}

	return decision.Request{
		Side:     s.side,
		Action:   cmd.Action,
		Handle:   cmd.Handle,
		Entry:    e.Clone(),
		Transfer: stored.Or(requested),
	}
}

func (s *ActionServiceImpl) publishOutcome(ctx context.Context, e *entry.Entry, action entry.Action, logger *slog.Logger) {
	if s.outcomes == nil {
		return
	}
	if err := s.outcomes.PublishOutcome(ctx, outcome.NewEvent(s.side, e, action, s.now())); err != nil {
		logger.Error("Failed to publish action outcome", "error", err)
	}
}

func (s *ActionServiceImpl) commandLogger(cmd Command) *slog.Logger {
	logger := s.logger.With("side", s.side, "handle", cmd.Handle, "action", cmd.Action)
	if cmd.CorrelationID != "" {
		logger = logger.With("correlation_id", cmd.CorrelationID)
	}
	return logger
}
