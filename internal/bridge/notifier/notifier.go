// Package notifier reports terminal action outcomes to the ledger.
package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/ledger-rail-bridge/internal/domain/entry"
	"github.com/ledger-rail-bridge/internal/domain/outcome"
	"github.com/ledger-rail-bridge/internal/domain/shared"
	"github.com/ledger-rail-bridge/internal/metrics"
	"github.com/ledger-rail-bridge/internal/platform/ledger"
	"github.com/ledger-rail-bridge/internal/platform/messaging/producers"
)

// MomentLayout is the millisecond UTC timestamp format of report moments
const MomentLayout = "2006-01-02T15:04:05.000Z"

// Transport signs and sends a report against an intent reference
type Transport interface {
	Send(ctx context.Context, intentRef json.RawMessage, custom any) (*ledger.Response, error)
}

// Report is the custom payload attached to the ledger proof
type Report struct {
	Handle string      `json:"handle"`
	Status entry.State `json:"status"`
	Moment string      `json:"moment"`
	Reason string      `json:"reason,omitempty"`
	Detail string      `json:"detail,omitempty"`
	FailID string      `json:"failId,omitempty"`
	CoreID string      `json:"coreId,omitempty"`
}

// Notifier dispatches reports with the signing identity of one side
type Notifier struct {
	side       shared.Side
	transport  Transport
	deadLetter producers.DeadLetterPublisher
	metrics    *metrics.Metrics
	logger     *slog.Logger
	now        func() time.Time
}

type Option func(*Notifier)

// WithDeadLetter records failed dispatches on publisher
func WithDeadLetter(publisher producers.DeadLetterPublisher) Option {
	return func(n *Notifier) {
		n.deadLetter = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(n *Notifier) {
		n.metrics = m
	}
}

// WithClock overrides the time source of report moments
func WithClock(now func() time.Time) Option {
	return func(n *Notifier) {
		n.now = now
	}
}

func New(logger *slog.Logger, side shared.Side, transport Transport, opts ...Option) *Notifier {
	n := &Notifier{
		side:      side,
		transport: transport,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify reports the record of action on e when its state is one of
// notifyStates. It never fails: skips and dispatch errors are logged and
// returned as a result label.
func (n *Notifier) Notify(ctx context.Context, e *entry.Entry, action entry.Action, notifyStates ...entry.State) string {
	result := n.notify(ctx, e, action, notifyStates)
	n.metrics.ObserveNotification(string(action), result)
	return result
}

func (n *Notifier) notify(ctx context.Context, e *entry.Entry, action entry.Action, notifyStates []entry.State) string {
	record := e.Record(action)
	if record == nil || !slices.Contains(notifyStates, record.State) {
		var state entry.State
		if record != nil {
			state = record.State
		}
		n.logger.Warn("Skipping ledger notification",
			"handle", e.Handle,
			"action", action,
			"state", state,
			"notify_states", notifyStates,
		)
		return metrics.NotificationSkipped
	}

	transfer, err := entry.ParseTransfer(e.Data)
	if err != nil || !transfer.HasIntent() {
		n.logger.Error("Missing intent data", "handle", e.Handle, "action", action, "error", err)
		return metrics.NotificationSkipped
	}

	report := BuildReport(e.Handle, record, n.now())
	n.logger.Info("Notifying ledger",
		"handle", e.Handle,
		"action", action,
		"status", report.Status,
	)

	start := time.Now()
	_, err = n.transport.Send(ctx, transfer.Intent, report)
	n.metrics.ObserveDispatch(time.Since(start), err)
	if err != nil {
		n.dispatchFailed(ctx, e.Handle, action, report, err)
		return metrics.NotificationFailed
	}

	n.logger.Info("Ledger notified", "handle", e.Handle, "action", action, "status", report.Status)
	return metrics.NotificationSent
}

// BuildReport renders the ledger report of record at now
func BuildReport(handle string, record *entry.ActionRecord, now time.Time) Report {
	report := Report{
		Handle: handle,
		Status: record.State,
		Moment: now.UTC().Format(MomentLayout),
	}
	if record.State == entry.StateFailed {
		if record.Error != nil {
			report.Reason = record.Error.Reason
			report.Detail = record.Error.Detail
			report.FailID = record.Error.FailID
		}
	} else {
		report.CoreID = record.CoreID
	}
	return report
}

func (n *Notifier) dispatchFailed(ctx context.Context, handle string, action entry.Action, report Report, err error) {
	attrs := []any{"handle", handle, "action", action, "error", err}

	var apiErr *ledger.APIError
	if errors.As(err, &apiErr) {
		attrs = append(attrs, "status", apiErr.Status, "status_text", apiErr.StatusText, "data", string(apiErr.Body))
	}
	n.logger.Error("Failed to notify ledger", attrs...)

	if n.deadLetter == nil {
		return
	}

	body, _ := json.Marshal(report)
	letter := &outcome.DeadLetter{
		ID:       uuid.New(),
		Side:     n.side,
		Handle:   handle,
		Action:   action,
		Report:   body,
		Reason:   err.Error(),
		FailedAt: n.now().UTC(),
	}
	if apiErr != nil {
		letter.Status = apiErr.Status
		letter.StatusText = apiErr.StatusText
		letter.Response = apiErr.Body
	}
	if dlqErr := n.deadLetter.PublishDeadLetter(ctx, letter); dlqErr != nil {
		n.logger.Error("Failed to record undelivered notification", "handle", handle, "error", dlqErr)
	}
}
