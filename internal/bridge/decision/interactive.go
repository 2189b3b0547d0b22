package decision

import (
	"context"
	"log/slog"
	"time"
)

// Source is the human side of an interactive decision
type Source interface {
	Confirm(ctx context.Context, message string, def bool) (bool, error)
	Continue(ctx context.Context, message string, def string) (string, error)
}

// Mode selects how the operator answers
type Mode int

const (
	// ModeConfirm asks a yes/no question
	ModeConfirm Mode = iota
	// ModeAcknowledge waits for the operator to press enter and always accepts
	ModeAcknowledge
)

// Interactive asks a Source and falls back to Default whenever the source
// is disabled, unavailable, fails or does not answer within Timeout.
type Interactive struct {
	source  Source
	mode    Mode
	def     bool
	timeout time.Duration
	logger  *slog.Logger
}

// NewInteractive builds an interactive provider. A zero timeout waits for
// the operator indefinitely.
func NewInteractive(logger *slog.Logger, source Source, mode Mode, def bool, timeout time.Duration) *Interactive {
	return &Interactive{
		source:  source,
		mode:    mode,
		def:     def,
		timeout: timeout,
		logger:  logger,
	}
}

func (p *Interactive) Decide(ctx context.Context, req Request) bool {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	switch p.mode {
	case ModeAcknowledge:
		if _, err := p.source.Continue(ctx, req.Summary(), ""); err != nil {
			p.logger.Warn("Operator acknowledgement unavailable, continuing",
				"handle", req.Handle, "action", req.Action, "error", err)
		}
		return true
	default:
		message := req.Summary() + "\n\nAccept this " + string(req.Side) + " " + string(req.Action) + "?"
		accepted, err := p.source.Confirm(ctx, message, p.def)
		if err != nil {
			p.logger.Warn("Operator decision unavailable, using default",
				"handle", req.Handle, "action", req.Action, "default", p.def, "error", err)
			return p.def
		}
		p.logger.Info("Operator decision", "handle", req.Handle, "action", req.Action, "accepted", accepted)
		return accepted
	}
}
