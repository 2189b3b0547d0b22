package decision

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ledger-rail-bridge/internal/config"
	"github.com/ledger-rail-bridge/internal/domain/entry"
)

// Binding maps each action to the provider deciding it
type Binding map[entry.Action]Provider

// For returns the provider bound to action, accepting when none is bound
func (b Binding) For(action entry.Action) Provider {
	if p, ok := b[action]; ok && p != nil {
		return p
	}
	return AlwaysAccept{}
}

// NewBinding builds one provider per action from configuration. Each
// reject-first action gets its own counter.
func NewBinding(logger *slog.Logger, cfg *config.Config, source Source) (Binding, error) {
	strategies := map[entry.Action]string{
		entry.ActionPrepare: cfg.Bridge.Decision.Prepare,
		entry.ActionCommit:  cfg.Bridge.Decision.Commit,
		entry.ActionAbort:   cfg.Bridge.Decision.Abort,
	}

	binding := make(Binding, len(strategies))
	for _, action := range entry.Actions {
		p, err := newProvider(logger, strategies[action], cfg.Bridge.RejectCount, cfg.Interactive.DefaultAccept, cfg.Interactive.Timeout, source)
		if err != nil {
			return nil, fmt.Errorf("failed to bind %s decision: %w", action, err)
		}
		binding[action] = p
		logger.Info("Decision strategy bound", "action", action, "strategy", strategies[action])
	}
	return binding, nil
}

func newProvider(logger *slog.Logger, strategy string, rejectCount int, def bool, timeout time.Duration, source Source) (Provider, error) {
	switch strategy {
	case config.StrategyAccept:
		return AlwaysAccept{}, nil
	case config.StrategyRejectFirst:
		return NewCountedReject(rejectCount), nil
	case config.StrategyConfirm, config.StrategyAcknowledge:
		if source == nil {
			return nil, fmt.Errorf("strategy %q needs a decision source", strategy)
		}
		mode := ModeConfirm
		if strategy == config.StrategyAcknowledge {
			mode = ModeAcknowledge
		}
		return NewInteractive(logger, source, mode, def, timeout), nil
	default:
		return nil, fmt.Errorf("unknown decision strategy %q", strategy)
	}
}
