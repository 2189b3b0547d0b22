// Package app assembles one bridge instance from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/ledger-rail-bridge/internal/api"
	"github.com/ledger-rail-bridge/internal/bridge/decision"
	"github.com/ledger-rail-bridge/internal/bridge/lock"
	"github.com/ledger-rail-bridge/internal/bridge/notifier"
	"github.com/ledger-rail-bridge/internal/bridge/processor"
	"github.com/ledger-rail-bridge/internal/bridge/service"
	"github.com/ledger-rail-bridge/internal/config"
	"github.com/ledger-rail-bridge/internal/data/memory"
	"github.com/ledger-rail-bridge/internal/data/mongo"
	"github.com/ledger-rail-bridge/internal/data/postgres"
	redislock "github.com/ledger-rail-bridge/internal/data/redis"
	"github.com/ledger-rail-bridge/internal/domain/entry"
	"github.com/ledger-rail-bridge/internal/domain/intent"
	"github.com/ledger-rail-bridge/internal/domain/shared"
	"github.com/ledger-rail-bridge/internal/metrics"
	"github.com/ledger-rail-bridge/internal/platform/ledger"
	"github.com/ledger-rail-bridge/internal/platform/messaging/producers"
	"github.com/ledger-rail-bridge/internal/platform/persistence"
	"github.com/ledger-rail-bridge/internal/platform/terminal"
)

// App is a wired bridge instance
type App struct {
	cfg    *config.Config
	logger *slog.Logger
	side   shared.Side

	server *api.Server
	// action pipelines and intent writes are queued separately so a backlog
	// of slow decisions never holds up intents
	pools map[string]*service.WorkerPool

	// released in reverse order on shutdown
	closers []closer
}

type closer struct {
	name  string
	close func(ctx context.Context) error
}

// New connects the configured backends and builds the HTTP server. On
// failure everything opened so far is released.
func New(ctx context.Context, logger *slog.Logger, cfg *config.Config) (*App, error) {
	side, err := shared.ParseSide(cfg.Bridge.Side)
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, logger: logger, side: side}
	if err := a.build(ctx); err != nil {
		for _, pool := range a.pools {
			pool.Shutdown(0)
		}
		a.release(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.cfg

	entries, intents, err := a.stores(ctx)
	if err != nil {
		return err
	}

	locker, err := a.locker(ctx)
	if err != nil {
		return err
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(a.side.String())
	}

	outcomes, deadLetters, err := a.producers()
	if err != nil {
		return err
	}

	prompter := terminal.NewPrompter(os.Stdin, os.Stdout, terminal.Options{
		Disabled: cfg.Interactive.Disabled,
		Force:    cfg.Interactive.Force,
	})
	binding, err := decision.NewBinding(a.logger, cfg, prompter)
	if err != nil {
		return err
	}

	signer, err := ledger.NewSigner(cfg.Ledger.Issuer, cfg.Ledger.Audience, cfg.Ledger.SecretKey, cfg.Ledger.TokenTTL)
	if err != nil {
		return fmt.Errorf("failed to load ledger signing key: %w", err)
	}
	if err := checkSigningIdentity(cfg.Ledger, signer.Public()); err != nil {
		return err
	}
	client := ledger.NewClient(a.logger, ledger.ClientConfig{
		ServerURL:          cfg.Ledger.ServerURL,
		Ledger:             cfg.Ledger.Ledger,
		Timeout:            cfg.Ledger.Timeout,
		BreakerMaxFailures: cfg.Ledger.BreakerMaxFailures,
		BreakerOpenTimeout: cfg.Ledger.BreakerOpenTimeout,
	}, signer)

	notifyOpts := []notifier.Option{notifier.WithMetrics(m)}
	if deadLetters != nil {
		notifyOpts = append(notifyOpts, notifier.WithDeadLetter(deadLetters))
	}
	ledgerNotifier := notifier.New(a.logger, a.side, client, notifyOpts...)

	actionPool, err := a.workerPool("actions")
	if err != nil {
		return err
	}
	intentPool, err := a.workerPool("intents")
	if err != nil {
		return err
	}

	actionService := service.NewActionService(
		a.side,
		entries,
		locker,
		binding,
		processor.New(a.logger, entries),
		ledgerNotifier,
		actionPool,
		outcomes,
		m,
		a.logger,
	)
	intentService := service.NewIntentService(intents, intentPool, a.logger)

	a.server = api.NewServer(a.logger, cfg, a.side, actionService, intentService, m)
	a.logger.Info("Bridge initialized",
		"side", a.side,
		"storage", cfg.Storage.Backend,
		"lock", cfg.Bridge.LockBackend,
		"ledger", cfg.Ledger.ServerURL,
	)
	return nil
}

// checkSigningIdentity refuses a secret that does not match the configured
// public key, or one that the opposite bridge also signs with.
func checkSigningIdentity(cfg config.LedgerConfig, derived string) error {
	if cfg.PublicKey != "" && cfg.PublicKey != derived {
		return fmt.Errorf("LEDGER_SIGNER_SECRET does not match LEDGER_SIGNER_PUBLIC: derived %s", derived)
	}
	if derived == cfg.PeerPublicKey {
		return errors.New("LEDGER_SIGNER_SECRET is the opposite bridge's signing key, each side needs its own")
	}
	return nil
}

func (a *App) workerPool(name string) (*service.WorkerPool, error) {
	pool, err := service.NewWorkerPool(service.WorkerPoolConfig{
		Size:      a.cfg.WorkerPool.Size,
		QueueSize: a.cfg.WorkerPool.QueueSize,
	}, a.logger.With("pool", name))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s worker pool: %w", name, err)
	}
	if a.pools == nil {
		a.pools = make(map[string]*service.WorkerPool)
	}
	a.pools[name] = pool
	return pool, nil
}

func (a *App) stores(ctx context.Context) (entry.Repository, intent.Repository, error) {
	switch a.cfg.Storage.Backend {
	case config.BackendPostgres:
		db, err := persistence.NewPostgresDB(ctx, a.logger, &a.cfg.Postgres)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		a.onClose("postgres", func(context.Context) error {
			db.Close()
			return nil
		})
		return postgres.NewEntryRepository(a.logger, db, a.side), postgres.NewIntentRepository(a.logger, db), nil

	case config.BackendMongo:
		db, err := persistence.NewMongoDB(ctx, a.logger, &a.cfg.MongoDB)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize MongoDB: %w", err)
		}
		a.onClose("mongo", db.Close)
		entries := mongo.NewEntryRepository(a.logger, db.Database(), a.side)
		if err := entries.EnsureIndexes(ctx); err != nil {
			return nil, nil, err
		}
		return entries, mongo.NewIntentRepository(a.logger, db.Database()), nil

	case config.BackendMemory, "":
		return memory.NewEntryRepository(), memory.NewIntentRepository(), nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", a.cfg.Storage.Backend)
	}
}

func (a *App) locker(ctx context.Context) (lock.Locker, error) {
	switch a.cfg.Bridge.LockBackend {
	case config.BackendRedis:
		client, err := persistence.NewRedisClient(ctx, a.logger, &a.cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Redis: %w", err)
		}
		a.onClose("redis", func(context.Context) error { return client.Close() })

		opts := []redislock.Option{redislock.WithPrefix(a.cfg.Redis.KeyPrefix + ":" + a.side.String())}
		if a.cfg.Bridge.LockTTL > 0 {
			opts = append(opts, redislock.WithTTL(a.cfg.Bridge.LockTTL))
		}
		if a.cfg.Redis.PollInterval > 0 {
			opts = append(opts, redislock.WithPollInterval(a.cfg.Redis.PollInterval))
		}
		return redislock.NewLocker(client, opts...), nil

	case config.BackendMemory, "":
		return lock.NewKeyedMutex(), nil

	default:
		return nil, fmt.Errorf("unknown lock backend %q", a.cfg.Bridge.LockBackend)
	}
}

// producers returns nil publishers when kafka is disabled
func (a *App) producers() (producers.OutcomePublisher, producers.DeadLetterPublisher, error) {
	if !a.cfg.Kafka.Enabled {
		return nil, nil, nil
	}

	outcomes, err := producers.NewOutcomeProducer(a.logger, &a.cfg.Kafka)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize outcome producer: %w", err)
	}
	a.onClose("outcome producer", func(context.Context) error { return outcomes.Close() })

	dlq, err := producers.NewDLQProducer(a.logger, &a.cfg.Kafka)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize DLQ producer: %w", err)
	}
	if dlq == nil {
		return outcomes, nil, nil
	}
	a.onClose("dlq producer", func(context.Context) error { return dlq.Close() })
	return outcomes, dlq, nil
}

func (a *App) onClose(name string, fn func(ctx context.Context) error) {
	a.closers = append(a.closers, closer{name: name, close: fn})
}

// Handler exposes the HTTP surface
func (a *App) Handler() http.Handler {
	return a.server.Handler()
}

// Start blocks serving HTTP until the server is stopped
func (a *App) Start() error {
	a.logger.Info("Starting HTTP server", "port", a.cfg.Server.Port, "side", a.side)
	return a.server.Start()
}

// Shutdown stops accepting requests, drains in-flight pipelines and
// releases the backends.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error

	if a.server != nil {
		if err := a.server.Stop(ctx); err != nil {
			a.logger.Error("Error during server shutdown", "error", err)
			errs = append(errs, err)
		}
	}

	for name, pool := range a.pools {
		if err := pool.Shutdown(a.cfg.Server.ShutdownTimeout); err != nil {
			a.logger.Error("Pending work did not finish before shutdown", "pool", name, "error", err)
			errs = append(errs, err)
		}
	}

	if err := a.release(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) release(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.close(ctx); err != nil {
			a.logger.Error("Error closing "+c.name, "error", err)
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
