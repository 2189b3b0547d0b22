// Package config provides configuration structures and validation for the bridge.
// It handles environment-based configuration for the HTTP surface, the decision
// strategies bound to each action, the ledger connection, and the optional
// infrastructure (storage backends, redis lock, kafka audit trail).
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Decision strategy names accepted for BRIDGE_DECISION_<ACTION>
const (
	StrategyAccept      = "accept"
	StrategyRejectFirst = "reject-first"
	StrategyConfirm     = "confirm"
	StrategyAcknowledge = "acknowledge"
)

// Backend names for STORAGE_BACKEND and LOCK_BACKEND
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
	BackendRedis    = "redis"
)

// Config holds the complete bridge configuration. It is validated once during
// startup and is read-only afterwards.
type Config struct {
	Application ApplicationConfig
	Logging     LoggingConfig
	Server      ServerConfig
	Bridge      BridgeConfig
	Interactive InteractiveConfig
	Ledger      LedgerConfig
	Storage     StorageConfig
	Postgres    PostgresConfig
	MongoDB     MongoDBConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	WorkerPool  WorkerPoolConfig
	Metrics     MetricsConfig
}

// ApplicationConfig contains general application configuration
type ApplicationConfig struct {
	Env  string
	Name string // Shown by the liveness endpoint
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string
	Format string // json or text
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port            int           // Port to listen on
	ShutdownTimeout time.Duration // Grace period for server shutdown
	ReadTimeout     time.Duration // Maximum duration for reading entire request
	WriteTimeout    time.Duration // Maximum duration for writing response
	IdleTimeout     time.Duration // Maximum duration to wait for next request
}

// BridgeConfig binds the instance to a side and each action to a decision strategy
type BridgeConfig struct {
	Side        string
	Decision    DecisionConfig
	RejectCount int // Rejections issued by reject-first before it accepts
	LockBackend string
	LockTTL     time.Duration
}

// DecisionConfig names the strategy per action
type DecisionConfig struct {
	Prepare string
	Commit  string
	Abort   string
}

// InteractiveConfig controls the terminal decision source
type InteractiveConfig struct {
	Disabled      bool          // DISABLE_TERMINAL_INPUT
	Force         bool          // FORCE_INTERACTIVE, prompt even without a TTY
	Timeout       time.Duration // Zero waits indefinitely
	DefaultAccept bool
}

// LedgerConfig contains the ledger endpoint and the signing identity of this side
type LedgerConfig struct {
	ServerURL          string
	Ledger             string
	Audience           string
	Issuer             string
	PublicKey          string // base64 ed25519 public key
	SecretKey          string // base64 ed25519 seed
	PeerPublicKey      string // public key of the opposite bridge, which must not match ours
	TokenTTL           time.Duration
	Timeout            time.Duration // Bound on a single dispatch
	BreakerMaxFailures uint32        // Consecutive failures before the breaker opens
	BreakerOpenTimeout time.Duration
}

// StorageConfig selects the entry and intent store backend
type StorageConfig struct {
	Backend string
}

// PostgresConfig contains PostgreSQL configuration
type PostgresConfig struct {
	URL             string        // Database connection string
	MaxConns        int32         // Maximum number of open connections
	MinConns        int32         // Maximum number of idle connections
	ConnMaxLifetime time.Duration // Maximum lifetime of a connection
	ConnMaxIdleTime time.Duration // Maximum idle time of a connection
	MigrationsPath  string        // Path to migration files
}

// MongoDBConfig contains MongoDB configuration
type MongoDBConfig struct {
	URI             string
	Database        string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

// RedisConfig contains the redis connection used by the distributed handle lock
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	KeyPrefix    string
	PollInterval time.Duration
}

// KafkaConfig contains the audit trail configuration
type KafkaConfig struct {
	Enabled           bool
	Brokers           string
	OutcomeTopic      string // Terminal action outcomes
	DLQTopic          string // Ledger notifications that could not be delivered
	NumPartitions     int
	ReplicationFactor int
	WriteTimeout      time.Duration
}

// WorkerPoolConfig contains worker pool configuration
type WorkerPoolConfig struct {
	Size      int // Maximum number of concurrent action pipelines
	QueueSize int // Accepted pipelines waiting for a worker
}

// MetricsConfig controls the prometheus endpoint
type MetricsConfig struct {
	Enabled bool
	Path    string
}

func validStrategy(s string) bool {
	switch s {
	case StrategyAccept, StrategyRejectFirst, StrategyConfirm, StrategyAcknowledge:
		return true
	}
	return false
}

// validate performs validation of all configuration values. Settings of
// optional infrastructure are only checked when that infrastructure is selected.
func (c *Config) validate() error {
	var validationErrors []string

	// Validate Server config
	if c.Server.Port <= 0 {
		validationErrors = append(validationErrors, "SERVER_PORT must be greater than 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_SHUTDOWN_TIMEOUT must be greater than 0")
	}
	if c.Server.ReadTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_READ_TIMEOUT must be greater than 0")
	}
	if c.Server.WriteTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_WRITE_TIMEOUT must be greater than 0")
	}
	if c.Server.IdleTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_IDLE_TIMEOUT must be greater than 0")
	}

	// Validate Bridge config
	if c.Bridge.Side != "debit" && c.Bridge.Side != "credit" {
		validationErrors = append(validationErrors, "BRIDGE_SIDE must be debit or credit")
	}
	decisions := []struct{ key, strategy string }{
		{"BRIDGE_DECISION_PREPARE", c.Bridge.Decision.Prepare},
		{"BRIDGE_DECISION_COMMIT", c.Bridge.Decision.Commit},
		{"BRIDGE_DECISION_ABORT", c.Bridge.Decision.Abort},
	}
	for _, d := range decisions {
		if !validStrategy(d.strategy) {
			validationErrors = append(validationErrors, fmt.Sprintf("%s has unknown strategy %q", d.key, d.strategy))
		}
	}
	if c.Bridge.RejectCount < 0 {
		validationErrors = append(validationErrors, "BRIDGE_REJECT_COUNT must not be negative")
	}
	switch c.Bridge.LockBackend {
	case BackendMemory:
	case BackendRedis:
		if c.Redis.Addr == "" {
			validationErrors = append(validationErrors, "REDIS_ADDR is required when LOCK_BACKEND is redis")
		}
		if c.Bridge.LockTTL <= 0 {
			validationErrors = append(validationErrors, "LOCK_TTL must be greater than 0")
		}
	default:
		validationErrors = append(validationErrors, "LOCK_BACKEND must be memory or redis")
	}

	if c.Interactive.Timeout < 0 {
		validationErrors = append(validationErrors, "INTERACTIVE_TIMEOUT must not be negative")
	}

	// Validate Ledger config
	if _, err := url.ParseRequestURI(c.Ledger.ServerURL); err != nil {
		validationErrors = append(validationErrors, "LEDGER_SERVER_URL must be a valid URL")
	}
	if c.Ledger.Ledger == "" {
		validationErrors = append(validationErrors, "LEDGER_NAME is required")
	}
	if c.Ledger.Issuer == "" {
		validationErrors = append(validationErrors, "LEDGER_SIGNER_ISSUER is required")
	}
	if c.Ledger.SecretKey == "" {
		validationErrors = append(validationErrors, "LEDGER_SIGNER_SECRET is required")
	}
	if c.Ledger.PublicKey != "" && c.Ledger.PublicKey == c.Ledger.PeerPublicKey {
		validationErrors = append(validationErrors, "LEDGER_PEER_SIGNER_PUBLIC must differ from LEDGER_SIGNER_PUBLIC")
	}
	if c.Ledger.Timeout <= 0 {
		validationErrors = append(validationErrors, "LEDGER_TIMEOUT must be greater than 0")
	}
	if c.Ledger.TokenTTL <= 0 {
		validationErrors = append(validationErrors, "LEDGER_TOKEN_TTL must be greater than 0")
	}

	// Validate storage selection and the settings of the selected backend
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Postgres.URL == "" {
			validationErrors = append(validationErrors, "POSTGRES_URL is required")
		}
		if c.Postgres.MaxConns <= 0 {
			validationErrors = append(validationErrors, "POSTGRES_MAX_CONNS must be greater than 0")
		}
		if c.Postgres.MinConns <= 0 {
			validationErrors = append(validationErrors, "POSTGRES_MIN_CONNS must be greater than 0")
		}
		if c.Postgres.MigrationsPath == "" {
			validationErrors = append(validationErrors, "POSTGRES_MIGRATIONS_PATH is required")
		}
	case BackendMongo:
		if c.MongoDB.URI == "" {
			validationErrors = append(validationErrors, "MONGO_URI is required")
		}
		if c.MongoDB.Database == "" {
			validationErrors = append(validationErrors, "MONGO_DATABASE is required")
		}
		if c.MongoDB.Timeout <= 0 {
			validationErrors = append(validationErrors, "MONGO_TIMEOUT must be greater than 0")
		}
	default:
		validationErrors = append(validationErrors, "STORAGE_BACKEND must be memory, postgres or mongo")
	}

	// Validate Kafka config
	if c.Kafka.Enabled {
		if c.Kafka.Brokers == "" {
			validationErrors = append(validationErrors, "KAFKA_BROKERS is required")
		}
		if c.Kafka.OutcomeTopic == "" {
			validationErrors = append(validationErrors, "KAFKA_OUTCOME_TOPIC is required")
		}
		if c.Kafka.DLQTopic == "" {
			validationErrors = append(validationErrors, "KAFKA_DLQ_TOPIC is required")
		}
	}

	// Validate WorkerPool config
	if c.WorkerPool.Size <= 0 {
		validationErrors = append(validationErrors, "WORKER_POOL_SIZE must be greater than 0")
	}
	if c.WorkerPool.QueueSize <= 0 {
		validationErrors = append(validationErrors, "WORKER_QUEUE_SIZE must be greater than 0")
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		validationErrors = append(validationErrors, "METRICS_PATH must start with /")
	}

	if len(validationErrors) > 0 {
		return errors.New(strings.Join(validationErrors, ", "))
	}

	return nil
}
