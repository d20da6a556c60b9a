package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix namespaces every variable, e.g. MERIT_SERVER_ADDR.
const EnvPrefix = "MERIT"

const (
	devSigningKey    = "dev-secret-key-change-in-production"
	minSigningKeyLen = 16
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Config is the full process configuration, loaded once at startup.
type Config struct {
	Server   Server
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Relay    RelayConfig
	Tracing  TracingConfig
	Log      LogConfig
	Ledger   LedgerConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `envconfig:"SERVER_ADDR" default:":8080"`
	JWTSigningKey   string        `envconfig:"JWT_SIGNING_KEY" default:"dev-secret-key-change-in-production"`
	JWTIssuer       string        `envconfig:"JWT_ISSUER" default:"meritledger"`
	TokenTTL        time.Duration `envconfig:"TOKEN_TTL" default:"1h"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	IdleTimeout     time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	Production      bool          `envconfig:"PRODUCTION" default:"false"`
	// BootstrapAdmin, when set, is granted DefaultAdmin on an empty role store.
	BootstrapAdmin string `envconfig:"BOOTSTRAP_ADMIN"`
}

// DatabaseConfig selects the storage backend.
type DatabaseConfig struct {
	Backend         string        `envconfig:"STORAGE_BACKEND" default:"memory"`
	URL             string        `envconfig:"DATABASE_URL"`
	MaxOpenConns    int           `envconfig:"DATABASE_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DATABASE_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"DATABASE_CONN_MAX_LIFETIME" default:"30m"`
	TxTimeout       time.Duration `envconfig:"TX_TIMEOUT" default:"5s"`
	MigrateOnStart  bool          `envconfig:"DATABASE_MIGRATE_ON_START" default:"true"`
}

// RedisConfig enables the Redis stream publisher when URL is set.
type RedisConfig struct {
	URL          string        `envconfig:"REDIS_URL"`
	Stream       string        `envconfig:"REDIS_STREAM" default:"merit:events"`
	PoolSize     int           `envconfig:"REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"REDIS_WRITE_TIMEOUT" default:"3s"`
}

// KafkaConfig enables the Kafka publisher when Brokers is non-empty.
type KafkaConfig struct {
	Brokers           []string `envconfig:"KAFKA_BROKERS"`
	Topic             string   `envconfig:"KAFKA_TOPIC" default:"merit.events"`
	Partitions        int32    `envconfig:"KAFKA_PARTITIONS" default:"3"`
	ReplicationFactor int16    `envconfig:"KAFKA_REPLICATION_FACTOR" default:"1"`
}

type RelayConfig struct {
	Interval  time.Duration `envconfig:"RELAY_INTERVAL" default:"1s"`
	BatchSize int           `envconfig:"RELAY_BATCH_SIZE" default:"100"`
}

// TracingConfig enables OTLP/HTTP export when Endpoint is set.
type TracingConfig struct {
	Endpoint    string  `envconfig:"OTLP_ENDPOINT"`
	Insecure    bool    `envconfig:"OTLP_INSECURE" default:"true"`
	ServiceName string  `envconfig:"SERVICE_NAME" default:"meritledger"`
	SampleRatio float64 `envconfig:"TRACE_SAMPLE_RATIO" default:"1"`
}

type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"json"`
}

// LedgerConfig seeds the in-memory vault. Ignored when Postgres is configured.
type LedgerConfig struct {
	InitialBalances map[string]uint64 `envconfig:"LEDGER_INITIAL_BALANCES"`
}

// FromEnv loads configuration from MERIT_* variables and validates it.
func FromEnv() (Config, error) {
	var cfg Config
	// Sections are processed one by one so each variable is MERIT_<tag>
	// rather than MERIT_<SECTION>_<tag>.
	sections := []any{
		&cfg.Server, &cfg.Database, &cfg.Redis, &cfg.Kafka,
		&cfg.Relay, &cfg.Tracing, &cfg.Log, &cfg.Ledger,
	}
	for _, section := range sections {
		if err := envconfig.Process(EnvPrefix, section); err != nil {
			return Config{}, fmt.Errorf("process env: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects combinations that would start a misconfigured server.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Server.Addr) == "" {
		errs = append(errs, errors.New("server addr is required"))
	}
	if len(c.Server.JWTSigningKey) < minSigningKeyLen {
		errs = append(errs, fmt.Errorf("jwt signing key must be at least %d bytes", minSigningKeyLen))
	}
	if c.Server.Production && c.Server.JWTSigningKey == devSigningKey {
		errs = append(errs, errors.New("jwt signing key must be overridden in production"))
	}
	if c.Server.TokenTTL <= 0 {
		errs = append(errs, errors.New("token ttl must be positive"))
	}
	if c.Relay.BatchSize <= 0 {
		errs = append(errs, errors.New("relay batch size must be positive"))
	}
	if c.Relay.Interval <= 0 {
		errs = append(errs, errors.New("relay interval must be positive"))
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		errs = append(errs, errors.New("trace sample ratio must be within [0,1]"))
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	switch c.Database.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("database url is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Database.Backend))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("kafka topic is required when brokers are set"))
	}
	return errors.Join(errs...)
}

// UsePostgres reports whether stores should be backed by Postgres.
func (c Config) UsePostgres() bool {
	return c.Database.Backend == BackendPostgres
}
