package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	certhandler "meritledger/internal/certificate/handler"
	certmetrics "meritledger/internal/certificate/metrics"
	certservice "meritledger/internal/certificate/service"
	certstore "meritledger/internal/certificate/store"
	jwttoken "meritledger/internal/jwt_token"
	"meritledger/internal/ledger"
	ledgerhandler "meritledger/internal/ledger/handler"
	"meritledger/internal/platform/config"
	"meritledger/internal/platform/database"
	"meritledger/internal/platform/kafka"
	"meritledger/internal/platform/metrics"
	"meritledger/internal/platform/redis"
	rolehandler "meritledger/internal/roles/handler"
	roleservice "meritledger/internal/roles/service"
	rolestore "meritledger/internal/roles/store"
	"meritledger/internal/scholarship/adapters"
	scholarshiphandler "meritledger/internal/scholarship/handler"
	scholarshipmetrics "meritledger/internal/scholarship/metrics"
	scholarshipservice "meritledger/internal/scholarship/service"
	scholarshipstore "meritledger/internal/scholarship/store"
	httptransport "meritledger/internal/transport/http"
	"meritledger/pkg/domain"
	dErrors "meritledger/pkg/domain-errors"
	"meritledger/pkg/platform/events"
	kafkapub "meritledger/pkg/platform/events/publishers/kafka"
	"meritledger/pkg/platform/events/publishers/redisstream"
	"meritledger/pkg/platform/events/relay"
	eventmemory "meritledger/pkg/platform/events/store/memory"
	eventpostgres "meritledger/pkg/platform/events/store/postgres"
	"meritledger/pkg/platform/tx"
	"meritledger/pkg/requestcontext"
)

// app is the fully wired process: services, the HTTP surface and the outbox
// relay.
type app struct {
	Roles        *roleservice.Service
	Certificates *certservice.Service
	Scholarships *scholarshipservice.Service
	Vault        ledger.Vault
	Events       events.Store
	JWT          *jwttoken.JWTService
	Relay        *relay.Relay
	Router       http.Handler

	closers []func() error
}

// backend bundles the storage chosen by config.
type backend struct {
	runner       tx.Runner
	roles        roleservice.Store
	certificates certservice.Store
	scholarships scholarshipservice.Store
	vault        ledger.Vault
	events       events.Store
	db           *sql.DB
}

type appOptions struct {
	// withMetrics registers Prometheus collectors. Collectors are global, so
	// only one app per process may enable it.
	withMetrics bool
}

func newMemoryBackend() *backend {
	return &backend{
		runner:       tx.NewInMemory(),
		roles:        rolestore.NewInMemoryStore(),
		certificates: certstore.NewInMemoryStore(),
		scholarships: scholarshipstore.NewInMemoryStore(),
		vault:        ledger.NewInMemoryVault(),
		events:       eventmemory.NewInMemoryStore(),
	}
}

func newPostgresBackend(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*backend, error) {
	db, err := database.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.MigrateOnStart {
		if err := database.RunMigrations(db); err != nil {
			_ = db.Close()
			return nil, err
		}
		logger.InfoContext(ctx, "database migrations applied")
	}
	return &backend{
		runner:       tx.NewSQL(db, tx.WithTimeout(cfg.TxTimeout)),
		roles:        rolestore.NewPostgres(db),
		certificates: certstore.NewPostgres(db),
		scholarships: scholarshipstore.NewPostgres(db),
		vault:        ledger.NewPostgresVault(db),
		events:       eventpostgres.New(db),
		db:           db,
	}, nil
}

func buildApp(ctx context.Context, cfg config.Config, logger *slog.Logger, opts appOptions) (*app, error) {
	var (
		b   *backend
		err error
	)
	if cfg.UsePostgres() {
		b, err = newPostgresBackend(ctx, cfg.Database, logger)
		if err != nil {
			return nil, err
		}
	} else {
		b = newMemoryBackend()
	}

	a := &app{Vault: b.vault, Events: b.events}
	if b.db != nil {
		a.closers = append(a.closers, b.db.Close)
	}

	roleOpts := []roleservice.Option{roleservice.WithLogger(logger), roleservice.WithEvents(b.events)}
	certOpts := []certservice.Option{certservice.WithLogger(logger), certservice.WithEvents(b.events)}
	scholarshipOpts := []scholarshipservice.Option{scholarshipservice.WithLogger(logger), scholarshipservice.WithEvents(b.events)}
	relayOpts := []relay.Option{
		relay.WithInterval(cfg.Relay.Interval),
		relay.WithBatchSize(cfg.Relay.BatchSize),
		relay.WithLogger(logger),
	}
	routerCfg := httptransport.RouterConfig{
		Logger: logger,
		Events: b.events,
		Health: map[string]httptransport.HealthCheck{},
	}
	if opts.withMetrics {
		certOpts = append(certOpts, certservice.WithMetrics(certmetrics.New()))
		scholarshipOpts = append(scholarshipOpts, scholarshipservice.WithMetrics(scholarshipmetrics.New()))
		relayOpts = append(relayOpts, relay.WithMetrics(relay.NewMetrics()))
		routerCfg.Metrics = metrics.New()
	}

	a.Roles = roleservice.New(b.roles, b.runner, roleOpts...)
	a.Certificates = certservice.New(b.certificates, a.Roles, b.runner, certOpts...)
	a.Scholarships = scholarshipservice.New(
		b.scholarships,
		a.Roles,
		adapters.NewCertificateAdapter(a.Certificates),
		b.vault,
		b.runner,
		scholarshipOpts...,
	)

	if err := bootstrapAdmin(ctx, a.Roles, cfg.Server.BootstrapAdmin, logger); err != nil {
		_ = a.Close()
		return nil, err
	}
	if !cfg.UsePostgres() {
		if err := seedBalances(ctx, b.runner, b.vault, cfg.Ledger.InitialBalances); err != nil {
			_ = a.Close()
			return nil, err
		}
	}

	publishers, err := a.publishers(ctx, cfg, logger, routerCfg.Health)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Relay = relay.New(b.events, publishers, relayOpts...)

	if b.db != nil {
		routerCfg.Health["postgres"] = b.db.PingContext
	}
	a.JWT = jwttoken.NewJWTService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer)
	routerCfg.Validator = jwttoken.NewJWTServiceAdapter(a.JWT)
	a.Router = httptransport.NewRouter(routerCfg,
		rolehandler.New(a.Roles, logger),
		certhandler.New(a.Certificates, logger),
		scholarshiphandler.New(a.Scholarships, logger),
		ledgerhandler.New(b.vault, logger),
	)
	return a, nil
}

// publishers connects the configured sinks and registers their health checks.
func (a *app) publishers(ctx context.Context, cfg config.Config, logger *slog.Logger, health map[string]httptransport.HealthCheck) ([]events.Publisher, error) {
	var out []events.Publisher

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		a.closers = append(a.closers, rc.Close)
		health["redis"] = rc.Health
		out = append(out, redisstream.New(rc.Client, cfg.Redis.Stream))
		logger.InfoContext(ctx, "redis stream publisher enabled", "stream", cfg.Redis.Stream)
	}

	if len(cfg.Kafka.Brokers) > 0 {
		kc, err := kafka.New(ctx, cfg.Kafka, logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { kc.Close(); return nil })
		if err := kafka.EnsureTopic(ctx, kadm.NewClient(kc), cfg.Kafka.Topic, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor, logger); err != nil {
			return nil, err
		}
		health["kafka"] = kc.Ping
		out = append(out, kafkapub.New(kc, cfg.Kafka.Topic))
		logger.InfoContext(ctx, "kafka publisher enabled", "topic", cfg.Kafka.Topic)
	}
	return out, nil
}

// Close releases backing connections in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

func bootstrapAdmin(ctx context.Context, roles *roleservice.Service, raw string, logger *slog.Logger) error {
	if raw == "" {
		return nil
	}
	admin, err := domain.ParsePrincipal(raw)
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	err = roles.Initialize(requestcontext.WithCaller(ctx, admin), admin)
	if dErrors.HasCode(err, dErrors.CodeConflict) {
		logger.InfoContext(ctx, "role registry already initialized")
		return nil
	}
	return err
}

// seedBalances credits the configured principals in one transaction.
func seedBalances(ctx context.Context, runner tx.Runner, vault ledger.Vault, balances map[string]uint64) error {
	if len(balances) == 0 {
		return nil
	}
	return runner.RunInTx(ctx, func(ctx context.Context) error {
		for raw, amount := range balances {
			p, err := domain.ParsePrincipal(raw)
			if err != nil {
				return fmt.Errorf("initial balance for %q: %w", raw, err)
			}
			if err := vault.Credit(ctx, ledger.PrincipalAccount(p), domain.Amount(amount), "initial balance"); err != nil {
				return fmt.Errorf("initial balance for %s: %w", p, err)
			}
		}
		return nil
	})
}

var _ kafkapub.Producer = (*kgo.Client)(nil)
