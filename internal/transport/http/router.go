package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"meritledger/internal/platform/middleware"
)

// Registrar is implemented by every bounded-context handler.
type Registrar interface {
	Register(r chi.Router)
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// RouterConfig carries the cross-cutting pieces of the HTTP surface.
type RouterConfig struct {
	Logger    *slog.Logger
	Metrics   middleware.HTTPMetrics
	Validator middleware.TokenValidator
	Events    EventLister
	Health    map[string]HealthCheck
}

// NewRouter wires middleware, the operational endpoints and every context
// handler. Handlers enforce authentication on their own mutating routes.
func NewRouter(cfg RouterConfig, handlers ...Registrar) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Recover(logger))
	r.Use(middleware.AccessLog(logger, cfg.Metrics))

	r.Get("/healthz", healthHandler(cfg.Health))
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if cfg.Validator != nil {
			r.Use(middleware.Authenticate(cfg.Validator, logger))
		}
		if cfg.Events != nil {
			r.Get("/events", eventsHandler(cfg.Events))
		}
		for _, h := range handlers {
			h.Register(r)
		}
	})
	return r
}
