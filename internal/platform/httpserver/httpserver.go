// Package httpserver builds the API's *http.Server from configuration.
package httpserver

import (
	"net/http"
	"time"

	"meritledger/internal/platform/config"
)

const readHeaderTimeout = 5 * time.Second

// New builds the API server. Zero timeouts in cfg fall back to the http.Server
// defaults (no limit), except the header timeout which is always bounded.
func New(cfg config.Server, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}
