// Package debugsrv exposes an HTTP introspection surface for a running
// client: Prometheus-format metrics and a couple of JSON debug endpoints
// reflecting live registry state, following the conventional
// go-chi-router-plus-metrics.WritePrometheus admin-surface pairing.
package debugsrv

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/dsbus/dsclient/core"
)

// Server wraps an http.Server exposing /metrics, /debug/state, and
// /debug/providers for one Client.
type Server struct {
	zerolog.Logger

	http *http.Server
}

// New builds a chi router wired to client's live state. addr is the
// listen address (e.g. ":6060"); metrics is the client's metrics set; the
// server does not start listening until Start is called.
func New(addr string, client *core.Client, metrics *core.Metrics, logger zerolog.Logger) *Server {
	logger = logger.With().Str("component", "debugsrv").Logger()

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		set := metrics.Set()
		if set == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		set.WritePrometheus(w)
	})

	r.Get("/debug/state", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, map[string]any{
			"ready":        client.Ready(),
			"loginRetries": client.LoginRetries(),
			"connected":    client.Connected(),
		})
	})

	r.Get("/debug/providers", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, client.Registry().Snapshot())
	})

	return &Server{
		Logger: logger,
		http:   &http.Server{Addr: addr, Handler: r},
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// Start runs the HTTP server in a new goroutine. Errors other than
// http.ErrServerClosed are logged.
func (s *Server) Start() {
	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.Error().Err(err).Msg("debug server stopped")
		}
	}()
}

// Shutdown gracefully stops the server, waiting up to 5s for in-flight
// requests to finish.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.http.Shutdown(ctx)
}
