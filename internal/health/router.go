// Package health serves the worker's liveness, readiness and metrics endpoints.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/gatewaysync/pkg/config"
	"github.com/angelmondragon/gatewaysync/pkg/logger"
)

const readyTimeout = 2 * time.Second

// Pinger is any dependency readiness should check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Params groups what the router needs. Checks maps a dependency name to its
// pinger; nil pingers are skipped.
type Params struct {
	Config   *config.Config
	Logger   *logger.Logger
	Gatherer prometheus.Gatherer
	Checks   map[string]Pinger
}

// NewRouter mounts /health/live, /health/ready and /metrics.
func NewRouter(p Params) http.Handler {
	r := chi.NewRouter()
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", live(p.Config))
		r.Get("/ready", ready(p))
	})
	gatherer := p.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return r
}

func live(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setEnv(w, cfg)
		writeJSON(w, http.StatusOK, map[string]any{"status": "live"})
	}
}

func ready(p Params) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setEnv(w, p.Config)
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		failed := map[string]string{}
		for name, check := range p.Checks {
			if check == nil {
				continue
			}
			if err := check.Ping(ctx); err != nil {
				failed[name] = err.Error()
				if p.Logger != nil {
					p.Logger.Error(p.Logger.WithField(ctx, "dependency", name), "readiness check failed", err)
				}
			}
		}
		if len(failed) > 0 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "failed": failed})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	}
}

func setEnv(w http.ResponseWriter, cfg *config.Config) {
	if cfg != nil {
		w.Header().Set("X-Gatewaysync-Env", cfg.App.Env)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
