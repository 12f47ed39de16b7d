package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/rickgao/qchat-dispatch/internal/connection"
	"github.com/rickgao/qchat-dispatch/internal/featuredev"
	"github.com/rickgao/qchat-dispatch/internal/router"
	"github.com/rickgao/qchat-dispatch/internal/telemetry"
	"github.com/rickgao/qchat-dispatch/internal/version"
)

// pinger checks the database. *pgxpool.Pool satisfies it.
type pinger interface {
	Ping(ctx context.Context) error
}

// authSignals receives auth change notifications from the host.
type authSignals interface {
	OnConnectionChanged()
	OnRegionProfileChanged()
}

// hostDeps is what the HTTP surface reports on and acts on.
type hostDeps struct {
	WSPath    string
	Bridge    *connection.Server
	Router    router.Router
	Forwarder *router.Forwarder
	Listener  *featuredev.UIListener
	Auth      authSignals
	Writer    *telemetry.Writer // nil unless telemetry goes to postgres
	DB        pinger            // nil when the database is disabled
	Logger    *slog.Logger

	// HookAuth guards /auth/*; nil leaves the hooks open.
	HookAuth func(http.Handler) http.Handler
}

// newHTTPHandler builds the dispatcher's routes: the webview socket, health,
// debug stats and the auth change hooks.
func newHTTPHandler(d hostDeps) http.Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)

	r.Handle(d.WSPath, d.Bridge)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string         `json:"status"`
			Build      version.Info   `json:"build"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Build:      version.Get(),
			Components: make(map[string]any),
		}

		if d.DB != nil {
			if err := d.DB.Ping(ctx); err != nil {
				health.Status = "unhealthy"
				health.Components["postgres"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				health.Components["postgres"] = "connected"
			}
		}

		if d.Bridge.Connected() {
			health.Components["webview"] = "connected"
		} else {
			health.Components["webview"] = "waiting"
			if health.Status == "healthy" {
				health.Status = "degraded"
			}
		}

		status := http.StatusOK
		if health.Status == "unhealthy" {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, health)
	})

	r.Route("/debug", func(r chi.Router) {
		r.Get("/stats", func(w http.ResponseWriter, req *http.Request) {
			stats := map[string]any{
				"bridge":    d.Bridge.Stats(),
				"router":    d.Router.Stats(),
				"forwarder": d.Forwarder.Stats(),
			}
			if d.Listener != nil {
				stats["featuredev"] = d.Listener.Stats()
			}
			if d.Writer != nil {
				stats["telemetry_writer"] = d.Writer.Stats()
			}
			writeJSON(w, http.StatusOK, stats)
		})
	})

	r.Route("/auth", func(r chi.Router) {
		if d.HookAuth != nil {
			r.Use(d.HookAuth)
		}
		r.Post("/connection-changed", func(w http.ResponseWriter, req *http.Request) {
			d.Logger.Debug("auth connection changed")
			d.Auth.OnConnectionChanged()
			w.WriteHeader(http.StatusAccepted)
		})
		r.Post("/region-changed", func(w http.ResponseWriter, req *http.Request) {
			d.Logger.Debug("auth region profile changed")
			d.Auth.OnRegionProfileChanged()
			w.WriteHeader(http.StatusAccepted)
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
