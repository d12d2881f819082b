// Package httpapi serves the service endpoints that are not webhooks.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Vovarama1992/support-relay/internal/router"
	"github.com/Vovarama1992/support-relay/internal/tasks"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	DB Pinger
	// Integrations maps an integration name to whether it is configured.
	Integrations map[string]bool
	TaskStats    func() tasks.Stats
}

type health struct {
	DBConnected  bool            `json:"db_connected"`
	Integrations map[string]bool `json:"integrations"`
	Tasks        *tasks.Stats    `json:"tasks,omitempty"`
}

func RegisterRoutes(r chi.Router, d Deps) {
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	r.Get("/start", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": router.WelcomeText})
	})

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()

		h := health{Integrations: d.Integrations}
		if d.DB != nil {
			h.DBConnected = d.DB.Ping(ctx) == nil
		}
		if d.TaskStats != nil {
			s := d.TaskStats()
			h.Tasks = &s
		}
		status := http.StatusOK
		if !h.DBConnected {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, h)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
