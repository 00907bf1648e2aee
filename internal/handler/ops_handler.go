// internal/handler/ops_handler.go
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/unclebandit/fundraiser-backend/internal/event"
)

// OpsHandler serves the event log, health and metrics endpoints.
type OpsHandler struct {
	Events   *event.Recorder
	Gatherer prometheus.Gatherer
	// Ready reports whether backing services are reachable. Nil means ready.
	Ready func() error
}

func (h *OpsHandler) Routes(r chi.Router) {
	r.Get("/events", h.ListEvents)
	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.HandlerFor(h.Gatherer, promhttp.HandlerOpts{}))
}

// ListEvents returns the committed events from position since onwards, in
// commit order, with the position to resume from. first is the position of
// the first returned event; first > since means older events were trimmed.
// Positions restart at zero when the process restarts.
func (h *OpsHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	since := 0
	if v := r.URL.Query().Get("since"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid since", http.StatusBadRequest)
			return
		}
		since = n
	}

	events, first := h.Events.Read(since)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"events": events,
		"first":  first,
		"next":   first + len(events),
	})
}

func (h *OpsHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if h.Ready != nil {
		if err := h.Ready(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
