package handlers

import (
	"context"
	"net/http"
	"time"
)

// Pinger reports whether a backing service is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnectionCounter reports the number of open realtime connections
type ConnectionCounter interface {
	Connections() int
}

// HealthHandler reports service health
type HealthHandler struct {
	checks map[string]Pinger
	conns  ConnectionCounter
}

// NewHealthHandler creates a new health handler. conns may be nil.
func NewHealthHandler(checks map[string]Pinger, conns ConnectionCounter) *HealthHandler {
	return &HealthHandler{checks: checks, conns: conns}
}

// Health answers 200 when every dependency responds, 503 otherwise
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}

	body := map[string]interface{}{
		"status":       state,
		"service":      "sheetalert",
		"dependencies": deps,
	}
	if h.conns != nil {
		body["websocket_connections"] = h.conns.Connections()
	}
	respondJSON(w, status, body)
}
