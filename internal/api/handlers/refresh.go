package handlers

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/wonny/sheetalert/internal/tracker"
	"github.com/wonny/sheetalert/pkg/logger"
)

// PassRunner runs one refresh pass
type PassRunner interface {
	Run(ctx context.Context) (*tracker.PassResult, error)
}

// RefreshHandler lets an external cron trigger a refresh pass
type RefreshHandler struct {
	runner PassRunner
	token  string
	logger *logger.Logger
}

// NewRefreshHandler creates a new refresh handler. An empty token leaves
// the endpoint open.
func NewRefreshHandler(runner PassRunner, token string, log *logger.Logger) *RefreshHandler {
	return &RefreshHandler{
		runner: runner,
		token:  token,
		logger: log,
	}
}

// UpdateStocks runs a pass and answers 204, or 409 while another pass runs
// GET /update_stocks
func (h *RefreshHandler) UpdateStocks(w http.ResponseWriter, r *http.Request) {
	if h.token != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get("X-Cron-Token")), []byte(h.token)) != 1 {
		respondError(w, http.StatusForbidden, "Forbidden")
		return
	}

	_, err := h.runner.Run(r.Context())
	if errors.Is(err, tracker.ErrPassRunning) {
		respondError(w, http.StatusConflict, "Refresh already running")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Refresh pass failed")
		respondError(w, http.StatusInternalServerError, "Unknown")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
