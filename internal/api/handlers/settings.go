package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/wonny/sheetalert/internal/auth"
	"github.com/wonny/sheetalert/internal/tracker"
	"github.com/wonny/sheetalert/pkg/logger"
)

// SettingsHandler handles notification settings
type SettingsHandler struct {
	accounts *tracker.Accounts
	logger   *logger.Logger
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(accounts *tracker.Accounts, log *logger.Logger) *SettingsHandler {
	return &SettingsHandler{
		accounts: accounts,
		logger:   log,
	}
}

// Get returns the caller's settings
// GET /settings
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFrom(r.Context())

	user, err := h.accounts.GetOrCreateUser(r.Context(), id.UserID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load user")
		respondError(w, http.StatusInternalServerError, "Unknown")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"user_id": user.ID,
		"notify":  user.Notify,
	})
}

// Post changes the caller's settings. A missing notify leaves it unchanged.
// POST /settings
func (h *SettingsHandler) Post(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFrom(r.Context())

	var req struct {
		Notify *bool `json:"notify"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Notify != nil {
		if err := h.accounts.SetNotify(r.Context(), id.UserID, *req.Notify); err != nil {
			h.logger.WithError(err).Error("Failed to update settings")
			respondError(w, http.StatusInternalServerError, "Unknown")
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"user_id": id.UserID,
		"notify":  req.Notify,
	})
}
