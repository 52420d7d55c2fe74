package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/wonny/sheetalert/internal/auth"
	"github.com/wonny/sheetalert/internal/contracts"
	"github.com/wonny/sheetalert/pkg/logger"
)

// OAuthFlow is the provider side of the login
type OAuthFlow interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.Grant, error)
}

// CredentialStore saves and loads the offline credentials of users
type CredentialStore interface {
	StoreCredentials(ctx context.Context, userID, email string, creds contracts.Credentials) error
	ForUser(ctx context.Context, userID string) (contracts.Credentials, error)
}

// AuthHandler serves both legs of the OAuth dance
type AuthHandler struct {
	oauth    OAuthFlow
	sessions *auth.Sessions
	accounts CredentialStore
	logger   *logger.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(oauth OAuthFlow, sessions *auth.Sessions, accounts CredentialStore, log *logger.Logger) *AuthHandler {
	return &AuthHandler{
		oauth:    oauth,
		sessions: sessions,
		accounts: accounts,
		logger:   log,
	}
}

// Callback starts the consent flow, or finishes it when the provider
// redirects back with a code.
// GET /oauth2callback
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s := h.sessions.Load(r)
	q := r.URL.Query()

	code := q.Get("code")
	if code == "" {
		if reason := q.Get("error"); reason != "" {
			h.logger.WithField("reason", reason).Warn("OAuth consent denied")
			respondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		s.State = uuid.NewString()
		if err := h.sessions.Save(w, r, s); err != nil {
			h.logger.WithError(err).Error("Failed to save session")
			respondError(w, http.StatusInternalServerError, "Unknown")
			return
		}
		http.Redirect(w, r, h.oauth.AuthCodeURL(s.State), http.StatusFound)
		return
	}

	if s.State == "" || q.Get("state") != s.State {
		respondError(w, http.StatusBadRequest, "Invalid OAuth state")
		return
	}

	grant, err := h.oauth.Exchange(ctx, code)
	if err != nil {
		h.logger.WithError(err).Error("OAuth exchange failed")
		respondError(w, http.StatusBadGateway, "Could not complete sign in")
		return
	}

	creds, err := h.resolveCredentials(ctx, grant)
	if err != nil {
		h.logger.WithError(err).Error("Failed to store credentials")
		respondError(w, http.StatusInternalServerError, "Unknown")
		return
	}

	returnTo := s.ReturnTo
	if returnTo == "" {
		returnTo = "/"
	}

	s.UserID = grant.UserID
	s.Email = grant.Email
	s.Credentials = creds
	s.State = ""
	s.ReturnTo = ""
	if err := h.sessions.Save(w, r, s); err != nil {
		h.logger.WithError(err).Error("Failed to save session")
		respondError(w, http.StatusInternalServerError, "Unknown")
		return
	}

	h.logger.WithField("user_id", grant.UserID).Info("User signed in")
	http.Redirect(w, r, returnTo, http.StatusFound)
}

// resolveCredentials keeps a fresh refreshable grant, otherwise falls back
// to the credentials stored from an earlier consent.
func (h *AuthHandler) resolveCredentials(ctx context.Context, grant *auth.Grant) (contracts.Credentials, error) {
	if grant.Refreshable {
		if err := h.accounts.StoreCredentials(ctx, grant.UserID, grant.Email, grant.Credentials); err != nil {
			return nil, err
		}
		return grant.Credentials, nil
	}

	stored, err := h.accounts.ForUser(ctx, grant.UserID)
	if err == nil {
		return stored, nil
	}

	h.logger.WithField("user_id", grant.UserID).Warn("No refresh token issued and none stored, keeping access token only")
	if err := h.accounts.StoreCredentials(ctx, grant.UserID, grant.Email, grant.Credentials); err != nil {
		return nil, err
	}
	return grant.Credentials, nil
}
