package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/wonny/sheetalert/internal/contracts"
)

// Identity is the authenticated caller of a request
type Identity struct {
	UserID      string
	Email       string
	Credentials contracts.Credentials
}

type identityKey struct{}

// WithIdentity attaches the caller to ctx
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the caller attached by a guard
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

func identityOf(s *Session) Identity {
	return Identity{UserID: s.UserID, Email: s.Email, Credentials: s.Credentials}
}

// RequireLogin guards pages: anonymous callers are sent to loginPath and
// come back to the page they asked for once signed in.
func (m *Sessions) RequireLogin(loginPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := m.Load(r)
			if !s.Authenticated() {
				s.ReturnTo = r.URL.RequestURI()
				if err := m.Save(w, r, s); err != nil {
					m.logger.WithError(err).Error("Failed to save session")
				}
				http.Redirect(w, r, loginPath, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identityOf(s))))
		})
	}
}

// RequireSession guards API calls: anonymous callers get 401
func (m *Sessions) RequireSession() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := m.Load(r)
			if !s.Authenticated() {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"message": "Unauthorized"})
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identityOf(s))))
		})
	}
}
