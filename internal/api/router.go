package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/sheetalert/internal/api/handlers"
	"github.com/wonny/sheetalert/internal/auth"
	"github.com/wonny/sheetalert/pkg/logger"
)

// LoginPath starts the OAuth flow
const LoginPath = "/oauth2callback"

// Handlers groups every endpoint handler the router mounts
type Handlers struct {
	Health   *handlers.HealthHandler
	Auth     *handlers.AuthHandler
	Sheets   *handlers.SheetHandler
	Settings *handlers.SettingsHandler
	Refresh  *handlers.RefreshHandler
	Realtime *handlers.RealtimeHandler
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(h Handlers, sessions *auth.Sessions, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Public
	r.HandleFunc("/health", h.Health.Health).Methods("GET")
	r.HandleFunc(LoginPath, h.Auth.Callback).Methods("GET")
	r.HandleFunc("/update_stocks", h.Refresh.UpdateStocks).Methods("GET")

	// Pages: anonymous callers are sent through the login
	pages := r.NewRoute().Subrouter()
	pages.Use(mux.MiddlewareFunc(sessions.RequireLogin(LoginPath)))
	pages.HandleFunc("/", h.Sheets.Index).Methods("GET")
	pages.HandleFunc("/settings", h.Settings.Get).Methods("GET")

	// API: anonymous callers get 401
	api := r.NewRoute().Subrouter()
	api.Use(mux.MiddlewareFunc(sessions.RequireSession()))
	api.HandleFunc("/settings", h.Settings.Post).Methods("POST")
	api.HandleFunc("/create", h.Sheets.Create).Methods("GET")
	api.HandleFunc("/delete", h.Sheets.Delete).Methods("POST")
	api.HandleFunc("/sync", h.Sheets.Sync).Methods("POST")
	api.HandleFunc("/ws", h.Realtime.Serve).Methods("GET")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Call next handler
			next.ServeHTTP(w, r)

			// Log request
			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"message": "Unknown",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
