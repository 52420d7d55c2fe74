package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/sheetalert/internal/api/handlers"
	"github.com/wonny/sheetalert/internal/auth"
	"github.com/wonny/sheetalert/internal/contracts"
	"github.com/wonny/sheetalert/internal/realtime"
	"github.com/wonny/sheetalert/internal/store/memory"
	"github.com/wonny/sheetalert/internal/tracker"
	"github.com/wonny/sheetalert/pkg/logger"
)

type noSheets struct{}

func (noSheets) Open(ctx context.Context, creds contracts.Credentials) (contracts.SheetClient, error) {
	return nil, context.Canceled
}

type noQuotes struct{}

func (noQuotes) Fetch(ctx context.Context, symbols []string) (map[string]float64, error) {
	return map[string]float64{}, nil
}

type stubRunner struct{ runs int }

func (s *stubRunner) Run(ctx context.Context) (*tracker.PassResult, error) {
	s.runs++
	return &tracker.PassResult{}, nil
}

type stubOAuth struct{}

func (stubOAuth) AuthCodeURL(state string) string { return "https://accounts.example.com/auth" }

func (stubOAuth) Exchange(ctx context.Context, code string) (*auth.Grant, error) {
	return nil, context.Canceled
}

func newTestRouter(t *testing.T) (http.Handler, *auth.Sessions, *stubRunner) {
	t.Helper()
	log := logger.Nop()
	store := memory.New()
	accounts := tracker.NewAccounts(store, log)
	reconciler := tracker.NewReconciler(store, noQuotes{}, log)
	sessions := auth.NewSessions(auth.NewMemorySessions(), time.Hour, false, log)
	hub := realtime.NewHub(log)
	t.Cleanup(hub.Close)
	runner := &stubRunner{}

	router := NewRouter(Handlers{
		Health:   handlers.NewHealthHandler(nil, nil),
		Auth:     handlers.NewAuthHandler(stubOAuth{}, sessions, accounts, log),
		Sheets:   handlers.NewSheetHandler(accounts, reconciler, noSheets{}, hub, log),
		Settings: handlers.NewSettingsHandler(accounts, log),
		Refresh:  handlers.NewRefreshHandler(runner, "", log),
		Realtime: handlers.NewRealtimeHandler(hub, "http://localhost:8080", log),
	}, sessions, log)
	return router, sessions, runner
}

func signIn(t *testing.T, sessions *auth.Sessions) *http.Cookie {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	s := sessions.Load(req)
	s.UserID = "u1"
	s.Credentials = []byte(`{"access_token":"x"}`)
	rec := httptest.NewRecorder()
	require.NoError(t, sessions.Save(rec, req, s))
	return rec.Result().Cookies()[0]
}

func TestRouter_Anonymous(t *testing.T) {
	router, _, _ := newTestRouter(t)

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/", http.StatusFound},
		{http.MethodGet, "/settings", http.StatusFound},
		{http.MethodPost, "/settings", http.StatusUnauthorized},
		{http.MethodGet, "/create", http.StatusUnauthorized},
		{http.MethodPost, "/delete", http.StatusUnauthorized},
		{http.MethodPost, "/sync", http.StatusUnauthorized},
		{http.MethodGet, "/ws", http.StatusUnauthorized},
		{http.MethodGet, "/update_stocks", http.StatusNoContent},
		{http.MethodGet, LoginPath, http.StatusFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestRouter_LoginRedirect(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/settings", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, LoginPath, rec.Header().Get("Location"))
}

func TestRouter_SignedIn(t *testing.T) {
	router, sessions, _ := newTestRouter(t)
	cookie := signIn(t, sessions)

	req := httptest.NewRequest(http.MethodGet, "/settings", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"notify":false`)

	req = httptest.NewRequest(http.MethodPost, "/settings", strings.NewReader(`{"notify":true}`))
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"notify":true`)
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/sync", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	h := recoveryMiddleware(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"message":"Unknown"}`, rec.Body.String())
}
