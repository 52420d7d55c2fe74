package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/sheetalert/pkg/logger"
)

func TestMemorySessionsExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemorySessions()
	store.now = func() time.Time { return now }

	require.NoError(t, store.Save(ctx, &Session{ID: "live", ExpiresAt: now.Add(time.Hour)}, time.Hour))
	require.NoError(t, store.Save(ctx, &Session{ID: "old", ExpiresAt: now.Add(-time.Minute)}, time.Hour))

	_, err := store.Load(ctx, "old")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, store.Save(ctx, &Session{ID: "stale", ExpiresAt: now.Add(-time.Second)}, time.Hour))
	removed, err := store.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, store.Len())

	s, err := store.Load(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, "live", s.ID)
}

func TestSessionsRoundTrip(t *testing.T) {
	m := NewSessions(NewMemorySessions(), time.Hour, false, logger.Nop())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	s := m.Load(req)
	require.NotEmpty(t, s.ID)
	assert.False(t, s.Authenticated())

	s.UserID = "u1"
	s.Credentials = []byte(`{"access_token":"x"}`)
	rec := httptest.NewRecorder()
	require.NoError(t, m.Save(rec, req, s))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, cookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	next := httptest.NewRequest(http.MethodGet, "/", nil)
	next.AddCookie(cookies[0])
	loaded := m.Load(next)
	assert.Equal(t, s.ID, loaded.ID)
	assert.True(t, loaded.Authenticated())

	rec = httptest.NewRecorder()
	require.NoError(t, m.Destroy(rec, next, loaded))
	assert.NotEqual(t, s.ID, m.Load(next).ID)
}

func TestSessionsUnknownCookie(t *testing.T) {
	m := NewSessions(NewMemorySessions(), time.Hour, false, logger.Nop())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: cookieName, Value: "forged"})
	s := m.Load(req)
	assert.NotEqual(t, "forged", s.ID)
}
