package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/sheetalert/pkg/logger"
	"github.com/wonny/sheetalert/pkg/redis"
)

const cookieName = "sheetalert_session"

// ErrSessionNotFound is returned by session stores for unknown or expired ids
var ErrSessionNotFound = errors.New("session not found")

// Session is the server side state behind the session cookie
type Session struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id,omitempty"`
	Email       string    `json:"email,omitempty"`
	Credentials []byte    `json:"credentials,omitempty"`
	State       string    `json:"state,omitempty"`
	ReturnTo    string    `json:"return_to,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Authenticated reports whether the session completed the OAuth flow
func (s *Session) Authenticated() bool {
	return s.UserID != "" && len(s.Credentials) > 0
}

// SessionStore persists sessions by id
type SessionStore interface {
	Load(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

// MemorySessions keeps sessions in process. Expired entries are dropped
// lazily on load and in bulk by Cleanup.
type MemorySessions struct {
	mu       sync.Mutex
	sessions map[string]Session
	now      func() time.Time
}

// NewMemorySessions creates an empty in-process session store
func NewMemorySessions() *MemorySessions {
	return &MemorySessions{
		sessions: make(map[string]Session),
		now:      time.Now,
	}
}

func (m *MemorySessions) Load(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if !s.ExpiresAt.IsZero() && m.now().After(s.ExpiresAt) {
		delete(m.sessions, id)
		return nil, ErrSessionNotFound
	}
	return &s, nil
}

func (m *MemorySessions) Save(ctx context.Context, s *Session, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[s.ID] = *s
	return nil
}

func (m *MemorySessions) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, id)
	return nil
}

// Cleanup removes expired sessions and returns how many were dropped
func (m *MemorySessions) Cleanup(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for id, s := range m.sessions {
		if !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored sessions
func (m *MemorySessions) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// RedisSessions stores sessions in Redis; expiry is left to key TTLs
type RedisSessions struct {
	cache *redis.Cache
}

// NewRedisSessions creates a Redis backed session store
func NewRedisSessions(client *redis.Client) *RedisSessions {
	return &RedisSessions{cache: redis.NewCache(client, "sheetalert:session")}
}

func (r *RedisSessions) Load(ctx context.Context, id string) (*Session, error) {
	var s Session
	found, err := r.cache.Get(ctx, id, &s)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrSessionNotFound
	}
	return &s, nil
}

func (r *RedisSessions) Save(ctx context.Context, s *Session, ttl time.Duration) error {
	return r.cache.Set(ctx, s.ID, s, ttl)
}

func (r *RedisSessions) Delete(ctx context.Context, id string) error {
	return r.cache.Delete(ctx, id)
}

// Sessions binds a SessionStore to the session cookie
type Sessions struct {
	store  SessionStore
	ttl    time.Duration
	secure bool
	logger *logger.Logger
}

// NewSessions creates a cookie session manager
func NewSessions(store SessionStore, ttl time.Duration, secure bool, log *logger.Logger) *Sessions {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Sessions{
		store:  store,
		ttl:    ttl,
		secure: secure,
		logger: log,
	}
}

// Load returns the request's session, or a fresh one when the cookie is
// missing or no longer valid.
func (m *Sessions) Load(r *http.Request) *Session {
	cookie, err := r.Cookie(cookieName)
	if err == nil && cookie.Value != "" {
		s, err := m.store.Load(r.Context(), cookie.Value)
		if err == nil {
			return s
		}
		if !errors.Is(err, ErrSessionNotFound) {
			m.logger.WithError(err).Warn("Failed to load session")
		}
	}
	return &Session{ID: uuid.NewString()}
}

// Save persists the session and refreshes the cookie
func (m *Sessions) Save(w http.ResponseWriter, r *http.Request, s *Session) error {
	s.ExpiresAt = time.Now().Add(m.ttl)
	if err := m.store.Save(r.Context(), s, m.ttl); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    s.ID,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Destroy removes the session and expires the cookie
func (m *Sessions) Destroy(w http.ResponseWriter, r *http.Request, s *Session) error {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
	})
	return m.store.Delete(r.Context(), s.ID)
}
