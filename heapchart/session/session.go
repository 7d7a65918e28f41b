// Package session keeps server-side login sessions.
//
// A session is an opaque random token, carried in a cookie, that maps to a
// user ID. Sessions expire after a period of inactivity; a background
// goroutine removes expired sessions until Close is called.
package session

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go4org/hashtriemap"
	"github.com/google/uuid"
)

// Default configuration values.
const (
	DefaultCookieName      = "SESSION"
	DefaultTTL             = 7 * 24 * time.Hour
	DefaultCleanupInterval = 1 * time.Minute
)

// Options configures a Store.
type Options struct {
	// CookieName is the name of the session cookie. Default: "SESSION".
	CookieName string

	// TTL is how long a session survives without being used. Default: 7 days.
	TTL time.Duration

	// CleanupInterval is how often to scan for and delete expired sessions.
	// Default: 1 minute. Set to -1 to disable.
	CleanupInterval time.Duration

	// Secure marks the cookie as HTTPS-only.
	Secure bool

	// Logger for session housekeeping. If nil, uses slog.Default().
	Logger *slog.Logger

	// Now returns the current time. Default: time.Now.
	Now func() time.Time
}

type entry struct {
	userID   int64
	lastSeen atomic.Int64 // unix nanoseconds
}

// Store is an in-memory session store.
// Uses hashtriemap for lock-free token lookups.
type Store struct {
	sessions hashtriemap.HashTrieMap[string, *entry]

	cookieName string
	ttl        time.Duration
	secure     bool
	logger     *slog.Logger
	now        func() time.Time

	wg             sync.WaitGroup
	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc
	closeOnce      sync.Once
}

// New creates a session store and starts its cleanup goroutine.
func New(opts Options) *Store {
	s := &Store{
		cookieName: opts.CookieName,
		ttl:        opts.TTL,
		secure:     opts.Secure,
		logger:     opts.Logger,
		now:        opts.Now,
	}
	if s.cookieName == "" {
		s.cookieName = DefaultCookieName
	}
	if s.ttl <= 0 {
		s.ttl = DefaultTTL
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}

	s.shutdownCtx, s.shutdownCancel = context.WithCancel(context.Background())

	interval := opts.CleanupInterval
	if interval == 0 {
		interval = DefaultCleanupInterval
	}
	if interval > 0 {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runCleanupLoop(interval)
		}()
	}

	return s
}

// Close stops the cleanup goroutine. It is safe to call more than once.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.shutdownCancel()
		s.wg.Wait()
	})
	return nil
}

// Create starts a session for userID and returns its token.
func (s *Store) Create(userID int64) string {
	token := uuid.NewString()
	e := &entry{userID: userID}
	e.lastSeen.Store(s.now().UnixNano())
	s.sessions.Store(token, e)
	return token
}

// Lookup returns the user ID of a live session and marks it as used.
func (s *Store) Lookup(token string) (int64, bool) {
	if token == "" {
		return 0, false
	}
	e, ok := s.sessions.Load(token)
	if !ok {
		return 0, false
	}
	now := s.now()
	if s.expired(e, now) {
		s.sessions.Delete(token)
		return 0, false
	}
	e.lastSeen.Store(now.UnixNano())
	return e.userID, true
}

// Destroy ends a session. Unknown tokens are ignored.
func (s *Store) Destroy(token string) {
	s.sessions.Delete(token)
}

// Len returns the number of stored sessions, including expired ones not yet
// cleaned up.
func (s *Store) Len() int {
	n := 0
	s.sessions.Range(func(string, *entry) bool {
		n++
		return true
	})
	return n
}

func (s *Store) expired(e *entry, now time.Time) bool {
	return now.Sub(time.Unix(0, e.lastSeen.Load())) > s.ttl
}

// Token returns the session token carried by r, if any.
func (s *Store) Token(r *http.Request) string {
	c, err := r.Cookie(s.cookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// SetCookie writes the session cookie for token.
func (s *Store) SetCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.ttl / time.Second),
	})
}

// ClearCookie removes the session cookie from the client.
func (s *Store) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// runCleanupLoop deletes expired sessions periodically.
func (s *Store) runCleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdownCtx.Done():
			return
		case <-ticker.C:
			s.cleanupExpired()
		}
	}
}

// cleanupExpired removes every expired session.
func (s *Store) cleanupExpired() {
	now := s.now()
	removed := 0
	s.sessions.Range(func(token string, e *entry) bool {
		if s.expired(e, now) {
			s.sessions.Delete(token)
			removed++
		}
		return true
	})
	if removed > 0 {
		s.logger.Debug("session: cleanup completed", "removed", removed)
	}
}
