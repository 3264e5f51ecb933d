package services

import (
	"sync"
	"time"

	"shift-staffing-client/auth"
)

// Session holds the bearer token and the identity it was issued for. It is
// the TokenSource for the API transport and is marked invalid on a 401.
type Session struct {
	mu        sync.RWMutex
	token     string
	userID    uint
	nurseID   uint
	expiresAt time.Time
	valid     bool
	now       func() time.Time

	onInvalidate []func()
}

// NewSession builds a session from a stored token. Identity missing from the
// arguments is filled from the token claims when they can be read.
func NewSession(token string, userID, nurseID uint) *Session {
	s := &Session{now: time.Now}
	s.set(token, userID, nurseID)
	return s
}

// SetToken replaces the credentials after a login.
func (s *Session) SetToken(token string, userID, nurseID uint) {
	s.set(token, userID, nurseID)
}

func (s *Session) set(token string, userID, nurseID uint) {
	var expiresAt time.Time
	if token != "" {
		if claims, err := auth.ParseUnverified(token); err == nil {
			if userID == 0 {
				userID = claims.UserID
			}
			if nurseID == 0 {
				nurseID = claims.NurseID
			}
			if claims.ExpiresAt != nil {
				expiresAt = claims.ExpiresAt.Time
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.userID = userID
	s.nurseID = nurseID
	s.expiresAt = expiresAt
	s.valid = token != ""
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) UserID() uint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

func (s *Session) NurseID() uint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nurseID
}

// Valid reports whether cached data may still be served as current.
func (s *Session) Valid() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.valid {
		return false
	}
	return s.expiresAt.IsZero() || s.now().Before(s.expiresAt)
}

// OnInvalidate registers fn to run once per Invalidate that changes state.
func (s *Session) OnInvalidate(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onInvalidate = append(s.onInvalidate, fn)
}

// Invalidate marks the session unusable. The token is kept so callers can
// still report who was signed in.
func (s *Session) Invalidate() {
	s.mu.Lock()
	if !s.valid {
		s.mu.Unlock()
		return
	}
	s.valid = false
	hooks := append([]func(){}, s.onInvalidate...)
	s.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

// Clear forgets the credentials entirely.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.userID = 0
	s.nurseID = 0
	s.expiresAt = time.Time{}
	s.valid = false
}
