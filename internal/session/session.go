// Package session holds the per-connection state every flow runs against:
// the wallet, the mint pair and the venue authorization.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aman-zulfiqar/private-swap/internal/mints"
	"github.com/aman-zulfiqar/private-swap/internal/wallet"
)

type VenueStatus string

const (
	VenueIdle    VenueStatus = "idle"
	VenueLoading VenueStatus = "loading"
	VenueReady   VenueStatus = "ready"
	VenueError   VenueStatus = "error"
)

// Token is a venue authorization token. It lives only in memory.
type Token struct {
	Value     string    `json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Valid reports whether the token can still be used at now. A zero expiry
// means the venue did not report one.
func (t Token) Valid(now time.Time) bool {
	if t.Value == "" {
		return false
	}
	return t.ExpiresAt.IsZero() || now.Before(t.ExpiresAt)
}

type Session struct {
	ID        string
	CreatedAt time.Time

	wallet *wallet.Wallet

	mu           sync.RWMutex
	mints        *mints.Config
	venueEnabled bool
	tokens       map[string]Token
	venueStatus  VenueStatus
	venueErr     error
	closed       bool
}

// New starts a session for a connected wallet.
func New(w *wallet.Wallet, venueEnabled bool) *Session {
	return &Session{
		ID:           uuid.NewString(),
		CreatedAt:    time.Now().UTC(),
		wallet:       w,
		venueEnabled: venueEnabled,
		tokens:       make(map[string]Token),
		venueStatus:  VenueIdle,
	}
}

func (s *Session) Wallet() *wallet.Wallet { return s.wallet }

// Mints returns a copy of the current mint pair.
func (s *Session) Mints() (mints.Config, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.mints == nil {
		return mints.Config{}, false
	}
	return *s.mints, true
}

func (s *Session) SetMints(cfg *mints.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg == nil {
		s.mints = nil
		return
	}
	c := *cfg
	s.mints = &c
}

func (s *Session) VenueEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.venueEnabled
}

// SetVenueEnabled toggles routing through the venue. Disabling clears a
// sticky authorization error.
func (s *Session) SetVenueEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.venueEnabled = enabled
	if !enabled {
		s.venueStatus = VenueIdle
		s.venueErr = nil
	}
}

// Token returns a cached, unexpired token for endpoint.
func (s *Session) Token(endpoint string) (Token, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[endpoint]
	if !ok || !t.Valid(time.Now()) {
		return Token{}, false
	}
	return t, true
}

// StoreToken caches a token and marks the venue ready. It is a no-op once
// the session is closed.
func (s *Session) StoreToken(endpoint string, t Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.tokens[endpoint] = t
	s.venueStatus = VenueReady
	s.venueErr = nil
}

func (s *Session) VenueStatus() (VenueStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.venueStatus, s.venueErr
}

// BeginVenueAuth moves an idle session to loading. It returns the status the
// caller found, so only the caller that saw idle (or ready with an expired
// token) should start a fetch.
func (s *Session) BeginVenueAuth() VenueStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.venueStatus
	if prev == VenueIdle || prev == VenueReady {
		s.venueStatus = VenueLoading
	}
	return prev
}

// FailVenueAuth records a sticky authorization error.
func (s *Session) FailVenueAuth(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.venueStatus = VenueError
	s.venueErr = err
}

// Reset forgets authorization state, as on wallet reconnect.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = make(map[string]Token)
	s.venueStatus = VenueIdle
	s.venueErr = nil
}

// Close ends the session. Later token results are dropped.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.tokens = make(map[string]Token)
	s.venueStatus = VenueIdle
	s.venueErr = nil
	s.mints = nil
}

func (s *Session) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}
