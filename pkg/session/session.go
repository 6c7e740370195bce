// Copyright (C) 2025, Govmarkets Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package session enforces the hot-potato discipline for composed swap
// sequences: a Session must be finalized exactly once, and the owning guard
// can assert at a transaction boundary that nothing was left open. Go has no
// linear types, so the guard fails loudly at runtime instead.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAlreadyFinalized = errors.New("session already finalized")
	ErrSessionOpen      = errors.New("session still open at transaction boundary")
)

// Session is a single-use capability token threaded through every sub-call
// of one atomic operation.
type Session struct {
	id       uuid.UUID
	openedAt time.Time
	done     bool
}

// ID returns the session token's identity.
func (s *Session) ID() uuid.UUID { return s.id }

// Guard tracks open sessions for one execution context.
type Guard struct {
	mu   sync.Mutex
	open map[uuid.UUID]time.Time
}

// NewGuard creates an empty guard.
func NewGuard() *Guard {
	return &Guard{open: make(map[uuid.UUID]time.Time)}
}

// Begin opens a session. The caller must pass it through every sub-call and
// finalize it exactly once.
func (g *Guard) Begin(now time.Time) *Session {
	s := &Session{id: uuid.New(), openedAt: now}
	g.mu.Lock()
	g.open[s.id] = now
	g.mu.Unlock()
	return s
}

// Finalize consumes the session. Double-finalize is a programming error and
// is surfaced, never ignored.
func (g *Guard) Finalize(s *Session) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if s.done {
		return ErrAlreadyFinalized
	}
	if _, ok := g.open[s.id]; !ok {
		return ErrAlreadyFinalized
	}
	s.done = true
	delete(g.open, s.id)
	return nil
}

// AssertClosed is the transaction-boundary check: it fails if any session
// opened through this guard was never finalized.
func (g *Guard) AssertClosed() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if n := len(g.open); n > 0 {
		return fmt.Errorf("%w: %d open", ErrSessionOpen, n)
	}
	return nil
}

// OpenCount returns the number of unfinalized sessions.
func (g *Guard) OpenCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.open)
}
