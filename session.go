package praxis

import (
	"fmt"
	"sync"
)

// SessionContext scopes a conversation view: who is talking, about which
// module, and the backend conversation the turns belong to. Token is empty
// until the backend assigns one.
type SessionContext struct {
	UserID   string
	ModuleID string
	Token    string
}

// Resolver owns the session identity of the current conversation view.
// Once a non-empty token is bound it is returned for every later turn until
// the view changes.
type Resolver struct {
	mu     sync.RWMutex
	sc     SessionContext
	active bool
}

// NewResolver creates a Resolver with no active view.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Enter starts a new view, discarding any previous binding. A token already
// present in sc (for example a resumed conversation) counts as bound.
func (r *Resolver) Enter(sc SessionContext) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sc = sc
	r.active = true
}

// Leave ends the current view and clears its binding.
func (r *Resolver) Leave() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sc = SessionContext{}
	r.active = false
}

// Active reports whether a view has been entered.
func (r *Resolver) Active() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Current returns the session context of the view and whether a token is
// bound. The boolean is false for "none yet".
func (r *Resolver) Current() (SessionContext, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sc, r.sc.Token != ""
}

// Bind records a token learned from the backend. Binding an empty token is
// a no-op; rebinding the same token is allowed. A different token is refused
// so the first one stays authoritative for the view.
func (r *Resolver) Bind(token string) error {
	if token == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return fmt.Errorf("bind %q: %w", token, ErrNoView)
	}
	switch r.sc.Token {
	case "", token:
		r.sc.Token = token
		return nil
	default:
		return fmt.Errorf("bound %q, got %q: %w", r.sc.Token, token, ErrSessionConflict)
	}
}
