/*
Package hub holds one pending wait per online user and wakes it with asynchronous events.

This file defines the Registry, the lock-guarded map from user ID to its single pending Waiter.
Every mutation for a user key happens under one mutex, so register, resolve and cancel for the
same user never interleave.
*/
package hub

import (
	"errors"
	"sync"
	"time"
)

// ErrSuperseded is returned when a newer connection has taken over the same user.
var ErrSuperseded = errors.New("hub: session superseded by a newer connection")

// Waiter is the single-slot suspension handle of one user's pending stream wait.
type Waiter struct {
	// UserID is the owning user.
	UserID string

	// Session is the generation of the connection that owns this waiter.
	// Waiters renewed by the same connection share it.
	Session uint64

	// CreatedAt is kept for diagnostics.
	CreatedAt time.Time

	// done is closed exactly once, when result is set.
	done   chan struct{}
	result Result

	// dropped is closed when a newer connection replaces this waiter before it was resolved.
	dropped chan struct{}
}

// Done returns a channel closed once the waiter has been resolved.
func (w *Waiter) Done() <-chan struct{} {
	return w.done
}

// Dropped returns a channel closed if the waiter was replaced by a newer connection.
// A dropped waiter is never resolved.
func (w *Waiter) Dropped() <-chan struct{} {
	return w.dropped
}

// Result returns the resolution value. Only valid after Done is closed.
func (w *Waiter) Result() Result {
	return w.result
}

// resolve must be called with the registry lock held, after the waiter was removed from the map.
func (w *Waiter) resolve(res Result) {
	w.result = res
	close(w.done)
}

// Registry maps each user ID to at most one live Waiter and tracks which
// connection generation currently owns the user.
type Registry struct {
	mu sync.Mutex

	// waiters holds the live, unresolved waiter per user.
	waiters map[string]*Waiter

	// sessions holds the newest connection generation per user.
	sessions map[string]uint64

	lastGen uint64
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		waiters:  make(map[string]*Waiter),
		sessions: make(map[string]uint64),
	}
}

// Register creates a Waiter for a new connection of userID. Any prior unresolved
// Waiter for the user is dropped without resolution (its Dropped channel closes)
// and the new connection becomes the owner of the user (last writer wins).
// The second return value reports whether an older waiter was replaced.
func (r *Registry) Register(userID string) (*Waiter, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastGen++
	r.sessions[userID] = r.lastGen

	old, replaced := r.waiters[userID]
	if replaced {
		close(old.dropped)
	}

	w := newWaiter(userID, r.lastGen)
	r.waiters[userID] = w

	return w, replaced
}

// Renew creates the next Waiter for the connection that owned prev.
// It fails with ErrSuperseded if another connection registered for the user since.
func (r *Registry) Renew(prev *Waiter) (*Waiter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessions[prev.UserID] != prev.Session {
		return nil, ErrSuperseded
	}

	w := newWaiter(prev.UserID, prev.Session)
	r.waiters[prev.UserID] = w

	return w, nil
}

// Resolve resolves and removes the live Waiter of userID, reporting whether one existed.
// Results for users without a live waiter are dropped.
func (r *Registry) Resolve(userID string, res Result) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.waiters[userID]
	if !ok {
		return false
	}

	delete(r.waiters, userID)
	w.resolve(res)

	return true
}

// ResolveWaiter resolves w only if it is still the live waiter of its user.
func (r *Registry) ResolveWaiter(w *Waiter, res Result) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.waiters[w.UserID] != w {
		return false
	}

	delete(r.waiters, w.UserID)
	w.resolve(res)

	return true
}

// Cancel removes the live Waiter of userID without resolving it.
// It is idempotent and reports whether a waiter was removed.
func (r *Registry) Cancel(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.waiters[userID]; !ok {
		return false
	}

	delete(r.waiters, userID)

	return true
}

// Release removes w without resolving it, but only if it is still the live waiter
// of its user. A newer connection's waiter is never touched.
func (r *Registry) Release(w *Waiter) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.waiters[w.UserID] != w {
		return false
	}

	delete(r.waiters, w.UserID)

	return true
}

// Detach ends the connection that owns w: its waiter (if still live) is released and,
// when that connection is still the newest for the user, the ownership record is dropped.
// It reports whether the connection was still the owner.
func (r *Registry) Detach(w *Waiter) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.waiters[w.UserID] == w {
		delete(r.waiters, w.UserID)
	}

	if r.sessions[w.UserID] != w.Session {
		return false
	}

	delete(r.sessions, w.UserID)

	return true
}

// Snapshot returns the waiters live at the moment of the call.
func (r *Registry) Snapshot() []*Waiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	waiters := make([]*Waiter, 0, len(r.waiters))
	for _, w := range r.waiters {
		waiters = append(waiters, w)
	}

	return waiters
}

// Connected returns the users owned by a connection, whether or not it is waiting right now.
func (r *Registry) Connected() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	users := make([]string, 0, len(r.sessions))
	for userID := range r.sessions {
		users = append(users, userID)
	}

	return users
}

// Pending reports whether userID has a live waiter.
func (r *Registry) Pending(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.waiters[userID]

	return ok
}

// Len returns the number of live waiters.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.waiters)
}

func newWaiter(userID string, session uint64) *Waiter {
	return &Waiter{
		UserID:    userID,
		Session:   session,
		CreatedAt: time.Now(),
		done:      make(chan struct{}),
		dropped:   make(chan struct{}),
	}
}
