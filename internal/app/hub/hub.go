/*
Package hub holds one pending wait per online user and wakes it with asynchronous events.

This file defines the Hub, which wraps the Registry with domain operations (inbox, presence
and logout notifications), owns the heartbeat loop and ties both to an explicit lifecycle.
*/
package hub

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"inboxchat/internal/pkg/logx"
)

// DefaultHeartbeatInterval is the period of the heartbeat loop.
const DefaultHeartbeatInterval = 30 * time.Second

// ErrHubClosed is returned by Await once the hub has been shut down.
var ErrHubClosed = errors.New("hub: closed")

// Hub coordinates the pending waits of all connected users.
type Hub struct {
	// registry is the only shared mutable state.
	registry *Registry

	// interval between two heartbeat ticks.
	interval time.Duration

	// now stamps heartbeat results.
	now func() time.Time

	// done is closed by Shutdown.
	done     chan struct{}
	stopOnce sync.Once

	// wg waits for the heartbeat loop during shutdown.
	wg sync.WaitGroup

	logger zerolog.Logger
}

// NewHub constructs a Hub and starts its heartbeat loop.
// A non-positive interval falls back to DefaultHeartbeatInterval.
func NewHub(interval time.Duration) *Hub {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}

	h := &Hub{
		registry: NewRegistry(),
		interval: interval,
		now:      time.Now,
		done:     make(chan struct{}),
		logger:   logx.Component("hub"),
	}

	h.wg.Add(1)
	go h.runHeartbeatLoop()

	return h
}

// runHeartbeatLoop wakes every live waiter with a heartbeat once per interval until Shutdown.
func (h *Hub) runHeartbeatLoop() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.logger.Info().Dur("interval", h.interval).Msg("Heartbeat loop started.")

	for {
		select {
		case <-h.done:
			h.logger.Info().Msg("Heartbeat loop stopped.")
			return
		case <-ticker.C:
			h.beat()
		}
	}
}

// beat resolves the waiters that were live when the tick began. Waiters registered
// while the tick is in progress wait for the next one. The registry lock is only held
// per waiter, never across the whole pass.
func (h *Hub) beat() int {
	res := Heartbeat(h.now())

	woken := 0
	for _, w := range h.registry.Snapshot() {
		if h.registry.ResolveWaiter(w, res) {
			woken++
		}
	}

	if woken > 0 {
		h.logger.Debug().Int("woken", woken).Msg("Heartbeat delivered.")
	}

	return woken
}

// Connect registers the first Waiter of a new connection for userID.
// An older connection's pending waiter is dropped without resolution.
func (h *Hub) Connect(userID string) *Waiter {
	w, replaced := h.registry.Register(userID)
	if replaced {
		h.logger.Debug().Str("user_id", userID).Uint64("session", w.Session).Msg("Stale waiter replaced.")
	}

	return w
}

// Renew registers the next Waiter for the connection that owned prev.
func (h *Hub) Renew(prev *Waiter) (*Waiter, error) {
	return h.registry.Renew(prev)
}

// Await blocks until w is resolved, dropped for a newer connection (ErrSuperseded),
// ctx is done or the hub shuts down. On the last two the waiter is released,
// so no residue stays in the registry.
func (h *Hub) Await(ctx context.Context, w *Waiter) (Result, error) {
	select {
	case <-w.Done():
		return w.Result(), nil
	case <-w.Dropped():
		return Result{}, ErrSuperseded
	case <-ctx.Done():
		h.registry.Release(w)
		return Result{}, ctx.Err()
	case <-h.done:
		h.registry.Release(w)
		return Result{}, ErrHubClosed
	}
}

// Wait runs one self-contained wait cycle for userID: it registers a waiter,
// blocks for its result and then gives up ownership of the user.
// Long-lived streams use Connect, Await and Renew instead.
func (h *Hub) Wait(ctx context.Context, userID string) (Result, error) {
	w := h.Connect(userID)
	defer h.registry.Detach(w)

	return h.Await(ctx, w)
}

// NotifyInbox wakes userID with a new-message event. It reports whether a waiter was woken.
func (h *Hub) NotifyInbox(userID, inbox string, marker int64) bool {
	return h.registry.Resolve(userID, Inbox(inbox, marker))
}

// NotifyPresence wakes userID with a notification payload.
func (h *Hub) NotifyPresence(userID string, payload any) bool {
	return h.registry.Resolve(userID, Notification(payload))
}

// NotifyLogout asks the session of userID to end.
func (h *Hub) NotifyLogout(userID string) bool {
	return h.registry.Resolve(userID, Logout())
}

// Cancel drops the pending waiter of userID without resolving it.
func (h *Hub) Cancel(userID string) bool {
	return h.registry.Cancel(userID)
}

// Detach tears down the connection owning w. It reports whether that connection
// was still the newest one for the user, i.e. whether the user really went away.
func (h *Hub) Detach(w *Waiter) bool {
	return h.registry.Detach(w)
}

// Pending reports whether userID currently has a live waiter.
func (h *Hub) Pending(userID string) bool {
	return h.registry.Pending(userID)
}

// Online returns the users that currently hold a connection.
func (h *Hub) Online() []string {
	return h.registry.Connected()
}

// Shutdown stops the heartbeat loop and makes every pending and future Await
// return ErrHubClosed. It is safe to call more than once.
func (h *Hub) Shutdown() {
	h.stopOnce.Do(func() {
		h.logger.Info().Msg("Shutting down hub...")
		close(h.done)
	})

	h.wg.Wait()
}
