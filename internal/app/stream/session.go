/*
Package stream runs the per-connection event stream of a signed-in user.

This file defines the Session, the state machine that marks the user online, then repeatedly
waits on the hub and emits one frame per result until the user logs out, the connection
drops, or a newer connection of the same user takes over.
*/
package stream

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"inboxchat/internal/app/hub"
	"inboxchat/internal/app/user"
	"inboxchat/internal/pkg/logx"
)

// offlineTimeout bounds the presence update made after the request context is gone.
const offlineTimeout = 5 * time.Second

var (
	// ErrUnauthorized is returned when the stream has no identity or the store rejects it.
	ErrUnauthorized = errors.New("stream: unauthorized")

	// ErrTransportClosed is reported by emitters when the peer can no longer be written to.
	ErrTransportClosed = errors.New("stream: transport closed")
)

// State is the position of a Session in its lifecycle.
type State int

const (
	// StateUnauthenticated is terminal: the request carried no user identity.
	StateUnauthenticated State = iota

	// StateOnline is entered once presence was recorded.
	StateOnline

	// StateWaiting is the only state in which the session blocks, on the hub.
	StateWaiting

	// StateEmitting serializes and flushes one frame.
	StateEmitting

	// StateLoggedOut is terminal, reached through a logout result.
	StateLoggedOut

	// StateDisconnected is terminal, reached when the transport or the context ends.
	StateDisconnected

	// StateRejected is terminal: the store refused to mark the user online.
	StateRejected

	// StateReplaced is terminal: a newer connection of the same user owns the stream now.
	StateReplaced
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateOnline:
		return "online"
	case StateWaiting:
		return "waiting"
	case StateEmitting:
		return "emitting"
	case StateLoggedOut:
		return "logged_out"
	case StateDisconnected:
		return "disconnected"
	case StateRejected:
		return "rejected"
	case StateReplaced:
		return "replaced"
	default:
		return "unknown"
	}
}

// Hub is the part of *hub.Hub a session drives.
type Hub interface {
	Connect(userID string) *hub.Waiter
	Renew(prev *hub.Waiter) (*hub.Waiter, error)
	Await(ctx context.Context, w *hub.Waiter) (hub.Result, error)
	Detach(w *hub.Waiter) bool
}

// PresenceStore records whether a user is online.
type PresenceStore interface {
	UpdateUserStatus(ctx context.Context, userID string, status user.Status) (bool, error)
}

// Announcer tells other users about presence changes.
type Announcer interface {
	AnnouncePresence(userID string, status user.Status)
}

// Emitter writes one frame to the client.
type Emitter interface {
	Emit(f Frame) error
}

// Session is the event stream of one connection.
type Session struct {
	// ID identifies the connection in logs.
	ID string

	// UserID is the authenticated user, empty when the request carried no identity.
	UserID string

	hub       Hub
	presence  PresenceStore
	announcer Announcer
	emitter   Emitter

	now   func() time.Time
	state State

	logger zerolog.Logger
}

// NewSession prepares a session; announcer may be nil.
func NewSession(userID string, h Hub, presence PresenceStore, announcer Announcer, emitter Emitter) *Session {
	id := uuid.NewString()

	return &Session{
		ID:        id,
		UserID:    userID,
		hub:       h,
		presence:  presence,
		announcer: announcer,
		emitter:   emitter,
		now:       time.Now,
		state:     StateUnauthenticated,
		logger: logx.Component("stream").With().
			Str("session_id", id).
			Str("user_id", userID).
			Logger(),
	}
}

// State returns the current state. Only meaningful from the goroutine running the session or after Run returned.
func (s *Session) State() State {
	return s.state
}

// Run drives the session to a terminal state and returns it. The error is non-nil only
// when the session never went online: ErrUnauthorized, or the store failure.
func (s *Session) Run(ctx context.Context) (State, error) {
	if s.UserID == "" {
		return s.finish(StateUnauthenticated), ErrUnauthorized
	}

	ok, err := s.presence.UpdateUserStatus(ctx, s.UserID, user.StatusOnline)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to mark user online")
		return s.finish(StateRejected), err
	}
	if !ok {
		s.logger.Warn().Msg("Stream rejected: unknown user")
		return s.finish(StateRejected), ErrUnauthorized
	}

	s.state = StateOnline
	w := s.hub.Connect(s.UserID)
	s.announce(user.StatusOnline)

	s.logger.Info().Uint64("generation", w.Session).Msg("Stream opened")

	if err := s.emitter.Emit(AckFrame(s.now())); err != nil {
		return s.disconnect(w, err), nil
	}

	for {
		s.state = StateWaiting

		res, err := s.hub.Await(ctx, w)
		if errors.Is(err, hub.ErrSuperseded) {
			return s.replaced(), nil
		}
		if err != nil {
			return s.disconnect(w, err), nil
		}

		if res.Kind == hub.KindLogout {
			return s.logout(w), nil
		}

		s.state = StateEmitting

		frame, err := FrameFor(res, s.now())
		if err != nil {
			s.logger.Error().Err(err).Str("kind", res.Kind.String()).Msg("Dropping result that cannot be encoded")
		} else if err := s.emitter.Emit(frame); err != nil {
			return s.disconnect(w, err), nil
		}

		next, err := s.hub.Renew(w)
		if err != nil {
			return s.replaced(), nil
		}
		w = next
	}
}

// logout ends the stream on request. The waiter was consumed by the logout result;
// Detach only gives up ownership of the user.
func (s *Session) logout(w *hub.Waiter) State {
	s.hub.Detach(w)
	s.markOffline()

	s.logger.Info().Msg("Stream closed by logout")

	return s.finish(StateLoggedOut)
}

// disconnect tears the connection down after a failed flush, a cancelled context or a hub shutdown.
// Presence only goes offline if no newer connection of the user exists.
func (s *Session) disconnect(w *hub.Waiter, cause error) State {
	owner := s.hub.Detach(w)
	if owner {
		s.markOffline()
	}

	s.logger.Info().Err(cause).Bool("owner", owner).Msg("Stream disconnected")

	return s.finish(StateDisconnected)
}

// replaced ends a session whose user was taken over by a newer connection.
// Its registry state already belongs to the newer session and is left alone.
func (s *Session) replaced() State {
	s.logger.Debug().Msg("Stream replaced by a newer connection")

	return s.finish(StateReplaced)
}

func (s *Session) markOffline() {
	ctx, cancel := context.WithTimeout(context.Background(), offlineTimeout)
	defer cancel()

	if _, err := s.presence.UpdateUserStatus(ctx, s.UserID, user.StatusOffline); err != nil {
		s.logger.Error().Err(err).Msg("Failed to mark user offline")
	}

	s.announce(user.StatusOffline)
}

func (s *Session) announce(status user.Status) {
	if s.announcer != nil {
		s.announcer.AnnouncePresence(s.UserID, status)
	}
}

func (s *Session) finish(state State) State {
	s.state = state
	return state
}
