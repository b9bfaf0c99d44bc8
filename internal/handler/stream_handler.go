/*
Package handler provides the HTTP handlers that open a user's event stream.

The same stream.Session runs behind both transports: a text/event-stream response
for EventSource clients and a WebSocket for the rest.
*/
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"inboxchat/internal/app/stream"
	"inboxchat/internal/pkg/auth/jwt"
	"inboxchat/internal/pkg/errs"
	"inboxchat/internal/pkg/logx"
	"inboxchat/internal/pkg/resp"
)

// HandleStream serves the event stream as server-sent events.
func HandleStream(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		session := stream.NewSession(identity.ID, deps.Hub, deps.Store, deps.Dispatcher, stream.NewSSEWriter(w))

		// Rejections happen before the first frame, while the response can still carry an error.
		if _, err := session.Run(r.Context()); err != nil {
			respondStreamError(w, r, err)
		}
	}
}

func respondStreamError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, stream.ErrUnauthorized) {
		resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
		return
	}

	resp.RespondError(w, r, errs.NewError(errs.ErrUnknown, err))
}

// HandleStreamWS serves the event stream over a WebSocket. The identity is checked
// before the upgrade so an anonymous client gets a plain 403.
func HandleStreamWS(deps *AppDeps, upgrader websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Warn("Failed to upgrade stream connection to WebSocket", "error", err, "user_id", identity.ID)
			return
		}

		// A hijacked connection does not cancel the request context, the read pump does.
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		emitter := stream.NewWSEmitter(conn, deps.Config.HeartbeatInterval)
		go emitter.ReadPump(cancel)

		session := stream.NewSession(identity.ID, deps.Hub, deps.Store, deps.Dispatcher, emitter)
		state, _ := session.Run(ctx)

		code, reason := closeCodeFor(state)
		emitter.Close(code, reason)
	}
}

// closeCodeFor maps a terminal session state to the WebSocket close frame sent to the client.
func closeCodeFor(state stream.State) (int, string) {
	switch state {
	case stream.StateReplaced:
		return stream.CloseCodeReplaced, "signed in on another connection"
	case stream.StateLoggedOut:
		return stream.CloseCodeLoggedOut, "logged out"
	case stream.StateRejected, stream.StateUnauthenticated:
		return websocket.ClosePolicyViolation, "unauthorized"
	default:
		return websocket.CloseGoingAway, "stream closed"
	}
}
