/*
Package stream runs the per-connection event stream of a signed-in user.

This file implements the Emitter that delivers frames over a WebSocket connection,
for clients that cannot keep an event-stream response open.
*/
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"inboxchat/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum allowed size (in bytes) of a message sent by the client. The stream is push-only.
	maxMessageSize = 512

	// CloseCodeReplaced is sent when a newer connection of the same user took over.
	CloseCodeReplaced = 4001

	// CloseCodeLoggedOut is sent when the stream ends because the user logged out.
	CloseCodeLoggedOut = 4002
)

// wsFrame is the JSON envelope of a frame on the WebSocket transport.
type wsFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// WSEmitter writes frames to a WebSocket connection. Every heartbeat frame is
// followed by a ping, and the peer must answer within readWait.
type WSEmitter struct {
	conn     *websocket.Conn
	readWait time.Duration
	logger   zerolog.Logger
}

// NewWSEmitter wraps conn. heartbeat is the hub interval; the read deadline allows two missed beats.
func NewWSEmitter(conn *websocket.Conn, heartbeat time.Duration) *WSEmitter {
	return &WSEmitter{
		conn:     conn,
		readWait: 2*heartbeat + writeWait,
		logger:   logx.Component("ws").With().Str("remote_addr", conn.RemoteAddr().String()).Logger(),
	}
}

// Emit writes f as a JSON text message.
func (e *WSEmitter) Emit(f Frame) error {
	if err := e.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("%w: %v", ErrTransportClosed, err)
	}

	if err := e.conn.WriteJSON(wsFrame{Event: f.Event, Data: f.Data}); err != nil {
		return fmt.Errorf("%w: %v", ErrTransportClosed, err)
	}

	if f.Event == EventHeartbeat {
		if err := e.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
			return fmt.Errorf("%w: %v", ErrTransportClosed, err)
		}
	}

	return nil
}

// ReadPump consumes client traffic until the connection fails or closes, then calls cancel
// so the session waiting on the hub observes the disconnect.
func (e *WSEmitter) ReadPump(cancel context.CancelFunc) {
	defer cancel()

	e.conn.SetReadLimit(maxMessageSize)

	if err := e.conn.SetReadDeadline(time.Now().Add(e.readWait)); err != nil {
		e.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	e.conn.SetPongHandler(func(string) error {
		return e.conn.SetReadDeadline(time.Now().Add(e.readWait))
	})

	for {
		if _, _, err := e.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				e.logger.Info().Err(err).Msg("WebSocket read ended unexpectedly")
			}
			return
		}
	}
}

// Close sends a close frame with code and reason, then closes the connection.
func (e *WSEmitter) Close(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	if err := e.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
		e.logger.Debug().Err(err).Int("close_code", code).Msg("Failed to send close message")
	}

	if err := e.conn.Close(); err != nil {
		e.logger.Debug().Err(err).Msg("WebSocket close error")
	}
}
