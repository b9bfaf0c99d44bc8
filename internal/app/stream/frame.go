/*
Package stream runs the per-connection event stream of a signed-in user.

This file defines the Frame, the unit written to the client, and its text/event-stream encoding.
*/
package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"inboxchat/internal/app/hub"
)

// Event names written on the wire.
const (
	EventAck          = "ack"
	EventHeartbeat    = "heartbeat"
	EventInbox        = "inbox"
	EventNotification = "notification"
)

// Frame is one event of the stream.
type Frame struct {
	// Event is the event name.
	Event string

	// Data is the event payload: a decimal timestamp or a compact JSON document.
	Data []byte
}

// WriteTo encodes f as "event: <name>\ndata: <payload>\n\n". A payload spanning
// several lines is split into several data fields.
func (f Frame) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer

	buf.WriteString("event: ")
	buf.WriteString(f.Event)
	buf.WriteByte('\n')

	for _, line := range bytes.Split(f.Data, []byte{'\n'}) {
		buf.WriteString("data: ")
		buf.Write(line)
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')

	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

// AckFrame is sent once when the stream opens, carrying the server time.
func AckFrame(now time.Time) Frame {
	return Frame{Event: EventAck, Data: unixSeconds(now)}
}

// HeartbeatFrame carries the time the heartbeat was produced.
func HeartbeatFrame(at time.Time) Frame {
	return Frame{Event: EventHeartbeat, Data: unixSeconds(at)}
}

// InboxFrame announces a new message in inbox, created at marker.
func InboxFrame(inbox string, marker int64) (Frame, error) {
	data, err := json.Marshal(struct {
		Inbox  string `json:"inbox"`
		Marker int64  `json:"marker"`
	}{inbox, marker})
	if err != nil {
		return Frame{}, err
	}

	return Frame{Event: EventInbox, Data: data}, nil
}

// NotificationFrame carries an arbitrary JSON payload.
func NotificationFrame(payload any) (Frame, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, fmt.Errorf("encode notification: %w", err)
	}

	return Frame{Event: EventNotification, Data: data}, nil
}

// FrameFor converts a hub result into its frame. Logout has no frame: the stream simply ends.
func FrameFor(res hub.Result, now time.Time) (Frame, error) {
	switch res.Kind {
	case hub.KindHeartbeat:
		at := res.At
		if at.IsZero() {
			at = now
		}
		return HeartbeatFrame(at), nil

	case hub.KindInbox:
		return InboxFrame(res.Inbox, res.Marker)

	case hub.KindNotification:
		return NotificationFrame(res.Payload)

	default:
		return Frame{}, fmt.Errorf("no frame for %s result", res.Kind)
	}
}

func unixSeconds(t time.Time) []byte {
	return strconv.AppendInt(nil, t.Unix(), 10)
}
