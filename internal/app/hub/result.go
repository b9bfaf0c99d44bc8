/*
Package hub holds one pending wait per online user and wakes it with asynchronous events.

This file defines the Result delivered to a woken waiter.
*/
package hub

import "time"

// Kind tags the variant carried by a Result.
type Kind int

const (
	// KindHeartbeat is the periodic synthetic wake-up.
	KindHeartbeat Kind = iota + 1

	// KindInbox reports a new message in an inbox the user takes part in.
	KindInbox

	// KindNotification carries an arbitrary JSON-encodable payload (presence roster changes).
	KindNotification

	// KindLogout asks the owning session to finish its stream.
	KindLogout
)

// String returns the event name used on the wire for the kind.
func (k Kind) String() string {
	switch k {
	case KindHeartbeat:
		return "heartbeat"
	case KindInbox:
		return "inbox"
	case KindNotification:
		return "notification"
	case KindLogout:
		return "logout"
	default:
		return "unknown"
	}
}

// Result is the single value a Waiter is resolved with.
// Only the fields relevant to Kind are set.
type Result struct {
	Kind Kind

	// Inbox and Marker are set for KindInbox.
	Inbox  string
	Marker int64

	// Payload is set for KindNotification.
	Payload any

	// At is the time the result was produced.
	At time.Time
}

// Heartbeat builds a heartbeat result stamped with now.
func Heartbeat(now time.Time) Result {
	return Result{Kind: KindHeartbeat, At: now}
}

// Inbox builds an inbox result.
func Inbox(inbox string, marker int64) Result {
	return Result{Kind: KindInbox, Inbox: inbox, Marker: marker, At: time.Now()}
}

// Notification builds a notification result.
func Notification(payload any) Result {
	return Result{Kind: KindNotification, Payload: payload, At: time.Now()}
}

// Logout builds a logout result.
func Logout() Result {
	return Result{Kind: KindLogout, At: time.Now()}
}
