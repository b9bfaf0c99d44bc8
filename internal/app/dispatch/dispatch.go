/*
Package dispatch connects persisted events to the notification hub.

After a message is stored it resolves the inbox participants and wakes each of them with an
inbox event; presence changes are announced to every other connected user.
*/
package dispatch

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"inboxchat/internal/app/db"
	"inboxchat/internal/app/inbox"
	"inboxchat/internal/app/user"
	"inboxchat/internal/pkg/logx"
)

// MessageStore persists messages.
type MessageStore interface {
	CreateMessage(ctx context.Context, fromUser, inbox, text string) (db.Message, error)
}

// Notifier is the part of *hub.Hub used to push events.
type Notifier interface {
	NotifyInbox(userID, inbox string, marker int64) bool
	NotifyPresence(userID string, payload any) bool
	Online() []string
}

// PresencePayload is the notification sent when a user goes online or offline.
type PresencePayload struct {
	Type   string      `json:"type"`
	UserID string      `json:"user_id"`
	Status user.Status `json:"status"`
}

// Dispatcher posts messages and fans out their notifications.
type Dispatcher struct {
	store    MessageStore
	notifier Notifier
	logger   zerolog.Logger
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(store MessageStore, notifier Notifier) *Dispatcher {
	return &Dispatcher{
		store:    store,
		notifier: notifier,
		logger:   logx.Component("dispatch"),
	}
}

// PostMessage stores text in inboxID and notifies both participants, the author included.
// A malformed inbox ID does not fail the post: the message is kept and only the push is skipped.
func (d *Dispatcher) PostMessage(ctx context.Context, fromUser, inboxID, text string) (db.Message, error) {
	msg, err := d.store.CreateMessage(ctx, fromUser, inboxID, text)
	if err != nil {
		return db.Message{}, fmt.Errorf("post message: %w", err)
	}

	d.NotifyMessage(msg)

	return msg, nil
}

// NotifyMessage pushes an inbox event for msg to every participant with a live waiter.
// It returns how many were woken.
func (d *Dispatcher) NotifyMessage(msg db.Message) int {
	recipients, err := inbox.ResolveRecipients(msg.Inbox)
	if err != nil {
		d.logger.Warn().Err(err).Int64("message_id", msg.ID).Msg("Skipping push for malformed inbox")
		return 0
	}

	woken := 0
	for _, userID := range recipients.Users() {
		if d.notifier.NotifyInbox(userID, msg.Inbox, msg.Marker) {
			woken++
		}
	}

	d.logger.Debug().
		Str("inbox", msg.Inbox).
		Int64("marker", msg.Marker).
		Int("woken", woken).
		Msg("Inbox notification dispatched")

	return woken
}

// AnnouncePresence tells every other connected user that userID changed status.
func (d *Dispatcher) AnnouncePresence(userID string, status user.Status) {
	payload := PresencePayload{Type: "presence", UserID: userID, Status: status}

	woken := 0
	for _, other := range d.notifier.Online() {
		if other == userID {
			continue
		}
		if d.notifier.NotifyPresence(other, payload) {
			woken++
		}
	}

	d.logger.Debug().
		Str("user_id", userID).
		Str("status", string(status)).
		Int("woken", woken).
		Msg("Presence announced")
}
