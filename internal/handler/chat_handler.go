/*
Package handler provides HTTP handler functions for reading and posting messages.

Reading is the pull side of delivery: a client that saw an inbox event, or reconnects
after missing some, fetches everything newer than the last marker it holds.
*/
package handler

import (
	"net/http"
	"strconv"
	"strings"

	"inboxchat/internal/app/db"
	"inboxchat/internal/app/inbox"
	"inboxchat/internal/pkg/auth/jwt"
	"inboxchat/internal/pkg/errs"
	"inboxchat/internal/pkg/logx"
	"inboxchat/internal/pkg/req"
	"inboxchat/internal/pkg/resp"
)

// participantInbox resolves the inbox query parameter and checks the caller takes part in it.
func participantInbox(r *http.Request, userID string) (string, *errs.CustomError) {
	inboxID := r.URL.Query().Get("inbox")
	if inboxID == "" {
		return "", errs.NewError(errs.ErrInvalidParams)
	}

	recipients, err := inbox.ResolveRecipients(inboxID)
	if err != nil {
		return "", errs.NewError(errs.ErrMalformedInboxID)
	}

	if !recipients.Has(userID) {
		return "", errs.NewError(errs.ErrNotInboxParticipant)
	}

	return inboxID, nil
}

// HandleGetMessages returns the messages of an inbox, optionally only those after ?marker=.
func HandleGetMessages(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		inboxID, customErr := participantInbox(r, identity.ID)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		var marker *int64
		if raw := r.URL.Query().Get("marker"); raw != "" {
			m, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || m < 0 {
				resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
				return
			}
			marker = &m
		}

		messages, err := deps.Store.FindMessages(r.Context(), inboxID, marker)
		if err != nil {
			logx.Error(err, "chats: failed to load messages", "inbox", inboxID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"inbox":    inboxID,
			"messages": messages,
		})
	}
}

// HandlePostMessage stores the text/plain body as a message and pushes an inbox event to the participants.
// A malformed inbox ID is accepted: the message is kept but nobody is notified.
func HandlePostMessage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		inboxID, customErr := participantInbox(r, identity.ID)
		if customErr != nil && customErr.Code != errs.ErrMalformedInboxID {
			resp.RespondError(w, r, customErr)
			return
		}
		if customErr != nil {
			inboxID = r.URL.Query().Get("inbox")
		}

		text, customErr := req.BindText(w, r, db.MaxMessageLength)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if strings.TrimSpace(text) == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrEmptyMessage))
			return
		}

		msg, err := deps.Dispatcher.PostMessage(r.Context(), identity.ID, inboxID, text)
		if err != nil {
			logx.Error(err, "chats: failed to post message", "inbox", inboxID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, msg)
	}
}
