/*
Package handler provides the HTTP handler listing the people a user can talk to.
*/
package handler

import (
	"net/http"

	"inboxchat/internal/app/inbox"
	"inboxchat/internal/app/user"
	"inboxchat/internal/pkg/auth/jwt"
	"inboxchat/internal/pkg/errs"
	"inboxchat/internal/pkg/logx"
	"inboxchat/internal/pkg/resp"
)

// Friend is a user as listed to another user, with the inbox they share.
type Friend struct {
	user.User
	Inbox string `json:"inbox"`
}

// HandleFriends lists every other user with presence and the direct inbox ID.
func HandleFriends(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		users, err := deps.Store.FindUsers(r.Context())
		if err != nil {
			logx.Error(err, "friends: failed to list users")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		friends := make([]Friend, 0, len(users))
		for _, u := range users {
			if u.ID == identity.ID {
				continue
			}

			inboxID, err := inbox.Direct(identity.ID, u.ID)
			if err != nil {
				logx.Warn("friends: skipping user without a valid inbox", "user_id", u.ID)
				continue
			}

			friends = append(friends, Friend{User: u, Inbox: inboxID})
		}

		resp.RespondSuccess(w, r, map[string]any{"friends": friends})
	}
}
