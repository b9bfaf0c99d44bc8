/*
Package handler provides HTTP handler functions for sign-in and sign-out.
*/
package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"inboxchat/internal/app/db"
	"inboxchat/internal/app/inbox"
	"inboxchat/internal/app/user"
	"inboxchat/internal/pkg/auth/jwt"
	"inboxchat/internal/pkg/errs"
	"inboxchat/internal/pkg/logx"
	"inboxchat/internal/pkg/req"
	"inboxchat/internal/pkg/resp"
)

// maxUsernameLength is the longest display name, in characters.
const maxUsernameLength = 50

type AuthInput struct {
	UserID   string `json:"user_id"`
	Username string `json:"username,omitempty"`
}

// HandleAuth signs a user in by ID, creating the account when a username is supplied
// for an unknown ID. The token is returned in the body and set as a cookie.
func HandleAuth(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input AuthInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		input.Username = strings.TrimSpace(input.Username)

		if !inbox.ValidUserID(input.UserID) || utf8.RuneCountInString(input.Username) > maxUsernameLength {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		u, err := findOrCreateUser(r.Context(), deps.Store, input)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				resp.RespondError(w, r, errs.NewError(errs.ErrUserNotFound))
				return
			}

			logx.Error(err, "auth: failed to load user", "user_id", input.UserID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		token, err := jwt.GenerateToken(&jwt.Payload{ID: u.ID, Username: u.Username}, deps.Config.JWTSecret, jwt.UserIdentityExpiration)
		if err != nil {
			logx.Error(err, "auth: jwt generation failed", "user_id", u.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		jwt.SetTokenCookie(w, token, jwt.UserIdentityExpiration, !deps.Config.IsDevelopment())

		resp.RespondSuccess(w, r, map[string]any{
			"token": token,
			"user":  u,
		})
	}
}

// findOrCreateUser returns db.ErrNotFound for an unknown ID without a username.
func findOrCreateUser(ctx context.Context, store db.Store, input AuthInput) (user.User, error) {
	u, err := store.FindUserByID(ctx, input.UserID)
	if !errors.Is(err, db.ErrNotFound) || input.Username == "" {
		return u, err
	}

	u, err = store.CreateUser(ctx, input.UserID, input.Username)
	if errors.Is(err, db.ErrUserExists) {
		// Lost a race with a concurrent sign-up of the same ID.
		return store.FindUserByID(ctx, input.UserID)
	}

	if err == nil {
		logx.Info("User created.", "user_id", u.ID)
	}

	return u, err
}

// HandleLogout ends the caller's event stream and clears the token cookie. Without a
// waiting stream to end, presence is set offline here instead.
func HandleLogout(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		if !deps.Hub.NotifyLogout(identity.ID) {
			if _, err := deps.Store.UpdateUserStatus(r.Context(), identity.ID, user.StatusOffline); err != nil {
				logx.Error(err, "logout: failed to mark user offline", "user_id", identity.ID)
			}
			deps.Dispatcher.AnnouncePresence(identity.ID, user.StatusOffline)
		}

		jwt.ClearTokenCookie(w, !deps.Config.IsDevelopment())

		resp.RespondSuccess(w, r, nil)
	}
}
