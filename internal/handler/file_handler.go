/*
Package handler provides HTTP handler functions for attachment transfers.

Both handlers only presign: the bytes travel between the client and the bucket.
Access is granted to the two participants of the inbox a key belongs to.
*/
package handler

import (
	"net/http"

	"inboxchat/internal/app/inbox"
	"inboxchat/internal/app/storage"
	"inboxchat/internal/pkg/auth/jwt"
	"inboxchat/internal/pkg/errs"
	"inboxchat/internal/pkg/logx"
	"inboxchat/internal/pkg/req"
	"inboxchat/internal/pkg/resp"
)

// PresignUploadInput is the body of an upload request.
type PresignUploadInput struct {
	Inbox    string `json:"inbox"`
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
	FileSize int64  `json:"file_size"`
}

// HandlePresignUploadURL returns a short-lived upload URL for a file shared in an inbox.
func HandlePresignUploadURL(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.StorageService == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrStorageDisabled))
			return
		}

		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		var input PresignUploadInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		recipients, err := inbox.ResolveRecipients(input.Inbox)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrMalformedInboxID))
			return
		}
		if !recipients.Has(identity.ID) {
			resp.RespondError(w, r, errs.NewError(errs.ErrNotInboxParticipant))
			return
		}

		if customErr := storage.ValidateFileSize(input.FileSize); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		if customErr := storage.ValidateFileType(input.FileName, input.MimeType); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		fileKey := storage.ObjectKey(input.Inbox, input.FileName)

		url, err := deps.StorageService.PresignUpload(r.Context(), fileKey, input.MimeType, input.FileSize, storage.PresignedURLDuration)
		if err != nil {
			logx.Error(err, "files: presign upload failed", "key", fileKey)
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"presignedUrl": url,
			"fileKey":      fileKey,
			"fileName":     input.FileName,
		})
	}
}

// HandlePresignDownloadURL redirects a participant of the key's inbox to a short-lived download URL.
func HandlePresignDownloadURL(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.StorageService == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrStorageDisabled))
			return
		}

		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		fileKey := r.URL.Query().Get("k")
		if fileKey == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		_, recipients, err := storage.InboxOfKey(fileKey)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrMalformedInboxID))
			return
		}
		if !recipients.Has(identity.ID) {
			resp.RespondError(w, r, errs.NewError(errs.ErrNotInboxParticipant))
			return
		}

		url, err := deps.StorageService.PresignDownload(r.Context(), fileKey, storage.PresignedURLDuration)
		if err != nil {
			logx.Error(err, "files: presign download failed", "key", fileKey)
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		http.Redirect(w, r, url, http.StatusFound)
	}
}
