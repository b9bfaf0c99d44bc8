package storage

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"inboxchat/internal/app/inbox"
	"inboxchat/internal/pkg/errs"
)

const (
	// MaxAttachmentSize is the largest accepted file, in bytes.
	MaxAttachmentSize = 5 << 20

	// PresignedURLDuration is the validity of every presigned URL.
	PresignedURLDuration = 5 * time.Minute
)

// extToMIME lists the accepted extensions and the MIME type each must be declared with.
var extToMIME = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
	".pdf":  "application/pdf",
	".txt":  "text/plain",
}

// ValidateFileSize checks 0 < fileSize <= MaxAttachmentSize.
func ValidateFileSize(fileSize int64) *errs.CustomError {
	if fileSize <= 0 {
		return errs.NewError(errs.ErrInvalidParams)
	}

	if fileSize > MaxAttachmentSize {
		return errs.NewError(errs.ErrFileSizeTooLarge)
	}

	return nil
}

// ValidateFileType accepts a file only if its extension is known and matches mimeType.
func ValidateFileType(fileName string, mimeType string) *errs.CustomError {
	ext := strings.ToLower(filepath.Ext(fileName))

	expected, ok := extToMIME[ext]
	if !ok || expected != strings.ToLower(mimeType) {
		return errs.NewError(errs.ErrFileTypeInvalid)
	}

	return nil
}

// ObjectKey returns a fresh key "<inbox>/<uuid><ext>" for a file uploaded to inboxID.
func ObjectKey(inboxID, fileName string) string {
	return inboxID + "/" + uuid.NewString() + strings.ToLower(filepath.Ext(fileName))
}

// InboxOfKey returns the inbox a key was issued for and its participants.
func InboxOfKey(key string) (string, inbox.Recipients, error) {
	inboxID, rest, found := strings.Cut(key, "/")
	if !found || rest == "" || strings.Contains(rest, "/") {
		return "", inbox.Recipients{}, inbox.ErrMalformedInboxID
	}

	recipients, err := inbox.ResolveRecipients(inboxID)
	if err != nil {
		return "", inbox.Recipients{}, err
	}

	return inboxID, recipients, nil
}
