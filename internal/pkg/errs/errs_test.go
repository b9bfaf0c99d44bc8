package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestNewError(t *testing.T) {
	tests := []struct {
		name        string
		code        int
		details     []any
		wantCode    int
		wantStatus  int
		wantMessage string
	}{
		{"registered", ErrNotInboxParticipant, nil, ErrNotInboxParticipant, http.StatusForbidden, "You are not part of this conversation."},
		{"formatted", ErrMessageContentTooLong, []any{255}, ErrMessageContentTooLong, http.StatusBadRequest, "Message is too long (max 255 bytes)."},
		{"unknown keeps message", ErrUnknown, []any{errors.New("disk full")}, ErrUnknown, http.StatusInternalServerError, "Something went wrong. Please try again."},
		{"unregistered code", 4242, nil, ErrUnknown, http.StatusInternalServerError, "Something went wrong. Please try again."},
		{"rate limited", ErrRateLimitExceeded, nil, ErrRateLimitExceeded, http.StatusTooManyRequests, "Too many requests. Please try again later."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewError(tt.code, tt.details...)
			if got.Code != tt.wantCode || got.Status != tt.wantStatus || got.Message != tt.wantMessage {
				t.Errorf("NewError(%d) = %+v", tt.code, *got)
			}
		})
	}
}

func TestNewErrorDoesNotMutateTemplate(t *testing.T) {
	NewError(ErrMessageContentTooLong, 10)

	if got := NewError(ErrMessageContentTooLong, 255).Message; got != "Message is too long (max 255 bytes)." {
		t.Errorf("template was modified: %q", got)
	}
}

func TestCodeOf(t *testing.T) {
	wrapped := fmt.Errorf("post: %w", NewError(ErrEmptyMessage))

	if got := CodeOf(wrapped); got != ErrEmptyMessage {
		t.Errorf("CodeOf(wrapped) = %d", got)
	}
	if got := CodeOf(errors.New("plain")); got != ErrUnknown {
		t.Errorf("CodeOf(plain) = %d", got)
	}
}
