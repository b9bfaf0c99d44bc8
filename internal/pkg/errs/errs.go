/*
Package errs provides the application error type and its numeric codes.

This file defines CustomError, the error handlers return to clients: a code,
a client-facing message and the HTTP status it is sent with.
*/
package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"inboxchat/internal/pkg/logx"
)

// CustomError is a client-visible error.
type CustomError struct {
	// Code is one of the constants of this package.
	Code int

	// Message is safe to show to the user.
	Message string

	// Status is the HTTP status of the response carrying the error.
	Status int
}

// Error implements the error interface.
func (e CustomError) Error() string {
	return fmt.Sprintf("Error Code %d (HTTP %d): %s", e.Code, e.Status, e.Message)
}

// NewError returns the error registered for code. details fill the message's
// printf verbs; for ErrUnknown a leading error detail is logged instead, never shown.
// Unregistered codes yield ErrUnknown.
func NewError(code int, details ...any) *CustomError {
	template, ok := errorMap[code]
	if !ok {
		logx.Error(
			fmt.Errorf("error code %d is not registered", code),
			"Unknown error code requested",
			"requested_code", code,
		)

		unknown := errorMap[ErrUnknown]
		return &unknown
	}

	customErr := template

	if customErr.Status == 0 {
		customErr.Status = http.StatusBadRequest
	}

	switch {
	case len(details) == 0:
	case code == ErrUnknown:
		if cause, ok := details[0].(error); ok {
			logx.Error(cause, "Handling ErrUnknown with underlying error")
		}
	case strings.Contains(customErr.Message, "%"):
		customErr.Message = fmt.Sprintf(customErr.Message, details...)
	default:
		logx.Warn("Details provided for an error without placeholders. Details ignored.", "code", code)
	}

	return &customErr
}

// CodeOf returns the code carried by err, or ErrUnknown if err is not a CustomError.
func CodeOf(err error) int {
	var customErr *CustomError
	if errors.As(err, &customErr) {
		return customErr.Code
	}
	return ErrUnknown
}
