/*
Package req binds HTTP request bodies.

Each helper checks the Content-Type, bounds the body size and reports failures as
*errs.CustomError so handlers can pass them straight to resp.RespondError.
*/
package req

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"inboxchat/internal/pkg/errs"
)

// MaxJSONBodySize bounds JSON request bodies.
const MaxJSONBodySize int64 = 64 << 10 // 64 KB

// BindJSON decodes the JSON body of r into dst, rejecting unknown fields and trailing data.
func BindJSON(w http.ResponseWriter, r *http.Request, dst any) *errs.CustomError {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		return errs.NewError(errs.ErrUnsupportedMediaType)
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxJSONBodySize)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		if isTooLarge(err) {
			return errs.NewError(errs.ErrRequestEntityTooLarge)
		}
		return errs.NewError(errs.ErrInvalidJSONFormat)
	}

	if decoder.More() {
		return errs.NewError(errs.ErrExtraContentInBody)
	}

	return nil
}

// BindText reads a text/plain body of at most maxBytes bytes. The body must be valid UTF-8.
// A body over the limit yields ErrMessageContentTooLong.
func BindText(w http.ResponseWriter, r *http.Request, maxBytes int) (string, *errs.CustomError) {
	contentType := r.Header.Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(contentType, "text/plain") {
		return "", errs.NewError(errs.ErrUnsupportedMediaType)
	}

	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	body, err := io.ReadAll(r.Body)
	if err != nil {
		if isTooLarge(err) {
			return "", errs.NewError(errs.ErrMessageContentTooLong, maxBytes)
		}
		return "", errs.NewError(errs.ErrInvalidParams)
	}

	if !utf8.Valid(body) {
		return "", errs.NewError(errs.ErrInvalidParams)
	}

	return string(body), nil
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
