/*
Package errs provides the application error type and its numeric codes.

Codes are grouped by the first digit: 1xxx request handling, 2xxx inbox and message rules,
3xxx identity, 5xxx server-side failures. Clients switch on the code, never on the message.
*/
package errs

// 1xxx: Request handling
const (
	// ErrInvalidParams indicates that a query or body parameter failed validation.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates an unexpected Content-Type.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates a body that is not valid JSON for the target type.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates trailing data after the JSON document.
	ErrExtraContentInBody = 1004

	// ErrRequestEntityTooLarge indicates a body over the size limit.
	ErrRequestEntityTooLarge = 1006

	// ErrRateLimitExceeded indicates the client IP is over its rate limit.
	ErrRateLimitExceeded = 1007
)

// 2xxx: Inboxes, messages and attachments
const (
	// ErrMalformedInboxID indicates an inbox ID not of the form d_<userA>_<userB>.
	ErrMalformedInboxID = 2101

	// ErrNotInboxParticipant indicates the caller is not one of the inbox participants.
	ErrNotInboxParticipant = 2102

	// ErrMessageContentTooLong indicates message text over the stored length.
	ErrMessageContentTooLong = 2201

	// ErrEmptyMessage indicates a message without text.
	ErrEmptyMessage = 2202

	// ErrFileSizeTooLarge indicates an attachment over the size limit.
	ErrFileSizeTooLarge = 2301

	// ErrFileTypeInvalid indicates an attachment whose name and MIME type are not an allowed pair.
	ErrFileTypeInvalid = 2302
)

// 3xxx: Identity
const (
	// ErrUnauthorized indicates a missing or invalid identity token.
	ErrUnauthorized = 3001

	// ErrUserNotFound indicates an unknown user ID.
	ErrUserNotFound = 3002
)

// 5xxx: Server-side failures
const (
	// ErrUnknown is any unclassified internal error.
	ErrUnknown = 5000

	// ErrFileStorageFailed indicates the object store could not presign a request.
	ErrFileStorageFailed = 5001

	// ErrStorageDisabled indicates attachments are not configured on this server.
	ErrStorageDisabled = 5002
)
