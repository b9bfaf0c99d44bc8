/*
Package user contains the core data structures related to user identity and presence.

It defines the basic representation of a chat participant (the User struct), used for
passing user information both internally and to clients.
*/
package user

// Status is the presence state of a user as recorded by the store.
type Status string

const (
	// StatusOnline is set while the user holds an open event stream.
	StatusOnline Status = "online"

	// StatusOffline is set after logout or disconnect.
	StatusOffline Status = "offline"
)

// User represents the basic identity information of a chat participant.
type User struct {
	// ID is the unique identifier chosen by the user at login; it is also a token of inbox IDs.
	ID string `json:"id"`

	// Username is the display name.
	Username string `json:"username"`

	// Status is the last recorded presence state.
	Status Status `json:"status"`
}
