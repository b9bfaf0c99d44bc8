/*
Package inbox derives the participants of a conversation from its identifier.

A direct (two-party) inbox is named "d_<userA>_<userB>" with the two user IDs in
ascending order, which is how clients build it.
*/
package inbox

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
)

// ErrMalformedInboxID is returned when an inbox ID does not follow the two-party convention.
var ErrMalformedInboxID = errors.New("malformed inbox id")

// ErrInvalidUserID is returned by Direct for IDs that cannot be encoded into an inbox ID.
var ErrInvalidUserID = errors.New("invalid user id")

var (
	directPattern = regexp.MustCompile(`^(?i:d)_([A-Za-z0-9]+)_([A-Za-z0-9]+)$`)
	userIDPattern = regexp.MustCompile(`^[A-Za-z0-9]{1,20}$`)
)

// Recipients holds the two participants of a direct inbox.
type Recipients struct {
	UserA string
	UserB string
}

// Users returns both participants in inbox order.
func (r Recipients) Users() []string {
	return []string{r.UserA, r.UserB}
}

// Has reports whether userID takes part in the inbox.
func (r Recipients) Has(userID string) bool {
	return userID == r.UserA || userID == r.UserB
}

// ResolveRecipients parses a direct inbox ID into its two participants.
func ResolveRecipients(inboxID string) (Recipients, error) {
	m := directPattern.FindStringSubmatch(inboxID)
	if m == nil {
		return Recipients{}, fmt.Errorf("%w: %q", ErrMalformedInboxID, inboxID)
	}

	return Recipients{UserA: m[1], UserB: m[2]}, nil
}

// Direct builds the canonical inbox ID for a conversation between a and b.
func Direct(a, b string) (string, error) {
	for _, id := range []string{a, b} {
		if !ValidUserID(id) {
			return "", fmt.Errorf("%w: %q", ErrInvalidUserID, id)
		}
	}

	ids := []string{a, b}
	sort.Strings(ids)

	return "d_" + ids[0] + "_" + ids[1], nil
}

// ValidUserID reports whether id can appear as a token of an inbox ID.
func ValidUserID(id string) bool {
	return userIDPattern.MatchString(id)
}
