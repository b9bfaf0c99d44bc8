package jwt

import "github.com/golang-jwt/jwt"

// Payload is the claim set of an identity token.
type Payload struct {
	// StandardClaims carries expiry, issue time and issuer.
	jwt.StandardClaims `json:"standard_claims"`

	// ID is the user ID chosen at login. It is also a token of the user's inbox IDs.
	ID string `json:"id"`

	// Username is the display name at the time the token was issued.
	Username string `json:"username"`
}
