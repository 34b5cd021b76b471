package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenMalformed marks a token that cannot be decoded at all.
var ErrTokenMalformed = errors.New("token malformed")

// Claims are the portions of an access token the client cares about. Role
// and Email are custom claims the help-desk provider embeds alongside the
// registered set.
type Claims struct {
	Role  string `json:"role,omitempty"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the token subject.
func (c *Claims) UserID() string {
	if c == nil {
		return ""
	}
	return c.Subject
}

// Expiry returns the exp claim, or the zero time when absent.
func (c *Claims) Expiry() time.Time {
	if c == nil || c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// ExpiresIn returns the remaining lifetime relative to now, never negative.
// Tokens without an exp claim report zero.
func (c *Claims) ExpiresIn(now time.Time) time.Duration {
	exp := c.Expiry()
	if exp.IsZero() {
		return 0
	}
	d := exp.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Peek decodes the claims of raw WITHOUT verifying its signature. Use it to
// read expiry and identity hints from a token the provider already vouched
// for; never use it to decide whether a token is valid.
func Peek(raw string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	return claims, nil
}
