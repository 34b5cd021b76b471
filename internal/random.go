package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
)

const (
	refreshTokenRawSize = 48
	signingKeyRawSize   = 32
)

// NewRefreshToken mints an opaque URL-safe refresh credential.
func NewRefreshToken() (string, error) {
	return newToken(refreshTokenRawSize)
}

// NewSigningKey returns raw key material suitable for HMAC signing.
func NewSigningKey() ([]byte, error) {
	key := make([]byte, signingKeyRawSize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

func newToken(size int) (string, error) {
	if size <= 0 {
		return "", errors.New("invalid token size")
	}

	raw := make([]byte, size)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}

	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
