package util

import (
	"crypto/rand"
	"encoding/base64"
)

// RandomToken generates an unguessable opaque token of n random bytes,
// URL-safe base64 encoded. Used for public link tokens.
func RandomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
