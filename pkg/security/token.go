package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const orderTokenBytes = 32

// NewOrderToken returns an unguessable URL-safe token for public order lookup.
func NewOrderToken() (string, error) {
	buf := make([]byte, orderTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate order token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// ValidOrderToken reports whether raw has the shape of a token produced by NewOrderToken.
func ValidOrderToken(raw string) bool {
	if len(raw) != base64.RawURLEncoding.EncodedLen(orderTokenBytes) {
		return false
	}
	decoded, err := base64.RawURLEncoding.DecodeString(raw)
	return err == nil && len(decoded) == orderTokenBytes
}
