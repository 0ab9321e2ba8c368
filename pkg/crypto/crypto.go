package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
)

// ErrInvalidTokenLength is returned for non-positive token sizes.
var ErrInvalidTokenLength = errors.New("crypto: token length must be positive")

// GenerateToken returns a random URL-safe token built from length random bytes.
func GenerateToken(length int) (string, error) {
	if length <= 0 {
		return "", ErrInvalidTokenLength
	}
	buffer := make([]byte, length)
	if _, err := rand.Read(buffer); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buffer), nil
}
