package utils

import (
	"crypto/rand"
	"encoding/base64"
)

// GenerateURLToken returns a URL-safe token built from n cryptographically
// random bytes (~4/3*n characters). n of 24 gives 192 bits of entropy, well
// past the unguessability bar for invitation tokens.
func GenerateURLToken(n int) (string, error) {
	if n <= 0 {
		n = 24
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	// RawURLEncoding avoids '=' padding and the '+' '/' characters
	return base64.RawURLEncoding.EncodeToString(b), nil
}
