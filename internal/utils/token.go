package utils

import (
	"crypto/rand"   // secure random number generation
	"encoding/hex"  // hex encoding of random bytes
)

// NewOpaqueToken returns a cryptographically unpredictable hex token of
// 2*n characters.  These tokens identify tracking pixels and invitation
// links; they are never derived from database primary keys.
func NewOpaqueToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
