package common

import (
	"crypto/rand"
	"encoding/hex"
)

// SessionTokenBytes is the amount of entropy in a session token.
const SessionTokenBytes = 32

// MakeRandHexString generates a random hexadecimal string of the given size.
// The size parameter specifies the number of random bytes to generate before
// encoding them, so the final string is twice as long.
//
// It returns an error if the random number generator fails.
func MakeRandHexString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// ShortToken returns the first 8 characters of a secret token, suitable for
// log lines.
func ShortToken(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8] + "..."
}
