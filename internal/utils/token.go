package utils

import (
    "crypto/rand"   // secure random number generation
    "crypto/sha256" // SHA-256 hashing for reset tokens
    "encoding/hex"
)

// NewResetToken returns a single-use reset token: 32 random bytes
// hex-encoded (64 chars).  The raw value goes into the emailed link; only
// HashToken(raw) is ever stored.
func NewResetToken() (string, error) {
    return randomHex(32)
}

// HashToken returns the hex SHA-256 of a raw token.
func HashToken(raw string) string {
    sum := sha256.Sum256([]byte(raw))
    return hex.EncodeToString(sum[:])
}

// randomHex returns n bytes from crypto/rand as a hex string.
func randomHex(n int) (string, error) {
    buf := make([]byte, n)
    if _, err := rand.Read(buf); err != nil {
        return "", err
    }
    return hex.EncodeToString(buf), nil
}
