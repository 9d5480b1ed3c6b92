package utils

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

// HashIdentifier returns a stable, non-reversible token for a client identifier
// so raw IPs never reach analytics storage.
func HashIdentifier(identifier string) string {
	hash := sha256.Sum256([]byte(identifier))
	return hex.EncodeToString(hash[:])[:16]
}

// NewRequestID generates a request ID.
func NewRequestID() string {
	return uuid.NewString()
}

// ValidateRequestID reports whether id is a well-formed UUID.
func ValidateRequestID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
