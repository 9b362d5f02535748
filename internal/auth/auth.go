package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
)

// ErrInvalidToken is returned for any token that does not match.
var ErrInvalidToken = errors.New("invalid path token")

// PathToken validates the shared secret embedded in the webhook URL.
type PathToken struct {
	hash [sha256.Size]byte
	set  bool
}

// NewPathToken creates a validator for token. An empty token rejects
// every request.
func NewPathToken(token string) *PathToken {
	if token == "" {
		return &PathToken{}
	}
	return &PathToken{hash: sha256.Sum256([]byte(token)), set: true}
}

// Validate reports whether token equals the configured one exactly.
func (p *PathToken) Validate(token string) error {
	if !p.set {
		return ErrInvalidToken
	}
	// Comparing digests keeps the comparison constant-time regardless of length.
	got := sha256.Sum256([]byte(token))
	if subtle.ConstantTimeCompare(got[:], p.hash[:]) != 1 {
		return ErrInvalidToken
	}
	return nil
}
