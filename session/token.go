package session

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
)

// 256 bits of randomness per token.
const tokenSize = 32

// NewToken generates a raw session token from a cryptographically secure
// random source, encoded as unpadded base64url.
func NewToken() (string, error) {
	var raw [tokenSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// Hasher derives the persisted store key from a raw session token using
// HMAC-SHA256 under a service-local secret. Stored keys are therefore not
// usable as session tokens even if the store is read wholesale.
type Hasher struct {
	secret []byte
}

// NewHasher creates a Hasher keyed with secret.
func NewHasher(secret []byte) *Hasher {
	return &Hasher{secret: secret}
}

// Hash returns the base64url-encoded HMAC of rawID.
func (h *Hasher) Hash(rawID string) string {
	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte(rawID))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
