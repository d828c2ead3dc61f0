package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
)

const (
	APIKeyPrefix      = "idsvc_live_"
	fingerprintLength = 12
)

// APIKeys holds the primitives for API keys: generation, a short fingerprint
// that is safe to log, and constant-time comparison. Storage and revocation
// live elsewhere.
type APIKeys struct {
	secret []byte
}

func NewAPIKeys(secret string) (*APIKeys, error) {
	if secret == "" {
		return nil, errors.New("api key secret is required")
	}
	return &APIKeys{secret: []byte(secret)}, nil
}

func (k *APIKeys) Generate() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return APIKeyPrefix + hex.EncodeToString(raw), nil
}

func (k *APIKeys) Fingerprint(key string) string {
	mac := hmac.New(sha256.New, k.secret)
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))[:fingerprintLength]
}

// SafeCompare compares two keys in constant time.
func SafeCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
