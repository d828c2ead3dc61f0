package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/frahmantamala/identity-service/internal"
)

var ErrPasswordTooLong = internal.NewValidationFieldError("password", "password must be at most 72 bytes", internal.ErrCodeInvalidField)

// Hasher is a one-way, salted hash with constant-time comparison.
type Hasher interface {
	Hash(plain string) (string, error)
	Compare(hash, plain string) bool
}

// PasswordHasher hashes user passwords with bcrypt.
type PasswordHasher struct {
	cost int
}

func NewPasswordHasher(cost int) *PasswordHasher {
	return &PasswordHasher{cost: clampCost(cost)}
}

func (h *PasswordHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrPasswordTooLong
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (h *PasswordHasher) Compare(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// TokenHasher hashes session tokens. bcrypt only reads the first 72 bytes of
// its input and signed tokens are longer than that, so the token is reduced to
// its SHA-256 digest first.
type TokenHasher struct {
	cost int
}

func NewTokenHasher(cost int) *TokenHasher {
	return &TokenHasher{cost: clampCost(cost)}
}

func (h *TokenHasher) Hash(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(digest(token), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash token: %w", err)
	}
	return string(hash), nil
}

func (h *TokenHasher) Compare(hash, token string) bool {
	if hash == "" || token == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), digest(token)) == nil
}

func digest(value string) []byte {
	sum := sha256.Sum256([]byte(value))
	return []byte(hex.EncodeToString(sum[:]))
}

// SHA256Hex returns the hex SHA-256 of value, used for non-secret derived keys.
func SHA256Hex(value string) string {
	return string(digest(value))
}

func clampCost(cost int) int {
	if cost < bcrypt.MinCost {
		return bcrypt.DefaultCost
	}
	if cost > bcrypt.MaxCost {
		return bcrypt.MaxCost
	}
	return cost
}

// GenerateRandomToken generates a cryptographically secure random token
func GenerateRandomToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
