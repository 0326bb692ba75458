package security

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrMissingToken = errors.New("missing trigger token")
	ErrInvalidToken = errors.New("invalid trigger token")
)

// HashTriggerToken returns the bcrypt hash to put in TRIGGER_TOKEN_HASH.
func HashTriggerToken(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingToken
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash trigger token: %w", err)
	}
	return string(hash), nil
}

// VerifyTriggerToken compares token against a bcrypt hash.
func VerifyTriggerToken(hash, token string) error {
	if strings.TrimSpace(token) == "" {
		return ErrMissingToken
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)); err != nil {
		return ErrInvalidToken
	}
	return nil
}
