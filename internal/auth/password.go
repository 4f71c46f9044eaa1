package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
)

// ValidatePassword checks if the password meets minimum requirements.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return ErrWeakPassword
	}
	return nil
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	if err := ValidatePassword(password); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// AdminAuthenticator checks credentials against a single configured administrator.
type AdminAuthenticator struct {
	email        string
	passwordHash []byte
}

// NewAdminAuthenticator creates an authenticator for the admin with the given
// email and bcrypt password hash.
func NewAdminAuthenticator(email, passwordHash string) *AdminAuthenticator {
	return &AdminAuthenticator{
		email:        strings.ToLower(strings.TrimSpace(email)),
		passwordHash: []byte(passwordHash),
	}
}

// Authenticate verifies the email and password.
func (a *AdminAuthenticator) Authenticate(_ context.Context, email, credential string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(a.email)) == 1

	// Compare the hash even on an email mismatch so both paths take similar time.
	hashErr := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(credential))
	if !emailOK || hashErr != nil {
		return ErrInvalidCredentials
	}
	return nil
}
