// Package auth verifies user credentials. Token issuance is out of scope:
// every request carries its credentials and is checked against the directory.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/joescharf/civic/internal/apperr"
	"github.com/joescharf/civic/internal/models"
	"github.com/joescharf/civic/internal/store"
)

// Hasher hashes and checks passwords with bcrypt.
type Hasher struct {
	Cost int
}

// NewHasher returns a Hasher. A cost outside bcrypt's range uses bcrypt.DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{Cost: cost}
}

// Hash returns the bcrypt hash of password.
func (h *Hasher) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// Matches reports whether password matches hash.
func (h *Hasher) Matches(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// UserLookup is the part of the user directory authentication needs.
type UserLookup interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// Authenticator resolves email/password credentials to a user.
type Authenticator struct {
	users  UserLookup
	hasher *Hasher
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(users UserLookup, hasher *Hasher) *Authenticator {
	return &Authenticator{users: users, hasher: hasher}
}

// Authenticate returns the user owning the credentials. Unknown emails and
// wrong passwords produce the same Unauthenticated error.
func (a *Authenticator) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	invalid := apperr.Unauthenticated("invalid email or password")
	// Emails are stored lowercased and trimmed.
	u, err := a.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, store.ErrNotFound) {
		return nil, invalid
	}
	if err != nil {
		return nil, err
	}
	if u.PasswordHash == "" || !a.hasher.Matches(u.PasswordHash, password) {
		return nil, invalid
	}
	return u, nil
}
