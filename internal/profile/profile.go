// Package profile keeps the user's display details next to the identity
// provider's account.
package profile

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ariefcatur/go-storefront.git/internal/catalog"
)

const maxNameLen = 100

var (
	ErrNotFound         = errors.New("profile not found")
	ErrInvalidName      = errors.New("full name must be 1-100 characters")
	ErrStoreUnavailable = catalog.ErrStoreUnavailable
)

type Profile struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	// DisplayName is FullName, or the local part of Email when no name was
	// saved.
	DisplayName string     `json:"display_name"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// Store persists one row per user.
type Store interface {
	Get(ctx context.Context, userID string) (Profile, error)
	// Upsert writes full_name and, when non-empty, email.
	Upsert(ctx context.Context, p Profile) (Profile, error)
}

// DisplayName falls back to the email local part.
func DisplayName(fullName, email string) string {
	if n := strings.TrimSpace(fullName); n != "" {
		return n
	}
	local, _, _ := strings.Cut(email, "@")
	return local
}
