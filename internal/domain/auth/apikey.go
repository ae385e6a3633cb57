// Package auth holds the identity context handed to cart and order
// operations. Authentication itself happens at the HTTP boundary; the domain
// services only ever see an Identity.
package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrKeyNotFound is returned when no active API key matches the given hash.
var ErrKeyNotFound = errors.New("api key not found")

// Identity is the authenticated caller of a cart or order operation.
// Elevated callers (admin/staff keys) bypass cart ownership checks.
type Identity struct {
	UserID   string
	Elevated bool
}

// Anonymous reports whether the identity carries no user.
func (id Identity) Anonymous() bool {
	return id.UserID == ""
}

// APIKeyInfo holds the identity and permission data for a validated API key.
type APIKeyInfo struct {
	ID       string
	KeyHash  string
	UserID   string
	Name     string
	Elevated bool
}

// Identity converts the key record into the identity passed to the domain.
func (k *APIKeyInfo) Identity() Identity {
	return Identity{UserID: k.UserID, Elevated: k.Elevated}
}

// Repository provides lookup of active API keys by their HMAC-SHA256 hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}
