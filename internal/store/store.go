// Package store persists each shopper's cached wishlist between agent
// restarts. The value is a single JSON document per user mirroring what the
// engine holds in memory; the engine treats a missing or unreadable document
// as an empty wishlist and lets the next sync repopulate it.
package store

import (
	"context"

	"github.com/amourflorals/wishsync/internal/domain"
)

// Store is the persistence contract for cached wishlists.
type Store interface {
	// Load returns the cached wishlist for the user. Returns
	// apperrors.ErrNotFound when no document exists, and a wrapped error
	// when the stored document cannot be decoded.
	Load(ctx context.Context, userID string) (domain.Wishlist, error)

	// Save replaces the cached wishlist for the user.
	Save(ctx context.Context, userID string, w domain.Wishlist) error

	// Delete removes the cached wishlist for the user. Deleting a missing
	// document is not an error.
	Delete(ctx context.Context, userID string) error
}
