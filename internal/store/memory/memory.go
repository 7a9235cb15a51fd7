// Package memory provides an in-process Store used in tests and when the
// agent runs without Redis.
package memory

import (
	"context"
	"sync"

	"github.com/amourflorals/wishsync/internal/domain"
	apperrors "github.com/amourflorals/wishsync/pkg/errors"
)

// Store keeps cached wishlists in a map. Safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	data map[string]domain.Wishlist
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{data: make(map[string]domain.Wishlist)}
}

// Load returns the cached wishlist for the user.
func (s *Store) Load(_ context.Context, userID string) (domain.Wishlist, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.data[userID]
	if !ok {
		return nil, apperrors.NotFound("wishlist cache", userID)
	}
	return w.Clone(), nil
}

// Save replaces the cached wishlist for the user.
func (s *Store) Save(_ context.Context, userID string, w domain.Wishlist) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[userID] = w.Clone()
	return nil
}

// Delete removes the cached wishlist for the user.
func (s *Store) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, userID)
	return nil
}
