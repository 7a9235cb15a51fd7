package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/amourflorals/wishsync/internal/domain"
	apperrors "github.com/amourflorals/wishsync/pkg/errors"
)

const keyPrefix = "wishlist:"

// Store is a Redis-backed wishlist cache. Documents expire after the
// configured TTL so abandoned sessions do not accumulate forever.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a Redis-backed store. A non-positive ttl disables expiry.
func New(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func key(userID string) string {
	return keyPrefix + userID
}

// Load fetches and decodes the cached wishlist for the user.
func (s *Store) Load(ctx context.Context, userID string) (domain.Wishlist, error) {
	data, err := s.client.Get(ctx, key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.NotFound("wishlist cache", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("load wishlist for user %s: %w", userID, err)
	}

	var w domain.Wishlist
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode wishlist for user %s: %w", userID, err)
	}
	return w, nil
}

// Save serializes and stores the wishlist, refreshing the TTL.
func (s *Store) Save(ctx context.Context, userID string, w domain.Wishlist) error {
	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("encode wishlist for user %s: %w", userID, err)
	}

	if err := s.client.Set(ctx, key(userID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save wishlist for user %s: %w", userID, err)
	}
	return nil
}

// Delete removes the cached wishlist.
func (s *Store) Delete(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, key(userID)).Err(); err != nil {
		return fmt.Errorf("delete wishlist for user %s: %w", userID, err)
	}
	return nil
}
