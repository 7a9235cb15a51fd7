package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amourflorals/wishsync/internal/domain"
	apperrors "github.com/amourflorals/wishsync/pkg/errors"
)

func setupStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return New(client, time.Hour), mr
}

func TestStoreSaveAndLoad(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	w := domain.Wishlist{
		{ID: "rose-001", Name: "Red Rose", Price: 12.5},
		{ID: "tulip-002", Name: "Tulip Mix", Price: 9.0},
	}

	require.NoError(t, s.Save(ctx, "user-1", w))

	got, err := s.Load(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, w, got)
}

func TestStoreLoadNotFound(t *testing.T) {
	s, _ := setupStore(t)

	_, err := s.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestStoreLoadCorruptDocument(t *testing.T) {
	s, mr := setupStore(t)

	require.NoError(t, mr.Set("wishlist:user-1", "{not json"))

	_, err := s.Load(context.Background(), "user-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrNotFound)
}

func TestStoreSaveSetsTTL(t *testing.T) {
	s, mr := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "user-1", domain.Wishlist{{ID: "a"}}))

	mr.FastForward(30 * time.Minute)
	_, err := s.Load(ctx, "user-1")
	require.NoError(t, err)

	mr.FastForward(time.Hour)
	_, err = s.Load(ctx, "user-1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestStoreDelete(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "user-1", domain.Wishlist{{ID: "a"}}))
	require.NoError(t, s.Delete(ctx, "user-1"))

	_, err := s.Load(ctx, "user-1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	assert.NoError(t, s.Delete(ctx, "user-1"), "deleting a missing document is not an error")
}

func TestStoreKeysAreIsolatedPerUser(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "user-1", domain.Wishlist{{ID: "a"}}))
	require.NoError(t, s.Save(ctx, "user-2", domain.Wishlist{{ID: "b"}}))

	w1, err := s.Load(ctx, "user-1")
	require.NoError(t, err)
	w2, err := s.Load(ctx, "user-2")
	require.NoError(t, err)

	assert.Equal(t, "a", w1[0].ID)
	assert.Equal(t, "b", w2[0].ID)
}
