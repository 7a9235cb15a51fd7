package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amourflorals/wishsync/internal/domain"
	apperrors "github.com/amourflorals/wishsync/pkg/errors"
)

func TestResolve(t *testing.T) {
	backend := domain.Wishlist{{ID: "a", Name: "backend-a"}, {ID: "b"}}
	cached := domain.Wishlist{{ID: "a"}, {ID: "stale"}}
	current := domain.Wishlist{{ID: "a", Name: "local-a"}, {ID: "local-1"}, {ID: "local-2"}}

	merged, stats := Resolve(backend, cached, current)

	require.Len(t, merged, 4)
	assert.Equal(t, "backend-a", merged[0].Name, "backend copy wins for shared identities")
	assert.Equal(t, "b", merged[1].ID)
	assert.Equal(t, "local-1", merged[2].ID, "local-only entries preserved in local order")
	assert.Equal(t, "local-2", merged[3].ID)

	assert.Equal(t, 2, stats.Backend)
	assert.Equal(t, 2, stats.LocalOnly)
	assert.Equal(t, 1, stats.CachedOnly, "stale cache entry counted, not resurrected")
}

func TestResolveEmptyBackendKeepsLocal(t *testing.T) {
	merged, _ := Resolve(nil, nil, domain.Wishlist{{ID: "local-1"}})
	require.Len(t, merged, 1)
	assert.Equal(t, "local-1", merged[0].ID)
}

func TestResolveDeduplicatesBackend(t *testing.T) {
	backend := domain.Wishlist{{ID: "a"}, {ID: "a"}, {ID: "b"}}
	merged, stats := Resolve(backend, nil, nil)
	assert.Len(t, merged, 2)
	assert.Equal(t, 2, stats.Backend)
}

func TestSyncMergesAndPersists(t *testing.T) {
	up := &fakeUpstream{}
	eng, _ := newTestEngine(t, up)
	up.setCanonical(domain.Wishlist{{ID: "a"}, {ID: "b"}})
	seed(eng, nil, domain.Wishlist{{ID: "a"}, {ID: "local-1"}})

	require.NoError(t, eng.Sync(authCtx(), false))

	state := eng.State()
	assert.Equal(t, domain.StatusSynced, state.Status)
	require.Len(t, state.Wishlist, 3)
	assert.Equal(t, "local-1", state.Wishlist[2].ID)

	cached, err := eng.store.Load(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, cached, 3, "merged result persisted")
}

func TestSyncFailureSetsErrorStatus(t *testing.T) {
	up := &fakeUpstream{fetchErr: apperrors.ServiceUnavailable("storefront: down")}
	eng, _ := newTestEngine(t, up)
	seed(eng, nil, domain.Wishlist{{ID: "a"}})

	err := eng.Sync(authCtx(), false)
	require.Error(t, err)

	state := eng.State()
	assert.Equal(t, domain.StatusError, state.Status)
	assert.Equal(t, "storefront: down", state.ErrorMsg)
	assert.Len(t, state.Wishlist, 1, "local state untouched on a failed fetch")
}

func TestSyncCollapsesConcurrentCalls(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	up := &fakeUpstream{}
	up.hook = func(op, _ string) {
		if op == "fetch" {
			close(entered)
			<-release
		}
	}
	eng, _ := newTestEngine(t, up)

	done := make(chan error, 1)
	go func() { done <- eng.Sync(authCtx(), false) }()
	<-entered

	// A second sync while one is in flight is a no-op, not a second fetch.
	require.NoError(t, eng.Sync(authCtx(), false))

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, up.callCount("fetch"))
}

func TestSyncWaitsForInFlightMutation(t *testing.T) {
	up := &fakeUpstream{}
	eng, _ := newTestEngine(t, up)

	release := blockSlot(t, eng, up, "blocker")

	done := make(chan error, 1)
	go func() { done <- eng.Sync(authCtx(), false) }()

	assert.Equal(t, 0, up.callCount("fetch"),
		"sync must not read upstream mid-mutation")

	release()
	require.NoError(t, <-done)

	seq := up.sequence()
	require.NotEmpty(t, seq)
	assert.Equal(t, "add:blocker", seq[0], "mutation completes before the sync fetch")
	assert.Equal(t, 1, up.callCount("fetch"))
}

func TestGuestSyncResetsState(t *testing.T) {
	up := &fakeUpstream{}
	eng, _ := newTestEngine(t, up)
	seed(eng, nil, domain.Wishlist{{ID: "leftover"}})

	require.NoError(t, eng.Sync(context.Background(), false))

	state := eng.State()
	assert.Empty(t, state.Wishlist)
	assert.Equal(t, domain.StatusSynced, state.Status)
	assert.Empty(t, up.sequence(), "guests never hit the storefront")
}
