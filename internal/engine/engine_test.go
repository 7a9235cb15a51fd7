package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amourflorals/wishsync/internal/domain"
	"github.com/amourflorals/wishsync/internal/store/memory"
	"github.com/amourflorals/wishsync/internal/upstream"
	apperrors "github.com/amourflorals/wishsync/pkg/errors"
)

// fakeUpstream simulates the storefront API: it maintains its own canonical
// wishlist and records every call in order. hook, when set, runs at the start
// of each call so tests can block or fail specific operations.
type fakeUpstream struct {
	mu        sync.Mutex
	canonical domain.Wishlist
	calls     []string

	hook func(op, productID string)

	fetchErr      error
	addErr        error
	addErrFor     map[string]error
	removeErr     error
	removeErrFor  map[string]error
	clearErr      error
	moveErr       error
	cartAddErr    error
	cartRemoveErr error

	movePrices map[string]float64
}

func (f *fakeUpstream) enter(op, productID string) {
	if f.hook != nil {
		f.hook(op, productID)
	}
	f.mu.Lock()
	f.calls = append(f.calls, op+":"+productID)
	f.mu.Unlock()
}

func (f *fakeUpstream) sequence() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeUpstream) callCount(op string) int {
	n := 0
	for _, c := range f.sequence() {
		if len(c) >= len(op) && c[:len(op)] == op {
			n++
		}
	}
	return n
}

func (f *fakeUpstream) setCanonical(w domain.Wishlist) {
	f.mu.Lock()
	f.canonical = w.Clone()
	f.mu.Unlock()
}

func (f *fakeUpstream) FetchWishlist(context.Context) (domain.Wishlist, error) {
	f.enter("fetch", "")
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.canonical.Clone(), nil
}

func (f *fakeUpstream) AddItem(_ context.Context, productID string) (domain.Wishlist, error) {
	f.enter("add", productID)
	if f.addErr != nil {
		return nil, f.addErr
	}
	if err := f.addErrFor[productID]; err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.canonical.Contains(productID) {
		f.canonical = append(f.canonical, domain.Product{ID: productID})
	}
	return f.canonical.Clone(), nil
}

func (f *fakeUpstream) RemoveItem(_ context.Context, productID string) (domain.Wishlist, error) {
	f.enter("remove", productID)
	if f.removeErr != nil {
		return nil, f.removeErr
	}
	if err := f.removeErrFor[productID]; err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.canonical = f.canonical.Without(productID)
	return f.canonical.Clone(), nil
}

func (f *fakeUpstream) Clear(context.Context) (domain.Wishlist, error) {
	f.enter("clear", "")
	if f.clearErr != nil {
		return nil, f.clearErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.canonical = domain.Wishlist{}
	return domain.Wishlist{}, nil
}

func (f *fakeUpstream) MoveToCart(_ context.Context, productID string, _ int, price float64) (*upstream.MoveResult, error) {
	f.enter("move", productID)
	if f.moveErr != nil {
		return nil, f.moveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.movePrices == nil {
		f.movePrices = make(map[string]float64)
	}
	f.movePrices[productID] = price
	f.canonical = f.canonical.Without(productID)
	return &upstream.MoveResult{Wishlist: f.canonical.Clone(), TransactionID: "txn-1"}, nil
}

func (f *fakeUpstream) AddCartItem(_ context.Context, productID string, _ int, _ float64) error {
	f.enter("cart_add", productID)
	return f.cartAddErr
}

func (f *fakeUpstream) RemoveCartItem(_ context.Context, productID string) error {
	f.enter("cart_remove", productID)
	return f.cartRemoveErr
}

// fakePublisher records event emissions.
type fakePublisher struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (p *fakePublisher) record(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, name)
	return p.err
}

func (p *fakePublisher) WishlistUpdated(_ context.Context, _ string, _ domain.Wishlist) error {
	return p.record("updated")
}

func (p *fakePublisher) WishlistCleared(_ context.Context, _ string) error {
	return p.record("cleared")
}

func (p *fakePublisher) ItemMoved(_ context.Context, _, _, _ string) error {
	return p.record("moved")
}

func (p *fakePublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	copy(out, p.events)
	return out
}

func newTestEngine(t *testing.T, up *fakeUpstream) (*Engine, *fakePublisher) {
	t.Helper()

	pub := &fakePublisher{}
	eng := New(context.Background(), "user-1", Deps{
		Upstream:   up,
		Store:      memory.New(),
		Events:     pub,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		AtomicMove: true,
	})
	return eng, pub
}

func authCtx() context.Context {
	return upstream.WithToken(context.Background(), "tok-test")
}

func seed(eng *Engine, up *fakeUpstream, w domain.Wishlist) {
	eng.mu.Lock()
	eng.wishlist = w.Clone()
	eng.mu.Unlock()
	if up != nil {
		up.setCanonical(w)
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestAddAppliesOptimisticallyBeforeConfirmation(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	up := &fakeUpstream{}
	up.hook = func(op, _ string) {
		if op == "add" {
			close(entered)
			<-release
		}
	}
	eng, _ := newTestEngine(t, up)

	done := make(chan error, 1)
	go func() {
		done <- eng.Add(authCtx(), domain.Product{ID: "rose-001", Name: "Red Rose"})
	}()

	<-entered
	assert.True(t, eng.InWishlist("rose-001"), "item must be visible while the call is in flight")

	close(release)
	require.NoError(t, <-done)

	state := eng.State()
	require.Len(t, state.Wishlist, 1)
	assert.Equal(t, "rose-001", state.Wishlist[0].ID)
	assert.Empty(t, state.ErrorMsg)
}

func TestAddRollsBackOnUpstreamFailure(t *testing.T) {
	up := &fakeUpstream{addErr: apperrors.ServiceUnavailable("storefront: maintenance window")}
	eng, _ := newTestEngine(t, up)
	seed(eng, up, domain.Wishlist{{ID: "tulip-002", Name: "Tulip Mix"}})

	before := eng.State()
	err := eng.Add(authCtx(), domain.Product{ID: "rose-001"})
	require.Error(t, err)

	after := eng.State()
	assert.Equal(t, before.Wishlist, after.Wishlist, "wishlist restored exactly")
	assert.Equal(t, before.Status, after.Status)
	assert.Equal(t, "storefront: maintenance window", after.ErrorMsg)
}

func TestAddExistingItemIsNoOp(t *testing.T) {
	up := &fakeUpstream{}
	eng, _ := newTestEngine(t, up)
	seed(eng, up, domain.Wishlist{{ID: "rose-001"}})

	require.NoError(t, eng.Add(authCtx(), domain.Product{ID: "rose-001"}))
	assert.Empty(t, up.sequence(), "no upstream call for an item already present")
}

func TestRemoveAdoptsCanonicalState(t *testing.T) {
	up := &fakeUpstream{}
	eng, pub := newTestEngine(t, up)
	seed(eng, up, domain.Wishlist{{ID: "rose-001"}, {ID: "tulip-002"}})

	require.NoError(t, eng.Remove(authCtx(), "rose-001"))

	state := eng.State()
	require.Len(t, state.Wishlist, 1)
	assert.Equal(t, "tulip-002", state.Wishlist[0].ID)
	assert.Equal(t, []string{"updated"}, pub.published())
}

func TestRemoveAbsentItemIsNoOp(t *testing.T) {
	up := &fakeUpstream{}
	eng, _ := newTestEngine(t, up)

	require.NoError(t, eng.Remove(authCtx(), "ghost"))
	assert.Empty(t, up.sequence())
}

func TestRemoveRollsBackOnUpstreamFailure(t *testing.T) {
	up := &fakeUpstream{removeErr: errors.New("connection reset")}
	eng, _ := newTestEngine(t, up)
	seed(eng, up, domain.Wishlist{{ID: "rose-001"}, {ID: "tulip-002"}})

	err := eng.Remove(authCtx(), "rose-001")
	require.Error(t, err)

	state := eng.State()
	assert.Len(t, state.Wishlist, 2, "removed item restored")
	assert.Equal(t, "could not update your wishlist, please try again", state.ErrorMsg,
		"internal error text never shown to the shopper")
}

func TestClear(t *testing.T) {
	up := &fakeUpstream{}
	eng, pub := newTestEngine(t, up)
	seed(eng, up, domain.Wishlist{{ID: "a"}, {ID: "b"}})

	require.NoError(t, eng.Clear(authCtx()))
	assert.Empty(t, eng.State().Wishlist)
	assert.Equal(t, []string{"updated", "cleared"}, pub.published())
}

func TestClearEmptyWishlistIsNoOp(t *testing.T) {
	up := &fakeUpstream{}
	eng, _ := newTestEngine(t, up)

	require.NoError(t, eng.Clear(authCtx()))
	assert.Empty(t, up.sequence())
}

func TestGuestMutationsRejected(t *testing.T) {
	up := &fakeUpstream{}
	eng, _ := newTestEngine(t, up)
	ctx := context.Background() // no token

	assert.ErrorIs(t, eng.Add(ctx, domain.Product{ID: "a"}), apperrors.ErrUnauthorized)
	assert.ErrorIs(t, eng.Remove(ctx, "a"), apperrors.ErrUnauthorized)
	assert.ErrorIs(t, eng.Clear(ctx), apperrors.ErrUnauthorized)
	assert.ErrorIs(t, eng.MoveToCart(ctx, "a", 1, 1.0), apperrors.ErrUnauthorized)

	assert.Empty(t, up.sequence(), "guest requests never reach the storefront")
	assert.Empty(t, eng.State().Wishlist)
}

func TestAddValidation(t *testing.T) {
	eng, _ := newTestEngine(t, &fakeUpstream{})

	assert.ErrorIs(t, eng.Add(authCtx(), domain.Product{}), apperrors.ErrInvalidInput)
	assert.ErrorIs(t, eng.MoveToCart(authCtx(), "a", 0, 1.0), apperrors.ErrInvalidInput)
}

func TestEventFailureDoesNotFailOperation(t *testing.T) {
	up := &fakeUpstream{}
	eng, pub := newTestEngine(t, up)
	pub.err = errors.New("broker down")

	require.NoError(t, eng.Add(authCtx(), domain.Product{ID: "rose-001"}))
	assert.True(t, eng.InWishlist("rose-001"))
}

func TestHydrateLoadsCachedWishlist(t *testing.T) {
	up := &fakeUpstream{}
	eng, _ := newTestEngine(t, up)

	require.NoError(t, eng.store.Save(context.Background(), "user-1",
		domain.Wishlist{{ID: "rose-001"}, {ID: "rose-001"}, {ID: "tulip-002"}}))

	eng.Hydrate(context.Background())

	state := eng.State()
	assert.Len(t, state.Wishlist, 2, "duplicates collapse on hydrate")
}
