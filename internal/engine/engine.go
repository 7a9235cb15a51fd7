// Package engine keeps one shopper's wishlist consistent between the
// storefront UI and the storefront API. Mutations apply locally first so the
// UI never waits on the network, then confirm upstream; the upstream response
// is canonical and replaces local state, and a failed call restores the
// pre-mutation snapshot. A single slot serializes all upstream mutations per
// user; contended operations queue by priority and drain in the background.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/amourflorals/wishsync/internal/domain"
	"github.com/amourflorals/wishsync/internal/store"
	"github.com/amourflorals/wishsync/internal/upstream"
	apperrors "github.com/amourflorals/wishsync/pkg/errors"
)

// Operation priorities. Higher runs first when the queue drains; ties keep
// FIFO order.
const (
	prioAdd    = 1
	prioRemove = 2
	prioClear  = 3
	prioMove   = 3
)

const signInMessage = "sign in to manage your wishlist"

// Upstream is the storefront API surface the engine depends on.
type Upstream interface {
	FetchWishlist(ctx context.Context) (domain.Wishlist, error)
	AddItem(ctx context.Context, productID string) (domain.Wishlist, error)
	RemoveItem(ctx context.Context, productID string) (domain.Wishlist, error)
	Clear(ctx context.Context) (domain.Wishlist, error)
	MoveToCart(ctx context.Context, productID string, quantity int, price float64) (*upstream.MoveResult, error)
	AddCartItem(ctx context.Context, productID string, quantity int, price float64) error
	RemoveCartItem(ctx context.Context, productID string) error
}

// Publisher emits wishlist lifecycle events. Publishing is best-effort; a
// broker outage never fails a shopper-facing operation.
type Publisher interface {
	WishlistUpdated(ctx context.Context, userID string, w domain.Wishlist) error
	WishlistCleared(ctx context.Context, userID string) error
	ItemMoved(ctx context.Context, userID, productID, transactionID string) error
}

// Deps bundles the engine's collaborators.
type Deps struct {
	Upstream   Upstream
	Store      store.Store
	Events     Publisher
	Logger     *slog.Logger
	AtomicMove bool
}

// State is a read-only view of the engine for handlers.
type State struct {
	Wishlist domain.Wishlist   `json:"wishlist"`
	Status   domain.SyncStatus `json:"sync_status"`
	ErrorMsg string            `json:"error,omitempty"`
}

// Engine is the per-user synchronization engine. All methods are safe for
// concurrent use.
type Engine struct {
	userID     string
	upstream   Upstream
	store      store.Store
	events     Publisher
	logger     *slog.Logger
	atomicMove bool

	// op is the single mutation slot: every upstream mutation and every
	// sync holds it for its full duration, so operations never interleave.
	op *semaphore.Weighted

	mu       sync.Mutex
	wishlist domain.Wishlist
	status   domain.SyncStatus
	errMsg   string
	pending  map[string]struct{}

	syncing atomic.Bool
	queue   *opQueue

	// base outlives any single request; queued work and background syncs
	// run against it.
	base context.Context
}

// New creates an engine for the given user. Call Hydrate before serving
// reads if a cached wishlist should be visible immediately.
func New(base context.Context, userID string, deps Deps) *Engine {
	return &Engine{
		userID:     userID,
		upstream:   deps.Upstream,
		store:      deps.Store,
		events:     deps.Events,
		logger:     deps.Logger.With(slog.String("user_id", userID)),
		atomicMove: deps.AtomicMove,
		op:         semaphore.NewWeighted(1),
		status:     domain.StatusSynced,
		pending:    make(map[string]struct{}),
		queue:      newOpQueue(),
		base:       base,
	}
}

// State returns a copy of the current engine state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return State{
		Wishlist: e.wishlist.Clone(),
		Status:   e.status,
		ErrorMsg: e.errMsg,
	}
}

// InWishlist reports whether the product is currently in the local wishlist.
func (e *Engine) InWishlist(productID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.wishlist.Contains(productID)
}

// Count returns the number of items in the local wishlist.
func (e *Engine) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.wishlist)
}

// Hydrate loads the cached wishlist so the shopper sees their saved items
// before the first sync completes. An unreadable cache is discarded; the
// next sync rebuilds it from the storefront.
func (e *Engine) Hydrate(ctx context.Context) {
	cached, err := e.store.Load(ctx, e.userID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			e.logger.WarnContext(ctx, "discarding unreadable wishlist cache",
				slog.String("error", err.Error()))
		}
		return
	}

	e.mu.Lock()
	e.wishlist = cached.Dedupe()
	e.mu.Unlock()
}

// Add saves a product to the wishlist. The item appears locally immediately;
// the upstream confirmation happens inline when the mutation slot is free,
// otherwise the operation queues and the call returns.
func (e *Engine) Add(ctx context.Context, p domain.Product) error {
	if err := e.requireAuth(ctx); err != nil {
		return err
	}
	if p.ID == "" {
		return apperrors.InvalidInput("product id is required")
	}
	if e.InWishlist(p.ID) {
		return nil
	}

	key := pendingKey("add", p.ID)
	if !e.markPending(key) {
		return nil
	}

	if !e.op.TryAcquire(1) {
		// The slot is busy: defer the whole protocol. The snapshot is
		// taken when the operation actually runs, under the slot, so a
		// later rollback restores the state that was current then, not
		// the state at enqueue time.
		e.enqueue(key, "add", p.ID, prioAdd, upstream.TokenFromContext(ctx),
			func(ctx context.Context) error { return e.doAdd(ctx, p) })
		return nil
	}

	defer e.op.Release(1)
	defer e.clearPending(key)
	return e.doAdd(ctx, p)
}

// Remove deletes a product from the wishlist. Removing an absent product is
// a no-op.
func (e *Engine) Remove(ctx context.Context, productID string) error {
	if err := e.requireAuth(ctx); err != nil {
		return err
	}
	if productID == "" {
		return apperrors.InvalidInput("product id is required")
	}
	if !e.InWishlist(productID) {
		return nil
	}

	key := pendingKey("remove", productID)
	if !e.markPending(key) {
		return nil
	}

	if !e.op.TryAcquire(1) {
		e.enqueue(key, "remove", productID, prioRemove, upstream.TokenFromContext(ctx),
			func(ctx context.Context) error { return e.doRemove(ctx, productID) })
		return nil
	}

	defer e.op.Release(1)
	defer e.clearPending(key)
	return e.doRemove(ctx, productID)
}

// Clear empties the wishlist. Clearing an already empty wishlist is a no-op.
func (e *Engine) Clear(ctx context.Context) error {
	if err := e.requireAuth(ctx); err != nil {
		return err
	}
	if e.Count() == 0 {
		return nil
	}

	key := pendingKey("clear", "")
	if !e.markPending(key) {
		return nil
	}

	if !e.op.TryAcquire(1) {
		e.enqueue(key, "clear", "", prioClear, upstream.TokenFromContext(ctx),
			func(ctx context.Context) error { return e.doClear(ctx) })
		return nil
	}

	defer e.op.Release(1)
	defer e.clearPending(key)
	return e.doClear(ctx)
}

// MoveToCart transfers a wishlist item into the shopping cart. Unlike Add
// and Remove, moving a product that is not in the wishlist is an error: the
// shopper asked for a transfer that cannot happen.
func (e *Engine) MoveToCart(ctx context.Context, productID string, quantity int, price float64) error {
	if err := e.requireAuth(ctx); err != nil {
		return err
	}
	if productID == "" {
		return apperrors.InvalidInput("product id is required")
	}
	if quantity <= 0 {
		return apperrors.InvalidInput("quantity must be positive")
	}
	if !e.InWishlist(productID) {
		return apperrors.NotFound("wishlist item", productID)
	}

	key := pendingKey("move", productID)
	if !e.markPending(key) {
		return nil
	}

	if !e.op.TryAcquire(1) {
		e.enqueue(key, "move", productID, prioMove, upstream.TokenFromContext(ctx),
			func(ctx context.Context) error { return e.doMove(ctx, productID, quantity, price) })
		return nil
	}

	defer e.op.Release(1)
	defer e.clearPending(key)
	return e.doMove(ctx, productID, quantity, price)
}

// doAdd runs the full add protocol while holding the mutation slot. A queued
// add may execute after a sync already brought the item in, so the optimistic
// apply skips an entry that is already present.
func (e *Engine) doAdd(ctx context.Context, p domain.Product) error {
	snap := e.applyOptimistic(func(w domain.Wishlist) domain.Wishlist {
		if w.Contains(p.ID) {
			return w
		}
		return append(w, p)
	})
	return e.confirmAdd(ctx, snap, p)
}

// confirmAdd completes an add whose optimistic half is already visible. A
// failure restores snap.
func (e *Engine) confirmAdd(ctx context.Context, snap domain.Snapshot, p domain.Product) error {
	canonical, err := e.upstream.AddItem(ctx, p.ID)
	if err != nil {
		e.rollback(ctx, snap, err, "add", p.ID)
		return err
	}

	e.commit(ctx, canonical)
	operationsTotal.WithLabelValues("add", "success").Inc()
	e.logger.InfoContext(ctx, "wishlist item added",
		slog.String("product_id", p.ID),
		slog.Int("count", len(canonical)))
	return nil
}

// doRemove runs the full remove protocol while holding the mutation slot.
func (e *Engine) doRemove(ctx context.Context, productID string) error {
	snap := e.applyOptimistic(func(w domain.Wishlist) domain.Wishlist {
		return w.Without(productID)
	})
	return e.confirmRemove(ctx, snap, productID)
}

func (e *Engine) confirmRemove(ctx context.Context, snap domain.Snapshot, productID string) error {
	canonical, err := e.upstream.RemoveItem(ctx, productID)
	if err != nil {
		e.rollback(ctx, snap, err, "remove", productID)
		return err
	}

	e.commit(ctx, canonical)
	operationsTotal.WithLabelValues("remove", "success").Inc()
	e.logger.InfoContext(ctx, "wishlist item removed",
		slog.String("product_id", productID),
		slog.Int("count", len(canonical)))
	return nil
}

// doClear runs the full clear protocol while holding the mutation slot.
func (e *Engine) doClear(ctx context.Context) error {
	snap := e.applyOptimistic(func(domain.Wishlist) domain.Wishlist {
		return domain.Wishlist{}
	})
	return e.confirmClear(ctx, snap)
}

func (e *Engine) confirmClear(ctx context.Context, snap domain.Snapshot) error {
	canonical, err := e.upstream.Clear(ctx)
	if err != nil {
		e.rollback(ctx, snap, err, "clear", "")
		return err
	}

	e.commit(ctx, canonical)
	operationsTotal.WithLabelValues("clear", "success").Inc()
	e.logger.InfoContext(ctx, "wishlist cleared")

	if pubErr := e.events.WishlistCleared(ctx, e.userID); pubErr != nil {
		e.logger.WarnContext(ctx, "publish wishlist.cleared",
			slog.String("error", pubErr.Error()))
	}
	return nil
}

// requireAuth rejects guest traffic before any state changes.
func (e *Engine) requireAuth(ctx context.Context) error {
	if upstream.TokenFromContext(ctx) == "" {
		return apperrors.Unauthorized(signInMessage)
	}
	return nil
}

// applyOptimistic snapshots current state, applies the mutation locally and
// clears any stale error banner. The returned snapshot feeds rollback.
func (e *Engine) applyOptimistic(mutate func(domain.Wishlist) domain.Wishlist) domain.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := domain.NewSnapshot(e.wishlist, e.errMsg, e.status)
	e.wishlist = mutate(e.wishlist)
	e.errMsg = ""
	return snap
}

// commit adopts the upstream's canonical wishlist, persists it and announces
// the update. Canonical state always replaces local state wholesale.
func (e *Engine) commit(ctx context.Context, canonical domain.Wishlist) {
	canonical = canonical.Dedupe()

	e.mu.Lock()
	e.wishlist = canonical
	e.errMsg = ""
	e.mu.Unlock()

	e.persist(ctx)

	if err := e.events.WishlistUpdated(ctx, e.userID, canonical); err != nil {
		e.logger.WarnContext(ctx, "publish wishlist.updated",
			slog.String("error", err.Error()))
	}
}

// rollback restores the pre-mutation snapshot, then surfaces a user-facing
// message derived from the failure. The restore is complete before the
// message is set so the UI never pairs an error banner with half-applied
// state.
func (e *Engine) rollback(ctx context.Context, snap domain.Snapshot, cause error, op, productID string) {
	e.mu.Lock()
	e.wishlist = snap.Wishlist
	e.status = snap.Status
	e.errMsg = userMessage(cause)
	e.mu.Unlock()

	rollbacksTotal.Inc()
	operationsTotal.WithLabelValues(op, "rolled_back").Inc()
	e.logger.WarnContext(ctx, "optimistic mutation rolled back",
		slog.String("operation", op),
		slog.String("product_id", productID),
		slog.String("error", cause.Error()))
}

// persist writes the current wishlist to the cache. Cache failures are
// logged and swallowed; the storefront remains the source of truth.
func (e *Engine) persist(ctx context.Context) {
	e.mu.Lock()
	w := e.wishlist.Clone()
	e.mu.Unlock()

	if err := e.store.Save(ctx, e.userID, w); err != nil {
		e.logger.WarnContext(ctx, "persist wishlist cache",
			slog.String("error", err.Error()))
	}
}

// markPending records an in-flight operation key. Returns false when an
// identical operation is already pending, which makes rapid double-clicks
// collapse into one upstream call.
func (e *Engine) markPending(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.pending[key]; exists {
		return false
	}
	e.pending[key] = struct{}{}
	return true
}

func (e *Engine) clearPending(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.pending, key)
}

func pendingKey(op, productID string) string {
	if productID == "" {
		return op
	}
	return op + "_" + productID
}

// userMessage converts an internal error into copy safe to show a shopper.
func userMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "could not update your wishlist, please try again"
}
