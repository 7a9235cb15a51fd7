package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/amourflorals/wishsync/internal/domain"
	"github.com/amourflorals/wishsync/internal/upstream"
	apperrors "github.com/amourflorals/wishsync/pkg/errors"
)

// ResolveStats summarizes a merge for logging.
type ResolveStats struct {
	Backend    int // entries the storefront reported
	LocalOnly  int // local entries the storefront had not seen, kept
	CachedOnly int // stale cache entries absent from the merge, dropped
}

// Resolve merges the storefront's wishlist with the local one. The
// storefront wins for every identity it knows about; local entries it has
// never seen are optimistic updates still in flight and are appended in
// local order rather than discarded. The cached copy does not influence the
// result, it only feeds divergence stats.
func Resolve(backend, cached, current domain.Wishlist) (domain.Wishlist, ResolveStats) {
	merged := backend.Dedupe()
	stats := ResolveStats{Backend: len(merged)}

	seen := make(map[string]struct{}, len(merged))
	for _, p := range merged {
		seen[p.ID] = struct{}{}
	}

	for _, p := range current {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		merged = append(merged, p)
		stats.LocalOnly++
	}

	for _, p := range cached {
		if _, ok := seen[p.ID]; !ok {
			stats.CachedOnly++
		}
	}

	return merged, stats
}

// Sync reconciles local state with the storefront. Concurrent syncs collapse
// into one unless force is set; force is used after a failed compensation,
// when local state can no longer be trusted. Sync waits for the mutation
// slot, so it never observes (or clobbers) a half-finished operation.
func (e *Engine) Sync(ctx context.Context, force bool) error {
	if upstream.TokenFromContext(ctx) == "" {
		// Guest session: nothing to fetch, drop any leftover state from
		// a previous sign-in.
		e.mu.Lock()
		e.wishlist = domain.Wishlist{}
		e.status = domain.StatusSynced
		e.errMsg = ""
		e.mu.Unlock()
		return nil
	}

	if !force && !e.syncing.CompareAndSwap(false, true) {
		return nil
	}
	if force {
		e.syncing.Store(true)
	}
	defer e.syncing.Store(false)

	if err := e.op.Acquire(ctx, 1); err != nil {
		return err
	}
	defer e.op.Release(1)

	start := time.Now()

	e.mu.Lock()
	e.status = domain.StatusSyncing
	current := e.wishlist.Clone()
	e.mu.Unlock()

	backend, err := e.upstream.FetchWishlist(ctx)
	if err != nil {
		e.mu.Lock()
		e.status = domain.StatusError
		e.errMsg = userMessage(err)
		e.mu.Unlock()

		syncsTotal.WithLabelValues("error").Inc()
		e.logger.WarnContext(ctx, "wishlist sync failed",
			slog.String("error", err.Error()))
		return err
	}

	cached, loadErr := e.store.Load(ctx, e.userID)
	if loadErr != nil && !errors.Is(loadErr, apperrors.ErrNotFound) {
		e.logger.WarnContext(ctx, "ignoring unreadable wishlist cache during sync",
			slog.String("error", loadErr.Error()))
	}

	merged, stats := Resolve(backend, cached, current)

	e.mu.Lock()
	e.wishlist = merged
	e.status = domain.StatusSynced
	e.errMsg = ""
	e.mu.Unlock()

	e.persist(ctx)

	syncsTotal.WithLabelValues("success").Inc()
	syncDuration.Observe(time.Since(start).Seconds())
	e.logger.InfoContext(ctx, "wishlist synced",
		slog.Int("backend", stats.Backend),
		slog.Int("local_only", stats.LocalOnly),
		slog.Int("cached_stale", stats.CachedOnly),
		slog.Bool("forced", force))
	return nil
}
