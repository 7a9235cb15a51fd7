package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/amourflorals/wishsync/internal/domain"
	"github.com/amourflorals/wishsync/internal/upstream"
)

// doMove runs the full move protocol while holding the mutation slot.
func (e *Engine) doMove(ctx context.Context, productID string, quantity int, price float64) error {
	snap := e.applyOptimistic(func(w domain.Wishlist) domain.Wishlist {
		return w.Without(productID)
	})
	return e.confirmMove(ctx, snap, productID, quantity, price)
}

// confirmMove completes a move whose optimistic half is already visible. The
// atomic storefront endpoint is preferred; storefront versions without it
// fall back to the legacy two-call flow with compensation.
func (e *Engine) confirmMove(ctx context.Context, snap domain.Snapshot, productID string, quantity int, price float64) error {
	if !e.atomicMove {
		return e.moveLegacy(ctx, snap, productID, quantity, price)
	}

	res, err := e.upstream.MoveToCart(ctx, productID, quantity, price)
	if err == nil {
		e.commit(ctx, res.Wishlist)
		operationsTotal.WithLabelValues("move", "success").Inc()
		e.logger.InfoContext(ctx, "wishlist item moved to cart",
			slog.String("product_id", productID),
			slog.String("transaction_id", res.TransactionID))

		if pubErr := e.events.ItemMoved(ctx, e.userID, productID, res.TransactionID); pubErr != nil {
			e.logger.WarnContext(ctx, "publish wishlist.item_moved",
				slog.String("error", pubErr.Error()))
		}
		return nil
	}

	if errors.Is(err, upstream.ErrAtomicMoveUnsupported) {
		return e.moveLegacy(ctx, snap, productID, quantity, price)
	}

	e.rollback(ctx, snap, err, "move", productID)
	return err
}

// compensator pairs a completed saga step with the call that undoes it.
type compensator struct {
	step *domain.SagaStep
	undo func(ctx context.Context) error
}

// moveLegacy performs a move as two sequential storefront calls: remove from
// wishlist, then add to cart. If a later call fails, the completed steps are
// compensated in reverse order. A compensation failure means neither local
// state nor our picture of the storefront can be trusted, so the saga ends
// in rollback_failed and a forced full sync repairs state.
func (e *Engine) moveLegacy(ctx context.Context, snap domain.Snapshot, productID string, quantity int, price float64) error {
	moveFallbacksTotal.Inc()
	saga := domain.NewMoveSaga(productID)
	var undo []compensator

	canonical, err := e.upstream.RemoveItem(ctx, productID)
	if err != nil {
		saga.Step(domain.StepRemoveFromWishlist).Fail(err.Error())
		saga.State = domain.MoveRollingBack
		return e.failMoveSaga(ctx, saga, snap, undo, productID, err)
	}
	saga.Step(domain.StepRemoveFromWishlist).Complete()
	saga.State = domain.MoveWishlistRemoved
	undo = append(undo, compensator{
		step: saga.Step(domain.StepRemoveFromWishlist),
		undo: func(ctx context.Context) error {
			_, addErr := e.upstream.AddItem(ctx, productID)
			return addErr
		},
	})

	if err := e.upstream.AddCartItem(ctx, productID, quantity, price); err != nil {
		saga.Step(domain.StepAddToCart).Fail(err.Error())
		saga.State = domain.MoveRollingBack
		return e.failMoveSaga(ctx, saga, snap, undo, productID, err)
	}
	saga.Step(domain.StepAddToCart).Complete()
	undo = append(undo, compensator{
		step: saga.Step(domain.StepAddToCart),
		undo: func(ctx context.Context) error {
			return e.upstream.RemoveCartItem(ctx, productID)
		},
	})

	saga.State = domain.MoveCompleted
	e.commit(ctx, canonical)
	operationsTotal.WithLabelValues("move", "success").Inc()
	e.logger.InfoContext(ctx, "wishlist item moved to cart via legacy flow",
		slog.String("product_id", productID))

	if pubErr := e.events.ItemMoved(ctx, e.userID, productID, ""); pubErr != nil {
		e.logger.WarnContext(ctx, "publish wishlist.item_moved",
			slog.String("error", pubErr.Error()))
	}
	return nil
}

// failMoveSaga compensates completed steps in reverse order, restores the
// local snapshot and reports the original failure. If any compensation call
// fails the storefront is left in an unknown state; a forced sync re-derives
// local state from whatever the storefront now holds.
func (e *Engine) failMoveSaga(ctx context.Context, saga *domain.MoveSaga, snap domain.Snapshot, undo []compensator, productID string, cause error) error {
	for i := len(undo) - 1; i >= 0; i-- {
		if compErr := undo[i].undo(ctx); compErr != nil {
			saga.State = domain.MoveRollbackFailed
			operationsTotal.WithLabelValues("move", "rollback_failed").Inc()
			e.logger.ErrorContext(ctx, "move compensation failed, forcing resync",
				slog.String("product_id", productID),
				slog.String("step", undo[i].step.Name),
				slog.String("compensation_error", compErr.Error()),
				slog.String("cause", cause.Error()))

			e.rollback(ctx, snap, cause, "move", productID)
			if syncErr := e.syncAfterFailedCompensation(ctx); syncErr != nil {
				e.logger.ErrorContext(ctx, "resync after failed compensation also failed",
					slog.String("error", syncErr.Error()))
			}
			return cause
		}
		undo[i].step.Compensate()
	}

	saga.State = domain.MoveRolledBack
	e.rollback(ctx, snap, cause, "move", productID)
	return cause
}

// syncAfterFailedCompensation refetches canonical state directly. The caller
// already holds the mutation slot, so this cannot go through Sync.
func (e *Engine) syncAfterFailedCompensation(ctx context.Context) error {
	backend, err := e.upstream.FetchWishlist(ctx)
	if err != nil {
		e.mu.Lock()
		e.status = domain.StatusError
		e.mu.Unlock()
		return err
	}

	e.mu.Lock()
	e.wishlist = backend.Dedupe()
	e.status = domain.StatusSynced
	e.mu.Unlock()

	e.persist(ctx)
	return nil
}
