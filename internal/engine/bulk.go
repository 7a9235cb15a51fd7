package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	apperrors "github.com/amourflorals/wishsync/pkg/errors"
)

// Batch sizes are deliberately small: the storefront is a single-threaded
// legacy API and large concurrent bursts degrade it for everyone. Moves are
// heavier than removes, so they get the smaller batch.
const (
	removeBatchSize = 3
	moveBatchSize   = 2
)

// Inter-batch pacing. Variables so tests can shrink them.
var (
	bulkBaseDelay     = 200 * time.Millisecond
	bulkMaxExtraDelay = 2 * time.Second
)

// BulkError records one item's failure inside a bulk operation.
type BulkError struct {
	ProductID string `json:"product_id"`
	Error     string `json:"error"`
}

// BulkReport is the complete accounting of a bulk operation. Every requested
// ID lands in exactly one of Successful or Failed.
type BulkReport struct {
	Successful     []string      `json:"successful"`
	Failed         []BulkError   `json:"failed"`
	TotalProcessed int           `json:"total_processed"`
	SuccessRate    float64       `json:"success_rate"`
	Summary        string        `json:"summary"`
	Duration       time.Duration `json:"duration"`
}

// BulkRemove removes multiple products. Items are processed in small
// concurrent batches; one item failing never aborts its siblings.
func (e *Engine) BulkRemove(ctx context.Context, productIDs []string) (*BulkReport, error) {
	if err := e.requireAuth(ctx); err != nil {
		return nil, err
	}
	if len(productIDs) == 0 {
		return nil, apperrors.InvalidInput("at least one product id is required")
	}

	return e.runBulk(ctx, productIDs, removeBatchSize, e.removeBlocking), nil
}

// BulkMoveToCart moves multiple products into the cart with the given
// per-item quantity. Each item's wishlist price is used.
func (e *Engine) BulkMoveToCart(ctx context.Context, productIDs []string, quantity int) (*BulkReport, error) {
	if err := e.requireAuth(ctx); err != nil {
		return nil, err
	}
	if len(productIDs) == 0 {
		return nil, apperrors.InvalidInput("at least one product id is required")
	}
	if quantity <= 0 {
		return nil, apperrors.InvalidInput("quantity must be positive")
	}

	return e.runBulk(ctx, productIDs, moveBatchSize, func(ctx context.Context, id string) error {
		return e.moveBlocking(ctx, id, quantity)
	}), nil
}

// runBulk processes ids in batches of batchSize. Within a batch items run
// concurrently and all outcomes are collected; between batches the loop
// pauses, backing off harder the worse the previous batch went.
func (e *Engine) runBulk(ctx context.Context, ids []string, batchSize int, op func(ctx context.Context, id string) error) *BulkReport {
	start := time.Now()
	report := &BulkReport{}

batches:
	for offset := 0; offset < len(ids); offset += batchSize {
		end := offset + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[offset:end]

		errs := make([]error, len(batch))
		var wg sync.WaitGroup
		for i, id := range batch {
			wg.Add(1)
			go func(i int, id string) {
				defer wg.Done()
				errs[i] = op(ctx, id)
			}(i, id)
		}
		wg.Wait()

		failures := 0
		for i, id := range batch {
			report.TotalProcessed++
			if errs[i] != nil {
				failures++
				report.Failed = append(report.Failed, BulkError{ProductID: id, Error: errs[i].Error()})
			} else {
				report.Successful = append(report.Successful, id)
			}
		}

		if end < len(ids) {
			failureRate := float64(failures) / float64(len(batch))
			delay := bulkBaseDelay + time.Duration(failureRate*float64(bulkMaxExtraDelay))

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				// Account for everything not attempted so the report
				// still covers every requested id.
				for _, id := range ids[end:] {
					report.TotalProcessed++
					report.Failed = append(report.Failed, BulkError{ProductID: id, Error: ctx.Err().Error()})
				}
				break batches
			}
		}
	}

	report.Duration = time.Since(start)
	if report.TotalProcessed > 0 {
		report.SuccessRate = float64(len(report.Successful)) / float64(report.TotalProcessed)
	}
	report.Summary = bulkSummary(len(report.Successful), report.TotalProcessed)

	e.logger.InfoContext(ctx, "bulk operation finished",
		slog.Int("succeeded", len(report.Successful)),
		slog.Int("failed", len(report.Failed)),
		slog.Duration("duration", report.Duration))
	return report
}

func bulkSummary(succeeded, total int) string {
	switch {
	case succeeded == total:
		return fmt.Sprintf("all %d items processed", total)
	case succeeded == 0:
		return fmt.Sprintf("all %d items failed", total)
	default:
		return fmt.Sprintf("%d of %d items processed (%.0f%%)", succeeded, total, float64(succeeded)/float64(total)*100)
	}
}

// removeBlocking is the bulk variant of Remove: it waits for the mutation
// slot instead of queueing, so the report reflects real outcomes rather
// than "queued".
func (e *Engine) removeBlocking(ctx context.Context, productID string) error {
	if !e.InWishlist(productID) {
		return nil
	}

	key := pendingKey("remove", productID)
	if !e.markPending(key) {
		return apperrors.Conflict("operation already in progress for " + productID)
	}
	defer e.clearPending(key)

	if err := e.op.Acquire(ctx, 1); err != nil {
		return err
	}
	defer e.op.Release(1)

	return e.doRemove(ctx, productID)
}

// moveBlocking is the bulk variant of MoveToCart.
func (e *Engine) moveBlocking(ctx context.Context, productID string, quantity int) error {
	e.mu.Lock()
	idx := e.wishlist.IndexOf(productID)
	var price float64
	if idx >= 0 {
		price = e.wishlist[idx].Price
	}
	e.mu.Unlock()

	if idx < 0 {
		return apperrors.NotFound("wishlist item", productID)
	}

	key := pendingKey("move", productID)
	if !e.markPending(key) {
		return apperrors.Conflict("operation already in progress for " + productID)
	}
	defer e.clearPending(key)

	if err := e.op.Acquire(ctx, 1); err != nil {
		return err
	}
	defer e.op.Release(1)

	return e.doMove(ctx, productID, quantity, price)
}
