package order

import (
	"errors"
	"fmt"
)

var (
	// ErrPartialStockFailure marks an order that was persisted but whose
	// stock commitment did not complete. The order is left in StatusFailed
	// for manual reconciliation; it is never silently treated as success.
	ErrPartialStockFailure = errors.New("order persisted with partial stock commitment")

	// ErrStockRestorationFailed marks a cancellation whose stock restoration
	// did not complete. The order's status is left unchanged.
	ErrStockRestorationFailed = errors.New("stock restoration failed during cancellation")
)

// PartialStockFailureError reports which line item failed to decrement and
// how many preceding items had already been decremented when it did.
type PartialStockFailureError struct {
	OrderID         string
	FailedProductID string
	FailedIndex     int
	Decremented     int
	Err             error
}

func (e *PartialStockFailureError) Error() string {
	return fmt.Sprintf("order %s: stock decrement failed for product %s (item %d, %d items already decremented): %v",
		e.OrderID, e.FailedProductID, e.FailedIndex, e.Decremented, e.Err)
}

func (e *PartialStockFailureError) Unwrap() error { return e.Err }

func (e *PartialStockFailureError) Is(target error) bool {
	return target == ErrPartialStockFailure
}

// StockRestorationFailedError reports exactly which items were restored and
// which were not, so an operator can reconcile before retrying.
type StockRestorationFailedError struct {
	OrderID         string
	Restored        []string
	FailedProductID string
	Unrestored      []string
	Err             error
}

func (e *StockRestorationFailedError) Error() string {
	return fmt.Sprintf("order %s: stock restoration failed for product %s (restored: %v, unrestored: %v): %v",
		e.OrderID, e.FailedProductID, e.Restored, e.Unrestored, e.Err)
}

func (e *StockRestorationFailedError) Unwrap() error { return e.Err }

func (e *StockRestorationFailedError) Is(target error) bool {
	return target == ErrStockRestorationFailed
}
