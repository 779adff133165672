package order

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/example/ec-order-service/internal/domain/inventory"
	"github.com/example/ec-order-service/internal/domain/product"
	"github.com/google/uuid"
)

// EventPublisher publishes order lifecycle events. Implementations must be
// safe for concurrent use.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// Policy holds the business decisions the source system left unresolved,
// made explicit configuration instead of hard-coded either way.
type Policy struct {
	// RestoreStockOnDelete restores committed stock before a hard delete.
	RestoreStockOnDelete bool
	// AllowCancelAfterShip permits the shipped -> cancelled transition.
	AllowCancelAfterShip bool
}

// DefaultPolicy matches the source behavior: deletes never touch stock,
// shipped orders can still be cancelled with restoration.
func DefaultPolicy() Policy {
	return Policy{RestoreStockOnDelete: false, AllowCancelAfterShip: true}
}

// Service owns order creation, status transitions and deletion. Stock is
// only ever mutated through the adjuster, and only from here.
type Service struct {
	orders    Store
	products  product.Store
	adjuster  *inventory.Service
	publisher EventPublisher
	policy    Policy
}

func NewService(orders Store, products product.Store, adjuster *inventory.Service, publisher EventPublisher, policy Policy) *Service {
	return &Service{
		orders:    orders,
		products:  products,
		adjuster:  adjuster,
		publisher: publisher,
		policy:    policy,
	}
}

// CreateOrderInput is a submitted cart plus the snapshots captured at
// checkout time.
type CreateOrderInput struct {
	UserID         string
	Items          []OrderItem
	Shipping       ShippingInfo
	Payment        PaymentInfo
	Pricing        Pricing
	IdempotencyKey string
}

// Create validates the submission, derives the initial status from the
// payment snapshot, and commits stock for paid orders. For paid orders every
// line item is pre-checked before any side effect: if any item lacks stock,
// no order is persisted and no stock is touched.
func (s *Service) Create(ctx context.Context, in CreateOrderInput) (*Order, error) {
	if err := validateItems(in.Items); err != nil {
		return nil, err
	}
	if err := validateShipping(in.Shipping); err != nil {
		return nil, err
	}
	if err := validatePayment(in.Payment); err != nil {
		return nil, err
	}
	if err := validatePricing(in.Pricing); err != nil {
		return nil, err
	}

	// A retried submission with a known key returns the stored order and
	// touches no stock.
	if in.IdempotencyKey != "" {
		existing, err := s.orders.GetOrderByIdempotencyKey(ctx, in.IdempotencyKey)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, ErrOrderNotFound) {
			return nil, err
		}
	}

	now := time.Now()
	o := &Order{
		ID:             uuid.New().String(),
		UserID:         in.UserID,
		Items:          in.Items,
		Shipping:       in.Shipping,
		Payment:        in.Payment,
		Pricing:        in.Pricing,
		Status:         StatusPaymentPending,
		IdempotencyKey: in.IdempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	paid := in.Payment.Status == PaymentStatusSucceeded
	if paid {
		o.Status = StatusProcessing
		paidAt := now
		o.PaidAt = &paidAt

		// Fail-fast pre-check: every referenced product must exist and
		// cover its quantity before anything is persisted.
		for _, item := range in.Items {
			p, err := s.products.GetProduct(ctx, item.ProductID)
			if err != nil {
				return nil, err
			}
			if p.Stock < item.Quantity {
				return nil, &product.InsufficientStockError{ProductID: item.ProductID, Requested: item.Quantity}
			}
		}
	}

	if err := s.orders.CreateOrder(ctx, o); err != nil {
		return nil, err
	}

	if paid {
		// Decrement in line-item order. A concurrent sale may still empty
		// stock between pre-check and decrement; that leaves the order in an
		// explicit failed state rather than silently inconsistent.
		for i, item := range o.Items {
			if _, err := s.adjuster.Adjust(ctx, item.ProductID, item.Quantity, inventory.Decrease); err != nil {
				return nil, s.failPartialCommit(ctx, o, i, err)
			}
		}
		o.StockCommitted = true
		o.UpdatedAt = time.Now()
		if err := s.orders.UpdateOrder(ctx, o); err != nil {
			return nil, err
		}
	}

	s.publish(ctx, o.ID, OrderPlaced{
		Type:     EventOrderPlaced,
		OrderID:  o.ID,
		UserID:   o.UserID,
		Items:    o.Items,
		Status:   o.Status,
		PlacedAt: o.CreatedAt,
	})

	return o, nil
}

// failPartialCommit marks the order failed after a mid-loop decrement
// failure and surfaces the condition loudly for manual reconciliation.
func (s *Service) failPartialCommit(ctx context.Context, o *Order, failedIdx int, cause error) error {
	o.Status = StatusFailed
	o.StockCommitted = false
	o.UpdatedAt = time.Now()
	if err := s.orders.UpdateOrder(ctx, o); err != nil {
		log.Printf("[Order] CRITICAL: could not mark order %s failed after partial stock commit: %v", o.ID, err)
	}

	failed := &PartialStockFailureError{
		OrderID:         o.ID,
		FailedProductID: o.Items[failedIdx].ProductID,
		FailedIndex:     failedIdx,
		Decremented:     failedIdx,
		Err:             cause,
	}
	log.Printf("[Order] %v", failed)

	s.publish(ctx, o.ID, StockCommitFailed{
		Type:            EventStockCommitFailed,
		OrderID:         o.ID,
		FailedProductID: failed.FailedProductID,
		Decremented:     failed.Decremented,
		Reason:          cause.Error(),
		FailedAt:        time.Now(),
	})

	return failed
}

// Transition validates and applies an administrator-requested status change.
// Cancelling a stock-committed order restores every item before the status
// write; the persisted order never shows cancelled while a restoration is
// outstanding.
func (s *Service) Transition(ctx context.Context, orderID string, target Status) (*Order, error) {
	o, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if o.IsTerminal() {
		return nil, o.transitionError(target)
	}
	if !o.CanTransitionTo(target) {
		return nil, o.transitionError(target)
	}
	if target == StatusCancelled && o.Status == StatusShipped && !s.policy.AllowCancelAfterShip {
		return nil, o.transitionError(target)
	}

	from := o.Status
	now := time.Now()

	if target == StatusCancelled && o.StockCommitted {
		if err := s.restoreStock(ctx, o); err != nil {
			return nil, err
		}
		o.StockCommitted = false
	}
	if target == StatusDelivered {
		o.DeliveredAt = &now
	}

	o.Status = target
	o.UpdatedAt = now
	if err := s.orders.UpdateOrder(ctx, o); err != nil {
		return nil, err
	}

	s.publish(ctx, o.ID, OrderStatusChanged{
		Type:      EventOrderStatusChanged,
		OrderID:   o.ID,
		From:      from,
		To:        target,
		ChangedAt: now,
	})

	return o, nil
}

// restoreStock increments every item back, in line-item order. A mid-loop
// failure leaves the order untouched and reports exactly which items were
// restored so the operator can reconcile before retrying.
func (s *Service) restoreStock(ctx context.Context, o *Order) error {
	restored := make([]string, 0, len(o.Items))
	for i, item := range o.Items {
		if _, err := s.adjuster.Adjust(ctx, item.ProductID, item.Quantity, inventory.Increase); err != nil {
			unrestored := make([]string, 0, len(o.Items)-i)
			for _, rest := range o.Items[i:] {
				unrestored = append(unrestored, rest.ProductID)
			}
			failed := &StockRestorationFailedError{
				OrderID:         o.ID,
				Restored:        restored,
				FailedProductID: item.ProductID,
				Unrestored:      unrestored,
				Err:             err,
			}
			log.Printf("[Order] %v", failed)

			s.publish(ctx, o.ID, StockRestorationIncomplete{
				Type:            EventStockRestorationFailed,
				OrderID:         o.ID,
				Restored:        restored,
				FailedProductID: item.ProductID,
				Unrestored:      unrestored,
				Reason:          err.Error(),
				FailedAt:        time.Now(),
			})
			return failed
		}
		restored = append(restored, item.ProductID)
	}
	return nil
}

// Delete hard-deletes an order. Whether committed stock is restored first is
// a policy decision, off by default.
func (s *Service) Delete(ctx context.Context, orderID string) error {
	o, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}

	if s.policy.RestoreStockOnDelete && o.StockCommitted {
		if err := s.restoreStock(ctx, o); err != nil {
			return err
		}
		o.StockCommitted = false
		o.UpdatedAt = time.Now()
		if err := s.orders.UpdateOrder(ctx, o); err != nil {
			return err
		}
	}

	return s.orders.DeleteOrder(ctx, orderID)
}

func (s *Service) publish(ctx context.Context, key string, event any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, key, event); err != nil {
		log.Printf("[Order] Failed to publish event for order %s: %v", key, err)
	}
}
