package order

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type Status string

const (
	StatusPaymentPending Status = "payment_pending"
	StatusProcessing     Status = "processing"
	StatusShipped        Status = "shipped"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
	StatusFailed         Status = "failed"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrEmptyOrder         = errors.New("order must have at least one item")
	ErrInvalidItem        = errors.New("order item is invalid")
	ErrIncompleteShipping = errors.New("shipping information is incomplete")
	ErrMissingPayment     = errors.New("payment information is missing")
	ErrIncompletePricing  = errors.New("pricing information is incomplete")
	ErrInvalidStatus      = errors.New("unknown order status")
	ErrInvalidTransition  = errors.New("invalid order status transition")
	ErrOrderTerminal      = errors.New("order is in a terminal status")
)

// PaymentStatusSucceeded is the payment snapshot status that marks an order
// as paid at creation time and triggers stock commitment.
const PaymentStatusSucceeded = "succeeded"

type OrderItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice int    `json:"unit_price"`
}

// ShippingInfo is copied at creation time and never mutated afterwards.
type ShippingInfo struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	State      string `json:"state"`
	Country    string `json:"country"`
	PostalCode string `json:"postal_code"`
	Phone      string `json:"phone"`
}

// PaymentInfo is the payment processor snapshot captured at creation time.
type PaymentInfo struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Pricing holds the totals captured at creation, in integer cents. They are
// never recomputed from current product prices.
type Pricing struct {
	ItemsTotal int `json:"items_total"`
	Tax        int `json:"tax"`
	Shipping   int `json:"shipping"`
	GrandTotal int `json:"grand_total"`
}

type Order struct {
	ID             string       `json:"id"`
	UserID         string       `json:"user_id"`
	Items          []OrderItem  `json:"items"`
	Shipping       ShippingInfo `json:"shipping"`
	Payment        PaymentInfo  `json:"payment"`
	Pricing        Pricing      `json:"pricing"`
	Status         Status       `json:"status"`
	PaidAt         *time.Time   `json:"paid_at,omitempty"`
	DeliveredAt    *time.Time   `json:"delivered_at,omitempty"`
	StockCommitted bool         `json:"stock_committed"`
	IdempotencyKey string       `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// validTransitions defines allowed state transitions
var validTransitions = map[Status][]Status{
	StatusPaymentPending: {StatusProcessing, StatusCancelled, StatusFailed},
	StatusProcessing:     {StatusShipped, StatusCancelled},
	StatusShipped:        {StatusDelivered, StatusCancelled},
	StatusDelivered:      {}, // terminal state
	StatusCancelled:      {}, // terminal state
	StatusFailed:         {}, // terminal state
}

// ParseStatus converts a wire string into a Status, rejecting anything that
// is not a declared member of the enum.
func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if _, ok := validTransitions[status]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return status, nil
}

// IsTerminal reports whether the order's status has no outgoing transitions.
func (o *Order) IsTerminal() bool {
	return len(validTransitions[o.Status]) == 0
}

// CanTransitionTo checks if the order can transition to the target status
func (o *Order) CanTransitionTo(target Status) bool {
	allowed, exists := validTransitions[o.Status]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == target {
			return true
		}
	}
	return false
}

// transitionError returns an appropriate error for an invalid transition
func (o *Order) transitionError(target Status) error {
	if o.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrOrderTerminal, o.Status)
	}
	return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidTransition, o.Status, target)
}

// Store is the persistence contract for orders.
type Store interface {
	CreateOrder(ctx context.Context, o *Order) error
	GetOrder(ctx context.Context, id string) (*Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, key string) (*Order, error)
	UpdateOrder(ctx context.Context, o *Order) error
	DeleteOrder(ctx context.Context, id string) error
	ListOrdersByUser(ctx context.Context, userID string) ([]*Order, error)
	ListOrders(ctx context.Context) ([]*Order, error)
}

func validateItems(items []OrderItem) error {
	if len(items) == 0 {
		return ErrEmptyOrder
	}
	for i, item := range items {
		if item.ProductID == "" {
			return fmt.Errorf("%w: item %d has no product id", ErrInvalidItem, i)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: item %d has quantity %d", ErrInvalidItem, i, item.Quantity)
		}
	}
	return nil
}

func validateShipping(s ShippingInfo) error {
	missing := func(field string) error {
		return fmt.Errorf("%w: %s is required", ErrIncompleteShipping, field)
	}
	switch {
	case s.Address == "":
		return missing("address")
	case s.City == "":
		return missing("city")
	case s.State == "":
		return missing("state")
	case s.Country == "":
		return missing("country")
	case s.PostalCode == "":
		return missing("postal code")
	case s.Phone == "":
		return missing("phone")
	}
	return nil
}

func validatePayment(p PaymentInfo) error {
	if p.ID == "" || p.Status == "" {
		return ErrMissingPayment
	}
	return nil
}

func validatePricing(p Pricing) error {
	if p.ItemsTotal <= 0 || p.GrandTotal <= 0 {
		return ErrIncompletePricing
	}
	if p.Tax < 0 || p.Shipping < 0 {
		return ErrIncompletePricing
	}
	return nil
}
