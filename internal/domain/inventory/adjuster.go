package inventory

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/example/ec-order-service/internal/domain/product"
)

var ErrInvalidQuantity = errors.New("quantity must be positive")

// Direction indicates which way a stock adjustment moves.
type Direction string

const (
	Increase Direction = "increase"
	Decrease Direction = "decrease"
)

const EventStockAdjusted = "stock.adjusted"

// StockAdjusted is published after every successful adjustment.
type StockAdjusted struct {
	Type       string    `json:"type"`
	ProductID  string    `json:"product_id"`
	Quantity   int       `json:"quantity"`
	Direction  Direction `json:"direction"`
	NewStock   int       `json:"new_stock"`
	AdjustedAt time.Time `json:"adjusted_at"`
}

// EventPublisher publishes inventory events. Implementations must be safe for
// concurrent use.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// Service applies signed stock deltas to one product at a time. The
// non-negativity check for decreases happens inside the store's conditional
// update, not here, so concurrent decreases serialize at the store boundary.
type Service struct {
	products  product.Store
	publisher EventPublisher
}

func NewService(products product.Store, publisher EventPublisher) *Service {
	return &Service{products: products, publisher: publisher}
}

// Adjust applies the delta and returns the product's new stock level.
// Decrease fails with product.ErrInsufficientStock when stock < quantity and
// product.ErrProductNotFound when the product does not exist.
func (s *Service) Adjust(ctx context.Context, productID string, quantity int, direction Direction) (int, error) {
	if quantity <= 0 {
		return 0, ErrInvalidQuantity
	}

	var (
		newStock int
		err      error
	)
	switch direction {
	case Decrease:
		newStock, err = s.products.DecrementStock(ctx, productID, quantity)
	case Increase:
		newStock, err = s.products.IncrementStock(ctx, productID, quantity)
	default:
		return 0, ErrInvalidQuantity
	}
	if err != nil {
		return 0, err
	}

	if s.publisher != nil {
		event := StockAdjusted{
			Type:       EventStockAdjusted,
			ProductID:  productID,
			Quantity:   quantity,
			Direction:  direction,
			NewStock:   newStock,
			AdjustedAt: time.Now(),
		}
		if err := s.publisher.Publish(ctx, productID, event); err != nil {
			log.Printf("[Inventory] Failed to publish stock.adjusted for product %s: %v", productID, err)
		}
	}

	return newStock, nil
}
