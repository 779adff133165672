package product

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInvalidName       = errors.New("name is required")
	ErrInvalidStock      = errors.New("stock must not be negative")
	ErrInsufficientStock = errors.New("insufficient stock")
)

type Product struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Price     int       `json:"price"`
	Stock     int       `json:"stock"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// InsufficientStockError reports a decrement that would drive stock below
// zero, naming the offending product so callers can surface it verbatim.
type InsufficientStockError struct {
	ProductID string
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s (requested %d)", e.ProductID, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// Store is the persistence contract for products. DecrementStock must be a
// single conditional operation ("decrement by qty where stock >= qty") so two
// concurrent decrements can never both pass a stale read.
type Store interface {
	CreateProduct(ctx context.Context, p *Product) error
	GetProduct(ctx context.Context, id string) (*Product, error)
	DecrementStock(ctx context.Context, id string, qty int) (int, error)
	IncrementStock(ctx context.Context, id string, qty int) (int, error)
}

// New validates and builds a product with the given starting stock.
func New(id, name string, price, stock int) (*Product, error) {
	if name == "" {
		return nil, ErrInvalidName
	}
	if stock < 0 {
		return nil, ErrInvalidStock
	}
	now := time.Now()
	return &Product{
		ID:        id,
		Name:      name,
		Price:     price,
		Stock:     stock,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
