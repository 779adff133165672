package store

import (
	"context"
	"sort"
	"sync"

	"github.com/example/ec-order-service/internal/domain/order"
	"github.com/example/ec-order-service/internal/domain/product"
)

// MemoryStore is a mutex-guarded in-memory implementation of the product,
// order and user stores, used by tests and dev mode. The conditional
// decrement holds the lock across check and write, which gives the same
// serialization the SQL conditional update provides.
type MemoryStore struct {
	mu       sync.RWMutex
	products map[string]*product.Product
	orders   map[string]*order.Order
	byKey    map[string]string // idempotency key -> order id
	users    map[string]*User  // keyed by email
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[string]*product.Product),
		orders:   make(map[string]*order.Order),
		byKey:    make(map[string]string),
		users:    make(map[string]*User),
	}
}

// Product operations

func (m *MemoryStore) CreateProduct(ctx context.Context, p *product.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.products[p.ID] = &cp
	return nil
}

func (m *MemoryStore) GetProduct(ctx context.Context, id string) (*product.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return nil, product.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) DecrementStock(ctx context.Context, id string, qty int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return 0, product.ErrProductNotFound
	}
	if p.Stock < qty {
		return 0, &product.InsufficientStockError{ProductID: id, Requested: qty}
	}
	p.Stock -= qty
	return p.Stock, nil
}

func (m *MemoryStore) IncrementStock(ctx context.Context, id string, qty int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return 0, product.ErrProductNotFound
	}
	p.Stock += qty
	return p.Stock, nil
}

// Order operations

func cloneOrder(o *order.Order) *order.Order {
	cp := *o
	cp.Items = append([]order.OrderItem(nil), o.Items...)
	if o.PaidAt != nil {
		t := *o.PaidAt
		cp.PaidAt = &t
	}
	if o.DeliveredAt != nil {
		t := *o.DeliveredAt
		cp.DeliveredAt = &t
	}
	return &cp
}

func (m *MemoryStore) CreateOrder(ctx context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = cloneOrder(o)
	if o.IdempotencyKey != "" {
		m.byKey[o.IdempotencyKey] = o.ID
	}
	return nil
}

func (m *MemoryStore) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (m *MemoryStore) GetOrderByIdempotencyKey(ctx context.Context, key string) (*order.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byKey[key]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (m *MemoryStore) UpdateOrder(ctx context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[o.ID]; !ok {
		return order.ErrOrderNotFound
	}
	m.orders[o.ID] = cloneOrder(o)
	return nil
}

func (m *MemoryStore) DeleteOrder(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return order.ErrOrderNotFound
	}
	if o.IdempotencyKey != "" {
		delete(m.byKey, o.IdempotencyKey)
	}
	delete(m.orders, id)
	return nil
}

func (m *MemoryStore) ListOrdersByUser(ctx context.Context, userID string) ([]*order.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*order.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, cloneOrder(o))
		}
	}
	sortOrdersNewestFirst(out)
	return out, nil
}

func (m *MemoryStore) ListOrders(ctx context.Context) ([]*order.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*order.Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, cloneOrder(o))
	}
	sortOrdersNewestFirst(out)
	return out, nil
}

func sortOrdersNewestFirst(orders []*order.Order) {
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}

// User operations

func (m *MemoryStore) CreateUser(ctx context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.users[u.Email] = &cp
	return nil
}

func (m *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}
