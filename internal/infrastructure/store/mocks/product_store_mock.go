package mocks

import (
	"context"
	"sync"

	"github.com/example/ec-order-service/internal/infrastructure/store"
)

// AdjustCall records parameters passed to DecrementStock or IncrementStock
type AdjustCall struct {
	ProductID string
	Quantity  int
	Decrement bool
}

// MockProductStore wraps the in-memory store with call recording and
// injectable per-call failures, for driving partial-failure paths in tests.
type MockProductStore struct {
	*store.MemoryStore

	mu          sync.Mutex
	AdjustCalls []AdjustCall

	// FailDecrementOn makes the Nth decrement call (1-based) return
	// FailErr instead of touching stock. Zero disables injection.
	FailDecrementOn int
	// FailIncrementOn does the same for increments.
	FailIncrementOn int
	FailErr         error
}

// NewMockProductStore creates a MockProductStore backed by fresh memory
func NewMockProductStore() *MockProductStore {
	return &MockProductStore{MemoryStore: store.NewMemoryStore()}
}

func (m *MockProductStore) DecrementStock(ctx context.Context, id string, qty int) (int, error) {
	m.mu.Lock()
	m.AdjustCalls = append(m.AdjustCalls, AdjustCall{ProductID: id, Quantity: qty, Decrement: true})
	n := 0
	for _, c := range m.AdjustCalls {
		if c.Decrement {
			n++
		}
	}
	fail := m.FailDecrementOn > 0 && n == m.FailDecrementOn
	m.mu.Unlock()

	if fail {
		return 0, m.FailErr
	}
	return m.MemoryStore.DecrementStock(ctx, id, qty)
}

func (m *MockProductStore) IncrementStock(ctx context.Context, id string, qty int) (int, error) {
	m.mu.Lock()
	m.AdjustCalls = append(m.AdjustCalls, AdjustCall{ProductID: id, Quantity: qty})
	n := 0
	for _, c := range m.AdjustCalls {
		if !c.Decrement {
			n++
		}
	}
	fail := m.FailIncrementOn > 0 && n == m.FailIncrementOn
	m.mu.Unlock()

	if fail {
		return 0, m.FailErr
	}
	return m.MemoryStore.IncrementStock(ctx, id, qty)
}
