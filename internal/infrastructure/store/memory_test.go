package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/example/ec-order-service/internal/domain/order"
	"github.com/example/ec-order-service/internal/domain/product"
	"github.com/example/ec-order-service/internal/infrastructure/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedMemProduct(t *testing.T, mem *store.MemoryStore, id string, stock int) {
	t.Helper()
	p, err := product.New(id, "Widget "+id, 1000, stock)
	require.NoError(t, err)
	require.NoError(t, mem.CreateProduct(context.Background(), p))
}

func newMemOrder(id, userID string, createdAt time.Time, status order.Status) *order.Order {
	return &order.Order{
		ID:        id,
		UserID:    userID,
		Items:     []order.OrderItem{{ProductID: "p1", Quantity: 1, UnitPrice: 1000}},
		Status:    status,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

// ============================================
// Product / Stock Tests
// ============================================

func TestMemoryStore_DecrementStock(t *testing.T) {
	mem := store.NewMemoryStore()
	ctx := context.Background()
	seedMemProduct(t, mem, "p1", 10)

	newStock, err := mem.DecrementStock(ctx, "p1", 4)
	require.NoError(t, err)
	assert.Equal(t, 6, newStock)

	_, err = mem.DecrementStock(ctx, "p1", 7)
	assert.ErrorIs(t, err, product.ErrInsufficientStock)

	_, err = mem.DecrementStock(ctx, "ghost", 1)
	assert.ErrorIs(t, err, product.ErrProductNotFound)

	p, err := mem.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 6, p.Stock)
}

func TestMemoryStore_IncrementStock(t *testing.T) {
	mem := store.NewMemoryStore()
	ctx := context.Background()
	seedMemProduct(t, mem, "p1", 3)

	newStock, err := mem.IncrementStock(ctx, "p1", 2)
	require.NoError(t, err)
	assert.Equal(t, 5, newStock)

	_, err = mem.IncrementStock(ctx, "ghost", 1)
	assert.ErrorIs(t, err, product.ErrProductNotFound)
}

func TestMemoryStore_ConcurrentDecrementsSerialize(t *testing.T) {
	mem := store.NewMemoryStore()
	ctx := context.Background()
	seedMemProduct(t, mem, "p1", 50)

	const workers = 100
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = mem.DecrementStock(ctx, "p1", 1)
		}(i)
	}
	wg.Wait()

	var succeeded int
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	assert.Equal(t, 50, succeeded)

	p, err := mem.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 0, p.Stock)
}

func TestMemoryStore_GetProductReturnsCopy(t *testing.T) {
	mem := store.NewMemoryStore()
	ctx := context.Background()
	seedMemProduct(t, mem, "p1", 10)

	p, err := mem.GetProduct(ctx, "p1")
	require.NoError(t, err)
	p.Stock = 999

	again, err := mem.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 10, again.Stock)
}

// ============================================
// Order Tests
// ============================================

func TestMemoryStore_OrderRoundTrip(t *testing.T) {
	mem := store.NewMemoryStore()
	ctx := context.Background()

	o := newMemOrder("o1", "user-1", time.Now(), order.StatusProcessing)
	o.IdempotencyKey = "key-1"
	require.NoError(t, mem.CreateOrder(ctx, o))

	got, err := mem.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, o.UserID, got.UserID)
	assert.Equal(t, o.Items, got.Items)

	byKey, err := mem.GetOrderByIdempotencyKey(ctx, "key-1")
	require.NoError(t, err)
	assert.Equal(t, "o1", byKey.ID)

	_, err = mem.GetOrder(ctx, "nope")
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
	_, err = mem.GetOrderByIdempotencyKey(ctx, "nope")
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestMemoryStore_UpdateOrder(t *testing.T) {
	mem := store.NewMemoryStore()
	ctx := context.Background()

	o := newMemOrder("o1", "user-1", time.Now(), order.StatusProcessing)
	require.NoError(t, mem.CreateOrder(ctx, o))

	o.Status = order.StatusShipped
	o.StockCommitted = true
	require.NoError(t, mem.UpdateOrder(ctx, o))

	got, err := mem.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, order.StatusShipped, got.Status)
	assert.True(t, got.StockCommitted)

	missing := newMemOrder("nope", "user-1", time.Now(), order.StatusProcessing)
	assert.ErrorIs(t, mem.UpdateOrder(ctx, missing), order.ErrOrderNotFound)
}

func TestMemoryStore_DeleteOrderReleasesIdempotencyKey(t *testing.T) {
	mem := store.NewMemoryStore()
	ctx := context.Background()

	o := newMemOrder("o1", "user-1", time.Now(), order.StatusProcessing)
	o.IdempotencyKey = "key-1"
	require.NoError(t, mem.CreateOrder(ctx, o))

	require.NoError(t, mem.DeleteOrder(ctx, "o1"))

	_, err := mem.GetOrder(ctx, "o1")
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
	_, err = mem.GetOrderByIdempotencyKey(ctx, "key-1")
	assert.ErrorIs(t, err, order.ErrOrderNotFound)

	assert.ErrorIs(t, mem.DeleteOrder(ctx, "o1"), order.ErrOrderNotFound)
}

func TestMemoryStore_ListOrdersNewestFirst(t *testing.T) {
	mem := store.NewMemoryStore()
	ctx := context.Background()

	base := time.Now()
	require.NoError(t, mem.CreateOrder(ctx, newMemOrder("o1", "user-1", base.Add(-2*time.Hour), order.StatusProcessing)))
	require.NoError(t, mem.CreateOrder(ctx, newMemOrder("o2", "user-2", base.Add(-1*time.Hour), order.StatusShipped)))
	require.NoError(t, mem.CreateOrder(ctx, newMemOrder("o3", "user-1", base, order.StatusProcessing)))

	all, err := mem.ListOrders(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "o3", all[0].ID)
	assert.Equal(t, "o2", all[1].ID)
	assert.Equal(t, "o1", all[2].ID)

	mine, err := mem.ListOrdersByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "o3", mine[0].ID)
	assert.Equal(t, "o1", mine[1].ID)
}

func TestMemoryStore_GetOrderReturnsCopy(t *testing.T) {
	mem := store.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, mem.CreateOrder(ctx, newMemOrder("o1", "user-1", time.Now(), order.StatusProcessing)))

	got, err := mem.GetOrder(ctx, "o1")
	require.NoError(t, err)
	got.Status = order.StatusCancelled
	got.Items[0].Quantity = 99

	again, err := mem.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, order.StatusProcessing, again.Status)
	assert.Equal(t, 1, again.Items[0].Quantity)
}

// ============================================
// User Tests
// ============================================

func TestMemoryStore_Users(t *testing.T) {
	mem := store.NewMemoryStore()
	ctx := context.Background()

	u := &store.User{ID: "u1", Email: "admin@example.com", Name: "Admin", Role: "admin"}
	require.NoError(t, mem.CreateUser(ctx, u))

	got, err := mem.GetUserByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)

	_, err = mem.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, store.ErrUserNotFound)
}
