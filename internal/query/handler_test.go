package query_test

import (
	"context"
	"testing"
	"time"

	"github.com/example/ec-order-service/internal/domain/order"
	"github.com/example/ec-order-service/internal/infrastructure/store"
	"github.com/example/ec-order-service/internal/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedOrder(t *testing.T, mem *store.MemoryStore, id, userID string, createdAt time.Time, status order.Status, grandTotal int) {
	t.Helper()
	err := mem.CreateOrder(context.Background(), &order.Order{
		ID:        id,
		UserID:    userID,
		Items:     []order.OrderItem{{ProductID: "p1", Quantity: 1, UnitPrice: grandTotal}},
		Status:    status,
		Pricing:   order.Pricing{ItemsTotal: grandTotal, GrandTotal: grandTotal},
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	})
	require.NoError(t, err)
}

func TestGetOrder_Owner(t *testing.T) {
	mem := store.NewMemoryStore()
	handler := query.NewHandler(mem)
	seedOrder(t, mem, "o1", "user-1", time.Now(), order.StatusProcessing, 1000)

	o, err := handler.GetOrder(context.Background(), query.Requester{UserID: "user-1"}, "o1")

	require.NoError(t, err)
	assert.Equal(t, "o1", o.ID)
}

func TestGetOrder_OtherUserForbidden(t *testing.T) {
	mem := store.NewMemoryStore()
	handler := query.NewHandler(mem)
	seedOrder(t, mem, "o1", "user-1", time.Now(), order.StatusProcessing, 1000)

	_, err := handler.GetOrder(context.Background(), query.Requester{UserID: "user-2"}, "o1")

	assert.ErrorIs(t, err, query.ErrForbidden)
}

func TestGetOrder_AdminSeesAll(t *testing.T) {
	mem := store.NewMemoryStore()
	handler := query.NewHandler(mem)
	seedOrder(t, mem, "o1", "user-1", time.Now(), order.StatusProcessing, 1000)

	o, err := handler.GetOrder(context.Background(), query.Requester{UserID: "admin-1", Admin: true}, "o1")

	require.NoError(t, err)
	assert.Equal(t, "o1", o.ID)
}

func TestGetOrder_NotFound(t *testing.T) {
	mem := store.NewMemoryStore()
	handler := query.NewHandler(mem)

	_, err := handler.GetOrder(context.Background(), query.Requester{UserID: "user-1"}, "nope")

	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestListUserOrders_NewestFirst(t *testing.T) {
	mem := store.NewMemoryStore()
	handler := query.NewHandler(mem)
	base := time.Now()
	seedOrder(t, mem, "o1", "user-1", base.Add(-2*time.Hour), order.StatusProcessing, 1000)
	seedOrder(t, mem, "o2", "user-2", base.Add(-1*time.Hour), order.StatusProcessing, 2000)
	seedOrder(t, mem, "o3", "user-1", base, order.StatusShipped, 3000)

	orders, err := handler.ListUserOrders(context.Background(), "user-1")

	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "o3", orders[0].ID)
	assert.Equal(t, "o1", orders[1].ID)
}

func TestAdminListOrders_RevenueExcludesCancelledAndFailed(t *testing.T) {
	mem := store.NewMemoryStore()
	handler := query.NewHandler(mem)
	base := time.Now()
	seedOrder(t, mem, "o1", "user-1", base.Add(-4*time.Hour), order.StatusProcessing, 1000)
	seedOrder(t, mem, "o2", "user-2", base.Add(-3*time.Hour), order.StatusDelivered, 2000)
	seedOrder(t, mem, "o3", "user-1", base.Add(-2*time.Hour), order.StatusCancelled, 4000)
	seedOrder(t, mem, "o4", "user-3", base.Add(-1*time.Hour), order.StatusFailed, 8000)

	report, err := handler.AdminListOrders(context.Background())

	require.NoError(t, err)
	// Every order is listed, but cancelled and failed orders contribute
	// nothing to revenue.
	assert.Equal(t, 4, report.Count)
	require.Len(t, report.Orders, 4)
	assert.Equal(t, "o4", report.Orders[0].ID)
	assert.Equal(t, 3000, report.TotalRevenue)
}
