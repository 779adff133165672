package query

import (
	"context"
	"errors"

	"github.com/example/ec-order-service/internal/domain/order"
)

// ErrForbidden is returned when a requester asks for an order they neither
// own nor administer.
var ErrForbidden = errors.New("not allowed to view this order")

// Requester identifies who is asking, as established by the auth middleware.
type Requester struct {
	UserID string
	Admin  bool
}

// Handler serves the read-only order views. No invariants beyond reflecting
// the store's current committed state.
type Handler struct {
	orders order.Store
}

func NewHandler(orders order.Store) *Handler {
	return &Handler{orders: orders}
}

// GetOrder fetches one order, visible to the owner or an admin only.
func (h *Handler) GetOrder(ctx context.Context, req Requester, orderID string) (*order.Order, error) {
	o, err := h.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !req.Admin && o.UserID != req.UserID {
		return nil, ErrForbidden
	}
	return o, nil
}

// ListUserOrders returns the caller's orders, newest first.
func (h *Handler) ListUserOrders(ctx context.Context, userID string) ([]*order.Order, error) {
	return h.orders.ListOrdersByUser(ctx, userID)
}

// AdminOrderReport is the admin listing with aggregate revenue.
type AdminOrderReport struct {
	Orders       []*order.Order `json:"orders"`
	Count        int            `json:"count"`
	TotalRevenue int            `json:"total_revenue"`
}

// AdminListOrders returns every order plus revenue summed over grand totals,
// excluding cancelled and failed orders.
func (h *Handler) AdminListOrders(ctx context.Context) (*AdminOrderReport, error) {
	orders, err := h.orders.ListOrders(ctx)
	if err != nil {
		return nil, err
	}
	report := &AdminOrderReport{
		Orders: orders,
		Count:  len(orders),
	}
	for _, o := range orders {
		if o.Status == order.StatusCancelled || o.Status == order.StatusFailed {
			continue
		}
		report.TotalRevenue += o.Pricing.GrandTotal
	}
	return report, nil
}
