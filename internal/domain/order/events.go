package order

import "time"

const (
	EventOrderPlaced            = "order.placed"
	EventOrderStatusChanged     = "order.status_changed"
	EventStockCommitFailed      = "order.stock_commit_failed"
	EventStockRestorationFailed = "order.stock_restoration_failed"
)

type OrderPlaced struct {
	Type     string      `json:"type"`
	OrderID  string      `json:"order_id"`
	UserID   string      `json:"user_id"`
	Items    []OrderItem `json:"items"`
	Status   Status      `json:"status"`
	PlacedAt time.Time   `json:"placed_at"`
}

type OrderStatusChanged struct {
	Type      string    `json:"type"`
	OrderID   string    `json:"order_id"`
	From      Status    `json:"from"`
	To        Status    `json:"to"`
	ChangedAt time.Time `json:"changed_at"`
}

// StockCommitFailed is the operator-facing record of a partial stock
// commitment. The reconciler consumes these; they are never auto-resolved.
type StockCommitFailed struct {
	Type            string    `json:"type"`
	OrderID         string    `json:"order_id"`
	FailedProductID string    `json:"failed_product_id"`
	Decremented     int       `json:"decremented_items"`
	Reason          string    `json:"reason"`
	FailedAt        time.Time `json:"failed_at"`
}

// StockRestorationIncomplete is the operator-facing record of a cancellation
// whose restorations did not all succeed.
type StockRestorationIncomplete struct {
	Type            string    `json:"type"`
	OrderID         string    `json:"order_id"`
	Restored        []string  `json:"restored_product_ids"`
	FailedProductID string    `json:"failed_product_id"`
	Unrestored      []string  `json:"unrestored_product_ids"`
	Reason          string    `json:"reason"`
	FailedAt        time.Time `json:"failed_at"`
}
