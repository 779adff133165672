package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/example/ec-order-service/internal/api/middleware"
	"github.com/example/ec-order-service/internal/domain/inventory"
	"github.com/example/ec-order-service/internal/domain/order"
	"github.com/example/ec-order-service/internal/domain/product"
	"github.com/example/ec-order-service/internal/query"
	"github.com/google/uuid"
)

// supportMessage is what end users see for integrity failures; the precise
// reason stays in the logs for operator action.
const supportMessage = "something went wrong processing your order, please contact support"

type Handlers struct {
	orderSvc     *order.Service
	queryHandler *query.Handler
	products     product.Store
}

func NewHandlers(orderSvc *order.Service, queryHandler *query.Handler, products product.Store) *Handlers {
	return &Handlers{
		orderSvc:     orderSvc,
		queryHandler: queryHandler,
		products:     products,
	}
}

// Order Handlers

type createOrderRequest struct {
	Items    []order.OrderItem  `json:"items"`
	Shipping order.ShippingInfo `json:"shipping"`
	Payment  order.PaymentInfo  `json:"payment"`
	Pricing  order.Pricing      `json:"pricing"`
}

func (h *Handlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	o, err := h.orderSvc.Create(r.Context(), order.CreateOrderInput{
		UserID:         userID,
		Items:          req.Items,
		Shipping:       req.Shipping,
		Payment:        req.Payment,
		Pricing:        req.Pricing,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.respondOrderError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, o)
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.GetUserFromContext(r.Context())
	id := extractPathParam(r.URL.Path, "/order/")

	o, err := h.queryHandler.GetOrder(r.Context(), query.Requester{
		UserID: claims.UserID,
		Admin:  claims.IsAdmin(),
	}, id)
	if err != nil {
		h.respondOrderError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, o)
}

func (h *Handlers) GetMyOrders(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	orders, err := h.queryHandler.ListUserOrders(r.Context(), userID)
	if err != nil {
		h.respondOrderError(w, err)
		return
	}
	if orders == nil {
		orders = []*order.Order{}
	}

	respondJSON(w, http.StatusOK, orders)
}

func (h *Handlers) AdminListOrders(w http.ResponseWriter, r *http.Request) {
	report, err := h.queryHandler.AdminListOrders(r.Context())
	if err != nil {
		h.respondOrderError(w, err)
		return
	}
	if report.Orders == nil {
		report.Orders = []*order.Order{}
	}

	respondJSON(w, http.StatusOK, report)
}

type updateOrderRequest struct {
	Status string `json:"status"`
}

func (h *Handlers) AdminUpdateOrder(w http.ResponseWriter, r *http.Request) {
	id := extractPathParam(r.URL.Path, "/admin/order/")

	var req updateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	target, err := order.ParseStatus(req.Status)
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	o, err := h.orderSvc.Transition(r.Context(), id, target)
	if err != nil {
		h.respondOrderError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, o)
}

func (h *Handlers) AdminDeleteOrder(w http.ResponseWriter, r *http.Request) {
	id := extractPathParam(r.URL.Path, "/admin/order/")

	if err := h.orderSvc.Delete(r.Context(), id); err != nil {
		h.respondOrderError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Order deleted"})
}

// Product Handlers

type createProductRequest struct {
	Name  string `json:"name"`
	Price int    `json:"price"`
	Stock int    `json:"stock"`
}

func (h *Handlers) AdminCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	p, err := product.New(uuid.New().String(), req.Name, req.Price, req.Stock)
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.products.CreateProduct(r.Context(), p); err != nil {
		respondError(w, "failed to create product", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusCreated, p)
}

func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := extractPathParam(r.URL.Path, "/products/")

	p, err := h.products.GetProduct(r.Context(), id)
	if err != nil {
		if errors.Is(err, product.ErrProductNotFound) {
			respondError(w, "product not found", http.StatusNotFound)
			return
		}
		respondError(w, "failed to get product", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, p)
}

// respondOrderError maps domain errors onto the HTTP surface. Client input
// defects and business conditions go back verbatim; integrity failures get a
// generic body and a full log line.
func (h *Handlers) respondOrderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, order.ErrPartialStockFailure),
		errors.Is(err, order.ErrStockRestorationFailed):
		log.Printf("[API] Integrity failure: %v", err)
		respondError(w, supportMessage, http.StatusInternalServerError)
	case errors.Is(err, order.ErrOrderNotFound):
		respondError(w, "order not found", http.StatusNotFound)
	case errors.Is(err, product.ErrProductNotFound):
		respondError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, query.ErrForbidden):
		respondError(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, order.ErrEmptyOrder),
		errors.Is(err, order.ErrInvalidItem),
		errors.Is(err, order.ErrIncompleteShipping),
		errors.Is(err, order.ErrMissingPayment),
		errors.Is(err, order.ErrIncompletePricing),
		errors.Is(err, order.ErrInvalidStatus),
		errors.Is(err, order.ErrInvalidTransition),
		errors.Is(err, order.ErrOrderTerminal),
		errors.Is(err, product.ErrInsufficientStock),
		errors.Is(err, inventory.ErrInvalidQuantity):
		respondError(w, err.Error(), http.StatusBadRequest)
	default:
		log.Printf("[API] Unexpected error: %v", err)
		respondError(w, "internal server error", http.StatusInternalServerError)
	}
}

// Helpers

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, status, map[string]string{"error": message})
}

func extractPathParam(path, prefix string) string {
	param := strings.TrimPrefix(path, prefix)
	if i := strings.Index(param, "/"); i >= 0 {
		param = param[:i]
	}
	return param
}
