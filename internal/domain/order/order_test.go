package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================
// Status & Transition Table Tests
// ============================================

func TestParseStatus_Valid(t *testing.T) {
	for _, s := range []string{"payment_pending", "processing", "shipped", "delivered", "cancelled", "failed"} {
		status, err := ParseStatus(s)
		require.NoError(t, err)
		assert.Equal(t, Status(s), status)
	}
}

func TestParseStatus_Unknown(t *testing.T) {
	_, err := ParseStatus("refunded")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestOrder_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusPaymentPending, StatusProcessing, true},
		{StatusPaymentPending, StatusCancelled, true},
		{StatusPaymentPending, StatusFailed, true},
		{StatusPaymentPending, StatusShipped, false},
		{StatusPaymentPending, StatusDelivered, false},
		{StatusProcessing, StatusShipped, true},
		{StatusProcessing, StatusCancelled, true},
		{StatusProcessing, StatusDelivered, false},
		{StatusProcessing, StatusFailed, false},
		{StatusShipped, StatusDelivered, true},
		{StatusShipped, StatusCancelled, true},
		{StatusShipped, StatusProcessing, false},
		{StatusDelivered, StatusProcessing, false},
		{StatusDelivered, StatusCancelled, false},
		{StatusCancelled, StatusProcessing, false},
		{StatusFailed, StatusProcessing, false},
	}
	for _, tt := range tests {
		o := &Order{Status: tt.from}
		assert.Equal(t, tt.allowed, o.CanTransitionTo(tt.to),
			"transition %s -> %s", tt.from, tt.to)
	}
}

func TestOrder_IsTerminal(t *testing.T) {
	assert.False(t, (&Order{Status: StatusPaymentPending}).IsTerminal())
	assert.False(t, (&Order{Status: StatusProcessing}).IsTerminal())
	assert.False(t, (&Order{Status: StatusShipped}).IsTerminal())
	assert.True(t, (&Order{Status: StatusDelivered}).IsTerminal())
	assert.True(t, (&Order{Status: StatusCancelled}).IsTerminal())
	assert.True(t, (&Order{Status: StatusFailed}).IsTerminal())
}

func TestOrder_TransitionError_Terminal(t *testing.T) {
	o := &Order{Status: StatusDelivered}
	err := o.transitionError(StatusProcessing)
	assert.ErrorIs(t, err, ErrOrderTerminal)
}

func TestOrder_TransitionError_Invalid(t *testing.T) {
	o := &Order{Status: StatusProcessing}
	err := o.transitionError(StatusDelivered)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Contains(t, err.Error(), "processing")
	assert.Contains(t, err.Error(), "delivered")
}

// ============================================
// Validation Tests
// ============================================

func validShipping() ShippingInfo {
	return ShippingInfo{
		Address:    "1 Main St",
		City:       "Springfield",
		State:      "IL",
		Country:    "US",
		PostalCode: "62701",
		Phone:      "555-0100",
	}
}

func TestValidateItems(t *testing.T) {
	assert.ErrorIs(t, validateItems(nil), ErrEmptyOrder)
	assert.ErrorIs(t, validateItems([]OrderItem{}), ErrEmptyOrder)
	assert.ErrorIs(t, validateItems([]OrderItem{{ProductID: "p1", Quantity: 0}}), ErrInvalidItem)
	assert.ErrorIs(t, validateItems([]OrderItem{{ProductID: "p1", Quantity: -2}}), ErrInvalidItem)
	assert.ErrorIs(t, validateItems([]OrderItem{{ProductID: "", Quantity: 1}}), ErrInvalidItem)
	assert.NoError(t, validateItems([]OrderItem{{ProductID: "p1", Quantity: 1, UnitPrice: 100}}))
}

func TestValidateShipping(t *testing.T) {
	assert.NoError(t, validateShipping(validShipping()))

	fields := []func(*ShippingInfo){
		func(s *ShippingInfo) { s.Address = "" },
		func(s *ShippingInfo) { s.City = "" },
		func(s *ShippingInfo) { s.State = "" },
		func(s *ShippingInfo) { s.Country = "" },
		func(s *ShippingInfo) { s.PostalCode = "" },
		func(s *ShippingInfo) { s.Phone = "" },
	}
	for i, clear := range fields {
		s := validShipping()
		clear(&s)
		assert.ErrorIs(t, validateShipping(s), ErrIncompleteShipping, "field %d", i)
	}
}

func TestValidatePayment(t *testing.T) {
	assert.ErrorIs(t, validatePayment(PaymentInfo{}), ErrMissingPayment)
	assert.ErrorIs(t, validatePayment(PaymentInfo{ID: "pay-1"}), ErrMissingPayment)
	assert.ErrorIs(t, validatePayment(PaymentInfo{Status: "succeeded"}), ErrMissingPayment)
	assert.NoError(t, validatePayment(PaymentInfo{ID: "pay-1", Status: "succeeded"}))
}

func TestValidatePricing(t *testing.T) {
	assert.ErrorIs(t, validatePricing(Pricing{}), ErrIncompletePricing)
	assert.ErrorIs(t, validatePricing(Pricing{ItemsTotal: 100}), ErrIncompletePricing)
	assert.ErrorIs(t, validatePricing(Pricing{ItemsTotal: 100, GrandTotal: 110, Tax: -1}), ErrIncompletePricing)
	assert.NoError(t, validatePricing(Pricing{ItemsTotal: 100, Tax: 10, Shipping: 0, GrandTotal: 110}))
}
