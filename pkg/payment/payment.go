// Package payment talks to the hosted-checkout provider.
//
// Orders never see provider types directly: they build a CheckoutRequest,
// keep the returned session id and later ask the provider whether that
// session was paid.
package payment

import (
	"context"
	"errors"
	"fmt"
)

// SessionPaid is the payment_status of a checkout session that collected money.
const SessionPaid = "paid"

// ErrProvider wraps every failure reported by, or while reaching, the provider.
var ErrProvider = errors.New("payment provider error")

// Provider is the hosted checkout API used by the order service.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	RetrieveSession(ctx context.Context, id string) (*CheckoutSession, error)
	Refund(ctx context.Context, paymentIntentID string) (*Refund, error)
}

// LineItem is one priced line on the hosted page. UnitAmount is in the
// currency's minor unit.
type LineItem struct {
	Name       string
	ImageURL   string
	UnitAmount int64
	Quantity   int
}

type CheckoutRequest struct {
	Currency      string
	Lines         []LineItem
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	Metadata      map[string]string
	// IdempotencyKey makes a retried create return the same session.
	IdempotencyKey string
}

type CheckoutSession struct {
	ID              string `json:"id"`
	URL             string `json:"url"`
	PaymentIntentID string `json:"payment_intent"`
	PaymentStatus   string `json:"payment_status"`
}

// Paid reports whether the customer completed payment.
func (s *CheckoutSession) Paid() bool { return s != nil && s.PaymentStatus == SessionPaid }

type Refund struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Error carries the provider's own message. It unwraps to ErrProvider.
type Error struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("payment: %s: %d %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("payment: %s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return ErrProvider }
