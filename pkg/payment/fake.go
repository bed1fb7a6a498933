package payment

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// FakeProvider keeps checkout sessions in memory. With AutoPay set every
// new session is already paid, which lets a local storefront walk the
// whole online flow without a provider account.
type FakeProvider struct {
	AutoPay bool

	// Set these to make the next calls fail.
	CreateErr   error
	RetrieveErr error
	RefundErr   error

	mu       sync.Mutex
	sessions map[string]*CheckoutSession
	requests map[string]CheckoutRequest
	refunds  []string
}

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		sessions: map[string]*CheckoutSession{},
		requests: map[string]CheckoutRequest{},
	}
}

func (f *FakeProvider) CreateCheckoutSession(_ context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.CreateErr != nil {
		return nil, &Error{Op: "create checkout session", Message: f.CreateErr.Error()}
	}

	id := "cs_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	s := &CheckoutSession{
		ID:            id,
		URL:           strings.ReplaceAll(req.SuccessURL, "{CHECKOUT_SESSION_ID}", id),
		PaymentStatus: "unpaid",
	}
	if f.AutoPay {
		s.PaymentStatus = SessionPaid
		s.PaymentIntentID = "pi_test_" + id[len("cs_test_"):]
	}
	f.sessions[id] = s
	f.requests[id] = req

	out := *s
	return &out, nil
}

func (f *FakeProvider) RetrieveSession(_ context.Context, id string) (*CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.RetrieveErr != nil {
		return nil, &Error{Op: "retrieve checkout session", Message: f.RetrieveErr.Error()}
	}
	s, ok := f.sessions[id]
	if !ok {
		return nil, &Error{Op: "retrieve checkout session", StatusCode: 404, Message: "No such checkout.session: " + id}
	}
	out := *s
	return &out, nil
}

func (f *FakeProvider) Refund(_ context.Context, paymentIntentID string) (*Refund, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.RefundErr != nil {
		return nil, &Error{Op: "refund", Message: f.RefundErr.Error()}
	}
	f.refunds = append(f.refunds, paymentIntentID)
	return &Refund{ID: "re_test_" + paymentIntentID, Status: "succeeded"}, nil
}

// MarkPaid simulates the customer completing the hosted page.
func (f *FakeProvider) MarkPaid(sessionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if s, ok := f.sessions[sessionID]; ok {
		s.PaymentStatus = SessionPaid
		if s.PaymentIntentID == "" {
			s.PaymentIntentID = "pi_test_" + strings.TrimPrefix(sessionID, "cs_test_")
		}
	}
}

// Request returns what was sent when sessionID was created.
func (f *FakeProvider) Request(sessionID string) (CheckoutRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.requests[sessionID]
	return r, ok
}

// Refunds lists the payment intents refunded so far.
func (f *FakeProvider) Refunds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.refunds...)
}
