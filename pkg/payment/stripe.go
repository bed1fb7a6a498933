package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"

	pkghttp "github.com/shashiranjanraj/foodie/pkg/http"
	"github.com/shashiranjanraj/foodie/pkg/logger"
)

const DefaultStripeBase = "https://api.stripe.com"

// stripeRetries is the number of extra attempts stripe-go makes. POSTs are
// only retried under an idempotency key, which the SDK always sends.
const stripeRetries = 1

// StripeProvider drives Stripe Checkout through stripe-go. Requests go out
// through pkg/http's shared client, so tests can swap its transport.
type StripeProvider struct {
	api     *client.API
	timeout time.Duration
}

func NewStripeProvider(secretKey, baseURL string) *StripeProvider {
	if baseURL == "" {
		baseURL = DefaultStripeBase
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		HTTPClient:        pkghttp.Client,
		URL:               stripe.String(strings.TrimRight(baseURL, "/")),
		MaxNetworkRetries: stripe.Int64(stripeRetries),
		LeveledLogger:     stripeLog{},
	})
	return &StripeProvider{
		api:     client.New(secretKey, &stripe.Backends{API: backend, Connect: backend, Uploads: backend}),
		timeout: 15 * time.Second,
	}
}

func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	params.Context = ctx
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	for _, line := range req.Lines {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(line.Name),
		}
		// Stripe only accepts absolute image URLs.
		if strings.HasPrefix(line.ImageURL, "http://") || strings.HasPrefix(line.ImageURL, "https://") {
			product.Images = stripe.StringSlice([]string{line.ImageURL})
		}
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(req.Currency),
				ProductData: product,
				UnitAmount:  stripe.Int64(line.UnitAmount),
			},
			Quantity: stripe.Int64(int64(line.Quantity)),
		})
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	sess, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, stripeErr("create checkout session", err)
	}
	return toSession(sess), nil
}

func (p *StripeProvider) RetrieveSession(ctx context.Context, id string) (*CheckoutSession, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := p.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return nil, stripeErr("retrieve checkout session", err)
	}
	return toSession(sess), nil
}

func (p *StripeProvider) Refund(ctx context.Context, paymentIntentID string) (*Refund, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	params := &stripe.RefundParams{PaymentIntent: stripe.String(paymentIntentID)}
	params.Context = ctx
	params.SetIdempotencyKey("refund-" + paymentIntentID)

	r, err := p.api.Refunds.New(params)
	if err != nil {
		return nil, stripeErr("refund", err)
	}
	return &Refund{ID: r.ID, Status: string(r.Status)}, nil
}

func toSession(s *stripe.CheckoutSession) *CheckoutSession {
	out := &CheckoutSession{
		ID:            s.ID,
		URL:           s.URL,
		PaymentStatus: string(s.PaymentStatus),
	}
	if s.PaymentIntent != nil {
		out.PaymentIntentID = s.PaymentIntent.ID
	}
	return out
}

func stripeErr(op string, err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		msg := se.Msg
		if msg == "" {
			msg = string(se.Type)
		}
		return &Error{Op: op, StatusCode: se.HTTPStatusCode, Message: msg}
	}
	return &Error{Op: op, Message: err.Error()}
}

// stripeLog routes stripe-go's own logging into the application logger.
type stripeLog struct{}

func (stripeLog) Debugf(format string, v ...interface{}) {
	logger.Debug(fmt.Sprintf(format, v...), "component", "stripe")
}

func (stripeLog) Infof(format string, v ...interface{}) {
	logger.Debug(fmt.Sprintf(format, v...), "component", "stripe")
}

func (stripeLog) Warnf(format string, v ...interface{}) {
	logger.Warn(fmt.Sprintf(format, v...), "component", "stripe")
}

func (stripeLog) Errorf(format string, v ...interface{}) {
	logger.Error(fmt.Sprintf(format, v...), "component", "stripe")
}
