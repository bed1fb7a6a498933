package payment_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkghttp "github.com/shashiranjanraj/foodie/pkg/http"
	"github.com/shashiranjanraj/foodie/pkg/payment"
	"github.com/shashiranjanraj/foodie/pkg/testkit"
)

func checkout() payment.CheckoutRequest {
	return payment.CheckoutRequest{
		Currency: "inr",
		Lines: []payment.LineItem{
			{Name: "Paneer Tikka", ImageURL: "https://cdn.test/paneer.jpg", UnitAmount: 24900, Quantity: 2},
			{Name: "Lassi", ImageURL: "/storage/lassi.jpg", UnitAmount: 9900, Quantity: 1},
		},
		CustomerEmail:  "asha@example.com",
		SuccessURL:     "http://shop.test/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:      "http://shop.test/cancel",
		Metadata:       map[string]string{"orderId": "o-1"},
		IdempotencyKey: "order-o-1",
	}
}

func TestStripeCreateCheckoutSession(t *testing.T) {
	var form map[string][]string
	var header http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		header = r.Header
		w.Write([]byte(`{"id":"cs_1","url":"https://checkout.test/cs_1","payment_status":"unpaid"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	p := payment.NewStripeProvider("sk_test_1", srv.URL+"/")
	sess, err := p.CreateCheckoutSession(context.Background(), checkout())
	require.NoError(t, err)

	assert.Equal(t, "cs_1", sess.ID)
	assert.False(t, sess.Paid())
	assert.Equal(t, "Bearer sk_test_1", header.Get("Authorization"))
	assert.Equal(t, "order-o-1", header.Get("Idempotency-Key"))

	get := func(k string) string {
		if v := form[k]; len(v) > 0 {
			return v[0]
		}
		return ""
	}
	assert.Equal(t, "payment", get("mode"))
	assert.Equal(t, "asha@example.com", get("customer_email"))
	assert.Equal(t, "24900", get("line_items[0][price_data][unit_amount]"))
	assert.Equal(t, "2", get("line_items[0][quantity]"))
	assert.Equal(t, "https://cdn.test/paneer.jpg", get("line_items[0][price_data][product_data][images][0]"))
	assert.Empty(t, get("line_items[1][price_data][product_data][images][0]"), "relative images are not sent")
	assert.Equal(t, "o-1", get("metadata[orderId]"))
}

func TestStripeErrorsCarryProviderMessage(t *testing.T) {
	mt := testkit.NewMockTransport([]testkit.MockStep{{
		MatchURL: "https://stripe.test/v1/checkout/sessions/cs_missing",
		Status:   http.StatusNotFound,
		Body:     json.RawMessage(`{"error":{"message":"No such checkout.session: cs_missing","type":"invalid_request_error"}}`),
	}}, true)
	defer pkghttp.UseTransport(mt)()

	p := payment.NewStripeProvider("sk_test_1", "https://stripe.test")
	_, err := p.RetrieveSession(context.Background(), "cs_missing")

	require.Error(t, err)
	assert.ErrorIs(t, err, payment.ErrProvider)
	var perr *payment.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusNotFound, perr.StatusCode)
	assert.Equal(t, "No such checkout.session: cs_missing", perr.Message)
	assert.Len(t, mt.Calls(), 1, "a 404 is not retried")
}

func TestStripeRetrieveAndRefund(t *testing.T) {
	mt := testkit.NewMockTransport([]testkit.MockStep{
		{Method: "GET", MatchURL: "https://stripe.test/v1/checkout/sessions/cs_1",
			Body: json.RawMessage(`{"id":"cs_1","payment_status":"paid","payment_intent":"pi_1"}`)},
		{Method: "POST", MatchURL: "https://stripe.test/v1/refunds", Times: 1, Status: http.StatusServiceUnavailable, Body: json.RawMessage(`{}`)},
		{Method: "POST", MatchURL: "https://stripe.test/v1/refunds", Body: json.RawMessage(`{"id":"re_1","status":"succeeded"}`)},
	}, true)
	defer pkghttp.UseTransport(mt)()

	p := payment.NewStripeProvider("sk_test_1", "https://stripe.test")
	sess, err := p.RetrieveSession(context.Background(), "cs_1")
	require.NoError(t, err)
	assert.True(t, sess.Paid())
	assert.Equal(t, "pi_1", sess.PaymentIntentID)

	refund, err := p.Refund(context.Background(), "pi_1")
	require.NoError(t, err, "a refund carries an idempotency key and is retried")
	assert.Equal(t, "re_1", refund.ID)
	assert.Equal(t, "succeeded", refund.Status)
	assert.Empty(t, mt.Unused())
}

func TestStripeGivesUpAfterOneRetry(t *testing.T) {
	mt := testkit.NewMockTransport([]testkit.MockStep{
		{Method: "GET", MatchURL: "https://stripe.test/v1/checkout/sessions/cs_busy", Status: http.StatusServiceUnavailable,
			Body: json.RawMessage(`{"error":{"message":"try later","type":"api_error"}}`)},
	}, true)
	defer pkghttp.UseTransport(mt)()

	p := payment.NewStripeProvider("sk_test_1", "https://stripe.test")
	_, err := p.RetrieveSession(context.Background(), "cs_busy")

	var perr *payment.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusServiceUnavailable, perr.StatusCode)
	assert.Len(t, mt.Calls(), 2, "two attempts in total")
}

func TestStripeTransportFailure(t *testing.T) {
	defer pkghttp.UseTransport(testkit.NewMockTransport(nil, true))()

	p := payment.NewStripeProvider("sk_test_1", "https://stripe.test")
	_, err := p.CreateCheckoutSession(context.Background(), payment.CheckoutRequest{})
	assert.ErrorIs(t, err, payment.ErrProvider)
}

func TestFakeProviderFlow(t *testing.T) {
	f := payment.NewFakeProvider()
	ctx := context.Background()

	sess, err := f.CreateCheckoutSession(ctx, checkout())
	require.NoError(t, err)
	assert.Contains(t, sess.URL, "session_id="+sess.ID)
	assert.False(t, sess.Paid())

	req, ok := f.Request(sess.ID)
	require.True(t, ok)
	assert.Equal(t, "order-o-1", req.IdempotencyKey)

	f.MarkPaid(sess.ID)
	got, err := f.RetrieveSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, got.Paid())
	assert.NotEmpty(t, got.PaymentIntentID)

	_, err = f.Refund(ctx, got.PaymentIntentID)
	require.NoError(t, err)
	assert.Equal(t, []string{got.PaymentIntentID}, f.Refunds())

	_, err = f.RetrieveSession(ctx, "cs_unknown")
	assert.ErrorIs(t, err, payment.ErrProvider)

	f.RefundErr = errors.New("card network down")
	_, err = f.Refund(ctx, "pi_x")
	assert.ErrorIs(t, err, payment.ErrProvider)
}

func TestFakeProviderAutoPay(t *testing.T) {
	f := payment.NewFakeProvider()
	f.AutoPay = true

	sess, err := f.CreateCheckoutSession(context.Background(), checkout())
	require.NoError(t, err)
	assert.True(t, sess.Paid())
}
