package http_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkghttp "github.com/shashiranjanraj/foodie/pkg/http"
)

func TestFormAndHeaders(t *testing.T) {
	var got *http.Request
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.Write([]byte(`{"id":"re_1","status":"succeeded"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	resp, err := pkghttp.Post(srv.URL+"/v1/refunds").
		Bearer("sk_test").
		Header("Idempotency-Key", "refund-pi_1").
		Form(url.Values{"payment_intent": {"pi_1"}}).
		Do(context.Background())
	require.NoError(t, err)
	require.True(t, resp.OK())

	assert.Equal(t, "Bearer sk_test", got.Header.Get("Authorization"))
	assert.Equal(t, "refund-pi_1", got.Header.Get("Idempotency-Key"))
	assert.Equal(t, "application/x-www-form-urlencoded", got.Header.Get("Content-Type"))
	assert.Equal(t, "payment_intent=pi_1", body)

	var out struct{ ID, Status string }
	require.NoError(t, resp.Decode(&out))
	assert.Equal(t, "re_1", out.ID)
}

func TestJSONBody(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
	}))
	defer srv.Close()

	_, err := pkghttp.Post(srv.URL).JSON(map[string]string{"text": "order placed"}).Do(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"order placed"}`, body)
}

func TestJSONEncodeErrorSurfaces(t *testing.T) {
	_, err := pkghttp.Post("http://unused.test").JSON(make(chan int)).Do(context.Background())
	assert.ErrorContains(t, err, "encode body")
}

func TestRetriesServerErrorsForSafeRequests(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{}`)) //nolint:errcheck
	}))
	defer srv.Close()

	resp, err := pkghttp.Get(srv.URL).Retry(3, time.Millisecond).Do(context.Background())
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.EqualValues(t, 3, calls.Load())
}

func TestDoesNotRetryPlainPost(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	resp, err := pkghttp.Post(srv.URL).Retry(3, time.Millisecond).Do(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.EqualValues(t, 1, calls.Load())
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	resp, err := pkghttp.Get(srv.URL).Retry(3, time.Millisecond).Do(context.Background())
	require.NoError(t, err)
	assert.False(t, resp.OK())
	assert.EqualValues(t, 1, calls.Load())
}

func TestCancelledWhileWaiting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := pkghttp.Get(srv.URL).Retry(5, time.Second).Do(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type stubTransport struct{ calls int }

func (s *stubTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	s.calls++
	return &http.Response{StatusCode: http.StatusAccepted, Body: http.NoBody, Header: http.Header{}, Request: r}, nil
}

func TestUseTransport(t *testing.T) {
	stub := &stubTransport{}
	restore := pkghttp.UseTransport(stub)

	resp, err := pkghttp.Delete("https://api.test/things/1").Do(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Error(t, resp.Decode(&struct{}{}), "empty body")

	restore()
	assert.Equal(t, 1, stub.calls)
	assert.NotSame(t, stub, pkghttp.Client.Transport)
}
