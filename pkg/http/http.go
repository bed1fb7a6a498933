// Package http is the client for outgoing calls: the payment provider,
// Slack and webhooks. Requests are built fluently and sent with Do.
//
//	resp, err := http.Post(base+"/v1/refunds").
//	    Bearer(key).
//	    Header("Idempotency-Key", "refund-"+intent).
//	    Form(url.Values{"payment_intent": {intent}}).
//	    Retry(3, 250*time.Millisecond).
//	    Do(ctx)
//
// Retries only happen for requests that are safe to repeat: GET, HEAD,
// PUT, DELETE and anything carrying an Idempotency-Key.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	gohttp "net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shashiranjanraj/foodie/pkg/logger"
)

// maxBody caps how much of a response is read into memory.
const maxBody = 4 << 20

var transport = &gohttp.Transport{
	Proxy:               gohttp.ProxyFromEnvironment,
	MaxIdleConns:        100,
	MaxIdleConnsPerHost: 20,
	IdleConnTimeout:     90 * time.Second,
	TLSHandshakeTimeout: 10 * time.Second,
}

// Client sends every request built by this package.
var Client = &gohttp.Client{Transport: transport}

// UseTransport swaps the client's transport, typically for a mock in
// tests, and returns a func that puts the previous one back.
func UseTransport(rt gohttp.RoundTripper) (restore func()) {
	prev := Client.Transport
	Client.Transport = rt
	return func() { Client.Transport = prev }
}

type Request struct {
	method   string
	url      string
	header   gohttp.Header
	body     []byte
	err      error
	timeout  time.Duration
	attempts int
	backoff  time.Duration
}

func Get(u string) *Request    { return build(gohttp.MethodGet, u) }
func Post(u string) *Request   { return build(gohttp.MethodPost, u) }
func Put(u string) *Request    { return build(gohttp.MethodPut, u) }
func Patch(u string) *Request  { return build(gohttp.MethodPatch, u) }
func Delete(u string) *Request { return build(gohttp.MethodDelete, u) }

func build(method, u string) *Request {
	h := gohttp.Header{}
	h.Set("Accept", "application/json")
	return &Request{
		method:   method,
		url:      u,
		header:   h,
		timeout:  20 * time.Second,
		attempts: 1,
		backoff:  200 * time.Millisecond,
	}
}

func (r *Request) Header(key, value string) *Request {
	r.header.Set(key, value)
	return r
}

func (r *Request) Headers(h map[string]string) *Request {
	for k, v := range h {
		r.header.Set(k, v)
	}
	return r
}

func (r *Request) Bearer(token string) *Request {
	return r.Header("Authorization", "Bearer "+token)
}

// JSON sends v encoded as JSON.
func (r *Request) JSON(v interface{}) *Request {
	r.body, r.err = json.Marshal(v)
	if r.err != nil {
		r.err = fmt.Errorf("http: encode body: %w", r.err)
	}
	r.header.Set("Content-Type", "application/json")
	return r
}

// Form sends values url-encoded.
func (r *Request) Form(values url.Values) *Request {
	r.body = []byte(values.Encode())
	r.header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

// Timeout bounds each attempt, not the whole call.
func (r *Request) Timeout(d time.Duration) *Request {
	r.timeout = d
	return r
}

// Retry allows up to attempts tries in total. The wait between tries
// starts at backoff and doubles, unless the server sends Retry-After.
func (r *Request) Retry(attempts int, backoff time.Duration) *Request {
	if attempts < 1 {
		attempts = 1
	}
	r.attempts = attempts
	r.backoff = backoff
	return r
}

func (r *Request) repeatable() bool {
	switch r.method {
	case gohttp.MethodGet, gohttp.MethodHead, gohttp.MethodPut, gohttp.MethodDelete:
		return true
	}
	return r.header.Get("Idempotency-Key") != ""
}

// Do sends the request. A non-2xx answer is not an error; check OK. Only
// transport failures, 429 and 5xx are retried.
func (r *Request) Do(ctx context.Context) (*Response, error) {
	if r.err != nil {
		return nil, r.err
	}
	attempts := r.attempts
	if !r.repeatable() {
		attempts = 1
	}

	wait := r.backoff
	for try := 1; ; try++ {
		resp, err := r.once(ctx)
		retryable := err != nil || resp.StatusCode == gohttp.StatusTooManyRequests || resp.StatusCode >= 500
		if !retryable || try >= attempts || ctx.Err() != nil {
			if err != nil {
				return nil, fmt.Errorf("http: %s %s: %w", r.method, r.url, err)
			}
			return resp, nil
		}

		delay := wait
		if resp != nil {
			if secs, perr := strconv.Atoi(resp.Header.Get("Retry-After")); perr == nil && secs > 0 {
				delay = time.Duration(secs) * time.Second
			}
		}
		logger.WithCtx(ctx).Warn("http: retrying", "method", r.method, "url", r.url, "try", try, "wait", delay, "error", describe(resp, err))

		t := time.NewTimer(delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return nil, fmt.Errorf("http: %s %s: %w", r.method, r.url, ctx.Err())
		}
		wait *= 2
	}
}

func (r *Request) once(ctx context.Context) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := gohttp.NewRequestWithContext(ctx, r.method, r.url, body)
	if err != nil {
		return nil, err
	}
	req.Header = r.header.Clone()

	res, err := Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return &Response{StatusCode: res.StatusCode, Header: res.Header, Body: raw}, nil
}

func describe(resp *Response, err error) string {
	if err != nil {
		return err.Error()
	}
	return "status " + strconv.Itoa(resp.StatusCode)
}

type Response struct {
	StatusCode int
	Header     gohttp.Header
	Body       []byte
}

func (r *Response) OK() bool { return r.StatusCode >= 200 && r.StatusCode < 300 }

func (r *Response) String() string { return string(r.Body) }

// Decode unmarshals the JSON body into dest.
func (r *Response) Decode(dest interface{}) error {
	if len(r.Body) == 0 {
		return errors.New("http: empty response body")
	}
	if err := json.Unmarshal(r.Body, dest); err != nil {
		return fmt.Errorf("http: decode response: %w", err)
	}
	return nil
}
