package testkit

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// MockTransport answers outgoing requests from a list of MockSteps. The
// first step that matches and still has uses left wins.
//
//	mt := testkit.NewMockTransport(steps, true)
//	defer pkghttp.UseTransport(mt)()
type MockTransport struct {
	mu      sync.Mutex
	entries []*mockEntry
	strict  bool
	calls   []string
}

type mockEntry struct {
	step  MockStep
	calls int
}

func NewMockTransport(steps []MockStep, strict bool) *MockTransport {
	mt := &MockTransport{strict: strict}
	for _, s := range steps {
		mt.entries = append(mt.entries, &mockEntry{step: s})
	}
	return mt
}

func (mt *MockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	url := req.URL.String()
	mt.calls = append(mt.calls, req.Method+" "+url)

	for _, e := range mt.entries {
		if e.step.Method != "" && !strings.EqualFold(e.step.Method, req.Method) {
			continue
		}
		if !strings.HasPrefix(url, e.step.MatchURL) {
			continue
		}
		if e.step.Times > 0 && e.calls >= e.step.Times {
			continue
		}
		e.calls++
		return respond(req, e.step), nil
	}

	if mt.strict {
		return nil, fmt.Errorf("testkit: unexpected outgoing call %s %s", req.Method, url)
	}
	return &http.Response{
		StatusCode: http.StatusNotFound,
		Status:     "404 Not Found",
		Header:     http.Header{"Content-Type": {"application/json"}},
		Body:       io.NopCloser(strings.NewReader(`{"error":{"message":"no mock configured"}}`)),
		Request:    req,
	}, nil
}

// Calls lists every request seen as "METHOD url".
func (mt *MockTransport) Calls() []string {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	return append([]string(nil), mt.calls...)
}

// Unused returns an error for every required mock that never answered.
func (mt *MockTransport) Unused() []error {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	var errs []error
	for _, e := range mt.entries {
		if !e.step.Optional && e.calls == 0 {
			errs = append(errs, fmt.Errorf("testkit: mock %s %q was never called", e.step.Method, e.step.MatchURL))
		}
	}
	return errs
}

func respond(req *http.Request, s MockStep) *http.Response {
	code := s.Status
	if code == 0 {
		code = http.StatusOK
	}
	return &http.Response{
		StatusCode: code,
		Status:     fmt.Sprintf("%d %s", code, http.StatusText(code)),
		Header:     http.Header{"Content-Type": {"application/json"}},
		Body:       io.NopCloser(bytes.NewReader(s.Body)),
		Request:    req,
	}
}
