package testkit

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkghttp "github.com/shashiranjanraj/foodie/pkg/http"
)

// Runner fires scenario steps against Handler. Steps share Vars, so a value
// captured by one step can be used by the next.
type Runner struct {
	Handler http.Handler
	// Tokens maps a step's "as" to a bearer token.
	Tokens map[string]string
	Vars   map[string]string
	// Mail, when set, is reset before each step and checked against "mails".
	Mail *MailRecorder
	// Settle runs after each request and before mails are counted, for
	// handlers that finish work asynchronously.
	Settle func()
}

// Run executes every step of the scenario file as a subtest, in order. A
// failing step stops the file since later steps depend on it.
func (r *Runner) Run(t *testing.T, path string) {
	t.Helper()

	steps, err := Load(path)
	require.NoError(t, err)
	if r.Vars == nil {
		r.Vars = map[string]string{}
	}

	t.Run(filepath.Base(path), func(t *testing.T) {
		for i := range steps {
			s := steps[i]
			if !t.Run(s.Name, func(t *testing.T) { r.step(t, s) }) {
				return
			}
		}
	})
}

// RunDir runs every *.json scenario file in dir.
func (r *Runner) RunDir(t *testing.T, dir string) {
	t.Helper()
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	require.NoError(t, err)
	require.NotEmpty(t, files, "testkit: no scenario files in %q", dir)
	for _, f := range files {
		r.Run(t, f)
	}
}

func (r *Runner) step(t *testing.T, s Scenario) {
	mocks := make([]MockStep, len(s.Mocks))
	for i, m := range s.Mocks {
		m.MatchURL = expand(m.MatchURL, r.Vars)
		m.Body = []byte(expand(string(m.Body), r.Vars))
		mocks[i] = m
	}
	mt := NewMockTransport(mocks, s.StrictMocks)
	defer pkghttp.UseTransport(mt)()

	if r.Mail != nil {
		r.Mail.Reset()
	}

	var body io.Reader
	if len(s.Body) > 0 {
		body = bytes.NewReader([]byte(expand(string(s.Body), r.Vars)))
	}
	req := httptest.NewRequest(s.Method, expand(s.URL, r.Vars), body)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range s.Headers {
		req.Header.Set(k, expand(v, r.Vars))
	}
	if s.As != "" {
		token, ok := r.Tokens[s.As]
		require.True(t, ok, "no token for %q", s.As)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	r.Handler.ServeHTTP(rec, req)
	if r.Settle != nil {
		r.Settle()
	}

	require.Equal(t, s.ExpectedCode, rec.Code, "status mismatch\nbody: %s", rec.Body.String())

	diffs, err := Contains([]byte(expand(string(s.Expect), r.Vars)), rec.Body.Bytes())
	require.NoError(t, err)
	assert.Empty(t, diffs, "response mismatch\nbody: %s", rec.Body.String())

	for name, path := range s.Capture {
		v, ok := Lookup(rec.Body.Bytes(), path)
		require.True(t, ok, "capture %s: %q not in response\nbody: %s", name, path, rec.Body.String())
		r.Vars[name] = v
	}

	for _, err := range mt.Unused() {
		assert.NoError(t, err)
	}
	if s.Mails != nil {
		require.NotNil(t, r.Mail, "step counts mails but the runner has no MailRecorder")
		assert.Len(t, r.Mail.Sent(), *s.Mails, "mails sent")
	}
}
