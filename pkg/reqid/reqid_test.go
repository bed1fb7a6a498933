package reqid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func serve(header string) (sent, seen string) {
	h := Middleware()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = FromCtx(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/items", nil)
	if header != "" {
		req.Header.Set(Header, header)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Header().Get(Header), seen
}

func TestKeepsCallerID(t *testing.T) {
	sent, seen := serve("gw-42.a_b")
	assert.Equal(t, "gw-42.a_b", sent)
	assert.Equal(t, sent, seen)
}

func TestMintsWhenMissingOrHostile(t *testing.T) {
	for _, h := range []string{"", "has space", "semi;colon", strings.Repeat("a", maxLen+1)} {
		sent, seen := serve(h)
		_, err := uuid.Parse(sent)
		assert.NoError(t, err, "header %q", h)
		assert.Equal(t, sent, seen)
	}
}
