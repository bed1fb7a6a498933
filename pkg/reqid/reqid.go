// Package reqid tags every request with an id that ends up in the
// X-Request-ID response header and on every log line of the request.
//
//	r.Use(reqid.Middleware())
//	...
//	logger.WithCtx(r.Context()).Info("order placed", "order_id", o.ID)
//	// level=INFO msg="order placed" request_id=7c9e... order_id=...
package reqid

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const Header = "X-Request-ID"

// maxLen caps ids taken from clients so a hostile header cannot bloat logs.
const maxLen = 64

type ctxKey struct{}

func New() string { return uuid.NewString() }

func WithValue(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromCtx returns the request id, or "" outside a request.
func FromCtx(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// Middleware reuses a well-formed X-Request-ID from the caller (a gateway
// or the storefront) and mints one otherwise.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := sanitize(r.Header.Get(Header))
			if id == "" {
				id = New()
			}
			w.Header().Set(Header, id)
			next.ServeHTTP(w, r.WithContext(WithValue(r.Context(), id)))
		})
	}
}

func sanitize(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || len(id) > maxLen {
		return ""
	}
	for _, c := range id {
		ok := c == '-' || c == '_' || c == '.' ||
			(c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		if !ok {
			return ""
		}
	}
	return id
}
