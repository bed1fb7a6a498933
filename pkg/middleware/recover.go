package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/shashiranjanraj/foodie/pkg/logger"
	"github.com/shashiranjanraj/foodie/pkg/metrics"
	"github.com/shashiranjanraj/foodie/pkg/response"
)

// Recovery turns a handler panic into a 500 and logs it with the request
// id. It must sit after reqid.Middleware so the id is in the context.
// http.ErrAbortHandler is re-raised so net/http can drop the connection.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			metrics.PanicsRecovered.Inc()
			logger.WithCtx(r.Context()).Error("handler panicked",
				"panic", fmt.Sprint(rec),
				"route", r.Method+" "+r.URL.Path,
				"stack", string(debug.Stack()),
			)
			response.Error(w, http.StatusInternalServerError, "Internal Server Error")
		}()
		next.ServeHTTP(w, r)
	})
}
