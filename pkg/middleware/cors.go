package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

type CORSOptions struct {
	// AllowedOrigins lists exact origins; "*" allows any.
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	// MaxAge is how long, in seconds, browsers may cache a preflight.
	MaxAge int
	// AllowCredentials lets the storefront send the token cookie. Browsers
	// refuse credentials with a wildcard origin, so the request origin is
	// echoed back instead.
	AllowCredentials bool
}

func DefaultCORSOptions() CORSOptions {
	return CORSOptions{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         600,
	}
}

// CORS answers preflight requests and decorates responses to allowed
// origins. Requests from other origins pass through without CORS headers
// and the browser blocks them.
func CORS(opts CORSOptions) func(http.Handler) http.Handler {
	origins := make(map[string]bool, len(opts.AllowedOrigins))
	wildcard := false
	for _, o := range opts.AllowedOrigins {
		if o == "*" {
			wildcard = true
		}
		origins[strings.TrimRight(o, "/")] = true
	}
	methods := strings.Join(opts.AllowedMethods, ", ")
	headers := strings.Join(opts.AllowedHeaders, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""

			if origin != "" && (wildcard || origins[origin]) {
				h := w.Header()
				h.Add("Vary", "Origin")
				switch {
				case opts.AllowCredentials:
					h.Set("Access-Control-Allow-Origin", origin)
					h.Set("Access-Control-Allow-Credentials", "true")
				case wildcard:
					h.Set("Access-Control-Allow-Origin", "*")
				default:
					h.Set("Access-Control-Allow-Origin", origin)
				}
				if preflight {
					h.Set("Access-Control-Allow-Methods", methods)
					h.Set("Access-Control-Allow-Headers", headers)
					if opts.MaxAge > 0 {
						h.Set("Access-Control-Max-Age", strconv.Itoa(opts.MaxAge))
					}
				}
			}

			if preflight {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
