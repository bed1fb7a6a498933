// Package kernel builds the HTTP handler: the global middleware stack,
// the infrastructure endpoints and the API routes.
package kernel

import (
	"context"
	"net/http"
	"time"

	"github.com/shashiranjanraj/foodie/app/routes"
	"github.com/shashiranjanraj/foodie/config"
	"github.com/shashiranjanraj/foodie/pkg/cache"
	"github.com/shashiranjanraj/foodie/pkg/database"
	"github.com/shashiranjanraj/foodie/pkg/metrics"
	"github.com/shashiranjanraj/foodie/pkg/middleware"
	"github.com/shashiranjanraj/foodie/pkg/reqid"
	"github.com/shashiranjanraj/foodie/pkg/response"
	"github.com/shashiranjanraj/foodie/pkg/router"
	"github.com/shashiranjanraj/foodie/pkg/storage"
)

const healthTimeout = 2 * time.Second

type HTTPKernel struct {
	router *router.Router
}

func NewHTTPKernel(deps routes.Deps) *HTTPKernel {
	r := router.New()

	// Outermost first. Metrics sees the full latency; Recovery runs inside
	// Logger so a panic is logged with the request id and its 500 is
	// access logged like any other response.
	r.Use(metrics.Middleware())
	r.Use(reqid.Middleware())
	r.Use(middleware.Logger)
	r.Use(middleware.Recovery)
	r.Use(middleware.CORS(corsOptions()))
	r.Use(middleware.RateLimit(config.RateLimit(), time.Minute))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	// Prometheus /metrics endpoint: no auth.
	r.Handle("/metrics", "metrics", metrics.Handler())
	r.Get("/healthz", "health", healthz)

	if local, ok := storage.Default().(*storage.LocalDisk); ok {
		r.Handle("/storage/*", "storage", local.Handler("/storage/"))
	}

	routes.RegisterAPI(r, deps)

	return &HTTPKernel{router: r}
}

func (k *HTTPKernel) Handler() http.Handler { return k.router.Handler() }

// Router exposes the route table for route:list.
func (k *HTTPKernel) Router() *router.Router { return k.router }

func corsOptions() middleware.CORSOptions {
	opts := middleware.DefaultCORSOptions()
	opts.AllowedOrigins = config.CORSOrigins()
	opts.AllowCredentials = true
	return opts
}

// healthz reports 200 while the database answers. Redis is optional and
// only reported.
func healthz(w http.ResponseWriter, r *http.Request) {
	c, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	status := map[string]string{"database": "ok", "redis": "disabled"}
	code := http.StatusOK

	if err := database.Ping(c); err != nil {
		status["database"] = err.Error()
		code = http.StatusServiceUnavailable
	}
	if cache.Available() {
		status["redis"] = "ok"
		if err := cache.RDB.Ping(c).Err(); err != nil {
			status["redis"] = err.Error()
		}
	}

	if code != http.StatusOK {
		response.Error(w, code, "Service unavailable")
		return
	}
	response.Success(w, status)
}
