// Package middleware holds the HTTP middleware shared by every route:
// authentication, CORS, rate limiting, access logging and panic recovery.
package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shashiranjanraj/foodie/pkg/cache"
	"github.com/shashiranjanraj/foodie/pkg/logger"
	"github.com/shashiranjanraj/foodie/pkg/metrics"
	"github.com/shashiranjanraj/foodie/pkg/response"
)

// Limiter counts requests per client IP in fixed windows. Counters live in
// Redis when it is connected, so every instance shares the same budget;
// otherwise each process counts on its own.
type Limiter struct {
	max    int
	window time.Duration
	now    func() time.Time

	mu     sync.Mutex
	counts map[string]int
	sweep  time.Time
}

func NewLimiter(max int, window time.Duration) *Limiter {
	return &Limiter{
		max:    max,
		window: window,
		now:    time.Now,
		counts: map[string]int{},
	}
}

// Allow records one request from ip. When it is over budget it also
// returns how long until the window resets.
func (l *Limiter) Allow(ctx context.Context, ip string) (bool, time.Duration) {
	now := l.now()
	start := now.Truncate(l.window)
	retry := start.Add(l.window).Sub(now)
	key := fmt.Sprintf("foodie:rate:%s:%d", ip, start.Unix())

	if !cache.Available() {
		return l.incrMemory(key, start) <= l.max, retry
	}
	n, err := l.incrRedis(ctx, key)
	if err != nil {
		logger.WithCtx(ctx).Warn("rate limiter falling back to memory", "error", err)
		n = l.incrMemory(key, start)
	}
	return n <= l.max, retry
}

func (l *Limiter) incrRedis(ctx context.Context, key string) (int, error) {
	pipe := cache.RDB.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return int(incr.Val()), nil
}

func (l *Limiter) incrMemory(key string, start time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Keys embed their window, so anything left from an older window is dead.
	if start.After(l.sweep) {
		suffix := ":" + strconv.FormatInt(start.Unix(), 10)
		for k := range l.counts {
			if !strings.HasSuffix(k, suffix) {
				delete(l.counts, k)
			}
		}
		l.sweep = start
	}

	l.counts[key]++
	return l.counts[key]
}

// RateLimit rejects a client with 429 once it sends more than max requests
// in a window.
//
//	r.Use(middleware.RateLimit(200, time.Minute))
func RateLimit(max int, window time.Duration) func(http.Handler) http.Handler {
	return NewLimiter(max, window).Middleware
}

func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, retry := l.Allow(r.Context(), clientIP(r))
		if !ok {
			metrics.RateLimited.Inc()
			secs := int(retry.Seconds())
			if secs < 1 {
				secs = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			response.Error(w, http.StatusTooManyRequests, "Too many requests, please try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP prefers the first X-Forwarded-For hop, which is the client as
// seen by the load balancer.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
