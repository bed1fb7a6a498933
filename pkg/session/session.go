// Package session carries the authenticated identity of a request and keeps
// the list of revoked tokens.
//
// Usage (middleware):
//
//	ctx := session.WithIdentity(r.Context(), session.Identity{UserID: id, Role: "client"})
//	next.ServeHTTP(w, r.WithContext(ctx))
//
// Usage (handler):
//
//	id, ok := session.FromCtx(r.Context())
//	if !ok { ... }
package session

import (
	"context"
	"sync"
	"time"

	"github.com/shashiranjanraj/foodie/pkg/cache"
)

const (
	RoleAdmin  = "admin"
	RoleClient = "client"
)

// Identity is who is making the request.
type Identity struct {
	UserID  string
	Email   string
	Role    string
	TokenID string
	Expires time.Time
}

// IsAdmin reports whether the identity carries the admin role.
func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

type ctxKey struct{}

// WithIdentity returns a copy of ctx holding id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromCtx returns the identity stored by the auth middleware.
func FromCtx(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok && id.UserID != ""
}

// ------------------- Revocation -------------------

func redisKey(jti string) string { return "foodie:revoked:" + jti }

var (
	memMu      sync.Mutex
	memRevoked = map[string]time.Time{}
)

// Revoke marks the token id as unusable until ttl has passed. Redis is used
// when connected; otherwise the list lives in process memory.
func Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" || ttl <= 0 {
		return nil
	}
	if cache.Available() {
		return cache.RDB.Set(ctx, redisKey(jti), "1", ttl).Err()
	}

	memMu.Lock()
	memRevoked[jti] = time.Now().Add(ttl)
	memMu.Unlock()
	return nil
}

// IsRevoked reports whether the token id was revoked. A Redis error is
// treated as not revoked so an outage does not log everybody out.
func IsRevoked(ctx context.Context, jti string) bool {
	if jti == "" {
		return false
	}
	if cache.Available() {
		n, err := cache.RDB.Exists(ctx, redisKey(jti)).Result()
		return err == nil && n > 0
	}

	memMu.Lock()
	defer memMu.Unlock()
	until, ok := memRevoked[jti]
	if !ok {
		return false
	}
	if time.Now().After(until) {
		delete(memRevoked, jti)
		return false
	}
	return true
}
