package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/shashiranjanraj/foodie/pkg/auth"
	"github.com/shashiranjanraj/foodie/pkg/response"
	"github.com/shashiranjanraj/foodie/pkg/session"
)

// TokenCookie is the cookie the login endpoint sets.
const TokenCookie = "token"

// AuthMiddleware requires a valid, unrevoked JWT from the Authorization
// header or the token cookie and stores the caller's identity in the
// request context.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := tokenFrom(r)
		if token == "" {
			response.Error(w, http.StatusUnauthorized, "Token missing")
			return
		}

		id, err := identify(r, token)
		if err != nil {
			msg := "Invalid token"
			if errors.Is(err, auth.ErrTokenExpired) {
				msg = "Token expired"
			}
			response.Error(w, http.StatusUnauthorized, msg)
			return
		}

		next.ServeHTTP(w, r.WithContext(session.WithIdentity(r.Context(), id)))
	})
}

// OptionalAuth attaches the identity when a valid token is present and
// otherwise lets the request through anonymously. Used by /graphql.
func OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := tokenFrom(r); token != "" {
			if id, err := identify(r, token); err == nil {
				r = r.WithContext(session.WithIdentity(r.Context(), id))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// AdminOnly must run after AuthMiddleware.
func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := session.FromCtx(r.Context())
		if !ok {
			response.Error(w, http.StatusUnauthorized, "Token missing")
			return
		}
		if !id.IsAdmin() {
			response.Error(w, http.StatusForbidden, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func tokenFrom(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		if t := strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")); t != "" {
			return t
		}
	}
	if c, err := r.Cookie(TokenCookie); err == nil {
		return c.Value
	}
	return ""
}

func identify(r *http.Request, token string) (session.Identity, error) {
	claims, err := auth.ParseToken(token)
	if err != nil {
		return session.Identity{}, err
	}
	if session.IsRevoked(r.Context(), claims.ID) {
		return session.Identity{}, errors.New("auth: token revoked")
	}

	var exp time.Time
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	return session.Identity{
		UserID:  claims.UserID,
		Email:   claims.Email,
		Role:    claims.Role,
		TokenID: claims.ID,
		Expires: exp,
	}, nil
}
