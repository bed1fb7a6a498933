// Package auth issues and verifies the HS256 access tokens handed out at
// login, and hashes passwords.
//
// Tokens carry a key id, so JWT_SECRET can be rotated without logging
// everyone out: move the old value to JWT_PREVIOUS_SECRET and tokens signed
// with it stay valid until they expire.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/shashiranjanraj/foodie/config"
)

// Issuer is the iss claim of every token.
const Issuer = "foodie"

// clock skew tolerated on exp, nbf and iat
const leeway = 30 * time.Second

var (
	ErrTokenExpired = errors.New("auth: token expired")
	ErrTokenInvalid = errors.New("auth: token invalid")
	ErrNoSecret     = errors.New("auth: JWT_SECRET is empty")
)

// Claims is the token payload. The jti (RegisteredClaims.ID) is what
// logout revokes.
type Claims struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

type key struct {
	id     string
	secret []byte
}

func keyFor(secret string) key {
	sum := sha256.Sum256([]byte(secret))
	return key{id: hex.EncodeToString(sum[:4]), secret: []byte(secret)}
}

// keys returns the signing key first, then any key still accepted.
func keys() []key {
	out := []key{keyFor(config.JWTSecret())}
	if prev := config.JWTPreviousSecret(); prev != "" {
		out = append(out, keyFor(prev))
	}
	return out
}

// IssueToken signs a token for the user valid for ttl. The claims are
// returned too so the caller can match the cookie lifetime.
func IssueToken(userID, email, role string, ttl time.Duration) (string, *Claims, error) {
	k := keys()[0]
	if len(k.secret) == 0 {
		return "", nil, ErrNoSecret
	}

	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tok.Header["kid"] = k.id
	signed, err := tok.SignedString(k.secret)
	if err != nil {
		return "", nil, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, claims, nil
}

// ParseToken verifies signature, issuer and lifetime. Any failure other
// than expiry is reported as ErrTokenInvalid.
func ParseToken(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, lookupKey,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(leeway),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	case claims.UserID == "" || claims.UserID != claims.Subject:
		return nil, fmt.Errorf("%w: subject mismatch", ErrTokenInvalid)
	}
	return claims, nil
}

func lookupKey(tok *jwt.Token) (interface{}, error) {
	ks := keys()
	kid, _ := tok.Header["kid"].(string)
	if kid == "" {
		return ks[0].secret, nil
	}
	for _, k := range ks {
		if k.id == kid {
			return k.secret, nil
		}
	}
	return nil, fmt.Errorf("unknown key id %q", kid)
}
