// README: HS256 bearer token issuer and verifier for users, drivers and admins.
package infra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/spf13/cast"
)

var ErrInvalidToken = errors.New("invalid token")

// Token holds the verified claims used by downstream middleware.
type Token struct {
	UserID int64
	Role   string
}

// TokenVerifier verifies a raw bearer token string and returns its claims.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, raw string) (*Token, error)
}

type JWTAuth struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewJWTAuth(secret string, ttl time.Duration) *JWTAuth {
	return &JWTAuth{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for the given user and role.
func (a *JWTAuth) Issue(userID int64, role string) (string, error) {
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"exp":  a.now().Add(a.ttl).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (a *JWTAuth) VerifyToken(_ context.Context, raw string) (*Token, error) {
	parsed, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	uid, err := cast.ToInt64E(claims["sub"])
	if err != nil || uid <= 0 {
		return nil, ErrInvalidToken
	}
	role, _ := claims["role"].(string)
	if role == "" {
		return nil, ErrInvalidToken
	}
	return &Token{UserID: uid, Role: role}, nil
}
