// Package auth models the external authentication provider. The engine
// never manages sessions; it only consumes a resolved principal and forwards
// the bearer credential to the notification service.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthenticated is returned when no valid principal can be resolved
// from the presented credential.
var ErrUnauthenticated = errors.New("unauthenticated")

// Principal is the authenticated acting user. Token carries the raw bearer
// credential so downstream calls can present it unchanged.
type Principal struct {
	ID    string
	Email string
	Token string
}

// Provider resolves a bearer credential into a principal.
type Provider interface {
	Authenticate(ctx context.Context, bearer string) (Principal, error)
}

// JWTProvider verifies HS256 bearer tokens. Claims: "sub" (principal id)
// and "email".
type JWTProvider struct {
	secret []byte
}

func NewJWTProvider(secret string) *JWTProvider {
	return &JWTProvider{secret: []byte(secret)}
}

func (p *JWTProvider) Authenticate(ctx context.Context, bearer string) (Principal, error) {
	if bearer == "" {
		return Principal{}, ErrUnauthenticated
	}

	token, err := jwt.Parse(bearer, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Principal{}, ErrUnauthenticated
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return Principal{}, fmt.Errorf("%w: missing sub claim", ErrUnauthenticated)
	}
	email, _ := claims["email"].(string)

	return Principal{ID: sub, Email: email, Token: bearer}, nil
}

// StaticProvider accepts a single fixed credential. Used in tests and local
// development where no identity backend is reachable.
type StaticProvider struct {
	Bearer    string
	Principal Principal
}

func (p *StaticProvider) Authenticate(ctx context.Context, bearer string) (Principal, error) {
	if bearer == "" || bearer != p.Bearer {
		return Principal{}, ErrUnauthenticated
	}
	out := p.Principal
	out.Token = bearer
	return out, nil
}
