// Package identity verifies bearer tokens issued by the external identity
// provider and carries the caller through the request context.
package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const RoleAdmin = "admin"

var ErrNoToken = errors.New("missing bearer token")

type User struct {
	ID    string
	Role  string
	Email string
}

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

type Claims struct {
	Role  string `json:"role,omitempty"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Verifier checks HS256 tokens. Expired tokens are rejected, which is the
// session liveness check.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

func (v *Verifier) Verify(token string) (User, error) {
	var c Claims
	_, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return User{}, err
	}
	if c.Subject == "" {
		return User{}, errors.New("token has no subject")
	}
	return User{ID: c.Subject, Role: c.Role, Email: c.Email}, nil
}

// FromHeader extracts the token from an Authorization header value.
func (v *Verifier) FromHeader(h string) (User, error) {
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return User{}, ErrNoToken
	}
	return v.Verify(strings.TrimSpace(h[len(prefix):]))
}

// Issue signs a token for u. The real provider issues tokens in production;
// this is used by tests and local tooling.
func (v *Verifier) Issue(u User, ttl time.Duration) (string, error) {
	now := time.Now()
	c := Claims{
		Role:  u.Role,
		Email: u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(v.secret)
}

type ctxKey struct{}

func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// FromContext returns the authenticated user, if any.
func FromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(ctxKey{}).(User)
	return u, ok && u.ID != ""
}
