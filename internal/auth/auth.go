// Package auth issues the JWTs used by the HTTP API and verifies the client
// secrets they are exchanged for.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrClientUnknown      = errors.New("client unknown")
	ErrCredentialsInvalid = errors.New("client credentials invalid")
)

// Role is carried in the "role" claim and selects the API surface a token can reach.
type Role string

const (
	RoleFrontend Role = "frontend"
	RoleReviewer Role = "reviewer"
)

const RoleClaim = "role"

type JWTAuth struct {
	secret   []byte
	issuer   string
	tokenTTL time.Duration
	now      func() time.Time
}

type Claims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

func NewJWTAuth(secret []byte, opts ...Option) *JWTAuth {
	a := &JWTAuth{
		secret:   secret,
		tokenTTL: 24 * time.Hour,
		issuer:   "taskmart",
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

type Option func(a *JWTAuth)

func WithIssuer(issuer string) Option {
	return func(a *JWTAuth) {
		a.issuer = issuer
	}
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(a *JWTAuth) {
		a.tokenTTL = ttl
	}
}

func (a *JWTAuth) TokenTTL() time.Duration {
	return a.tokenTTL
}

func (a *JWTAuth) CreateJWTString(sub string, role Role) (string, error) {
	now := a.now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.tokenTTL)),
		},
	})

	tokenString, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("token.SignedString: %w", err)
	}

	return tokenString, nil
}

// Clients maps client names to the bcrypt hashes of their secrets.
// A client without a hash cannot authenticate.
type Clients struct {
	hashes map[Role][]byte
}

func NewClients(frontendHash, reviewerHash string) *Clients {
	c := &Clients{hashes: make(map[Role][]byte)}

	if frontendHash != "" {
		c.hashes[RoleFrontend] = []byte(frontendHash)
	}

	if reviewerHash != "" {
		c.hashes[RoleReviewer] = []byte(reviewerHash)
	}

	return c
}

// Authenticate returns the role of client if secret matches its hash.
func (c *Clients) Authenticate(client, secret string) (Role, error) {
	role := Role(client)

	hash, ok := c.hashes[role]
	if !ok {
		return "", ErrClientUnknown
	}

	if err := bcrypt.CompareHashAndPassword(hash, []byte(secret)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return "", ErrCredentialsInvalid
		}

		return "", fmt.Errorf("bcrypt.CompareHashAndPassword: %w", err)
	}

	return role, nil
}

// HashSecret returns the bcrypt hash to configure for a client secret.
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("bcrypt.GenerateFromPassword: %w", err)
	}

	return string(hash), nil
}
