package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc/metadata"

	"cityServiceDesk/models"
)

// Principal represents the authenticated caller. A nil *Principal is an
// anonymous caller.
type Principal struct {
	UserID int64
	Role   models.Role
}

// IsAdmin reports whether the principal carries the admin role.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == models.RoleAdmin
}

type principalKey struct{}

// WithPrincipal stores the principal in context.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext retrieves the principal from context (if any).
func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}

// ErrNoCredentials means the caller did not present a token at all.
var ErrNoCredentials = errors.New("missing authorization")

type claims struct {
	UserID int64  `json:"uid"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// ParseFromMD extracts and validates a Bearer JWT from gRPC metadata.
// It returns ErrNoCredentials when no authorization entry is present.
func ParseFromMD(ctx context.Context, secret string) (*Principal, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, ErrNoCredentials
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return nil, ErrNoCredentials
	}
	return ParseBearer(vals[0], secret)
}

// ParseBearer validates an "Authorization: Bearer <token>" header value.
// An empty header yields ErrNoCredentials.
func ParseBearer(header, secret string) (*Principal, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, ErrNoCredentials
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, errors.New("invalid authorization header")
	}
	return parseJWT(strings.TrimSpace(parts[1]), secret)
}

// parseJWT validates and extracts claims from a JWT token.
func parseJWT(tokenStr string, secret string) (*Principal, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	tok, err := jwt.ParseWithClaims(tokenStr, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		if err == nil {
			err = errors.New("invalid token")
		}
		return nil, err
	}
	c, _ := tok.Claims.(*claims)
	if c == nil || c.UserID <= 0 {
		return nil, errors.New("invalid claims")
	}
	role, ok := models.ParseRole(c.Role)
	if !ok {
		return nil, errors.New("invalid role claim")
	}
	return &Principal{UserID: c.UserID, Role: role}, nil
}

// IssueToken signs an HS256 token for the user. A non-positive ttl issues a
// token without expiry.
func IssueToken(secret string, u *models.User, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is empty")
	}
	if u == nil || u.ID <= 0 {
		return "", errors.New("user is required")
	}
	now := time.Now()
	c := claims{
		UserID: u.ID,
		Role:   string(u.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  u.Login,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		c.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
}
