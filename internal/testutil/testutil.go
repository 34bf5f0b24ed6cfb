package testutil

import (
	"context"
	"database/sql"
	"testing"

	jwt "github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc/metadata"

	"cityServiceDesk/internal/db"
	"cityServiceDesk/models"
	"cityServiceDesk/repository"
)

// OpenInMemoryDB opens an in-memory SQLite database and applies migrations.
// The name must be unique per test so databases do not leak between tests.
func OpenInMemoryDB(t *testing.T, name string) *sql.DB {
	t.Helper()
	d, err := db.Open("file:" + name + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

// GenerateJWTHS256 returns a signed JWT string with the claims used by the app.
func GenerateJWTHS256(t *testing.T, secret string, uid int64, role string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"uid":  uid,
		"role": role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

// CtxWithBearer returns a context containing gRPC metadata Authorization header with the given token.
func CtxWithBearer(ctx context.Context, token string) context.Context {
	md := metadata.Pairs("authorization", "Bearer "+token)
	return metadata.NewIncomingContext(ctx, md)
}

// SeedUser creates a user with the given login and role.
func SeedUser(t *testing.T, users *repository.UserRepository, login string, role models.Role) *models.User {
	t.Helper()
	u, err := users.Create(context.Background(), &models.User{
		FullName: login,
		Login:    login,
		Email:    login + "@example.org",
		Role:     role,
	})
	if err != nil {
		t.Fatalf("seed user %s: %v", login, err)
	}
	return u
}

// SeedCategory registers a category directly in the store.
func SeedCategory(t *testing.T, categories *repository.CategoryRepository, name string) *models.Category {
	t.Helper()
	c, err := categories.Create(context.Background(), name)
	if err != nil {
		t.Fatalf("seed category %s: %v", name, err)
	}
	return c
}
