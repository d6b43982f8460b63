//go:build !integration

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthManager(t *testing.T) {
	auth := NewAuthManager("test-admin-jwt-secret", time.Minute)

	bearer := func(tok string) *http.Request {
		r := httptest.NewRequest(http.MethodPost, "/api/deactivate", nil)
		r.Header.Set("Authorization", "Bearer "+tok)
		return r
	}

	t.Run("minted token round-trips", func(t *testing.T) {
		tok, err := auth.Mint("ops")
		require.NoError(t, err)
		claims, err := auth.ParseFromRequest(bearer(tok))
		require.NoError(t, err)
		assert.Equal(t, "ops", claims.Subject)
		assert.Equal(t, adminRole, claims.Role)
	})

	t.Run("scheme is case-insensitive", func(t *testing.T) {
		tok, _ := auth.Mint("ops")
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		r.Header.Set("Authorization", "bearer "+tok)
		_, err := auth.ParseFromRequest(r)
		assert.NoError(t, err)
	})

	t.Run("missing or wrong scheme", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		_, err := auth.ParseFromRequest(r)
		assert.ErrorIs(t, err, errMissingToken)

		r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		_, err = auth.ParseFromRequest(r)
		assert.ErrorIs(t, err, errMissingToken)
	})

	t.Run("expired token", func(t *testing.T) {
		old := NewAuthManager("test-admin-jwt-secret", time.Minute)
		old.now = func() time.Time { return time.Now().Add(-time.Hour) }
		tok, err := old.Mint("ops")
		require.NoError(t, err)
		_, err = auth.ParseFromRequest(bearer(tok))
		assert.ErrorIs(t, err, errInvalidToken)
	})

	t.Run("non-admin role", func(t *testing.T) {
		claims := AdminClaims{
			Role: "viewer",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			},
		}
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-admin-jwt-secret"))
		require.NoError(t, err)
		_, err = auth.ParseFromRequest(bearer(tok))
		assert.ErrorIs(t, err, errInvalidToken)
	})

	t.Run("other signing method", func(t *testing.T) {
		claims := AdminClaims{Role: adminRole}
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("test-admin-jwt-secret"))
		require.NoError(t, err)
		_, err = auth.ParseFromRequest(bearer(tok))
		assert.ErrorIs(t, err, errInvalidToken)
	})
}
