package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"activation-service/internal/infra/logging"
	"activation-service/internal/infra/metrics"

	"github.com/go-chi/render"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

const adminRole = "admin"

var (
	errMissingToken = errors.New("missing token")
	errInvalidToken = errors.New("invalid token")
)

// AuthManager mints and checks HS256 bearer tokens for the admin routes.
type AuthManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewAuthManager(secret string, ttl time.Duration) *AuthManager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &AuthManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Mint returns a signed admin token for subject.
func (a *AuthManager) Mint(subject string) (string, error) {
	now := a.now()
	claims := AdminClaims{
		Role: adminRole,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			Subject:   subject,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// ParseFromRequest reads "Authorization: Bearer <jwt>".
func (a *AuthManager) ParseFromRequest(r *http.Request) (*AdminClaims, error) {
	hdr := r.Header.Get("Authorization")
	if len(hdr) < 7 || !strings.EqualFold(hdr[:7], "bearer ") {
		return nil, errMissingToken
	}
	return a.parse(strings.TrimSpace(hdr[7:]))
}

func (a *AuthManager) parse(tok string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil || !tkn.Valid || claims.Role != adminRole {
		return nil, errInvalidToken
	}
	return claims, nil
}

// Middleware rejects requests without a valid admin token with 401 in the
// {success:false,error} shape of the admin routes.
func (a *AuthManager) Middleware(route string, logger *zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := a.ParseFromRequest(r)
			if err != nil {
				metrics.IncAdminRequest(route, "unauthorized")
				logging.With(r.Context(), logger).Warn().Err(err).Str("route", route).Msg("admin request rejected")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, failure{Success: false, Error: "Unauthorized"})
				return
			}
			metrics.IncAdminRequest(route, "authorized")
			logging.With(r.Context(), logger).Debug().Str("subject", claims.Subject).Str("route", route).Msg("admin request")
			next.ServeHTTP(w, r)
		})
	}
}
