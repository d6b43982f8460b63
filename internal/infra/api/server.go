// Package api is the HTTP boundary of the activation service.
package api

import (
	"net/http"
	"reflect"
	"strings"
	"time"

	"activation-service/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const deprecatedMessage = "This endpoint is deprecated. Please use the new API endpoints."

// Server routes the four activation operations to the use case.
type Server struct {
	uc       usecase.ActivationUseCase
	auth     *AuthManager
	validate *validator.Validate
	log      *zerolog.Logger

	timeout time.Duration
	metrics bool
}

type ServerOption func(*Server)

// WithAdminAuth guards deactivate and update-expiry with bearer tokens.
func WithAdminAuth(a *AuthManager) ServerOption {
	return func(s *Server) { s.auth = a }
}

func WithRequestTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.timeout = d }
}

// WithMetrics exposes GET /metrics.
func WithMetrics(enabled bool) ServerOption {
	return func(s *Server) { s.metrics = enabled }
}

func NewServer(uc usecase.ActivationUseCase, logger *zerolog.Logger, opts ...ServerOption) *Server {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "HTTP").Logger()

	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	s := &Server{uc: uc, validate: v, log: &l, timeout: 10 * time.Second}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the full router wrapped in the request middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Post("/check-activation", s.handleCheckActivation)
		r.Post("/check-status", s.handleCheckStatus)
		r.With(s.admin("deactivate")...).Post("/deactivate", s.handleDeactivate)
		r.With(s.admin("update_expiry")...).Post("/update-expiry", s.handleUpdateExpiry)
	})

	r.Get("/rest/v1/Database", handleDeprecated)
	r.Patch("/rest/v1/Database", handleDeprecated)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	if s.metrics {
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	}

	return Chain(r,
		TraceID(),
		RequestLog(s.log),
		Recover(s.log),
		Timeout(s.timeout),
	)
}

func (s *Server) admin(route string) []func(http.Handler) http.Handler {
	if s.auth == nil {
		return nil
	}
	return []func(http.Handler) http.Handler{s.auth.Middleware(route, s.log)}
}

func handleDeprecated(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusGone)
	render.JSON(w, r, map[string]string{"error": deprecatedMessage})
}
