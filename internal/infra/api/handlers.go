package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"activation-service/internal/domain"
	"activation-service/internal/domain/model"
	"activation-service/internal/infra/logging"
	"activation-service/internal/infra/metrics"
	"activation-service/internal/usecase"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

// Client-facing messages. Causes are logged, never returned.
const (
	msgCodeRequired        = "Code is required"
	msgInvalidCode         = "Invalid activation code"
	msgActivatedElsewhere  = "This code is already activated on another device"
	msgExpired             = "Your subscription has expired"
	msgActivateFailed      = "Failed to activate code"
	msgDatabaseError       = "Database error"
	msgCodeDeviceRequired  = "Code and deviceId are required"
	msgDeactivateFailed    = "Failed to deactivate code"
	msgCodeExpiryRequired  = "Code and expiryDate are required"
	msgInvalidExpiryDate   = "expiryDate must be YYYY-MM-DD"
	msgUpdateExpiryFailed  = "Failed to update expiry date"
	msgCheckActivationFail = "Failed to check activation code"
)

// --- requests ---

type checkActivationRequest struct {
	Code     string `json:"code" validate:"required,max=128"`
	DeviceID string `json:"deviceId" validate:"omitempty,max=128"`
}

type checkStatusRequest struct {
	Code     string `json:"code" validate:"required,max=128"`
	DeviceID string `json:"deviceId" validate:"required,max=128"`
}

type deactivateRequest struct {
	Code string `json:"code" validate:"required,max=128"`
}

type updateExpiryRequest struct {
	Code       string `json:"code" validate:"required,max=128"`
	ExpiryDate string `json:"expiryDate" validate:"required"`
}

// --- responses ---

// recordView renders an unbound record with "deviceId": null.
type recordView struct {
	Code       string     `json:"code"`
	DeviceID   *string    `json:"deviceId"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	ActiveTill model.Date `json:"activeTill"`
	IsActive   bool       `json:"isActive"`
}

func viewOf(rec *model.ActivationRecord) *recordView {
	v := &recordView{
		Code:       rec.Code,
		Name:       rec.Name,
		Email:      rec.Email,
		ActiveTill: rec.ActiveTill,
		IsActive:   rec.IsActive,
	}
	if rec.DeviceID != "" {
		id := rec.DeviceID
		v.DeviceID = &id
	}
	return v
}

type validateResponse struct {
	Valid bool        `json:"valid"`
	Data  *recordView `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

type statusData struct {
	IsActive   bool        `json:"isActive"`
	Name       string      `json:"name,omitempty"`
	Email      string      `json:"email,omitempty"`
	ActiveTill *model.Date `json:"activeTill,omitempty"`
}

type statusResponse struct {
	Success    bool        `json:"success"`
	IsLoggedIn bool        `json:"isLoggedIn"`
	Data       *statusData `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
}

type adminResponse struct {
	Success bool        `json:"success"`
	Data    *recordView `json:"data"`
}

type failure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// decode reads and validates a JSON body. Any failure is a bad request.
func (s *Server) decode(r *http.Request, dst any) error {
	if err := render.DecodeJSON(r.Body, dst); err != nil {
		return err
	}
	return s.validate.Struct(dst)
}

// badRequestMsg names the field when the only problem is an over-long value;
// anything else (bad JSON, missing fields) gets fallback.
func badRequestMsg(err error, fallback string) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return fallback
	}
	for _, fe := range ve {
		if fe.Tag() != "max" {
			return fallback
		}
	}
	return fmt.Sprintf("%s must be at most %s characters", ve[0].Field(), ve[0].Param())
}

func observe(op string, start time.Time) {
	metrics.ObserveActivationDuration(op, time.Since(start))
}

// POST /api/check-activation
func (s *Server) handleCheckActivation(w http.ResponseWriter, r *http.Request) {
	const op = "validate"
	defer observe(op, time.Now())

	var req checkActivationRequest
	if err := s.decode(r, &req); err != nil {
		metrics.IncActivationOutcome(op, "bad_request")
		s.validateFail(w, r, http.StatusBadRequest, badRequestMsg(err, msgCodeRequired))
		return
	}

	res, err := s.uc.Validate(r.Context(), req.Code, req.DeviceID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidArgument):
			metrics.IncActivationOutcome(op, "bad_request")
			s.validateFail(w, r, http.StatusBadRequest, msgCodeRequired)
		case errors.Is(err, domain.ErrCodeNotFound):
			metrics.IncActivationOutcome(op, "invalid_code")
			s.validateFail(w, r, http.StatusNotFound, msgInvalidCode)
		case errors.Is(err, domain.ErrAlreadyActivatedElsewhere):
			metrics.IncActivationOutcome(op, "activated_elsewhere")
			s.validateFail(w, r, http.StatusBadRequest, msgActivatedElsewhere)
		case errors.Is(err, domain.ErrCodeExpired):
			metrics.IncActivationOutcome(op, "expired")
			s.validateFail(w, r, http.StatusBadRequest, msgExpired)
		case errors.Is(err, domain.ErrStore):
			msg := msgDatabaseError
			var se *usecase.StoreError
			if errors.As(err, &se) {
				metrics.IncStoreError(op + "_" + se.Op)
				if se.Op == "bind" {
					msg = msgActivateFailed
				}
			}
			metrics.IncActivationOutcome(op, "store_error")
			s.validateFail(w, r, http.StatusInternalServerError, msg)
		default:
			metrics.IncActivationOutcome(op, "error")
			s.logErr(r, op, err)
			s.validateFail(w, r, http.StatusInternalServerError, msgCheckActivationFail)
		}
		return
	}

	metrics.IncActivationOutcome(op, string(res.Outcome))
	render.JSON(w, r, validateResponse{Valid: true, Data: viewOf(res.Record)})
}

// POST /api/check-status
func (s *Server) handleCheckStatus(w http.ResponseWriter, r *http.Request) {
	const op = "check_status"
	defer observe(op, time.Now())

	var req checkStatusRequest
	if err := s.decode(r, &req); err != nil {
		metrics.IncActivationOutcome(op, "bad_request")
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, failure{Success: false, Error: badRequestMsg(err, msgCodeDeviceRequired)})
		return
	}

	res, err := s.uc.CheckStatus(r.Context(), req.Code, req.DeviceID)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			metrics.IncActivationOutcome(op, "bad_request")
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, failure{Success: false, Error: msgCodeDeviceRequired})
			return
		}
		metrics.IncActivationOutcome(op, "error")
		s.logErr(r, op, err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, statusResponse{Success: false, IsLoggedIn: false})
		return
	}

	switch {
	case res.LoggedIn:
		metrics.IncActivationOutcome(op, "logged_in")
		till := res.Record.ActiveTill
		render.JSON(w, r, statusResponse{
			Success:    true,
			IsLoggedIn: true,
			Data: &statusData{
				IsActive:   res.Record.IsActive,
				Name:       res.Record.Name,
				Email:      res.Record.Email,
				ActiveTill: &till,
			},
		})
	case res.Record != nil:
		metrics.IncActivationOutcome(op, "inactive")
		render.JSON(w, r, statusResponse{Success: false, IsLoggedIn: false, Data: &statusData{IsActive: false}})
	default:
		metrics.IncActivationOutcome(op, "logged_out")
		render.JSON(w, r, statusResponse{Success: false, IsLoggedIn: false})
	}
}

// POST /api/deactivate
func (s *Server) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	const op = "deactivate"
	defer observe(op, time.Now())

	var req deactivateRequest
	if err := s.decode(r, &req); err != nil {
		metrics.IncActivationOutcome(op, "bad_request")
		s.adminFail(w, r, http.StatusBadRequest, badRequestMsg(err, msgCodeRequired))
		return
	}

	rec, err := s.uc.Deactivate(r.Context(), req.Code)
	if err != nil {
		s.adminErr(w, r, op, err, msgCodeRequired, msgDeactivateFailed)
		return
	}
	metrics.IncActivationOutcome(op, "ok")
	render.JSON(w, r, adminResponse{Success: true, Data: viewOf(rec)})
}

// POST /api/update-expiry
func (s *Server) handleUpdateExpiry(w http.ResponseWriter, r *http.Request) {
	const op = "update_expiry"
	defer observe(op, time.Now())

	var req updateExpiryRequest
	if err := s.decode(r, &req); err != nil {
		metrics.IncActivationOutcome(op, "bad_request")
		s.adminFail(w, r, http.StatusBadRequest, badRequestMsg(err, msgCodeExpiryRequired))
		return
	}
	if _, err := model.ParseDate(req.ExpiryDate); err != nil {
		metrics.IncActivationOutcome(op, "bad_request")
		s.adminFail(w, r, http.StatusBadRequest, msgInvalidExpiryDate)
		return
	}

	rec, err := s.uc.UpdateExpiry(r.Context(), req.Code, req.ExpiryDate)
	if err != nil {
		s.adminErr(w, r, op, err, msgCodeExpiryRequired, msgUpdateExpiryFailed)
		return
	}
	metrics.IncActivationOutcome(op, "ok")
	render.JSON(w, r, adminResponse{Success: true, Data: viewOf(rec)})
}

func (s *Server) adminErr(w http.ResponseWriter, r *http.Request, op string, err error, badRequestMsg, failedMsg string) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		metrics.IncActivationOutcome(op, "bad_request")
		s.adminFail(w, r, http.StatusBadRequest, badRequestMsg)
	case errors.Is(err, domain.ErrCodeNotFound):
		metrics.IncActivationOutcome(op, "invalid_code")
		s.adminFail(w, r, http.StatusNotFound, msgInvalidCode)
	default:
		if errors.Is(err, domain.ErrStore) {
			metrics.IncStoreError(op)
		} else {
			s.logErr(r, op, err)
		}
		metrics.IncActivationOutcome(op, "store_error")
		s.adminFail(w, r, http.StatusInternalServerError, failedMsg)
	}
}

func (s *Server) validateFail(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, validateResponse{Valid: false, Error: msg})
}

func (s *Server) adminFail(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, failure{Success: false, Error: msg})
}

func (s *Server) logErr(r *http.Request, op string, err error) {
	logging.With(r.Context(), s.log).Error().Err(err).Str("op", op).Msg("unexpected activation error")
}
