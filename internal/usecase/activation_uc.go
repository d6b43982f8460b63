package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"activation-service/internal/domain"
	"activation-service/internal/domain/model"
	"activation-service/internal/domain/ports/repository"
	"activation-service/internal/infra/logging"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ ActivationUseCase = (*activationUC)(nil)

// ActivationUseCase is the activation state machine over records keyed by normalized code.
//
// Errors are domain sentinels: ErrInvalidArgument (missing input, never touches
// the store), ErrCodeNotFound, ErrAlreadyActivatedElsewhere, ErrCodeExpired, and
// anything wrapping ErrStore for backend failures.
type ActivationUseCase interface {
	// Validate checks a code and binds it to a freshly generated device id on first use.
	Validate(ctx context.Context, code, deviceID string) (*ValidateResult, error)
	// CheckStatus reports whether deviceID is currently logged in with code.
	// Store failures are reported as "not logged in", not as errors.
	CheckStatus(ctx context.Context, code, deviceID string) (*StatusResult, error)
	// Deactivate unbinds the device and clears the active flag. Idempotent.
	Deactivate(ctx context.Context, code string) (*model.ActivationRecord, error)
	// UpdateExpiry sets the last valid day. expiry must be YYYY-MM-DD.
	UpdateExpiry(ctx context.Context, code, expiry string) (*model.ActivationRecord, error)
}

type ValidateOutcome string

const (
	OutcomeActivated     ValidateOutcome = "activated"
	OutcomeAlreadyActive ValidateOutcome = "already_active"
)

type ValidateResult struct {
	Outcome ValidateOutcome
	Record  *model.ActivationRecord
}

// StatusResult is the answer of CheckStatus. Record is set whenever the caller's
// device matched, including the deactivated case where IsActive is false.
type StatusResult struct {
	LoggedIn bool
	Record   *model.ActivationRecord
}

const activationLockTTL = 5 * time.Second

type ActivationOption func(*activationUC)

// WithClock overrides the time source used for expiry checks and device ids.
func WithClock(now func() time.Time) ActivationOption {
	return func(a *activationUC) { a.now = now }
}

// WithLocation sets the zone whose calendar day counts as "today".
func WithLocation(loc *time.Location) ActivationOption {
	return func(a *activationUC) { a.loc = loc }
}

func WithDeviceIDGenerator(gen func() string) ActivationOption {
	return func(a *activationUC) { a.newDeviceID = gen }
}

// WithDevMode disables code redaction in logs.
func WithDevMode(dev bool) ActivationOption {
	return func(a *activationUC) { a.dev = dev }
}

type activationUC struct {
	records repository.ActivationRepository
	tm      repository.TransactionManager
	locker  repository.Locker
	log     *zerolog.Logger

	now         func() time.Time
	loc         *time.Location
	newDeviceID func() string
	dev         bool
}

// NewActivationUseCase wires the activation manager. tm and locker may be nil:
// without tm every call runs on the non-transactional path, without locker
// validate relies on the store's conditional bind alone.
func NewActivationUseCase(
	records repository.ActivationRepository,
	tm repository.TransactionManager,
	locker repository.Locker,
	logger *zerolog.Logger,
	opts ...ActivationOption,
) ActivationUseCase {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "ActivationUC").Logger()
	a := &activationUC{
		records: records,
		tm:      tm,
		locker:  locker,
		log:     &l,
		now:     time.Now,
		loc:     time.Local,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.newDeviceID == nil {
		a.newDeviceID = newDeviceIDSource(a.now).Next
	}
	return a
}

func (a *activationUC) Validate(ctx context.Context, code, deviceID string) (*ValidateResult, error) {
	defer logging.TraceDuration(a.log, "ActivationUC.Validate")()

	if strings.TrimSpace(code) == "" {
		return nil, domain.ErrInvalidArgument
	}
	code = model.NormalizeCode(code)
	deviceID = strings.TrimSpace(deviceID)
	log := a.logger(ctx, code)

	if a.locker != nil {
		key := "activation:lock:" + code
		token, err := a.locker.TryLock(ctx, key, activationLockTTL)
		if err != nil {
			// The conditional bind still guarantees a single device.
			log.Warn().Err(err).Msg("validate lock not acquired; continuing without it")
		} else {
			defer func() {
				if err := a.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
					log.Warn().Err(err).Msg("validate unlock failed")
				}
			}()
		}
	}

	var res *ValidateResult
	err := a.withTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		rec, err := a.records.FindByCode(ctx, tx, code)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrCodeNotFound
			}
			return storeErr("find", err)
		}

		if rec.IsBound() && deviceID != "" && rec.DeviceID != deviceID {
			return domain.ErrAlreadyActivatedElsewhere
		}

		if rec.ExpiredOn(a.today()) {
			inactive := false
			if _, err := a.records.Update(ctx, tx, code, model.ActivationPatch{IsActive: &inactive}); err != nil {
				return storeErr("expire", err)
			}
			log.Info().Str("active_till", rec.ActiveTill.String()).Msg("activation code expired")
			return domain.ErrCodeExpired
		}

		if rec.IsBound() {
			res = &ValidateResult{Outcome: OutcomeAlreadyActive, Record: rec}
			return nil
		}

		bound, err := a.records.BindDevice(ctx, tx, code, a.newDeviceID())
		switch {
		case err == nil:
			log.Info().Msg("activation code bound to new device")
			res = &ValidateResult{Outcome: OutcomeActivated, Record: bound}
			return nil
		case errors.Is(err, domain.ErrDeviceAlreadyBound):
			// Another caller bound the code between our read and our write.
			return domain.ErrAlreadyActivatedElsewhere
		case errors.Is(err, domain.ErrNotFound):
			return domain.ErrCodeNotFound
		default:
			return storeErr("bind", err)
		}
	})
	if err != nil {
		if errors.Is(err, domain.ErrStore) {
			log.Error().Err(err).Msg("validate failed")
		}
		return nil, err
	}
	return res, nil
}

func (a *activationUC) CheckStatus(ctx context.Context, code, deviceID string) (*StatusResult, error) {
	defer logging.TraceDuration(a.log, "ActivationUC.CheckStatus")()

	deviceID = strings.TrimSpace(deviceID)
	if strings.TrimSpace(code) == "" || deviceID == "" {
		return nil, domain.ErrInvalidArgument
	}
	code = model.NormalizeCode(code)
	log := a.logger(ctx, code)

	rec, err := a.records.FindByCode(ctx, repository.NoTX, code)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			log.Warn().Err(err).Msg("status lookup failed; reporting not logged in")
		}
		return &StatusResult{LoggedIn: false}, nil
	}

	if rec.DeviceID != deviceID {
		return &StatusResult{LoggedIn: false}, nil
	}

	if rec.ExpiredOn(a.today()) || !rec.IsActive {
		inactive := false
		if _, err := a.records.Update(ctx, repository.NoTX, code, model.ActivationPatch{IsActive: &inactive}); err != nil {
			log.Error().Err(err).Msg("failed to persist inactive flag")
		}
		rec.IsActive = false
		return &StatusResult{LoggedIn: false, Record: rec}, nil
	}

	return &StatusResult{LoggedIn: true, Record: rec}, nil
}

func (a *activationUC) Deactivate(ctx context.Context, code string) (*model.ActivationRecord, error) {
	defer logging.TraceDuration(a.log, "ActivationUC.Deactivate")()

	if strings.TrimSpace(code) == "" {
		return nil, domain.ErrInvalidArgument
	}
	code = model.NormalizeCode(code)

	inactive := false
	rec, err := a.records.Update(ctx, repository.NoTX, code, model.ActivationPatch{
		IsActive:     &inactive,
		UnbindDevice: true,
	})
	if err != nil {
		return nil, a.mapWriteErr(ctx, code, "deactivate", err)
	}
	a.logger(ctx, code).Info().Msg("activation code deactivated")
	return rec, nil
}

func (a *activationUC) UpdateExpiry(ctx context.Context, code, expiry string) (*model.ActivationRecord, error) {
	defer logging.TraceDuration(a.log, "ActivationUC.UpdateExpiry")()

	if strings.TrimSpace(code) == "" || strings.TrimSpace(expiry) == "" {
		return nil, domain.ErrInvalidArgument
	}
	till, err := model.ParseDate(strings.TrimSpace(expiry))
	if err != nil {
		return nil, err
	}
	code = model.NormalizeCode(code)

	rec, err := a.records.Update(ctx, repository.NoTX, code, model.ActivationPatch{ActiveTill: &till})
	if err != nil {
		return nil, a.mapWriteErr(ctx, code, "update_expiry", err)
	}
	a.logger(ctx, code).Info().Str("active_till", till.String()).Msg("activation expiry updated")
	return rec, nil
}

func (a *activationUC) mapWriteErr(ctx context.Context, code, op string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrCodeNotFound
	}
	err = storeErr(op, err)
	a.logger(ctx, code).Error().Err(err).Str("op", op).Msg("store write failed")
	return err
}

func (a *activationUC) withTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	if a.tm == nil {
		return fn(ctx, repository.NoTX)
	}
	var inner error
	err := a.tm.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		inner = fn(ctx, tx)
		// Business outcomes commit; Expired carries a corrective write.
		if isBusinessErr(inner) {
			return nil
		}
		return inner
	})
	if err != nil {
		if inner != nil && !isBusinessErr(inner) {
			return inner
		}
		return storeErr("tx", err)
	}
	return inner
}

func isBusinessErr(err error) bool {
	return errors.Is(err, domain.ErrCodeExpired) ||
		errors.Is(err, domain.ErrAlreadyActivatedElsewhere) ||
		errors.Is(err, domain.ErrCodeNotFound)
}

func (a *activationUC) today() model.Date {
	return model.Today(a.now(), a.loc)
}

func (a *activationUC) logger(ctx context.Context, code string) *zerolog.Logger {
	base := logging.With(ctx, a.log)
	l := base.With().Str("code", logging.Redact(code, a.dev)).Logger()
	return &l
}

// StoreError is a record store failure during Op (find, expire, bind, tx,
// deactivate, update_expiry). It matches domain.ErrStore and the cause.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, domain.ErrStore, e.Err)
}

func (e *StoreError) Unwrap() []error { return []error{domain.ErrStore, e.Err} }

func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}
