package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")

	// Store failures (connectivity, constraint violations). Use-case errors wrap
	// this together with the cause.
	ErrStore = errors.New("record store failure")

	// Activation errors
	ErrCodeNotFound              = errors.New("activation code not found")
	ErrAlreadyActivatedElsewhere = errors.New("activation code already bound to another device")
	ErrCodeExpired               = errors.New("activation code has expired")
	ErrDeviceAlreadyBound        = errors.New("device already bound")
	ErrLockNotAcquired           = errors.New("lock not acquired")
)
