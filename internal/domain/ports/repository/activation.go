package repository

import (
	"context"

	"activation-service/internal/domain/model"
)

// ActivationRepository is the port for the activation record store.
// Every method accepts a nil tx (non-transactional path).
type ActivationRepository interface {
	// Create inserts a new record. Returns domain.ErrAlreadyExists when the code is taken.
	Create(ctx context.Context, tx Tx, rec *model.ActivationRecord) error
	// FindByCode looks up a record by normalized code. Returns domain.ErrNotFound when absent.
	FindByCode(ctx context.Context, tx Tx, code string) (*model.ActivationRecord, error)
	// Update applies only the fields named in patch and returns the updated record.
	// Returns domain.ErrNotFound when the code is absent.
	Update(ctx context.Context, tx Tx, code string, patch model.ActivationPatch) (*model.ActivationRecord, error)
	// BindDevice sets the device id only if the record is currently unbound.
	// Returns domain.ErrDeviceAlreadyBound if another device got there first and
	// domain.ErrNotFound when the code is absent.
	BindDevice(ctx context.Context, tx Tx, code, deviceID string) (*model.ActivationRecord, error)
}
