// Package memory is a process-local ActivationRepository for dev mode and tests.
package memory

import (
	"context"
	"sync"

	"activation-service/internal/domain"
	"activation-service/internal/domain/model"
	"activation-service/internal/domain/ports/repository"
)

var _ repository.ActivationRepository = (*ActivationRepo)(nil)

// ActivationRepo keeps records in a map guarded by one mutex. The tx argument is ignored.
// Records are copied on the way in and out so callers never share state with the store.
type ActivationRepo struct {
	mu      sync.Mutex
	records map[string]model.ActivationRecord
}

func NewActivationRepo(seed ...*model.ActivationRecord) *ActivationRepo {
	r := &ActivationRepo{records: make(map[string]model.ActivationRecord, len(seed))}
	for _, rec := range seed {
		r.records[rec.Code] = *rec
	}
	return r
}

func (r *ActivationRepo) Create(_ context.Context, _ repository.Tx, rec *model.ActivationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[rec.Code]; ok {
		return domain.ErrAlreadyExists
	}
	r.records[rec.Code] = *rec
	return nil
}

func (r *ActivationRepo) FindByCode(_ context.Context, _ repository.Tx, code string) (*model.ActivationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &rec, nil
}

func (r *ActivationRepo) Update(_ context.Context, _ repository.Tx, code string, patch model.ActivationPatch) (*model.ActivationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	patch.Apply(&rec)
	r.records[code] = rec
	return &rec, nil
}

func (r *ActivationRepo) BindDevice(_ context.Context, _ repository.Tx, code, deviceID string) (*model.ActivationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if rec.IsBound() {
		return nil, domain.ErrDeviceAlreadyBound
	}
	rec.DeviceID = deviceID
	r.records[code] = rec
	return &rec, nil
}

// Len reports how many records are stored.
func (r *ActivationRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}
