//go:build !integration

package usecase_test

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"activation-service/internal/domain"
	"activation-service/internal/domain/model"
	"activation-service/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// fixedClock returns a clock pinned to the given YYYY-MM-DD at noon UTC.
func fixedClock(day string) func() time.Time {
	t, err := time.Parse(time.DateOnly, day)
	if err != nil {
		panic(err)
	}
	t = t.Add(12 * time.Hour)
	return func() time.Time { return t }
}

func mustDate(s string) model.Date {
	d, err := model.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// =============================
// Activation repository
// =============================

// MockActivationRepo is an in-memory ActivationRepository with optional
// per-method overrides and write counters.
type MockActivationRepo struct {
	mu     sync.Mutex
	byCode map[string]*model.ActivationRecord

	Updates  []model.ActivationPatch
	Binds    []string
	LastTx   []repository.Tx
	findHits int

	FindByCodeFunc func(ctx context.Context, code string) (*model.ActivationRecord, error)
	UpdateFunc     func(ctx context.Context, code string, patch model.ActivationPatch) (*model.ActivationRecord, error)
	BindDeviceFunc func(ctx context.Context, code, deviceID string) (*model.ActivationRecord, error)
}

var _ repository.ActivationRepository = (*MockActivationRepo)(nil)

func NewMockActivationRepo(seed ...*model.ActivationRecord) *MockActivationRepo {
	m := &MockActivationRepo{byCode: map[string]*model.ActivationRecord{}}
	for _, r := range seed {
		cp := *r
		m.byCode[r.Code] = &cp
	}
	return m
}

func (m *MockActivationRepo) Create(ctx context.Context, tx repository.Tx, rec *model.ActivationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byCode[rec.Code]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *rec
	m.byCode[rec.Code] = &cp
	return nil
}

func (m *MockActivationRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.ActivationRecord, error) {
	if m.FindByCodeFunc != nil {
		return m.FindByCodeFunc(ctx, code)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findHits++
	m.LastTx = append(m.LastTx, tx)
	r, ok := m.byCode[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MockActivationRepo) Update(ctx context.Context, tx repository.Tx, code string, patch model.ActivationPatch) (*model.ActivationRecord, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, code, patch)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Updates = append(m.Updates, patch)
	r, ok := m.byCode[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	patch.Apply(r)
	cp := *r
	return &cp, nil
}

func (m *MockActivationRepo) BindDevice(ctx context.Context, tx repository.Tx, code, deviceID string) (*model.ActivationRecord, error) {
	if m.BindDeviceFunc != nil {
		return m.BindDeviceFunc(ctx, code, deviceID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Binds = append(m.Binds, deviceID)
	r, ok := m.byCode[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if r.DeviceID != "" {
		return nil, domain.ErrDeviceAlreadyBound
	}
	r.DeviceID = deviceID
	cp := *r
	return &cp, nil
}

// Get returns a copy of the stored record for assertions.
func (m *MockActivationRepo) Get(code string) *model.ActivationRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byCode[code]
	if !ok {
		return nil
	}
	cp := *r
	return &cp
}

func (m *MockActivationRepo) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Updates) + len(m.Binds)
}

// =============================
// Transactions and locks
// =============================

type mockTx struct{}

type MockTxManager struct {
	Calls      int
	WithTxFunc func(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn immediately with a sentinel tx handle unless WithTxFunc is set.
func (m *MockTxManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.Calls++
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, fn)
	}
	return fn(ctx, mockTx{})
}

type MockLocker struct {
	mu       sync.Mutex
	held     map[string]string
	Acquired []string
	Released []string
	TryErr   error
}

var _ repository.Locker = (*MockLocker)(nil)

func NewMockLocker() *MockLocker {
	return &MockLocker{held: map[string]string{}}
}

func (l *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.TryErr != nil {
		return "", l.TryErr
	}
	if _, ok := l.held[key]; ok {
		return "", domain.ErrLockNotAcquired
	}
	tok := key + ":token"
	l.held[key] = tok
	l.Acquired = append(l.Acquired, key)
	return tok, nil
}

func (l *MockLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
	}
	l.Released = append(l.Released, key)
	return nil
}
