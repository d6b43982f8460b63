package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"activation-service/internal/domain"
	"activation-service/internal/domain/model"
	"activation-service/internal/domain/ports/repository"
)

var _ repository.ActivationRepository = (*PostgresActivationRepo)(nil)

const activationColumns = `code, device_id, is_active, active_till, name, email`

// PostgresActivationRepo stores activation records in a single table keyed by code.
// device_id is NULL while a record is unbound.
type PostgresActivationRepo struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgresActivationRepo uses table, or "activations" when empty.
func NewPostgresActivationRepo(pool *pgxpool.Pool, table string) *PostgresActivationRepo {
	if table == "" {
		table = "activations"
	}
	return &PostgresActivationRepo{pool: pool, table: pgx.Identifier{table}.Sanitize()}
}

func (r *PostgresActivationRepo) Create(ctx context.Context, tx repository.Tx, rec *model.ActivationRecord) error {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`
INSERT INTO %s (code, device_id, is_active, active_till, name, email)
VALUES ($1, $2, $3, $4, $5, $6);`, r.table)

	_, err = ex.Exec(ctx, q, rec.Code, nullable(rec.DeviceID), rec.IsActive, rec.ActiveTill.Time(), rec.Name, rec.Email)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("insert activation: %w", err)
	}
	return nil
}

// FindByCode locks the row (FOR UPDATE) when called inside a transaction so
// the read-check-write in Validate cannot interleave with another instance.
func (r *PostgresActivationRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.ActivationRecord, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE code = $1`, activationColumns, r.table)
	if inTx(tx) {
		q += ` FOR UPDATE`
	}
	return scanActivation(ex.QueryRow(ctx, q, code))
}

func (r *PostgresActivationRepo) Update(ctx context.Context, tx repository.Tx, code string, patch model.ActivationPatch) (*model.ActivationRecord, error) {
	if patch.IsEmpty() {
		return r.FindByCode(ctx, tx, code)
	}
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}

	args := []interface{}{code}
	sets := []string{"updated_at = now()"}
	if patch.IsActive != nil {
		args = append(args, *patch.IsActive)
		sets = append(sets, fmt.Sprintf("is_active = $%d", len(args)))
	}
	if patch.ActiveTill != nil {
		args = append(args, patch.ActiveTill.Time())
		sets = append(sets, fmt.Sprintf("active_till = $%d", len(args)))
	}
	if patch.UnbindDevice {
		sets = append(sets, "device_id = NULL")
	}

	q := fmt.Sprintf(`UPDATE %s SET %s WHERE code = $1 RETURNING %s`,
		r.table, strings.Join(sets, ", "), activationColumns)
	return scanActivation(ex.QueryRow(ctx, q, args...))
}

// BindDevice is a conditional update: it only matches while device_id IS NULL.
// When nothing matched, a second read tells a lost race from a missing code.
func (r *PostgresActivationRepo) BindDevice(ctx context.Context, tx repository.Tx, code, deviceID string) (*model.ActivationRecord, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`
UPDATE %s SET device_id = $2, updated_at = now()
 WHERE code = $1 AND device_id IS NULL
RETURNING %s`, r.table, activationColumns)

	rec, err := scanActivation(ex.QueryRow(ctx, q, code, deviceID))
	if !errors.Is(err, domain.ErrNotFound) {
		return rec, err
	}

	var exists bool
	if err := ex.QueryRow(ctx, fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE code = $1)`, r.table), code).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check activation: %w", err)
	}
	if exists {
		return nil, domain.ErrDeviceAlreadyBound
	}
	return nil, domain.ErrNotFound
}

func scanActivation(row pgx.Row) (*model.ActivationRecord, error) {
	var (
		rec      model.ActivationRecord
		deviceID *string
		till     time.Time
	)
	if err := row.Scan(&rec.Code, &deviceID, &rec.IsActive, &till, &rec.Name, &rec.Email); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	if deviceID != nil {
		rec.DeviceID = *deviceID
	}
	rec.ActiveTill = model.DateOf(till)
	return &rec, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
