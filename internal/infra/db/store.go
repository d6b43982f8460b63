// Package db opens the record store selected by store.driver.
package db

import (
	"context"
	"fmt"

	"activation-service/internal/config"
	"activation-service/internal/domain/ports/repository"
	"activation-service/internal/infra/db/memory"
	mongostore "activation-service/internal/infra/db/mongo"
	pg "activation-service/internal/infra/db/postgres"

	"github.com/jackc/pgx/v4/pgxpool"
)

// Store bundles the repository with the driver-specific handles around it.
// Tx is nil unless the driver supports transactions; Pool is nil unless the
// driver is postgres.
type Store struct {
	Driver  string
	Records repository.ActivationRepository
	Tx      repository.TransactionManager
	Pool    *pgxpool.Pool

	close func(context.Context) error
}

// Close releases the driver's connections.
func (s *Store) Close(ctx context.Context) error {
	if s.close == nil {
		return nil
	}
	return s.close(ctx)
}

// Open connects to the configured backend.
func Open(ctx context.Context, cfg *config.Config) (*Store, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		pool, err := pg.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		return &Store{
			Driver:  cfg.Store.Driver,
			Records: pg.NewPostgresActivationRepo(pool, cfg.Database.Table),
			Tx:      pg.NewTxManager(pool),
			Pool:    pool,
			close:   func(context.Context) error { pool.Close(); return nil },
		}, nil

	case config.DriverMongo:
		client, database, err := mongostore.Connect(ctx, cfg.Mongo)
		if err != nil {
			return nil, err
		}
		repo, err := mongostore.NewActivationRepo(ctx, database, cfg.Mongo.Collection)
		if err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		return &Store{
			Driver:  cfg.Store.Driver,
			Records: repo,
			close:   client.Disconnect,
		}, nil

	case config.DriverMemory:
		return &Store{Driver: cfg.Store.Driver, Records: memory.NewActivationRepo()}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
