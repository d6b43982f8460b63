package sched

import (
	"context"
	"time"

	"activation-service/internal/infra/metrics"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"
)

// PoolStats reports total, idle and in-use connections.
type PoolStats func() (total, idle, inUse int32)

// PgxPoolStats reads pool.Stat().
func PgxPoolStats(pool *pgxpool.Pool) PoolStats {
	return func() (int32, int32, int32) {
		s := pool.Stat()
		return s.TotalConns(), s.IdleConns(), s.AcquiredConns()
	}
}

// PoolStatsWorker periodically publishes connection pool gauges.
type PoolStatsWorker struct {
	store    string
	interval time.Duration
	stats    PoolStats
	log      *zerolog.Logger
}

func NewPoolStatsWorker(store string, interval time.Duration, stats PoolStats, logger *zerolog.Logger) *PoolStatsWorker {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	l := logger.With().Str("component", "PoolStatsWorker").Logger()
	return &PoolStatsWorker{store: store, interval: interval, stats: stats, log: &l}
}

// Run reports once immediately, then on every tick until ctx is done.
func (w *PoolStatsWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting pool stats worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.report()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping pool stats worker")
			return ctx.Err()
		case <-ticker.C:
			w.report()
		}
	}
}

func (w *PoolStatsWorker) report() {
	total, idle, inUse := w.stats()
	metrics.SetStorePoolStats(w.store, total, idle, inUse)
	w.log.Trace().Int32("total", total).Int32("idle", idle).Int32("in_use", inUse).Msg("pool stats")
}
