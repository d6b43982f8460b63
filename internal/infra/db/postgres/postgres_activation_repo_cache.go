package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"activation-service/internal/domain/model"
	"activation-service/internal/domain/ports/repository"
	"activation-service/internal/infra/metrics"
	red "activation-service/internal/infra/redis"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

var _ repository.ActivationRepository = (*activationRepoCacheDecorator)(nil)

const (
	activationCacheName = "activation"

	// writtenMarker occupies a key for a short while after a write. Readers
	// that see it go to the database and do not fill the cache.
	writtenMarker    = "~written"
	writtenMarkerTTL = 5 * time.Second
)

// activationRepoCacheDecorator caches FindByCode outside transactions.
//
// Every write, whatever its outcome, replaces the key with writtenMarker, and
// again once the surrounding transaction commits. Fills use SET NX, so a read
// that started before the write cannot overwrite the marker with the old row.
type activationRepoCacheDecorator struct {
	inner     repository.ActivationRepository
	cache     red.RedisClient
	ttl       time.Duration
	markerTTL time.Duration
	log       *zerolog.Logger
}

func NewActivationRepoCacheDecorator(inner repository.ActivationRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.ActivationRepository {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "ActivationCache").Logger()
	return &activationRepoCacheDecorator{
		inner:     inner,
		cache:     cache,
		ttl:       ttl,
		markerTTL: min(ttl, writtenMarkerTTL),
		log:       &l,
	}
}

func activationKey(code string) string { return "activation:code:" + code }

func (d *activationRepoCacheDecorator) Create(ctx context.Context, tx repository.Tx, rec *model.ActivationRecord) error {
	defer d.written(ctx, tx, rec.Code)
	return d.inner.Create(ctx, tx, rec)
}

func (d *activationRepoCacheDecorator) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.ActivationRecord, error) {
	// Locked reads inside a transaction must hit the database.
	if tx != nil {
		metrics.IncCacheRequest(activationCacheName, "bypass")
		return d.inner.FindByCode(ctx, tx, code)
	}

	key := activationKey(code)
	val, err := d.cache.Get(ctx, key)
	switch {
	case err == nil && val == writtenMarker:
		metrics.IncCacheRequest(activationCacheName, "recently_written")
		return d.inner.FindByCode(ctx, tx, code)
	case err == nil:
		var rec model.ActivationRecord
		if json.Unmarshal([]byte(val), &rec) == nil {
			metrics.IncCacheRequest(activationCacheName, "hit")
			return &rec, nil
		}
		// Undecodable entry would block the SET NX fill below.
		if err := d.cache.Del(ctx, key); err != nil {
			d.log.Warn().Err(err).Msg("cache invalidate failed")
		}
	case !errors.Is(err, redis.Nil):
		d.log.Warn().Err(err).Msg("cache get failed")
	}

	metrics.IncCacheRequest(activationCacheName, "miss")
	rec, err := d.inner.FindByCode(ctx, tx, code)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(rec); err == nil {
		if _, err := d.cache.SetNX(ctx, key, b, d.ttl); err != nil {
			d.log.Warn().Err(err).Msg("cache set failed")
		}
	}
	return rec, nil
}

func (d *activationRepoCacheDecorator) Update(ctx context.Context, tx repository.Tx, code string, patch model.ActivationPatch) (*model.ActivationRecord, error) {
	defer d.written(ctx, tx, code)
	return d.inner.Update(ctx, tx, code, patch)
}

func (d *activationRepoCacheDecorator) BindDevice(ctx context.Context, tx repository.Tx, code, deviceID string) (*model.ActivationRecord, error) {
	defer d.written(ctx, tx, code)
	return d.inner.BindDevice(ctx, tx, code, deviceID)
}

// written marks the key now and, for transactional writes, again after commit:
// a reader between the two sees the old committed row and must not cache it.
func (d *activationRepoCacheDecorator) written(ctx context.Context, tx repository.Tx, code string) {
	d.mark(context.WithoutCancel(ctx), code)
	if tx != nil {
		afterCommit(ctx, func(ctx context.Context) { d.mark(ctx, code) })
	}
}

func (d *activationRepoCacheDecorator) mark(ctx context.Context, code string) {
	key := activationKey(code)
	if err := d.cache.Set(ctx, key, writtenMarker, d.markerTTL); err != nil {
		d.log.Warn().Err(err).Msg("cache mark failed; dropping key")
		if err := d.cache.Del(ctx, key); err != nil {
			d.log.Warn().Err(err).Msg("cache invalidate failed")
		}
	}
}
