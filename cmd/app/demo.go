package main

import (
	"context"
	"time"

	"activation-service/internal/domain/model"
	"activation-service/internal/domain/ports/repository"

	"github.com/rs/zerolog"
)

const demoCode = "DEMO-0000-0001"

// seedDemo puts one bindable record into the in-memory store so a dev server
// is usable without provisioning.
func seedDemo(ctx context.Context, records repository.ActivationRepository, loc *time.Location, logger *zerolog.Logger) {
	till := model.DateOf(time.Now().In(loc).AddDate(1, 0, 0))
	rec, err := model.NewActivationRecord(demoCode, "Demo User", "demo@example.com", till)
	if err != nil {
		logger.Warn().Err(err).Msg("demo record")
		return
	}
	if err := records.Create(ctx, repository.NoTX, rec); err != nil {
		logger.Warn().Err(err).Msg("demo record")
		return
	}
	logger.Info().Str("code", demoCode).Str("active_till", till.String()).Msg("demo activation code seeded")
}
