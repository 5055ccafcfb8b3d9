package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/booking-api/internal/repository"
)

// OutboxRetentionWorker prunes processed outbox events past the retention
// window so the table stays bounded.
type OutboxRetentionWorker struct {
	repo          repository.OutboxRepository
	retentionDays int
	interval      time.Duration
	logger        zerolog.Logger
}

func NewOutboxRetentionWorker(repo repository.OutboxRepository, retentionDays int, interval time.Duration, logger zerolog.Logger) *OutboxRetentionWorker {
	return &OutboxRetentionWorker{
		repo:          repo,
		retentionDays: retentionDays,
		interval:      interval,
		logger:        logger,
	}
}

func (w *OutboxRetentionWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().AddDate(0, 0, -w.retentionDays)
			n, err := w.repo.DeleteProcessedBefore(ctx, cutoff)
			if err != nil {
				w.logger.Error().Err(err).Msg("outbox retention sweep failed")
				continue
			}
			if n > 0 {
				w.logger.Info().Int64("deleted", n).Msg("pruned processed outbox events")
			}
		}
	}
}
