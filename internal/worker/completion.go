package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Settler is the slice of the scheduling service the sweeper drives.
type Settler interface {
	CompleteElapsed(ctx context.Context) (int64, error)
}

// CompletionSweeper periodically settles confirmed appointments whose
// session window has elapsed. It backs up the lazy settlement done on
// reads, so appointments nobody looks at still reach completed.
type CompletionSweeper struct {
	settler  Settler
	interval time.Duration
	logger   zerolog.Logger
}

func NewCompletionSweeper(settler Settler, interval time.Duration, logger zerolog.Logger) *CompletionSweeper {
	return &CompletionSweeper{
		settler:  settler,
		interval: interval,
		logger:   logger,
	}
}

func (w *CompletionSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info().Dur("interval", w.interval).Msg("starting completion sweeper")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("shutting down completion sweeper")
			return
		case <-ticker.C:
			if _, err := w.settler.CompleteElapsed(ctx); err != nil {
				w.logger.Error().Err(err).Msg("completion sweep failed")
			}
		}
	}
}
