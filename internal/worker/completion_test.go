package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type countingSettler struct {
	calls atomic.Int64
}

func (s *countingSettler) CompleteElapsed(_ context.Context) (int64, error) {
	s.calls.Add(1)
	return 0, nil
}

func TestCompletionSweeperTicksAndStops(t *testing.T) {
	settler := &countingSettler{}
	sweeper := NewCompletionSweeper(settler, 10*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return settler.calls.Load() >= 2
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop on context cancellation")
	}
}
