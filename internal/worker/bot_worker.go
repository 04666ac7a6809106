// Package worker hosts the long-running loops started next to the HTTP server.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Runner is a loop that blocks until ctx ends or its input stops.
type Runner interface {
	Run(ctx context.Context) error
}

// BotWorker keeps a Runner alive. A failed run is restarted after an
// exponential backoff; a clean return ends supervision.
type BotWorker struct {
	runner       Runner
	logger       *zap.Logger
	minBackoff   time.Duration
	maxBackoff   time.Duration
	healthyAfter time.Duration // a run this long resets the backoff
	now          func() time.Time
	wait         func(ctx context.Context, d time.Duration) bool
}

// NewBotWorker builds a worker with default backoff bounds.
func NewBotWorker(runner Runner, logger *zap.Logger) *BotWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BotWorker{
		runner:       runner,
		logger:       logger,
		minBackoff:   time.Second,
		maxBackoff:   time.Minute,
		healthyAfter: 5 * time.Minute,
		now:          time.Now,
		wait:         sleep,
	}
}

// Start runs the loop in the background. The returned channel closes when
// supervision ends.
func (w *BotWorker) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()
	return done
}

// Run supervises the runner until ctx is cancelled or a run ends cleanly.
func (w *BotWorker) Run(ctx context.Context) {
	backoff := w.minBackoff
	for attempt := 1; ; attempt++ {
		started := w.now()
		err := w.runner.Run(ctx)
		if ctx.Err() != nil {
			w.logger.Info("bot worker stopped")
			return
		}
		if err == nil {
			w.logger.Info("bot loop finished")
			return
		}

		if w.now().Sub(started) >= w.healthyAfter {
			backoff = w.minBackoff
		}
		w.logger.Warn("bot loop failed, restarting",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err))
		if !w.wait(ctx, backoff) {
			w.logger.Info("bot worker stopped")
			return
		}
		backoff *= 2
		if backoff > w.maxBackoff {
			backoff = w.maxBackoff
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
