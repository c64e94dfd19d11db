// Package rescorer keeps scores fresh: a watcher scans for users whose
// latest audit has gone stale and enqueues rescore jobs, and a processor
// pool works the persistent queue at a paced rate.
package rescorer

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/blinkcredit/blink/internal/common"
	"github.com/blinkcredit/blink/internal/interfaces"
)

// Rescorer runs the watcher and processor loops over the rescore queue.
type Rescorer struct {
	scores  interfaces.ScoreService
	storage interfaces.StorageManager
	logger  *common.Logger
	hub     *JobWSHub
	config  common.RescorerConfig

	limiter *rate.Limiter // shared pacing across the processor pool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewRescorer creates a new rescorer.
func NewRescorer(
	scores interfaces.ScoreService,
	storage interfaces.StorageManager,
	logger *common.Logger,
	config common.RescorerConfig,
) *Rescorer {
	return &Rescorer{
		scores:  scores,
		storage: storage,
		logger:  logger,
		hub:     NewJobWSHub(logger),
		config:  config,
		limiter: rate.NewLimiter(rate.Limit(config.GetRatePerSec()), 1),
	}
}

// safeGo launches a goroutine with panic recovery and logging.
func (r *Rescorer) safeGo(name string, fn func()) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error().
					Str("goroutine", name).
					Str("panic", fmt.Sprintf("%v", rec)).
					Str("stack", string(debug.Stack())).
					Msg("Recovered from panic in rescorer goroutine")
			}
		}()
		fn()
	}()
}

// Start launches the watcher loop, processor pool, and WebSocket hub.
// Safe to call multiple times: stops any existing loops before starting.
func (r *Rescorer) Start() {
	if r.cancel != nil {
		r.Stop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	// Reclaim jobs that were in flight when the previous process died.
	if count, err := r.storage.JobStore().ResetRunningJobs(ctx); err != nil {
		r.logger.Warn().Err(err).Msg("Failed to reset orphaned running jobs")
	} else if count > 0 {
		r.logger.Info().Int("count", count).Msg("Reset orphaned running jobs to pending")
	}

	r.safeGo("websocket-hub", func() { r.hub.Run() })
	r.safeGo("watcher", func() { r.watchLoop(ctx) })

	maxConc := r.config.GetMaxConcurrent()
	for i := 0; i < maxConc; i++ {
		name := fmt.Sprintf("processor-%d", i)
		r.safeGo(name, func() { r.processLoop(ctx) })
	}

	r.logger.Info().
		Str("watch_interval", r.config.GetWatchInterval().String()).
		Str("stale_after", r.config.GetStaleAfter().String()).
		Int("max_concurrent", maxConc).
		Float64("rate_per_sec", r.config.GetRatePerSec()).
		Bool("dry_run", r.config.DryRun).
		Msg("Rescorer started")
}

// Stop cancels all loops and waits for completion.
func (r *Rescorer) Stop() {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.hub.Stop()
	r.wg.Wait()
	r.logger.Info().Msg("Rescorer stopped")
}

// Hub returns the WebSocket hub for handler registration.
func (r *Rescorer) Hub() *JobWSHub {
	return r.hub
}

// waitTurn blocks until the shared rate limiter grants a slot or the
// context is cancelled.
func (r *Rescorer) waitTurn(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// sleepOrDone waits d unless the context ends first.
func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
