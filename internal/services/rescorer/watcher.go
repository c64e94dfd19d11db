package rescorer

import (
	"context"
	"time"
)

// watchLoop periodically scans for users with stale audits and enqueues
// rescore jobs for them.
func (r *Rescorer) watchLoop(ctx context.Context) {
	ticker := time.NewTicker(r.config.GetWatchInterval())
	defer ticker.Stop()

	// Run an initial scan immediately
	r.scanStaleUsers(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.scanStaleUsers(ctx)
		}
	}
}

// scanStaleUsers runs one stale-user sweep and prunes finished jobs.
func (r *Rescorer) scanStaleUsers(ctx context.Context) {
	enqueued, err := r.TriggerRescore(ctx, nil)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Watcher: failed to scan for stale users")
	} else if enqueued > 0 {
		r.logger.Info().Int("enqueued", enqueued).Msg("Watcher: scan complete")
	} else {
		r.logger.Debug().Msg("Watcher: scan complete, nothing stale")
	}

	r.purgeOldJobs(ctx)
}

// purgeOldJobs removes finished jobs older than the retention period.
func (r *Rescorer) purgeOldJobs(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-r.config.GetPurgeAfter())
	if _, err := r.storage.JobStore().PurgeCompleted(ctx, cutoff); err != nil {
		r.logger.Warn().Err(err).Msg("Watcher: failed to purge old jobs")
	}
}
