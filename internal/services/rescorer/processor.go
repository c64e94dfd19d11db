package rescorer

import (
	"context"
	"errors"
	"time"

	"github.com/blinkcredit/blink/internal/interfaces"
	"github.com/blinkcredit/blink/internal/models"
	"github.com/blinkcredit/blink/internal/scoring"
)

// processLoop continuously dequeues and executes rescore jobs.
func (r *Rescorer) processLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			if err := r.waitTurn(ctx); err != nil {
				return
			}

			job, err := r.dequeue(ctx)
			if err != nil {
				r.logger.Warn().Err(err).Msg("Processor: dequeue error")
				if !sleepOrDone(ctx, time.Second) {
					return
				}
				continue
			}
			if job == nil {
				// Queue empty, sleep briefly
				if !sleepOrDone(ctx, time.Second) {
					return
				}
				continue
			}

			r.runJob(ctx, job)
		}
	}
}

// runJob scores one user and records the outcome on the job.
func (r *Rescorer) runJob(ctx context.Context, job *models.RescoreJob) {
	start := time.Now()
	result, execErr := r.scores.ScoreUser(ctx, job.UserID, interfaces.ScoreOptions{DryRun: r.config.DryRun})
	durationMS := time.Since(start).Milliseconds()

	if execErr == nil {
		r.logger.Debug().
			Str("job_id", job.ID).
			Str("user_id", job.UserID).
			Float64("blink_score", result.BlinkScore).
			Int64("duration_ms", durationMS).
			Msg("Rescore job completed")
		r.complete(ctx, job, nil, durationMS)
		return
	}

	// Deterministic outcomes are skipped, not retried: scoring the same
	// report again cannot succeed.
	var insufficient *scoring.InsufficientHistoryError
	if errors.As(execErr, &insufficient) || errors.Is(execErr, interfaces.ErrNotFound) {
		r.logger.Info().
			Str("job_id", job.ID).
			Str("user_id", job.UserID).
			Str("reason", execErr.Error()).
			Msg("Rescore job skipped")
		r.skip(ctx, job, execErr.Error())
		return
	}

	r.logger.Warn().
		Str("job_id", job.ID).
		Str("user_id", job.UserID).
		Int64("duration_ms", durationMS).
		Err(execErr).
		Msg("Rescore job failed")

	// Re-queue if under max attempts
	if job.Attempts < job.MaxAttempts {
		r.logger.Info().
			Str("job_id", job.ID).
			Int("attempt", job.Attempts).
			Int("max", job.MaxAttempts).
			Msg("Re-queuing failed rescore job")

		job.Status = models.JobStatusPending
		job.Reason = models.JobReasonRequeue
		job.Error = ""
		if err := r.enqueue(ctx, job); err != nil {
			r.logger.Warn().Str("job_id", job.ID).Err(err).Msg("Failed to re-enqueue job")
		} else {
			return // job is back in the queue, not finished
		}
	}

	r.complete(ctx, job, execErr, durationMS)
}
