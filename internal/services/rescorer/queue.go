package rescorer

import (
	"context"
	"fmt"
	"time"

	"github.com/blinkcredit/blink/internal/models"
)

// TriggerRescore enqueues rescore jobs for the given users at manual
// priority. With no ids it finds stale users instead and enqueues them at
// stale priority. Returns the number of jobs actually enqueued; users
// with a job already in the queue are not double-queued.
func (r *Rescorer) TriggerRescore(ctx context.Context, userIDs []string) (int, error) {
	reason := models.JobReasonManual
	priority := models.PriorityManual

	if len(userIDs) == 0 {
		cutoff := time.Now().UTC().Add(-r.config.GetStaleAfter())
		stale, err := r.storage.AuditStore().ListStaleUsers(ctx, cutoff, r.config.BatchSize)
		if err != nil {
			return 0, fmt.Errorf("failed to list stale users: %w", err)
		}
		userIDs = stale
		reason = models.JobReasonStale
		priority = models.PriorityStale
	}

	enqueued := 0
	for _, userID := range userIDs {
		queued, err := r.EnqueueUser(ctx, userID, reason, priority)
		if err != nil {
			r.logger.Warn().Str("user_id", userID).Err(err).Msg("Failed to enqueue rescore job")
			continue
		}
		if queued {
			enqueued++
		}
	}
	return enqueued, nil
}

// EnqueueUser queues a rescore job for one user unless one is already
// pending or running. Returns whether a new job was queued.
func (r *Rescorer) EnqueueUser(ctx context.Context, userID string, reason string, priority int) (bool, error) {
	exists, err := r.storage.JobStore().HasPendingJob(ctx, userID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	job := &models.RescoreJob{
		UserID:      userID,
		Priority:    priority,
		Status:      models.JobStatusPending,
		Reason:      reason,
		CreatedAt:   time.Now().UTC(),
		MaxAttempts: r.config.GetMaxRetries(),
	}
	if err := r.enqueue(ctx, job); err != nil {
		return false, err
	}
	return true, nil
}

// enqueue persists a job and broadcasts a "job_queued" event.
func (r *Rescorer) enqueue(ctx context.Context, job *models.RescoreJob) error {
	if err := r.storage.JobStore().Enqueue(ctx, job); err != nil {
		return err
	}
	r.broadcast(ctx, "job_queued", job)
	return nil
}

// dequeue claims the next job and broadcasts a "job_started" event.
func (r *Rescorer) dequeue(ctx context.Context) (*models.RescoreJob, error) {
	job, err := r.storage.JobStore().Dequeue(ctx)
	if err != nil || job == nil {
		return job, err
	}
	r.broadcast(ctx, "job_started", job)
	return job, nil
}

// complete marks a job finished and broadcasts the outcome.
func (r *Rescorer) complete(ctx context.Context, job *models.RescoreJob, execErr error, durationMS int64) {
	if err := r.storage.JobStore().Complete(ctx, job.ID, execErr, durationMS); err != nil {
		r.logger.Warn().Str("job_id", job.ID).Err(err).Msg("Failed to complete job in queue")
	}

	eventType := "job_completed"
	job.DurationMS = durationMS
	if execErr != nil {
		eventType = "job_failed"
		job.Status = models.JobStatusFailed
		job.Error = execErr.Error()
	} else {
		job.Status = models.JobStatusCompleted
	}
	r.broadcast(ctx, eventType, job)
}

// skip marks a job skipped (no retry) and broadcasts the outcome.
func (r *Rescorer) skip(ctx context.Context, job *models.RescoreJob, reason string) {
	if err := r.storage.JobStore().MarkSkipped(ctx, job.ID, reason); err != nil {
		r.logger.Warn().Str("job_id", job.ID).Err(err).Msg("Failed to mark job skipped")
	}

	job.Status = models.JobStatusSkipped
	job.Error = reason
	r.broadcast(ctx, "job_skipped", job)
}

// broadcast sends a job event with the current queue depth to the hub.
func (r *Rescorer) broadcast(ctx context.Context, eventType string, job *models.RescoreJob) {
	if r.hub == nil {
		return
	}
	pending, _ := r.storage.JobStore().CountPending(ctx)
	r.hub.Broadcast(models.JobEvent{
		Type:      eventType,
		Job:       job,
		Timestamp: time.Now().UTC(),
		QueueSize: pending,
	})
}
