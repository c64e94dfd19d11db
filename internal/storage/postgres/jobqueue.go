package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/blinkcredit/blink/internal/common"
	"github.com/blinkcredit/blink/internal/interfaces"
	"github.com/blinkcredit/blink/internal/models"
)

// jobColumns lists the rescore_jobs columns in struct-tag order.
const jobColumns = `id, user_id, priority, status, reason, created_at,
	started_at, completed_at, error, attempts, max_attempts, duration_ms`

// JobStore implements interfaces.JobStore over rescore_jobs.
type JobStore struct {
	db     *sqlx.DB
	logger *common.Logger
}

// NewJobStore creates a new JobStore.
func NewJobStore(db *sqlx.DB, logger *common.Logger) *JobStore {
	return &JobStore{db: db, logger: logger}
}

// Enqueue inserts a job, filling defaults for missing fields. An existing
// id is updated in place, which is how a failed job returns to the queue
// without losing its attempt count.
func (s *JobStore) Enqueue(ctx context.Context, job *models.RescoreJob) error {
	if job.ID == "" {
		job.ID = uuid.New().String()[:8]
	}
	if job.Status == "" {
		job.Status = models.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if job.MaxAttempts == 0 {
		job.MaxAttempts = 3
	}

	query := `INSERT INTO rescore_jobs (` + jobColumns + `) VALUES (
		:id, :user_id, :priority, :status, :reason, :created_at,
		:started_at, :completed_at, :error, :attempts, :max_attempts, :duration_ms)
		ON CONFLICT (id) DO UPDATE SET
			priority = EXCLUDED.priority,
			status = EXCLUDED.status,
			reason = EXCLUDED.reason,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at,
			error = EXCLUDED.error,
			attempts = EXCLUDED.attempts,
			duration_ms = EXCLUDED.duration_ms`
	if _, err := s.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

// Dequeue claims the highest-priority pending job and marks it running.
// SKIP LOCKED makes concurrent processors claim disjoint jobs; nil is
// returned when the queue is empty.
func (s *JobStore) Dequeue(ctx context.Context) (*models.RescoreJob, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin dequeue: %w", err)
	}
	defer tx.Rollback()

	selectSQL := `SELECT ` + jobColumns + ` FROM rescore_jobs
		WHERE status = $1
		ORDER BY priority DESC, created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED`

	var job models.RescoreJob
	if err := tx.GetContext(ctx, &job, selectSQL, models.JobStatusPending); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to select candidate job: %w", err)
	}

	now := time.Now().UTC()
	updateSQL := `UPDATE rescore_jobs
		SET status = $1, started_at = $2, attempts = attempts + 1
		WHERE id = $3`
	if _, err := tx.ExecContext(ctx, updateSQL, models.JobStatusRunning, now, job.ID); err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit dequeue: %w", err)
	}

	job.Status = models.JobStatusRunning
	job.StartedAt = &now
	job.Attempts++
	return &job, nil
}

func (s *JobStore) Complete(ctx context.Context, id string, jobErr error, durationMS int64) error {
	status := models.JobStatusCompleted
	errStr := ""
	if jobErr != nil {
		status = models.JobStatusFailed
		errStr = jobErr.Error()
	}

	query := `UPDATE rescore_jobs
		SET status = $1, completed_at = $2, error = $3, duration_ms = $4
		WHERE id = $5`
	if _, err := s.db.ExecContext(ctx, query, status, time.Now().UTC(), errStr, durationMS, id); err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	return nil
}

func (s *JobStore) MarkSkipped(ctx context.Context, id string, reason string) error {
	query := `UPDATE rescore_jobs
		SET status = $1, completed_at = $2, error = $3
		WHERE id = $4`
	if _, err := s.db.ExecContext(ctx, query, models.JobStatusSkipped, time.Now().UTC(), reason, id); err != nil {
		return fmt.Errorf("failed to mark job skipped: %w", err)
	}
	return nil
}

func (s *JobStore) Cancel(ctx context.Context, id string) error {
	query := `UPDATE rescore_jobs SET status = $1, completed_at = $2 WHERE id = $3 AND status = $4`
	if _, err := s.db.ExecContext(ctx, query, models.JobStatusCancelled, time.Now().UTC(), id, models.JobStatusPending); err != nil {
		return fmt.Errorf("failed to cancel job: %w", err)
	}
	return nil
}

func (s *JobStore) ListPending(ctx context.Context, limit int) ([]*models.RescoreJob, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + jobColumns + ` FROM rescore_jobs
		WHERE status = $1
		ORDER BY priority DESC, created_at ASC
		LIMIT $2`

	var jobs []*models.RescoreJob
	if err := s.db.SelectContext(ctx, &jobs, query, models.JobStatusPending, limit); err != nil {
		return nil, fmt.Errorf("failed to list pending jobs: %w", err)
	}
	return jobs, nil
}

func (s *JobStore) ListRecent(ctx context.Context, limit int) ([]*models.RescoreJob, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + jobColumns + ` FROM rescore_jobs
		ORDER BY created_at DESC
		LIMIT $1`

	var jobs []*models.RescoreJob
	if err := s.db.SelectContext(ctx, &jobs, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list recent jobs: %w", err)
	}
	return jobs, nil
}

func (s *JobStore) CountPending(ctx context.Context) (int, error) {
	var count int
	query := `SELECT count(*) FROM rescore_jobs WHERE status = $1`
	if err := s.db.GetContext(ctx, &count, query, models.JobStatusPending); err != nil {
		return 0, fmt.Errorf("failed to count pending jobs: %w", err)
	}
	return count, nil
}

func (s *JobStore) HasPendingJob(ctx context.Context, userID string) (bool, error) {
	var count int
	query := `SELECT count(*) FROM rescore_jobs WHERE user_id = $1 AND status IN ($2, $3)`
	if err := s.db.GetContext(ctx, &count, query, userID, models.JobStatusPending, models.JobStatusRunning); err != nil {
		return false, fmt.Errorf("failed to check pending job: %w", err)
	}
	return count > 0, nil
}

func (s *JobStore) PurgeCompleted(ctx context.Context, olderThan time.Time) (int, error) {
	query := `DELETE FROM rescore_jobs
		WHERE status IN ($1, $2, $3, $4) AND completed_at < $5`
	res, err := s.db.ExecContext(ctx, query,
		models.JobStatusCompleted, models.JobStatusFailed,
		models.JobStatusSkipped, models.JobStatusCancelled, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to purge completed jobs: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ResetRunningJobs resets all jobs with status "running" back to "pending".
// Called on startup to recover jobs that were in-flight when the process
// crashed.
func (s *JobStore) ResetRunningJobs(ctx context.Context) (int, error) {
	query := `UPDATE rescore_jobs
		SET status = $1, started_at = NULL
		WHERE status = $2`
	res, err := s.db.ExecContext(ctx, query, models.JobStatusPending, models.JobStatusRunning)
	if err != nil {
		return 0, fmt.Errorf("failed to reset running jobs: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Compile-time check
var _ interfaces.JobStore = (*JobStore)(nil)
