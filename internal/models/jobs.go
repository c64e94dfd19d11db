package models

import "time"

// RescoreJob is a unit of work in the rescoring queue.
type RescoreJob struct {
	ID          string     `json:"id" db:"id"`
	UserID      string     `json:"user_id" db:"user_id"`
	Priority    int        `json:"priority" db:"priority"`
	Status      string     `json:"status" db:"status"`
	Reason      string     `json:"reason,omitempty" db:"reason"` // "stale", "manual", "requeue"
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty" db:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	Error       string     `json:"error,omitempty" db:"error"`
	Attempts    int        `json:"attempts" db:"attempts"`
	MaxAttempts int        `json:"max_attempts" db:"max_attempts"`
	DurationMS  int64      `json:"duration_ms" db:"duration_ms"`
}

// Job status constants
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
	JobStatusSkipped   = "skipped"
	JobStatusCancelled = "cancelled"
)

// Enqueue reasons
const (
	JobReasonStale   = "stale"
	JobReasonManual  = "manual"
	JobReasonRequeue = "requeue"
)

// Default priorities (higher = processed first)
const (
	PriorityStale  = 5
	PriorityManual = 10
)

// JobEvent is broadcast via WebSocket when job state changes.
type JobEvent struct {
	Type      string      `json:"type"` // "job_queued", "job_started", "job_completed", "job_failed", "job_skipped"
	Job       *RescoreJob `json:"job"`
	Timestamp time.Time   `json:"timestamp"`
	QueueSize int         `json:"queue_size"` // current pending count
}

// BatchStats accumulates the outcome counts of a rescoring pass.
type BatchStats struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"` // insufficient history or no usable report
}

// Add folds a single job outcome into the stats.
func (s *BatchStats) Add(other BatchStats) {
	s.Processed += other.Processed
	s.Succeeded += other.Succeeded
	s.Failed += other.Failed
	s.Skipped += other.Skipped
}

// BatchItem is the per-user outcome of a batch scoring request.
type BatchItem struct {
	UserID         string         `json:"user_id"`
	BlinkScore     *float64       `json:"blink_score,omitempty"`
	Recommendation Recommendation `json:"recommendation,omitempty"`
	Error          string         `json:"error,omitempty"`
}

// BatchReport is the aggregate result of a batch scoring request.
type BatchReport struct {
	Stats BatchStats  `json:"stats"`
	Items []BatchItem `json:"items"`
}

// ServiceClient is an API client credential. Secrets are stored as
// bcrypt hashes, never in clear text.
type ServiceClient struct {
	ClientID   string    `json:"client_id" db:"client_id"`
	SecretHash string    `json:"-" db:"secret_hash"`
	Name       string    `json:"name" db:"name"`
	Disabled   bool      `json:"disabled" db:"disabled"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
