// Package interfaces defines service contracts for Blink
package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/blinkcredit/blink/internal/models"
)

// ErrNotFound is returned by stores when the requested row does not exist.
// Callers should match it with errors.Is.
var ErrNotFound = errors.New("not found")

// StorageManager coordinates all storage backends
type StorageManager interface {
	// Storage accessors
	ReportStore() ReportStore
	AuditStore() AuditStore
	SnapshotStore() SnapshotStore
	JobStore() JobStore
	InternalStore() InternalStore

	// Ping verifies connectivity to the backing database.
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// ReportStore reads ingested bank-report data. Each report is a full
// snapshot of the user's ledger; scoring always reads the newest one.
type ReportStore interface {
	// LatestReport returns the newest report for a user.
	// Returns ErrNotFound when the user has no ingested report.
	LatestReport(ctx context.Context, userID string) (*models.Report, error)

	// Transactions returns all transactions of a report, oldest first.
	Transactions(ctx context.Context, reportID string) ([]models.Transaction, error)

	// DailyBalances returns the report's end-of-day balance series,
	// oldest first.
	DailyBalances(ctx context.Context, reportID string) ([]models.DailyBalance, error)

	// TagOverrides returns reviewer corrections keyed by transaction id.
	TagOverrides(ctx context.Context, userID string) (map[string]models.TagOverride, error)

	// ListUserIDs returns ids of all users with at least one report.
	ListUserIDs(ctx context.Context) ([]string, error)
}

// AuditStore persists one row per scoring run, successful or failed.
type AuditStore interface {
	Insert(ctx context.Context, audit *models.ScoreAudit) error
	Latest(ctx context.Context, userID string) (*models.ScoreAudit, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.ScoreAudit, error)

	// ListStaleUsers returns users whose newest audit predates cutoff,
	// including users with reports but no audit at all.
	ListStaleUsers(ctx context.Context, cutoff time.Time, limit int) ([]string, error)
}

// SnapshotStore keeps decision-time feature vectors for offline analysis.
type SnapshotStore interface {
	Insert(ctx context.Context, snap *models.FeatureSnapshot) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.FeatureSnapshot, error)
}

// JobStore manages the persistent rescoring queue
type JobStore interface {
	Enqueue(ctx context.Context, job *models.RescoreJob) error
	Dequeue(ctx context.Context) (*models.RescoreJob, error) // Atomic: claim highest priority pending, set to running
	Complete(ctx context.Context, id string, jobErr error, durationMS int64) error
	MarkSkipped(ctx context.Context, id string, reason string) error
	Cancel(ctx context.Context, id string) error
	ListPending(ctx context.Context, limit int) ([]*models.RescoreJob, error)
	ListRecent(ctx context.Context, limit int) ([]*models.RescoreJob, error)
	CountPending(ctx context.Context) (int, error)
	HasPendingJob(ctx context.Context, userID string) (bool, error)
	PurgeCompleted(ctx context.Context, olderThan time.Time) (int, error)
	ResetRunningJobs(ctx context.Context) (int, error)
}

// InternalStore manages API client credentials and system-level KV.
type InternalStore interface {
	// Service clients
	GetClient(ctx context.Context, clientID string) (*models.ServiceClient, error)
	SaveClient(ctx context.Context, client *models.ServiceClient) error
	ListClients(ctx context.Context) ([]*models.ServiceClient, error)

	// System key-value (schema version, operational markers)
	GetSystemKV(ctx context.Context, key string) (string, error)
	SetSystemKV(ctx context.Context, key, value string) error
}
