package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/blinkcredit/blink/internal/common"
	"github.com/blinkcredit/blink/internal/interfaces"
	"github.com/blinkcredit/blink/internal/models"
)

// SnapshotStore implements interfaces.SnapshotStore over
// feature_store_snapshots.
type SnapshotStore struct {
	db     *sqlx.DB
	logger *common.Logger
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(db *sqlx.DB, logger *common.Logger) *SnapshotStore {
	return &SnapshotStore{db: db, logger: logger}
}

func (s *SnapshotStore) Insert(ctx context.Context, snap *models.FeatureSnapshot) error {
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO feature_store_snapshots (id, user_id, decision_at, features, created_at)
		VALUES (:id, :user_id, :decision_at, :features, :created_at)`
	if _, err := s.db.NamedExecContext(ctx, query, snap); err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return nil
}

func (s *SnapshotStore) ListByUser(ctx context.Context, userID string, limit int) ([]*models.FeatureSnapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, user_id, decision_at, features, created_at
		FROM feature_store_snapshots
		WHERE user_id = $1
		ORDER BY decision_at DESC
		LIMIT $2`

	var snaps []*models.FeatureSnapshot
	if err := s.db.SelectContext(ctx, &snaps, query, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	return snaps, nil
}

// Compile-time check
var _ interfaces.SnapshotStore = (*SnapshotStore)(nil)
