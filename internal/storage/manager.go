// Package storage provides the top-level StorageManager over the
// Postgres-backed store implementations.
package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/blinkcredit/blink/internal/common"
	"github.com/blinkcredit/blink/internal/interfaces"
	"github.com/blinkcredit/blink/internal/storage/postgres"
)

// Manager implements interfaces.StorageManager on a single Postgres pool.
type Manager struct {
	db     *sqlx.DB
	logger *common.Logger

	reportStore   *postgres.ReportStore
	auditStore    *postgres.AuditStore
	snapshotStore *postgres.SnapshotStore
	jobStore      *postgres.JobStore
	internalStore *postgres.InternalStore
}

// NewManager connects to Postgres, bootstraps the schema, and wires the
// stores.
func NewManager(ctx context.Context, logger *common.Logger, config *common.Config) (*Manager, error) {
	db, err := postgres.Open(logger, &config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := postgres.EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	m := &Manager{
		db:     db,
		logger: logger,

		reportStore:   postgres.NewReportStore(db, logger),
		auditStore:    postgres.NewAuditStore(db, logger),
		snapshotStore: postgres.NewSnapshotStore(db, logger),
		jobStore:      postgres.NewJobStore(db, logger),
		internalStore: postgres.NewInternalStore(db, logger),
	}

	logger.Info().
		Str("host", config.Database.Host).
		Str("database", config.Database.Name).
		Msg("Postgres storage manager initialized")

	return m, nil
}

func (m *Manager) ReportStore() interfaces.ReportStore {
	return m.reportStore
}

func (m *Manager) AuditStore() interfaces.AuditStore {
	return m.auditStore
}

func (m *Manager) SnapshotStore() interfaces.SnapshotStore {
	return m.snapshotStore
}

func (m *Manager) JobStore() interfaces.JobStore {
	return m.jobStore
}

func (m *Manager) InternalStore() interfaces.InternalStore {
	return m.internalStore
}

func (m *Manager) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

func (m *Manager) Close() error {
	return m.db.Close()
}

// Compile-time check
var _ interfaces.StorageManager = (*Manager)(nil)
