package score

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/blinkcredit/blink/internal/interfaces"
	"github.com/blinkcredit/blink/internal/models"
)

// In-memory stores backing the service tests.

type mockReportStore struct {
	reports   map[string]*models.Report       // by user id
	txns      map[string][]models.Transaction // by report id
	balances  map[string][]models.DailyBalance
	overrides map[string]map[string]models.TagOverride // by user id
}

func newMockReportStore() *mockReportStore {
	return &mockReportStore{
		reports:   make(map[string]*models.Report),
		txns:      make(map[string][]models.Transaction),
		balances:  make(map[string][]models.DailyBalance),
		overrides: make(map[string]map[string]models.TagOverride),
	}
}

func (m *mockReportStore) LatestReport(_ context.Context, userID string) (*models.Report, error) {
	report, ok := m.reports[userID]
	if !ok {
		return nil, fmt.Errorf("report for user '%s': %w", userID, interfaces.ErrNotFound)
	}
	return report, nil
}

func (m *mockReportStore) Transactions(_ context.Context, reportID string) ([]models.Transaction, error) {
	return m.txns[reportID], nil
}

func (m *mockReportStore) DailyBalances(_ context.Context, reportID string) ([]models.DailyBalance, error) {
	return m.balances[reportID], nil
}

func (m *mockReportStore) TagOverrides(_ context.Context, userID string) (map[string]models.TagOverride, error) {
	return m.overrides[userID], nil
}

func (m *mockReportStore) ListUserIDs(_ context.Context) ([]string, error) {
	var ids []string
	for id := range m.reports {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

type mockAuditStore struct {
	audits     []*models.ScoreAudit
	staleUsers []string
	insertErr  error
}

func (m *mockAuditStore) Insert(_ context.Context, audit *models.ScoreAudit) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.audits = append(m.audits, audit)
	return nil
}

func (m *mockAuditStore) Latest(_ context.Context, userID string) (*models.ScoreAudit, error) {
	for i := len(m.audits) - 1; i >= 0; i-- {
		if m.audits[i].UserID == userID {
			return m.audits[i], nil
		}
	}
	return nil, fmt.Errorf("audit for user '%s': %w", userID, interfaces.ErrNotFound)
}

func (m *mockAuditStore) ListByUser(_ context.Context, userID string, limit int) ([]*models.ScoreAudit, error) {
	var out []*models.ScoreAudit
	for i := len(m.audits) - 1; i >= 0; i-- {
		if m.audits[i].UserID == userID {
			out = append(out, m.audits[i])
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *mockAuditStore) ListStaleUsers(_ context.Context, _ time.Time, limit int) ([]string, error) {
	if limit > 0 && len(m.staleUsers) > limit {
		return m.staleUsers[:limit], nil
	}
	return m.staleUsers, nil
}

type mockSnapshotStore struct {
	snaps []*models.FeatureSnapshot
}

func (m *mockSnapshotStore) Insert(_ context.Context, snap *models.FeatureSnapshot) error {
	m.snaps = append(m.snaps, snap)
	return nil
}

func (m *mockSnapshotStore) ListByUser(_ context.Context, userID string, _ int) ([]*models.FeatureSnapshot, error) {
	var out []*models.FeatureSnapshot
	for _, s := range m.snaps {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

type mockStorageManager struct {
	reports   *mockReportStore
	audits    *mockAuditStore
	snapshots *mockSnapshotStore
}

func newMockStorageManager() *mockStorageManager {
	return &mockStorageManager{
		reports:   newMockReportStore(),
		audits:    &mockAuditStore{},
		snapshots: &mockSnapshotStore{},
	}
}

func (m *mockStorageManager) ReportStore() interfaces.ReportStore     { return m.reports }
func (m *mockStorageManager) AuditStore() interfaces.AuditStore       { return m.audits }
func (m *mockStorageManager) SnapshotStore() interfaces.SnapshotStore { return m.snapshots }
func (m *mockStorageManager) JobStore() interfaces.JobStore           { return nil }
func (m *mockStorageManager) InternalStore() interfaces.InternalStore { return nil }
func (m *mockStorageManager) Ping(_ context.Context) error            { return nil }
func (m *mockStorageManager) Close() error                            { return nil }
