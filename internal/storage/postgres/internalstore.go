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

// InternalStore implements interfaces.InternalStore: service client
// credentials plus system-level KV.
type InternalStore struct {
	db     *sqlx.DB
	logger *common.Logger
}

// NewInternalStore creates a new InternalStore.
func NewInternalStore(db *sqlx.DB, logger *common.Logger) *InternalStore {
	return &InternalStore{db: db, logger: logger}
}

func (s *InternalStore) GetClient(ctx context.Context, clientID string) (*models.ServiceClient, error) {
	query := `SELECT client_id, secret_hash, name, disabled, created_at
		FROM service_clients
		WHERE client_id = $1`

	var client models.ServiceClient
	if err := s.db.GetContext(ctx, &client, query, clientID); err != nil {
		return nil, notFound(err, "client", clientID)
	}
	return &client, nil
}

func (s *InternalStore) SaveClient(ctx context.Context, client *models.ServiceClient) error {
	if client.CreatedAt.IsZero() {
		client.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO service_clients (client_id, secret_hash, name, disabled, created_at)
		VALUES (:client_id, :secret_hash, :name, :disabled, :created_at)
		ON CONFLICT (client_id) DO UPDATE SET
			secret_hash = EXCLUDED.secret_hash,
			name = EXCLUDED.name,
			disabled = EXCLUDED.disabled`
	if _, err := s.db.NamedExecContext(ctx, query, client); err != nil {
		return fmt.Errorf("failed to save client: %w", err)
	}
	return nil
}

func (s *InternalStore) ListClients(ctx context.Context) ([]*models.ServiceClient, error) {
	query := `SELECT client_id, secret_hash, name, disabled, created_at
		FROM service_clients
		ORDER BY client_id`

	var clients []*models.ServiceClient
	if err := s.db.SelectContext(ctx, &clients, query); err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	return clients, nil
}

func (s *InternalStore) GetSystemKV(ctx context.Context, key string) (string, error) {
	var value string
	query := `SELECT value FROM system_kv WHERE key = $1`
	if err := s.db.GetContext(ctx, &value, query, key); err != nil {
		return "", notFound(err, "system kv", key)
	}
	return value, nil
}

func (s *InternalStore) SetSystemKV(ctx context.Context, key, value string) error {
	query := `INSERT INTO system_kv (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to set system kv: %w", err)
	}
	return nil
}

// Compile-time check
var _ interfaces.InternalStore = (*InternalStore)(nil)
