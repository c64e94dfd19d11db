package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schemaVersion is stamped into system_kv after a successful bootstrap.
const schemaVersion = "1"

// schemaVersionKey is the system_kv key holding the applied version.
const schemaVersionKey = "schema_version"

// schema creates every table the service reads or writes. The report
// hierarchy is also written by the ingestion service; the statements are
// idempotent so either side can run first.
const schema = `
CREATE TABLE IF NOT EXISTS reports (
	id              TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL,
	generated_at    TIMESTAMPTZ NOT NULL,
	current_balance NUMERIC(18,2),
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_reports_user ON reports (user_id, generated_at DESC);

CREATE TABLE IF NOT EXISTS report_transactions (
	id            TEXT NOT NULL,
	report_id     TEXT NOT NULL REFERENCES reports(id) ON DELETE CASCADE,
	posted_at     DATE NOT NULL,
	amount        NUMERIC(18,2) NOT NULL,
	merchant_name TEXT NOT NULL DEFAULT '',
	description   TEXT NOT NULL DEFAULT '',
	category      TEXT[] NOT NULL DEFAULT '{}',
	category_id   TEXT NOT NULL DEFAULT '',
	pending       BOOLEAN NOT NULL DEFAULT false,
	PRIMARY KEY (report_id, id)
);
CREATE INDEX IF NOT EXISTS idx_report_transactions_date ON report_transactions (report_id, posted_at);

CREATE TABLE IF NOT EXISTS report_balances (
	report_id    TEXT NOT NULL REFERENCES reports(id) ON DELETE CASCADE,
	balance_date DATE NOT NULL,
	balance      NUMERIC(18,2) NOT NULL,
	PRIMARY KEY (report_id, balance_date)
);

CREATE TABLE IF NOT EXISTS tag_overrides (
	user_id         TEXT NOT NULL,
	transaction_id  TEXT NOT NULL,
	is_payroll      BOOLEAN,
	is_loan_payment BOOLEAN,
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (user_id, transaction_id)
);

CREATE TABLE IF NOT EXISTS risk_score_audits (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	report_id   TEXT NOT NULL DEFAULT '',
	snapshot_at TIMESTAMPTZ NOT NULL,

	metric_history_days             INTEGER,
	metric_median_paycheck          NUMERIC(18,2),
	metric_paycheck_regularity      DOUBLE PRECISION,
	metric_days_since_last_paycheck INTEGER,
	metric_overdraft_count90        INTEGER,
	metric_clean_buffer7            NUMERIC(18,2),
	metric_buffer_volatility        DOUBLE PRECISION,
	metric_deposit_multiplicity30   DOUBLE PRECISION,
	metric_net_cash30               NUMERIC(18,2),
	metric_debt_load30              NUMERIC(18,4),
	metric_volatility90             DOUBLE PRECISION,

	points_history_days             INTEGER,
	points_median_paycheck          INTEGER,
	points_paycheck_regularity      INTEGER,
	points_days_since_last_paycheck INTEGER,
	points_overdraft_count90        INTEGER,
	points_clean_buffer7            INTEGER,
	points_buffer_volatility        INTEGER,
	points_deposit_multiplicity30   INTEGER,
	points_net_cash30               INTEGER,
	points_debt_load30              INTEGER,
	points_volatility90             INTEGER,

	base_score     INTEGER,
	blink_score    DOUBLE PRECISION,
	recommendation TEXT NOT NULL DEFAULT '',

	flag_od_vol      BOOLEAN NOT NULL DEFAULT false,
	flag_cash_crunch BOOLEAN NOT NULL DEFAULT false,
	flag_debt_trap   BOOLEAN NOT NULL DEFAULT false,

	failure_reason TEXT,
	engine_version TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_risk_score_audits_user ON risk_score_audits (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS feature_store_snapshots (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	decision_at TIMESTAMPTZ NOT NULL,
	features    JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_feature_store_snapshots_user ON feature_store_snapshots (user_id, decision_at DESC);

CREATE TABLE IF NOT EXISTS rescore_jobs (
	id           TEXT PRIMARY KEY,
	user_id      TEXT NOT NULL,
	priority     INTEGER NOT NULL DEFAULT 0,
	status       TEXT NOT NULL DEFAULT 'pending',
	reason       TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	started_at   TIMESTAMPTZ,
	completed_at TIMESTAMPTZ,
	error        TEXT NOT NULL DEFAULT '',
	attempts     INTEGER NOT NULL DEFAULT 0,
	max_attempts INTEGER NOT NULL DEFAULT 3,
	duration_ms  BIGINT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_rescore_jobs_queue ON rescore_jobs (status, priority DESC, created_at);
CREATE INDEX IF NOT EXISTS idx_rescore_jobs_user ON rescore_jobs (user_id);

CREATE TABLE IF NOT EXISTS service_clients (
	client_id   TEXT PRIMARY KEY,
	secret_hash TEXT NOT NULL,
	name        TEXT NOT NULL DEFAULT '',
	disabled    BOOLEAN NOT NULL DEFAULT false,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS system_kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// EnsureSchema creates missing tables and records the schema version.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	upsert := `INSERT INTO system_kv (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
	if _, err := db.ExecContext(ctx, upsert, schemaVersionKey, schemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return nil
}
