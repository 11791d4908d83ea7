package database

import "fmt"

// auditSchema defines the tables backing the gateway audit trail
const auditSchema = `
CREATE TABLE IF NOT EXISTS access_decisions (
	id UUID PRIMARY KEY,
	login_id TEXT NOT NULL DEFAULT '',
	path TEXT NOT NULL,
	outcome TEXT NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	decided_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_access_decisions_login_id ON access_decisions (login_id);
CREATE INDEX IF NOT EXISTS idx_access_decisions_decided_at ON access_decisions (decided_at);

CREATE TABLE IF NOT EXISTS relay_events (
	id UUID PRIMARY KEY,
	login_id TEXT NOT NULL DEFAULT '',
	status_code INT NOT NULL,
	category TEXT NOT NULL DEFAULT '',
	duration_ms BIGINT NOT NULL,
	relayed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_relay_events_login_id ON relay_events (login_id);
`

// Migrate creates the audit tables if they do not exist
func (db *DB) Migrate() error {
	if _, err := db.Exec(auditSchema); err != nil {
		return fmt.Errorf("failed to apply audit schema: %w", err)
	}

	db.logger.Info("Audit schema applied")
	return nil
}
