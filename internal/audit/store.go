package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/carelink/portal-gateway/pkg/database"
	"github.com/carelink/portal-gateway/pkg/logger"
)

// Store persists gateway audit events. Recording is best effort: an audit
// failure is logged and never surfaced to the request path. A nil *Store is
// a valid disabled trail.
type Store struct {
	db     *database.DB
	logger *logger.Logger
}

// NewStore creates an audit store over an established database connection
func NewStore(db *database.DB, log *logger.Logger) *Store {
	return &Store{db: db, logger: log}
}

// RecordDecision persists a redirect decision
func (s *Store) RecordDecision(ctx context.Context, loginID, path, outcome, reason string) {
	if s == nil || s.db == nil {
		return
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO access_decisions (id, login_id, path, outcome, reason) VALUES ($1, $2, $3, $4, $5)`,
		uuid.NewString(), loginID, path, outcome, reason,
	)
	if err != nil {
		s.logger.Audit(loginID, "access_decision", path, false, map[string]interface{}{
			"outcome": outcome,
			"error":   err.Error(),
		})
	}
}

// RecordRelay persists the outcome of an upload relay
func (s *Store) RecordRelay(ctx context.Context, loginID string, statusCode int, category string, duration time.Duration) {
	if s == nil || s.db == nil {
		return
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO relay_events (id, login_id, status_code, category, duration_ms) VALUES ($1, $2, $3, $4, $5)`,
		uuid.NewString(), loginID, statusCode, category, duration.Milliseconds(),
	)
	if err != nil {
		s.logger.Audit(loginID, "relay_event", category, false, map[string]interface{}{
			"status_code": statusCode,
			"error":       err.Error(),
		})
	}
}
