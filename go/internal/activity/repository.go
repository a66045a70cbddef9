package activity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/focusflow/go/internal/models"
	"github.com/mcdev12/focusflow/go/internal/sqlutil"
	"github.com/sqlc-dev/pqtype"
)

const activitySchema = `
CREATE TABLE IF NOT EXISTS activity_logs (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	session_id TEXT,
	type       TEXT NOT NULL,
	message    TEXT NOT NULL,
	metadata   TEXT,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS activity_logs_session_idx ON activity_logs (session_id, created_at);
CREATE INDEX IF NOT EXISTS activity_logs_user_idx ON activity_logs (user_id, created_at);
`

const activityColumns = `id, user_id, session_id, type, message, metadata, created_at`

// Repository stores activity log entries through database/sql
type Repository struct {
	db      *sql.DB
	dialect sqlutil.Dialect
}

var _ ActivityRepository = (*Repository)(nil)

// NewRepository creates a new activity repository
func NewRepository(db *sql.DB, dialect sqlutil.Dialect) *Repository {
	return &Repository{db: db, dialect: dialect}
}

// Migrate creates the activity table if it does not exist
func (r *Repository) Migrate(ctx context.Context) error {
	if err := sqlutil.ExecScript(ctx, r.db, activitySchema); err != nil {
		return fmt.Errorf("failed to create activity schema: %w", err)
	}
	return nil
}

// CreateActivity inserts an entry
func (r *Repository) CreateActivity(ctx context.Context, entry *models.ActivityLog) error {
	metadata := pqtype.NullRawMessage{RawMessage: entry.Metadata, Valid: len(entry.Metadata) > 0}

	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(`INSERT INTO activity_logs (`+activityColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		entry.ID.String(), entry.UserID.String(), sqlutil.ToNullUUID(entry.SessionID), string(entry.Type), entry.Message,
		metadata, entry.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}
	return nil
}

// ListBySession returns a session's entries, newest first
func (r *Repository) ListBySession(ctx context.Context, sessionID uuid.UUID, limit int) ([]*models.ActivityLog, error) {
	return r.list(ctx, "session_id", sessionID, limit)
}

// ListByUser returns a user's entries, newest first
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.ActivityLog, error) {
	return r.list(ctx, "user_id", userID, limit)
}

// list filters on one column; column is always a constant from this file
func (r *Repository) list(ctx context.Context, column string, id uuid.UUID, limit int) ([]*models.ActivityLog, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(`SELECT `+activityColumns+` FROM activity_logs
		WHERE `+column+` = ? ORDER BY created_at DESC, id DESC LIMIT ?`), id.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	defer rows.Close()

	var out []*models.ActivityLog
	for rows.Next() {
		entry, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	return out, nil
}

func scanActivity(rows *sql.Rows) (*models.ActivityLog, error) {
	var a models.ActivityLog
	var id, userID, activityType string
	var sessionID uuid.NullUUID
	var metadata pqtype.NullRawMessage
	var createdAt time.Time
	if err := rows.Scan(&id, &userID, &sessionID, &activityType, &a.Message, &metadata, &createdAt); err != nil {
		return nil, fmt.Errorf("failed to scan activity: %w", err)
	}

	var err error
	if a.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid activity id %q: %w", id, err)
	}
	if a.UserID, err = uuid.Parse(userID); err != nil {
		return nil, fmt.Errorf("invalid user id %q: %w", userID, err)
	}
	a.SessionID = sqlutil.FromNullUUID(sessionID)
	if metadata.Valid {
		a.Metadata = append(json.RawMessage(nil), metadata.RawMessage...)
	}
	a.Type = models.ActivityType(activityType)
	a.CreatedAt = createdAt
	return &a, nil
}
