package sessionstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/focusflow/go/internal/models"
	"github.com/mcdev12/focusflow/go/internal/sessions"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id                 UUID PRIMARY KEY,
	code               TEXT NOT NULL UNIQUE,
	creator_id         UUID NOT NULL,
	duration_minutes   DOUBLE PRECISION NOT NULL,
	break_minutes      DOUBLE PRECISION NOT NULL,
	long_break_minutes DOUBLE PRECISION NOT NULL,
	total_cycles       INTEGER NOT NULL,
	current_cycle      INTEGER NOT NULL,
	status             TEXT NOT NULL,
	current_time_left  INTEGER,
	is_running         BOOLEAN NOT NULL DEFAULT FALSE,
	is_break           BOOLEAN NOT NULL DEFAULT FALSE,
	created_at         TIMESTAMPTZ NOT NULL,
	started_at         TIMESTAMPTZ,
	completed_at       TIMESTAMPTZ,
	timer_started_at   TIMESTAMPTZ,
	version            BIGINT NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS sessions_creator_created_at_idx ON sessions (creator_id, created_at DESC);
`

const sessionColumns = `id, code, creator_id, duration_minutes, break_minutes, long_break_minutes,
	total_cycles, current_cycle, status, current_time_left, is_running, is_break,
	created_at, started_at, completed_at, timer_started_at, version`

// Postgres stores sessions in PostgreSQL through a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ sessions.SessionRepository = (*Postgres)(nil)

// NewPostgres wraps an existing pool
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Migrate creates the sessions table if it does not exist
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to create sessions schema: %w", classifyPgError(err))
	}
	return nil
}

// CreateSession inserts s under a new ID
func (p *Postgres) CreateSession(ctx context.Context, s *models.Session) (*models.Session, error) {
	stored := s.Clone()
	stored.ID = uuid.New()
	stored.Version = 1

	_, err := p.pool.Exec(ctx, `INSERT INTO sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		stored.ID, stored.Code, stored.CreatorID,
		stored.DurationMinutes, stored.BreakMinutes, stored.LongBreakMinutes,
		stored.TotalCycles, stored.CurrentCycle, string(stored.Status), stored.CurrentTimeLeft,
		stored.IsRunning, stored.IsBreak,
		stored.CreatedAt, stored.StartedAt, stored.CompletedAt, stored.TimerStartedAt, stored.Version,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("code %s: %w", stored.Code, sessions.ErrCodeTaken)
		}
		return nil, fmt.Errorf("failed to insert session: %w", classifyPgError(err))
	}
	return stored, nil
}

// GetSession retrieves a session by ID
func (p *Postgres) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	s, err := scanPgSession(row)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	return s, nil
}

// GetSessionByCode retrieves a session by code
func (p *Postgres) GetSessionByCode(ctx context.Context, code string) (*models.Session, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE code = $1`, code)
	s, err := scanPgSession(row)
	if err != nil {
		return nil, fmt.Errorf("code %s: %w", code, err)
	}
	return s, nil
}

// SessionCodeExists reports whether code was ever issued
func (p *Postgres) SessionCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM sessions WHERE code = $1)`, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check code: %w", classifyPgError(err))
	}
	return exists, nil
}

// UpdateSession locks the row with SELECT ... FOR UPDATE, applies fn and
// writes the whole record back in the same transaction.
func (p *Postgres) UpdateSession(ctx context.Context, id uuid.UUID, fn sessions.MutateFunc) (*models.Session, error) {
	var result *models.Session
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1 FOR UPDATE`, id)
		current, err := scanPgSession(row)
		if err != nil {
			return fmt.Errorf("session %s: %w", id, err)
		}

		working := current.Clone()
		changed, err := fn(working)
		if err != nil {
			return err
		}
		if !changed {
			result = current
			return nil
		}
		pinImmutable(working, current)
		working.Version = current.Version + 1

		_, err = tx.Exec(ctx, `UPDATE sessions SET
			current_cycle = $2, status = $3, current_time_left = $4, is_running = $5, is_break = $6,
			started_at = $7, completed_at = $8, timer_started_at = $9, version = $10
			WHERE id = $1`,
			id, working.CurrentCycle, string(working.Status), working.CurrentTimeLeft,
			working.IsRunning, working.IsBreak,
			working.StartedAt, working.CompletedAt, working.TimerStartedAt, working.Version,
		)
		if err != nil {
			return fmt.Errorf("failed to update session: %w", classifyPgError(err))
		}
		result = working
		return nil
	})
	if err != nil {
		return nil, classifyPgError(err)
	}
	return result, nil
}

// ListSessionsByCreator returns the creator's sessions, newest first
func (p *Postgres) ListSessionsByCreator(ctx context.Context, creatorID uuid.UUID) ([]*models.Session, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+sessionColumns+` FROM sessions
		WHERE creator_id = $1 ORDER BY created_at DESC, id DESC`, creatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", classifyPgError(err))
	}
	defer rows.Close()

	var out []*models.Session
	for rows.Next() {
		s, err := scanPgSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", classifyPgError(err))
	}
	return out, nil
}

func scanPgSession(row pgx.Row) (*models.Session, error) {
	var s models.Session
	var status string
	err := row.Scan(
		&s.ID, &s.Code, &s.CreatorID,
		&s.DurationMinutes, &s.BreakMinutes, &s.LongBreakMinutes,
		&s.TotalCycles, &s.CurrentCycle, &status, &s.CurrentTimeLeft,
		&s.IsRunning, &s.IsBreak,
		&s.CreatedAt, &s.StartedAt, &s.CompletedAt, &s.TimerStartedAt, &s.Version,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sessions.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", classifyPgError(err))
	}
	s.Status = models.SessionStatus(status)
	return &s, nil
}

// classifyPgError marks connection-level failures as transient so callers may retry.
func classifyPgError(err error) error {
	if err == nil || errors.Is(err, sessions.ErrTransientStore) {
		return err
	}
	var connectErr *pgconn.ConnectError
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) || errors.As(err, &connectErr) {
		return fmt.Errorf("%w: %v", sessions.ErrTransientStore, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01": // serialization failure, deadlock
			return fmt.Errorf("%w: %v", sessions.ErrTransientStore, err)
		}
	}
	return err
}
