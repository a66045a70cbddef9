package sessionstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/focusflow/go/internal/models"
	"github.com/mcdev12/focusflow/go/internal/sessions"
	"github.com/mcdev12/focusflow/go/internal/sqlutil"
)

// sqlSchema is written in the subset shared by SQLite and PostgreSQL.
const sqlSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id                 TEXT PRIMARY KEY,
	code               TEXT NOT NULL UNIQUE,
	creator_id         TEXT NOT NULL,
	duration_minutes   DOUBLE PRECISION NOT NULL,
	break_minutes      DOUBLE PRECISION NOT NULL,
	long_break_minutes DOUBLE PRECISION NOT NULL,
	total_cycles       INTEGER NOT NULL,
	current_cycle      INTEGER NOT NULL,
	status             TEXT NOT NULL,
	current_time_left  INTEGER,
	is_running         BOOLEAN NOT NULL DEFAULT FALSE,
	is_break           BOOLEAN NOT NULL DEFAULT FALSE,
	created_at         TIMESTAMP NOT NULL,
	started_at         TIMESTAMP,
	completed_at       TIMESTAMP,
	timer_started_at   TIMESTAMP,
	version            BIGINT NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS sessions_creator_created_at_idx ON sessions (creator_id, created_at);
`

// SQL stores sessions through database/sql. It is used with SQLite for
// single-node deployments and also speaks PostgreSQL through lib/pq.
type SQL struct {
	db      *sql.DB
	dialect sqlutil.Dialect
	locks   *keyedMutex
}

var _ sessions.SessionRepository = (*SQL)(nil)

// NewSQL wraps an open database handle
func NewSQL(db *sql.DB, dialect sqlutil.Dialect) *SQL {
	return &SQL{db: db, dialect: dialect, locks: newKeyedMutex()}
}

// Migrate creates the sessions table if it does not exist
func (s *SQL) Migrate(ctx context.Context) error {
	if err := sqlutil.ExecScript(ctx, s.db, sqlSchema); err != nil {
		return fmt.Errorf("failed to create sessions schema: %w", err)
	}
	return nil
}

// sessionQueries binds session statements to a transaction
type sessionQueries struct {
	tx      *sql.Tx
	dialect sqlutil.Dialect
}

func (s *SQL) queries(tx *sql.Tx) *sessionQueries {
	return &sessionQueries{tx: tx, dialect: s.dialect}
}

// CreateSession inserts s under a new ID
func (s *SQL) CreateSession(ctx context.Context, session *models.Session) (*models.Session, error) {
	stored := session.Clone()
	stored.ID = uuid.New()
	stored.Version = 1

	_, err := s.db.ExecContext(ctx, s.dialect.Rebind(`INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		stored.ID.String(), stored.Code, stored.CreatorID.String(),
		stored.DurationMinutes, stored.BreakMinutes, stored.LongBreakMinutes,
		stored.TotalCycles, stored.CurrentCycle, string(stored.Status), sqlutil.ToSqlInt32(stored.CurrentTimeLeft),
		stored.IsRunning, stored.IsBreak,
		stored.CreatedAt.UTC(), sqlutil.ToSqlTime(stored.StartedAt), sqlutil.ToSqlTime(stored.CompletedAt), sqlutil.ToSqlTime(stored.TimerStartedAt),
		stored.Version,
	)
	if err != nil {
		if sqlutil.IsUniqueViolation(err) {
			return nil, fmt.Errorf("code %s: %w", stored.Code, sessions.ErrCodeTaken)
		}
		return nil, fmt.Errorf("failed to insert session: %w", classifySQLError(err))
	}
	return stored, nil
}

// GetSession retrieves a session by ID
func (s *SQL) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.Rebind(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`), id.String())
	session, err := scanSQLSession(row)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	return session, nil
}

// GetSessionByCode retrieves a session by code
func (s *SQL) GetSessionByCode(ctx context.Context, code string) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.Rebind(`SELECT `+sessionColumns+` FROM sessions WHERE code = ?`), code)
	session, err := scanSQLSession(row)
	if err != nil {
		return nil, fmt.Errorf("code %s: %w", code, err)
	}
	return session, nil
}

// SessionCodeExists reports whether code was ever issued
func (s *SQL) SessionCodeExists(ctx context.Context, code string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.dialect.Rebind(`SELECT COUNT(1) FROM sessions WHERE code = ?`), code).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check code: %w", classifySQLError(err))
	}
	return n > 0, nil
}

// UpdateSession serialises writers of the same id in-process and runs the
// load-mutate-save inside one transaction.
func (s *SQL) UpdateSession(ctx context.Context, id uuid.UUID, fn sessions.MutateFunc) (*models.Session, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	var result *models.Session
	err := sqlutil.Run(ctx, s.db, nil, s.queries, func(q *sessionQueries) error {
		current, err := q.getForUpdate(ctx, id)
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

		if err := q.update(ctx, working); err != nil {
			return err
		}
		result = working
		return nil
	})
	if err != nil {
		return nil, classifySQLError(err)
	}
	return result, nil
}

// ListSessionsByCreator returns the creator's sessions, newest first
func (s *SQL) ListSessionsByCreator(ctx context.Context, creatorID uuid.UUID) ([]*models.Session, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(`SELECT `+sessionColumns+` FROM sessions
		WHERE creator_id = ? ORDER BY created_at DESC, id DESC`), creatorID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", classifySQLError(err))
	}
	defer rows.Close()

	var out []*models.Session
	for rows.Next() {
		session, err := scanSQLSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", classifySQLError(err))
	}
	return out, nil
}

func (q *sessionQueries) getForUpdate(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = ?`
	if q.dialect == sqlutil.DialectPostgres {
		query += ` FOR UPDATE`
	}
	return scanSQLSession(q.tx.QueryRowContext(ctx, q.dialect.Rebind(query), id.String()))
}

func (q *sessionQueries) update(ctx context.Context, s *models.Session) error {
	_, err := q.tx.ExecContext(ctx, q.dialect.Rebind(`UPDATE sessions SET
		current_cycle = ?, status = ?, current_time_left = ?, is_running = ?, is_break = ?,
		started_at = ?, completed_at = ?, timer_started_at = ?, version = ?
		WHERE id = ?`),
		s.CurrentCycle, string(s.Status), sqlutil.ToSqlInt32(s.CurrentTimeLeft), s.IsRunning, s.IsBreak,
		sqlutil.ToSqlTime(s.StartedAt), sqlutil.ToSqlTime(s.CompletedAt), sqlutil.ToSqlTime(s.TimerStartedAt),
		s.Version, s.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLSession(row rowScanner) (*models.Session, error) {
	var s models.Session
	var id, creatorID, status string
	var timeLeft sql.NullInt32
	var createdAt time.Time
	var startedAt, completedAt, timerStartedAt sql.NullTime
	err := row.Scan(
		&id, &s.Code, &creatorID,
		&s.DurationMinutes, &s.BreakMinutes, &s.LongBreakMinutes,
		&s.TotalCycles, &s.CurrentCycle, &status, &timeLeft,
		&s.IsRunning, &s.IsBreak,
		&createdAt, &startedAt, &completedAt, &timerStartedAt, &s.Version,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sessions.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", classifySQLError(err))
	}

	if s.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid session id %q: %w", id, err)
	}
	if s.CreatorID, err = uuid.Parse(creatorID); err != nil {
		return nil, fmt.Errorf("invalid creator id %q: %w", creatorID, err)
	}
	s.Status = models.SessionStatus(status)
	s.CurrentTimeLeft = sqlutil.FromSqlInt32(timeLeft)
	s.CreatedAt = createdAt
	s.StartedAt = sqlutil.FromSqlTime(startedAt)
	s.CompletedAt = sqlutil.FromSqlTime(completedAt)
	s.TimerStartedAt = sqlutil.FromSqlTime(timerStartedAt)
	return &s, nil
}

func classifySQLError(err error) error {
	if err == nil || errors.Is(err, sessions.ErrTransientStore) {
		return err
	}
	if sqlutil.IsTransient(err) {
		return fmt.Errorf("%w: %v", sessions.ErrTransientStore, err)
	}
	return err
}

// keyedMutex hands out one mutex per session id and drops it when unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[uuid.UUID]*refMutex)}
}

// Lock blocks until id is held and returns the matching unlock.
func (k *keyedMutex) Lock(id uuid.UUID) func() {
	k.mu.Lock()
	m, ok := k.locks[id]
	if !ok {
		m = &refMutex{}
		k.locks[id] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}
