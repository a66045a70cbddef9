package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/focusflow/go/internal/models"
	"github.com/mcdev12/focusflow/go/internal/sqlutil"
)

const usersSchema = `
CREATE TABLE IF NOT EXISTS users (
	id           TEXT PRIMARY KEY,
	username     TEXT NOT NULL UNIQUE,
	email        TEXT,
	external_id  TEXT UNIQUE,
	display_name TEXT NOT NULL DEFAULT '',
	anonymous    BOOLEAN NOT NULL DEFAULT FALSE,
	created_at   TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS users_email_idx ON users (email);
`

const userColumns = `id, username, email, external_id, display_name, anonymous, created_at`

// Repository implements user data access operations on database/sql
type Repository struct {
	db      *sql.DB
	dialect sqlutil.Dialect
}

var _ UsersRepository = (*Repository)(nil)

// NewRepository creates a new users repository
func NewRepository(db *sql.DB, dialect sqlutil.Dialect) *Repository {
	return &Repository{
		db:      db,
		dialect: dialect,
	}
}

// Migrate creates the users table if it does not exist
func (r *Repository) Migrate(ctx context.Context) error {
	if err := sqlutil.ExecScript(ctx, r.db, usersSchema); err != nil {
		return fmt.Errorf("failed to create users schema: %w", err)
	}
	return nil
}

// CreateUser inserts u under a new ID
func (r *Repository) CreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	user := *u
	user.ID = uuid.New()
	user.CreatedAt = user.CreatedAt.UTC()

	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(`INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		user.ID.String(), user.Username, sqlutil.ToSqlString(user.Email), sqlutil.ToSqlString(user.ExternalID),
		user.DisplayName, user.Anonymous, user.CreatedAt,
	)
	if err != nil {
		if sqlutil.IsUniqueViolation(err) {
			return nil, fmt.Errorf("username %s: %w", user.Username, ErrAlreadyExists)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &user, nil
}

// GetUser retrieves a user by ID
func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.getBy(ctx, "id", id.String())
}

// GetUserByUsername retrieves a user by username
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getBy(ctx, "username", username)
}

// GetUserByEmail retrieves the oldest user with the given email
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getBy(ctx, "email", email)
}

// GetUserByExternalID retrieves a user by identity provider subject
func (r *Repository) GetUserByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	return r.getBy(ctx, "external_id", externalID)
}

// getBy looks a user up by one column. column is always a constant from this file.
func (r *Repository) getBy(ctx context.Context, column, value string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, r.dialect.Rebind(
		`SELECT `+userColumns+` FROM users WHERE `+column+` = ? ORDER BY created_at LIMIT 1`), value)

	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("user %s %q: %w", column, value, err)
	}
	return user, nil
}

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	var id string
	var email, externalID sql.NullString
	var createdAt time.Time
	err := row.Scan(&id, &u.Username, &email, &externalID, &u.DisplayName, &u.Anonymous, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	if u.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid user id %q: %w", id, err)
	}
	u.Email = sqlutil.FromSqlString(email, "")
	u.ExternalID = sqlutil.FromSqlString(externalID, "")
	u.CreatedAt = createdAt
	return &u, nil
}
