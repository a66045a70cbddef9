package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/focusflow/go/internal/activity"
	"github.com/mcdev12/focusflow/go/internal/config"
	"github.com/mcdev12/focusflow/go/internal/dbconfig"
	"github.com/mcdev12/focusflow/go/internal/health"
	"github.com/mcdev12/focusflow/go/internal/sessions"
	"github.com/mcdev12/focusflow/go/internal/sessionstore"
	"github.com/mcdev12/focusflow/go/internal/sqlutil"
	"github.com/mcdev12/focusflow/go/internal/users"
	"github.com/rs/zerolog/log"
)

// Stores holds the repositories selected by the store driver
type Stores struct {
	Sessions sessions.SessionRepository
	Users    users.UsersRepository
	Activity activity.ActivityRepository

	pings   map[string]health.PingFunc
	closers []func()
}

// Close releases database handles in reverse order of opening
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

type migrator interface {
	Migrate(ctx context.Context) error
}

func setupStores(ctx context.Context, cfg *config.Config) (*Stores, error) {
	stores := &Stores{pings: make(map[string]health.PingFunc)}

	switch cfg.Store.Driver {
	case config.StoreMemory:
		stores.Sessions = sessionstore.NewMemory()
		stores.Users = users.NewMemoryRepository()
		stores.Activity = activity.NewMemoryRepository()
		log.Warn().Msg("using in-memory storage, sessions are lost on restart")

	case config.StoreSQLite:
		db, err := sqlutil.Open(ctx, sqlutil.DialectSQLite, cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		stores.closers = append(stores.closers, func() { _ = db.Close() })
		stores.pings["sqlite"] = db.PingContext
		if err := stores.useSQL(ctx, db, sqlutil.DialectSQLite, sessionstore.NewSQL(db, sqlutil.DialectSQLite)); err != nil {
			stores.Close()
			return nil, err
		}
		log.Info().Str("path", cfg.Store.SQLitePath).Msg("connected to sqlite database")

	case config.StorePostgres:
		pool, err := setupPool(ctx, cfg.DB)
		if err != nil {
			return nil, err
		}
		stores.closers = append(stores.closers, pool.Close)
		stores.pings["postgres_pool"] = pool.Ping

		db, err := sqlutil.Open(ctx, sqlutil.DialectPostgres, cfg.DB.DSN())
		if err != nil {
			stores.Close()
			return nil, err
		}
		stores.closers = append(stores.closers, func() { _ = db.Close() })
		stores.pings["postgres"] = db.PingContext
		if err := stores.useSQL(ctx, db, sqlutil.DialectPostgres, sessionstore.NewPostgres(pool)); err != nil {
			stores.Close()
			return nil, err
		}
		log.Info().Str("database", cfg.DB.Redacted()).Msg("connected to postgres database")

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	if cfg.Store.CodeCacheSize > 0 {
		cached, err := sessionstore.NewCodeCache(stores.Sessions, cfg.Store.CodeCacheSize)
		if err != nil {
			stores.Close()
			return nil, err
		}
		stores.Sessions = cached
	}
	return stores, nil
}

// useSQL wires the users and activity repositories onto db and migrates
// every schema.
func (s *Stores) useSQL(ctx context.Context, db *sql.DB, dialect sqlutil.Dialect, sessionRepo interface {
	sessions.SessionRepository
	migrator
}) error {
	userRepo := users.NewRepository(db, dialect)
	activityRepo := activity.NewRepository(db, dialect)

	migrations := []struct {
		name string
		m    migrator
	}{
		{"users", userRepo},
		{"sessions", sessionRepo},
		{"activity", activityRepo},
	}
	for _, mig := range migrations {
		if err := mig.m.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to migrate %s: %w", mig.name, err)
		}
	}

	s.Sessions = sessionRepo
	s.Users = userRepo
	s.Activity = activityRepo
	return nil
}

func setupPool(ctx context.Context, cfg dbconfig.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}
