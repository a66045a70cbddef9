package sessionstore

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/focusflow/go/internal/models"
	"github.com/mcdev12/focusflow/go/internal/sessions"
	"github.com/mcdev12/focusflow/go/internal/sqlutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteStore(t *testing.T) *SQL {
	t.Helper()
	ctx := context.Background()
	db, err := sqlutil.Open(ctx, sqlutil.DialectSQLite, filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := NewSQL(db, sqlutil.DialectSQLite)
	require.NoError(t, store.Migrate(ctx))
	return store
}

func storeFactories() map[string]func(t *testing.T) sessions.SessionRepository {
	return map[string]func(t *testing.T) sessions.SessionRepository{
		"memory": func(t *testing.T) sessions.SessionRepository { return NewMemory() },
		"sqlite": func(t *testing.T) sessions.SessionRepository { return newSQLiteStore(t) },
		"cached": func(t *testing.T) sessions.SessionRepository {
			c, err := NewCodeCache(NewMemory(), 16)
			require.NoError(t, err)
			return c
		},
	}
}

func newSession(code string, creator uuid.UUID, createdAt time.Time) *models.Session {
	return &models.Session{
		Code:             code,
		CreatorID:        creator,
		DurationMinutes:  25,
		BreakMinutes:     5,
		LongBreakMinutes: 15,
		TotalCycles:      4,
		CurrentCycle:     1,
		Status:           models.SessionStatusCreated,
		CreatedAt:        createdAt,
	}
}

func TestStore_CreateAndGet(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)
			creator := uuid.New()
			now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

			created, err := store.CreateSession(ctx, newSession("ABC123", creator, now))
			require.NoError(t, err)
			assert.NotEqual(t, uuid.Nil, created.ID)
			assert.Equal(t, int64(1), created.Version)

			byID, err := store.GetSession(ctx, created.ID)
			require.NoError(t, err)
			assert.Equal(t, "ABC123", byID.Code)
			assert.Equal(t, creator, byID.CreatorID)
			assert.Equal(t, 4, byID.TotalCycles)
			assert.Nil(t, byID.CurrentTimeLeft)
			assert.True(t, now.Equal(byID.CreatedAt))
			assert.Equal(t, int64(1), byID.Version)

			byCode, err := store.GetSessionByCode(ctx, "ABC123")
			require.NoError(t, err)
			assert.Equal(t, created.ID, byCode.ID)

			exists, err := store.SessionCodeExists(ctx, "ABC123")
			require.NoError(t, err)
			assert.True(t, exists)

			exists, err = store.SessionCodeExists(ctx, "ZZZZZZ")
			require.NoError(t, err)
			assert.False(t, exists)
		})
	}
}

func TestStore_NotFound(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)

			_, err := store.GetSession(ctx, uuid.New())
			assert.ErrorIs(t, err, sessions.ErrNotFound)

			_, err = store.GetSessionByCode(ctx, "ZZZZZZ")
			assert.ErrorIs(t, err, sessions.ErrNotFound)

			_, err = store.UpdateSession(ctx, uuid.New(), func(s *models.Session) (bool, error) {
				t.Fatal("mutate must not run for a missing session")
				return false, nil
			})
			assert.ErrorIs(t, err, sessions.ErrNotFound)
		})
	}
}

func TestStore_DuplicateCodeRejected(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)

			_, err := store.CreateSession(ctx, newSession("DUP001", uuid.New(), time.Now()))
			require.NoError(t, err)

			_, err = store.CreateSession(ctx, newSession("DUP001", uuid.New(), time.Now()))
			assert.ErrorIs(t, err, sessions.ErrCodeTaken)
		})
	}
}

func TestStore_UpdateSession(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)
			created, err := store.CreateSession(ctx, newSession("UPD001", uuid.New(), time.Now()))
			require.NoError(t, err)

			left := 1200
			started := time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC)
			updated, err := store.UpdateSession(ctx, created.ID, func(s *models.Session) (bool, error) {
				s.Status = models.SessionStatusActive
				s.CurrentTimeLeft = &left
				s.IsRunning = true
				s.StartedAt = &started
				s.Code = "HACKED" // immutable, must be ignored
				s.Version = 99    // assigned by the store
				return true, nil
			})
			require.NoError(t, err)
			assert.Equal(t, models.SessionStatusActive, updated.Status)
			assert.Equal(t, "UPD001", updated.Code)
			assert.Equal(t, int64(2), updated.Version)

			reloaded, err := store.GetSession(ctx, created.ID)
			require.NoError(t, err)
			assert.Equal(t, models.SessionStatusActive, reloaded.Status)
			require.NotNil(t, reloaded.CurrentTimeLeft)
			assert.Equal(t, 1200, *reloaded.CurrentTimeLeft)
			assert.True(t, reloaded.IsRunning)
			require.NotNil(t, reloaded.StartedAt)
			assert.True(t, started.Equal(*reloaded.StartedAt))
			assert.Equal(t, "UPD001", reloaded.Code)
			assert.Equal(t, int64(2), reloaded.Version)
		})
	}
}

func TestStore_UpdateSessionNoChangeOrError(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)
			created, err := store.CreateSession(ctx, newSession("NOP001", uuid.New(), time.Now()))
			require.NoError(t, err)

			// unchanged: mutations on the working copy are discarded
			_, err = store.UpdateSession(ctx, created.ID, func(s *models.Session) (bool, error) {
				s.CurrentCycle = 3
				return false, nil
			})
			require.NoError(t, err)

			boom := errors.New("boom")
			_, err = store.UpdateSession(ctx, created.ID, func(s *models.Session) (bool, error) {
				s.CurrentCycle = 4
				return true, boom
			})
			assert.ErrorIs(t, err, boom)

			reloaded, err := store.GetSession(ctx, created.ID)
			require.NoError(t, err)
			assert.Equal(t, 1, reloaded.CurrentCycle)
			assert.Equal(t, int64(1), reloaded.Version)
		})
	}
}

func TestStore_ConcurrentUpdatesAreAtomic(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)
			created, err := store.CreateSession(ctx, newSession("RMW001", uuid.New(), time.Now()))
			require.NoError(t, err)

			const writers = 20
			var wg sync.WaitGroup
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := store.UpdateSession(ctx, created.ID, func(s *models.Session) (bool, error) {
						s.CurrentCycle++
						return true, nil
					})
					assert.NoError(t, err)
				}()
			}
			wg.Wait()

			reloaded, err := store.GetSession(ctx, created.ID)
			require.NoError(t, err)
			assert.Equal(t, 1+writers, reloaded.CurrentCycle)
			assert.Equal(t, int64(1+writers), reloaded.Version)
		})
	}
}

func TestStore_ListSessionsByCreatorNewestFirst(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)
			creator := uuid.New()
			base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

			_, err := store.CreateSession(ctx, newSession("OLD001", creator, base))
			require.NoError(t, err)
			_, err = store.CreateSession(ctx, newSession("NEW001", creator, base.Add(time.Hour)))
			require.NoError(t, err)
			_, err = store.CreateSession(ctx, newSession("OTH001", uuid.New(), base.Add(2*time.Hour)))
			require.NoError(t, err)

			list, err := store.ListSessionsByCreator(ctx, creator)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "NEW001", list[0].Code)
			assert.Equal(t, "OLD001", list[1].Code)
		})
	}
}

func TestCodeCache_ServesFromCache(t *testing.T) {
	ctx := context.Background()
	backing := NewMemory()
	cache, err := NewCodeCache(backing, 4)
	require.NoError(t, err)

	created, err := cache.CreateSession(ctx, newSession("CACHE1", uuid.New(), time.Now()))
	require.NoError(t, err)

	// the id path still sees updates made through the backing store
	_, err = backing.UpdateSession(ctx, created.ID, func(s *models.Session) (bool, error) {
		s.Status = models.SessionStatusPaused
		return true, nil
	})
	require.NoError(t, err)

	got, err := cache.GetSessionByCode(ctx, "CACHE1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusPaused, got.Status)

	exists, err := cache.SessionCodeExists(ctx, "CACHE1")
	require.NoError(t, err)
	assert.True(t, exists)
}
