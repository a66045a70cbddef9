package sessionstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/mcdev12/focusflow/go/internal/models"
	"github.com/mcdev12/focusflow/go/internal/sessions"
)

// Memory is an in-process session store. Sessions are lost on restart.
type Memory struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*memoryEntry
	byCode   map[string]uuid.UUID
}

// memoryEntry guards one session so read-modify-write on different ids never contend.
type memoryEntry struct {
	mu      sync.Mutex
	session *models.Session
}

var _ sessions.SessionRepository = (*Memory)(nil)

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[uuid.UUID]*memoryEntry),
		byCode:   make(map[string]uuid.UUID),
	}
}

// CreateSession stores s under a new ID
func (m *Memory) CreateSession(ctx context.Context, s *models.Session) (*models.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stored := s.Clone()
	stored.ID = uuid.New()
	stored.Version = 1

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byCode[stored.Code]; exists {
		return nil, fmt.Errorf("code %s: %w", stored.Code, sessions.ErrCodeTaken)
	}
	m.sessions[stored.ID] = &memoryEntry{session: stored}
	m.byCode[stored.Code] = stored.ID

	return stored.Clone(), nil
}

// GetSession retrieves a session by ID
func (m *Memory) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	entry, err := m.entry(id)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.session.Clone(), nil
}

// GetSessionByCode retrieves a session by code
func (m *Memory) GetSessionByCode(ctx context.Context, code string) (*models.Session, error) {
	m.mu.RLock()
	id, ok := m.byCode[code]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("code %s: %w", code, sessions.ErrNotFound)
	}
	return m.GetSession(ctx, id)
}

// SessionCodeExists reports whether code was ever issued
func (m *Memory) SessionCodeExists(ctx context.Context, code string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byCode[code]
	return ok, nil
}

// UpdateSession applies fn to a copy of the session under its entry lock
// and replaces the stored record when fn reports a change.
func (m *Memory) UpdateSession(ctx context.Context, id uuid.UUID, fn sessions.MutateFunc) (*models.Session, error) {
	entry, err := m.entry(id)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	working := entry.session.Clone()
	changed, err := fn(working)
	if err != nil {
		return nil, err
	}
	if !changed {
		return entry.session.Clone(), nil
	}

	pinImmutable(working, entry.session)
	working.Version = entry.session.Version + 1
	entry.session = working
	return working.Clone(), nil
}

// ListSessionsByCreator returns the creator's sessions, newest first
func (m *Memory) ListSessionsByCreator(ctx context.Context, creatorID uuid.UUID) ([]*models.Session, error) {
	m.mu.RLock()
	entries := make([]*memoryEntry, 0, len(m.sessions))
	for _, e := range m.sessions {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	var out []*models.Session
	for _, e := range entries {
		e.mu.Lock()
		if e.session.CreatorID == creatorID {
			out = append(out, e.session.Clone())
		}
		e.mu.Unlock()
	}

	sortNewestFirst(out)
	return out, nil
}

func (m *Memory) entry(id uuid.UUID) (*memoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, sessions.ErrNotFound)
	}
	return e, nil
}

// pinImmutable restores fields that may not change after creation. The
// caller bumps Version separately.
func pinImmutable(updated, original *models.Session) {
	updated.ID = original.ID
	updated.Code = original.Code
	updated.CreatorID = original.CreatorID
	updated.CreatedAt = original.CreatedAt
	updated.DurationMinutes = original.DurationMinutes
	updated.BreakMinutes = original.BreakMinutes
	updated.LongBreakMinutes = original.LongBreakMinutes
	updated.TotalCycles = original.TotalCycles
}

func sortNewestFirst(list []*models.Session) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID.String() > list[j].ID.String()
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
}
