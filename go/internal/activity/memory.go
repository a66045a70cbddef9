package activity

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/mcdev12/focusflow/go/internal/models"
)

// MemoryRepository keeps activity in process
type MemoryRepository struct {
	mu      sync.RWMutex
	entries []models.ActivityLog
}

var _ ActivityRepository = (*MemoryRepository)(nil)

// NewMemoryRepository creates an empty repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

// CreateActivity appends an entry
func (m *MemoryRepository) CreateActivity(ctx context.Context, entry *models.ActivityLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *entry)
	return nil
}

// ListBySession returns a session's entries, newest first
func (m *MemoryRepository) ListBySession(ctx context.Context, sessionID uuid.UUID, limit int) ([]*models.ActivityLog, error) {
	return m.list(limit, func(a *models.ActivityLog) bool {
		return a.SessionID != nil && *a.SessionID == sessionID
	}), nil
}

// ListByUser returns a user's entries, newest first
func (m *MemoryRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.ActivityLog, error) {
	return m.list(limit, func(a *models.ActivityLog) bool {
		return a.UserID == userID
	}), nil
}

func (m *MemoryRepository) list(limit int, match func(*models.ActivityLog) bool) []*models.ActivityLog {
	m.mu.RLock()
	var out []*models.ActivityLog
	for i := len(m.entries) - 1; i >= 0; i-- {
		if match(&m.entries[i]) {
			entry := m.entries[i]
			out = append(out, &entry)
		}
	}
	m.mu.RUnlock()

	// entries recorded at the same instant stay newest first
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
