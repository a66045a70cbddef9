package users

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/mcdev12/focusflow/go/internal/models"
)

// MemoryRepository keeps users in process. Used with the memory session store.
type MemoryRepository struct {
	mu         sync.RWMutex
	byID       map[uuid.UUID]models.User
	byUsername map[string]uuid.UUID
	byExternal map[string]uuid.UUID
}

var _ UsersRepository = (*MemoryRepository)(nil)

// NewMemoryRepository creates an empty repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:       make(map[uuid.UUID]models.User),
		byUsername: make(map[string]uuid.UUID),
		byExternal: make(map[string]uuid.UUID),
	}
}

// CreateUser stores u under a new ID
func (m *MemoryRepository) CreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byUsername[u.Username]; ok {
		return nil, fmt.Errorf("username %s: %w", u.Username, ErrAlreadyExists)
	}
	if u.ExternalID != "" {
		if _, ok := m.byExternal[u.ExternalID]; ok {
			return nil, fmt.Errorf("external id %s: %w", u.ExternalID, ErrAlreadyExists)
		}
	}

	user := *u
	user.ID = uuid.New()
	m.byID[user.ID] = user
	m.byUsername[user.Username] = user.ID
	if user.ExternalID != "" {
		m.byExternal[user.ExternalID] = user.ID
	}
	return &user, nil
}

// GetUser retrieves a user by ID
func (m *MemoryRepository) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.get(id)
}

// GetUserByUsername retrieves a user by username
func (m *MemoryRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byUsername[username]
	if !ok {
		return nil, ErrNotFound
	}
	return m.get(id)
}

// GetUserByEmail retrieves the oldest user with the given email
func (m *MemoryRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var found *models.User
	for _, u := range m.byID {
		if u.Email != email || email == "" {
			continue
		}
		if found == nil || u.CreatedAt.Before(found.CreatedAt) {
			u := u
			found = &u
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

// GetUserByExternalID retrieves a user by identity provider subject
func (m *MemoryRepository) GetUserByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byExternal[externalID]
	if !ok {
		return nil, ErrNotFound
	}
	return m.get(id)
}

func (m *MemoryRepository) get(id uuid.UUID) (*models.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}
