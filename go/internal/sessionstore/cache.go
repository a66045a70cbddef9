package sessionstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mcdev12/focusflow/go/internal/models"
	"github.com/mcdev12/focusflow/go/internal/sessions"
)

// CodeCache wraps a repository and remembers code to id lookups.
// Codes never change or get reused, so cached entries never go stale.
type CodeCache struct {
	sessions.SessionRepository
	ids *lru.Cache[string, uuid.UUID]
}

// NewCodeCache creates a cache holding up to size codes
func NewCodeCache(next sessions.SessionRepository, size int) (*CodeCache, error) {
	cache, err := lru.New[string, uuid.UUID](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create code cache: %w", err)
	}
	return &CodeCache{SessionRepository: next, ids: cache}, nil
}

// CreateSession stores the session and caches its code
func (c *CodeCache) CreateSession(ctx context.Context, s *models.Session) (*models.Session, error) {
	created, err := c.SessionRepository.CreateSession(ctx, s)
	if err != nil {
		return nil, err
	}
	c.ids.Add(created.Code, created.ID)
	return created, nil
}

// GetSessionByCode resolves cached codes through the id lookup
func (c *CodeCache) GetSessionByCode(ctx context.Context, code string) (*models.Session, error) {
	if id, ok := c.ids.Get(code); ok {
		return c.SessionRepository.GetSession(ctx, id)
	}

	s, err := c.SessionRepository.GetSessionByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	c.ids.Add(s.Code, s.ID)
	return s, nil
}

// SessionCodeExists answers from the cache when it can
func (c *CodeCache) SessionCodeExists(ctx context.Context, code string) (bool, error) {
	if c.ids.Contains(code) {
		return true, nil
	}
	return c.SessionRepository.SessionCodeExists(ctx, code)
}
