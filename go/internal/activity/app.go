package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/focusflow/go/internal/models"
	"github.com/rs/zerolog"
)

const (
	// DefaultListLimit is used when a caller asks for no particular page size
	DefaultListLimit = 50
	// MaxListLimit caps a single page
	MaxListLimit = 200
)

// ErrInvalidEntry is returned for entries missing a user or type
var ErrInvalidEntry = errors.New("invalid activity entry")

// ActivityRepository defines what the app layer needs from storage
type ActivityRepository interface {
	CreateActivity(ctx context.Context, entry *models.ActivityLog) error
	ListBySession(ctx context.Context, sessionID uuid.UUID, limit int) ([]*models.ActivityLog, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.ActivityLog, error)
}

// Publisher forwards recorded activity to an event stream
type Publisher interface {
	Publish(ctx context.Context, entry *models.ActivityLog) error
}

// Entry is what callers record; ID and timestamp are assigned on record
type Entry struct {
	UserID    uuid.UUID
	SessionID *uuid.UUID
	Type      models.ActivityType
	Message   string
	Metadata  map[string]any
}

// App records and lists activity
type App struct {
	repo      ActivityRepository
	publisher Publisher
	clock     clockwork.Clock
	logger    zerolog.Logger
}

// NewApp creates an activity App. publisher may be nil.
func NewApp(repo ActivityRepository, publisher Publisher, clock clockwork.Clock, logger zerolog.Logger) *App {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &App{
		repo:      repo,
		publisher: publisher,
		clock:     clock,
		logger:    logger.With().Str("component", "activity").Logger(),
	}
}

// Record stores e and, when a publisher is configured, forwards it. A
// publish failure is logged and does not fail the call.
func (a *App) Record(ctx context.Context, e Entry) (*models.ActivityLog, error) {
	if e.UserID == uuid.Nil || e.Type == "" {
		return nil, ErrInvalidEntry
	}

	entry := &models.ActivityLog{
		ID:        uuid.New(),
		UserID:    e.UserID,
		SessionID: e.SessionID,
		Type:      e.Type,
		Message:   e.Message,
		CreatedAt: a.clock.Now(),
	}
	if len(e.Metadata) > 0 {
		raw, err := json.Marshal(e.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to encode activity metadata: %w", err)
		}
		entry.Metadata = raw
	}

	if err := a.repo.CreateActivity(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to record activity: %w", err)
	}

	if a.publisher != nil {
		if err := a.publisher.Publish(ctx, entry); err != nil {
			a.logger.Warn().
				Err(err).
				Str("activity_id", entry.ID.String()).
				Str("type", string(entry.Type)).
				Msg("failed to publish activity")
		}
	}
	return entry, nil
}

// ListBySession returns a session's activity, newest first
func (a *App) ListBySession(ctx context.Context, sessionID uuid.UUID, limit int) ([]*models.ActivityLog, error) {
	entries, err := a.repo.ListBySession(ctx, sessionID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list session activity: %w", err)
	}
	return entries, nil
}

// ListByUser returns a user's activity, newest first
func (a *App) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.ActivityLog, error) {
	entries, err := a.repo.ListByUser(ctx, userID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list user activity: %w", err)
	}
	return entries, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}
