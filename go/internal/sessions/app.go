package sessions

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/focusflow/go/internal/models"
	"github.com/rs/zerolog"
)

// MutateFunc applies a change to a loaded session and reports whether it
// changed anything. Returning an error aborts the update.
type MutateFunc func(s *models.Session) (bool, error)

// SessionRepository defines what the app layer needs from the session store
type SessionRepository interface {
	CreateSession(ctx context.Context, s *models.Session) (*models.Session, error)
	GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error)
	GetSessionByCode(ctx context.Context, code string) (*models.Session, error)
	SessionCodeExists(ctx context.Context, code string) (bool, error)
	UpdateSession(ctx context.Context, id uuid.UUID, fn MutateFunc) (*models.Session, error)
	ListSessionsByCreator(ctx context.Context, creatorID uuid.UUID) ([]*models.Session, error)
}

// Broadcaster delivers a payload to every current subscriber of a topic.
// Publish must not block on slow subscribers.
type Broadcaster interface {
	Publish(topic string, payload any)
}

// ChangeObserver is told about every committed change, including ones
// whose snapshot was superseded before it could be broadcast. before and
// after are private copies.
type ChangeObserver interface {
	SessionChanged(ctx context.Context, before, after *models.Session)
}

// publishedVersions bounds how many sessions the app remembers the last
// broadcast version for.
const publishedVersions = 16384

// App handles session state machine business logic
type App struct {
	repo    SessionRepository
	hub     Broadcaster
	codegen *CodeGenerator
	clock   clockwork.Clock
	logger  zerolog.Logger

	observers []ChangeObserver
	sequencer *snapshotSequencer
}

// NewApp creates a new sessions App
func NewApp(repo SessionRepository, hub Broadcaster, codegen *CodeGenerator, clock clockwork.Clock, logger zerolog.Logger) *App {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if codegen == nil {
		codegen = NewCodeGenerator(nil, repo)
	}
	return &App{
		repo:      repo,
		hub:       hub,
		codegen:   codegen,
		clock:     clock,
		logger:    logger.With().Str("component", "sessions").Logger(),
		sequencer: newSnapshotSequencer(publishedVersions),
	}
}

// AddObserver registers o to be told about committed changes. Call before serving requests.
func (a *App) AddObserver(o ChangeObserver) {
	a.observers = append(a.observers, o)
}

// CreateSession validates the request and stores a new session under a fresh code
func (a *App) CreateSession(ctx context.Context, req CreateSessionRequest) (*models.Session, error) {
	if err := a.validateCreateSessionRequest(req); err != nil {
		return nil, err
	}

	for {
		code, err := a.codegen.Generate(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to generate session code: %w", err)
		}

		session, err := a.repo.CreateSession(ctx, &models.Session{
			Code:             code,
			CreatorID:        req.CreatorID,
			DurationMinutes:  req.DurationMinutes,
			BreakMinutes:     req.BreakMinutes,
			LongBreakMinutes: req.LongBreakMinutes,
			TotalCycles:      req.TotalCycles,
			CurrentCycle:     1,
			Status:           models.SessionStatusCreated,
			CreatedAt:        a.clock.Now(),
		})
		if errors.Is(err, ErrCodeTaken) {
			// lost a race with a concurrent create for the same code
			a.logger.Debug().Str("code", code).Msg("session code taken, regenerating")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create session: %w", err)
		}

		a.logger.Info().
			Str("session_id", session.ID.String()).
			Str("code", session.Code).
			Int("total_cycles", session.TotalCycles).
			Msg("session created")
		return session, nil
	}
}

// GetSession retrieves a session by ID
func (a *App) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	session, err := a.repo.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// GetSessionByCode retrieves a session by its share code. The code is case-insensitive.
func (a *App) GetSessionByCode(ctx context.Context, code string) (*models.Session, error) {
	normalized, err := NormalizeCode(code)
	if err != nil {
		return nil, err
	}

	session, err := a.repo.GetSessionByCode(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to get session by code: %w", err)
	}
	return session, nil
}

// ListSessionsByCreator returns the sessions a user created, newest first
func (a *App) ListSessionsByCreator(ctx context.Context, creatorID uuid.UUID) ([]*models.Session, error) {
	sessions, err := a.repo.ListSessionsByCreator(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// SetStatus moves the session to a new lifecycle status. Same-status
// requests are no-ops and are not broadcast.
func (a *App) SetStatus(ctx context.Context, id uuid.UUID, status models.SessionStatus) (*models.Session, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}

	session, before, changed, err := a.mutate(ctx, id, func(s *models.Session) (bool, error) {
		if err := validateStatusTransition(s.Status, status); err != nil {
			return false, err
		}
		if s.Status == status {
			return false, nil
		}

		now := a.clock.Now()
		s.Status = status
		switch status {
		case models.SessionStatusActive:
			if s.StartedAt == nil {
				s.StartedAt = &now
			}
		case models.SessionStatusCompleted:
			markCompleted(s, now)
		case models.SessionStatusEndedEarly:
			s.IsRunning = false
		}
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set session status: %w", err)
	}

	if changed {
		a.logger.Info().
			Str("session_id", id.String()).
			Str("from", string(before.Status)).
			Str("to", string(status)).
			Msg("session status updated")
		a.broadcast(ctx, before, session)
	}
	return session, nil
}

// AdvanceCycle records the cycle the session is on. Reaching the last cycle
// completes the session.
func (a *App) AdvanceCycle(ctx context.Context, id uuid.UUID, cycle int) (*models.Session, error) {
	if cycle < 1 {
		return nil, fmt.Errorf("%w: cycle must be at least 1", ErrValidation)
	}

	session, before, _, err := a.mutate(ctx, id, func(s *models.Session) (bool, error) {
		if s.Status.Terminal() {
			return false, fmt.Errorf("%w: session is %s", ErrConflict, s.Status)
		}
		if cycle < s.CurrentCycle {
			return false, fmt.Errorf("%w: cycle %d is behind current cycle %d", ErrValidation, cycle, s.CurrentCycle)
		}

		s.CurrentCycle = cycle
		if cycle >= s.TotalCycles {
			markCompleted(s, a.clock.Now())
		}
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to advance cycle: %w", err)
	}

	a.logger.Info().
		Str("session_id", id.String()).
		Int("cycle", session.CurrentCycle).
		Int("total_cycles", session.TotalCycles).
		Str("status", string(session.Status)).
		Msg("session cycle advanced")
	a.broadcast(ctx, before, session)
	return session, nil
}

// CheckCompletion completes a session whose cycle count has already reached
// the total but whose status was never updated. Otherwise it is a no-op.
func (a *App) CheckCompletion(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	session, before, changed, err := a.mutate(ctx, id, func(s *models.Session) (bool, error) {
		if s.CurrentCycle < s.TotalCycles || s.Status.Terminal() {
			return false, nil
		}
		markCompleted(s, a.clock.Now())
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to check completion: %w", err)
	}

	if changed {
		a.logger.Info().Str("session_id", id.String()).Msg("session force-completed")
		a.broadcast(ctx, before, session)
	}
	return session, nil
}

// UpdateTimerState overwrites the shared timer fields. Concurrent updates are last-writer-wins.
func (a *App) UpdateTimerState(ctx context.Context, id uuid.UUID, req UpdateTimerStateRequest) (*models.Session, error) {
	if req.TimeLeft != nil && *req.TimeLeft < 0 {
		return nil, fmt.Errorf("%w: time left cannot be negative", ErrValidation)
	}

	session, before, _, err := a.mutate(ctx, id, func(s *models.Session) (bool, error) {
		if s.Status.Terminal() {
			return false, fmt.Errorf("%w: session is %s", ErrConflict, s.Status)
		}

		if req.TimeLeft != nil {
			v := *req.TimeLeft
			s.CurrentTimeLeft = &v
		} else {
			s.CurrentTimeLeft = nil
		}
		s.IsRunning = req.IsRunning
		s.IsBreak = req.IsBreak
		if req.IsRunning {
			now := a.clock.Now()
			s.TimerStartedAt = &now
		}
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update timer state: %w", err)
	}

	a.logger.Debug().
		Str("session_id", id.String()).
		Bool("is_running", session.IsRunning).
		Bool("is_break", session.IsBreak).
		Msg("timer state updated")
	a.broadcast(ctx, before, session)
	return session, nil
}

// RecordJoin announces that a user joined the session. The session itself is not modified.
func (a *App) RecordJoin(ctx context.Context, id uuid.UUID, user *models.User) (*models.Session, error) {
	if user == nil {
		return nil, fmt.Errorf("%w: user is required", ErrValidation)
	}

	session, err := a.repo.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to join session: %w", err)
	}

	a.hub.Publish(UserJoinedTopic(session.Code), UserJoinedEvent{
		User:      user.Name(),
		UserID:    user.ID,
		Timestamp: a.clock.Now(),
	})

	a.logger.Info().
		Str("session_id", id.String()).
		Str("user_id", user.ID.String()).
		Msg("user joined session")
	return session, nil
}

// mutate runs fn inside the repository's atomic read-modify-write. It
// returns the stored session, the state fn started from and whether fn
// changed anything.
func (a *App) mutate(ctx context.Context, id uuid.UUID, fn MutateFunc) (*models.Session, *models.Session, bool, error) {
	var before *models.Session
	var changed bool
	session, err := a.repo.UpdateSession(ctx, id, func(s *models.Session) (bool, error) {
		before = s.Clone()
		c, err := fn(s)
		changed = c && err == nil
		return c, err
	})
	if err != nil {
		return nil, nil, false, err
	}
	return session, before, changed, nil
}

// broadcast publishes the committed snapshot, then notifies observers.
// It never fails the caller.
func (a *App) broadcast(ctx context.Context, before, after *models.Session) {
	if !a.sequencer.publish(a.hub, after) {
		a.logger.Debug().
			Str("session_id", after.ID.String()).
			Int64("version", after.Version).
			Msg("snapshot superseded, not broadcast")
	}
	for _, o := range a.observers {
		o.SessionChanged(ctx, before.Clone(), after.Clone())
	}
}

// snapshotSequencer keeps each session's broadcasts in commit order. Two
// writers can commit v1 then v2 but reach broadcast in the opposite order;
// the late v1 is dropped so the last snapshot subscribers hold is always
// the newest committed one.
type snapshotSequencer struct {
	mu        sync.Mutex
	published *lru.Cache[uuid.UUID, int64]
}

func newSnapshotSequencer(size int) *snapshotSequencer {
	cache, err := lru.New[uuid.UUID, int64](size)
	if err != nil {
		panic(fmt.Sprintf("sessions: invalid sequencer size %d: %v", size, err))
	}
	return &snapshotSequencer{published: cache}
}

// publish broadcasts s unless a newer version of the session already went
// out. The lock is held across Publish so per-session order is preserved.
func (q *snapshotSequencer) publish(hub Broadcaster, s *models.Session) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if last, ok := q.published.Get(s.ID); ok && s.Version <= last {
		return false
	}
	q.published.Add(s.ID, s.Version)
	hub.Publish(SessionTopic(s.Code), s.Clone())
	return true
}

// markCompleted applies the completion side effects
func markCompleted(s *models.Session, now time.Time) {
	if s.CurrentCycle > s.TotalCycles {
		s.CurrentCycle = s.TotalCycles
	}
	s.Status = models.SessionStatusCompleted
	s.CompletedAt = &now
	s.IsRunning = false
	s.IsBreak = false
}

// validateCreateSessionRequest validates create session request
func (a *App) validateCreateSessionRequest(req CreateSessionRequest) error {
	durations := []struct {
		name  string
		value float64
	}{
		{"durationMinutes", req.DurationMinutes},
		{"breakMinutes", req.BreakMinutes},
		{"longBreakMinutes", req.LongBreakMinutes},
	}
	for _, d := range durations {
		if math.IsNaN(d.value) || math.IsInf(d.value, 0) || d.value <= 0 {
			return fmt.Errorf("%w: %s must be a finite positive number", ErrValidation, d.name)
		}
	}
	if req.TotalCycles < 1 {
		return fmt.Errorf("%w: totalCycles must be at least 1", ErrValidation)
	}
	return nil
}

// validateStatusTransition validates if a status transition is allowed
func validateStatusTransition(currentStatus, newStatus models.SessionStatus) error {
	// Allow same status (no-op)
	if currentStatus == newStatus {
		return nil
	}

	allowedTransitions := map[models.SessionStatus][]models.SessionStatus{
		models.SessionStatusCreated:    {models.SessionStatusActive, models.SessionStatusPaused, models.SessionStatusCompleted, models.SessionStatusEndedEarly},
		models.SessionStatusActive:     {models.SessionStatusPaused, models.SessionStatusCompleted, models.SessionStatusEndedEarly},
		models.SessionStatusPaused:     {models.SessionStatusActive, models.SessionStatusCompleted, models.SessionStatusEndedEarly},
		models.SessionStatusCompleted:  {}, // terminal
		models.SessionStatusEndedEarly: {}, // terminal
	}

	allowedNext, exists := allowedTransitions[currentStatus]
	if !exists {
		return fmt.Errorf("%w: unknown current status %s", ErrConflict, currentStatus)
	}

	for _, allowed := range allowedNext {
		if newStatus == allowed {
			return nil
		}
	}

	return fmt.Errorf("%w: transition from %s to %s is not allowed", ErrConflict, currentStatus, newStatus)
}
