package sessions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mcdev12/focusflow/go/internal/activity"
	"github.com/mcdev12/focusflow/go/internal/identity"
	"github.com/mcdev12/focusflow/go/internal/models"
	"github.com/mcdev12/focusflow/go/internal/sqlutil"
	"github.com/mcdev12/focusflow/go/internal/users"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
)

// UserDirectory resolves callers and join requests into users
type UserDirectory interface {
	FindOrCreate(ctx context.Context, id identity.Identity) (*models.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// ActivityRecorder stores activity log entries
type ActivityRecorder interface {
	Record(ctx context.Context, e activity.Entry) (*models.ActivityLog, error)
}

// FacadeConfig controls retries of transient store failures
type FacadeConfig struct {
	RetryAttempts uint64
	RetryBase     time.Duration
}

// DefaultFacadeConfig returns default facade settings
func DefaultFacadeConfig() FacadeConfig {
	return FacadeConfig{
		RetryAttempts: 3,
		RetryBase:     50 * time.Millisecond,
	}
}

// Facade is the entry point for transports. It validates requests, resolves
// the caller, retries transient store failures and records activity.
type Facade struct {
	app      *App
	users    UserDirectory
	activity ActivityRecorder
	validate *validator.Validate
	config   FacadeConfig
	logger   zerolog.Logger
}

// NewFacade wraps app. recorder may be nil. The facade registers itself as
// one of the app's change observers.
func NewFacade(app *App, directory UserDirectory, recorder ActivityRecorder, config FacadeConfig, logger zerolog.Logger) *Facade {
	if config.RetryBase <= 0 {
		config.RetryBase = DefaultFacadeConfig().RetryBase
	}
	f := &Facade{
		app:      app,
		users:    directory,
		activity: recorder,
		validate: validator.New(),
		config:   config,
		logger:   logger.With().Str("component", "sessions_facade").Logger(),
	}
	app.AddObserver(f)
	return f
}

// CreateSession creates a session owned by the caller
func (f *Facade) CreateSession(ctx context.Context, req CreateSessionRequest) (*models.Session, error) {
	if err := f.check(req); err != nil {
		return nil, err
	}
	caller, err := f.caller(ctx)
	if err != nil {
		return nil, err
	}
	req.CreatorID = caller.ID

	return f.do(ctx, func(ctx context.Context) (*models.Session, error) {
		return f.app.CreateSession(ctx, req)
	})
}

// GetSession retrieves a session by ID
func (f *Facade) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	return f.do(ctx, func(ctx context.Context) (*models.Session, error) {
		return f.app.GetSession(ctx, id)
	})
}

// GetSessionByCode retrieves a session by its share code
func (f *Facade) GetSessionByCode(ctx context.Context, code string) (*models.Session, error) {
	return f.do(ctx, func(ctx context.Context) (*models.Session, error) {
		return f.app.GetSessionByCode(ctx, code)
	})
}

// History lists the sessions the caller created, newest first
func (f *Facade) History(ctx context.Context) ([]*models.Session, error) {
	caller, err := f.caller(ctx)
	if err != nil {
		return nil, err
	}

	var out []*models.Session
	err = f.retry(ctx, func(ctx context.Context) error {
		var err error
		out, err = f.app.ListSessionsByCreator(ctx, caller.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []*models.Session{}
	}
	return out, nil
}

// SetStatus changes the lifecycle status of a session
func (f *Facade) SetStatus(ctx context.Context, id uuid.UUID, req SetStatusRequest) (*models.Session, error) {
	if err := f.check(req); err != nil {
		return nil, err
	}
	return f.do(ctx, func(ctx context.Context) (*models.Session, error) {
		return f.app.SetStatus(ctx, id, req.Status)
	})
}

// AdvanceCycle records the cycle a session is on
func (f *Facade) AdvanceCycle(ctx context.Context, id uuid.UUID, req AdvanceCycleRequest) (*models.Session, error) {
	if err := f.check(req); err != nil {
		return nil, err
	}
	return f.do(ctx, func(ctx context.Context) (*models.Session, error) {
		return f.app.AdvanceCycle(ctx, id, req.Cycle)
	})
}

// CheckCompletion completes a session that reached its last cycle
func (f *Facade) CheckCompletion(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	return f.do(ctx, func(ctx context.Context) (*models.Session, error) {
		return f.app.CheckCompletion(ctx, id)
	})
}

// UpdateTimerState overwrites the shared timer fields
func (f *Facade) UpdateTimerState(ctx context.Context, id uuid.UUID, req UpdateTimerStateRequest) (*models.Session, error) {
	if err := f.check(req); err != nil {
		return nil, err
	}
	return f.do(ctx, func(ctx context.Context) (*models.Session, error) {
		return f.app.UpdateTimerState(ctx, id, req)
	})
}

// Join announces req.UserID to everyone watching the session
func (f *Facade) Join(ctx context.Context, id uuid.UUID, req JoinSessionRequest) (*models.Session, error) {
	if err := f.check(req); err != nil {
		return nil, err
	}

	return f.do(ctx, func(ctx context.Context) (*models.Session, error) {
		user, err := f.users.GetUser(ctx, req.UserID)
		if errors.Is(err, users.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown user %s", ErrNotFound, req.UserID)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to look up joining user: %w", directoryError(err))
		}
		return f.app.RecordJoin(ctx, id, user)
	})
}

// SessionChanged records activity for a committed change. Failures are logged only.
func (f *Facade) SessionChanged(ctx context.Context, before, after *models.Session) {
	if f.activity == nil {
		return
	}
	entries := describeChange(before, after)
	if len(entries) == 0 {
		return
	}

	user, err := f.caller(ctx)
	if err != nil {
		f.logger.Warn().Err(err).Str("session_id", after.ID.String()).Msg("failed to resolve caller for activity")
		return
	}

	for _, e := range entries {
		e.UserID = user.ID
		e.SessionID = &after.ID
		if _, err := f.activity.Record(ctx, e); err != nil {
			f.logger.Warn().
				Err(err).
				Str("session_id", after.ID.String()).
				Str("type", string(e.Type)).
				Msg("failed to record activity")
		}
	}
}

// describeChange maps a committed transition onto activity entries
func describeChange(before, after *models.Session) []activity.Entry {
	var out []activity.Entry
	add := func(t models.ActivityType, msg string, meta map[string]any) {
		out = append(out, activity.Entry{Type: t, Message: msg, Metadata: meta})
	}
	code := map[string]any{"code": after.Code}

	if after.CurrentCycle > before.CurrentCycle {
		add(models.ActivityCycleCompleted, fmt.Sprintf("Completed cycle %d of %d", before.CurrentCycle, after.TotalCycles),
			map[string]any{"code": after.Code, "cycle": after.CurrentCycle})
	}

	if before.Status != after.Status {
		switch after.Status {
		case models.SessionStatusActive:
			msg := "Session started"
			if before.Status == models.SessionStatusPaused {
				msg = "Session resumed"
			}
			add(models.ActivitySessionStarted, msg, code)
		case models.SessionStatusPaused:
			add(models.ActivitySessionPaused, "Session paused", code)
		case models.SessionStatusCompleted:
			add(models.ActivitySessionCompleted, "Session completed", code)
		case models.SessionStatusEndedEarly:
			add(models.ActivitySessionEnded, "Session ended early", code)
		}
	}

	switch {
	case !before.IsRunning && after.IsRunning:
		add(models.ActivityTimerStarted, "Timer started", code)
	case before.IsRunning && !after.IsRunning && !after.Status.Terminal():
		add(models.ActivityTimerPaused, "Timer paused", code)
	}
	if !before.IsBreak && after.IsBreak {
		add(models.ActivityBreakStarted, "Break started", code)
	}
	return out
}

// caller resolves the identity on ctx into a user
func (f *Facade) caller(ctx context.Context) (*models.User, error) {
	user, err := f.users.FindOrCreate(ctx, identity.FromContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve caller: %w", directoryError(err))
	}
	return user, nil
}

// directoryError marks user store failures that are worth retrying
func directoryError(err error) error {
	if sqlutil.IsTransient(err) {
		return fmt.Errorf("%w: %v", ErrTransientStore, err)
	}
	return err
}

// check runs struct validation and reports failures as ErrValidation
func (f *Facade) check(req any) error {
	err := f.validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(fields, ", "))
	}
	return fmt.Errorf("%w: %v", ErrValidation, err)
}

// do runs op with retries and returns its session
func (f *Facade) do(ctx context.Context, op func(ctx context.Context) (*models.Session, error)) (*models.Session, error) {
	var out *models.Session
	err := f.retry(ctx, func(ctx context.Context) error {
		var err error
		out, err = op(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// retry re-runs op while it fails with ErrTransientStore. Each attempt
// re-reads the session, so a retried update applies to the latest state.
func (f *Facade) retry(ctx context.Context, op func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(f.config.RetryAttempts, retry.NewExponential(f.config.RetryBase))

	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := op(ctx)
		if errors.Is(err, ErrTransientStore) {
			f.logger.Warn().Err(err).Int("attempt", attempt).Msg("transient store failure, retrying")
			return retry.RetryableError(err)
		}
		return err
	})
}
