package users

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/focusflow/go/internal/identity"
	"github.com/mcdev12/focusflow/go/internal/models"
	"github.com/rs/zerolog"
)

// maxUsernameAttempts bounds the search for a free generated username
const maxUsernameAttempts = 25

var (
	adjectives = []string{"Quick", "Smart", "Focus", "Zen", "Calm", "Swift", "Bright", "Cool"}
	nouns      = []string{"Student", "Learner", "Scholar", "Mind", "Brain", "Thinker", "Focus", "User"}
)

// UsersRepository defines what the app layer needs from the repository
type UsersRepository interface {
	CreateUser(ctx context.Context, u *models.User) (*models.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByExternalID(ctx context.Context, externalID string) (*models.User, error)
}

// App handles users business logic
type App struct {
	repo   UsersRepository
	clock  clockwork.Clock
	intn   func(n int) int
	logger zerolog.Logger
}

// NewApp creates a new users App
func NewApp(repo UsersRepository, clock clockwork.Clock, logger zerolog.Logger) *App {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &App{
		repo:   repo,
		clock:  clock,
		intn:   rand.IntN,
		logger: logger.With().Str("component", "users").Logger(),
	}
}

// GetUser retrieves a user by ID
func (a *App) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// FindOrCreate returns the user for a verified identity, creating it on first
// sight. Anonymous identities resolve to the demo user.
func (a *App) FindOrCreate(ctx context.Context, id identity.Identity) (*models.User, error) {
	if id.Anonymous() {
		return a.DemoUser(ctx)
	}

	user, err := a.lookupIdentity(ctx, id)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	username := id.Email
	if username == "" {
		username = id.ExternalID
	}
	user, err = a.repo.CreateUser(ctx, &models.User{
		Username:    username,
		Email:       id.Email,
		ExternalID:  id.ExternalID,
		DisplayName: id.DisplayName,
		CreatedAt:   a.clock.Now(),
	})
	if errors.Is(err, ErrAlreadyExists) {
		// a concurrent request created the same identity
		return a.lookupIdentity(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	a.logger.Info().
		Str("user_id", user.ID.String()).
		Str("username", user.Username).
		Msg("user created from identity")
	return user, nil
}

func (a *App) lookupIdentity(ctx context.Context, id identity.Identity) (*models.User, error) {
	user, err := a.repo.GetUserByExternalID(ctx, id.ExternalID)
	if err == nil || !errors.Is(err, ErrNotFound) || id.Email == "" {
		return user, err
	}
	return a.repo.GetUserByEmail(ctx, id.Email)
}

// CreateAnonymousUser creates a user with a generated name such as CalmThinker417
func (a *App) CreateAnonymousUser(ctx context.Context) (*models.User, error) {
	for attempt := 0; attempt < maxUsernameAttempts; attempt++ {
		username := a.generateUsername()

		_, err := a.repo.GetUserByUsername(ctx, username)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("failed to check username: %w", err)
		}

		user, err := a.repo.CreateUser(ctx, &models.User{
			Username:    username,
			DisplayName: username,
			Anonymous:   true,
			CreatedAt:   a.clock.Now(),
		})
		if errors.Is(err, ErrAlreadyExists) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create anonymous user: %w", err)
		}

		a.logger.Info().
			Str("user_id", user.ID.String()).
			Str("username", user.Username).
			Msg("anonymous user created")
		return user, nil
	}
	return nil, fmt.Errorf("no free anonymous username after %d attempts", maxUsernameAttempts)
}

// DemoUser returns the shared demo account, creating it if needed
func (a *App) DemoUser(ctx context.Context) (*models.User, error) {
	user, err := a.repo.GetUserByUsername(ctx, DemoUsername)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to get demo user: %w", err)
	}

	user, err = a.repo.CreateUser(ctx, &models.User{
		Username:    DemoUsername,
		DisplayName: "Demo User",
		Anonymous:   true,
		CreatedAt:   a.clock.Now(),
	})
	if errors.Is(err, ErrAlreadyExists) {
		return a.repo.GetUserByUsername(ctx, DemoUsername)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create demo user: %w", err)
	}
	return user, nil
}

func (a *App) generateUsername() string {
	var b strings.Builder
	b.WriteString(adjectives[a.intn(len(adjectives))])
	b.WriteString(nouns[a.intn(len(nouns))])
	b.WriteString(strconv.Itoa(a.intn(1000)))
	return b.String()
}
