package sessions

import (
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/focusflow/go/internal/models"
)

// CreateSessionRequest represents the data needed to create a new session
type CreateSessionRequest struct {
	CreatorID        uuid.UUID `json:"-"`
	DurationMinutes  float64   `json:"durationMinutes" validate:"gt=0"`
	BreakMinutes     float64   `json:"breakMinutes" validate:"gt=0"`
	LongBreakMinutes float64   `json:"longBreakMinutes" validate:"gt=0"`
	TotalCycles      int       `json:"totalCycles" validate:"gte=1"`
}

// SetStatusRequest represents a lifecycle status change
type SetStatusRequest struct {
	Status models.SessionStatus `json:"status" validate:"required,oneof=CREATED ACTIVE PAUSED COMPLETED ENDED_EARLY"`
}

// AdvanceCycleRequest moves the session to the given cycle
type AdvanceCycleRequest struct {
	Cycle int `json:"cycle" validate:"gte=1"`
}

// UpdateTimerStateRequest overwrites the shared timer fields
type UpdateTimerStateRequest struct {
	TimeLeft  *int `json:"timeLeft" validate:"omitempty,gte=0"`
	IsRunning bool `json:"isRunning"`
	IsBreak   bool `json:"isBreak"`
}

// JoinSessionRequest identifies the user joining a session
type JoinSessionRequest struct {
	UserID uuid.UUID `json:"userId" validate:"required"`
}

// UserJoinedEvent is published on the user-joined topic of a session
type UserJoinedEvent struct {
	User      string    `json:"user"`
	UserID    uuid.UUID `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionTopic returns the topic carrying session snapshots.
func SessionTopic(code string) string {
	return "session/" + code
}

// UserJoinedTopic returns the topic carrying join notifications.
func UserJoinedTopic(code string) string {
	return "session/" + code + "/user-joined"
}
