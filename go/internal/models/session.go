package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus defines the lifecycle status of a shared session.
type SessionStatus string

const (
	SessionStatusCreated    SessionStatus = "CREATED"
	SessionStatusActive     SessionStatus = "ACTIVE"
	SessionStatusPaused     SessionStatus = "PAUSED"
	SessionStatusCompleted  SessionStatus = "COMPLETED"
	SessionStatusEndedEarly SessionStatus = "ENDED_EARLY"
)

// Valid reports whether s is a known status.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusCreated, SessionStatusActive, SessionStatusPaused,
		SessionStatusCompleted, SessionStatusEndedEarly:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further mutation is allowed from s.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusEndedEarly
}

// Session is a shareable focus/break timer. The JSON form is the snapshot
// broadcast to observers.
type Session struct {
	ID               uuid.UUID     `json:"id"`
	Code             string        `json:"sessionCode"`
	CreatorID        uuid.UUID     `json:"creatorId"`
	DurationMinutes  float64       `json:"durationMinutes"`
	BreakMinutes     float64       `json:"breakMinutes"`
	LongBreakMinutes float64       `json:"longBreakMinutes"`
	TotalCycles      int           `json:"totalCycles"`
	CurrentCycle     int           `json:"currentCycle"`
	Status           SessionStatus `json:"status"`
	CurrentTimeLeft  *int          `json:"currentTimeLeft"`
	IsRunning        bool          `json:"isRunning"`
	IsBreak          bool          `json:"isBreak"`
	CreatedAt        time.Time     `json:"createdAt"`
	StartedAt        *time.Time    `json:"startedAt,omitempty"`
	CompletedAt      *time.Time    `json:"completedAt,omitempty"`
	TimerStartedAt   *time.Time    `json:"timerStartedAt,omitempty"`

	// Version is assigned by the store: 1 on insert, +1 on every committed change.
	Version int64 `json:"version"`
}

// Clone returns a deep copy so callers can mutate without touching stored state.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.CurrentTimeLeft = cloneInt(s.CurrentTimeLeft)
	c.StartedAt = cloneTime(s.StartedAt)
	c.CompletedAt = cloneTime(s.CompletedAt)
	c.TimerStartedAt = cloneTime(s.TimerStartedAt)
	return &c
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	i := *v
	return &i
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	t := *v
	return &t
}
