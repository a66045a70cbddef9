package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ActivityType classifies an activity log entry.
type ActivityType string

const (
	ActivitySessionStarted   ActivityType = "SESSION_STARTED"
	ActivitySessionPaused    ActivityType = "SESSION_PAUSED"
	ActivitySessionCompleted ActivityType = "SESSION_COMPLETED"
	ActivitySessionEnded     ActivityType = "SESSION_ENDED"
	ActivityTimerStarted     ActivityType = "TIMER_STARTED"
	ActivityTimerPaused      ActivityType = "TIMER_PAUSED"
	ActivityTimerReset       ActivityType = "TIMER_RESET"
	ActivityBreakStarted     ActivityType = "BREAK_STARTED"
	ActivityCycleStarted     ActivityType = "CYCLE_STARTED"
	ActivityCycleCompleted   ActivityType = "CYCLE_COMPLETED"
	ActivityTipRequested     ActivityType = "TIP_REQUESTED"
	ActivitySessionUpdate    ActivityType = "SESSION_UPDATE"
)

// ActivityLog is a user-attributed record of something that happened in a session.
type ActivityLog struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"userId"`
	SessionID *uuid.UUID      `json:"sessionId,omitempty"`
	Type      ActivityType    `json:"type"`
	Message   string          `json:"message"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}
