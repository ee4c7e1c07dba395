package models

import "time"

type SessionState string

const (
	SessionNotStarted SessionState = "NOT_STARTED"
	SessionRunning    SessionState = "RUNNING"
	SessionFinished   SessionState = "FINISHED"
)

// Session is one participant's run of one experiment, keyed by
// (experiment_id, user_id). The secret is assigned at registration and never
// changes; it is the participant's only credential.
type Session struct {
	ExperimentID int64      `json:"experiment_id"`
	UserID       int64      `json:"user_id"`
	Secret       string     `json:"-"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (s *Session) State() SessionState {
	switch {
	case s.StartedAt == nil:
		return SessionNotStarted
	case s.EndedAt == nil:
		return SessionRunning
	default:
		return SessionFinished
	}
}
