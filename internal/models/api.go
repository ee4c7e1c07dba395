package models

type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Selection identifies which point(s) of a session's history to package.
// Exactly one of the three modes applies: Step set, Start/End set, or neither
// (latest).
type Selection struct {
	ExperimentID int64
	UserID       int64
	Step         *int
	Start        *int
	End          *int
	IncludeEnd   bool
}

// NotificationJob is one entry on the redis notification queue.
type NotificationJob struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	UserID       int64  `json:"user_id"`
	ExperimentID int64  `json:"experiment_id"`
}

// MonitorMessage is the compact event summary fanned out to researcher
// monitor connections. It never includes payloads or secrets.
type MonitorMessage struct {
	ExperimentID int64  `json:"experiment_id"`
	UserID       int64  `json:"user_id"`
	Kind         string `json:"kind"`
	Type         string `json:"type,omitempty"`
	Event        string `json:"event,omitempty"`
	OccurredAt   string `json:"occurred_at"`
}
