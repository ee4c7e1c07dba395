package services

// Typed errors returned by the service layer; handlers map them to HTTP
// statuses. Participant-facing endpoints collapse NotFoundError and
// InvalidParticipantError into one generic response so a probing client
// cannot learn which check failed.

type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string { return e.Message }

type InvalidParticipantError struct{}

func (e *InvalidParticipantError) Error() string { return "invalid participant" }

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "validation error" }

type ConflictError struct{ Message string }

func (e *ConflictError) Error() string { return e.Message }
