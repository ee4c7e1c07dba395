package services

import (
	"context"
	"time"

	"blocklab-backend/internal/models"
)

// Store interfaces consumed by the service layer. The pgx repositories in
// internal/repository implement them; tests use in-memory fakes. Lookups
// return (nil, nil) when the record does not exist.

type SessionStore interface {
	Get(ctx context.Context, experimentID, userID int64) (*models.Session, error)
	Create(ctx context.Context, s *models.Session) error
	// MarkStarted sets started_at and clears ended_at.
	MarkStarted(ctx context.Context, experimentID, userID int64, start time.Time) error
	// MarkFinished sets ended_at.
	MarkFinished(ctx context.Context, experimentID, userID int64, end time.Time) error
	// Reopen clears ended_at; when start is non-nil it also resets started_at.
	Reopen(ctx context.Context, experimentID, userID int64, start *time.Time) error
	// RunningElsewhere reports whether the user has a RUNNING session in any
	// experiment other than experimentID.
	RunningElsewhere(ctx context.Context, userID, experimentID int64) (bool, error)
}

type ExperimentStore interface {
	Get(ctx context.Context, id int64) (*models.Experiment, error)
}

// ParticipantStore is the identity-store collaborator: it owns the anonymous
// participant accounts.
type ParticipantStore interface {
	Create(ctx context.Context) (int64, error)
	SetActive(ctx context.Context, userID int64, active bool) error
}

type EventStore interface {
	// Append assigns the next sequence id and durably inserts the event.
	Append(ctx context.Context, e *models.Event) error
	// MaxID returns the highest event id for the session, 0 when the log is
	// empty. Read paths capture it once and bound every later query by it so
	// they see a consistent prefix of the log.
	MaxID(ctx context.Context, experimentID, userID int64) (int64, error)
	CountBlocks(ctx context.Context, experimentID, userID, maxID int64) (int, error)
	// BlockAt returns the n-th BLOCK event (0-based) in (occurred_at, id)
	// order, nil when n is out of range.
	BlockAt(ctx context.Context, experimentID, userID, maxID int64, n int) (*models.Event, error)
	LatestBlock(ctx context.Context, experimentID, userID, maxID int64) (*models.Event, error)
	LatestZip(ctx context.Context, experimentID, userID, maxID int64) (*models.Event, error)
	// ResourcesAt returns, for each resource name, the latest FILE blob at or
	// before the (occurredAt, id) cutoff.
	ResourcesAt(ctx context.Context, experimentID, userID, maxID int64, occurredAt time.Time, id int64) (map[string][]byte, error)
	CountByKind(ctx context.Context, experimentID, userID, maxID int64) ([]models.EventCount, error)
	DistinctCodeCount(ctx context.Context, experimentID, userID, maxID int64) (int, error)
}

type ResearcherStore interface {
	GetByEmail(ctx context.Context, email string) (*models.Researcher, error)
}

// Notifier dispatches side-effect notifications out of the request path.
type Notifier interface {
	ParticipantFinished(ctx context.Context, userID, experimentID int64) error
}
