package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"blocklab-backend/internal/models"
)

type SessionRepo struct {
	pool *pgxpool.Pool
}

func NewSessionRepo(pool *pgxpool.Pool) *SessionRepo {
	return &SessionRepo{pool: pool}
}

func (r *SessionRepo) Create(ctx context.Context, s *models.Session) error {
	query := `INSERT INTO sessions (experiment_id, user_id, secret)
		VALUES ($1, $2, $3) RETURNING created_at`

	return r.pool.QueryRow(ctx, query, s.ExperimentID, s.UserID, s.Secret).Scan(&s.CreatedAt)
}

func (r *SessionRepo) Get(ctx context.Context, experimentID, userID int64) (*models.Session, error) {
	s := &models.Session{}
	query := `SELECT experiment_id, user_id, secret, started_at, ended_at, created_at
		FROM sessions WHERE experiment_id = $1 AND user_id = $2`

	err := r.pool.QueryRow(ctx, query, experimentID, userID).Scan(
		&s.ExperimentID, &s.UserID, &s.Secret, &s.StartedAt, &s.EndedAt, &s.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *SessionRepo) MarkStarted(ctx context.Context, experimentID, userID int64, start time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE sessions
		SET started_at = $3, ended_at = NULL
		WHERE experiment_id = $1 AND user_id = $2
	`, experimentID, userID, start)
	return err
}

func (r *SessionRepo) MarkFinished(ctx context.Context, experimentID, userID int64, end time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE sessions
		SET ended_at = $3
		WHERE experiment_id = $1 AND user_id = $2 AND ended_at IS NULL
	`, experimentID, userID, end)
	return err
}

func (r *SessionRepo) Reopen(ctx context.Context, experimentID, userID int64, start *time.Time) error {
	if start != nil {
		_, err := r.pool.Exec(ctx, `
			UPDATE sessions
			SET started_at = $3, ended_at = NULL
			WHERE experiment_id = $1 AND user_id = $2
		`, experimentID, userID, *start)
		return err
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE sessions
		SET ended_at = NULL
		WHERE experiment_id = $1 AND user_id = $2
	`, experimentID, userID)
	return err
}

// RunningElsewhere reports whether the user has a RUNNING session in any
// other experiment. The partial index on (started_at IS NOT NULL AND
// ended_at IS NULL) keeps this a point lookup.
func (r *SessionRepo) RunningElsewhere(ctx context.Context, userID, experimentID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM sessions
			WHERE user_id = $1
			  AND experiment_id <> $2
			  AND started_at IS NOT NULL
			  AND ended_at IS NULL
		)
	`, userID, experimentID).Scan(&exists)
	return exists, err
}
