package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ParticipantRepo is the identity store for anonymous participants: a numeric
// account id and an active flag, nothing else. Participants have no
// credentials of their own; the per-session secret is their capability.
type ParticipantRepo struct {
	pool *pgxpool.Pool
}

func NewParticipantRepo(pool *pgxpool.Pool) *ParticipantRepo {
	return &ParticipantRepo{pool: pool}
}

func (r *ParticipantRepo) Create(ctx context.Context) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO participants DEFAULT VALUES RETURNING id`).Scan(&id)
	return id, err
}

func (r *ParticipantRepo) SetActive(ctx context.Context, userID int64, active bool) error {
	_, err := r.pool.Exec(ctx, `UPDATE participants SET active = $2 WHERE id = $1`, userID, active)
	return err
}
