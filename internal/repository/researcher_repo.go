package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"blocklab-backend/internal/models"
)

type ResearcherRepo struct {
	pool *pgxpool.Pool
}

func NewResearcherRepo(pool *pgxpool.Pool) *ResearcherRepo {
	return &ResearcherRepo{pool: pool}
}

func (r *ResearcherRepo) GetByEmail(ctx context.Context, email string) (*models.Researcher, error) {
	researcher := &models.Researcher{}
	query := `SELECT id, email, password_hash, full_name, created_at
		FROM researchers WHERE email = $1`

	err := r.pool.QueryRow(ctx, query, email).Scan(
		&researcher.ID, &researcher.Email, &researcher.PasswordHash,
		&researcher.FullName, &researcher.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return researcher, nil
}
