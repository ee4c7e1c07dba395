package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"blocklab-backend/internal/models"
)

type ExperimentRepo struct {
	pool *pgxpool.Pool
}

func NewExperimentRepo(pool *pgxpool.Pool) *ExperimentRepo {
	return &ExperimentRepo{pool: pool}
}

func (r *ExperimentRepo) Create(ctx context.Context, e *models.Experiment) error {
	query := `INSERT INTO experiments (title, active, gui_url, notify_email, initial_project)
		VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`

	return r.pool.QueryRow(ctx, query,
		e.Title, e.Active, e.GUIURL, e.NotifyEmail, e.InitialProject,
	).Scan(&e.ID, &e.CreatedAt)
}

func (r *ExperimentRepo) Get(ctx context.Context, id int64) (*models.Experiment, error) {
	e := &models.Experiment{}
	query := `SELECT id, title, active, gui_url, notify_email, initial_project, created_at
		FROM experiments WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&e.ID, &e.Title, &e.Active, &e.GUIURL, &e.NotifyEmail, &e.InitialProject, &e.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (r *ExperimentRepo) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE experiments SET active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ExperimentRepo) List(ctx context.Context) ([]*models.Experiment, error) {
	query := `SELECT id, title, active, gui_url, notify_email, created_at
		FROM experiments ORDER BY id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var experiments []*models.Experiment
	for rows.Next() {
		e := &models.Experiment{}
		if err := rows.Scan(&e.ID, &e.Title, &e.Active, &e.GUIURL, &e.NotifyEmail, &e.CreatedAt); err != nil {
			return nil, err
		}
		experiments = append(experiments, e)
	}
	return experiments, rows.Err()
}
