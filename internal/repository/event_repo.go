package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"blocklab-backend/internal/models"
)

// EventRepo is the append-only event log. Rows are never updated or deleted;
// the BIGSERIAL id is the monotonic sequence used to break timestamp ties,
// and every read is ordered by (occurred_at, id).
type EventRepo struct {
	pool *pgxpool.Pool
}

func NewEventRepo(pool *pgxpool.Pool) *EventRepo {
	return &EventRepo{pool: pool}
}

func (r *EventRepo) Append(ctx context.Context, e *models.Event) error {
	project := e.Project
	if len(project) == 0 {
		project = nil
	}

	query := `INSERT INTO events (experiment_id, user_id, occurred_at, kind, type, event, code, project, blob_name, blob)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`

	return r.pool.QueryRow(ctx, query,
		e.ExperimentID, e.UserID, e.OccurredAt, e.Kind, e.Type, e.Event,
		e.Code, project, e.BlobName, e.Blob,
	).Scan(&e.ID, &e.CreatedAt)
}

func (r *EventRepo) MaxID(ctx context.Context, experimentID, userID int64) (int64, error) {
	var maxID int64
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(id), 0) FROM events
		WHERE experiment_id = $1 AND user_id = $2
	`, experimentID, userID).Scan(&maxID)
	return maxID, err
}

func (r *EventRepo) CountBlocks(ctx context.Context, experimentID, userID, maxID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM events
		WHERE experiment_id = $1 AND user_id = $2 AND id <= $3 AND kind = $4
	`, experimentID, userID, maxID, models.EventBlock).Scan(&count)
	return count, err
}

func (r *EventRepo) BlockAt(ctx context.Context, experimentID, userID, maxID int64, n int) (*models.Event, error) {
	return r.scanOne(ctx, `
		SELECT id, experiment_id, user_id, occurred_at, kind, type, event, code, project, blob_name, blob, created_at
		FROM events
		WHERE experiment_id = $1 AND user_id = $2 AND id <= $3 AND kind = $4
		ORDER BY occurred_at, id
		OFFSET $5 LIMIT 1
	`, experimentID, userID, maxID, models.EventBlock, n)
}

func (r *EventRepo) LatestBlock(ctx context.Context, experimentID, userID, maxID int64) (*models.Event, error) {
	return r.scanOne(ctx, `
		SELECT id, experiment_id, user_id, occurred_at, kind, type, event, code, project, blob_name, blob, created_at
		FROM events
		WHERE experiment_id = $1 AND user_id = $2 AND id <= $3 AND kind = $4
		ORDER BY occurred_at DESC, id DESC
		LIMIT 1
	`, experimentID, userID, maxID, models.EventBlock)
}

func (r *EventRepo) LatestZip(ctx context.Context, experimentID, userID, maxID int64) (*models.Event, error) {
	return r.scanOne(ctx, `
		SELECT id, experiment_id, user_id, occurred_at, kind, type, event, code, project, blob_name, blob, created_at
		FROM events
		WHERE experiment_id = $1 AND user_id = $2 AND id <= $3 AND kind = $4
		ORDER BY occurred_at DESC, id DESC
		LIMIT 1
	`, experimentID, userID, maxID, models.EventZip)
}

// ResourcesAt returns the latest FILE blob per resource name at or before the
// (occurred_at, id) cutoff. DISTINCT ON keeps only the newest row per name.
func (r *EventRepo) ResourcesAt(ctx context.Context, experimentID, userID, maxID int64, occurredAt time.Time, id int64) (map[string][]byte, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT ON (blob_name) blob_name, blob
		FROM events
		WHERE experiment_id = $1 AND user_id = $2 AND id <= $3 AND kind = $4
		  AND blob_name <> ''
		  AND (occurred_at, id) <= ($5::timestamptz, $6::bigint)
		ORDER BY blob_name, occurred_at DESC, id DESC
	`, experimentID, userID, maxID, models.EventFile, occurredAt, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	resources := make(map[string][]byte)
	for rows.Next() {
		var name string
		var blob []byte
		if err := rows.Scan(&name, &blob); err != nil {
			return nil, err
		}
		resources[name] = blob
	}
	return resources, rows.Err()
}

func (r *EventRepo) CountByKind(ctx context.Context, experimentID, userID, maxID int64) ([]models.EventCount, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT kind, type, event, COUNT(*)
		FROM events
		WHERE experiment_id = $1 AND user_id = $2 AND id <= $3
		GROUP BY kind, type, event
		ORDER BY kind, type, event
	`, experimentID, userID, maxID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []models.EventCount
	for rows.Next() {
		var c models.EventCount
		if err := rows.Scan(&c.Kind, &c.Type, &c.Event, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func (r *EventRepo) DistinctCodeCount(ctx context.Context, experimentID, userID, maxID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(DISTINCT code) FROM events
		WHERE experiment_id = $1 AND user_id = $2 AND id <= $3 AND kind = $4
	`, experimentID, userID, maxID, models.EventBlock).Scan(&count)
	return count, err
}

func (r *EventRepo) scanOne(ctx context.Context, query string, args ...interface{}) (*models.Event, error) {
	e := &models.Event{}
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&e.ID, &e.ExperimentID, &e.UserID, &e.OccurredAt, &e.Kind, &e.Type,
		&e.Event, &e.Code, &e.Project, &e.BlobName, &e.Blob, &e.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}
