package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"adept/internal/domain/model"
	"adept/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*jobRepo)(nil)

type jobRepo struct {
	pool *pgxpool.Pool
}

func NewJobRepo(pool *pgxpool.Pool) *jobRepo {
	return &jobRepo{pool: pool}
}

func (r *jobRepo) Create(ctx context.Context, job *model.Job) error {
	const q = `
INSERT INTO jobs (id, owner_id, status, data, error, created_at, updated_at)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)
ON CONFLICT (id) DO NOTHING;`

	_, err := execSQL(ctx, r.pool, nil, q,
		job.ID, job.OwnerID, job.Status, []byte(job.Data), job.Error, job.CreatedAt, job.UpdatedAt)
	return err
}

// SaveResult upserts the terminal state. The conditional UPDATE leaves rows
// that already reached completed/failed untouched, which makes redelivered
// events and double terminal writes harmless.
func (r *jobRepo) SaveResult(ctx context.Context, job *model.Job) error {
	job.UpdatedAt = time.Now().UTC()

	const q = `
INSERT INTO jobs (id, owner_id, status, data, error, created_at, updated_at)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)
ON CONFLICT (id) DO UPDATE SET
  status = EXCLUDED.status,
  data = EXCLUDED.data,
  error = EXCLUDED.error,
  updated_at = EXCLUDED.updated_at
WHERE jobs.status = 'pending';`

	_, err := execSQL(ctx, r.pool, nil, q,
		job.ID, job.OwnerID, job.Status, []byte(job.Data), job.Error, job.CreatedAt, job.UpdatedAt)
	return err
}

func (r *jobRepo) FindByID(ctx context.Context, id string, ownerID *string) (*model.Job, error) {
	const base = `
SELECT id, owner_id, status, data, COALESCE(error, ''), created_at, updated_at
FROM jobs
WHERE id = $1`

	var (
		row interface{ Scan(dest ...interface{}) error }
		err error
	)
	if ownerID != nil {
		row, err = pickRow(ctx, r.pool, nil, base+` AND owner_id = $2;`, id, *ownerID)
	} else {
		row, err = pickRow(ctx, r.pool, nil, base+`;`, id)
	}
	if err != nil {
		return nil, err
	}

	var (
		job    model.Job
		status string
		data   []byte
	)
	if err := row.Scan(&job.ID, &job.OwnerID, &status, &data, &job.Error, &job.CreatedAt, &job.UpdatedAt); err != nil {
		return nil, translateScan(err)
	}
	job.Status = model.JobStatus(status)
	job.Data = data
	return &job, nil
}
