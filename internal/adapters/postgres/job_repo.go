package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/harmonyservices/gdalsubset/internal/core/domain"
)

// JobRepo implements ports.JobRepository.
type JobRepo struct {
	db *DB
}

func NewJobRepo(db *DB) *JobRepo {
	return &JobRepo{db: db}
}

const jobColumns = `id, request_id, status, message, COALESCE(output_name, ''), progress, COALESCE(result_url, ''), COALESCE(error, ''), created_at, updated_at`

func (r *JobRepo) Create(ctx context.Context, job *domain.Job) error {
	msg, err := json.Marshal(job.Message)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	err = r.db.Pool.QueryRow(ctx, `
		INSERT INTO jobs (id, request_id, status, message, output_name, progress)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
		RETURNING created_at, updated_at
	`, job.ID, job.RequestID, job.Status, msg, job.Output, job.Progress).Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (r *JobRepo) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (r *JobRepo) List(ctx context.Context, offset, limit int) ([]domain.Job, int, error) {
	var total int
	if err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM jobs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+jobColumns+`
		FROM jobs ORDER BY created_at DESC, id
		OFFSET $1 LIMIT $2
	`, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, 0, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, total, rows.Err()
}

func (r *JobRepo) UpdateStatus(ctx context.Context, id string, status domain.JobStatus, progress int, resultURL, errMsg string) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE jobs SET
			status = $2,
			progress = GREATEST(progress, $3),
			result_url = COALESCE(NULLIF($4, ''), result_url),
			error = COALESCE(NULLIF($5, ''), error),
			updated_at = now()
		WHERE id = $1
	`, id, status, progress, resultURL, errMsg)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var (
		job domain.Job
		msg []byte
	)
	if err := row.Scan(&job.ID, &job.RequestID, &job.Status, &msg, &job.Output, &job.Progress,
		&job.ResultURL, &job.Error, &job.CreatedAt, &job.UpdatedAt); err != nil {
		return nil, err
	}
	if len(msg) > 0 && string(msg) != "null" {
		job.Message = &domain.Message{}
		if err := json.Unmarshal(msg, job.Message); err != nil {
			return nil, fmt.Errorf("decode message for job %s: %w", job.ID, err)
		}
	}
	return &job, nil
}
