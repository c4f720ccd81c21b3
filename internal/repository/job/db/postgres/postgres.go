package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/avito-tech/gravure/internal/domain"
	"github.com/avito-tech/gravure/internal/repository/job"

	"github.com/lib/pq"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/retry"
)

const uniqueViolation = "23505"

// JobsRepository keeps the history of finished jobs.
type JobsRepository struct {
	db      *dbpg.DB
	retries retry.Strategy
}

func NewJobsRepository(db *dbpg.DB, retries retry.Strategy) *JobsRepository {
	return &JobsRepository{
		db:      db,
		retries: retries,
	}
}

func (r *JobsRepository) Name() string {
	return "postgres"
}

func (r *JobsRepository) Record(ctx context.Context, rec domain.JobRecord) error {
	query := `
		INSERT INTO job_results (
			job_id, image_id, preset, task, client,
			state, step, error, started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecWithRetry(ctx, r.retries, query,
		rec.JobID,
		int64(rec.ImageID),
		rec.Preset,
		rec.Task,
		nullString(rec.Client),
		string(rec.State),
		rec.Step,
		nullString(rec.Error),
		nullTime(rec.StartedAt),
		rec.FinishedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("%w: job %s", job.ErrDuplicateKey, rec.JobID)
		}
		return fmt.Errorf("failed to save job result: %w", err)
	}

	return nil
}

func (r *JobsRepository) GetByID(ctx context.Context, jobID string) (*domain.JobRecord, error) {
	query := `
		SELECT job_id, image_id, preset, task, client,
		       state, step, error, started_at, finished_at
		FROM job_results
		WHERE job_id = $1
	`

	row, err := r.db.QueryRowWithRetry(ctx, r.retries, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query job: %w", err)
	}

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, job.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}

	return rec, nil
}

func (r *JobsRepository) ListByImage(ctx context.Context, imageID uint64) ([]domain.JobRecord, error) {
	query := `
		SELECT job_id, image_id, preset, task, client,
		       state, step, error, started_at, finished_at
		FROM job_results
		WHERE image_id = $1
		ORDER BY finished_at DESC
	`

	rows, err := r.db.QueryWithRetry(ctx, r.retries, query, int64(imageID))
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var records []domain.JobRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		records = append(records, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating jobs: %w", err)
	}

	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*domain.JobRecord, error) {
	var (
		rec       domain.JobRecord
		imageID   int64
		state     string
		client    sql.NullString
		errText   sql.NullString
		startedAt sql.NullTime
	)

	err := s.Scan(
		&rec.JobID,
		&imageID,
		&rec.Preset,
		&rec.Task,
		&client,
		&state,
		&rec.Step,
		&errText,
		&startedAt,
		&rec.FinishedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.ImageID = uint64(imageID)
	rec.State = domain.JobState(state)
	rec.Client = client.String
	rec.Error = errText.String
	rec.StartedAt = startedAt.Time

	return &rec, nil
}
