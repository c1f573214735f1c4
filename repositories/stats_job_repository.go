package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/matchday/models"
)

var (
	ErrStatsJobNotFound  = errors.New("stats job not found")
	ErrDuplicateStatsJob = errors.New("stats job with this request id already exists")
)

const statsJobColumns = `id, tenant_id, job_type, payload, status, retry_count, max_retries,
		started_at, completed_at, error_message, results, created_at`

type StatsJobRepository interface {
	// Enqueue inserts a queued job. A second job with the same (tenant, request id)
	// is rejected with ErrDuplicateStatsJob.
	Enqueue(ctx context.Context, tenantID models.TenantID, job *models.StatsJob) error
	GetByID(ctx context.Context, tenantID models.TenantID, id int) (*models.StatsJob, error)
	ListRecent(ctx context.Context, tenantID models.TenantID, limit int) ([]models.StatsJob, error)
	// TenantsWithQueued lists tenants that have work waiting, oldest job first.
	TenantsWithQueued(ctx context.Context) ([]models.TenantID, error)
	// ClaimNext moves the oldest queued job of the tenant to processing. It returns
	// (nil, nil) when there is nothing to do.
	ClaimNext(ctx context.Context, tenantID models.TenantID) (*models.StatsJob, error)
	Complete(ctx context.Context, tenantID models.TenantID, id int, results models.JobResults) error
	Fail(ctx context.Context, tenantID models.TenantID, id int, results models.JobResults, message string) error
	// Requeue puts a processing job back in the queue with retry_count + 1.
	Requeue(ctx context.Context, tenantID models.TenantID, id int, results models.JobResults, message string) error
	// RecoverStale handles jobs left in processing since before startedBefore, across
	// all tenants: each goes back to the queue with retry_count + 1 while it has
	// retries left, otherwise it is failed. The touched jobs are returned as updated.
	RecoverStale(ctx context.Context, startedBefore time.Time, message string) ([]models.StatsJob, error)
}

type postgresStatsJobRepository struct {
	db *sql.DB
}

func NewPostgresStatsJobRepository(db *sql.DB) StatsJobRepository {
	return &postgresStatsJobRepository{db: db}
}

func (r *postgresStatsJobRepository) Enqueue(ctx context.Context, tenantID models.TenantID, job *models.StatsJob) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}
	if job.Payload.RequestID == "" {
		return errors.New("stats job request id is required")
	}
	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode job payload: %w", err)
	}
	results, err := json.Marshal(job.Results)
	if err != nil {
		return fmt.Errorf("failed to encode job results: %w", err)
	}

	query := `
		INSERT INTO stats_jobs (tenant_id, job_type, request_id, payload, status, retry_count, max_retries, results)
		VALUES ($1, $2, $3, $4, 'queued', $5, $6, $7)
		ON CONFLICT (tenant_id, request_id) DO NOTHING
		RETURNING id, created_at`

	err = r.db.QueryRowContext(ctx, query,
		tenantID,
		job.JobType,
		job.Payload.RequestID,
		payload,
		job.RetryCount,
		job.MaxRetries,
		results,
	).Scan(&job.ID, &job.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrDuplicateStatsJob
		}
		return fmt.Errorf("failed to enqueue stats job: %w", err)
	}
	job.TenantID = tenantID
	job.Status = models.JobStatusQueued
	return nil
}

func (r *postgresStatsJobRepository) GetByID(ctx context.Context, tenantID models.TenantID, id int) (*models.StatsJob, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	query := `SELECT ` + statsJobColumns + ` FROM stats_jobs WHERE id = $1 AND tenant_id = $2`
	job, err := scanStatsJob(r.db.QueryRowContext(ctx, query, id, tenantID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStatsJobNotFound
		}
		return nil, fmt.Errorf("failed to get stats job %d: %w", id, err)
	}
	return job, nil
}

func (r *postgresStatsJobRepository) ListRecent(ctx context.Context, tenantID models.TenantID, limit int) ([]models.StatsJob, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + statsJobColumns + ` FROM stats_jobs WHERE tenant_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stats jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]models.StatsJob, 0)
	for rows.Next() {
		job, err := scanStatsJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stats job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func (r *postgresStatsJobRepository) TenantsWithQueued(ctx context.Context) ([]models.TenantID, error) {
	query := `
		SELECT tenant_id
		FROM stats_jobs
		WHERE status = 'queued'
		GROUP BY tenant_id
		ORDER BY MIN(created_at)`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants with queued jobs: %w", err)
	}
	defer rows.Close()

	tenants := make([]models.TenantID, 0)
	for rows.Next() {
		var t models.TenantID
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

func (r *postgresStatsJobRepository) ClaimNext(ctx context.Context, tenantID models.TenantID) (*models.StatsJob, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	query := `
		UPDATE stats_jobs SET status = 'processing', started_at = NOW(), completed_at = NULL
		WHERE id = (
			SELECT id FROM stats_jobs
			WHERE tenant_id = $1 AND status = 'queued'
			ORDER BY created_at, id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + statsJobColumns

	job, err := scanStatsJob(r.db.QueryRowContext(ctx, query, tenantID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim stats job for tenant %d: %w", tenantID, err)
	}
	return job, nil
}

func (r *postgresStatsJobRepository) Complete(ctx context.Context, tenantID models.TenantID, id int, results models.JobResults) error {
	return r.finish(ctx, tenantID, id, `status = 'completed', completed_at = NOW(), error_message = NULL`, results, nil)
}

func (r *postgresStatsJobRepository) Fail(ctx context.Context, tenantID models.TenantID, id int, results models.JobResults, message string) error {
	return r.finish(ctx, tenantID, id, `status = 'failed', completed_at = NOW(), error_message = $4`, results, &message)
}

func (r *postgresStatsJobRepository) Requeue(ctx context.Context, tenantID models.TenantID, id int, results models.JobResults, message string) error {
	return r.finish(ctx, tenantID, id,
		`status = 'queued', retry_count = retry_count + 1, started_at = NULL, error_message = $4`, results, &message)
}

func (r *postgresStatsJobRepository) RecoverStale(ctx context.Context, startedBefore time.Time, message string) ([]models.StatsJob, error) {
	// в SET выражения видят старое значение retry_count
	query := `
		UPDATE stats_jobs SET
			status = CASE WHEN retry_count < max_retries THEN 'queued' ELSE 'failed' END,
			retry_count = CASE WHEN retry_count < max_retries THEN retry_count + 1 ELSE retry_count END,
			started_at = CASE WHEN retry_count < max_retries THEN NULL ELSE started_at END,
			completed_at = CASE WHEN retry_count < max_retries THEN NULL ELSE NOW() END,
			error_message = $2
		WHERE status = 'processing' AND started_at < $1
		RETURNING ` + statsJobColumns

	rows, err := r.db.QueryContext(ctx, query, startedBefore, message)
	if err != nil {
		return nil, fmt.Errorf("failed to recover stale stats jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.StatsJob
	for rows.Next() {
		job, err := scanStatsJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recovered stats job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate recovered stats jobs: %w", err)
	}
	return jobs, nil
}

// finish writes the outcome of an attempt. Only a processing job can be finished.
func (r *postgresStatsJobRepository) finish(ctx context.Context, tenantID models.TenantID, id int, set string, results models.JobResults, message *string) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}
	encoded, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("failed to encode job results: %w", err)
	}
	args := []interface{}{id, tenantID, encoded}
	if message != nil {
		args = append(args, *message)
	}
	query := `UPDATE stats_jobs SET ` + set + `, results = $3 WHERE id = $1 AND tenant_id = $2 AND status = 'processing'`

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update stats job %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrStatsJobNotFound)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanStatsJob(row rowScanner) (*models.StatsJob, error) {
	var (
		job     models.StatsJob
		payload []byte
		results []byte
	)
	err := row.Scan(
		&job.ID,
		&job.TenantID,
		&job.JobType,
		&payload,
		&job.Status,
		&job.RetryCount,
		&job.MaxRetries,
		&job.StartedAt,
		&job.CompletedAt,
		&job.ErrorMessage,
		&results,
		&job.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &job.Payload); err != nil {
			return nil, fmt.Errorf("failed to decode job payload: %w", err)
		}
	}
	if len(results) > 0 {
		if err := json.Unmarshal(results, &job.Results); err != nil {
			return nil, fmt.Errorf("failed to decode job results: %w", err)
		}
	}
	return &job, nil
}
