package repositories

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Dosada05/matchday/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var statsJobCols = []string{"id", "tenant_id", "job_type", "payload", "status", "retry_count", "max_retries",
	"started_at", "completed_at", "error_message", "results", "created_at"}

func TestStatsJobRepository_Enqueue(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresStatsJobRepository(db)
	now := time.Now()

	mock.ExpectQuery("INSERT INTO stats_jobs").
		WithArgs(7, models.JobTypeStatsUpdate, "post-match:10:5", sqlmock.AnyArg(), 0, 3, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(99, now))

	job := &models.StatsJob{
		JobType:    models.JobTypeStatsUpdate,
		MaxRetries: 3,
		Payload:    models.JobPayload{TriggeredBy: models.TriggerPostMatch, TenantID: 7, RequestID: "post-match:10:5"},
	}
	require.NoError(t, repo.Enqueue(context.Background(), 7, job))
	assert.Equal(t, 99, job.ID)
	assert.Equal(t, models.JobStatusQueued, job.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsJobRepository_EnqueueDuplicate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresStatsJobRepository(db)

	mock.ExpectQuery("ON CONFLICT \\(tenant_id, request_id\\) DO NOTHING").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}))

	job := &models.StatsJob{Payload: models.JobPayload{RequestID: "cron:7:1700000000"}}
	err := repo.Enqueue(context.Background(), 7, job)
	assert.ErrorIs(t, err, ErrDuplicateStatsJob)
}

func TestStatsJobRepository_EnqueueRequiresRequestID(t *testing.T) {
	db, _ := newMock(t)
	repo := NewPostgresStatsJobRepository(db)
	assert.Error(t, repo.Enqueue(context.Background(), 7, &models.StatsJob{}))
}

func TestStatsJobRepository_ClaimNext(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresStatsJobRepository(db)
	now := time.Now()
	payload, _ := json.Marshal(models.JobPayload{TriggeredBy: models.TriggerCron, TenantID: 7, RequestID: "cron:7:1"})

	mock.ExpectQuery("FOR UPDATE SKIP LOCKED").
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows(statsJobCols).
			AddRow(5, 7, models.JobTypeStatsUpdate, payload, "processing", 1, 3, now, nil, nil, []byte(`{"steps":[]}`), now))

	job, err := repo.ClaimNext(context.Background(), 7)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, models.JobStatusProcessing, job.Status)
	assert.Equal(t, models.TriggerCron, job.Payload.TriggeredBy)
	assert.Equal(t, 1, job.RetryCount)
	assert.Nil(t, job.CompletedAt)
}

func TestStatsJobRepository_ClaimNextEmpty(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresStatsJobRepository(db)

	mock.ExpectQuery("FOR UPDATE SKIP LOCKED").WillReturnRows(sqlmock.NewRows(statsJobCols))

	job, err := repo.ClaimNext(context.Background(), 7)
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestStatsJobRepository_FinishOnlyProcessing(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresStatsJobRepository(db)

	mock.ExpectExec("status = 'failed'.*AND status = 'processing'").
		WithArgs(5, 7, sqlmock.AnyArg(), "boom").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Fail(context.Background(), 7, 5, models.JobResults{}, "boom")
	assert.ErrorIs(t, err, ErrStatsJobNotFound)

	mock.ExpectExec("retry_count = retry_count \\+ 1").
		WithArgs(5, 7, sqlmock.AnyArg(), "all steps failed").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Requeue(context.Background(), 7, 5, models.JobResults{}, "all steps failed"))

	mock.ExpectExec("status = 'completed'").
		WithArgs(5, 7, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Complete(context.Background(), 7, 5, models.JobResults{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsJobRepository_RecoverStale(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresStatsJobRepository(db)
	now := time.Now()
	cutoff := now.Add(-10 * time.Minute)
	payload, _ := json.Marshal(models.JobPayload{TriggeredBy: models.TriggerPostMatch, TenantID: 7, RequestID: "post-match:3:1"})

	mock.ExpectQuery("WHERE status = 'processing' AND started_at < \\$1").
		WithArgs(cutoff, "worker lost").
		WillReturnRows(sqlmock.NewRows(statsJobCols).
			AddRow(5, 7, models.JobTypeStatsUpdate, payload, "queued", 2, 3, nil, nil, "worker lost", nil, now).
			AddRow(6, 8, models.JobTypeStatsUpdate, payload, "failed", 3, 3, cutoff, now, "worker lost", nil, now))

	jobs, err := repo.RecoverStale(context.Background(), cutoff, "worker lost")
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, models.JobStatusQueued, jobs[0].Status)
	assert.Equal(t, 2, jobs[0].RetryCount)
	assert.Nil(t, jobs[0].StartedAt)
	assert.Equal(t, models.JobStatusFailed, jobs[1].Status)
	assert.Equal(t, models.TenantID(8), jobs[1].TenantID)
	assert.NotNil(t, jobs[1].CompletedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsJobRepository_RecoverStaleNothingStuck(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresStatsJobRepository(db)

	mock.ExpectQuery("UPDATE stats_jobs SET").WillReturnRows(sqlmock.NewRows(statsJobCols))

	jobs, err := repo.RecoverStale(context.Background(), time.Now(), "worker lost")
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestStatsRepository_RunAggregation(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresStatsRepository(db)

	mock.ExpectExec("SELECT update_power_ratings\\(\\$1\\)").
		WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.RunAggregation(context.Background(), nil, 7, AggPowerRatings))

	err := repo.RunAggregation(context.Background(), nil, 7, "drop_everything")
	assert.ErrorIs(t, err, ErrUnknownAggregation)
	assert.NoError(t, mock.ExpectationsWereMet())
}
