package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Dosada05/matchday/models"
	"github.com/Dosada05/matchday/repositories"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type EnqueueRequest struct {
	TriggeredBy models.TriggerSource `json:"triggeredBy"`
	RequestID   string               `json:"requestId"`
	MatchID     *int                 `json:"matchId,omitempty"`
}

type TenantEnqueueResult struct {
	TenantID  models.TenantID `json:"tenant_id"`
	JobID     int             `json:"job_id,omitempty"`
	Duplicate bool            `json:"duplicate,omitempty"`
	Error     string          `json:"error,omitempty"`
}

type FanOutResult struct {
	Enqueued   int                   `json:"enqueued"`
	Duplicates int                   `json:"duplicates"`
	Failed     int                   `json:"failed"`
	Tenants    []TenantEnqueueResult `json:"tenants"`
}

type StatsJobService interface {
	Enqueue(ctx context.Context, tenantID models.TenantID, req EnqueueRequest) (*models.StatsJob, error)
	// EnqueueAllTenants creates one independent job per active tenant. requestID
	// builds the idempotency key for each tenant.
	EnqueueAllTenants(ctx context.Context, trigger models.TriggerSource, requestID func(models.TenantID) string) (*FanOutResult, error)
	Retry(ctx context.Context, tenantID models.TenantID, jobID int) (*models.StatsJob, error)
	GetJob(ctx context.Context, tenantID models.TenantID, jobID int) (*models.StatsJob, error)
	ListJobs(ctx context.Context, tenantID models.TenantID, limit int) ([]models.StatsJob, error)
}

type statsJobService struct {
	jobRepo     repositories.StatsJobRepository
	tenantRepo  repositories.TenantRepository
	maxRetries  int
	fanOutLimit int
	logger      *slog.Logger
}

func NewStatsJobService(
	jobRepo repositories.StatsJobRepository,
	tenantRepo repositories.TenantRepository,
	maxRetries int,
	fanOutLimit int,
	logger *slog.Logger,
) StatsJobService {
	if fanOutLimit <= 0 {
		fanOutLimit = 4
	}
	return &statsJobService{
		jobRepo:     jobRepo,
		tenantRepo:  tenantRepo,
		maxRetries:  maxRetries,
		fanOutLimit: fanOutLimit,
		logger:      logger,
	}
}

func (s *statsJobService) Enqueue(ctx context.Context, tenantID models.TenantID, req EnqueueRequest) (*models.StatsJob, error) {
	if !tenantID.Valid() {
		return nil, ErrTenantRequired
	}
	if !req.TriggeredBy.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTrigger, req.TriggeredBy)
	}
	if req.RequestID == "" {
		if req.TriggeredBy != models.TriggerAdmin {
			return nil, fmt.Errorf("%w: request id is required", ErrValidationFailed)
		}
		req.RequestID = "admin:" + uuid.NewString()
	}

	tenant, err := s.tenantRepo.GetByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, repositories.ErrTenantNotFound) {
			return nil, ErrTenantNotFound
		}
		return nil, err
	}
	if !tenant.IsActive {
		return nil, fmt.Errorf("%w: tenant %d is inactive", ErrTenantNotFound, tenantID)
	}

	job := &models.StatsJob{
		JobType: models.JobTypeStatsUpdate,
		Payload: models.JobPayload{
			TriggeredBy: req.TriggeredBy,
			TenantID:    tenantID,
			RequestID:   req.RequestID,
			MatchID:     req.MatchID,
			Timestamp:   time.Now().UTC(),
		},
		MaxRetries: s.maxRetries,
		Results:    models.JobResults{Steps: []models.StepResult{}},
	}
	if err := s.jobRepo.Enqueue(ctx, tenantID, job); err != nil {
		if errors.Is(err, repositories.ErrDuplicateStatsJob) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateJob, req.RequestID)
		}
		return nil, err
	}
	return job, nil
}

func (s *statsJobService) EnqueueAllTenants(ctx context.Context, trigger models.TriggerSource, requestID func(models.TenantID) string) (*FanOutResult, error) {
	if !trigger.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTrigger, trigger)
	}
	tenants, err := s.tenantRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active tenants: %w", err)
	}

	var (
		mu  sync.Mutex
		out = &FanOutResult{Tenants: make([]TenantEnqueueResult, 0, len(tenants))}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fanOutLimit)

	for _, tenant := range tenants {
		tenantID := tenant.ID
		g.Go(func() error {
			res := TenantEnqueueResult{TenantID: tenantID}
			job, err := s.Enqueue(gctx, tenantID, EnqueueRequest{TriggeredBy: trigger, RequestID: requestID(tenantID)})
			switch {
			case err == nil:
				res.JobID = job.ID
			case errors.Is(err, ErrDuplicateJob):
				res.Duplicate = true
			default:
				// один клуб не должен мешать остальным
				res.Error = err.Error()
				s.logger.ErrorContext(gctx, "Failed to enqueue stats job for tenant",
					slog.Int("tenant_id", int(tenantID)), slog.Any("error", err))
			}

			mu.Lock()
			defer mu.Unlock()
			out.Tenants = append(out.Tenants, res)
			switch {
			case res.Error != "":
				out.Failed++
			case res.Duplicate:
				out.Duplicates++
			default:
				out.Enqueued++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(out.Tenants, func(i, j int) bool { return out.Tenants[i].TenantID < out.Tenants[j].TenantID })
	s.logger.InfoContext(ctx, "Stats fan-out finished",
		slog.String("trigger", string(trigger)),
		slog.Int("tenants", len(tenants)),
		slog.Int("enqueued", out.Enqueued),
		slog.Int("duplicates", out.Duplicates),
		slog.Int("failed", out.Failed))
	return out, nil
}

// Retry re-enqueues a failed job as a new record. The failed record is left as it is.
func (s *statsJobService) Retry(ctx context.Context, tenantID models.TenantID, jobID int) (*models.StatsJob, error) {
	old, err := s.GetJob(ctx, tenantID, jobID)
	if err != nil {
		return nil, err
	}
	if old.Status != models.JobStatusFailed {
		return nil, fmt.Errorf("%w: job %d is %s", ErrJobNotRetryable, jobID, old.Status)
	}
	return s.Enqueue(ctx, tenantID, EnqueueRequest{
		TriggeredBy: old.Payload.TriggeredBy,
		RequestID:   fmt.Sprintf("retry:%d:%d", old.ID, old.RetryCount),
		MatchID:     old.Payload.MatchID,
	})
}

func (s *statsJobService) GetJob(ctx context.Context, tenantID models.TenantID, jobID int) (*models.StatsJob, error) {
	if !tenantID.Valid() {
		return nil, ErrTenantRequired
	}
	job, err := s.jobRepo.GetByID(ctx, tenantID, jobID)
	if err != nil {
		if errors.Is(err, repositories.ErrStatsJobNotFound) {
			return nil, ErrStatsJobNotFound
		}
		return nil, err
	}
	return job, nil
}

func (s *statsJobService) ListJobs(ctx context.Context, tenantID models.TenantID, limit int) ([]models.StatsJob, error) {
	if !tenantID.Valid() {
		return nil, ErrTenantRequired
	}
	return s.jobRepo.ListRecent(ctx, tenantID, limit)
}
