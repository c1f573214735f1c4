package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Dosada05/matchday/models"
	"github.com/Dosada05/matchday/repositories"
	"github.com/panjf2000/ants/v2"
)

const (
	DefaultWorkers      = 4
	DefaultPollInterval = 5 * time.Second
	DefaultStepTimeout  = 60 * time.Second

	invalidationSource = "stats-job"

	// запас сверх суммы таймаутов шагов на запись результата и инвалидацию
	staleMargin  = 2 * time.Minute
	staleMessage = "processing abandoned: worker did not finish the job"
)

var ErrTenantUnavailable = errors.New("tenant not found or inactive")

// CacheInvalidator publishes invalidation for a tenant's tags.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, tenantID models.TenantID, req models.CacheInvalidationRequest) (*models.CacheInvalidationResponse, error)
}

// ProgressReporter records what a job is doing to the fixture that triggered it.
type ProgressReporter interface {
	Set(ctx context.Context, tenantID models.TenantID, p models.FixtureProgress) error
}

type Config struct {
	Workers      int
	PollInterval time.Duration
	StepTimeout  time.Duration
}

// Processor drains the stats job queue. Each tenant's queue is drained by one worker
// at a time (the Redis lease makes that hold across processes); different tenants
// run in parallel on an ants pool.
type Processor struct {
	jobs        repositories.StatsJobRepository
	tenants     repositories.TenantRepository
	tx          repositories.Transactor
	steps       []Step
	invalidator CacheInvalidator
	progress    ProgressReporter
	lease       TenantLease
	metrics     *Metrics
	cfg         Config
	logger      *slog.Logger

	pool   *ants.Pool
	wg     sync.WaitGroup
	mu     sync.Mutex
	active map[models.TenantID]bool
	now    func() time.Time
}

func NewProcessor(
	jobs repositories.StatsJobRepository,
	tenants repositories.TenantRepository,
	tx repositories.Transactor,
	steps []Step,
	invalidator CacheInvalidator,
	progress ProgressReporter,
	lease TenantLease,
	metrics *Metrics,
	cfg Config,
	logger *slog.Logger,
) (*Processor, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = DefaultStepTimeout
	}
	pool, err := ants.NewPool(cfg.Workers, ants.WithNonblocking(true))
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	return &Processor{
		jobs:        jobs,
		tenants:     tenants,
		tx:          tx,
		steps:       steps,
		invalidator: invalidator,
		progress:    progress,
		lease:       lease,
		metrics:     metrics,
		cfg:         cfg,
		logger:      logger,
		pool:        pool,
		active:      make(map[models.TenantID]bool),
		now:         time.Now,
	}, nil
}

// Run polls for queued work until ctx is cancelled, then waits for in-flight tenants.
func (p *Processor) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()
	p.logger.Info("Stats job processor started",
		slog.Int("workers", p.cfg.Workers),
		slog.Duration("poll_interval", p.cfg.PollInterval),
		slog.Duration("step_timeout", p.cfg.StepTimeout))

	for {
		if err := p.PollOnce(ctx); err != nil && ctx.Err() == nil {
			p.logger.ErrorContext(ctx, "Stats job poll failed", slog.Any("error", err))
		}
		select {
		case <-ctx.Done():
			p.wg.Wait()
			p.pool.Release()
			p.logger.Info("Stats job processor stopped")
			return
		case <-ticker.C:
		}
	}
}

// PollOnce recovers abandoned jobs, then hands every tenant with queued jobs to the
// pool, skipping tenants that are already being drained here.
func (p *Processor) PollOnce(ctx context.Context) error {
	if err := p.recoverStale(ctx); err != nil {
		// зависшие задачи подождут, очередь всё равно разбираем
		p.logger.ErrorContext(ctx, "Failed to recover stale stats jobs", slog.Any("error", err))
	}
	tenants, err := p.jobs.TenantsWithQueued(ctx)
	if err != nil {
		return err
	}
	for _, tenantID := range tenants {
		if !p.markActive(tenantID) {
			continue
		}
		p.wg.Add(1)
		err := p.pool.Submit(func() {
			defer p.wg.Done()
			defer p.markIdle(tenantID)
			p.drainTenant(ctx, tenantID)
		})
		if err != nil {
			// пул занят: клуб подождёт следующего опроса
			p.wg.Done()
			p.markIdle(tenantID)
			if errors.Is(err, ants.ErrPoolOverload) {
				continue
			}
			return fmt.Errorf("failed to submit tenant %d: %w", tenantID, err)
		}
	}
	return nil
}

// StaleAfter is how long a job may stay in processing before it is considered
// abandoned: every step hitting its timeout plus a margin.
func (p *Processor) StaleAfter() time.Duration {
	return time.Duration(len(p.steps))*p.cfg.StepTimeout + staleMargin
}

// recoverStale requeues (or fails, when out of retries) jobs whose worker died
// mid-run and left them in processing.
func (p *Processor) recoverStale(ctx context.Context) error {
	jobs, err := p.jobs.RecoverStale(ctx, p.now().Add(-p.StaleAfter()), staleMessage)
	if err != nil {
		return err
	}
	for _, job := range jobs {
		label := "stale_failed"
		if job.Status == models.JobStatusQueued {
			label = "stale_requeued"
		}
		if p.metrics != nil {
			p.metrics.jobsFinished.WithLabelValues(label).Inc()
		}
		p.logger.WarnContext(ctx, "Recovered stale stats job",
			slog.Int("tenant_id", int(job.TenantID)),
			slog.Int("job_id", job.ID),
			slog.String("status", string(job.Status)),
			slog.Int("retry_count", job.RetryCount),
			slog.Int("max_retries", job.MaxRetries))
	}
	return nil
}

func (p *Processor) markActive(tenantID models.TenantID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active[tenantID] {
		return false
	}
	p.active[tenantID] = true
	if p.metrics != nil {
		p.metrics.activeTenants.Inc()
	}
	return true
}

func (p *Processor) markIdle(tenantID models.TenantID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.active, tenantID)
	if p.metrics != nil {
		p.metrics.activeTenants.Dec()
	}
}

func (p *Processor) drainTenant(ctx context.Context, tenantID models.TenantID) {
	token, ok, err := p.lease.Acquire(ctx, tenantID)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to acquire tenant lease", slog.Int("tenant_id", int(tenantID)), slog.Any("error", err))
		return
	}
	if !ok {
		p.logger.DebugContext(ctx, "Tenant is drained by another worker", slog.Int("tenant_id", int(tenantID)))
		return
	}
	defer func() {
		// освобождаем аренду даже после отмены ctx
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := p.lease.Release(releaseCtx, tenantID, token); err != nil {
			p.logger.ErrorContext(ctx, "Failed to release tenant lease", slog.Int("tenant_id", int(tenantID)), slog.Any("error", err))
		}
	}()

	for ctx.Err() == nil {
		job, err := p.jobs.ClaimNext(ctx, tenantID)
		if err != nil {
			p.logger.ErrorContext(ctx, "Failed to claim stats job", slog.Int("tenant_id", int(tenantID)), slog.Any("error", err))
			return
		}
		if job == nil {
			return
		}
		if _, err := p.ProcessJob(ctx, job); err != nil {
			p.logger.ErrorContext(ctx, "Failed to record stats job outcome",
				slog.Int("tenant_id", int(tenantID)), slog.Int("job_id", job.ID), slog.Any("error", err))
		}
		if held, err := p.lease.Extend(ctx, tenantID, token); err != nil || !held {
			p.logger.WarnContext(ctx, "Tenant lease lost, stopping drain",
				slog.Int("tenant_id", int(tenantID)), slog.Any("error", err))
			return
		}
	}
}

// ProcessJob runs the pipeline for a claimed job and records the outcome. The returned
// status is what the job record was moved to: completed, failed or queued (retry).
func (p *Processor) ProcessJob(ctx context.Context, job *models.StatsJob) (models.JobStatus, error) {
	log := p.logger.With(
		slog.Int("tenant_id", int(job.TenantID)),
		slog.Int("job_id", job.ID),
		slog.String("request_id", job.Payload.RequestID),
		slog.String("triggered_by", string(job.Payload.TriggeredBy)))
	log.InfoContext(ctx, "Stats job started", slog.Int("retry_count", job.RetryCount))

	results := models.JobResults{Steps: make([]models.StepResult, 0, len(p.steps))}

	tenant, err := p.tenants.GetByID(ctx, job.TenantID)
	if err == nil && !tenant.IsActive {
		err = ErrTenantUnavailable
	}
	if err != nil {
		if errors.Is(err, repositories.ErrTenantNotFound) || errors.Is(err, ErrTenantUnavailable) {
			// ошибка конфигурации, повтор не поможет
			return p.finish(ctx, log, job, results, fmt.Errorf("%w: %d", ErrTenantUnavailable, job.TenantID), false)
		}
		return p.finish(ctx, log, job, results, fmt.Errorf("failed to load tenant: %w", err), true)
	}

	var tags []string
	for i, step := range p.steps {
		p.reportProgress(ctx, job, step.Name(), i*100/len(p.steps))
		res := p.runStep(ctx, job, step)
		results.Steps = append(results.Steps, res)
		if res.Status == models.StepSuccess {
			tags = append(tags, step.Tags()...)
		} else {
			log.WarnContext(ctx, "Stats step failed", slog.String("step", res.Step), slog.String("error", res.Error))
		}
	}

	if err := ctx.Err(); err != nil {
		return p.finish(ctx, log, job, results, fmt.Errorf("interrupted: %w", err), true)
	}
	if len(p.steps) > 0 && results.Succeeded() == 0 {
		return p.finish(ctx, log, job, results, errors.New("all pipeline steps failed"), true)
	}

	if len(tags) > 0 && p.invalidator != nil {
		resp, err := p.invalidator.Invalidate(ctx, job.TenantID, models.CacheInvalidationRequest{
			Tags:      tags,
			Source:    invalidationSource,
			RequestID: job.Payload.RequestID,
		})
		if err != nil {
			log.ErrorContext(ctx, "Cache invalidation rejected", slog.Any("error", err))
		}
		results.Cache = resp
		if p.metrics != nil && resp != nil {
			p.metrics.cacheOutcomes.WithLabelValues(string(resp.Outcome)).Inc()
		}
	}
	return p.finish(ctx, log, job, results, nil, false)
}

func (p *Processor) runStep(ctx context.Context, job *models.StatsJob, step Step) models.StepResult {
	stepCtx, cancel := context.WithTimeout(ctx, p.cfg.StepTimeout)
	defer cancel()

	start := p.now()
	err := p.tx.WithinTx(stepCtx, func(exec repositories.SQLExecutor) error {
		return step.Run(stepCtx, exec, job)
	})
	if err == nil && stepCtx.Err() != nil {
		err = stepCtx.Err()
	}
	elapsed := p.now().Sub(start)

	res := models.StepResult{Step: step.Name(), Status: models.StepSuccess, DurationMs: elapsed.Milliseconds()}
	if err != nil {
		res.Status = models.StepFailed
		res.Error = err.Error()
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			res.Error = fmt.Sprintf("step timed out after %s: %v", p.cfg.StepTimeout, err)
		}
	}
	if p.metrics != nil {
		p.metrics.stepDuration.WithLabelValues(res.Step, string(res.Status)).Observe(elapsed.Seconds())
	}
	return res
}

// finish records the attempt. A nil cause completes the job; otherwise the job is
// requeued while it has retries left and retryable is set, or marked failed.
func (p *Processor) finish(ctx context.Context, log *slog.Logger, job *models.StatsJob, results models.JobResults,
	cause error, retryable bool) (models.JobStatus, error) {
	// результат пишем даже если ctx уже отменён
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	var (
		status models.JobStatus
		err    error
	)
	switch {
	case cause == nil:
		status = models.JobStatusCompleted
		err = p.jobs.Complete(writeCtx, job.TenantID, job.ID, results)
		log.InfoContext(ctx, "Stats job completed",
			slog.Int("steps_succeeded", results.Succeeded()),
			slog.Int("steps_failed", results.Failed()))
	case retryable && job.RetryCount < job.MaxRetries:
		status = models.JobStatusQueued
		err = p.jobs.Requeue(writeCtx, job.TenantID, job.ID, results, cause.Error())
		log.WarnContext(ctx, "Stats job requeued",
			slog.Int("retry_count", job.RetryCount+1),
			slog.Int("max_retries", job.MaxRetries),
			slog.Any("error", cause))
	default:
		status = models.JobStatusFailed
		err = p.jobs.Fail(writeCtx, job.TenantID, job.ID, results, cause.Error())
		log.ErrorContext(ctx, "Stats job failed", slog.Any("error", cause))
	}

	if p.metrics != nil {
		label := string(status)
		if status == models.JobStatusQueued {
			label = "requeued"
		}
		p.metrics.jobsFinished.WithLabelValues(label).Inc()
	}
	stage := string(status)
	if status == models.JobStatusQueued {
		stage = "retrying"
	}
	p.reportProgress(writeCtx, job, stage, 100)

	if err != nil {
		return status, fmt.Errorf("failed to mark job %d as %s: %w", job.ID, status, err)
	}
	return status, nil
}

func (p *Processor) reportProgress(ctx context.Context, job *models.StatsJob, stage string, percent int) {
	if p.progress == nil || job.Payload.MatchID == nil {
		return
	}
	err := p.progress.Set(ctx, job.TenantID, models.FixtureProgress{
		FixtureID: *job.Payload.MatchID,
		Stage:     stage,
		Percent:   percent,
		JobID:     job.ID,
	})
	if err != nil {
		p.logger.WarnContext(ctx, "Failed to record fixture progress",
			slog.Int("tenant_id", int(job.TenantID)), slog.Int("job_id", job.ID), slog.Any("error", err))
	}
}
