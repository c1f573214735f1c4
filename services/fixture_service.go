package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Dosada05/matchday/balancing"
	"github.com/Dosada05/matchday/models"
	"github.com/Dosada05/matchday/repositories"
)

type CompleteInput struct {
	StateVersion int `json:"state_version"`
	TeamAScore   int `json:"team_a_score"`
	TeamBScore   int `json:"team_b_score"`
}

// JobEnqueuer queues a stats recompute for a tenant.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, tenantID models.TenantID, req EnqueueRequest) (*models.StatsJob, error)
}

// ReportRemover deletes the archived report of a fixture's match.
type ReportRemover interface {
	Remove(ctx context.Context, tenantID models.TenantID, fixtureID int) error
}

// FixtureService is the fixture lifecycle state machine:
//
//	Draft -> PoolLocked -> TeamsBalanced -> Completed
//	TeamsBalanced -> PoolLocked, PoolLocked -> Draft, Completed -> TeamsBalanced
//
// Every transition takes the state_version the caller last saw. Conflicts are
// returned to the caller and never retried here.
type FixtureService interface {
	GetFixture(ctx context.Context, tenantID models.TenantID, id int) (*models.Fixture, error)
	LockPool(ctx context.Context, tenantID models.TenantID, id, version int, sizes *balancing.Sizes) (*models.Fixture, error)
	ConfirmTeams(ctx context.Context, tenantID models.TenantID, id, version int) (*models.Fixture, error)
	UnlockTeams(ctx context.Context, tenantID models.TenantID, id, version int) (*models.Fixture, error)
	UnlockPool(ctx context.Context, tenantID models.TenantID, id, version int) (*models.Fixture, error)
	Complete(ctx context.Context, tenantID models.TenantID, id int, input CompleteInput) (*models.Fixture, error)
	UndoCompletion(ctx context.Context, tenantID models.TenantID, id, version int) (*models.Fixture, error)
}

type fixtureService struct {
	fixtureRepo repositories.FixtureRepository
	matchRepo   repositories.CompletedMatchRepository
	pool        PoolService
	tx          repositories.Transactor
	bounds      balancing.Bounds
	jobs        JobEnqueuer
	reports     ReportRemover
	notifier    FixtureNotifier
	logger      *slog.Logger
}

func NewFixtureService(
	fixtureRepo repositories.FixtureRepository,
	matchRepo repositories.CompletedMatchRepository,
	pool PoolService,
	tx repositories.Transactor,
	bounds balancing.Bounds,
	jobs JobEnqueuer,
	reports ReportRemover,
	notifier FixtureNotifier,
	logger *slog.Logger,
) FixtureService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &fixtureService{
		fixtureRepo: fixtureRepo,
		matchRepo:   matchRepo,
		pool:        pool,
		tx:          tx,
		bounds:      bounds,
		jobs:        jobs,
		reports:     reports,
		notifier:    notifier,
		logger:      logger,
	}
}

func (s *fixtureService) GetFixture(ctx context.Context, tenantID models.TenantID, id int) (*models.Fixture, error) {
	if !tenantID.Valid() {
		return nil, ErrTenantRequired
	}
	fixture, err := s.fixtureRepo.GetByID(ctx, nil, tenantID, id)
	if errors.Is(err, repositories.ErrFixtureNotFound) {
		return nil, ErrFixtureNotFound
	}
	return fixture, err
}

func (s *fixtureService) LockPool(ctx context.Context, tenantID models.TenantID, id, version int, sizes *balancing.Sizes) (*models.Fixture, error) {
	if _, err := loadForTransition(ctx, s.fixtureRepo, tenantID, id, version, models.FixtureStateDraft); err != nil {
		return nil, err
	}
	counts, err := s.pool.Counts(ctx, nil, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := s.bounds.Validate(counts.Total); err != nil {
		return nil, err
	}
	resolved, err := balancing.ResolveSizes(counts.Total, sizes)
	if err != nil {
		return nil, err
	}

	updated, err := applyVersioned(ctx, s.fixtureRepo, nil, tenantID, id, version, models.FixtureStateDraft,
		models.FixturePatch{
			NextState:        models.FixtureStatePoolLocked,
			IsBalanced:       boolPtr(false),
			ClearBalanceType: true,
			ActualSizeA:      &resolved.A,
			ActualSizeB:      &resolved.B,
		})
	if err != nil {
		return nil, err
	}
	s.committed(ctx, "pool locked", updated)
	return updated, nil
}

func (s *fixtureService) ConfirmTeams(ctx context.Context, tenantID models.TenantID, id, version int) (*models.Fixture, error) {
	fixture, err := loadFixture(ctx, s.fixtureRepo, tenantID, id)
	if err != nil {
		return nil, err
	}
	// несбалансированные команды отклоняются раньше проверки версии и состояния
	if !fixture.IsBalanced {
		return nil, ErrTeamsNotBalanced
	}
	if err := checkCurrent(fixture, version, models.FixtureStatePoolLocked); err != nil {
		return nil, err
	}

	var updated *models.Fixture
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.pool.CheckTeamsComplete(ctx, exec, fixture); err != nil {
			return err
		}
		var err error
		updated, err = applyVersioned(ctx, s.fixtureRepo, exec, tenantID, id, version, models.FixtureStatePoolLocked,
			models.FixturePatch{NextState: models.FixtureStateTeamsBalanced})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.committed(ctx, "teams confirmed", updated)
	return updated, nil
}

func (s *fixtureService) UnlockTeams(ctx context.Context, tenantID models.TenantID, id, version int) (*models.Fixture, error) {
	if _, err := loadForTransition(ctx, s.fixtureRepo, tenantID, id, version, models.FixtureStateTeamsBalanced); err != nil {
		return nil, err
	}
	updated, err := applyVersioned(ctx, s.fixtureRepo, nil, tenantID, id, version, models.FixtureStateTeamsBalanced,
		models.FixturePatch{NextState: models.FixtureStatePoolLocked})
	if err != nil {
		return nil, err
	}
	s.committed(ctx, "teams unlocked", updated)
	return updated, nil
}

func (s *fixtureService) UnlockPool(ctx context.Context, tenantID models.TenantID, id, version int) (*models.Fixture, error) {
	if _, err := loadForTransition(ctx, s.fixtureRepo, tenantID, id, version, models.FixtureStatePoolLocked); err != nil {
		return nil, err
	}

	var updated *models.Fixture
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		var err error
		updated, err = applyVersioned(ctx, s.fixtureRepo, exec, tenantID, id, version, models.FixtureStatePoolLocked,
			models.FixturePatch{
				NextState:        models.FixtureStateDraft,
				IsBalanced:       boolPtr(false),
				ClearBalanceType: true,
				ClearSizes:       true,
			})
		if err != nil {
			return err
		}
		return s.pool.ResetAssignments(ctx, exec, tenantID, id)
	})
	if err != nil {
		return nil, err
	}
	s.committed(ctx, "pool unlocked", updated)
	return updated, nil
}

func (s *fixtureService) Complete(ctx context.Context, tenantID models.TenantID, id int, input CompleteInput) (*models.Fixture, error) {
	if input.TeamAScore < 0 || input.TeamBScore < 0 {
		return nil, ErrInvalidScore
	}
	fixture, err := loadForTransition(ctx, s.fixtureRepo, tenantID, id, input.StateVersion, models.FixtureStateTeamsBalanced)
	if err != nil {
		return nil, err
	}

	var updated *models.Fixture
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		var err error
		updated, err = applyVersioned(ctx, s.fixtureRepo, exec, tenantID, id, input.StateVersion,
			models.FixtureStateTeamsBalanced, models.FixturePatch{NextState: models.FixtureStateCompleted})
		if err != nil {
			return err
		}

		match := &models.CompletedMatch{
			FixtureID:  id,
			MatchDate:  fixture.MatchDate,
			TeamAScore: input.TeamAScore,
			TeamBScore: input.TeamBScore,
		}
		if err := s.matchRepo.Create(ctx, exec, tenantID, match); err != nil {
			if errors.Is(err, repositories.ErrCompletedMatchExists) {
				return ErrConflict
			}
			return err
		}

		entries, err := s.pool.Entries(ctx, exec, tenantID, id)
		if err != nil {
			return err
		}
		results := make([]models.PlayerMatchResult, 0, len(entries))
		for _, e := range entries {
			if e.Team != models.TeamA && e.Team != models.TeamB {
				continue
			}
			results = append(results, models.PlayerMatchResult{
				MatchID:  match.ID,
				PlayerID: e.PlayerID,
				Team:     e.Team,
				Result:   match.ResultFor(e.Team),
			})
		}
		return s.matchRepo.CreatePlayerResults(ctx, exec, tenantID, match.ID, results)
	})
	if err != nil {
		return nil, err
	}
	s.committed(ctx, "match completed", updated)

	// Пересчёт статистики не должен ломать завершение матча.
	s.enqueueStats(ctx, tenantID, models.TriggerPostMatch, fmt.Sprintf("post-match:%d:%d", id, updated.StateVersion), id)
	return updated, nil
}

func (s *fixtureService) UndoCompletion(ctx context.Context, tenantID models.TenantID, id, version int) (*models.Fixture, error) {
	if _, err := loadForTransition(ctx, s.fixtureRepo, tenantID, id, version, models.FixtureStateCompleted); err != nil {
		return nil, err
	}

	var updated *models.Fixture
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if _, err := s.matchRepo.DeleteByFixture(ctx, exec, tenantID, id); err != nil {
			if !errors.Is(err, repositories.ErrCompletedMatchNotFound) {
				return err
			}
			s.logger.WarnContext(ctx, "Completed fixture had no match record",
				slog.Int("tenant_id", int(tenantID)), slog.Int("fixture_id", id))
		}
		var err error
		updated, err = applyVersioned(ctx, s.fixtureRepo, exec, tenantID, id, version, models.FixtureStateCompleted,
			models.FixturePatch{NextState: models.FixtureStateTeamsBalanced})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.committed(ctx, "completion undone", updated)

	if s.reports != nil {
		if err := s.reports.Remove(ctx, tenantID, id); err != nil {
			s.logger.WarnContext(ctx, "Failed to remove archived match report",
				slog.Int("tenant_id", int(tenantID)), slog.Int("fixture_id", id), slog.Any("error", err))
		}
	}
	s.enqueueStats(ctx, tenantID, models.TriggerAdmin, fmt.Sprintf("undo-completion:%d:%d", id, updated.StateVersion), id)
	return updated, nil
}

func (s *fixtureService) committed(ctx context.Context, what string, fixture *models.Fixture) {
	s.logger.InfoContext(ctx, "Fixture "+what,
		slog.Int("tenant_id", int(fixture.TenantID)),
		slog.Int("fixture_id", fixture.ID),
		slog.String("state", string(fixture.State)),
		slog.Int("state_version", fixture.StateVersion))
	s.notifier.FixtureUpdated(ctx, fixture)
}

func (s *fixtureService) enqueueStats(ctx context.Context, tenantID models.TenantID, trigger models.TriggerSource, requestID string, fixtureID int) {
	if s.jobs == nil {
		return
	}
	job, err := s.jobs.Enqueue(ctx, tenantID, EnqueueRequest{TriggeredBy: trigger, RequestID: requestID, MatchID: &fixtureID})
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to enqueue stats job",
			slog.Int("tenant_id", int(tenantID)),
			slog.Int("fixture_id", fixtureID),
			slog.String("request_id", requestID),
			slog.Any("error", err))
		return
	}
	s.logger.InfoContext(ctx, "Stats job enqueued",
		slog.Int("tenant_id", int(tenantID)), slog.Int("job_id", job.ID), slog.String("request_id", requestID))
}
