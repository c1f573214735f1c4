package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Dosada05/matchday/cache"
	"github.com/Dosada05/matchday/models"
	"github.com/Dosada05/matchday/repositories"
)

// Step is one unit of the stats pipeline. Each step runs in its own transaction and
// its failure never stops the steps after it.
type Step interface {
	Name() string
	// Tags are invalidated when the step succeeds.
	Tags() []string
	Run(ctx context.Context, exec repositories.SQLExecutor, job *models.StatsJob) error
}

// ReportArchiver stores a copy of a computed match report.
type ReportArchiver interface {
	Archive(ctx context.Context, tenantID models.TenantID, fixtureID int, report json.RawMessage) (string, error)
}

type aggregationStep struct {
	name     string
	function string
	tags     []string
	stats    repositories.StatsRepository
}

func (s *aggregationStep) Name() string   { return s.name }
func (s *aggregationStep) Tags() []string { return s.tags }

func (s *aggregationStep) Run(ctx context.Context, exec repositories.SQLExecutor, job *models.StatsJob) error {
	return s.stats.RunAggregation(ctx, exec, job.TenantID, s.function)
}

// matchReportStep refreshes the report cache and, for post-match jobs, archives the
// report of the fixture that triggered the job.
type matchReportStep struct {
	aggregationStep
	archive ReportArchiver
}

func (s *matchReportStep) Run(ctx context.Context, exec repositories.SQLExecutor, job *models.StatsJob) error {
	if err := s.aggregationStep.Run(ctx, exec, job); err != nil {
		return err
	}
	if s.archive == nil || job.Payload.MatchID == nil {
		return nil
	}
	fixtureID := *job.Payload.MatchID
	report, err := s.stats.GetMatchReport(ctx, exec, job.TenantID, fixtureID)
	if err != nil {
		// после отмены завершения отчёта уже нет
		if errors.Is(err, repositories.ErrReportNotFound) {
			return nil
		}
		return err
	}
	if _, err := s.archive.Archive(ctx, job.TenantID, fixtureID, report); err != nil {
		return fmt.Errorf("failed to archive report for fixture %d: %w", fixtureID, err)
	}
	return nil
}

// DefaultPipeline returns the stats steps in the order they must run. archive may be nil.
func DefaultPipeline(stats repositories.StatsRepository, archive ReportArchiver) []Step {
	return []Step{
		&aggregationStep{
			name: "all_time_stats", function: repositories.AggAllTimeStats, stats: stats,
			tags: []string{cache.TagAllTimeStats, cache.TagPlayerProfiles},
		},
		&aggregationStep{
			name: "season_stats", function: repositories.AggSeasonStats, stats: stats,
			tags: []string{cache.TagSeasonStats, cache.TagHalfSeasonStats},
		},
		&aggregationStep{
			name: "recent_performance", function: repositories.AggRecentPerformance, stats: stats,
			tags: []string{cache.TagRecentPerformance},
		},
		&aggregationStep{
			name: "season_honours", function: repositories.AggSeasonHonours, stats: stats,
			tags: []string{cache.TagSeasonHonours, cache.TagHallOfFame},
		},
		&matchReportStep{
			aggregationStep: aggregationStep{
				name: "match_report_cache", function: repositories.AggMatchReportCache, stats: stats,
				tags: []string{cache.TagMatchReport},
			},
			archive: archive,
		},
		&aggregationStep{
			name: "power_ratings", function: repositories.AggPowerRatings, stats: stats,
			tags: []string{cache.TagPowerRatings, cache.TagPlayerProfiles},
		},
	}
}
