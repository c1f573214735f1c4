package jobs

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/Dosada05/matchday/cache"
	"github.com/Dosada05/matchday/models"
	"github.com/Dosada05/matchday/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statsRepoStub struct {
	calls  []string
	report json.RawMessage
}

func (r *statsRepoStub) RunAggregation(_ context.Context, _ repositories.SQLExecutor, _ models.TenantID, function string) error {
	r.calls = append(r.calls, function)
	return nil
}

func (r *statsRepoStub) GetMatchReport(context.Context, repositories.SQLExecutor, models.TenantID, int) (json.RawMessage, error) {
	if r.report == nil {
		return nil, repositories.ErrReportNotFound
	}
	return r.report, nil
}

type archiveStub struct {
	archived map[int]json.RawMessage
}

func (a *archiveStub) Archive(_ context.Context, _ models.TenantID, fixtureID int, report json.RawMessage) (string, error) {
	a.archived[fixtureID] = report
	return "https://reports.example.com/report.json", nil
}

func TestDefaultPipeline_OrderAndTags(t *testing.T) {
	stats := &statsRepoStub{}
	steps := DefaultPipeline(stats, nil)

	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = s.Name()
		assert.NoError(t, cache.ValidateTags(s.Tags()), "step %s", s.Name())
		require.NoError(t, s.Run(context.Background(), nil, newJob(1, 1, 0, 3)))
	}
	assert.Equal(t, []string{
		"all_time_stats", "season_stats", "recent_performance",
		"season_honours", "match_report_cache", "power_ratings",
	}, names)
	assert.Equal(t, []string{
		repositories.AggAllTimeStats, repositories.AggSeasonStats, repositories.AggRecentPerformance,
		repositories.AggSeasonHonours, repositories.AggMatchReportCache, repositories.AggPowerRatings,
	}, stats.calls)
}

func TestMatchReportStep_ArchivesFixtureReport(t *testing.T) {
	stats := &statsRepoStub{report: json.RawMessage(`{"score":"3-2"}`)}
	archive := &archiveStub{archived: map[int]json.RawMessage{}}
	step := DefaultPipeline(stats, archive)[4]

	require.NoError(t, step.Run(context.Background(), nil, newJob(1, 1, 0, 3)))
	assert.JSONEq(t, `{"score":"3-2"}`, string(archive.archived[41]))

	cron := newJob(2, 1, 0, 3)
	cron.Payload.MatchID = nil
	require.NoError(t, step.Run(context.Background(), nil, cron))
	assert.Len(t, archive.archived, 1, "jobs without a fixture archive nothing")

	stats.report = nil
	require.NoError(t, step.Run(context.Background(), nil, newJob(3, 1, 0, 3)), "missing report is not an error")
	assert.Len(t, archive.archived, 1)
}
