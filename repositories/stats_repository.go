package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Dosada05/matchday/models"
)

var (
	ErrUnknownAggregation = errors.New("unknown aggregation function")
	ErrReportNotFound     = errors.New("match report not found")
)

// Aggregation functions installed in the database. Names are interpolated into SQL,
// so only these are accepted.
const (
	AggAllTimeStats      = "update_aggregated_all_time_stats"
	AggSeasonStats       = "update_aggregated_season_stats"
	AggRecentPerformance = "update_aggregated_recent_performance"
	AggSeasonHonours     = "update_aggregated_season_honours"
	AggMatchReportCache  = "update_aggregated_match_report_cache"
	AggPowerRatings      = "update_power_ratings"
)

var knownAggregations = map[string]bool{
	AggAllTimeStats:      true,
	AggSeasonStats:       true,
	AggRecentPerformance: true,
	AggSeasonHonours:     true,
	AggMatchReportCache:  true,
	AggPowerRatings:      true,
}

type StatsRepository interface {
	RunAggregation(ctx context.Context, exec SQLExecutor, tenantID models.TenantID, function string) error
	// GetMatchReport returns the cached report of the match played for a fixture.
	GetMatchReport(ctx context.Context, exec SQLExecutor, tenantID models.TenantID, fixtureID int) (json.RawMessage, error)
}

type postgresStatsRepository struct {
	db *sql.DB
}

func NewPostgresStatsRepository(db *sql.DB) StatsRepository {
	return &postgresStatsRepository{db: db}
}

func (r *postgresStatsRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresStatsRepository) RunAggregation(ctx context.Context, exec SQLExecutor, tenantID models.TenantID, function string) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}
	if !knownAggregations[function] {
		return fmt.Errorf("%w: %s", ErrUnknownAggregation, function)
	}
	if _, err := r.getExecutor(exec).ExecContext(ctx, `SELECT `+function+`($1)`, tenantID); err != nil {
		return fmt.Errorf("%s failed: %w", function, err)
	}
	return nil
}

func (r *postgresStatsRepository) GetMatchReport(ctx context.Context, exec SQLExecutor, tenantID models.TenantID, fixtureID int) (json.RawMessage, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	var report []byte
	err := r.getExecutor(exec).QueryRowContext(ctx,
		`SELECT c.report
		 FROM match_report_cache c
		 JOIN matches m ON m.id = c.match_id
		 WHERE m.tenant_id = $1 AND m.upcoming_match_id = $2`,
		tenantID, fixtureID,
	).Scan(&report)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReportNotFound
		}
		return nil, fmt.Errorf("failed to read match report for fixture %d: %w", fixtureID, err)
	}
	return json.RawMessage(report), nil
}
