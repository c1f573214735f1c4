package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/matchday/models"
	"github.com/lib/pq"
)

var (
	ErrCompletedMatchNotFound = errors.New("completed match not found")
	ErrCompletedMatchExists   = errors.New("fixture already has a completed match")
)

type CompletedMatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, tenantID models.TenantID, match *models.CompletedMatch) error
	CreatePlayerResults(ctx context.Context, exec SQLExecutor, tenantID models.TenantID, matchID int, results []models.PlayerMatchResult) error
	GetByFixture(ctx context.Context, exec SQLExecutor, tenantID models.TenantID, fixtureID int) (*models.CompletedMatch, error)
	// DeleteByFixture removes the match and its player results and returns the deleted match id.
	DeleteByFixture(ctx context.Context, exec SQLExecutor, tenantID models.TenantID, fixtureID int) (int, error)
}

type postgresCompletedMatchRepository struct {
	db *sql.DB
}

func NewPostgresCompletedMatchRepository(db *sql.DB) CompletedMatchRepository {
	return &postgresCompletedMatchRepository{db: db}
}

func (r *postgresCompletedMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresCompletedMatchRepository) Create(ctx context.Context, exec SQLExecutor, tenantID models.TenantID, match *models.CompletedMatch) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}
	query := `
		INSERT INTO matches (tenant_id, upcoming_match_id, match_date, team_a_score, team_b_score)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	match.TenantID = tenantID
	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		tenantID,
		match.FixtureID,
		match.MatchDate,
		match.TeamAScore,
		match.TeamBScore,
	).Scan(&match.ID, &match.CreatedAt)
	return r.handleCompletedMatchError(err)
}

func (r *postgresCompletedMatchRepository) CreatePlayerResults(ctx context.Context, exec SQLExecutor, tenantID models.TenantID, matchID int, results []models.PlayerMatchResult) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}
	if len(results) == 0 {
		return nil
	}
	playerIDs := make([]int64, len(results))
	teams := make([]string, len(results))
	outcomes := make([]string, len(results))
	for i, res := range results {
		playerIDs[i] = int64(res.PlayerID)
		teams[i] = string(res.Team)
		outcomes[i] = string(res.Result)
	}

	query := `
		INSERT INTO player_match_results (match_id, player_id, team, result)
		SELECT m.id, r.player_id, r.team, r.result
		FROM matches m, unnest($3::int[], $4::text[], $5::text[]) AS r(player_id, team, result)
		WHERE m.id = $1 AND m.tenant_id = $2`

	result, err := r.getExecutor(exec).ExecContext(ctx, query, matchID, tenantID,
		pq.Array(playerIDs), pq.Array(teams), pq.Array(outcomes))
	if err != nil {
		return fmt.Errorf("failed to insert player results for match %d: %w", matchID, r.handleCompletedMatchError(err))
	}
	return checkAffectedRows(result, ErrCompletedMatchNotFound)
}

func (r *postgresCompletedMatchRepository) GetByFixture(ctx context.Context, exec SQLExecutor, tenantID models.TenantID, fixtureID int) (*models.CompletedMatch, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	query := `
		SELECT id, tenant_id, upcoming_match_id, match_date, team_a_score, team_b_score, created_at
		FROM matches
		WHERE upcoming_match_id = $1 AND tenant_id = $2`

	m := &models.CompletedMatch{}
	err := r.getExecutor(exec).QueryRowContext(ctx, query, fixtureID, tenantID).Scan(
		&m.ID, &m.TenantID, &m.FixtureID, &m.MatchDate, &m.TeamAScore, &m.TeamBScore, &m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCompletedMatchNotFound
		}
		return nil, fmt.Errorf("failed to get completed match for fixture %d: %w", fixtureID, err)
	}
	return m, nil
}

func (r *postgresCompletedMatchRepository) DeleteByFixture(ctx context.Context, exec SQLExecutor, tenantID models.TenantID, fixtureID int) (int, error) {
	if err := requireTenant(tenantID); err != nil {
		return 0, err
	}
	executor := r.getExecutor(exec)

	resultsQuery := `
		DELETE FROM player_match_results
		WHERE match_id IN (SELECT id FROM matches WHERE upcoming_match_id = $1 AND tenant_id = $2)`
	if _, err := executor.ExecContext(ctx, resultsQuery, fixtureID, tenantID); err != nil {
		return 0, fmt.Errorf("failed to delete player results for fixture %d: %w", fixtureID, err)
	}

	var matchID int
	err := executor.QueryRowContext(ctx,
		`DELETE FROM matches WHERE upcoming_match_id = $1 AND tenant_id = $2 RETURNING id`,
		fixtureID, tenantID,
	).Scan(&matchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrCompletedMatchNotFound
		}
		return 0, fmt.Errorf("failed to delete completed match for fixture %d: %w", fixtureID, err)
	}
	return matchID, nil
}

func (r *postgresCompletedMatchRepository) handleCompletedMatchError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Constraint {
		case "matches_upcoming_match_id_key":
			return ErrCompletedMatchExists
		}
	}
	return err
}
