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
	ErrPoolEntryNotFound     = errors.New("player is not in the fixture pool")
	ErrPlayerAlreadyInPool   = errors.New("player is already in the fixture pool")
	ErrPlayerNotInTenant     = errors.New("player or fixture does not belong to tenant")
	ErrSlotTaken             = errors.New("slot is already taken in this team")
	ErrAssignmentsIncomplete = errors.New("assignments do not match the fixture pool")
)

type PoolRepository interface {
	Attach(ctx context.Context, exec SQLExecutor, tenantID models.TenantID, fixtureID, playerID int) (*models.PoolEntry, error)
	Detach(ctx context.Context, exec SQLExecutor, tenantID models.TenantID, fixtureID, playerID int) error
	List(ctx context.Context, exec SQLExecutor, tenantID models.TenantID, fixtureID int) ([]models.PoolEntry, error)
	Counts(ctx context.Context, exec SQLExecutor, tenantID models.TenantID, fixtureID int) (models.PoolCounts, error)
	// ClearAssignments moves every entry back to Unassigned with no slot.
	ClearAssignments(ctx context.Context, exec SQLExecutor, tenantID models.TenantID, fixtureID int) error
	// ApplyAssignments replaces the whole layout. Every pool entry must be covered.
	ApplyAssignments(ctx context.Context, exec SQLExecutor, tenantID models.TenantID, fixtureID int, assignments []models.Assignment) error
	SetSlot(ctx context.Context, exec SQLExecutor, tenantID models.TenantID, fixtureID, playerID int, team models.Team, slot *int) error
}

type postgresPoolRepository struct {
	db *sql.DB
}

func NewPostgresPoolRepository(db *sql.DB) PoolRepository {
	return &postgresPoolRepository{db: db}
}

func (r *postgresPoolRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

// tenantFixture restricts a statement to pool rows of a fixture owned by the tenant.
const tenantFixture = `upcoming_match_id = (SELECT id FROM upcoming_matches WHERE id = $1 AND tenant_id = $2)`

func (r *postgresPoolRepository) Attach(ctx context.Context, exec SQLExecutor, tenantID models.TenantID, fixtureID, playerID int) (*models.PoolEntry, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	query := `
		INSERT INTO upcoming_match_players (upcoming_match_id, player_id, team)
		SELECT m.id, p.id, $4
		FROM upcoming_matches m
		JOIN players p ON p.tenant_id = m.tenant_id
		WHERE m.id = $1 AND m.tenant_id = $2 AND p.id = $3
		RETURNING created_at`

	entry := &models.PoolEntry{FixtureID: fixtureID, PlayerID: playerID, Team: models.TeamUnassigned}
	err := r.getExecutor(exec).QueryRowContext(ctx, query, fixtureID, tenantID, playerID, models.TeamUnassigned).Scan(&entry.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlayerNotInTenant
		}
		return nil, r.handlePoolError(err)
	}
	return entry, nil
}

func (r *postgresPoolRepository) Detach(ctx context.Context, exec SQLExecutor, tenantID models.TenantID, fixtureID, playerID int) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}
	query := `DELETE FROM upcoming_match_players WHERE ` + tenantFixture + ` AND player_id = $3`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, fixtureID, tenantID, playerID)
	if err != nil {
		return fmt.Errorf("failed to detach player %d from fixture %d: %w", playerID, fixtureID, err)
	}
	return checkAffectedRows(result, ErrPoolEntryNotFound)
}

func (r *postgresPoolRepository) List(ctx context.Context, exec SQLExecutor, tenantID models.TenantID, fixtureID int) ([]models.PoolEntry, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	query := `
		SELECT upcoming_match_id, player_id, team, slot_number, created_at
		FROM upcoming_match_players
		WHERE ` + tenantFixture + `
		ORDER BY team, slot_number NULLS LAST, player_id`

	rows, err := r.getExecutor(exec).QueryContext(ctx, query, fixtureID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pool for fixture %d: %w", fixtureID, err)
	}
	defer rows.Close()

	entries := make([]models.PoolEntry, 0)
	for rows.Next() {
		var e models.PoolEntry
		if err := rows.Scan(&e.FixtureID, &e.PlayerID, &e.Team, &e.SlotNumber, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pool entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *postgresPoolRepository) Counts(ctx context.Context, exec SQLExecutor, tenantID models.TenantID, fixtureID int) (models.PoolCounts, error) {
	var c models.PoolCounts
	if err := requireTenant(tenantID); err != nil {
		return c, err
	}
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE team = 'A'),
		       COUNT(*) FILTER (WHERE team = 'B'),
		       COUNT(*) FILTER (WHERE team = 'Unassigned')
		FROM upcoming_match_players
		WHERE ` + tenantFixture

	err := r.getExecutor(exec).QueryRowContext(ctx, query, fixtureID, tenantID).Scan(&c.Total, &c.TeamA, &c.TeamB, &c.Unassigned)
	if err != nil {
		return c, fmt.Errorf("failed to count pool for fixture %d: %w", fixtureID, err)
	}
	return c, nil
}

func (r *postgresPoolRepository) ClearAssignments(ctx context.Context, exec SQLExecutor, tenantID models.TenantID, fixtureID int) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}
	query := `UPDATE upcoming_match_players SET team = 'Unassigned', slot_number = NULL WHERE ` + tenantFixture
	if _, err := r.getExecutor(exec).ExecContext(ctx, query, fixtureID, tenantID); err != nil {
		return fmt.Errorf("failed to clear assignments for fixture %d: %w", fixtureID, err)
	}
	return nil
}

// ApplyAssignments must run inside a transaction: the pool is cleared first so the
// per-team slot uniqueness index never sees two rows sharing a slot mid-update.
func (r *postgresPoolRepository) ApplyAssignments(ctx context.Context, exec SQLExecutor, tenantID models.TenantID, fixtureID int, assignments []models.Assignment) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}
	executor := r.getExecutor(exec)

	if err := r.ClearAssignments(ctx, executor, tenantID, fixtureID); err != nil {
		return err
	}

	playerIDs := make([]int64, len(assignments))
	teams := make([]string, len(assignments))
	slots := make([]int64, len(assignments))
	for i, a := range assignments {
		playerIDs[i] = int64(a.PlayerID)
		teams[i] = string(a.Team)
		slots[i] = int64(a.SlotNumber)
	}

	query := `
		UPDATE upcoming_match_players ump
		SET team = a.team, slot_number = a.slot
		FROM unnest($3::int[], $4::text[], $5::int[]) AS a(player_id, team, slot)
		WHERE ump.` + tenantFixture + ` AND ump.player_id = a.player_id`

	result, err := executor.ExecContext(ctx, query, fixtureID, tenantID,
		pq.Array(playerIDs), pq.Array(teams), pq.Array(slots))
	if err != nil {
		return r.handlePoolError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}

	counts, err := r.Counts(ctx, executor, tenantID, fixtureID)
	if err != nil {
		return err
	}
	if int(affected) != len(assignments) || counts.Total != len(assignments) {
		return fmt.Errorf("%w: %d assignments, %d updated, %d in pool",
			ErrAssignmentsIncomplete, len(assignments), affected, counts.Total)
	}
	return nil
}

func (r *postgresPoolRepository) SetSlot(ctx context.Context, exec SQLExecutor, tenantID models.TenantID, fixtureID, playerID int, team models.Team, slot *int) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}
	query := `UPDATE upcoming_match_players SET team = $4, slot_number = $5 WHERE ` + tenantFixture + ` AND player_id = $3`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, fixtureID, tenantID, playerID, team, slot)
	if err != nil {
		return r.handlePoolError(err)
	}
	return checkAffectedRows(result, ErrPoolEntryNotFound)
}

func (r *postgresPoolRepository) handlePoolError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Constraint {
		case "upcoming_match_players_pkey":
			return ErrPlayerAlreadyInPool
		case "upcoming_match_players_team_slot_key":
			return ErrSlotTaken
		case "upcoming_match_players_player_id_fkey", "upcoming_match_players_upcoming_match_id_fkey":
			return ErrPlayerNotInTenant
		}
	}
	return err
}
