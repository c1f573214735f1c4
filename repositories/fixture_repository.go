package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Dosada05/matchday/models"
)

var (
	ErrFixtureNotFound        = errors.New("fixture not found")
	ErrFixtureVersionConflict = errors.New("fixture was modified concurrently")
)

const fixtureColumns = `id, tenant_id, match_date, team_size, state, state_version, is_balanced,
		actual_size_a, actual_size_b, balance_type, created_at, updated_at`

type FixtureRepository interface {
	GetByID(ctx context.Context, exec SQLExecutor, tenantID models.TenantID, id int) (*models.Fixture, error)
	// UpdateVersioned is the only write path for fixture state. It applies patch if and
	// only if the row still has expectedVersion and expectedState, and bumps state_version by one.
	UpdateVersioned(ctx context.Context, exec SQLExecutor, tenantID models.TenantID, id int,
		expectedVersion int, expectedState models.FixtureState, patch models.FixturePatch) (*models.Fixture, error)
}

type postgresFixtureRepository struct {
	db *sql.DB
}

func NewPostgresFixtureRepository(db *sql.DB) FixtureRepository {
	return &postgresFixtureRepository{db: db}
}

func (r *postgresFixtureRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresFixtureRepository) GetByID(ctx context.Context, exec SQLExecutor, tenantID models.TenantID, id int) (*models.Fixture, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	query := `SELECT ` + fixtureColumns + ` FROM upcoming_matches WHERE id = $1 AND tenant_id = $2`

	fixture, err := scanFixture(r.getExecutor(exec).QueryRowContext(ctx, query, id, tenantID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrFixtureNotFound
		}
		return nil, fmt.Errorf("failed to get fixture %d: %w", id, err)
	}
	return fixture, nil
}

func (r *postgresFixtureRepository) UpdateVersioned(ctx context.Context, exec SQLExecutor, tenantID models.TenantID, id int,
	expectedVersion int, expectedState models.FixtureState, patch models.FixturePatch) (*models.Fixture, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	if !patch.NextState.Valid() {
		return nil, fmt.Errorf("invalid target state %q", patch.NextState)
	}

	args := []interface{}{id, tenantID, expectedVersion, expectedState, patch.NextState}
	set := []string{"state = $5", "state_version = state_version + 1", "updated_at = NOW()"}
	add := func(column string, value interface{}) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.IsBalanced != nil {
		add("is_balanced", *patch.IsBalanced)
	}
	if patch.ClearBalanceType {
		set = append(set, "balance_type = NULL")
	} else if patch.BalanceType != nil {
		add("balance_type", *patch.BalanceType)
	}
	if patch.ClearSizes {
		set = append(set, "actual_size_a = NULL", "actual_size_b = NULL")
	} else {
		if patch.ActualSizeA != nil {
			add("actual_size_a", *patch.ActualSizeA)
		}
		if patch.ActualSizeB != nil {
			add("actual_size_b", *patch.ActualSizeB)
		}
	}

	query := fmt.Sprintf(`
		UPDATE upcoming_matches SET %s
		WHERE id = $1 AND tenant_id = $2 AND state_version = $3 AND state = $4
		RETURNING %s`, strings.Join(set, ", "), fixtureColumns)

	fixture, err := scanFixture(r.getExecutor(exec).QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrFixtureVersionConflict
		}
		return nil, fmt.Errorf("failed to update fixture %d: %w", id, err)
	}
	return fixture, nil
}

func scanFixture(row *sql.Row) (*models.Fixture, error) {
	f := &models.Fixture{}
	err := row.Scan(
		&f.ID,
		&f.TenantID,
		&f.MatchDate,
		&f.TeamSize,
		&f.State,
		&f.StateVersion,
		&f.IsBalanced,
		&f.ActualSizeA,
		&f.ActualSizeB,
		&f.BalanceType,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return f, nil
}
