package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Dosada05/matchday/models"
	"github.com/lib/pq"
)

// PlayerRepository reads the balancer's inputs. Both are owned by other parts of the
// product and are never written here.
type PlayerRepository interface {
	ListAttributes(ctx context.Context, tenantID models.TenantID, playerIDs []int) (map[int]models.PlayerAttributes, error)
	ListBalanceWeights(ctx context.Context, tenantID models.TenantID) ([]models.BalanceWeight, error)
}

type postgresPlayerRepository struct {
	db *sql.DB
}

func NewPostgresPlayerRepository(db *sql.DB) PlayerRepository {
	return &postgresPlayerRepository{db: db}
}

func (r *postgresPlayerRepository) ListAttributes(ctx context.Context, tenantID models.TenantID, playerIDs []int) (map[int]models.PlayerAttributes, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	ids := make([]int64, len(playerIDs))
	for i, id := range playerIDs {
		ids[i] = int64(id)
	}

	query := `
		SELECT pa.player_id, pa.goalscoring, pa.defending, pa.stamina_pace, pa.control, pa.teamwork, pa.resilience
		FROM player_attributes pa
		JOIN players p ON p.id = pa.player_id
		WHERE p.tenant_id = $1 AND pa.player_id = ANY($2)`

	rows, err := r.db.QueryContext(ctx, query, tenantID, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to list player attributes: %w", err)
	}
	defer rows.Close()

	attrs := make(map[int]models.PlayerAttributes, len(playerIDs))
	for rows.Next() {
		var a models.PlayerAttributes
		if err := rows.Scan(&a.PlayerID, &a.Goalscoring, &a.Defending, &a.StaminaPace, &a.Control, &a.Teamwork, &a.Resilience); err != nil {
			return nil, fmt.Errorf("failed to scan player attributes: %w", err)
		}
		attrs[a.PlayerID] = a
	}
	return attrs, rows.Err()
}

func (r *postgresPlayerRepository) ListBalanceWeights(ctx context.Context, tenantID models.TenantID) ([]models.BalanceWeight, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	query := `
		SELECT tenant_id, position_group, attribute, weight
		FROM team_balance_weights
		WHERE tenant_id = $1
		ORDER BY position_group, attribute`

	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list balance weights: %w", err)
	}
	defer rows.Close()

	weights := make([]models.BalanceWeight, 0)
	for rows.Next() {
		var w models.BalanceWeight
		if err := rows.Scan(&w.TenantID, &w.PositionGroup, &w.Attribute, &w.Weight); err != nil {
			return nil, fmt.Errorf("failed to scan balance weight: %w", err)
		}
		weights = append(weights, w)
	}
	return weights, rows.Err()
}
