package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/matchday/models"
)

var ErrTenantNotFound = errors.New("tenant not found")

type TenantRepository interface {
	GetByID(ctx context.Context, tenantID models.TenantID) (*models.Tenant, error)
	ListActive(ctx context.Context) ([]models.Tenant, error)
}

type postgresTenantRepository struct {
	db *sql.DB
}

func NewPostgresTenantRepository(db *sql.DB) TenantRepository {
	return &postgresTenantRepository{db: db}
}

func (r *postgresTenantRepository) GetByID(ctx context.Context, tenantID models.TenantID) (*models.Tenant, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	t := &models.Tenant{}
	err := r.db.QueryRowContext(ctx, `SELECT id, name, is_active FROM tenants WHERE id = $1`, tenantID).
		Scan(&t.ID, &t.Name, &t.IsActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("failed to get tenant %d: %w", tenantID, err)
	}
	return t, nil
}

func (r *postgresTenantRepository) ListActive(ctx context.Context) ([]models.Tenant, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, is_active FROM tenants WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active tenants: %w", err)
	}
	defer rows.Close()

	tenants := make([]models.Tenant, 0)
	for rows.Next() {
		var t models.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}
