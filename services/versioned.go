package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dosada05/matchday/models"
	"github.com/Dosada05/matchday/repositories"
)

// FixtureNotifier is told about every committed fixture mutation.
type FixtureNotifier interface {
	FixtureUpdated(ctx context.Context, fixture *models.Fixture)
}

type noopNotifier struct{}

func (noopNotifier) FixtureUpdated(context.Context, *models.Fixture) {}

// loadFixture reads a tenant's fixture, mapping a missing row (or another tenant's
// row) to ErrFixtureNotFound.
func loadFixture(ctx context.Context, repo repositories.FixtureRepository, tenantID models.TenantID, id int) (*models.Fixture, error) {
	if !tenantID.Valid() {
		return nil, ErrTenantRequired
	}
	fixture, err := repo.GetByID(ctx, nil, tenantID, id)
	if err != nil {
		if errors.Is(err, repositories.ErrFixtureNotFound) {
			return nil, ErrFixtureNotFound
		}
		return nil, err
	}
	return fixture, nil
}

// checkCurrent verifies the caller's view of the fixture: the version first, then the
// state the operation starts from.
func checkCurrent(fixture *models.Fixture, version int, from models.FixtureState) error {
	if fixture.StateVersion != version {
		return fmt.Errorf("%w (version %d, current %d)", ErrConflict, version, fixture.StateVersion)
	}
	if fixture.State != from {
		return fmt.Errorf("%w: fixture is %s, expected %s", ErrInvalidTransition, fixture.State, from)
	}
	return nil
}

// loadForTransition reads the fixture and checks that the caller's view of it is
// current and that it is in the state the operation starts from.
func loadForTransition(ctx context.Context, repo repositories.FixtureRepository, tenantID models.TenantID,
	id, version int, from models.FixtureState) (*models.Fixture, error) {
	fixture, err := loadFixture(ctx, repo, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := checkCurrent(fixture, version, from); err != nil {
		return nil, err
	}
	return fixture, nil
}

// applyVersioned is the single write path for fixture mutations: one conditional
// update keyed on (id, tenant, version, state). Zero matching rows is a conflict.
func applyVersioned(ctx context.Context, repo repositories.FixtureRepository, exec repositories.SQLExecutor,
	tenantID models.TenantID, id, version int, from models.FixtureState, patch models.FixturePatch) (*models.Fixture, error) {
	fixture, err := repo.UpdateVersioned(ctx, exec, tenantID, id, version, from, patch)
	if err != nil {
		if errors.Is(err, repositories.ErrFixtureVersionConflict) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("versioned update of fixture %d failed: %w", id, err)
	}
	return fixture, nil
}

func boolPtr(b bool) *bool { return &b }
