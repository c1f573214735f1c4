package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Dosada05/matchday/models"
	"github.com/Dosada05/matchday/repositories"
)

type PoolView struct {
	Fixture *models.Fixture    `json:"fixture"`
	Entries []models.PoolEntry `json:"entries"`
	Counts  models.PoolCounts  `json:"counts"`
}

type SlotInput struct {
	Team         models.Team `json:"team"`
	SlotNumber   *int        `json:"slot_number"`
	StateVersion int         `json:"state_version"`
}

// PoolService is the only writer of pool entries. Every public mutation bumps the
// fixture's state_version through the versioned update; the exec-taking methods are
// building blocks for callers already inside such a transaction.
type PoolService interface {
	GetPool(ctx context.Context, tenantID models.TenantID, fixtureID int) (*PoolView, error)
	Attach(ctx context.Context, tenantID models.TenantID, fixtureID, playerID, version int) (*models.Fixture, error)
	Detach(ctx context.Context, tenantID models.TenantID, fixtureID, playerID, version int) (*models.Fixture, error)
	ClearAssignments(ctx context.Context, tenantID models.TenantID, fixtureID, version int) (*models.Fixture, error)
	AssignSlot(ctx context.Context, tenantID models.TenantID, fixtureID, playerID int, input SlotInput) (*models.Fixture, error)

	Counts(ctx context.Context, exec repositories.SQLExecutor, tenantID models.TenantID, fixtureID int) (models.PoolCounts, error)
	Entries(ctx context.Context, exec repositories.SQLExecutor, tenantID models.TenantID, fixtureID int) ([]models.PoolEntry, error)
	ResetAssignments(ctx context.Context, exec repositories.SQLExecutor, tenantID models.TenantID, fixtureID int) error
	ApplyAssignments(ctx context.Context, exec repositories.SQLExecutor, tenantID models.TenantID, fixtureID int, assignments []models.Assignment) error
	CheckTeamsComplete(ctx context.Context, exec repositories.SQLExecutor, fixture *models.Fixture) error
}

type poolService struct {
	fixtureRepo repositories.FixtureRepository
	poolRepo    repositories.PoolRepository
	tx          repositories.Transactor
	notifier    FixtureNotifier
	logger      *slog.Logger
}

func NewPoolService(
	fixtureRepo repositories.FixtureRepository,
	poolRepo repositories.PoolRepository,
	tx repositories.Transactor,
	notifier FixtureNotifier,
	logger *slog.Logger,
) PoolService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &poolService{
		fixtureRepo: fixtureRepo,
		poolRepo:    poolRepo,
		tx:          tx,
		notifier:    notifier,
		logger:      logger,
	}
}

func (s *poolService) GetPool(ctx context.Context, tenantID models.TenantID, fixtureID int) (*PoolView, error) {
	if !tenantID.Valid() {
		return nil, ErrTenantRequired
	}
	fixture, err := s.fixtureRepo.GetByID(ctx, nil, tenantID, fixtureID)
	if err != nil {
		if errors.Is(err, repositories.ErrFixtureNotFound) {
			return nil, ErrFixtureNotFound
		}
		return nil, err
	}
	entries, err := s.poolRepo.List(ctx, nil, tenantID, fixtureID)
	if err != nil {
		return nil, err
	}
	return &PoolView{Fixture: fixture, Entries: entries, Counts: countEntries(entries)}, nil
}

func (s *poolService) Attach(ctx context.Context, tenantID models.TenantID, fixtureID, playerID, version int) (*models.Fixture, error) {
	return s.mutateDraftPool(ctx, tenantID, fixtureID, version, func(exec repositories.SQLExecutor) error {
		_, err := s.poolRepo.Attach(ctx, exec, tenantID, fixtureID, playerID)
		return err
	})
}

func (s *poolService) Detach(ctx context.Context, tenantID models.TenantID, fixtureID, playerID, version int) (*models.Fixture, error) {
	return s.mutateDraftPool(ctx, tenantID, fixtureID, version, func(exec repositories.SQLExecutor) error {
		return s.poolRepo.Detach(ctx, exec, tenantID, fixtureID, playerID)
	})
}

func (s *poolService) mutateDraftPool(ctx context.Context, tenantID models.TenantID, fixtureID, version int,
	mutate func(exec repositories.SQLExecutor) error) (*models.Fixture, error) {
	if _, err := loadForTransition(ctx, s.fixtureRepo, tenantID, fixtureID, version, models.FixtureStateDraft); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			return nil, ErrPoolNotEditable
		}
		return nil, err
	}

	var updated *models.Fixture
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		var err error
		updated, err = applyVersioned(ctx, s.fixtureRepo, exec, tenantID, fixtureID, version,
			models.FixtureStateDraft, models.FixturePatch{NextState: models.FixtureStateDraft})
		if err != nil {
			return err
		}
		return mapPoolError(mutate(exec))
	})
	if err != nil {
		return nil, err
	}
	s.notifier.FixtureUpdated(ctx, updated)
	return updated, nil
}

func (s *poolService) ClearAssignments(ctx context.Context, tenantID models.TenantID, fixtureID, version int) (*models.Fixture, error) {
	if _, err := loadForTransition(ctx, s.fixtureRepo, tenantID, fixtureID, version, models.FixtureStatePoolLocked); err != nil {
		return nil, err
	}

	var updated *models.Fixture
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		var err error
		updated, err = applyVersioned(ctx, s.fixtureRepo, exec, tenantID, fixtureID, version, models.FixtureStatePoolLocked,
			models.FixturePatch{
				NextState:        models.FixtureStatePoolLocked,
				IsBalanced:       boolPtr(false),
				ClearBalanceType: true,
			})
		if err != nil {
			return err
		}
		return s.ResetAssignments(ctx, exec, tenantID, fixtureID)
	})
	if err != nil {
		return nil, err
	}
	s.notifier.FixtureUpdated(ctx, updated)
	return updated, nil
}

// AssignSlot moves one player by hand. is_balanced and balance_type are left alone:
// the layout is checked again when teams are confirmed.
func (s *poolService) AssignSlot(ctx context.Context, tenantID models.TenantID, fixtureID, playerID int, input SlotInput) (*models.Fixture, error) {
	fixture, err := loadForTransition(ctx, s.fixtureRepo, tenantID, fixtureID, input.StateVersion, models.FixtureStatePoolLocked)
	if err != nil {
		return nil, err
	}
	if err := validateSlot(fixture, input.Team, input.SlotNumber); err != nil {
		return nil, err
	}

	entries, err := s.poolRepo.List(ctx, nil, tenantID, fixtureID)
	if err != nil {
		return nil, err
	}
	found := false
	for _, e := range entries {
		if e.PlayerID == playerID {
			found = true
			continue
		}
		if input.SlotNumber != nil && e.Team == input.Team && e.SlotNumber != nil && *e.SlotNumber == *input.SlotNumber {
			return nil, fmt.Errorf("%w: team %s slot %d is held by player %d", ErrSlotTaken, input.Team, *input.SlotNumber, e.PlayerID)
		}
	}
	if !found {
		return nil, ErrPoolEntryNotFound
	}

	var updated *models.Fixture
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		var err error
		updated, err = applyVersioned(ctx, s.fixtureRepo, exec, tenantID, fixtureID, input.StateVersion,
			models.FixtureStatePoolLocked, models.FixturePatch{NextState: models.FixtureStatePoolLocked})
		if err != nil {
			return err
		}
		return mapPoolError(s.poolRepo.SetSlot(ctx, exec, tenantID, fixtureID, playerID, input.Team, input.SlotNumber))
	})
	if err != nil {
		return nil, err
	}
	s.notifier.FixtureUpdated(ctx, updated)
	return updated, nil
}

func (s *poolService) Counts(ctx context.Context, exec repositories.SQLExecutor, tenantID models.TenantID, fixtureID int) (models.PoolCounts, error) {
	return s.poolRepo.Counts(ctx, exec, tenantID, fixtureID)
}

func (s *poolService) Entries(ctx context.Context, exec repositories.SQLExecutor, tenantID models.TenantID, fixtureID int) ([]models.PoolEntry, error) {
	return s.poolRepo.List(ctx, exec, tenantID, fixtureID)
}

func (s *poolService) ResetAssignments(ctx context.Context, exec repositories.SQLExecutor, tenantID models.TenantID, fixtureID int) error {
	return s.poolRepo.ClearAssignments(ctx, exec, tenantID, fixtureID)
}

func (s *poolService) ApplyAssignments(ctx context.Context, exec repositories.SQLExecutor, tenantID models.TenantID, fixtureID int, assignments []models.Assignment) error {
	return mapPoolError(s.poolRepo.ApplyAssignments(ctx, exec, tenantID, fixtureID, assignments))
}

func (s *poolService) CheckTeamsComplete(ctx context.Context, exec repositories.SQLExecutor, fixture *models.Fixture) error {
	entries, err := s.poolRepo.List(ctx, exec, fixture.TenantID, fixture.ID)
	if err != nil {
		return err
	}
	return validateTeamLayout(entries, fixture.SizeFor(models.TeamA), fixture.SizeFor(models.TeamB))
}

// validateTeamLayout checks that every player is in a team, team sizes match, and
// slots in each team are exactly 1..size.
func validateTeamLayout(entries []models.PoolEntry, sizeA, sizeB int) error {
	if sizeA <= 0 || sizeB <= 0 {
		return fmt.Errorf("%w: team sizes are not resolved", ErrSlotsIncomplete)
	}
	sizes := map[models.Team]int{models.TeamA: sizeA, models.TeamB: sizeB}
	used := map[models.Team]map[int]bool{models.TeamA: {}, models.TeamB: {}}

	for _, e := range entries {
		size, ok := sizes[e.Team]
		if !ok {
			return fmt.Errorf("%w: player %d is unassigned", ErrSlotsIncomplete, e.PlayerID)
		}
		if e.SlotNumber == nil {
			return fmt.Errorf("%w: player %d has no slot", ErrSlotsIncomplete, e.PlayerID)
		}
		slot := *e.SlotNumber
		if slot < 1 || slot > size {
			return fmt.Errorf("%w: player %d has slot %d outside 1..%d", ErrSlotsIncomplete, e.PlayerID, slot, size)
		}
		if used[e.Team][slot] {
			return fmt.Errorf("%w: team %s slot %d is used twice", ErrSlotsIncomplete, e.Team, slot)
		}
		used[e.Team][slot] = true
	}
	for team, size := range sizes {
		if len(used[team]) != size {
			return fmt.Errorf("%w: team %s has %d of %d players", ErrSlotsIncomplete, team, len(used[team]), size)
		}
	}
	return nil
}

func validateSlot(fixture *models.Fixture, team models.Team, slot *int) error {
	switch team {
	case models.TeamUnassigned:
		if slot != nil {
			return fmt.Errorf("%w: unassigned players cannot hold a slot", ErrInvalidSlot)
		}
		return nil
	case models.TeamA, models.TeamB:
		size := fixture.SizeFor(team)
		if slot == nil || *slot < 1 || *slot > size {
			return fmt.Errorf("%w: slot must be within 1..%d for team %s", ErrInvalidSlot, size, team)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown team %q", ErrInvalidSlot, team)
	}
}

func countEntries(entries []models.PoolEntry) models.PoolCounts {
	c := models.PoolCounts{Total: len(entries)}
	for _, e := range entries {
		switch e.Team {
		case models.TeamA:
			c.TeamA++
		case models.TeamB:
			c.TeamB++
		default:
			c.Unassigned++
		}
	}
	return c
}

func mapPoolError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrPlayerAlreadyInPool):
		return ErrPlayerInPool
	case errors.Is(err, repositories.ErrPlayerNotInTenant):
		return ErrPlayerNotFound
	case errors.Is(err, repositories.ErrPoolEntryNotFound):
		return ErrPoolEntryNotFound
	case errors.Is(err, repositories.ErrSlotTaken):
		return ErrSlotTaken
	case errors.Is(err, repositories.ErrAssignmentsIncomplete):
		return fmt.Errorf("%w: %v", ErrPoolMismatch, err)
	}
	return err
}
