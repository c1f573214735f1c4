package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/Dosada05/matchday/balancing"
	"github.com/Dosada05/matchday/models"
	"github.com/Dosada05/matchday/repositories"
)

type BalanceInput struct {
	PlayerIDs    []int              `json:"player_ids"`
	Sizes        *balancing.Sizes   `json:"sizes"`
	Strategy     models.BalanceType `json:"strategy"`
	Seed         string             `json:"seed,omitempty"`
	Simplified   bool               `json:"simplified,omitempty"`
	StateVersion int                `json:"state_version"`
}

type BalanceOutcome struct {
	Fixture *models.Fixture   `json:"fixture"`
	Result  *balancing.Result `json:"result"`
}

// BalanceService computes teams for a locked pool and writes them back through
// the versioned update. The fixture stays in PoolLocked; confirm-teams moves it on.
type BalanceService interface {
	Balance(ctx context.Context, tenantID models.TenantID, fixtureID int, input BalanceInput) (*BalanceOutcome, error)
}

type balanceService struct {
	fixtureRepo repositories.FixtureRepository
	playerRepo  repositories.PlayerRepository
	pool        PoolService
	tx          repositories.Transactor
	bounds      balancing.Bounds
	notifier    FixtureNotifier
	logger      *slog.Logger
}

func NewBalanceService(
	fixtureRepo repositories.FixtureRepository,
	playerRepo repositories.PlayerRepository,
	pool PoolService,
	tx repositories.Transactor,
	bounds balancing.Bounds,
	notifier FixtureNotifier,
	logger *slog.Logger,
) BalanceService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &balanceService{
		fixtureRepo: fixtureRepo,
		playerRepo:  playerRepo,
		pool:        pool,
		tx:          tx,
		bounds:      bounds,
		notifier:    notifier,
		logger:      logger,
	}
}

func (s *balanceService) Balance(ctx context.Context, tenantID models.TenantID, fixtureID int, input BalanceInput) (*BalanceOutcome, error) {
	strategy := input.Strategy
	if strategy == "" {
		strategy = models.BalanceTypeRandom
	}
	balancer, err := balancing.New(strategy, s.bounds)
	if err != nil {
		return nil, err
	}

	fixture, err := loadForTransition(ctx, s.fixtureRepo, tenantID, fixtureID, input.StateVersion, models.FixtureStatePoolLocked)
	if err != nil {
		return nil, err
	}

	entries, err := s.pool.Entries(ctx, nil, tenantID, fixtureID)
	if err != nil {
		return nil, err
	}
	playerIDs, err := matchPool(entries, input.PlayerIDs)
	if err != nil {
		return nil, err
	}

	sizes := input.Sizes
	if sizes == nil && fixture.ActualSizeA != nil && fixture.ActualSizeB != nil {
		sizes = &balancing.Sizes{A: *fixture.ActualSizeA, B: *fixture.ActualSizeB}
	}

	params := balancing.BalanceParams{
		PlayerIDs:  playerIDs,
		Sizes:      sizes,
		Seed:       input.Seed,
		Simplified: input.Simplified,
	}
	if strategy == models.BalanceTypeWeighted {
		params.Attributes, err = s.playerRepo.ListAttributes(ctx, tenantID, playerIDs)
		if err != nil {
			return nil, err
		}
		params.Weights, err = s.playerRepo.ListBalanceWeights(ctx, tenantID)
		if err != nil {
			return nil, err
		}
	}

	result, err := balancer.Balance(ctx, params)
	if err != nil {
		return nil, err
	}

	balanceType := result.Type
	var updated *models.Fixture
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		var err error
		updated, err = applyVersioned(ctx, s.fixtureRepo, exec, tenantID, fixtureID, input.StateVersion,
			models.FixtureStatePoolLocked, models.FixturePatch{
				NextState:   models.FixtureStatePoolLocked,
				IsBalanced:  boolPtr(true),
				BalanceType: &balanceType,
				ActualSizeA: &result.Sizes.A,
				ActualSizeB: &result.Sizes.B,
			})
		if err != nil {
			return err
		}
		return s.pool.ApplyAssignments(ctx, exec, tenantID, fixtureID, result.Assignments)
	})
	if err != nil {
		return nil, err
	}

	attrs := []any{
		slog.Int("tenant_id", int(tenantID)),
		slog.Int("fixture_id", fixtureID),
		slog.String("strategy", string(result.Type)),
		slog.Int("state_version", updated.StateVersion),
	}
	if result.Score != nil {
		attrs = append(attrs, slog.Int("balance_percent", result.Score.BalancePercent))
	}
	s.logger.InfoContext(ctx, "Teams balanced", attrs...)
	s.notifier.FixtureUpdated(ctx, updated)

	return &BalanceOutcome{Fixture: updated, Result: result}, nil
}

// matchPool returns the pool's player ids. A non-empty request list must name exactly
// the same players and keeps its order; an empty one means "balance whoever is in the
// pool" in ascending id order.
func matchPool(entries []models.PoolEntry, requested []int) ([]int, error) {
	pool := make([]int, len(entries))
	for i, e := range entries {
		pool[i] = e.PlayerID
	}
	if len(requested) == 0 {
		// порядок из БД зависит от прошлой раскладки, поэтому сортируем по id
		slices.Sort(pool)
		return pool, nil
	}

	seen := make(map[int]struct{}, len(requested))
	for _, id := range requested {
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: player %d listed twice", ErrPoolMismatch, id)
		}
		seen[id] = struct{}{}
	}
	if len(seen) != len(pool) {
		return nil, fmt.Errorf("%w: %d players requested, pool has %d", ErrPoolMismatch, len(seen), len(pool))
	}
	for _, id := range pool {
		if _, ok := seen[id]; !ok {
			return nil, fmt.Errorf("%w: pool player %d missing from request", ErrPoolMismatch, id)
		}
	}
	// порядок запроса важен для random: слоты раздаются по порядку списка
	return slices.Clone(requested), nil
}

// IsBalancingError reports whether err came from the balancing engine's validation.
func IsBalancingError(err error) bool {
	return errors.Is(err, balancing.ErrInvalidPoolSize) ||
		errors.Is(err, balancing.ErrSizeMismatch) ||
		errors.Is(err, balancing.ErrDuplicatePlayer) ||
		errors.Is(err, balancing.ErrUnknownStrategy)
}
