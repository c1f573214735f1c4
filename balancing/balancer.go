package balancing

import (
	"context"
	"fmt"

	"github.com/Dosada05/matchday/models"
)

// BalanceParams - входные данные для одного расчёта составов.
// Attributes и Weights только читаются и не должны меняться во время расчёта.
type BalanceParams struct {
	PlayerIDs  []int
	Sizes      *Sizes
	Seed       string
	Simplified bool
	Attributes map[int]models.PlayerAttributes
	Weights    []models.BalanceWeight
}

type Result struct {
	Type        models.BalanceType  `json:"balance_type"`
	Sizes       Sizes               `json:"sizes"`
	Assignments []models.Assignment `json:"assignments"`
	Score       *Score              `json:"score,omitempty"`
}

type TeamBalancer interface {
	Balance(ctx context.Context, params BalanceParams) (*Result, error)

	GetName() models.BalanceType
}

// New returns the balancer for a strategy name.
func New(strategy models.BalanceType, bounds Bounds) (TeamBalancer, error) {
	switch strategy {
	case models.BalanceTypeRandom:
		return NewRandomBalancer(bounds), nil
	case models.BalanceTypeWeighted:
		return NewWeightedBalancer(bounds), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
}

// prepare validates the pool and resolves target team sizes.
func prepare(bounds Bounds, params BalanceParams) (Sizes, error) {
	seen := make(map[int]struct{}, len(params.PlayerIDs))
	for _, id := range params.PlayerIDs {
		if _, dup := seen[id]; dup {
			return Sizes{}, fmt.Errorf("%w: player %d", ErrDuplicatePlayer, id)
		}
		seen[id] = struct{}{}
	}
	n := len(params.PlayerIDs)
	if err := bounds.Validate(n); err != nil {
		return Sizes{}, err
	}
	return ResolveSizes(n, params.Sizes)
}

// assignSequential places ids[:A] into team A and the rest into team B with slots 1..size.
func assignSequential(ids []int, sizes Sizes) []models.Assignment {
	out := make([]models.Assignment, 0, len(ids))
	for i, id := range ids {
		if i < sizes.A {
			out = append(out, models.Assignment{PlayerID: id, Team: models.TeamA, SlotNumber: i + 1})
		} else {
			out = append(out, models.Assignment{PlayerID: id, Team: models.TeamB, SlotNumber: i - sizes.A + 1})
		}
	}
	return out
}
