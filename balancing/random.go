package balancing

import (
	"context"
	"hash/fnv"
	"math/rand/v2"
	"slices"

	"github.com/Dosada05/matchday/models"
)

type RandomBalancer struct {
	bounds Bounds
}

func NewRandomBalancer(bounds Bounds) TeamBalancer {
	return &RandomBalancer{bounds: bounds}
}

func (b *RandomBalancer) GetName() models.BalanceType {
	return models.BalanceTypeRandom
}

func (b *RandomBalancer) Balance(ctx context.Context, params BalanceParams) (*Result, error) {
	sizes, err := prepare(b.bounds, params)
	if err != nil {
		return nil, err
	}

	ids := slices.Clone(params.PlayerIDs)
	shuffle(ids, newRand(params.Seed))

	return &Result{
		Type:        models.BalanceTypeRandom,
		Sizes:       sizes,
		Assignments: assignSequential(ids, sizes),
	}, nil
}

// shuffle - Fisher–Yates.
func shuffle(ids []int, rng *rand.Rand) {
	for i := len(ids) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		ids[i], ids[j] = ids[j], ids[i]
	}
}

// newRand returns a generator fully determined by seed, or a randomly seeded one
// when seed is empty. Seeds exist for reproducible tests, not for security.
func newRand(seed string) *rand.Rand {
	if seed == "" {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	s := SeedFromString(seed)
	return rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15))
}

// SeedFromString derives the numeric seed (FNV-1a 64) used for a seed string.
func SeedFromString(seed string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(seed))
	return h.Sum64()
}
