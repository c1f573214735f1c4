package balancing

import "fmt"

// MinTeamSize - жёсткий минимум игроков в одной команде.
const MinTeamSize = 4

type Bounds struct {
	MinPlayers int
	MaxPlayers int
}

var DefaultBounds = Bounds{MinPlayers: 8, MaxPlayers: 22}

type Sizes struct {
	A int `json:"a"`
	B int `json:"b"`
}

func (s Sizes) Total() int {
	return s.A + s.B
}

// SplitSizes splits n players as evenly as possible; the odd player goes to team B.
func SplitSizes(n int) Sizes {
	return Sizes{A: n / 2, B: n - n/2}
}

func (b Bounds) Validate(n int) error {
	if n < b.MinPlayers {
		return fmt.Errorf("%w: pool too small (%d players, minimum %d)", ErrInvalidPoolSize, n, b.MinPlayers)
	}
	if n > b.MaxPlayers {
		return fmt.Errorf("%w: pool too large (%d players, maximum %d)", ErrInvalidPoolSize, n, b.MaxPlayers)
	}
	return nil
}

// ResolveSizes returns explicit sizes when given, otherwise SplitSizes(n).
func ResolveSizes(n int, explicit *Sizes) (Sizes, error) {
	sizes := SplitSizes(n)
	if explicit != nil {
		if explicit.Total() != n {
			return Sizes{}, fmt.Errorf("%w: %d + %d != %d", ErrSizeMismatch, explicit.A, explicit.B, n)
		}
		sizes = *explicit
	}
	if sizes.A < MinTeamSize || sizes.B < MinTeamSize {
		return Sizes{}, fmt.Errorf("%w: each team needs at least %d players (got %d and %d)",
			ErrInvalidPoolSize, MinTeamSize, sizes.A, sizes.B)
	}
	return sizes, nil
}
