package models

import "time"

// FixtureState представляет состояния жизненного цикла матча, соответствующие ENUM в БД.
type FixtureState string

const (
	FixtureStateDraft         FixtureState = "Draft"
	FixtureStatePoolLocked    FixtureState = "PoolLocked"
	FixtureStateTeamsBalanced FixtureState = "TeamsBalanced"
	FixtureStateCompleted     FixtureState = "Completed"
)

func (s FixtureState) Valid() bool {
	switch s {
	case FixtureStateDraft, FixtureStatePoolLocked, FixtureStateTeamsBalanced, FixtureStateCompleted:
		return true
	}
	return false
}

type BalanceType string

const (
	BalanceTypeRandom   BalanceType = "random"
	BalanceTypeWeighted BalanceType = "weighted"
)

func (b BalanceType) Valid() bool {
	return b == BalanceTypeRandom || b == BalanceTypeWeighted
}

// Fixture - предстоящий матч (upcoming_matches).
type Fixture struct {
	ID           int          `json:"id"`
	TenantID     TenantID     `json:"tenant_id"`
	MatchDate    time.Time    `json:"match_date"`
	TeamSize     int          `json:"team_size"`
	State        FixtureState `json:"state"`
	StateVersion int          `json:"state_version"`
	IsBalanced   bool         `json:"is_balanced"`
	ActualSizeA  *int         `json:"actual_size_a,omitempty"`
	ActualSizeB  *int         `json:"actual_size_b,omitempty"`
	BalanceType  *BalanceType `json:"balance_type,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// SizeFor returns the resolved size of a team, or 0 while the pool is unlocked.
func (f *Fixture) SizeFor(team Team) int {
	switch team {
	case TeamA:
		if f.ActualSizeA != nil {
			return *f.ActualSizeA
		}
	case TeamB:
		if f.ActualSizeB != nil {
			return *f.ActualSizeB
		}
	}
	return 0
}

// FixturePatch describes one versioned mutation of a fixture row. NextState is always
// written (it may equal the expected state for in-place mutations such as a balance
// write-back); nil pointers leave the column untouched.
type FixturePatch struct {
	NextState        FixtureState
	IsBalanced       *bool
	BalanceType      *BalanceType
	ClearBalanceType bool
	ActualSizeA      *int
	ActualSizeB      *int
	ClearSizes       bool
}
