package models

type PositionGroup string

const (
	GroupDefense  PositionGroup = "defense"
	GroupMidfield PositionGroup = "midfield"
	GroupAttack   PositionGroup = "attack"
)

// PositionGroups in formation order (slots are numbered defense first).
var PositionGroups = []PositionGroup{GroupDefense, GroupMidfield, GroupAttack}

// Attribute names as stored in team_balance_weights.attribute.
const (
	AttrGoalscoring = "goalscoring"
	AttrDefending   = "defending"
	AttrStaminaPace = "stamina_pace"
	AttrControl     = "control"
	AttrTeamwork    = "teamwork"
	AttrResilience  = "resilience"
)

// PlayerAttributes - оценки игрока (обычно по шкале 1-5).
type PlayerAttributes struct {
	PlayerID    int     `json:"player_id"`
	Goalscoring float64 `json:"goalscoring"`
	Defending   float64 `json:"defending"`
	StaminaPace float64 `json:"stamina_pace"`
	Control     float64 `json:"control"`
	Teamwork    float64 `json:"teamwork"`
	Resilience  float64 `json:"resilience"`
}

// Value returns the attribute by its stored name; unknown names score zero.
func (p PlayerAttributes) Value(attr string) float64 {
	switch attr {
	case AttrGoalscoring:
		return p.Goalscoring
	case AttrDefending:
		return p.Defending
	case AttrStaminaPace:
		return p.StaminaPace
	case AttrControl:
		return p.Control
	case AttrTeamwork:
		return p.Teamwork
	case AttrResilience:
		return p.Resilience
	}
	return 0
}

type BalanceWeight struct {
	TenantID      TenantID      `json:"tenant_id"`
	PositionGroup PositionGroup `json:"position_group"`
	Attribute     string        `json:"attribute"`
	Weight        float64       `json:"weight"`
}
