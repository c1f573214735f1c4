package models

import "time"

type Team string

const (
	TeamUnassigned Team = "Unassigned"
	TeamA          Team = "A"
	TeamB          Team = "B"
)

func (t Team) Valid() bool {
	return t == TeamUnassigned || t == TeamA || t == TeamB
}

// PoolEntry - игрок, прикреплённый к матчу, и его место в команде.
type PoolEntry struct {
	FixtureID  int       `json:"fixture_id"`
	PlayerID   int       `json:"player_id"`
	Team       Team      `json:"team"`
	SlotNumber *int      `json:"slot_number,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type PoolCounts struct {
	Total      int `json:"total"`
	TeamA      int `json:"team_a"`
	TeamB      int `json:"team_b"`
	Unassigned int `json:"unassigned"`
}

// Assignment is a balancer output row: one player placed into a team slot.
type Assignment struct {
	PlayerID   int  `json:"player_id"`
	Team       Team `json:"team"`
	SlotNumber int  `json:"slot_number"`
}
