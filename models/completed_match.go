package models

import "time"

type MatchResult string

const (
	ResultWin  MatchResult = "win"
	ResultLoss MatchResult = "loss"
	ResultDraw MatchResult = "draw"
)

// CompletedMatch - материализованный результат сыгранного матча.
type CompletedMatch struct {
	ID         int       `json:"id"`
	TenantID   TenantID  `json:"tenant_id"`
	FixtureID  int       `json:"fixture_id"`
	MatchDate  time.Time `json:"match_date"`
	TeamAScore int       `json:"team_a_score"`
	TeamBScore int       `json:"team_b_score"`
	CreatedAt  time.Time `json:"created_at"`
}

type PlayerMatchResult struct {
	MatchID  int         `json:"match_id"`
	PlayerID int         `json:"player_id"`
	Team     Team        `json:"team"`
	Result   MatchResult `json:"result"`
}

// ResultFor returns the outcome from the given team's perspective.
func (m *CompletedMatch) ResultFor(team Team) MatchResult {
	our, their := m.TeamAScore, m.TeamBScore
	if team == TeamB {
		our, their = their, our
	}
	switch {
	case our > their:
		return ResultWin
	case our < their:
		return ResultLoss
	default:
		return ResultDraw
	}
}
