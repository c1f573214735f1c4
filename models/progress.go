package models

import "time"

// FixtureProgress is the transient "what is happening to this fixture" record.
type FixtureProgress struct {
	FixtureID int       `json:"fixture_id"`
	Stage     string    `json:"stage"`
	Percent   int       `json:"percent"`
	JobID     int       `json:"job_id,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}
