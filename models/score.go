package models

import (
	"time"

	"github.com/google/uuid"
)

type Score struct {
	ID        uuid.UUID `json:"id" db:"id"`
	MatchupID uuid.UUID `json:"matchup_id" db:"matchup_id"`
	Number    int       `json:"number" db:"number"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type ScoreToRoster struct {
	ID       uuid.UUID `json:"id" db:"id"`
	ScoreID  uuid.UUID `json:"score_id" db:"score_id"`
	RosterID uuid.UUID `json:"roster_id" db:"roster_id"`
	Points   int       `json:"points" db:"points"`
}

// RosterPoints is the aggregated points of a roster in one matchup.
type RosterPoints struct {
	MatchupID uuid.UUID `db:"matchup_id"`
	RosterID  uuid.UUID `db:"roster_id"`
	Points    int       `db:"points"`
}
