package models

import (
	"time"

	"github.com/google/uuid"
)

// Round groups matchups of a stage. Elimination rounds are numbered from 1
// (first round played) up to the final; group stages have one round per pool.
type Round struct {
	ID        uuid.UUID `json:"id" db:"id"`
	StageID   uuid.UUID `json:"stage_id" db:"stage_id"`
	Number    int       `json:"number" db:"number"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type MatchupType string

const (
	MatchupTypeElimination MatchupType = "elimination"
	MatchupTypeBye         MatchupType = "bye"
	MatchupTypeGroup       MatchupType = "group"
)

type Matchup struct {
	ID              uuid.UUID   `json:"id" db:"id"`
	StageID         uuid.UUID   `json:"stage_id" db:"stage_id"`
	RoundID         uuid.UUID   `json:"round_id" db:"round_id"`
	ParentMatchupID *uuid.UUID  `json:"parent_matchup_id,omitempty" db:"parent_matchup_id"`
	StartsAt        time.Time   `json:"starts_at" db:"starts_at"`
	Finished        bool        `json:"finished" db:"finished"`
	Type            MatchupType `json:"matchup_type" db:"matchup_type"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
}

type RosterToMatchup struct {
	ID        uuid.UUID `json:"id" db:"id"`
	RosterID  uuid.UUID `json:"roster_id" db:"roster_id"`
	MatchupID uuid.UUID `json:"matchup_id" db:"matchup_id"`
	IsWinner  bool      `json:"is_winner" db:"is_winner"`
}

type RosterToRound struct {
	ID       uuid.UUID `json:"id" db:"id"`
	RosterID uuid.UUID `json:"roster_id" db:"roster_id"`
	RoundID  uuid.UUID `json:"round_id" db:"round_id"`
}
