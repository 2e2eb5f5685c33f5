package models

import (
	"time"

	"github.com/google/uuid"
)

// Roster is a team or solo entrant occupying one stage of a tournament.
type Roster struct {
	ID              uuid.UUID `json:"id" db:"id"`
	ParticipationID uuid.UUID `json:"participation_id" db:"participation_id"`
	StageID         uuid.UUID `json:"stage_id" db:"stage_id"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`

	Members []RosterMember `json:"members,omitempty" db:"-"`
}

type RosterMember struct {
	RosterID uuid.UUID `json:"roster_id" db:"roster_id"`
	UserID   uuid.UUID `json:"user_id" db:"user_id"`
}

type PlayerRating struct {
	UserID     uuid.UUID `json:"user_id" db:"user_id"`
	CategoryID uuid.UUID `json:"category_id" db:"category_id"`
	Elo        int       `json:"elo" db:"elo"`
}

// MemberRating is one member's rating for a roster; Elo is already
// defaulted when the player has no rating in the category.
type MemberRating struct {
	RosterID uuid.UUID `db:"roster_id"`
	UserID   uuid.UUID `db:"user_id"`
	Elo      int       `db:"elo"`
}
