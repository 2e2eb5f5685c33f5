package models

import (
	"time"

	"github.com/google/uuid"
)

type StageType string

const (
	StageTypeGroup    StageType = "group"
	StageTypeKnockout StageType = "knockout"
	// StageTypeDoubleElimination is recognised but has no generator.
	StageTypeDoubleElimination StageType = "double_elimination"
)

type StageStatus string

const (
	StageStatusUpcoming StageStatus = "upcoming"
	StageStatusOngoing  StageStatus = "ongoing"
	StageStatusFinished StageStatus = "finished"
)

type Stage struct {
	ID              uuid.UUID   `json:"id" db:"id"`
	TournamentID    uuid.UUID   `json:"tournament_id" db:"tournament_id"`
	Name            string      `json:"name" db:"name"`
	Type            StageType   `json:"stage_type" db:"stage_type"`
	Status          StageStatus `json:"status" db:"status"`
	StartsAt        time.Time   `json:"starts_at" db:"starts_at"`
	EndsAt          time.Time   `json:"ends_at" db:"ends_at"`
	MinTeamSize     int         `json:"min_team_size" db:"min_team_size"`
	MaxTeamSize     int         `json:"max_team_size" db:"max_team_size"`
	MaxParticipants int         `json:"max_participants" db:"max_participants"` // 0 = без ограничения
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
}

func (s *Stage) IsElimination() bool {
	return s.Type == StageTypeKnockout || s.Type == StageTypeDoubleElimination
}
