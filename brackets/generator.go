package brackets

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/Dosada05/tournament-progression/models"
	"github.com/google/uuid"
)

const (
	DefaultRoundSpacing = 24 * time.Hour
	DefaultMatchSpacing = time.Hour
)

var (
	ErrNotEnoughEntries   = errors.New("not enough entries to generate a bracket (minimum 2)")
	ErrMissingStage       = errors.New("stage is required for bracket generation")
	ErrInvalidBracketSize = errors.New("bracket size must be a power of two")
	ErrBracketTooSmall    = errors.New("bracket size is smaller than the number of entries")
	ErrInvalidTree        = errors.New("matchup tree is invalid")
)

// Entry is a roster as seen by the generators.
//
// Placement is a results-based rank carried over from a previous stage
// (1 = best, 0 = none); it takes precedence over Rating when ordering.
type Entry struct {
	RosterID  uuid.UUID
	Rating    float64
	Placement int
}

type GenerateBracketParams struct {
	Stage   *models.Stage
	Entries []Entry

	// Seeded orders entries by Placement/Rating. Shuffle only applies when
	// Seeded is false.
	Seeded  bool
	Shuffle bool
	Rand    *rand.Rand

	// BracketSize forces an elimination bracket size; 0 picks the smallest fit.
	BracketSize  int
	RoundSpacing time.Duration
	MatchSpacing time.Duration
}

func (p GenerateBracketParams) rng() *rand.Rand {
	if p.Rand != nil {
		return p.Rand
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

func (p GenerateBracketParams) roundSpacing() time.Duration {
	if p.RoundSpacing > 0 {
		return p.RoundSpacing
	}
	return DefaultRoundSpacing
}

func (p GenerateBracketParams) matchSpacing() time.Duration {
	if p.MatchSpacing > 0 {
		return p.MatchSpacing
	}
	return DefaultMatchSpacing
}

// Bracket is the full set of rows a generator produces for one stage.
// Nothing here is persisted yet.
type Bracket struct {
	Rounds           []models.Round
	Matchups         []models.Matchup
	RosterToMatchups []models.RosterToMatchup
	RosterToRounds   []models.RosterToRound
	Scores           []models.Score
}

type BracketGenerator interface {
	GenerateBracket(ctx context.Context, params GenerateBracketParams) (*Bracket, error)

	GetName() string
}

// orderEntries applies the seeding calculator or the unseeded policy.
// The input slice is never modified.
func orderEntries(params GenerateBracketParams) []Entry {
	if params.Seeded {
		return SeedOrder(params.Entries)
	}
	ordered := make([]Entry, len(params.Entries))
	copy(ordered, params.Entries)
	if params.Shuffle {
		ShuffleEntries(ordered, params.rng())
	}
	return ordered
}
