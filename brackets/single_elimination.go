// tournament-progression/brackets/single_elimination.go
package brackets

import (
	"context"
	"fmt"
	"time"

	"github.com/Dosada05/tournament-progression/models"
	"github.com/google/uuid"
)

// slotState tracks what is already known about the winner of a matchup
// while the tree is being filled from the first round upwards.
type slotState struct {
	resolved bool
	winner   *Entry
}

type SingleEliminationGenerator struct {
}

func NewSingleEliminationGenerator() BracketGenerator {
	return &SingleEliminationGenerator{}
}

func (g *SingleEliminationGenerator) GetName() string {
	return "SingleElimination"
}

func (g *SingleEliminationGenerator) GenerateBracket(ctx context.Context, params GenerateBracketParams) (*Bracket, error) {
	stage := params.Stage
	if stage == nil {
		return nil, ErrMissingStage
	}

	n := len(params.Entries)
	plan := PlanBracket(n)
	if params.BracketSize > 0 {
		var err error
		plan, err = PlanFixedBracket(n, params.BracketSize)
		if err != nil {
			return nil, err
		}
	}
	if n < 2 || !plan.Playable() {
		return nil, ErrNotEnoughEntries
	}

	entries := orderEntries(params)
	pairs, err := FirstRoundPairs(plan.Size)
	if err != nil {
		return nil, err
	}

	spacing := params.roundSpacing()
	bracket := &Bracket{
		Rounds:   make([]models.Round, 0, plan.Rounds),
		Matchups: make([]models.Matchup, 0, plan.Size-1),
	}

	for r := 1; r <= plan.Rounds; r++ {
		bracket.Rounds = append(bracket.Rounds, models.Round{
			ID:      uuid.New(),
			StageID: stage.ID,
			Number:  r,
			Name:    RoundName(r, plan.Rounds),
		})
	}

	// Significantly easier to start from the final and work backwards:
	// every parent exists before its children point at it.
	byRound := make([][]models.Matchup, plan.Rounds+1)
	for r := plan.Rounds; r >= 1; r-- {
		count := plan.Size >> r
		startsAt := stage.StartsAt.Add(time.Duration(r-1) * spacing)

		current := make([]models.Matchup, count)
		for j := range current {
			m := models.Matchup{
				ID:       uuid.New(),
				StageID:  stage.ID,
				RoundID:  bracket.Rounds[r-1].ID,
				StartsAt: startsAt,
				Type:     models.MatchupTypeElimination,
			}
			if r < plan.Rounds {
				parentID := byRound[r+1][j/2].ID
				m.ParentMatchupID = &parentID
			}
			current[j] = m
		}
		byRound[r] = current
	}

	entryForSeed := func(seed int) *Entry {
		if seed > n {
			return nil
		}
		e := entries[seed-1]
		return &e
	}

	// First round: seeded pairs, byes for seeds without an opponent.
	states := make([]slotState, len(byRound[1]))
	for j := range byRound[1] {
		m := &byRound[1][j]
		first := entryForSeed(pairs[j][0])
		second := entryForSeed(pairs[j][1])
		states[j] = g.fillMatchup(bracket, m, first, second, true)
	}

	// Later rounds only receive rosters that advanced automatically.
	for r := 2; r <= plan.Rounds; r++ {
		next := make([]slotState, len(byRound[r]))
		for j := range byRound[r] {
			m := &byRound[r][j]
			left, right := states[2*j], states[2*j+1]
			if !left.resolved && !right.resolved {
				continue
			}
			if !left.resolved || !right.resolved {
				// one side is still to be played; seat the known side only
				for _, s := range []slotState{left, right} {
					if s.winner != nil {
						bracket.RosterToMatchups = append(bracket.RosterToMatchups, newRosterToMatchup(s.winner.RosterID, m.ID, false))
					}
				}
				continue
			}
			next[j] = g.fillMatchup(bracket, m, left.winner, right.winner, false)
		}
		states = next
	}

	for r := plan.Rounds; r >= 1; r-- {
		bracket.Matchups = append(bracket.Matchups, byRound[r]...)
	}

	if err := ValidateTree(bracket, true); err != nil {
		return nil, fmt.Errorf("single elimination for stage %s: %w", stage.ID, err)
	}

	return bracket, nil
}

// fillMatchup seats up to two known rosters in m. A matchup with a single
// roster is a bye: the roster is the finished winner and advances. A
// matchup with no roster at all resolves empty.
func (g *SingleEliminationGenerator) fillMatchup(bracket *Bracket, m *models.Matchup, first, second *Entry, firstRound bool) slotState {
	switch {
	case first != nil && second != nil:
		bracket.RosterToMatchups = append(bracket.RosterToMatchups,
			newRosterToMatchup(first.RosterID, m.ID, false),
			newRosterToMatchup(second.RosterID, m.ID, false),
		)
		return slotState{}
	case first != nil || second != nil:
		winner := first
		if winner == nil {
			winner = second
		}
		m.Type = models.MatchupTypeBye
		m.Finished = true
		bracket.RosterToMatchups = append(bracket.RosterToMatchups, newRosterToMatchup(winner.RosterID, m.ID, true))
		return slotState{resolved: true, winner: winner}
	default:
		if firstRound {
			m.Type = models.MatchupTypeBye
		}
		m.Finished = true
		return slotState{resolved: true}
	}
}

func newRosterToMatchup(rosterID, matchupID uuid.UUID, winner bool) models.RosterToMatchup {
	return models.RosterToMatchup{
		ID:        uuid.New(),
		RosterID:  rosterID,
		MatchupID: matchupID,
		IsWinner:  winner,
	}
}

// RoundName labels elimination round r of total.
func RoundName(r, total int) string {
	switch total - r {
	case 0:
		return "Final"
	case 1:
		return "Semifinal"
	case 2:
		return "Quarterfinal"
	default:
		return fmt.Sprintf("Round %d", r)
	}
}
