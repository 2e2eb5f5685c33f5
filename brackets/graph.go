// Thin wrapper around the graph module used to check the shape of a
// generated matchup set before it is persisted.
package brackets

import (
	"fmt"

	"github.com/Dosada05/tournament-progression/models"
	"github.com/dominikbraun/graph"
	"github.com/google/uuid"
)

func matchupHash(m models.Matchup) uuid.UUID {
	return m.ID
}

// ValidateTree checks the matchup forest of a bracket. Every parent must
// sit in the immediately following round of the same stage and at most one
// roster may win a matchup. For elimination brackets the forest must be a
// single full binary tree rooted at the final.
func ValidateTree(b *Bracket, elimination bool) error {
	roundNumbers := make(map[uuid.UUID]int, len(b.Rounds))
	for _, r := range b.Rounds {
		roundNumbers[r.ID] = r.Number
	}

	g := graph.New(matchupHash, graph.Directed(), graph.PreventCycles())
	byID := make(map[uuid.UUID]models.Matchup, len(b.Matchups))
	for _, m := range b.Matchups {
		if _, ok := roundNumbers[m.RoundID]; !ok {
			return fmt.Errorf("%w: matchup %s references unknown round %s", ErrInvalidTree, m.ID, m.RoundID)
		}
		if err := g.AddVertex(m); err != nil {
			return fmt.Errorf("%w: matchup %s: %v", ErrInvalidTree, m.ID, err)
		}
		byID[m.ID] = m
	}

	for _, m := range b.Matchups {
		if m.ParentMatchupID == nil {
			continue
		}
		if !elimination {
			return fmt.Errorf("%w: group matchup %s has a parent", ErrInvalidTree, m.ID)
		}
		parent, ok := byID[*m.ParentMatchupID]
		if !ok {
			return fmt.Errorf("%w: parent %s of matchup %s not found", ErrInvalidTree, *m.ParentMatchupID, m.ID)
		}
		if parent.StageID != m.StageID || roundNumbers[parent.RoundID] != roundNumbers[m.RoundID]+1 {
			return fmt.Errorf("%w: parent %s of matchup %s is not in the following round", ErrInvalidTree, parent.ID, m.ID)
		}
		if err := g.AddEdge(m.ID, parent.ID); err != nil {
			return fmt.Errorf("%w: edge %s -> %s: %v", ErrInvalidTree, m.ID, parent.ID, err)
		}
	}

	winners := make(map[uuid.UUID]int)
	for _, rtm := range b.RosterToMatchups {
		if _, ok := byID[rtm.MatchupID]; !ok {
			return fmt.Errorf("%w: roster %s seated in unknown matchup %s", ErrInvalidTree, rtm.RosterID, rtm.MatchupID)
		}
		if rtm.IsWinner {
			winners[rtm.MatchupID]++
			if winners[rtm.MatchupID] > 1 {
				return fmt.Errorf("%w: matchup %s has more than one winner", ErrInvalidTree, rtm.MatchupID)
			}
		}
	}

	if !elimination || len(b.Matchups) == 0 {
		return nil
	}

	predecessors, err := g.PredecessorMap()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTree, err)
	}

	roots := 0
	for _, m := range b.Matchups {
		number := roundNumbers[m.RoundID]
		children := len(predecessors[m.ID])
		if m.ParentMatchupID == nil {
			roots++
			if number != len(b.Rounds) {
				return fmt.Errorf("%w: root matchup %s is in round %d of %d", ErrInvalidTree, m.ID, number, len(b.Rounds))
			}
		}
		if (number == 1 && children != 0) || (number > 1 && children != 2) {
			return fmt.Errorf("%w: matchup %s in round %d has %d children", ErrInvalidTree, m.ID, number, children)
		}
	}
	if roots != 1 {
		return fmt.Errorf("%w: expected a single final, found %d", ErrInvalidTree, roots)
	}

	return nil
}
