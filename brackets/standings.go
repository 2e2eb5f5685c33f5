package brackets

import (
	"bytes"
	"sort"

	"github.com/Dosada05/tournament-progression/models"
	"github.com/google/uuid"
)

// MatchupResult is the persisted outcome of one matchup, flattened for ranking.
type MatchupResult struct {
	MatchupID   uuid.UUID
	RoundID     uuid.UUID
	RoundNumber int
	Type        models.MatchupType
	Finished    bool
	Rosters     []uuid.UUID
	Winner      *uuid.UUID
	Points      map[uuid.UUID]int
}

// Pool is one group of a round-robin stage.
type Pool struct {
	RoundID uuid.UUID
	Number  int
	Rosters []uuid.UUID
}

type Standing struct {
	RosterID      uuid.UUID
	Pool          int
	PoolRank      int
	Wins          int
	Losses        int
	PointsFor     int
	PointsAgainst int
	Reached       int
	Placement     int
}

func (s Standing) PointDiff() int {
	return s.PointsFor - s.PointsAgainst
}

// RankGroups ranks every pool by wins, point difference, points scored and
// roster id, keeps the best perPool of each pool and orders the qualifiers
// pool winners first, then runners-up, and so on. limit > 0 caps the result.
func RankGroups(pools []Pool, results []MatchupResult, perPool, limit int) []Standing {
	stats := make(map[uuid.UUID]*Standing)
	for _, p := range pools {
		for _, id := range p.Rosters {
			stats[id] = &Standing{RosterID: id, Pool: p.Number}
		}
	}

	for _, res := range results {
		if res.Type != models.MatchupTypeGroup {
			continue
		}
		accumulatePoints(stats, res)
		if !res.Finished || res.Winner == nil {
			continue
		}
		for _, id := range res.Rosters {
			s, ok := stats[id]
			if !ok {
				continue
			}
			if id == *res.Winner {
				s.Wins++
			} else {
				s.Losses++
			}
		}
	}

	sortedPools := make([]Pool, len(pools))
	copy(sortedPools, pools)
	sort.Slice(sortedPools, func(i, j int) bool { return sortedPools[i].Number < sortedPools[j].Number })

	qualified := make([]Standing, 0)
	for _, p := range sortedPools {
		table := make([]Standing, 0, len(p.Rosters))
		for _, id := range p.Rosters {
			table = append(table, *stats[id])
		}
		sort.SliceStable(table, func(i, j int) bool {
			a, b := table[i], table[j]
			if a.Wins != b.Wins {
				return a.Wins > b.Wins
			}
			if a.PointDiff() != b.PointDiff() {
				return a.PointDiff() > b.PointDiff()
			}
			if a.PointsFor != b.PointsFor {
				return a.PointsFor > b.PointsFor
			}
			return bytes.Compare(a.RosterID[:], b.RosterID[:]) < 0
		})
		for i := range table {
			table[i].PoolRank = i + 1
		}
		if perPool > 0 && len(table) > perPool {
			table = table[:perPool]
		}
		qualified = append(qualified, table...)
	}

	sort.SliceStable(qualified, func(i, j int) bool {
		if qualified[i].PoolRank != qualified[j].PoolRank {
			return qualified[i].PoolRank < qualified[j].PoolRank
		}
		return qualified[i].Pool < qualified[j].Pool
	})

	return assignPlacements(qualified, limit)
}

// RankElimination ranks rosters of an elimination stage by the furthest
// round they reached; the winner of the final counts as reaching rounds+1.
// take > 0 keeps only the best take rosters.
func RankElimination(results []MatchupResult, rounds, take int) []Standing {
	stats := make(map[uuid.UUID]*Standing)
	get := func(id uuid.UUID) *Standing {
		s, ok := stats[id]
		if !ok {
			s = &Standing{RosterID: id}
			stats[id] = s
		}
		return s
	}

	for _, res := range results {
		for _, id := range res.Rosters {
			s := get(id)
			if res.RoundNumber > s.Reached {
				s.Reached = res.RoundNumber
			}
		}
		accumulatePoints(stats, res)
		if res.Winner == nil || res.Type == models.MatchupTypeBye {
			continue
		}
		for _, id := range res.Rosters {
			if id == *res.Winner {
				get(id).Wins++
			} else {
				get(id).Losses++
			}
		}
		if res.Finished && res.RoundNumber == rounds {
			get(*res.Winner).Reached = rounds + 1
		}
	}

	ranked := make([]Standing, 0, len(stats))
	for _, s := range stats {
		ranked = append(ranked, *s)
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Reached != b.Reached {
			return a.Reached > b.Reached
		}
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		return bytes.Compare(a.RosterID[:], b.RosterID[:]) < 0
	})

	return assignPlacements(ranked, take)
}

func accumulatePoints(stats map[uuid.UUID]*Standing, res MatchupResult) {
	if len(res.Points) == 0 {
		return
	}
	total := 0
	for _, id := range res.Rosters {
		total += res.Points[id]
	}
	for _, id := range res.Rosters {
		s, ok := stats[id]
		if !ok {
			continue
		}
		s.PointsFor += res.Points[id]
		s.PointsAgainst += total - res.Points[id]
	}
}

func assignPlacements(standings []Standing, limit int) []Standing {
	if limit > 0 && len(standings) > limit {
		standings = standings[:limit]
	}
	for i := range standings {
		standings[i].Placement = i + 1
	}
	return standings
}

// AdvanceRule caps how many rosters leave a finished stage.
type AdvanceRule struct {
	PerPool      int
	FromKnockout int
	// Limit > 0 caps the total, usually the next stage's capacity.
	Limit int
}

// RankStage picks the advancing rosters of a finished stage in seed order.
// Pools are ignored for elimination stages.
func RankStage(stage *models.Stage, roundCount int, pools []Pool, results []MatchupResult, rule AdvanceRule) []Standing {
	if stage.IsElimination() {
		take := rule.FromKnockout
		if rule.Limit > 0 && (take <= 0 || rule.Limit < take) {
			take = rule.Limit
		}
		return RankElimination(results, roundCount, take)
	}
	return RankGroups(pools, results, rule.PerPool, rule.Limit)
}
