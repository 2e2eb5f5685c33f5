package brackets

import (
	"context"
	"fmt"
	"time"

	"github.com/Dosada05/tournament-progression/models"
	"github.com/google/uuid"
)

// poolThresholds keeps each pool small enough for a bounded round robin.
var poolThresholds = []struct {
	maxTeams int
	pools    int
}{
	{maxTeams: 6, pools: 1},
	{maxTeams: 12, pools: 2},
	{maxTeams: 24, pools: 4},
}

const maxPools = 8

// PoolCount picks the number of pools for n teams.
func PoolCount(n int) int {
	for _, t := range poolThresholds {
		if n <= t.maxTeams {
			return t.pools
		}
	}
	return maxPools
}

// SnakeDistribute deals ranked entries into pools walking forward then
// backward (1,2,...,k,k,...,2,1) so pool strength stays balanced.
func SnakeDistribute(entries []Entry, pools int) [][]Entry {
	if pools < 1 {
		pools = 1
	}
	result := make([][]Entry, pools)
	for i, e := range entries {
		pos := i % pools
		if (i/pools)%2 == 1 {
			pos = pools - 1 - pos
		}
		result[pos] = append(result[pos], e)
	}
	return result
}

// ChunkDistribute splits entries into consecutive pools whose sizes differ
// by at most one.
func ChunkDistribute(entries []Entry, pools int) [][]Entry {
	if pools < 1 {
		pools = 1
	}
	result := make([][]Entry, pools)
	base, extra := len(entries)/pools, len(entries)%pools
	idx := 0
	for p := range result {
		size := base
		if p < extra {
			size++
		}
		result[p] = append([]Entry(nil), entries[idx:idx+size]...)
		idx += size
	}
	return result
}

type RoundRobinGenerator struct{}

func NewRoundRobinGenerator() BracketGenerator {
	return &RoundRobinGenerator{}
}

func (g *RoundRobinGenerator) GetName() string {
	return "RoundRobin"
}

// GenerateBracket creates one round per pool and a matchup for every
// unordered pair inside the pool. Both rosters are seated up front and
// each matchup gets a placeholder score.
func (g *RoundRobinGenerator) GenerateBracket(ctx context.Context, params GenerateBracketParams) (*Bracket, error) {
	stage := params.Stage
	if stage == nil {
		return nil, ErrMissingStage
	}
	if len(params.Entries) < 2 {
		return nil, fmt.Errorf("RoundRobinGenerator: %w (found %d)", ErrNotEnoughEntries, len(params.Entries))
	}

	entries := orderEntries(params)
	poolCount := PoolCount(len(entries))

	var pools [][]Entry
	if params.Seeded {
		pools = SnakeDistribute(entries, poolCount)
	} else {
		pools = ChunkDistribute(entries, poolCount)
	}

	spacing := params.matchSpacing()
	bracket := &Bracket{}

	for p, pool := range pools {
		if len(pool) == 0 {
			continue
		}
		round := models.Round{
			ID:      uuid.New(),
			StageID: stage.ID,
			Number:  p + 1,
			Name:    PoolName(p),
		}
		bracket.Rounds = append(bracket.Rounds, round)

		for _, e := range pool {
			bracket.RosterToRounds = append(bracket.RosterToRounds, models.RosterToRound{
				ID:       uuid.New(),
				RosterID: e.RosterID,
				RoundID:  round.ID,
			})
		}

		pairIndex := 0
		for i := 0; i < len(pool); i++ {
			for j := i + 1; j < len(pool); j++ {
				m := models.Matchup{
					ID:       uuid.New(),
					StageID:  stage.ID,
					RoundID:  round.ID,
					StartsAt: stage.StartsAt.Add(time.Duration(pairIndex) * spacing),
					Type:     models.MatchupTypeGroup,
				}
				bracket.Matchups = append(bracket.Matchups, m)
				bracket.RosterToMatchups = append(bracket.RosterToMatchups,
					newRosterToMatchup(pool[i].RosterID, m.ID, false),
					newRosterToMatchup(pool[j].RosterID, m.ID, false),
				)
				bracket.Scores = append(bracket.Scores, models.Score{
					ID:        uuid.New(),
					MatchupID: m.ID,
					Number:    1,
				})
				pairIndex++
			}
		}
	}

	if err := ValidateTree(bracket, false); err != nil {
		return nil, fmt.Errorf("round robin for stage %s: %w", stage.ID, err)
	}

	return bracket, nil
}

// PoolName labels pool p (0-based) as "Group A", "Group B", ...
func PoolName(p int) string {
	return fmt.Sprintf("Group %c", 'A'+rune(p))
}
