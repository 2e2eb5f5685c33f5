package brackets

import (
	"testing"

	"github.com/Dosada05/tournament-progression/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func groupResult(a, b, winner uuid.UUID, pa, pb int) MatchupResult {
	w := winner
	return MatchupResult{
		MatchupID: uuid.New(),
		Type:      models.MatchupTypeGroup,
		Finished:  true,
		Rosters:   []uuid.UUID{a, b},
		Winner:    &w,
		Points:    map[uuid.UUID]int{a: pa, b: pb},
	}
}

func standingIDs(standings []Standing) []uuid.UUID {
	ids := make([]uuid.UUID, len(standings))
	for i, s := range standings {
		ids[i] = s.RosterID
	}
	return ids
}

func TestRankGroups(t *testing.T) {
	a1, a2, a3 := uuid.New(), uuid.New(), uuid.New()
	b1, b2, b3 := uuid.New(), uuid.New(), uuid.New()

	pools := []Pool{
		{Number: 2, Rosters: []uuid.UUID{b1, b2, b3}},
		{Number: 1, Rosters: []uuid.UUID{a1, a2, a3}},
	}
	results := []MatchupResult{
		groupResult(a1, a2, a1, 3, 1),
		groupResult(a1, a3, a1, 3, 0),
		groupResult(a2, a3, a2, 3, 2),
		groupResult(b1, b2, b1, 2, 1),
		groupResult(b1, b3, b3, 0, 3),
		groupResult(b2, b3, b2, 2, 1),
	}

	got := RankGroups(pools, results, 2, 0)
	require.Len(t, got, 4)

	// pool B is tied on wins; differences are b1 -2, b2 0, b3 +2
	assert.Equal(t, []uuid.UUID{a1, b3, a2, b2}, standingIDs(got))
	assert.Equal(t, []int{1, 2, 3, 4}, []int{got[0].Placement, got[1].Placement, got[2].Placement, got[3].Placement})
	assert.Equal(t, 1, got[0].PoolRank)
	assert.Equal(t, 2, got[0].Wins)
	assert.Equal(t, 6, got[0].PointsFor)
	assert.Equal(t, 1, got[0].PointsAgainst)

	limited := RankGroups(pools, results, 2, 3)
	assert.Len(t, limited, 3)
}

func TestRankGroups_IgnoresUnfinished(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	res := groupResult(a, b, a, 0, 0)
	res.Finished = false

	got := RankGroups([]Pool{{Number: 1, Rosters: []uuid.UUID{a, b}}}, []MatchupResult{res}, 0, 0)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].Wins)
	assert.Equal(t, 0, got[1].Wins)
}

func TestRankElimination(t *testing.T) {
	s1, s2, s3, s4 := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	win := func(id uuid.UUID) *uuid.UUID { return &id }

	results := []MatchupResult{
		{RoundNumber: 1, Type: models.MatchupTypeElimination, Finished: true, Rosters: []uuid.UUID{s1, s4}, Winner: win(s1)},
		{RoundNumber: 1, Type: models.MatchupTypeElimination, Finished: true, Rosters: []uuid.UUID{s2, s3}, Winner: win(s3)},
		{RoundNumber: 2, Type: models.MatchupTypeElimination, Finished: true, Rosters: []uuid.UUID{s1, s3}, Winner: win(s3)},
	}

	got := RankElimination(results, 2, 0)
	require.Len(t, got, 4)
	assert.Equal(t, s3, got[0].RosterID)
	assert.Equal(t, 3, got[0].Reached)
	assert.Equal(t, s1, got[1].RosterID)
	assert.Equal(t, 2, got[1].Reached)

	top := RankElimination(results, 2, 2)
	assert.Equal(t, []uuid.UUID{s3, s1}, standingIDs(top))
}

func TestRankElimination_ByeIsNotAWin(t *testing.T) {
	s1, s2, s3 := uuid.New(), uuid.New(), uuid.New()
	win := func(id uuid.UUID) *uuid.UUID { return &id }

	results := []MatchupResult{
		{RoundNumber: 1, Type: models.MatchupTypeBye, Finished: true, Rosters: []uuid.UUID{s1}, Winner: win(s1)},
		{RoundNumber: 1, Type: models.MatchupTypeElimination, Finished: true, Rosters: []uuid.UUID{s2, s3}, Winner: win(s2)},
		{RoundNumber: 2, Type: models.MatchupTypeElimination, Finished: false, Rosters: []uuid.UUID{s1, s2}},
	}

	got := RankElimination(results, 2, 0)
	byID := make(map[uuid.UUID]Standing)
	for _, s := range got {
		byID[s.RosterID] = s
	}
	assert.Equal(t, 0, byID[s1].Wins)
	assert.Equal(t, 1, byID[s2].Wins)
	assert.Equal(t, 2, byID[s1].Reached)
	assert.Equal(t, 1, byID[s3].Reached)
	assert.Equal(t, s2, got[0].RosterID, "same round reached, more wins first")
}

func TestRankStage(t *testing.T) {
	s1, s2 := uuid.New(), uuid.New()
	w := s1
	results := []MatchupResult{{RoundNumber: 1, Type: models.MatchupTypeElimination, Finished: true, Rosters: []uuid.UUID{s1, s2}, Winner: &w}}

	knockout := &models.Stage{Type: models.StageTypeKnockout}
	got := RankStage(knockout, 1, nil, results, AdvanceRule{FromKnockout: 2, Limit: 1})
	assert.Equal(t, []uuid.UUID{s1}, standingIDs(got))

	group := &models.Stage{Type: models.StageTypeGroup}
	pools := []Pool{{Number: 1, Rosters: []uuid.UUID{s1, s2}}}
	gr := groupResult(s1, s2, s2, 0, 1)
	got = RankStage(group, 1, pools, []MatchupResult{gr}, AdvanceRule{PerPool: 1})
	assert.Equal(t, []uuid.UUID{s2}, standingIDs(got))
}
