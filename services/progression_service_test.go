package services

import (
	"context"
	"testing"
	"time"

	"github.com/Dosada05/tournament-progression/models"
	"github.com/Dosada05/tournament-progression/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTick_GroupToKnockout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tr := testutil.CreateTournament(t, env.db)
	group := testutil.CreateStage(t, env.db, tr.ID, models.StageTypeGroup, testutil.BaseTime)
	knockout := testutil.CreateStage(t, env.db, tr.ID, models.StageTypeKnockout, testutil.BaseTime.Add(7*24*time.Hour))

	strength := make(map[uuid.UUID]int)
	var rosters []*models.Roster
	for i := 0; i < 4; i++ {
		r := testutil.CreateRoster(t, env.db, group.ID, tr.CategoryID, 1600-i*100)
		strength[r.ID] = 4 - i
		rosters = append(rosters, r)
	}

	// an hour before the opening stage: only the group is generated
	env.at(testutil.BaseTime.Add(-time.Hour))
	report, err := env.progression.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Generated)
	assert.Zero(t, report.Started)
	assert.Zero(t, report.Failed)

	count, err := env.matchupRepo.CountByStage(ctx, nil, knockout.ID)
	require.NoError(t, err)
	assert.Zero(t, count, "later stage waits for its predecessor")

	matchups, seated := env.stageMatchups(t, group.ID)
	require.Len(t, matchups, 6)
	for _, m := range matchups {
		a, b := seated[m.ID][0].RosterID, seated[m.ID][1].RosterID
		winner := a
		if strength[b] > strength[a] {
			winner = b
		}
		_, err := env.scores.RecordResult(ctx, RecordResultInput{MatchupID: m.ID, WinnerRosterID: winner})
		require.NoError(t, err)
	}

	// after the start: the group starts, completes and feeds the knockout
	env.at(testutil.BaseTime.Add(time.Hour))
	report, err = env.progression.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Started)
	assert.Equal(t, 1, report.Finished)
	assert.Equal(t, 1, report.Generated)
	assert.Zero(t, report.Failed)

	finished, err := env.stageRepo.GetByID(ctx, nil, group.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StageStatusFinished, finished.Status)

	carried, err := env.rosterRepo.ListByStage(ctx, nil, knockout.ID)
	require.NoError(t, err)
	require.Len(t, carried, 2)
	participations := []uuid.UUID{carried[0].ParticipationID, carried[1].ParticipationID}
	assert.ElementsMatch(t, []uuid.UUID{rosters[0].ParticipationID, rosters[1].ParticipationID}, participations)

	members, err := env.rosterRepo.ListMembers(ctx, nil, []uuid.UUID{carried[0].ID, carried[1].ID})
	require.NoError(t, err)
	assert.Len(t, members, 2)

	koMatchups, koSeated := env.stageMatchups(t, knockout.ID)
	require.Len(t, koMatchups, 1)
	assert.Len(t, koSeated[koMatchups[0].ID], 2)

	// nothing left to do
	report, err = env.progression.Tick(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Generated)
	assert.Zero(t, report.Failed)

	count, err = env.matchupRepo.CountByStage(ctx, nil, knockout.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestTick_RespectsLeadTime(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tr := testutil.CreateTournament(t, env.db)
	stage := testutil.CreateStage(t, env.db, tr.ID, models.StageTypeKnockout, testutil.BaseTime)
	testutil.CreateRoster(t, env.db, stage.ID, tr.CategoryID)
	testutil.CreateRoster(t, env.db, stage.ID, tr.CategoryID)

	env.at(testutil.BaseTime.Add(-48 * time.Hour))
	report, err := env.progression.Tick(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Generated)

	env.at(testutil.BaseTime.Add(-12 * time.Hour))
	report, err = env.progression.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Generated)
}

func TestTick_SkipsAndContinues(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// unsupported type, a lone roster, then a playable stage
	unsupportedTr := testutil.CreateTournament(t, env.db)
	unsupported := testutil.CreateStage(t, env.db, unsupportedTr.ID, models.StageTypeDoubleElimination, testutil.BaseTime)
	testutil.CreateRoster(t, env.db, unsupported.ID, unsupportedTr.CategoryID)
	testutil.CreateRoster(t, env.db, unsupported.ID, unsupportedTr.CategoryID)

	loneTr := testutil.CreateTournament(t, env.db)
	lone := testutil.CreateStage(t, env.db, loneTr.ID, models.StageTypeKnockout, testutil.BaseTime)
	testutil.CreateRoster(t, env.db, lone.ID, loneTr.CategoryID)

	okTr := testutil.CreateTournament(t, env.db)
	ok := testutil.CreateStage(t, env.db, okTr.ID, models.StageTypeGroup, testutil.BaseTime)
	testutil.CreateRoster(t, env.db, ok.ID, okTr.CategoryID)
	testutil.CreateRoster(t, env.db, ok.ID, okTr.CategoryID)

	env.at(testutil.BaseTime.Add(-time.Hour))
	report, err := env.progression.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Generated)
	assert.Equal(t, 2, report.Skipped)
	assert.Zero(t, report.Failed)

	count, err := env.matchupRepo.CountByStage(ctx, nil, ok.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestTick_StopsOnCancelledContext(t *testing.T) {
	env := newTestEnv(t)
	tr := testutil.CreateTournament(t, env.db)
	stage := testutil.CreateStage(t, env.db, tr.ID, models.StageTypeKnockout, testutil.BaseTime)
	testutil.CreateRoster(t, env.db, stage.ID, tr.CategoryID)
	testutil.CreateRoster(t, env.db, stage.ID, tr.CategoryID)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	env.at(testutil.BaseTime.Add(-time.Hour))
	_, err := env.progression.Tick(ctx)
	assert.Error(t, err)

	count, err := env.matchupRepo.CountByStage(context.Background(), nil, stage.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestTick_LaterStageAfterSkippedPredecessor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tr := testutil.CreateTournament(t, env.db)
	lonely := testutil.CreateStage(t, env.db, tr.ID, models.StageTypeGroup, testutil.BaseTime.Add(-10*24*time.Hour))
	testutil.CreateRoster(t, env.db, lonely.ID, tr.CategoryID)

	knockout := testutil.CreateStage(t, env.db, tr.ID, models.StageTypeKnockout, testutil.BaseTime)
	for i := 0; i < 4; i++ {
		testutil.CreateRoster(t, env.db, knockout.ID, tr.CategoryID, 1000+i)
	}

	env.at(testutil.BaseTime.Add(-12 * time.Hour))
	report, err := env.progression.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Generated)
	assert.Zero(t, report.Failed)

	count, err := env.matchupRepo.CountByStage(ctx, nil, knockout.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestTick_LaterStageWaitsForPredecessor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tr := testutil.CreateTournament(t, env.db)
	group := testutil.CreateStage(t, env.db, tr.ID, models.StageTypeGroup, testutil.BaseTime)
	knockout := testutil.CreateStage(t, env.db, tr.ID, models.StageTypeKnockout, testutil.BaseTime.Add(6*time.Hour))
	for i := 0; i < 3; i++ {
		testutil.CreateRoster(t, env.db, group.ID, tr.CategoryID, 1000+i)
		testutil.CreateRoster(t, env.db, knockout.ID, tr.CategoryID, 1000+i)
	}

	// both stages are inside the lead window and neither has started
	env.at(testutil.BaseTime.Add(-time.Hour))
	report, err := env.progression.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Generated)

	// the group now has matchups and is running, so it still feeds the knockout
	env.at(testutil.BaseTime.Add(time.Hour))
	report, err = env.progression.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Started)
	assert.Zero(t, report.Generated)

	count, err := env.matchupRepo.CountByStage(ctx, nil, group.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	count, err = env.matchupRepo.CountByStage(ctx, nil, knockout.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}
