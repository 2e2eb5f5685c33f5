package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Dosada05/tournament-progression/models"
	"github.com/Dosada05/tournament-progression/repositories"
	"github.com/Dosada05/tournament-progression/storage"
	"github.com/Dosada05/tournament-progression/testutil"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

type fakeSnapshotStore struct {
	mu      sync.Mutex
	keys    []string
	deleted []string
	putErr  error
}

func (f *fakeSnapshotStore) PutJSON(ctx context.Context, key string, payload interface{}) (*storage.UploadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.keys = append(f.keys, key)
	return &storage.UploadResult{Key: key, Location: "https://cdn.example.com/" + key}, nil
}

func (f *fakeSnapshotStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeSnapshotStore) GetPublicURL(key string) string { return "https://cdn.example.com/" + key }

type testEnv struct {
	db             *sqlx.DB
	stageRepo      repositories.StageRepository
	rosterRepo     repositories.RosterRepository
	matchupRepo    repositories.MatchupRepository
	scoreRepo      repositories.ScoreRepository
	generationRepo repositories.GenerationRepository
	snapshots      *fakeSnapshotStore
	brackets       *bracketService
	scores         ScoreService
	progression    *progressionService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewTestDB(t)
	logger := testutil.DiscardLogger()

	env := &testEnv{
		db:             db,
		stageRepo:      repositories.NewPostgresStageRepository(db),
		rosterRepo:     repositories.NewPostgresRosterRepository(db),
		matchupRepo:    repositories.NewPostgresMatchupRepository(db),
		scoreRepo:      repositories.NewPostgresScoreRepository(db),
		generationRepo: repositories.NewPostgresGenerationRepository(db),
		snapshots:      &fakeSnapshotStore{},
	}

	env.brackets = NewBracketService(
		db,
		env.stageRepo,
		repositories.NewPostgresTournamentRepository(db),
		env.rosterRepo,
		env.matchupRepo,
		env.scoreRepo,
		env.generationRepo,
		env.snapshots,
		GenerationConfig{RoundSpacing: 24 * time.Hour, MatchSpacing: time.Hour},
		logger,
	).(*bracketService)
	env.brackets.now = func() time.Time { return testutil.BaseTime }

	env.scores = NewScoreService(db, env.matchupRepo, env.scoreRepo, env.brackets, logger)

	env.progression = NewProgressionService(env.stageRepo, env.matchupRepo, env.brackets, ProgressionConfig{}, logger).(*progressionService)
	return env
}

func (e *testEnv) at(now time.Time) {
	e.progression.now = func() time.Time { return now }
}

// stageMatchups returns matchups of the stage with their seated rosters.
func (e *testEnv) stageMatchups(t *testing.T, stageID uuid.UUID) ([]models.Matchup, map[uuid.UUID][]models.RosterToMatchup) {
	t.Helper()
	ctx := context.Background()
	matchups, err := e.matchupRepo.ListByStage(ctx, nil, stageID)
	require.NoError(t, err)
	rows, err := e.matchupRepo.ListRosterToMatchupsByStage(ctx, nil, stageID)
	require.NoError(t, err)
	seated := make(map[uuid.UUID][]models.RosterToMatchup)
	for _, r := range rows {
		seated[r.MatchupID] = append(seated[r.MatchupID], r)
	}
	return matchups, seated
}
