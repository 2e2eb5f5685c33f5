package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"time"

	"github.com/Dosada05/tournament-progression/brackets"
	"github.com/Dosada05/tournament-progression/models"
	"github.com/Dosada05/tournament-progression/repositories"
	"github.com/Dosada05/tournament-progression/storage"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"
)

type GenerationConfig struct {
	RoundSpacing  time.Duration
	MatchSpacing  time.Duration
	DefaultRating int
}

// CarriedRoster is a roster of a finished stage that advances into the
// stage being generated, with its results-based placement.
type CarriedRoster struct {
	Source    models.Roster
	Placement int
}

type GenerateOptions struct {
	Seeded      bool
	Shuffle     bool
	BracketSize int
	// CarryOver, when set, is the full entrant list of the stage.
	CarryOver []CarriedRoster
	Rand      *rand.Rand
	// RequestedBy is the user behind a manual trigger; uuid.Nil for ticks.
	RequestedBy uuid.UUID
}

type GenerationResult struct {
	StageID     uuid.UUID        `json:"stage_id"`
	StageType   models.StageType `json:"stage_type"`
	Generator   string           `json:"generator"`
	Skipped     bool             `json:"skipped"`
	Rosters     int              `json:"rosters"`
	Rounds      int              `json:"rounds"`
	Matchups    int              `json:"matchups"`
	SnapshotURL string           `json:"snapshot_url,omitempty"`
}

type MatchupRosterView struct {
	RosterID uuid.UUID `json:"roster_id"`
	IsWinner bool      `json:"is_winner"`
	Points   *int      `json:"points,omitempty"`
}

type MatchupView struct {
	models.Matchup
	Rosters []MatchupRosterView `json:"rosters"`
}

type RoundView struct {
	models.Round
	Rosters  []uuid.UUID   `json:"rosters,omitempty"`
	Matchups []MatchupView `json:"matchups"`
}

type StageBracket struct {
	Stage  *models.Stage `json:"stage"`
	Rounds []RoundView   `json:"rounds"`
}

type BracketService interface {
	GenerateForStage(ctx context.Context, stageID uuid.UUID, opts GenerateOptions) (*GenerationResult, error)
	GetStageBracket(ctx context.Context, stageID uuid.UUID) (*StageBracket, error)
	AdvancingRosters(ctx context.Context, stage *models.Stage, rule brackets.AdvanceRule) ([]CarriedRoster, error)
	RefreshSnapshot(ctx context.Context, stageID uuid.UUID) string
}

type bracketService struct {
	db             *sqlx.DB
	stageRepo      repositories.StageRepository
	tournamentRepo repositories.TournamentRepository
	rosterRepo     repositories.RosterRepository
	matchupRepo    repositories.MatchupRepository
	scoreRepo      repositories.ScoreRepository
	generationRepo repositories.GenerationRepository
	snapshots      storage.SnapshotStore
	cfg            GenerationConfig
	logger         *slog.Logger
	now            func() time.Time
}

func NewBracketService(
	db *sqlx.DB,
	stageRepo repositories.StageRepository,
	tournamentRepo repositories.TournamentRepository,
	rosterRepo repositories.RosterRepository,
	matchupRepo repositories.MatchupRepository,
	scoreRepo repositories.ScoreRepository,
	generationRepo repositories.GenerationRepository,
	snapshots storage.SnapshotStore,
	cfg GenerationConfig,
	logger *slog.Logger,
) BracketService {
	if cfg.DefaultRating <= 0 {
		cfg.DefaultRating = brackets.DefaultRating
	}
	return &bracketService{
		db:             db,
		stageRepo:      stageRepo,
		tournamentRepo: tournamentRepo,
		rosterRepo:     rosterRepo,
		matchupRepo:    matchupRepo,
		scoreRepo:      scoreRepo,
		generationRepo: generationRepo,
		snapshots:      snapshots,
		cfg:            cfg,
		logger:         logger,
		now:            time.Now,
	}
}

func generatorFor(stageType models.StageType) (brackets.BracketGenerator, error) {
	switch stageType {
	case models.StageTypeKnockout:
		return brackets.NewSingleEliminationGenerator(), nil
	case models.StageTypeGroup:
		return brackets.NewRoundRobinGenerator(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedStageType, stageType)
	}
}

// GenerateForStage builds and persists the bracket of one stage. A stage
// with fewer than two entrants is skipped without writing anything.
func (s *bracketService) GenerateForStage(ctx context.Context, stageID uuid.UUID, opts GenerateOptions) (*GenerationResult, error) {
	stage, err := s.stageRepo.GetByID(ctx, nil, stageID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}

	generator, err := generatorFor(stage.Type)
	if err != nil {
		return nil, err
	}

	existing, err := s.matchupRepo.CountByStage(ctx, nil, stage.ID)
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, ErrStageAlreadyGenerated
	}
	// claimed by a generation still in flight elsewhere
	claimed, err := s.generationRepo.IsClaimed(ctx, nil, stage.ID)
	if err != nil {
		return nil, err
	}
	if claimed {
		return nil, ErrStageAlreadyGenerated
	}

	tournament, err := s.tournamentRepo.GetByID(ctx, nil, stage.TournamentID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}

	entries, newRosters, newMembers, err := s.buildEntries(ctx, stage, tournament, opts.CarryOver)
	if err != nil {
		return nil, fmt.Errorf("failed to collect entrants of stage %s: %w", stage.ID, err)
	}

	result := &GenerationResult{
		StageID:   stage.ID,
		StageType: stage.Type,
		Generator: generator.GetName(),
		Rosters:   len(entries),
	}
	if len(entries) < 2 {
		result.Skipped = true
		s.logger.Info("not enough rosters, stage skipped",
			slog.String("stage_id", stage.ID.String()),
			slog.String("stage_type", string(stage.Type)),
			slog.Int("rosters", len(entries)))
		return result, nil
	}

	bracket, err := generator.GenerateBracket(ctx, brackets.GenerateBracketParams{
		Stage:        stage,
		Entries:      entries,
		Seeded:       opts.Seeded,
		Shuffle:      opts.Shuffle,
		Rand:         opts.Rand,
		BracketSize:  opts.BracketSize,
		RoundSpacing: s.cfg.RoundSpacing,
		MatchSpacing: s.cfg.MatchSpacing,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate bracket for stage %s: %w", stage.ID, err)
	}

	err = inTx(ctx, s.db, s.logger, func(tx *sqlx.Tx) error {
		claimed, err := s.generationRepo.Claim(ctx, tx, stage.ID, stage.Type, s.now())
		if err != nil {
			return err
		}
		if !claimed {
			return ErrStageAlreadyGenerated
		}

		if len(newRosters) > 0 {
			if err := s.rosterRepo.CreateBatch(ctx, tx, newRosters); err != nil {
				return err
			}
			if err := s.rosterRepo.CreateMembers(ctx, tx, newMembers); err != nil {
				return err
			}
		}
		if err := s.matchupRepo.CreateRounds(ctx, tx, bracket.Rounds); err != nil {
			return err
		}
		if err := s.matchupRepo.CreateMatchups(ctx, tx, bracket.Matchups); err != nil {
			return err
		}
		if err := s.matchupRepo.CreateRosterToMatchups(ctx, tx, bracket.RosterToMatchups); err != nil {
			return err
		}
		if err := s.matchupRepo.CreateRosterToRounds(ctx, tx, bracket.RosterToRounds); err != nil {
			return err
		}
		return s.scoreRepo.CreateBatch(ctx, tx, bracket.Scores)
	})
	if err != nil {
		return nil, err
	}

	result.Rounds = len(bracket.Rounds)
	result.Matchups = len(bracket.Matchups)

	attrs := []any{
		slog.String("stage_id", stage.ID.String()),
		slog.String("stage_type", string(stage.Type)),
		slog.String("generator", result.Generator),
		slog.Int("rosters", result.Rosters),
		slog.Int("matchups", result.Matchups),
	}
	if opts.RequestedBy != uuid.Nil {
		attrs = append(attrs, slog.String("requested_by", opts.RequestedBy.String()))
	}
	s.logger.Info("bracket generated", attrs...)

	result.SnapshotURL = s.RefreshSnapshot(ctx, stage.ID)
	return result, nil
}

// buildEntries rates the stage's entrants. Without carry-over every roster
// registered for the stage takes part; with carry-over only the carried
// participations do, reusing a roster already registered for the same
// participation and otherwise preparing a new one.
func (s *bracketService) buildEntries(ctx context.Context, stage *models.Stage, tournament *models.Tournament, carry []CarriedRoster) ([]brackets.Entry, []models.Roster, []models.RosterMember, error) {
	registered, err := s.rosterRepo.ListByStage(ctx, nil, stage.ID)
	if err != nil {
		return nil, nil, nil, err
	}

	type pending struct {
		entry     brackets.Entry
		ratingKey uuid.UUID
	}
	var (
		plan       []pending
		newRosters []models.Roster
		copyFrom   = make(map[uuid.UUID]uuid.UUID) // source roster -> new roster
	)

	if len(carry) == 0 {
		for _, r := range registered {
			plan = append(plan, pending{entry: brackets.Entry{RosterID: r.ID}, ratingKey: r.ID})
		}
	} else {
		byParticipation := make(map[uuid.UUID]*models.Roster, len(registered))
		for _, r := range registered {
			byParticipation[r.ParticipationID] = r
		}
		for _, c := range carry {
			if r, ok := byParticipation[c.Source.ParticipationID]; ok {
				plan = append(plan, pending{entry: brackets.Entry{RosterID: r.ID, Placement: c.Placement}, ratingKey: r.ID})
				continue
			}
			roster := models.Roster{
				ID:              uuid.New(),
				ParticipationID: c.Source.ParticipationID,
				StageID:         stage.ID,
			}
			newRosters = append(newRosters, roster)
			copyFrom[c.Source.ID] = roster.ID
			plan = append(plan, pending{entry: brackets.Entry{RosterID: roster.ID, Placement: c.Placement}, ratingKey: c.Source.ID})
		}
	}

	keys := make([]uuid.UUID, 0, len(plan))
	for _, p := range plan {
		keys = append(keys, p.ratingKey)
	}
	ratings, err := s.rosterRepo.ListMemberRatings(ctx, nil, keys, tournament.CategoryID, s.cfg.DefaultRating)
	if err != nil {
		return nil, nil, nil, err
	}
	byRoster := make(map[uuid.UUID][]int)
	for _, mr := range ratings {
		byRoster[mr.RosterID] = append(byRoster[mr.RosterID], mr.Elo)
	}

	entries := make([]brackets.Entry, 0, len(plan))
	for _, p := range plan {
		p.entry.Rating = brackets.AverageRating(byRoster[p.ratingKey], s.cfg.DefaultRating)
		entries = append(entries, p.entry)
	}

	var newMembers []models.RosterMember
	if len(copyFrom) > 0 {
		sources := make([]uuid.UUID, 0, len(copyFrom))
		for id := range copyFrom {
			sources = append(sources, id)
		}
		members, err := s.rosterRepo.ListMembers(ctx, nil, sources)
		if err != nil {
			return nil, nil, nil, err
		}
		for _, m := range members {
			newMembers = append(newMembers, models.RosterMember{RosterID: copyFrom[m.RosterID], UserID: m.UserID})
		}
	}

	return entries, newRosters, newMembers, nil
}

// RefreshSnapshot uploads the current bracket of the stage and returns its
// public location. When the upload fails the previous object is removed so
// readers never get an outdated bracket.
func (s *bracketService) RefreshSnapshot(ctx context.Context, stageID uuid.UUID) string {
	if s.snapshots == nil {
		return ""
	}
	key := storage.BracketSnapshotKey(stageID)
	view, err := s.GetStageBracket(ctx, stageID)
	if err != nil {
		s.logger.Warn("failed to load bracket for snapshot", slog.String("stage_id", stageID.String()), slog.Any("error", err))
		s.dropSnapshot(ctx, stageID, key)
		return ""
	}
	uploaded, err := s.snapshots.PutJSON(ctx, key, view)
	if err != nil {
		s.logger.Warn("failed to upload bracket snapshot", slog.String("stage_id", stageID.String()), slog.Any("error", err))
		s.dropSnapshot(ctx, stageID, key)
		return ""
	}
	return uploaded.Location
}

func (s *bracketService) dropSnapshot(ctx context.Context, stageID uuid.UUID, key string) {
	if err := s.snapshots.Delete(ctx, key); err != nil {
		s.logger.Warn("failed to delete stale bracket snapshot", slog.String("stage_id", stageID.String()), slog.Any("error", err))
	}
}

// stageState is everything persisted for a generated stage.
type stageState struct {
	rounds         []models.Round
	matchups       []models.Matchup
	rosterMatchups []models.RosterToMatchup
	rosterRounds   []models.RosterToRound
	points         []models.RosterPoints
}

func (s *bracketService) loadStageState(ctx context.Context, stageID uuid.UUID) (*stageState, error) {
	state := &stageState{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		state.rounds, err = s.matchupRepo.ListRoundsByStage(gctx, nil, stageID)
		return err
	})
	g.Go(func() error {
		var err error
		state.matchups, err = s.matchupRepo.ListByStage(gctx, nil, stageID)
		return err
	})
	g.Go(func() error {
		var err error
		state.rosterMatchups, err = s.matchupRepo.ListRosterToMatchupsByStage(gctx, nil, stageID)
		return err
	})
	g.Go(func() error {
		var err error
		state.rosterRounds, err = s.matchupRepo.ListRosterToRoundsByStage(gctx, nil, stageID)
		return err
	})
	g.Go(func() error {
		var err error
		state.points, err = s.scoreRepo.ListPointsByStage(gctx, nil, stageID)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return state, nil
}

func (s *bracketService) GetStageBracket(ctx context.Context, stageID uuid.UUID) (*StageBracket, error) {
	stage, err := s.stageRepo.GetByID(ctx, nil, stageID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	state, err := s.loadStageState(ctx, stageID)
	if err != nil {
		return nil, fmt.Errorf("failed to load bracket of stage %s: %w", stageID, err)
	}

	points := make(map[[2]uuid.UUID]int, len(state.points))
	for _, p := range state.points {
		points[[2]uuid.UUID{p.MatchupID, p.RosterID}] = p.Points
	}
	seated := make(map[uuid.UUID][]MatchupRosterView)
	for _, rtm := range state.rosterMatchups {
		view := MatchupRosterView{RosterID: rtm.RosterID, IsWinner: rtm.IsWinner}
		if p, ok := points[[2]uuid.UUID{rtm.MatchupID, rtm.RosterID}]; ok {
			p := p
			view.Points = &p
		}
		seated[rtm.MatchupID] = append(seated[rtm.MatchupID], view)
	}
	members := make(map[uuid.UUID][]uuid.UUID)
	for _, rtr := range state.rosterRounds {
		members[rtr.RoundID] = append(members[rtr.RoundID], rtr.RosterID)
	}

	rounds := make([]RoundView, 0, len(state.rounds))
	index := make(map[uuid.UUID]int, len(state.rounds))
	for _, rd := range state.rounds {
		index[rd.ID] = len(rounds)
		rounds = append(rounds, RoundView{Round: rd, Rosters: members[rd.ID], Matchups: []MatchupView{}})
	}
	for _, m := range state.matchups {
		i, ok := index[m.RoundID]
		if !ok {
			continue
		}
		rosters := seated[m.ID]
		if rosters == nil {
			rosters = []MatchupRosterView{}
		}
		rounds[i].Matchups = append(rounds[i].Matchups, MatchupView{Matchup: m, Rosters: rosters})
	}

	return &StageBracket{Stage: stage, Rounds: rounds}, nil
}

// AdvancingRosters ranks a finished stage and returns the rosters that move
// on, best first.
func (s *bracketService) AdvancingRosters(ctx context.Context, stage *models.Stage, rule brackets.AdvanceRule) ([]CarriedRoster, error) {
	if stage.Status != models.StageStatusFinished {
		return nil, ErrStageNotFinished
	}

	rosters, err := s.rosterRepo.ListByStage(ctx, nil, stage.ID)
	if err != nil {
		return nil, err
	}
	state, err := s.loadStageState(ctx, stage.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load results of stage %s: %w", stage.ID, err)
	}

	standings := brackets.RankStage(stage, len(state.rounds), buildPools(state), buildResults(state), rule)

	byID := make(map[uuid.UUID]*models.Roster, len(rosters))
	for _, r := range rosters {
		byID[r.ID] = r
	}
	carried := make([]CarriedRoster, 0, len(standings))
	for _, st := range standings {
		r, ok := byID[st.RosterID]
		if !ok {
			return nil, fmt.Errorf("%w: roster %s of stage %s", ErrNotFound, st.RosterID, stage.ID)
		}
		carried = append(carried, CarriedRoster{Source: *r, Placement: st.Placement})
	}
	return carried, nil
}

func buildPools(state *stageState) []brackets.Pool {
	members := make(map[uuid.UUID][]uuid.UUID)
	for _, rtr := range state.rosterRounds {
		members[rtr.RoundID] = append(members[rtr.RoundID], rtr.RosterID)
	}
	pools := make([]brackets.Pool, 0, len(state.rounds))
	for _, rd := range state.rounds {
		if len(members[rd.ID]) == 0 {
			continue
		}
		pools = append(pools, brackets.Pool{RoundID: rd.ID, Number: rd.Number, Rosters: members[rd.ID]})
	}
	return pools
}

func buildResults(state *stageState) []brackets.MatchupResult {
	roundNumbers := make(map[uuid.UUID]int, len(state.rounds))
	for _, rd := range state.rounds {
		roundNumbers[rd.ID] = rd.Number
	}

	results := make([]brackets.MatchupResult, 0, len(state.matchups))
	index := make(map[uuid.UUID]int, len(state.matchups))
	for _, m := range state.matchups {
		index[m.ID] = len(results)
		results = append(results, brackets.MatchupResult{
			MatchupID:   m.ID,
			RoundID:     m.RoundID,
			RoundNumber: roundNumbers[m.RoundID],
			Type:        m.Type,
			Finished:    m.Finished,
			Points:      make(map[uuid.UUID]int),
		})
	}
	for _, rtm := range state.rosterMatchups {
		i, ok := index[rtm.MatchupID]
		if !ok {
			continue
		}
		results[i].Rosters = append(results[i].Rosters, rtm.RosterID)
		if rtm.IsWinner {
			winner := rtm.RosterID
			results[i].Winner = &winner
		}
	}
	for _, p := range state.points {
		if i, ok := index[p.MatchupID]; ok {
			results[i].Points[p.RosterID] = p.Points
		}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].RoundNumber < results[j].RoundNumber })
	return results
}

// isSkippable reports errors a scheduled run logs and moves past.
func isSkippable(err error) bool {
	return errors.Is(err, ErrStageAlreadyGenerated) || errors.Is(err, ErrUnsupportedStageType)
}
