package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/tournament-progression/brackets"
	"github.com/Dosada05/tournament-progression/models"
	"github.com/Dosada05/tournament-progression/repositories"
	"github.com/google/uuid"
)

type ProgressionConfig struct {
	// LeadTime is how long before its start an opening stage is generated.
	LeadTime            time.Duration
	AdvancePerPool      int
	AdvanceFromKnockout int
}

// TickReport counts what one progression pass did.
type TickReport struct {
	Started   int
	Finished  int
	Generated int
	Skipped   int
	Failed    int
}

type ProgressionService interface {
	Tick(ctx context.Context) (*TickReport, error)
}

type progressionService struct {
	stageRepo   repositories.StageRepository
	matchupRepo repositories.MatchupRepository
	bracketSvc  BracketService
	cfg         ProgressionConfig
	logger      *slog.Logger
	now         func() time.Time
}

func NewProgressionService(
	stageRepo repositories.StageRepository,
	matchupRepo repositories.MatchupRepository,
	bracketSvc BracketService,
	cfg ProgressionConfig,
	logger *slog.Logger,
) ProgressionService {
	if cfg.LeadTime <= 0 {
		cfg.LeadTime = 24 * time.Hour
	}
	if cfg.AdvancePerPool <= 0 {
		cfg.AdvancePerPool = 2
	}
	if cfg.AdvanceFromKnockout <= 0 {
		cfg.AdvanceFromKnockout = 2
	}
	return &progressionService{
		stageRepo:   stageRepo,
		matchupRepo: matchupRepo,
		bracketSvc:  bracketSvc,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// Tick re-reads persisted state and moves every stage as far as it can go:
// statuses first, then stages close to their start that have no matchups,
// then stages whose predecessor just finished. A failing stage is logged and
// left for the next tick; only listing failures abort the pass.
func (s *progressionService) Tick(ctx context.Context) (*TickReport, error) {
	now := s.now()
	report := &TickReport{}

	if err := s.updateStatuses(ctx, now, report); err != nil {
		return report, err
	}

	imminent, err := s.stageRepo.ListImminentWithoutMatchups(ctx, nil, now.Add(s.cfg.LeadTime))
	if err != nil {
		return report, err
	}
	// tournaments that got a stage in this pass; their later stages wait for the next tick
	touched := make(map[uuid.UUID]bool)
	for _, stage := range imminent {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if touched[stage.TournamentID] {
			continue
		}
		wait, err := s.waitsForPredecessor(ctx, stage, now)
		if err != nil {
			report.Failed++
			s.logFailure(stage, "failed to check previous stage", err)
			continue
		}
		if wait {
			s.logger.Debug("stage waits for previous stage",
				slog.String("stage_id", stage.ID.String()),
				slog.String("stage_type", string(stage.Type)))
			continue
		}
		if s.generate(ctx, stage, GenerateOptions{Seeded: true}, report) {
			touched[stage.TournamentID] = true
		}
	}

	pairs, err := s.stageRepo.ListFinishedWithPendingSuccessor(ctx, nil)
	if err != nil {
		return report, err
	}
	for _, pair := range pairs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := s.advance(ctx, pair, report); err != nil {
			report.Failed++
			s.logger.Error("failed to advance rosters",
				slog.String("stage_id", pair.NextStageID.String()),
				slog.String("finished_stage_id", pair.FinishedStageID.String()),
				slog.Any("error", err))
		}
	}

	s.logger.Info("progression tick done",
		slog.Int("started", report.Started),
		slog.Int("finished", report.Finished),
		slog.Int("generated", report.Generated),
		slog.Int("skipped", report.Skipped),
		slog.Int("failed", report.Failed))

	return report, nil
}

func (s *progressionService) updateStatuses(ctx context.Context, now time.Time, report *TickReport) error {
	due, err := s.stageRepo.ListDueToStart(ctx, nil, now)
	if err != nil {
		return err
	}
	for _, stage := range due {
		if err := s.stageRepo.UpdateStatus(ctx, nil, stage.ID, models.StageStatusOngoing); err != nil {
			s.logFailure(stage, "failed to start stage", err)
			report.Failed++
			continue
		}
		report.Started++
	}

	completable, err := s.stageRepo.ListCompletable(ctx, nil)
	if err != nil {
		return err
	}
	for _, stage := range completable {
		if err := s.stageRepo.UpdateStatus(ctx, nil, stage.ID, models.StageStatusFinished); err != nil {
			s.logFailure(stage, "failed to finish stage", err)
			report.Failed++
			continue
		}
		report.Finished++
		s.logger.Info("stage finished", slog.String("stage_id", stage.ID.String()), slog.String("stage_type", string(stage.Type)))
	}
	return nil
}

// waitsForPredecessor reports whether the stage is to be fed by the stage
// before it. A predecessor with matchups feeds it once finished and one that
// has not started yet is generated first. A predecessor that started without
// matchups never finishes, so the stage goes ahead with its own rosters.
func (s *progressionService) waitsForPredecessor(ctx context.Context, stage *models.Stage, now time.Time) (bool, error) {
	stages, err := s.stageRepo.ListByTournament(ctx, nil, stage.TournamentID)
	if err != nil {
		return false, err
	}
	var prev *models.Stage
	for _, st := range stages {
		if st.StartsAt.Before(stage.StartsAt) {
			prev = st
		}
	}
	if prev == nil {
		return false, nil
	}
	if prev.StartsAt.After(now) {
		return true, nil
	}
	count, err := s.matchupRepo.CountByStage(ctx, nil, prev.ID)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *progressionService) advance(ctx context.Context, pair repositories.StagePair, report *TickReport) error {
	finished, err := s.stageRepo.GetByID(ctx, nil, pair.FinishedStageID)
	if err != nil {
		return handleRepositoryError(err)
	}
	next, err := s.stageRepo.GetByID(ctx, nil, pair.NextStageID)
	if err != nil {
		return handleRepositoryError(err)
	}

	carried, err := s.bracketSvc.AdvancingRosters(ctx, finished, brackets.AdvanceRule{
		PerPool:      s.cfg.AdvancePerPool,
		FromKnockout: s.cfg.AdvanceFromKnockout,
		Limit:        next.MaxParticipants,
	})
	if err != nil {
		return fmt.Errorf("failed to rank stage %s: %w", finished.ID, err)
	}

	s.generate(ctx, next, GenerateOptions{Seeded: true, CarryOver: carried}, report)
	return nil
}

// generate reports whether matchups were written.
func (s *progressionService) generate(ctx context.Context, stage *models.Stage, opts GenerateOptions, report *TickReport) bool {
	result, err := s.bracketSvc.GenerateForStage(ctx, stage.ID, opts)
	switch {
	case err != nil && isSkippable(err):
		report.Skipped++
		s.logger.Info("stage generation skipped",
			slog.String("stage_id", stage.ID.String()),
			slog.String("stage_type", string(stage.Type)),
			slog.String("reason", err.Error()))
	case err != nil:
		report.Failed++
		s.logFailure(stage, "stage generation failed", err)
	case result.Skipped:
		report.Skipped++
	default:
		report.Generated++
		return true
	}
	return false
}

func (s *progressionService) logFailure(stage *models.Stage, msg string, err error) {
	s.logger.Error(msg,
		slog.String("stage_id", stage.ID.String()),
		slog.String("stage_type", string(stage.Type)),
		slog.Any("error", err))
}
