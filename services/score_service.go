package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Dosada05/tournament-progression/models"
	"github.com/Dosada05/tournament-progression/repositories"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type RecordResultInput struct {
	MatchupID      uuid.UUID         `json:"-"`
	WinnerRosterID uuid.UUID         `json:"winner_roster_id"`
	Points         map[uuid.UUID]int `json:"points,omitempty"`
	RecordedBy     uuid.UUID         `json:"-"`
}

type RecordResultOutput struct {
	MatchupID       uuid.UUID  `json:"matchup_id"`
	WinnerRosterID  uuid.UUID  `json:"winner_roster_id"`
	ParentMatchupID *uuid.UUID `json:"parent_matchup_id,omitempty"`
	ScoreNumber     int        `json:"score_number,omitempty"`
	// StageComplete is set once every matchup of the stage is finished.
	StageComplete bool `json:"stage_complete"`
}

// SnapshotRefresher re-publishes a stage bracket after its results change.
type SnapshotRefresher interface {
	RefreshSnapshot(ctx context.Context, stageID uuid.UUID) string
}

type ScoreService interface {
	RecordResult(ctx context.Context, input RecordResultInput) (*RecordResultOutput, error)
}

type scoreService struct {
	db          *sqlx.DB
	matchupRepo repositories.MatchupRepository
	scoreRepo   repositories.ScoreRepository
	snapshots   SnapshotRefresher
	logger      *slog.Logger
}

// NewScoreService accepts a nil snapshots refresher when snapshots are off.
func NewScoreService(
	db *sqlx.DB,
	matchupRepo repositories.MatchupRepository,
	scoreRepo repositories.ScoreRepository,
	snapshots SnapshotRefresher,
	logger *slog.Logger,
) ScoreService {
	return &scoreService{
		db:          db,
		matchupRepo: matchupRepo,
		scoreRepo:   scoreRepo,
		snapshots:   snapshots,
		logger:      logger,
	}
}

// RecordResult finishes a matchup with a winner, stores the points if any
// and seats the winner in the parent matchup. Everything happens in one
// transaction.
func (s *scoreService) RecordResult(ctx context.Context, input RecordResultInput) (*RecordResultOutput, error) {
	if input.MatchupID == uuid.Nil || input.WinnerRosterID == uuid.Nil {
		return nil, fmt.Errorf("%w: matchup and winner roster are required", ErrValidationFailed)
	}

	output := &RecordResultOutput{MatchupID: input.MatchupID, WinnerRosterID: input.WinnerRosterID}
	var stageID uuid.UUID

	err := inTx(ctx, s.db, s.logger, func(tx *sqlx.Tx) error {
		matchup, err := s.matchupRepo.GetByID(ctx, tx, input.MatchupID)
		if err != nil {
			return handleRepositoryError(err)
		}
		if matchup.Finished {
			return ErrMatchupAlreadyFinished
		}
		stageID = matchup.StageID

		seated, err := s.matchupRepo.ListRosterToMatchupsByMatchup(ctx, tx, matchup.ID)
		if err != nil {
			return err
		}
		if len(seated) < 2 {
			return ErrMatchupNotReady
		}
		inMatchup := make(map[uuid.UUID]bool, len(seated))
		for _, row := range seated {
			inMatchup[row.RosterID] = true
		}
		if !inMatchup[input.WinnerRosterID] {
			return ErrRosterNotInMatchup
		}
		for rosterID := range input.Points {
			if !inMatchup[rosterID] {
				return fmt.Errorf("%w: points for roster %s", ErrRosterNotInMatchup, rosterID)
			}
		}

		if err := s.matchupRepo.MarkFinished(ctx, tx, matchup.ID); err != nil {
			return handleRepositoryError(err)
		}
		if err := s.matchupRepo.SetWinner(ctx, tx, matchup.ID, input.WinnerRosterID); err != nil {
			return handleRepositoryError(err)
		}

		if len(input.Points) > 0 {
			number, err := s.recordPoints(ctx, tx, matchup.ID, seated, input.Points)
			if err != nil {
				return err
			}
			output.ScoreNumber = number
		}

		if matchup.ParentMatchupID != nil {
			output.ParentMatchupID = matchup.ParentMatchupID
			if err := s.seatInParent(ctx, tx, *matchup.ParentMatchupID, input.WinnerRosterID); err != nil {
				return err
			}
		}

		unfinished, err := s.matchupRepo.CountUnfinishedByStage(ctx, tx, matchup.StageID)
		if err != nil {
			return err
		}
		output.StageComplete = unfinished == 0
		return nil
	})
	if err != nil {
		return nil, err
	}

	attrs := []any{
		slog.String("matchup_id", input.MatchupID.String()),
		slog.String("stage_id", stageID.String()),
		slog.String("winner_roster_id", input.WinnerRosterID.String()),
		slog.Bool("stage_complete", output.StageComplete),
	}
	if input.RecordedBy != uuid.Nil {
		attrs = append(attrs, slog.String("recorded_by", input.RecordedBy.String()))
	}
	s.logger.Info("matchup result recorded", attrs...)

	if s.snapshots != nil {
		s.snapshots.RefreshSnapshot(ctx, stageID)
	}
	return output, nil
}

func (s *scoreService) recordPoints(ctx context.Context, tx *sqlx.Tx, matchupID uuid.UUID, seated []models.RosterToMatchup, points map[uuid.UUID]int) (int, error) {
	score, err := s.scoreRepo.GetOpenScore(ctx, tx, matchupID)
	if err != nil {
		return 0, err
	}
	if score == nil {
		number, err := s.scoreRepo.NextNumber(ctx, tx, matchupID)
		if err != nil {
			return 0, err
		}
		scores := []models.Score{{ID: uuid.New(), MatchupID: matchupID, Number: number}}
		if err := s.scoreRepo.CreateBatch(ctx, tx, scores); err != nil {
			return 0, err
		}
		score = &scores[0]
	}

	rows := make([]models.ScoreToRoster, 0, len(seated))
	for _, row := range seated {
		rows = append(rows, models.ScoreToRoster{
			ID:       uuid.New(),
			ScoreID:  score.ID,
			RosterID: row.RosterID,
			Points:   points[row.RosterID],
		})
	}
	if err := s.scoreRepo.CreateScoreToRosters(ctx, tx, rows); err != nil {
		return 0, err
	}
	return score.Number, nil
}

func (s *scoreService) seatInParent(ctx context.Context, tx *sqlx.Tx, parentID, rosterID uuid.UUID) error {
	parentRows, err := s.matchupRepo.ListRosterToMatchupsByMatchup(ctx, tx, parentID)
	if err != nil {
		return err
	}
	for _, row := range parentRows {
		if row.RosterID == rosterID {
			return nil
		}
	}
	if len(parentRows) >= 2 {
		return ErrParentMatchupFull
	}
	if err := s.matchupRepo.AddRoster(ctx, tx, parentID, rosterID); err != nil {
		if errors.Is(err, repositories.ErrRosterAlreadyInMatchup) {
			return nil
		}
		return err
	}
	return nil
}
