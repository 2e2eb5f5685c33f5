package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/tournament-progression/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var (
	ErrStageNotFound          = errors.New("stage not found")
	ErrStageInvalidTournament = errors.New("invalid tournament reference")
)

const stageColumns = `id, tournament_id, name, stage_type, status, starts_at, ends_at,
	min_team_size, max_team_size, max_participants, created_at`

// StagePair is a finished stage and the stage that follows it.
type StagePair struct {
	FinishedStageID uuid.UUID `db:"finished_stage_id"`
	NextStageID     uuid.UUID `db:"next_stage_id"`
}

type StageRepository interface {
	Create(ctx context.Context, exec SQLExecutor, stage *models.Stage) error
	GetByID(ctx context.Context, exec SQLExecutor, id uuid.UUID) (*models.Stage, error)
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID uuid.UUID) ([]*models.Stage, error)
	UpdateStatus(ctx context.Context, exec SQLExecutor, id uuid.UUID, status models.StageStatus) error
	ListImminentWithoutMatchups(ctx context.Context, exec SQLExecutor, startsBefore time.Time) ([]*models.Stage, error)
	ListFinishedWithPendingSuccessor(ctx context.Context, exec SQLExecutor) ([]StagePair, error)
	ListDueToStart(ctx context.Context, exec SQLExecutor, now time.Time) ([]*models.Stage, error)
	ListCompletable(ctx context.Context, exec SQLExecutor) ([]*models.Stage, error)
}

type postgresStageRepository struct {
	db *sqlx.DB
}

func NewPostgresStageRepository(db *sqlx.DB) StageRepository {
	return &postgresStageRepository{db: db}
}

func (r *postgresStageRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresStageRepository) Create(ctx context.Context, exec SQLExecutor, s *models.Stage) error {
	executor := r.getExecutor(exec)
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Status == "" {
		s.Status = models.StageStatusUpcoming
	}
	s.StartsAt = utc(s.StartsAt)
	s.EndsAt = utc(s.EndsAt)
	s.CreatedAt = utc(time.Now())

	query := `
		INSERT INTO stages (` + stageColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := executor.ExecContext(ctx, executor.Rebind(query),
		s.ID, s.TournamentID, s.Name, s.Type, s.Status, s.StartsAt, s.EndsAt,
		s.MinTeamSize, s.MaxTeamSize, s.MaxParticipants, s.CreatedAt,
	)
	return r.handleStageError(err)
}

func (r *postgresStageRepository) GetByID(ctx context.Context, exec SQLExecutor, id uuid.UUID) (*models.Stage, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + stageColumns + ` FROM stages WHERE id = ?`

	s := &models.Stage{}
	if err := sqlx.GetContext(ctx, executor, s, executor.Rebind(query), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStageNotFound
		}
		return nil, fmt.Errorf("failed to get stage %s: %w", id, err)
	}
	return s, nil
}

func (r *postgresStageRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID uuid.UUID) ([]*models.Stage, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + stageColumns + ` FROM stages WHERE tournament_id = ? ORDER BY starts_at ASC, id ASC`

	stages := make([]*models.Stage, 0)
	if err := sqlx.SelectContext(ctx, executor, &stages, executor.Rebind(query), tournamentID); err != nil {
		return nil, fmt.Errorf("failed to list stages of tournament %s: %w", tournamentID, err)
	}
	return stages, nil
}

func (r *postgresStageRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id uuid.UUID, status models.StageStatus) error {
	executor := r.getExecutor(exec)
	query := `UPDATE stages SET status = ? WHERE id = ?`
	result, err := executor.ExecContext(ctx, executor.Rebind(query), status, id)
	if err != nil {
		return fmt.Errorf("failed to update status of stage %s: %w", id, err)
	}
	return checkAffectedRows(result, ErrStageNotFound)
}

// ListImminentWithoutMatchups returns unfinished stages starting before the
// given time that have no matchups yet, earliest first.
func (r *postgresStageRepository) ListImminentWithoutMatchups(ctx context.Context, exec SQLExecutor, startsBefore time.Time) ([]*models.Stage, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT ` + stageColumns + `
		FROM stages s
		WHERE s.status <> ?
		AND s.starts_at <= ?
		AND NOT EXISTS (SELECT 1 FROM matchups m WHERE m.stage_id = s.id)
		ORDER BY s.starts_at ASC, s.id ASC`

	stages := make([]*models.Stage, 0)
	err := sqlx.SelectContext(ctx, executor, &stages, executor.Rebind(query), models.StageStatusFinished, utc(startsBefore))
	if err != nil {
		return nil, fmt.Errorf("failed to query imminent stages: %w", err)
	}
	return stages, nil
}

// ListFinishedWithPendingSuccessor pairs each finished stage with the next
// stage of its tournament when that next stage has no matchups.
func (r *postgresStageRepository) ListFinishedWithPendingSuccessor(ctx context.Context, exec SQLExecutor) ([]StagePair, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT f.id AS finished_stage_id, n.id AS next_stage_id
		FROM stages f
		JOIN stages n ON n.tournament_id = f.tournament_id AND n.starts_at > f.starts_at
		WHERE f.status = ?
		AND NOT EXISTS (
			SELECT 1 FROM stages b
			WHERE b.tournament_id = f.tournament_id
			AND b.starts_at > f.starts_at AND b.starts_at < n.starts_at
		)
		AND NOT EXISTS (SELECT 1 FROM matchups m WHERE m.stage_id = n.id)
		ORDER BY n.starts_at ASC, n.id ASC`

	pairs := make([]StagePair, 0)
	if err := sqlx.SelectContext(ctx, executor, &pairs, executor.Rebind(query), models.StageStatusFinished); err != nil {
		return nil, fmt.Errorf("failed to query finished stages with pending successors: %w", err)
	}
	return pairs, nil
}

func (r *postgresStageRepository) ListDueToStart(ctx context.Context, exec SQLExecutor, now time.Time) ([]*models.Stage, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + stageColumns + ` FROM stages WHERE status = ? AND starts_at <= ? ORDER BY starts_at ASC`

	stages := make([]*models.Stage, 0)
	if err := sqlx.SelectContext(ctx, executor, &stages, executor.Rebind(query), models.StageStatusUpcoming, utc(now)); err != nil {
		return nil, fmt.Errorf("failed to query stages due to start: %w", err)
	}
	return stages, nil
}

// ListCompletable returns ongoing stages whose matchups exist and are all finished.
func (r *postgresStageRepository) ListCompletable(ctx context.Context, exec SQLExecutor) ([]*models.Stage, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT ` + stageColumns + `
		FROM stages s
		WHERE s.status = ?
		AND EXISTS (SELECT 1 FROM matchups m WHERE m.stage_id = s.id)
		AND NOT EXISTS (SELECT 1 FROM matchups m WHERE m.stage_id = s.id AND m.finished = ?)
		ORDER BY s.starts_at ASC`

	stages := make([]*models.Stage, 0)
	if err := sqlx.SelectContext(ctx, executor, &stages, executor.Rebind(query), models.StageStatusOngoing, false); err != nil {
		return nil, fmt.Errorf("failed to query completable stages: %w", err)
	}
	return stages, nil
}

func (r *postgresStageRepository) handleStageError(err error) error {
	if err == nil {
		return nil
	}
	if code, constraint, ok := pqErrorCode(err); ok && code == pqForeignKeyViolation && constraint == "stages_tournament_id_fkey" {
		return ErrStageInvalidTournament
	}
	return fmt.Errorf("stage write failed: %w", err)
}
