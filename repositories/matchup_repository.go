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
	ErrMatchupNotFound        = errors.New("matchup not found")
	ErrMatchupAlreadyFinished = errors.New("matchup already finished")
	ErrRosterAlreadyInMatchup = errors.New("roster already seated in matchup")
	ErrRosterNotInMatchup     = errors.New("roster is not seated in matchup")
)

const matchupColumns = `id, stage_id, round_id, parent_matchup_id, starts_at, finished, matchup_type, created_at`

type MatchupRepository interface {
	CountByStage(ctx context.Context, exec SQLExecutor, stageID uuid.UUID) (int, error)
	CountUnfinishedByStage(ctx context.Context, exec SQLExecutor, stageID uuid.UUID) (int, error)

	CreateRounds(ctx context.Context, exec SQLExecutor, rounds []models.Round) error
	CreateMatchups(ctx context.Context, exec SQLExecutor, matchups []models.Matchup) error
	CreateRosterToMatchups(ctx context.Context, exec SQLExecutor, rows []models.RosterToMatchup) error
	CreateRosterToRounds(ctx context.Context, exec SQLExecutor, rows []models.RosterToRound) error

	GetByID(ctx context.Context, exec SQLExecutor, id uuid.UUID) (*models.Matchup, error)
	ListRoundsByStage(ctx context.Context, exec SQLExecutor, stageID uuid.UUID) ([]models.Round, error)
	ListByStage(ctx context.Context, exec SQLExecutor, stageID uuid.UUID) ([]models.Matchup, error)
	ListRosterToMatchupsByStage(ctx context.Context, exec SQLExecutor, stageID uuid.UUID) ([]models.RosterToMatchup, error)
	ListRosterToMatchupsByMatchup(ctx context.Context, exec SQLExecutor, matchupID uuid.UUID) ([]models.RosterToMatchup, error)
	ListRosterToRoundsByStage(ctx context.Context, exec SQLExecutor, stageID uuid.UUID) ([]models.RosterToRound, error)

	MarkFinished(ctx context.Context, exec SQLExecutor, id uuid.UUID) error
	SetWinner(ctx context.Context, exec SQLExecutor, matchupID, rosterID uuid.UUID) error
	AddRoster(ctx context.Context, exec SQLExecutor, matchupID, rosterID uuid.UUID) error
}

type postgresMatchupRepository struct {
	db *sqlx.DB
}

func NewPostgresMatchupRepository(db *sqlx.DB) MatchupRepository {
	return &postgresMatchupRepository{db: db}
}

func (r *postgresMatchupRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresMatchupRepository) CountByStage(ctx context.Context, exec SQLExecutor, stageID uuid.UUID) (int, error) {
	executor := r.getExecutor(exec)
	var count int
	query := `SELECT COUNT(*) FROM matchups WHERE stage_id = ?`
	if err := sqlx.GetContext(ctx, executor, &count, executor.Rebind(query), stageID); err != nil {
		return 0, fmt.Errorf("failed to count matchups of stage %s: %w", stageID, err)
	}
	return count, nil
}

func (r *postgresMatchupRepository) CountUnfinishedByStage(ctx context.Context, exec SQLExecutor, stageID uuid.UUID) (int, error) {
	executor := r.getExecutor(exec)
	var count int
	query := `SELECT COUNT(*) FROM matchups WHERE stage_id = ? AND finished = ?`
	if err := sqlx.GetContext(ctx, executor, &count, executor.Rebind(query), stageID, false); err != nil {
		return 0, fmt.Errorf("failed to count unfinished matchups of stage %s: %w", stageID, err)
	}
	return count, nil
}

func (r *postgresMatchupRepository) CreateRounds(ctx context.Context, exec SQLExecutor, rounds []models.Round) error {
	executor := r.getExecutor(exec)
	now := utc(time.Now())
	args := make([][]interface{}, 0, len(rounds))
	for i := range rounds {
		rounds[i].CreatedAt = now
		rd := rounds[i]
		args = append(args, []interface{}{rd.ID, rd.StageID, rd.Number, rd.Name, rd.CreatedAt})
	}
	query := `INSERT INTO rounds (id, stage_id, number, name, created_at) VALUES (?, ?, ?, ?, ?)`
	if err := execEach(ctx, executor, query, args); err != nil {
		return fmt.Errorf("failed to create rounds: %w", err)
	}
	return nil
}

// CreateMatchups expects parents to precede their children in the slice.
func (r *postgresMatchupRepository) CreateMatchups(ctx context.Context, exec SQLExecutor, matchups []models.Matchup) error {
	executor := r.getExecutor(exec)
	now := utc(time.Now())
	args := make([][]interface{}, 0, len(matchups))
	for i := range matchups {
		matchups[i].CreatedAt = now
		matchups[i].StartsAt = utc(matchups[i].StartsAt)
		m := matchups[i]
		args = append(args, []interface{}{m.ID, m.StageID, m.RoundID, m.ParentMatchupID, m.StartsAt, m.Finished, m.Type, m.CreatedAt})
	}
	query := `INSERT INTO matchups (` + matchupColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if err := execEach(ctx, executor, query, args); err != nil {
		return fmt.Errorf("failed to create matchups: %w", err)
	}
	return nil
}

func (r *postgresMatchupRepository) CreateRosterToMatchups(ctx context.Context, exec SQLExecutor, rows []models.RosterToMatchup) error {
	executor := r.getExecutor(exec)
	args := make([][]interface{}, 0, len(rows))
	for _, row := range rows {
		args = append(args, []interface{}{row.ID, row.RosterID, row.MatchupID, row.IsWinner})
	}
	query := `INSERT INTO roster_to_matchups (id, roster_id, matchup_id, is_winner) VALUES (?, ?, ?, ?)`
	if err := execEach(ctx, executor, query, args); err != nil {
		if isUniqueViolation(err) {
			return ErrRosterAlreadyInMatchup
		}
		return fmt.Errorf("failed to seat rosters: %w", err)
	}
	return nil
}

func (r *postgresMatchupRepository) CreateRosterToRounds(ctx context.Context, exec SQLExecutor, rows []models.RosterToRound) error {
	executor := r.getExecutor(exec)
	args := make([][]interface{}, 0, len(rows))
	for _, row := range rows {
		args = append(args, []interface{}{row.ID, row.RosterID, row.RoundID})
	}
	query := `INSERT INTO roster_to_rounds (id, roster_id, round_id) VALUES (?, ?, ?)`
	if err := execEach(ctx, executor, query, args); err != nil {
		return fmt.Errorf("failed to create round memberships: %w", err)
	}
	return nil
}

// GetByID locks the row on postgres; call it inside a transaction when the
// matchup is about to be updated.
func (r *postgresMatchupRepository) GetByID(ctx context.Context, exec SQLExecutor, id uuid.UUID) (*models.Matchup, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + matchupColumns + ` FROM matchups WHERE id = ?` + forUpdate(executor)

	m := &models.Matchup{}
	if err := sqlx.GetContext(ctx, executor, m, executor.Rebind(query), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchupNotFound
		}
		return nil, fmt.Errorf("failed to get matchup %s: %w", id, err)
	}
	return m, nil
}

func (r *postgresMatchupRepository) ListRoundsByStage(ctx context.Context, exec SQLExecutor, stageID uuid.UUID) ([]models.Round, error) {
	executor := r.getExecutor(exec)
	query := `SELECT id, stage_id, number, name, created_at FROM rounds WHERE stage_id = ? ORDER BY number ASC`

	rounds := make([]models.Round, 0)
	if err := sqlx.SelectContext(ctx, executor, &rounds, executor.Rebind(query), stageID); err != nil {
		return nil, fmt.Errorf("failed to list rounds of stage %s: %w", stageID, err)
	}
	return rounds, nil
}

func (r *postgresMatchupRepository) ListByStage(ctx context.Context, exec SQLExecutor, stageID uuid.UUID) ([]models.Matchup, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT m.id, m.stage_id, m.round_id, m.parent_matchup_id, m.starts_at, m.finished, m.matchup_type, m.created_at
		FROM matchups m
		JOIN rounds rd ON rd.id = m.round_id
		WHERE m.stage_id = ?
		ORDER BY rd.number ASC, m.starts_at ASC, m.id ASC`

	matchups := make([]models.Matchup, 0)
	if err := sqlx.SelectContext(ctx, executor, &matchups, executor.Rebind(query), stageID); err != nil {
		return nil, fmt.Errorf("failed to list matchups of stage %s: %w", stageID, err)
	}
	return matchups, nil
}

func (r *postgresMatchupRepository) ListRosterToMatchupsByStage(ctx context.Context, exec SQLExecutor, stageID uuid.UUID) ([]models.RosterToMatchup, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT rtm.id, rtm.roster_id, rtm.matchup_id, rtm.is_winner
		FROM roster_to_matchups rtm
		JOIN matchups m ON m.id = rtm.matchup_id
		WHERE m.stage_id = ?
		ORDER BY rtm.matchup_id, rtm.id`

	rows := make([]models.RosterToMatchup, 0)
	if err := sqlx.SelectContext(ctx, executor, &rows, executor.Rebind(query), stageID); err != nil {
		return nil, fmt.Errorf("failed to list matchup rosters of stage %s: %w", stageID, err)
	}
	return rows, nil
}

func (r *postgresMatchupRepository) ListRosterToMatchupsByMatchup(ctx context.Context, exec SQLExecutor, matchupID uuid.UUID) ([]models.RosterToMatchup, error) {
	executor := r.getExecutor(exec)
	query := `SELECT id, roster_id, matchup_id, is_winner FROM roster_to_matchups WHERE matchup_id = ? ORDER BY id`

	rows := make([]models.RosterToMatchup, 0)
	if err := sqlx.SelectContext(ctx, executor, &rows, executor.Rebind(query), matchupID); err != nil {
		return nil, fmt.Errorf("failed to list rosters of matchup %s: %w", matchupID, err)
	}
	return rows, nil
}

func (r *postgresMatchupRepository) ListRosterToRoundsByStage(ctx context.Context, exec SQLExecutor, stageID uuid.UUID) ([]models.RosterToRound, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT rtr.id, rtr.roster_id, rtr.round_id
		FROM roster_to_rounds rtr
		JOIN rounds rd ON rd.id = rtr.round_id
		WHERE rd.stage_id = ?
		ORDER BY rd.number, rtr.id`

	rows := make([]models.RosterToRound, 0)
	if err := sqlx.SelectContext(ctx, executor, &rows, executor.Rebind(query), stageID); err != nil {
		return nil, fmt.Errorf("failed to list round memberships of stage %s: %w", stageID, err)
	}
	return rows, nil
}

// MarkFinished only flips an unfinished matchup, so a second result for the
// same matchup fails with ErrMatchupAlreadyFinished.
func (r *postgresMatchupRepository) MarkFinished(ctx context.Context, exec SQLExecutor, id uuid.UUID) error {
	executor := r.getExecutor(exec)
	query := `UPDATE matchups SET finished = ? WHERE id = ? AND finished = ?`
	result, err := executor.ExecContext(ctx, executor.Rebind(query), true, id, false)
	if err != nil {
		return fmt.Errorf("failed to finish matchup %s: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchupAlreadyFinished)
}

// SetWinner flags rosterID as the only winner of the matchup.
func (r *postgresMatchupRepository) SetWinner(ctx context.Context, exec SQLExecutor, matchupID, rosterID uuid.UUID) error {
	executor := r.getExecutor(exec)

	check := `SELECT COUNT(*) FROM roster_to_matchups WHERE matchup_id = ? AND roster_id = ?`
	var seated int
	if err := sqlx.GetContext(ctx, executor, &seated, executor.Rebind(check), matchupID, rosterID); err != nil {
		return fmt.Errorf("failed to check rosters of matchup %s: %w", matchupID, err)
	}
	if seated == 0 {
		return ErrRosterNotInMatchup
	}

	query := `UPDATE roster_to_matchups SET is_winner = (roster_id = ?) WHERE matchup_id = ?`
	if _, err := executor.ExecContext(ctx, executor.Rebind(query), rosterID, matchupID); err != nil {
		return fmt.Errorf("failed to set winner of matchup %s: %w", matchupID, err)
	}
	return nil
}

func (r *postgresMatchupRepository) AddRoster(ctx context.Context, exec SQLExecutor, matchupID, rosterID uuid.UUID) error {
	return r.CreateRosterToMatchups(ctx, exec, []models.RosterToMatchup{{
		ID:        uuid.New(),
		RosterID:  rosterID,
		MatchupID: matchupID,
	}})
}
