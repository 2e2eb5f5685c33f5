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

type ScoreRepository interface {
	CreateBatch(ctx context.Context, exec SQLExecutor, scores []models.Score) error
	CreateScoreToRosters(ctx context.Context, exec SQLExecutor, rows []models.ScoreToRoster) error
	NextNumber(ctx context.Context, exec SQLExecutor, matchupID uuid.UUID) (int, error)
	GetOpenScore(ctx context.Context, exec SQLExecutor, matchupID uuid.UUID) (*models.Score, error)
	ListPointsByStage(ctx context.Context, exec SQLExecutor, stageID uuid.UUID) ([]models.RosterPoints, error)
}

type postgresScoreRepository struct {
	db *sqlx.DB
}

func NewPostgresScoreRepository(db *sqlx.DB) ScoreRepository {
	return &postgresScoreRepository{db: db}
}

func (r *postgresScoreRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresScoreRepository) CreateBatch(ctx context.Context, exec SQLExecutor, scores []models.Score) error {
	executor := r.getExecutor(exec)
	now := utc(time.Now())
	args := make([][]interface{}, 0, len(scores))
	for i := range scores {
		if scores[i].ID == uuid.Nil {
			scores[i].ID = uuid.New()
		}
		scores[i].CreatedAt = now
		s := scores[i]
		args = append(args, []interface{}{s.ID, s.MatchupID, s.Number, s.CreatedAt})
	}
	query := `INSERT INTO scores (id, matchup_id, number, created_at) VALUES (?, ?, ?, ?)`
	if err := execEach(ctx, executor, query, args); err != nil {
		return fmt.Errorf("failed to create scores: %w", err)
	}
	return nil
}

func (r *postgresScoreRepository) CreateScoreToRosters(ctx context.Context, exec SQLExecutor, rows []models.ScoreToRoster) error {
	executor := r.getExecutor(exec)
	args := make([][]interface{}, 0, len(rows))
	for i := range rows {
		if rows[i].ID == uuid.Nil {
			rows[i].ID = uuid.New()
		}
		row := rows[i]
		args = append(args, []interface{}{row.ID, row.ScoreID, row.RosterID, row.Points})
	}
	query := `INSERT INTO score_to_rosters (id, score_id, roster_id, points) VALUES (?, ?, ?, ?)`
	if err := execEach(ctx, executor, query, args); err != nil {
		return fmt.Errorf("failed to record points: %w", err)
	}
	return nil
}

// NextNumber returns the number the next score of the matchup should use.
func (r *postgresScoreRepository) NextNumber(ctx context.Context, exec SQLExecutor, matchupID uuid.UUID) (int, error) {
	executor := r.getExecutor(exec)
	var next int
	query := `SELECT COALESCE(MAX(number), 0) + 1 FROM scores WHERE matchup_id = ?`
	if err := sqlx.GetContext(ctx, executor, &next, executor.Rebind(query), matchupID); err != nil {
		return 0, fmt.Errorf("failed to get next score number for matchup %s: %w", matchupID, err)
	}
	return next, nil
}

// GetOpenScore returns the lowest numbered score of the matchup that has no
// points recorded yet, or nil when every score is filled.
func (r *postgresScoreRepository) GetOpenScore(ctx context.Context, exec SQLExecutor, matchupID uuid.UUID) (*models.Score, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT s.id, s.matchup_id, s.number, s.created_at
		FROM scores s
		WHERE s.matchup_id = ?
		AND NOT EXISTS (SELECT 1 FROM score_to_rosters str WHERE str.score_id = s.id)
		ORDER BY s.number ASC
		LIMIT 1`

	score := &models.Score{}
	if err := sqlx.GetContext(ctx, executor, score, executor.Rebind(query), matchupID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get open score of matchup %s: %w", matchupID, err)
	}
	return score, nil
}

// ListPointsByStage sums every roster's points per matchup of the stage.
func (r *postgresScoreRepository) ListPointsByStage(ctx context.Context, exec SQLExecutor, stageID uuid.UUID) ([]models.RosterPoints, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT s.matchup_id, str.roster_id, SUM(str.points) AS points
		FROM score_to_rosters str
		JOIN scores s ON s.id = str.score_id
		JOIN matchups m ON m.id = s.matchup_id
		WHERE m.stage_id = ?
		GROUP BY s.matchup_id, str.roster_id`

	points := make([]models.RosterPoints, 0)
	if err := sqlx.SelectContext(ctx, executor, &points, executor.Rebind(query), stageID); err != nil {
		return nil, fmt.Errorf("failed to list points of stage %s: %w", stageID, err)
	}
	return points, nil
}
