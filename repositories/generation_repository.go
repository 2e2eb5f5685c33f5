package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/Dosada05/tournament-progression/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// GenerationRepository records which stages already had their bracket written.
type GenerationRepository interface {
	// Claim reports false when another generation already claimed the stage.
	Claim(ctx context.Context, exec SQLExecutor, stageID uuid.UUID, stageType models.StageType, at time.Time) (bool, error)
	IsClaimed(ctx context.Context, exec SQLExecutor, stageID uuid.UUID) (bool, error)
}

type postgresGenerationRepository struct {
	db *sqlx.DB
}

func NewPostgresGenerationRepository(db *sqlx.DB) GenerationRepository {
	return &postgresGenerationRepository{db: db}
}

func (r *postgresGenerationRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresGenerationRepository) Claim(ctx context.Context, exec SQLExecutor, stageID uuid.UUID, stageType models.StageType, at time.Time) (bool, error) {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO stage_generations (stage_id, stage_type, generated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (stage_id) DO NOTHING`

	result, err := executor.ExecContext(ctx, executor.Rebind(query), stageID, stageType, utc(at))
	if err != nil {
		return false, fmt.Errorf("failed to claim generation of stage %s: %w", stageID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check affected rows: %w", err)
	}
	return affected == 1, nil
}

func (r *postgresGenerationRepository) IsClaimed(ctx context.Context, exec SQLExecutor, stageID uuid.UUID) (bool, error) {
	executor := r.getExecutor(exec)
	var count int
	query := `SELECT COUNT(*) FROM stage_generations WHERE stage_id = ?`
	if err := sqlx.GetContext(ctx, executor, &count, executor.Rebind(query), stageID); err != nil {
		return false, fmt.Errorf("failed to check generation of stage %s: %w", stageID, err)
	}
	return count > 0, nil
}
