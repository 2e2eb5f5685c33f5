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
	ErrTournamentNotFound = errors.New("tournament not found")
)

type TournamentRepository interface {
	Create(ctx context.Context, exec SQLExecutor, tournament *models.Tournament) error
	GetByID(ctx context.Context, exec SQLExecutor, id uuid.UUID) (*models.Tournament, error)
}

type postgresTournamentRepository struct {
	db *sqlx.DB
}

func NewPostgresTournamentRepository(db *sqlx.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

func (r *postgresTournamentRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresTournamentRepository) Create(ctx context.Context, exec SQLExecutor, t *models.Tournament) error {
	executor := r.getExecutor(exec)
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.CreatedAt = utc(time.Now())

	query := `INSERT INTO tournaments (id, name, category_id, created_at) VALUES (?, ?, ?, ?)`
	_, err := executor.ExecContext(ctx, executor.Rebind(query), t.ID, t.Name, t.CategoryID, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create tournament: %w", err)
	}
	return nil
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, exec SQLExecutor, id uuid.UUID) (*models.Tournament, error) {
	executor := r.getExecutor(exec)
	query := `SELECT id, name, category_id, created_at FROM tournaments WHERE id = ?`

	t := &models.Tournament{}
	if err := sqlx.GetContext(ctx, executor, t, executor.Rebind(query), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to get tournament %s: %w", id, err)
	}
	return t, nil
}
