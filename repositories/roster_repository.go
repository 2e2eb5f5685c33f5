package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/tournament-progression/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var (
	ErrRosterConflict     = errors.New("roster conflict: participation already has a roster in this stage")
	ErrRosterInvalidStage = errors.New("roster stage conflict or invalid")
)

type RosterRepository interface {
	Create(ctx context.Context, exec SQLExecutor, roster *models.Roster) error
	CreateBatch(ctx context.Context, exec SQLExecutor, rosters []models.Roster) error
	CreateMembers(ctx context.Context, exec SQLExecutor, members []models.RosterMember) error
	ListByStage(ctx context.Context, exec SQLExecutor, stageID uuid.UUID) ([]*models.Roster, error)
	ListMembers(ctx context.Context, exec SQLExecutor, rosterIDs []uuid.UUID) ([]models.RosterMember, error)
	ListMemberRatings(ctx context.Context, exec SQLExecutor, rosterIDs []uuid.UUID, categoryID uuid.UUID, defaultElo int) ([]models.MemberRating, error)
	UpsertRating(ctx context.Context, exec SQLExecutor, rating models.PlayerRating) error
}

type postgresRosterRepository struct {
	db *sqlx.DB
}

func NewPostgresRosterRepository(db *sqlx.DB) RosterRepository {
	return &postgresRosterRepository{db: db}
}

func (r *postgresRosterRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresRosterRepository) Create(ctx context.Context, exec SQLExecutor, roster *models.Roster) error {
	rosters := []models.Roster{*roster}
	if err := r.CreateBatch(ctx, exec, rosters); err != nil {
		return err
	}
	*roster = rosters[0]

	members := make([]models.RosterMember, 0, len(roster.Members))
	for _, m := range roster.Members {
		members = append(members, models.RosterMember{RosterID: roster.ID, UserID: m.UserID})
	}
	return r.CreateMembers(ctx, exec, members)
}

// CreateBatch inserts rosters, filling in ids and timestamps in place.
func (r *postgresRosterRepository) CreateBatch(ctx context.Context, exec SQLExecutor, rosters []models.Roster) error {
	executor := r.getExecutor(exec)
	now := utc(time.Now())

	args := make([][]interface{}, 0, len(rosters))
	for i := range rosters {
		if rosters[i].ID == uuid.Nil {
			rosters[i].ID = uuid.New()
		}
		rosters[i].CreatedAt = now
		args = append(args, []interface{}{rosters[i].ID, rosters[i].ParticipationID, rosters[i].StageID, rosters[i].CreatedAt})
	}

	query := `INSERT INTO rosters (id, participation_id, stage_id, created_at) VALUES (?, ?, ?, ?)`
	if err := execEach(ctx, executor, query, args); err != nil {
		if isUniqueViolation(err) {
			return ErrRosterConflict
		}
		if code, constraint, ok := pqErrorCode(err); ok && code == pqForeignKeyViolation && constraint == "rosters_stage_id_fkey" {
			return ErrRosterInvalidStage
		}
		return fmt.Errorf("failed to create rosters: %w", err)
	}
	return nil
}

func (r *postgresRosterRepository) CreateMembers(ctx context.Context, exec SQLExecutor, members []models.RosterMember) error {
	if len(members) == 0 {
		return nil
	}
	executor := r.getExecutor(exec)

	args := make([][]interface{}, 0, len(members))
	for _, m := range members {
		args = append(args, []interface{}{m.RosterID, m.UserID})
	}
	query := `INSERT INTO roster_members (roster_id, user_id) VALUES (?, ?)`
	if err := execEach(ctx, executor, query, args); err != nil {
		return fmt.Errorf("failed to create roster members: %w", err)
	}
	return nil
}

// ListByStage returns the stage's rosters in registration order.
func (r *postgresRosterRepository) ListByStage(ctx context.Context, exec SQLExecutor, stageID uuid.UUID) ([]*models.Roster, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, participation_id, stage_id, created_at
		FROM rosters
		WHERE stage_id = ?
		ORDER BY created_at ASC, id ASC`

	rosters := make([]*models.Roster, 0)
	if err := sqlx.SelectContext(ctx, executor, &rosters, executor.Rebind(query), stageID); err != nil {
		return nil, fmt.Errorf("failed to list rosters of stage %s: %w", stageID, err)
	}
	return rosters, nil
}

func (r *postgresRosterRepository) ListMembers(ctx context.Context, exec SQLExecutor, rosterIDs []uuid.UUID) ([]models.RosterMember, error) {
	members := make([]models.RosterMember, 0)
	if len(rosterIDs) == 0 {
		return members, nil
	}
	executor := r.getExecutor(exec)

	query, args, err := sqlx.In(`
		SELECT roster_id, user_id
		FROM roster_members
		WHERE roster_id IN (?)
		ORDER BY roster_id, user_id`, rosterIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build roster members query: %w", err)
	}
	if err := sqlx.SelectContext(ctx, executor, &members, executor.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list roster members: %w", err)
	}
	return members, nil
}

// ListMemberRatings returns one rating per roster member in the category;
// members without a rating get defaultElo.
func (r *postgresRosterRepository) ListMemberRatings(ctx context.Context, exec SQLExecutor, rosterIDs []uuid.UUID, categoryID uuid.UUID, defaultElo int) ([]models.MemberRating, error) {
	ratings := make([]models.MemberRating, 0)
	if len(rosterIDs) == 0 {
		return ratings, nil
	}
	executor := r.getExecutor(exec)

	query, args, err := sqlx.In(`
		SELECT rm.roster_id, rm.user_id, COALESCE(pr.elo, ?) AS elo
		FROM roster_members rm
		LEFT JOIN player_ratings pr ON pr.user_id = rm.user_id AND pr.category_id = ?
		WHERE rm.roster_id IN (?)
		ORDER BY rm.roster_id, rm.user_id`, defaultElo, categoryID, rosterIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build member ratings query: %w", err)
	}
	if err := sqlx.SelectContext(ctx, executor, &ratings, executor.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list member ratings: %w", err)
	}
	return ratings, nil
}

func (r *postgresRosterRepository) UpsertRating(ctx context.Context, exec SQLExecutor, rating models.PlayerRating) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO player_ratings (user_id, category_id, elo)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id, category_id) DO UPDATE SET elo = excluded.elo`
	if _, err := executor.ExecContext(ctx, executor.Rebind(query), rating.UserID, rating.CategoryID, rating.Elo); err != nil {
		return fmt.Errorf("failed to upsert rating for user %s: %w", rating.UserID, err)
	}
	return nil
}
