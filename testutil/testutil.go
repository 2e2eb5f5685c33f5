// Package testutil sets up an in-memory database with the production schema
// and inserts fixtures with plain SQL.
package testutil

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Dosada05/tournament-progression/db"
	"github.com/Dosada05/tournament-progression/models"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

// NewTestDB opens a private in-memory SQLite database and applies the
// embedded migrations. Everything runs over one connection, so a test must
// route every query of an open transaction through that transaction.
func NewTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := sqlx.Connect("sqlite3", "file::memory:")
	require.NoError(t, err, "Failed to connect to in-memory DB")
	database.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = database.Close() })

	_, err = database.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)

	driver, err := sqlite3.WithInstance(database.DB, &sqlite3.Config{})
	require.NoError(t, err, "Failed to create migrate driver instance")
	require.NoError(t, db.MigrateUp(driver, "sqlite3"), "Failed to apply migrations")

	return database
}

func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// BaseTime is a fixed, microsecond aligned instant used by fixtures.
var BaseTime = time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC)

func CreateTournament(t *testing.T, database *sqlx.DB) *models.Tournament {
	t.Helper()
	tr := &models.Tournament{
		ID:         uuid.New(),
		Name:       "Spring Cup",
		CategoryID: uuid.New(),
		CreatedAt:  BaseTime,
	}
	_, err := database.Exec(database.Rebind(`INSERT INTO tournaments (id, name, category_id, created_at) VALUES (?, ?, ?, ?)`),
		tr.ID, tr.Name, tr.CategoryID, tr.CreatedAt)
	require.NoError(t, err)
	return tr
}

func CreateStage(t *testing.T, database *sqlx.DB, tournamentID uuid.UUID, stageType models.StageType, startsAt time.Time) *models.Stage {
	t.Helper()
	s := &models.Stage{
		ID:           uuid.New(),
		TournamentID: tournamentID,
		Name:         string(stageType) + " stage",
		Type:         stageType,
		Status:       models.StageStatusUpcoming,
		StartsAt:     startsAt,
		EndsAt:       startsAt.Add(7 * 24 * time.Hour),
		MinTeamSize:  1,
		MaxTeamSize:  1,
		CreatedAt:    BaseTime,
	}
	_, err := database.Exec(database.Rebind(`
		INSERT INTO stages (id, tournament_id, name, stage_type, status, starts_at, ends_at,
			min_team_size, max_team_size, max_participants, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		s.ID, s.TournamentID, s.Name, s.Type, s.Status, s.StartsAt, s.EndsAt,
		s.MinTeamSize, s.MaxTeamSize, s.MaxParticipants, s.CreatedAt)
	require.NoError(t, err)
	return s
}

// CreateRoster inserts a roster with one member per rating and stores the
// member ratings in the category. A zero rating leaves the member unrated.
// Rosters are spaced one second apart so registration order is stable.
func CreateRoster(t *testing.T, database *sqlx.DB, stageID, categoryID uuid.UUID, ratings ...int) *models.Roster {
	t.Helper()

	var count int
	require.NoError(t, database.Get(&count, database.Rebind(`SELECT COUNT(*) FROM rosters WHERE stage_id = ?`), stageID))

	r := &models.Roster{
		ID:              uuid.New(),
		ParticipationID: uuid.New(),
		StageID:         stageID,
		CreatedAt:       BaseTime.Add(time.Duration(count) * time.Second),
	}
	_, err := database.Exec(database.Rebind(`INSERT INTO rosters (id, participation_id, stage_id, created_at) VALUES (?, ?, ?, ?)`),
		r.ID, r.ParticipationID, r.StageID, r.CreatedAt)
	require.NoError(t, err)

	for _, elo := range ratings {
		userID := uuid.New()
		_, err := database.Exec(database.Rebind(`INSERT INTO roster_members (roster_id, user_id) VALUES (?, ?)`), r.ID, userID)
		require.NoError(t, err)
		r.Members = append(r.Members, models.RosterMember{RosterID: r.ID, UserID: userID})
		if elo == 0 {
			continue
		}
		_, err = database.Exec(database.Rebind(`INSERT INTO player_ratings (user_id, category_id, elo) VALUES (?, ?, ?)`), userID, categoryID, elo)
		require.NoError(t, err)
	}
	return r
}

func SetStageStatus(t *testing.T, database *sqlx.DB, stageID uuid.UUID, status models.StageStatus) {
	t.Helper()
	_, err := database.Exec(database.Rebind(`UPDATE stages SET status = ? WHERE id = ?`), status, stageID)
	require.NoError(t, err)
}

func SetMaxParticipants(t *testing.T, database *sqlx.DB, stageID uuid.UUID, max int) {
	t.Helper()
	_, err := database.Exec(database.Rebind(`UPDATE stages SET max_participants = ? WHERE id = ?`), max, stageID)
	require.NoError(t, err)
}
