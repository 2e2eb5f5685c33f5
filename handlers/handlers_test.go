package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Dosada05/tournament-progression/brackets"
	"github.com/Dosada05/tournament-progression/middleware"
	"github.com/Dosada05/tournament-progression/models"
	"github.com/Dosada05/tournament-progression/services"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBracketService struct {
	gotOpts services.GenerateOptions
	result  *services.GenerationResult
	bracket *services.StageBracket
	err     error
	calls   int
}

func (f *fakeBracketService) GenerateForStage(ctx context.Context, stageID uuid.UUID, opts services.GenerateOptions) (*services.GenerationResult, error) {
	f.calls++
	f.gotOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeBracketService) GetStageBracket(ctx context.Context, stageID uuid.UUID) (*services.StageBracket, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.bracket, nil
}

func (f *fakeBracketService) AdvancingRosters(ctx context.Context, stage *models.Stage, rule brackets.AdvanceRule) ([]services.CarriedRoster, error) {
	return nil, nil
}

func (f *fakeBracketService) RefreshSnapshot(ctx context.Context, stageID uuid.UUID) string {
	return ""
}

type fakeScoreService struct {
	got   services.RecordResultInput
	calls int
	err   error
}

func (f *fakeScoreService) RecordResult(ctx context.Context, input services.RecordResultInput) (*services.RecordResultOutput, error) {
	f.calls++
	f.got = input
	if f.err != nil {
		return nil, f.err
	}
	return &services.RecordResultOutput{MatchupID: input.MatchupID, WinnerRosterID: input.WinnerRosterID}, nil
}

var testUserID = uuid.New()

// withUser stands in for the auth middleware.
func withUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := middleware.ContextWithClaims(r.Context(), jwt.MapClaims{"user_id": testUserID.String(), "role": "organizer"})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func newRouter(stage *StageHandler, matchup *MatchupHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(withUser)
	r.Get("/stages/{stageID}/bracket", stage.GetBracket)
	r.Post("/stages/{stageID}/generate", stage.Generate)
	r.Post("/matchups/{matchupID}/result", matchup.RecordResult)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStageHandler_Generate(t *testing.T) {
	stageID := uuid.New()

	t.Run("defaults to seeded", func(t *testing.T) {
		svc := &fakeBracketService{result: &services.GenerationResult{StageID: stageID, Matchups: 7}}
		h := newRouter(NewStageHandler(svc), NewMatchupHandler(&fakeScoreService{}))

		rec := do(t, h, http.MethodPost, "/stages/"+stageID.String()+"/generate", "")
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "/stages/"+stageID.String()+"/bracket", rec.Header().Get("Location"))
		assert.True(t, svc.gotOpts.Seeded)
		assert.Equal(t, testUserID, svc.gotOpts.RequestedBy)

		var body struct {
			Generation services.GenerationResult `json:"generation"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, 7, body.Generation.Matchups)
	})

	t.Run("explicit options", func(t *testing.T) {
		svc := &fakeBracketService{result: &services.GenerationResult{StageID: stageID}}
		h := newRouter(NewStageHandler(svc), NewMatchupHandler(&fakeScoreService{}))

		rec := do(t, h, http.MethodPost, "/stages/"+stageID.String()+"/generate", `{"seeded":false,"shuffle":true,"bracket_size":16}`)
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.False(t, svc.gotOpts.Seeded)
		assert.True(t, svc.gotOpts.Shuffle)
		assert.Equal(t, 16, svc.gotOpts.BracketSize)
	})

	t.Run("skipped is not created", func(t *testing.T) {
		svc := &fakeBracketService{result: &services.GenerationResult{StageID: stageID, Skipped: true}}
		h := newRouter(NewStageHandler(svc), NewMatchupHandler(&fakeScoreService{}))

		rec := do(t, h, http.MethodPost, "/stages/"+stageID.String()+"/generate", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("Location"))
	})

	t.Run("negative bracket size", func(t *testing.T) {
		svc := &fakeBracketService{}
		h := newRouter(NewStageHandler(svc), NewMatchupHandler(&fakeScoreService{}))

		rec := do(t, h, http.MethodPost, "/stages/"+stageID.String()+"/generate", `{"bracket_size":-4}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Zero(t, svc.calls)
	})

	t.Run("unknown field", func(t *testing.T) {
		svc := &fakeBracketService{}
		h := newRouter(NewStageHandler(svc), NewMatchupHandler(&fakeScoreService{}))

		rec := do(t, h, http.MethodPost, "/stages/"+stageID.String()+"/generate", `{"format":"swiss"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		h := newRouter(NewStageHandler(&fakeBracketService{}), NewMatchupHandler(&fakeScoreService{}))
		rec := do(t, h, http.MethodPost, "/stages/not-a-uuid/generate", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestStageHandler_ErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{services.ErrStageNotFound, http.StatusNotFound},
		{services.ErrStageAlreadyGenerated, http.StatusConflict},
		{services.ErrUnsupportedStageType, http.StatusNotImplemented},
		{errors.Join(errors.New("failed to generate bracket"), brackets.ErrBracketTooSmall), http.StatusUnprocessableEntity},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	stageID := uuid.New()
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			h := newRouter(NewStageHandler(&fakeBracketService{err: tc.err}), NewMatchupHandler(&fakeScoreService{}))
			rec := do(t, h, http.MethodPost, "/stages/"+stageID.String()+"/generate", "")
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestStageHandler_GetBracket(t *testing.T) {
	stageID := uuid.New()
	svc := &fakeBracketService{bracket: &services.StageBracket{
		Stage:  &models.Stage{ID: stageID, Type: models.StageTypeKnockout},
		Rounds: []services.RoundView{{Round: models.Round{Number: 1, Name: "Final"}, Matchups: []services.MatchupView{}}},
	}}
	h := newRouter(NewStageHandler(svc), NewMatchupHandler(&fakeScoreService{}))

	rec := do(t, h, http.MethodGet, "/stages/"+stageID.String()+"/bracket", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Bracket struct {
			Stage  models.Stage `json:"stage"`
			Rounds []struct {
				Name string `json:"name"`
			} `json:"rounds"`
		} `json:"bracket"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, stageID, body.Bracket.Stage.ID)
	require.Len(t, body.Bracket.Rounds, 1)
	assert.Equal(t, "Final", body.Bracket.Rounds[0].Name)
}

func TestMatchupHandler_RecordResult(t *testing.T) {
	matchupID := uuid.New()
	winner := uuid.New()
	loser := uuid.New()

	t.Run("ok", func(t *testing.T) {
		svc := &fakeScoreService{}
		h := newRouter(NewStageHandler(&fakeBracketService{}), NewMatchupHandler(svc))

		body := `{"winner_roster_id":"` + winner.String() + `","points":{"` + winner.String() + `":3,"` + loser.String() + `":1}}`
		rec := do(t, h, http.MethodPost, "/matchups/"+matchupID.String()+"/result", body)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, matchupID, svc.got.MatchupID)
		assert.Equal(t, winner, svc.got.WinnerRosterID)
		assert.Equal(t, map[uuid.UUID]int{winner: 3, loser: 1}, svc.got.Points)
		assert.Equal(t, testUserID, svc.got.RecordedBy)
	})

	t.Run("missing winner", func(t *testing.T) {
		svc := &fakeScoreService{}
		h := newRouter(NewStageHandler(&fakeBracketService{}), NewMatchupHandler(svc))

		rec := do(t, h, http.MethodPost, "/matchups/"+matchupID.String()+"/result", `{}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Zero(t, svc.calls)
	})

	t.Run("negative points", func(t *testing.T) {
		svc := &fakeScoreService{}
		h := newRouter(NewStageHandler(&fakeBracketService{}), NewMatchupHandler(svc))

		body := `{"winner_roster_id":"` + winner.String() + `","points":{"` + winner.String() + `":-1}}`
		rec := do(t, h, http.MethodPost, "/matchups/"+matchupID.String()+"/result", body)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Zero(t, svc.calls)
	})

	t.Run("empty body", func(t *testing.T) {
		h := newRouter(NewStageHandler(&fakeBracketService{}), NewMatchupHandler(&fakeScoreService{}))
		rec := do(t, h, http.MethodPost, "/matchups/"+matchupID.String()+"/result", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	errCases := []struct {
		err    error
		status int
	}{
		{services.ErrMatchupNotFound, http.StatusNotFound},
		{services.ErrMatchupAlreadyFinished, http.StatusConflict},
		{services.ErrMatchupNotReady, http.StatusConflict},
		{services.ErrParentMatchupFull, http.StatusConflict},
		{services.ErrRosterNotInMatchup, http.StatusUnprocessableEntity},
	}
	for _, tc := range errCases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			h := newRouter(NewStageHandler(&fakeBracketService{}), NewMatchupHandler(&fakeScoreService{err: tc.err}))
			body := `{"winner_roster_id":"` + winner.String() + `"}`
			rec := do(t, h, http.MethodPost, "/matchups/"+matchupID.String()+"/result", body)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

type fakePinger struct{ err error }

func (p fakePinger) PingContext(ctx context.Context) error { return p.err }

func TestHealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler(fakePinger{}).Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	NewHealthHandler(fakePinger{err: errors.New("down")}).Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandlers_RequireUser(t *testing.T) {
	bracketSvc := &fakeBracketService{result: &services.GenerationResult{}}
	scoreSvc := &fakeScoreService{}
	stage := NewStageHandler(bracketSvc)
	matchup := NewMatchupHandler(scoreSvc)

	r := chi.NewRouter()
	r.Post("/stages/{stageID}/generate", stage.Generate)
	r.Post("/matchups/{matchupID}/result", matchup.RecordResult)

	rec := do(t, r, http.MethodPost, "/stages/"+uuid.New().String()+"/generate", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	body := `{"winner_roster_id":"` + uuid.New().String() + `"}`
	rec = do(t, r, http.MethodPost, "/matchups/"+uuid.New().String()+"/result", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.Zero(t, bracketSvc.calls)
	assert.Zero(t, scoreSvc.calls)
}
