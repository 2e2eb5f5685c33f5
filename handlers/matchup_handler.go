package handlers

import (
	"net/http"

	"github.com/Dosada05/tournament-progression/middleware"
	"github.com/Dosada05/tournament-progression/services"
	"github.com/google/uuid"
)

type MatchupHandler struct {
	scoreService services.ScoreService
}

func NewMatchupHandler(scoreService services.ScoreService) *MatchupHandler {
	return &MatchupHandler{scoreService: scoreService}
}

type recordResultRequest struct {
	WinnerRosterID uuid.UUID         `json:"winner_roster_id"`
	Points         map[uuid.UUID]int `json:"points"`
}

func (h *MatchupHandler) RecordResult(w http.ResponseWriter, r *http.Request) {
	matchupID, err := readUUIDParam(r, "matchupID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	var input recordResultRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.WinnerRosterID == uuid.Nil {
		failedValidationResponse(w, r, map[string]string{"winner_roster_id": "is required"})
		return
	}
	for rosterID, points := range input.Points {
		if points < 0 {
			failedValidationResponse(w, r, map[string]string{"points": "points of roster " + rosterID.String() + " must not be negative"})
			return
		}
	}

	result, err := h.scoreService.RecordResult(r.Context(), services.RecordResultInput{
		MatchupID:      matchupID,
		WinnerRosterID: input.WinnerRosterID,
		Points:         input.Points,
		RecordedBy:     currentUserID,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"result": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
