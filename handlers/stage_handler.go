package handlers

import (
	"fmt"
	"net/http"

	"github.com/Dosada05/tournament-progression/middleware"
	"github.com/Dosada05/tournament-progression/services"
)

type StageHandler struct {
	bracketService services.BracketService
}

func NewStageHandler(bracketService services.BracketService) *StageHandler {
	return &StageHandler{bracketService: bracketService}
}

type generateStageRequest struct {
	// nil means seeded
	Seeded      *bool `json:"seeded"`
	Shuffle     bool  `json:"shuffle"`
	BracketSize int   `json:"bracket_size"`
}

func (h *StageHandler) GetBracket(w http.ResponseWriter, r *http.Request) {
	stageID, err := readUUIDParam(r, "stageID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	bracket, err := h.bracketService.GetStageBracket(r.Context(), stageID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"bracket": bracket}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *StageHandler) Generate(w http.ResponseWriter, r *http.Request) {
	stageID, err := readUUIDParam(r, "stageID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	var input generateStageRequest
	if r.ContentLength != 0 {
		if err := readJSON(w, r, &input); err != nil {
			badRequestResponse(w, r, err)
			return
		}
	}
	if input.BracketSize < 0 {
		failedValidationResponse(w, r, map[string]string{"bracket_size": "must not be negative"})
		return
	}

	opts := services.GenerateOptions{
		Seeded:      input.Seeded == nil || *input.Seeded,
		Shuffle:     input.Shuffle,
		BracketSize: input.BracketSize,
		RequestedBy: currentUserID,
	}

	result, err := h.bracketService.GenerateForStage(r.Context(), stageID, opts)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	// пропущенная стадия: сетки нет, Location не отдаём
	if result.Skipped {
		if err := writeJSON(w, http.StatusOK, jsonResponse{"generation": result}, nil); err != nil {
			serverErrorResponse(w, r, err)
		}
		return
	}
	headers := make(http.Header)
	headers.Set("Location", fmt.Sprintf("/stages/%s/bracket", stageID))
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"generation": result}, headers); err != nil {
		serverErrorResponse(w, r, err)
	}
}
