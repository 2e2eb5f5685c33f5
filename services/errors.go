package services

import "errors"

// Общие ошибки, используемые в сервисах и маппинге HTTP.
var (
	ErrNotFound         = errors.New("requested resource not found")
	ErrValidationFailed = errors.New("validation failed")

	// Ошибки генерации сетки
	ErrStageNotFound         = errors.New("stage not found")
	ErrTournamentNotFound    = errors.New("tournament not found")
	ErrStageAlreadyGenerated = errors.New("stage already has a generated bracket")
	ErrUnsupportedStageType  = errors.New("stage type has no bracket generator")
	ErrStageNotFinished      = errors.New("stage is not finished")

	// Ошибки записи результатов
	ErrMatchupNotFound        = errors.New("matchup not found")
	ErrMatchupAlreadyFinished = errors.New("matchup already finished")
	ErrRosterNotInMatchup     = errors.New("winner roster is not seated in the matchup")
	ErrMatchupNotReady        = errors.New("matchup does not have two rosters yet")
	ErrParentMatchupFull      = errors.New("next matchup already has two rosters")

	// Ошибки аутентификации и авторизации
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrForbiddenOperation   = errors.New("operation not allowed for the current user")
)
