package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"quiz-battle-service/internal/domain"
)

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// statusFor maps domain errors onto HTTP. Anything unrecognised comes from a backing store or
// pool and is reported as retryable.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrBattleNotFound):
		return http.StatusNotFound, "battle not found"
	case errors.Is(err, domain.ErrNotificationNotFound):
		return http.StatusNotFound, "notification not found"
	case errors.Is(err, domain.ErrEmptyQuestionPool):
		return http.StatusUnprocessableEntity, "no questions available"
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrBattleNotActive),
		errors.Is(err, domain.ErrAlreadyAnswered),
		errors.Is(err, domain.ErrChallengePending):
		return http.StatusConflict, err.Error()
	case errors.Is(err, domain.ErrSelfChallenge),
		errors.Is(err, domain.ErrInvalidScore),
		errors.Is(err, domain.ErrInvalidOption),
		errors.Is(err, domain.ErrNotAnswered),
		errors.Is(err, domain.ErrNotParticipant):
		return http.StatusBadRequest, err.Error()
	}
	return http.StatusServiceUnavailable, "temporarily unavailable, retry"
}

func writeError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "validation failed", Fields: fields})
		return
	}
	code, msg := statusFor(err)
	if code >= http.StatusInternalServerError {
		logger.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, code, errorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
