package http

import (
	"encoding/json"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"quiz-battle-service/internal/app"
	"quiz-battle-service/internal/domain"
)

// BattleHandler serves the REST surface of the battle use cases.
type BattleHandler struct {
	service  *app.BattleService
	validate *validator.Validate
	logger   zerolog.Logger
	now      func() time.Time
}

func NewBattleHandler(service *app.BattleService, logger zerolog.Logger) *BattleHandler {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &BattleHandler{service: service, validate: v, logger: logger, now: time.Now}
}

type challengeRequest struct {
	OpponentID     string `json:"opponentId" validate:"required,max=128"`
	OpponentName   string `json:"opponentName" validate:"required,max=128"`
	OpponentAvatar string `json:"opponentAvatar" validate:"omitempty,url"`
}

type completeRequest struct {
	Score *int `json:"score" validate:"required,min=0"`
}

type questionResponse struct {
	ID           string   `json:"id"`
	Prompt       string   `json:"prompt"`
	Options      []string `json:"options"`
	CorrectIndex *int     `json:"correctIndex,omitempty"`
	Explanation  string   `json:"explanation,omitempty"`
}

type battleResponse struct {
	ID         string             `json:"id"`
	Status     domain.Status      `json:"status"`
	Phase      app.Phase          `json:"phase"`
	Challenger domain.Participant `json:"challenger"`
	Opponent   domain.Participant `json:"opponent"`
	Scores     map[string]int     `json:"scores"`
	Reported   map[string]bool    `json:"reported,omitempty"`
	Questions  []questionResponse `json:"questions,omitempty"`
	StartTime  *time.Time         `json:"startTime,omitempty"`
	EndTime    *time.Time         `json:"endTime,omitempty"`
	Remaining  *int               `json:"remaining,omitempty"`
	Outcome    *app.Outcome       `json:"outcome,omitempty"`
	CreatedAt  time.Time          `json:"createdAt"`
	Revision   int64              `json:"revision"`
}

// toBattleResponse hides correct answers until the battle is completed.
func toBattleResponse(b domain.Battle, viewerID string, duration time.Duration, now time.Time) battleResponse {
	phase, _ := app.PhaseFor(b, viewerID)
	resp := battleResponse{
		ID:         b.ID,
		Status:     b.Status,
		Phase:      phase,
		Challenger: b.Challenger,
		Opponent:   b.Opponent,
		Scores:     b.Scores,
		Reported:   b.Reported,
		StartTime:  b.StartTime,
		EndTime:    b.EndTime,
		CreatedAt:  b.CreatedAt,
		Revision:   b.Revision,
	}
	for _, q := range b.Questions {
		qr := questionResponse{ID: q.ID, Prompt: q.Prompt, Options: q.Options}
		if b.Status == domain.StatusCompleted {
			idx := q.CorrectIndex
			qr.CorrectIndex = &idx
			qr.Explanation = q.Explanation
		}
		resp.Questions = append(resp.Questions, qr)
	}
	switch b.Status {
	case domain.StatusActive:
		if b.StartTime != nil {
			left := app.RemainingSeconds(*b.StartTime, now, duration)
			resp.Remaining = &left
		}
	case domain.StatusCompleted:
		outcome := app.DetermineWinner(b)
		resp.Outcome = &outcome
	}
	return resp
}

func (h *BattleHandler) respondBattle(w http.ResponseWriter, code int, b domain.Battle, viewerID string) {
	writeJSON(w, code, toBattleResponse(b, viewerID, h.service.Options().Duration, h.now()))
}

func (h *BattleHandler) Challenge(w http.ResponseWriter, r *http.Request) {
	caller, _ := IdentityFrom(r.Context())
	var req challengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	battle, err := h.service.Challenge(r.Context(),
		domain.Participant{ID: caller.ID, Name: caller.Name, Avatar: caller.Avatar},
		domain.Participant{ID: req.OpponentID, Name: req.OpponentName, Avatar: req.OpponentAvatar},
	)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.respondBattle(w, http.StatusCreated, battle, caller.ID)
}

func (h *BattleHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller, _ := IdentityFrom(r.Context())
	battle, err := h.service.Get(r.Context(), mux.Vars(r)["id"], caller.ID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.respondBattle(w, http.StatusOK, battle, caller.ID)
}

func (h *BattleHandler) Accept(w http.ResponseWriter, r *http.Request) {
	caller, _ := IdentityFrom(r.Context())
	battle, err := h.service.Accept(r.Context(), mux.Vars(r)["id"], caller.ID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.respondBattle(w, http.StatusOK, battle, caller.ID)
}

func (h *BattleHandler) Decline(w http.ResponseWriter, r *http.Request) {
	caller, _ := IdentityFrom(r.Context())
	if err := h.service.Decline(r.Context(), mux.Vars(r)["id"], caller.ID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BattleHandler) Complete(w http.ResponseWriter, r *http.Request) {
	caller, _ := IdentityFrom(r.Context())
	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	battle, err := h.service.Complete(r.Context(), mux.Vars(r)["id"], caller.ID, *req.Score)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.respondBattle(w, http.StatusOK, battle, caller.ID)
}

func (h *BattleHandler) Inbox(w http.ResponseWriter, r *http.Request) {
	caller, _ := IdentityFrom(r.Context())
	items, err := h.service.Notifications(r.Context(), caller.ID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if items == nil {
		items = []domain.Notification{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": items})
}

func (h *BattleHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	caller, _ := IdentityFrom(r.Context())
	if err := h.service.MarkNotificationRead(r.Context(), caller.ID, mux.Vars(r)["id"]); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BattleHandler) PendingChallenges(w http.ResponseWriter, r *http.Request) {
	caller, _ := IdentityFrom(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"targets": h.service.PendingTargets(caller.ID)})
}
