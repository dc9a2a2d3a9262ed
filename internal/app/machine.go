package app

import "quiz-battle-service/internal/domain"

// Phase is the participant-facing state derived from a battle and the viewer's identity.
type Phase string

const (
	PhasePendingChallenger Phase = "pending-as-challenger"
	PhasePendingOpponent   Phase = "pending-as-opponent"
	PhaseActive            Phase = "active"
	PhaseCompleted         Phase = "completed"
)

// Action is something a participant can attempt against a battle.
type Action string

const (
	ActionAccept   Action = "accept"
	ActionDecline  Action = "decline"
	ActionAnswer   Action = "answer"
	ActionComplete Action = "complete"
)

var transitions = map[Phase][]Action{
	PhasePendingOpponent: {ActionAccept, ActionDecline},
	PhaseActive:          {ActionAnswer, ActionComplete},
}

// PhaseFor derives the viewer's phase. Outsiders get ErrBattleNotFound so that nothing
// about the battle leaks.
func PhaseFor(b domain.Battle, viewerID string) (Phase, error) {
	if !b.IsParticipant(viewerID) {
		return "", domain.ErrBattleNotFound
	}
	switch b.Status {
	case domain.StatusPending:
		if b.Opponent.ID == viewerID {
			return PhasePendingOpponent, nil
		}
		return PhasePendingChallenger, nil
	case domain.StatusActive:
		return PhaseActive, nil
	case domain.StatusCompleted:
		return PhaseCompleted, nil
	}
	return "", domain.ErrMalformedBattle
}

// Allowed reports whether action is legal in phase.
func Allowed(phase Phase, action Action) bool {
	for _, a := range transitions[phase] {
		if a == action {
			return true
		}
	}
	return false
}

// Outcome is the result comparison of a completed battle.
type Outcome struct {
	WinnerID string         `json:"winnerId,omitempty"`
	Tie      bool           `json:"tie"`
	Scores   map[string]int `json:"scores"`
}

// DetermineWinner compares challenger and opponent scores; strictly greater wins.
func DetermineWinner(b domain.Battle) Outcome {
	c := b.Scores[b.Challenger.ID]
	o := b.Scores[b.Opponent.ID]
	out := Outcome{Scores: map[string]int{b.Challenger.ID: c, b.Opponent.ID: o}}
	switch {
	case c > o:
		out.WinnerID = b.Challenger.ID
	case o > c:
		out.WinnerID = b.Opponent.ID
	default:
		out.Tie = true
	}
	return out
}
