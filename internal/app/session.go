package app

import (
	"time"

	"quiz-battle-service/internal/domain"
)

type completionState int

const (
	completionNone completionState = iota
	completionRequested
	completionDone
)

// CompleteCommand asks the caller to persist the viewer's final score.
type CompleteCommand struct {
	BattleID string
	ViewerID string
	Score    int
}

// QuestionView is a question as shown to a participant, without the answer.
type QuestionView struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

// View is everything a participant's screen renders.
type View struct {
	BattleID      string             `json:"battleId"`
	Phase         Phase              `json:"phase"`
	Status        domain.Status      `json:"status"`
	Viewer        domain.Participant `json:"viewer"`
	Opponent      domain.Participant `json:"opponent"`
	QuestionIndex int                `json:"questionIndex"`
	QuestionCount int                `json:"questionCount"`
	Question      *QuestionView      `json:"question,omitempty"`
	Verdict       *Verdict           `json:"verdict,omitempty"`
	Correct       int                `json:"correct"`
	Answered      int                `json:"answered"`
	Remaining     int                `json:"remaining"`
	Finished      bool               `json:"finished"`
	Outcome       *Outcome           `json:"outcome,omitempty"`
	Declined      bool               `json:"declined,omitempty"`
	Error         string             `json:"error,omitempty"`
}

// Session is one participant's local battle state. It is not safe for concurrent use; the
// Driver owns it from a single goroutine.
type Session struct {
	viewerID string
	duration time.Duration

	battle   domain.Battle
	observed bool
	phase    Phase

	countdown Countdown
	card      *Scorecard
	index     int

	completion completionState
	finalScore int

	declined bool
	lastErr  string
}

func NewSession(viewerID string, duration time.Duration) *Session {
	if duration <= 0 {
		duration = DefaultBattleDuration
	}
	return &Session{
		viewerID: viewerID,
		duration: duration,
		card:     NewScorecard(),
	}
}

// Observe replaces local derived state with a snapshot. Older revisions are ignored.
// A non-nil command means the viewer's score must be written now.
func (s *Session) Observe(b domain.Battle, now time.Time) (*CompleteCommand, error) {
	if s.observed && b.ID == s.battle.ID && b.Revision < s.battle.Revision {
		return nil, nil
	}
	phase, err := PhaseFor(b, s.viewerID)
	if err != nil {
		return nil, err
	}
	st, err := b.Stage()
	if err != nil {
		return nil, err
	}

	s.battle = b.Clone()
	s.observed = true
	s.phase = phase

	switch st := st.(type) {
	case domain.ActiveBattle:
		s.countdown.Sync(st.StartTime, now, s.duration)
		if s.countdown.Expired() {
			return s.finish(), nil
		}
	case domain.CompletedBattle:
		s.countdown.Stop()
		if st.Reported[s.viewerID] {
			s.completion = completionDone
			return nil, nil
		}
		// the other side finished first; report whatever we have
		if s.completion == completionNone {
			return s.finish(), nil
		}
	}
	return nil, nil
}

// Answer grades the option for the current question. Answering the last question finishes
// the battle for this viewer.
func (s *Session) Answer(option int) (Verdict, *CompleteCommand, error) {
	if s.phase != PhaseActive || s.completion != completionNone {
		return Verdict{}, nil, domain.ErrBattleNotActive
	}
	q, ok := s.current()
	if !ok {
		return Verdict{}, nil, domain.ErrBattleNotActive
	}
	v, err := s.card.Submit(q, option)
	if err != nil {
		return Verdict{}, nil, err
	}
	if s.index == len(s.battle.Questions)-1 {
		return v, s.finish(), nil
	}
	return v, nil, nil
}

// Next advances to the following question once the current one has a verdict.
func (s *Session) Next() error {
	if s.phase != PhaseActive || s.completion != completionNone {
		return domain.ErrBattleNotActive
	}
	q, ok := s.current()
	if !ok {
		return domain.ErrBattleNotActive
	}
	if _, answered := s.card.Verdict(q.ID); !answered {
		return domain.ErrNotAnswered
	}
	if s.index < len(s.battle.Questions)-1 {
		s.index++
	}
	return nil
}

// Tick advances the countdown by one second.
func (s *Session) Tick() *CompleteCommand {
	if s.phase != PhaseActive || s.completion != completionNone {
		return nil
	}
	s.countdown.Tick()
	if s.countdown.Expired() {
		return s.finish()
	}
	return nil
}

// CanAccept reports whether the viewer may accept the observed battle.
func (s *Session) CanAccept() error {
	if !s.observed || !Allowed(s.phase, ActionAccept) {
		return domain.ErrInvalidTransition
	}
	return nil
}

// Decline hides the challenge for this viewer only.
func (s *Session) Decline() error {
	if !s.observed || !Allowed(s.phase, ActionDecline) {
		return domain.ErrInvalidTransition
	}
	s.declined = true
	return nil
}

func (s *Session) Declined() bool { return s.declined }

// PendingCompletion returns the outstanding completion write, if any, with its frozen score.
func (s *Session) PendingCompletion() *CompleteCommand {
	if s.completion != completionRequested {
		return nil
	}
	return s.command()
}

// NeedsClock reports whether the 1s ticker should run.
func (s *Session) NeedsClock() bool {
	if s.completion == completionRequested {
		return true
	}
	return s.phase == PhaseActive && s.completion == completionNone
}

// SetError records the last failure shown to the viewer; nil clears it.
func (s *Session) SetError(err error) {
	if err == nil {
		s.lastErr = ""
		return
	}
	s.lastErr = err.Error()
}

func (s *Session) View() View {
	v := View{
		BattleID:  s.battle.ID,
		Phase:     s.phase,
		Status:    s.battle.Status,
		Viewer:    s.self(),
		Opponent:  s.battle.Other(s.viewerID),
		Correct:   s.card.Correct(),
		Answered:  s.card.Answered(),
		Remaining: s.countdown.Remaining(),
		Finished:  s.completion != completionNone,
		Declined:  s.declined,
		Error:     s.lastErr,
	}
	if !s.observed {
		return v
	}
	v.QuestionCount = len(s.battle.Questions)
	if q, ok := s.current(); ok && s.phase == PhaseActive {
		v.QuestionIndex = s.index
		v.Question = &QuestionView{ID: q.ID, Prompt: q.Prompt, Options: append([]string(nil), q.Options...)}
		if verdict, answered := s.card.Verdict(q.ID); answered {
			v.Verdict = &verdict
		}
	}
	if s.phase == PhaseCompleted {
		outcome := DetermineWinner(s.battle)
		v.Outcome = &outcome
	}
	return v
}

func (s *Session) self() domain.Participant {
	if s.battle.Challenger.ID == s.viewerID {
		return s.battle.Challenger
	}
	return s.battle.Opponent
}

func (s *Session) current() (domain.Question, bool) {
	if s.index < 0 || s.index >= len(s.battle.Questions) {
		return domain.Question{}, false
	}
	return s.battle.Questions[s.index], true
}

// finish freezes the score on the first call; later calls return nil.
func (s *Session) finish() *CompleteCommand {
	if s.completion != completionNone {
		return nil
	}
	s.completion = completionRequested
	s.finalScore = s.card.Correct()
	return s.command()
}

func (s *Session) command() *CompleteCommand {
	return &CompleteCommand{BattleID: s.battle.ID, ViewerID: s.viewerID, Score: s.finalScore}
}
