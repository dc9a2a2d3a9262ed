package app_test

import (
	"errors"
	"testing"
	"time"

	"quiz-battle-service/internal/app"
	"quiz-battle-service/internal/domain"
)

func TestSessionAnswersEveryQuestion(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s := app.NewSession("o", 5*time.Minute)

	if cmd, err := s.Observe(activeBattle(start, 10), start); cmd != nil || err != nil {
		t.Fatalf("observe: cmd=%+v err=%v", cmd, err)
	}
	view := s.View()
	if view.Phase != app.PhaseActive || view.Question == nil || view.QuestionCount != 10 || view.Remaining != 300 {
		t.Fatalf("unexpected view %+v", view)
	}

	var final *app.CompleteCommand
	for i := 0; i < 10; i++ {
		v, cmd, err := s.Answer(1)
		if err != nil || !v.Correct {
			t.Fatalf("answer %d: verdict=%+v err=%v", i, v, err)
		}
		if i < 9 {
			if cmd != nil {
				t.Fatalf("unexpected completion before the last question")
			}
			if err := s.Next(); err != nil {
				t.Fatalf("next %d: %v", i, err)
			}
			continue
		}
		final = cmd
	}
	if final == nil || final.Score != 10 || final.ViewerID != "o" || final.BattleID != "b1" {
		t.Fatalf("unexpected completion %+v", final)
	}
	if _, _, err := s.Answer(1); !errors.Is(err, domain.ErrBattleNotActive) {
		t.Fatalf("expected no answers after finishing, got %v", err)
	}
	if !s.View().Finished || !s.NeedsClock() {
		t.Fatalf("finished session waits for the write with its clock running")
	}
}

func TestSessionTimerForcesCompletionOnce(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	duration := 5 * time.Minute
	s := app.NewSession("o", duration)

	// one second left
	if _, err := s.Observe(activeBattle(start, 10), start.Add(duration-time.Second)); err != nil {
		t.Fatalf("observe: %v", err)
	}
	for i, option := range []int{1, 1, 0} {
		if _, cmd, err := s.Answer(option); err != nil || cmd != nil {
			t.Fatalf("answer %d: cmd=%+v err=%v", i, cmd, err)
		}
		if err := s.Next(); err != nil {
			t.Fatalf("next: %v", err)
		}
	}

	cmd := s.Tick()
	if cmd == nil || cmd.Score != 2 {
		t.Fatalf("expected forced completion with score 2, got %+v", cmd)
	}
	for i := 0; i < 3; i++ {
		if again := s.Tick(); again != nil {
			t.Fatalf("forced completion must fire once, got %+v", again)
		}
	}
	if s.View().Remaining != 0 {
		t.Fatalf("timer must stop at zero, got %d", s.View().Remaining)
	}
	if _, _, err := s.Answer(1); !errors.Is(err, domain.ErrBattleNotActive) {
		t.Fatalf("expected answers rejected after expiry, got %v", err)
	}
	if pending := s.PendingCompletion(); pending == nil || pending.Score != 2 {
		t.Fatalf("expected frozen score in pending completion, got %+v", pending)
	}
}

func TestSessionAnswerTwiceKeepsFirstVerdict(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s := app.NewSession("c", 5*time.Minute)
	if _, err := s.Observe(activeBattle(start, 3), start); err != nil {
		t.Fatalf("observe: %v", err)
	}

	first, _, err := s.Answer(0)
	if err != nil || first.Correct {
		t.Fatalf("unexpected first verdict %+v err=%v", first, err)
	}
	if _, _, err := s.Answer(1); !errors.Is(err, domain.ErrAlreadyAnswered) {
		t.Fatalf("expected already answered, got %v", err)
	}
	view := s.View()
	if view.Verdict == nil || view.Verdict.Selected != 0 || view.Correct != 0 || view.Answered != 1 {
		t.Fatalf("first verdict must stand, got %+v", view)
	}
	if _, _, err := s.Answer(7); !errors.Is(err, domain.ErrAlreadyAnswered) {
		t.Fatalf("expected already answered before range check, got %v", err)
	}
}

func TestSessionNextRequiresAnswer(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s := app.NewSession("c", 5*time.Minute)
	if _, err := s.Observe(activeBattle(start, 3), start); err != nil {
		t.Fatalf("observe: %v", err)
	}
	if err := s.Next(); !errors.Is(err, domain.ErrNotAnswered) {
		t.Fatalf("expected not answered, got %v", err)
	}
	if _, _, err := s.Answer(5); !errors.Is(err, domain.ErrInvalidOption) {
		t.Fatalf("expected invalid option, got %v", err)
	}
	if s.View().QuestionIndex != 0 {
		t.Fatalf("index must not move")
	}
}

func TestSessionPendingPhases(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	pending := domain.NewBattle("b1", participant("c"), participant("o"), now)

	challenger := app.NewSession("c", 0)
	if _, err := challenger.Observe(pending, now); err != nil {
		t.Fatalf("observe: %v", err)
	}
	if err := challenger.CanAccept(); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("challenger cannot accept, got %v", err)
	}
	if err := challenger.Decline(); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("challenger cannot decline, got %v", err)
	}
	if _, _, err := challenger.Answer(0); !errors.Is(err, domain.ErrBattleNotActive) {
		t.Fatalf("expected not active, got %v", err)
	}
	if challenger.NeedsClock() {
		t.Fatalf("pending battles do not tick")
	}

	opponent := app.NewSession("o", 0)
	if err := opponent.CanAccept(); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("nothing observed yet, got %v", err)
	}
	if _, err := opponent.Observe(pending, now); err != nil {
		t.Fatalf("observe: %v", err)
	}
	if err := opponent.CanAccept(); err != nil {
		t.Fatalf("opponent can accept: %v", err)
	}
	if err := opponent.Decline(); err != nil || !opponent.Declined() || !opponent.View().Declined {
		t.Fatalf("expected local decline, err=%v", err)
	}

	outsider := app.NewSession("mallory", 0)
	if _, err := outsider.Observe(pending, now); !errors.Is(err, domain.ErrBattleNotFound) {
		t.Fatalf("expected outsider rejected, got %v", err)
	}
}

func TestSessionIgnoresStaleSnapshots(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	active := activeBattle(start, 3)
	pending := domain.NewBattle("b1", participant("c"), participant("o"), start)

	s := app.NewSession("o", 5*time.Minute)
	if _, err := s.Observe(active, start); err != nil {
		t.Fatalf("observe: %v", err)
	}
	if _, err := s.Observe(pending, start); err != nil {
		t.Fatalf("observe stale: %v", err)
	}
	if s.View().Phase != app.PhaseActive {
		t.Fatalf("stale pending snapshot must be ignored")
	}
}

func TestSessionReportsWhenOtherSideFinishesFirst(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s := app.NewSession("o", 5*time.Minute)
	active := activeBattle(start, 5)
	if _, err := s.Observe(active, start); err != nil {
		t.Fatalf("observe: %v", err)
	}
	if _, _, err := s.Answer(1); err != nil {
		t.Fatalf("answer: %v", err)
	}

	end := start.Add(time.Minute)
	byChallenger, _, err := active.Apply(domain.BattleUpdate{
		Status:  domain.StatusCompleted,
		EndTime: &end,
		Score:   &domain.ScoreEntry{ParticipantID: "c", Score: 3},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	cmd, err := s.Observe(byChallenger, end)
	if err != nil {
		t.Fatalf("observe completed: %v", err)
	}
	if cmd == nil || cmd.Score != 1 {
		t.Fatalf("expected own tally reported, got %+v", cmd)
	}
	if again, _ := s.Observe(byChallenger, end); again != nil {
		t.Fatalf("must not request a second write, got %+v", again)
	}

	final, _, err := byChallenger.Apply(domain.BattleUpdate{Score: &domain.ScoreEntry{ParticipantID: "o", Score: 1}})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if cmd, _ := s.Observe(final, end); cmd != nil {
		t.Fatalf("unexpected command once reported")
	}
	if s.NeedsClock() || s.PendingCompletion() != nil {
		t.Fatalf("reported session is idle")
	}
	view := s.View()
	if view.Outcome == nil || view.Outcome.WinnerID != "c" || view.Question != nil {
		t.Fatalf("unexpected completed view %+v", view)
	}
}

func TestSessionReconnectAfterExpiry(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s := app.NewSession("c", 5*time.Minute)

	cmd, err := s.Observe(activeBattle(start, 3), start.Add(10*time.Minute))
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	if cmd == nil || cmd.Score != 0 {
		t.Fatalf("expected immediate completion with zero, got %+v", cmd)
	}
	if s.View().Remaining != 0 {
		t.Fatalf("expected no time left")
	}
}
