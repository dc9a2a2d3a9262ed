package app

import "quiz-battle-service/internal/domain"

// Verdict is the grading result for one question.
type Verdict struct {
	QuestionID   string `json:"questionId"`
	Selected     int    `json:"selected"`
	Correct      bool   `json:"correct"`
	CorrectIndex int    `json:"correctIndex"`
}

// Grade checks a selected option against the question. No partial credit.
func Grade(q domain.Question, selected int) (Verdict, error) {
	if selected < 0 || selected >= len(q.Options) {
		return Verdict{}, domain.ErrInvalidOption
	}
	return Verdict{
		QuestionID:   q.ID,
		Selected:     selected,
		Correct:      selected == q.CorrectIndex,
		CorrectIndex: q.CorrectIndex,
	}, nil
}

// Scorecard keeps one verdict per question and the running correct count.
type Scorecard struct {
	verdicts map[string]Verdict
	correct  int
}

func NewScorecard() *Scorecard {
	return &Scorecard{verdicts: make(map[string]Verdict)}
}

// Submit grades q once; later submissions for the same question are rejected and leave the
// first verdict and the tally untouched.
func (s *Scorecard) Submit(q domain.Question, selected int) (Verdict, error) {
	if _, ok := s.verdicts[q.ID]; ok {
		return Verdict{}, domain.ErrAlreadyAnswered
	}
	v, err := Grade(q, selected)
	if err != nil {
		return Verdict{}, err
	}
	s.verdicts[q.ID] = v
	if v.Correct {
		s.correct++
	}
	return v, nil
}

// Verdict returns the recorded verdict for a question, if any.
func (s *Scorecard) Verdict(questionID string) (Verdict, bool) {
	v, ok := s.verdicts[questionID]
	return v, ok
}

func (s *Scorecard) Correct() int  { return s.correct }
func (s *Scorecard) Answered() int { return len(s.verdicts) }
