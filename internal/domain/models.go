package domain

import (
	"slices"
	"time"
)

// Status is the battle lifecycle status. It only moves forward.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusActive:
		return 1
	case StatusCompleted:
		return 2
	}
	return -1
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s.rank() >= 0
}

// Participant is a snapshot of a user taken when the battle is created.
type Participant struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// Question models an MCQ question with a single correct option index.
type Question struct {
	ID           string   `json:"id"`
	Prompt       string   `json:"prompt"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
	Explanation  string   `json:"explanation,omitempty"`
	Difficulty   string   `json:"difficulty,omitempty"`
}

// Battle is the shared record both participants observe.
type Battle struct {
	ID         string          `json:"id"`
	Status     Status          `json:"status"`
	Challenger Participant     `json:"challenger"`
	Opponent   Participant     `json:"opponent"`
	Scores     map[string]int  `json:"scores"`
	Reported   map[string]bool `json:"reported,omitempty"`
	Questions  []Question      `json:"questions,omitempty"`
	StartTime  *time.Time      `json:"startTime,omitempty"`
	EndTime    *time.Time      `json:"endTime,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	Revision   int64           `json:"revision"`
}

// NewBattle builds a pending battle with zeroed scores for both participants.
func NewBattle(id string, challenger, opponent Participant, now time.Time) Battle {
	return Battle{
		ID:         id,
		Status:     StatusPending,
		Challenger: challenger,
		Opponent:   opponent,
		Scores:     map[string]int{challenger.ID: 0, opponent.ID: 0},
		Reported:   map[string]bool{},
		CreatedAt:  now,
		Revision:   1,
	}
}

// IsParticipant reports whether userID is the challenger or the opponent.
func (b Battle) IsParticipant(userID string) bool {
	return userID != "" && (b.Challenger.ID == userID || b.Opponent.ID == userID)
}

// Other returns the participant facing userID.
func (b Battle) Other(userID string) Participant {
	if b.Challenger.ID == userID {
		return b.Opponent
	}
	return b.Challenger
}

// Clone returns a deep copy so stores never share maps or slices with callers.
func (b Battle) Clone() Battle {
	out := b
	if b.Scores != nil {
		out.Scores = make(map[string]int, len(b.Scores))
		for k, v := range b.Scores {
			out.Scores[k] = v
		}
	}
	if b.Reported != nil {
		out.Reported = make(map[string]bool, len(b.Reported))
		for k, v := range b.Reported {
			out.Reported[k] = v
		}
	}
	if b.Questions != nil {
		out.Questions = make([]Question, len(b.Questions))
		for i, q := range b.Questions {
			q.Options = slices.Clone(q.Options)
			out.Questions[i] = q
		}
	}
	if b.StartTime != nil {
		t := *b.StartTime
		out.StartTime = &t
	}
	if b.EndTime != nil {
		t := *b.EndTime
		out.EndTime = &t
	}
	return out
}

// ScoreEntry is one participant's self-reported final score.
type ScoreEntry struct {
	ParticipantID string
	Score         int
}

// BattleUpdate is a field-level partial update. Zero-valued fields are left alone.
type BattleUpdate struct {
	ExpectStatus Status
	Status       Status
	Questions    []Question
	StartTime    *time.Time
	EndTime      *time.Time
	Score        *ScoreEntry
}

// Apply merges u into a copy of b. Status only advances one step at a time; questions,
// startTime and endTime are set once; each participant's score is written once.
func (b Battle) Apply(u BattleUpdate) (Battle, bool, error) {
	if u.ExpectStatus != "" && b.Status != u.ExpectStatus {
		return b, false, ErrInvalidTransition
	}

	next := b.Clone()
	changed := false

	if u.Status != "" {
		if !u.Status.Valid() {
			return b, false, ErrInvalidTransition
		}
		switch diff := u.Status.rank() - b.Status.rank(); {
		case diff == 1:
			next.Status = u.Status
			changed = true
		case diff != 0:
			return b, false, ErrInvalidTransition
		}
	}

	if len(u.Questions) > 0 && len(next.Questions) == 0 {
		next.Questions = Battle{Questions: u.Questions}.Clone().Questions
		changed = true
	}
	if u.StartTime != nil && next.StartTime == nil {
		t := *u.StartTime
		next.StartTime = &t
		changed = true
	}
	if u.EndTime != nil && next.EndTime == nil && next.Status == StatusCompleted {
		t := *u.EndTime
		next.EndTime = &t
		changed = true
	}

	if u.Score != nil {
		if !b.IsParticipant(u.Score.ParticipantID) {
			return b, false, ErrNotParticipant
		}
		if next.Status == StatusPending {
			return b, false, ErrInvalidTransition
		}
		if u.Score.Score < 0 || u.Score.Score > len(next.Questions) {
			return b, false, ErrInvalidScore
		}
		if !next.Reported[u.Score.ParticipantID] {
			if next.Scores == nil {
				next.Scores = map[string]int{}
			}
			if next.Reported == nil {
				next.Reported = map[string]bool{}
			}
			next.Scores[u.Score.ParticipantID] = u.Score.Score
			next.Reported[u.Score.ParticipantID] = true
			changed = true
		}
	}

	if next.Status != StatusPending && (len(next.Questions) == 0 || next.StartTime == nil) {
		return b, false, ErrInvalidTransition
	}
	if next.Status == StatusCompleted && next.EndTime == nil {
		return b, false, ErrInvalidTransition
	}

	if !changed {
		return b, false, nil
	}
	next.Revision = b.Revision + 1
	return next, true, nil
}

// Notification is an inbox entry referencing a battle.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Type      string    `json:"type"`
	BattleID  string    `json:"battleId"`
	FromID    string    `json:"fromId"`
	FromName  string    `json:"fromName"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// NotificationBattleChallenge is the type of the invite written on challenge.
const NotificationBattleChallenge = "battle_challenge"
