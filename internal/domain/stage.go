package domain

import "time"

// Stage is the lifecycle-specific view of a Battle. Only the three variants below implement it.
type Stage interface {
	Status() Status
	stage()
}

// PendingBattle is a challenge the opponent has not accepted yet.
type PendingBattle struct {
	ID         string
	Challenger Participant
	Opponent   Participant
	CreatedAt  time.Time
}

// ActiveBattle has its question set and start instant fixed.
type ActiveBattle struct {
	PendingBattle
	Questions []Question
	StartTime time.Time
}

// CompletedBattle carries the reported scores and the end instant.
type CompletedBattle struct {
	ActiveBattle
	Scores   map[string]int
	Reported map[string]bool
	EndTime  time.Time
}

func (PendingBattle) Status() Status   { return StatusPending }
func (ActiveBattle) Status() Status    { return StatusActive }
func (CompletedBattle) Status() Status { return StatusCompleted }

func (PendingBattle) stage()   {}
func (ActiveBattle) stage()    {}
func (CompletedBattle) stage() {}

// Stage returns the typed view matching b.Status, or ErrMalformedBattle when a field the
// status requires is missing.
func (b Battle) Stage() (Stage, error) {
	c := b.Clone()
	pending := PendingBattle{
		ID:         c.ID,
		Challenger: c.Challenger,
		Opponent:   c.Opponent,
		CreatedAt:  c.CreatedAt,
	}
	switch c.Status {
	case StatusPending:
		return pending, nil
	case StatusActive, StatusCompleted:
		if len(c.Questions) == 0 || c.StartTime == nil {
			return nil, ErrMalformedBattle
		}
		active := ActiveBattle{PendingBattle: pending, Questions: c.Questions, StartTime: *c.StartTime}
		if c.Status == StatusActive {
			return active, nil
		}
		if c.EndTime == nil {
			return nil, ErrMalformedBattle
		}
		return CompletedBattle{ActiveBattle: active, Scores: c.Scores, Reported: c.Reported, EndTime: *c.EndTime}, nil
	}
	return nil, ErrMalformedBattle
}
