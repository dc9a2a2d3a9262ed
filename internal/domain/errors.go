package domain

import "errors"

var (
	// ErrBattleNotFound is returned when a battle id does not resolve, and also when the
	// viewer is not one of its participants.
	ErrBattleNotFound = errors.New("battle not found")
	// ErrNotParticipant is returned by the record merge when a score targets an outsider.
	ErrNotParticipant = errors.New("participant not found in battle")
	// ErrEmptyQuestionPool indicates accept found no questions for the requested difficulty.
	ErrEmptyQuestionPool = errors.New("no questions available")
	// ErrInvalidTransition is returned for any status change that is not the next forward step.
	ErrInvalidTransition = errors.New("invalid battle transition")
	// ErrBattleNotActive is returned when answering outside the active phase.
	ErrBattleNotActive = errors.New("battle is not active")
	// ErrAlreadyAnswered is returned on a second selection for the same question.
	ErrAlreadyAnswered = errors.New("question already answered")
	// ErrNotAnswered is returned when advancing past an unanswered question.
	ErrNotAnswered = errors.New("current question not answered")
	// ErrInvalidOption indicates the selected option index is out of range.
	ErrInvalidOption = errors.New("option not found")
	// ErrInvalidScore indicates a reported score outside [0, len(questions)].
	ErrInvalidScore = errors.New("invalid score")
	// ErrSelfChallenge is returned when a user challenges themselves.
	ErrSelfChallenge = errors.New("cannot challenge yourself")
	// ErrChallengePending is returned while an earlier challenge to the same user is unresolved.
	ErrChallengePending = errors.New("challenge already pending")
	// ErrMalformedBattle indicates a record whose fields do not match its status.
	ErrMalformedBattle = errors.New("malformed battle record")
	// ErrNotificationNotFound is returned when marking an unknown inbox entry.
	ErrNotificationNotFound = errors.New("notification not found")
)
