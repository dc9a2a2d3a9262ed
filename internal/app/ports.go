package app

import (
	"context"

	"quiz-battle-service/internal/domain"
)

// BattleStore abstracts the shared battle record (in-memory, Redis, etc).
type BattleStore interface {
	Create(ctx context.Context, battle domain.Battle) (string, error)
	Get(ctx context.Context, battleID string) (domain.Battle, error)
	// Update applies a field-level merge and returns the resulting record.
	Update(ctx context.Context, battleID string, update domain.BattleUpdate) (domain.Battle, error)
	// Subscribe delivers the current record and then a full snapshot after every change.
	// The caller must invoke the returned cancel function to avoid leaks.
	Subscribe(ctx context.Context, battleID string) (<-chan domain.Battle, func(), error)
}

// QuestionPool returns the unordered candidate questions for a difficulty.
type QuestionPool interface {
	QueryByDifficulty(ctx context.Context, difficulty string) ([]domain.Question, error)
}

// Inbox stores per-user notifications.
type Inbox interface {
	Append(ctx context.Context, n domain.Notification) error
	List(ctx context.Context, userID string) ([]domain.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID string) error
}
