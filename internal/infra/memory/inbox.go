package memory

import (
	"context"
	"sort"
	"sync"

	"quiz-battle-service/internal/domain"
)

// Inbox keeps notifications per user in memory.
type Inbox struct {
	mu    sync.RWMutex
	items map[string][]domain.Notification
}

func NewInbox() *Inbox {
	return &Inbox{items: make(map[string][]domain.Notification)}
}

func (i *Inbox) Append(_ context.Context, n domain.Notification) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.items[n.UserID] = append(i.items[n.UserID], n)
	return nil
}

// List returns the newest notifications first.
func (i *Inbox) List(_ context.Context, userID string) ([]domain.Notification, error) {
	i.mu.RLock()
	out := append([]domain.Notification(nil), i.items[userID]...)
	i.mu.RUnlock()
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	return out, nil
}

func (i *Inbox) MarkRead(_ context.Context, userID, notificationID string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	for idx, n := range i.items[userID] {
		if n.ID == notificationID {
			i.items[userID][idx].Read = true
			return nil
		}
	}
	return domain.ErrNotificationNotFound
}
