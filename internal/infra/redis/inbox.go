package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"quiz-battle-service/internal/domain"
)

// Inbox stores notifications as HSET inbox:{userID} {notificationID} {json}.
type Inbox struct {
	client *redis.Client
}

func NewInbox(client *redis.Client) *Inbox {
	return &Inbox{client: client}
}

func (i *Inbox) Append(ctx context.Context, n domain.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := i.client.HSet(ctx, i.key(n.UserID), n.ID, payload).Err(); err != nil {
		return fmt.Errorf("append notification: %w", err)
	}
	return nil
}

// List returns the newest notifications first.
func (i *Inbox) List(ctx context.Context, userID string) ([]domain.Notification, error) {
	entries, err := i.client.HGetAll(ctx, i.key(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	out := make([]domain.Notification, 0, len(entries))
	for _, raw := range entries {
		var n domain.Notification
		if err := json.Unmarshal([]byte(raw), &n); err != nil {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(a, b int) bool {
		if !out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].CreatedAt.After(out[b].CreatedAt)
		}
		return out[a].ID < out[b].ID
	})
	return out, nil
}

func (i *Inbox) MarkRead(ctx context.Context, userID, notificationID string) error {
	key := i.key(userID)
	raw, err := i.client.HGet(ctx, key, notificationID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.ErrNotificationNotFound
		}
		return fmt.Errorf("load notification: %w", err)
	}
	var n domain.Notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return fmt.Errorf("decode notification: %w", err)
	}
	if n.Read {
		return nil
	}
	n.Read = true
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	return i.client.HSet(ctx, key, notificationID, payload).Err()
}

func (i *Inbox) key(userID string) string {
	return "inbox:" + userID
}
