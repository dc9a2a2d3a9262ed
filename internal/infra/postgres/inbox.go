package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"quiz-battle-service/internal/domain"
)

type notificationRow struct {
	bun.BaseModel `bun:"table:notifications"`

	ID        string    `bun:"id,pk"`
	UserID    string    `bun:"user_id,notnull"`
	Type      string    `bun:"type,notnull"`
	BattleID  string    `bun:"battle_id"`
	FromID    string    `bun:"from_id"`
	FromName  string    `bun:"from_name"`
	Message   string    `bun:"message"`
	Read      bool      `bun:"read,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

func (r notificationRow) toDomain() domain.Notification {
	return domain.Notification{
		ID:        r.ID,
		UserID:    r.UserID,
		Type:      r.Type,
		BattleID:  r.BattleID,
		FromID:    r.FromID,
		FromName:  r.FromName,
		Message:   r.Message,
		Read:      r.Read,
		CreatedAt: r.CreatedAt,
	}
}

// Inbox persists notifications in the notifications table through bun.
type Inbox struct {
	db *bun.DB
}

func NewInbox(db *bun.DB) *Inbox {
	return &Inbox{db: db}
}

func (i *Inbox) Append(ctx context.Context, n domain.Notification) error {
	row := &notificationRow{
		ID:        n.ID,
		UserID:    n.UserID,
		Type:      n.Type,
		BattleID:  n.BattleID,
		FromID:    n.FromID,
		FromName:  n.FromName,
		Message:   n.Message,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}
	if _, err := i.db.NewInsert().Model(row).On("CONFLICT (id) DO NOTHING").Exec(ctx); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (i *Inbox) List(ctx context.Context, userID string) ([]domain.Notification, error) {
	var rows []notificationRow
	err := i.db.NewSelect().
		Model(&rows).
		Where("user_id = ?", userID).
		OrderExpr("created_at DESC, id").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	out := make([]domain.Notification, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (i *Inbox) MarkRead(ctx context.Context, userID, notificationID string) error {
	res, err := i.db.NewUpdate().
		Model((*notificationRow)(nil)).
		Set("read = TRUE").
		Where("id = ?", notificationID).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotificationNotFound
	}
	return nil
}
