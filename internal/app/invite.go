package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"quiz-battle-service/internal/domain"
)

// Challenge creates a pending battle and drops an invite into the opponent's inbox.
// A failed invite is logged; the battle is kept and stays reachable by id.
func (s *BattleService) Challenge(ctx context.Context, challenger, opponent domain.Participant) (domain.Battle, error) {
	if challenger.ID == opponent.ID {
		return domain.Battle{}, domain.ErrSelfChallenge
	}

	now := s.now()
	if !s.pending.Reserve(challenger.ID, opponent.ID, now, now.Add(s.opts.PendingTTL)) {
		return domain.Battle{}, domain.ErrChallengePending
	}

	battle := domain.NewBattle(uuid.NewString(), challenger, opponent, now)
	id, err := s.store.Create(ctx, battle)
	if err != nil {
		s.pending.Release(challenger.ID, opponent.ID)
		return domain.Battle{}, fmt.Errorf("create battle: %w", err)
	}
	battle.ID = id
	s.pending.Bind(challenger.ID, opponent.ID, id)

	log := s.logger.With().Str("battle_id", id).Str("challenger_id", challenger.ID).Str("opponent_id", opponent.ID).Logger()
	log.Info().Msg("battle challenge created")

	invite := domain.Notification{
		ID:        uuid.NewString(),
		UserID:    opponent.ID,
		Type:      domain.NotificationBattleChallenge,
		BattleID:  id,
		FromID:    challenger.ID,
		FromName:  challenger.Name,
		Message:   fmt.Sprintf("%s has challenged you to a quiz battle!", challenger.Name),
		CreatedAt: now,
	}
	if err := s.inbox.Append(ctx, invite); err != nil {
		log.Warn().Err(err).Msg("failed to deliver battle invite")
	}
	return battle, nil
}

// PendingTargets lists users the challenger cannot re-challenge yet.
func (s *BattleService) PendingTargets(challengerID string) []string {
	return s.pending.Targets(challengerID, s.now())
}

// Notifications returns the user's inbox.
func (s *BattleService) Notifications(ctx context.Context, userID string) ([]domain.Notification, error) {
	return s.inbox.List(ctx, userID)
}

// MarkNotificationRead flags one inbox entry as read.
func (s *BattleService) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	return s.inbox.MarkRead(ctx, userID, notificationID)
}
