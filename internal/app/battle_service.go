package app

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"quiz-battle-service/internal/domain"
)

const (
	DefaultQuestionCount = 10
	DefaultDifficulty    = "medium"
	DefaultPendingTTL    = 24 * time.Hour
)

// Options tunes the battle rules.
type Options struct {
	Duration      time.Duration
	QuestionCount int
	Difficulty    string
	PendingTTL    time.Duration
}

func (o Options) withDefaults() Options {
	if o.Duration <= 0 {
		o.Duration = DefaultBattleDuration
	}
	if o.QuestionCount <= 0 {
		o.QuestionCount = DefaultQuestionCount
	}
	if o.Difficulty == "" {
		o.Difficulty = DefaultDifficulty
	}
	if o.PendingTTL <= 0 {
		o.PendingTTL = DefaultPendingTTL
	}
	return o
}

// BattleService contains the battle use cases. Each operation re-reads the shared record and
// writes only through BattleStore.Update, so every write is safe to retry.
type BattleService struct {
	store   BattleStore
	pool    QuestionPool
	inbox   Inbox
	pending *PendingChallenges
	opts    Options
	logger  zerolog.Logger
	now     func() time.Time

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewBattleService(store BattleStore, pool QuestionPool, inbox Inbox, opts Options, logger zerolog.Logger) *BattleService {
	return NewBattleServiceWithClock(store, pool, inbox, opts, logger, time.Now)
}

// NewBattleServiceWithClock is test-only for deterministic timestamps.
func NewBattleServiceWithClock(store BattleStore, pool QuestionPool, inbox Inbox, opts Options, logger zerolog.Logger, now func() time.Time) *BattleService {
	return &BattleService{
		store:   store,
		pool:    pool,
		inbox:   inbox,
		pending: NewPendingChallenges(),
		opts:    opts.withDefaults(),
		logger:  logger,
		now:     now,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Options returns the effective battle rules.
func (s *BattleService) Options() Options {
	return s.opts
}

// Get loads a battle the viewer participates in.
func (s *BattleService) Get(ctx context.Context, battleID, viewerID string) (domain.Battle, error) {
	battle, err := s.store.Get(ctx, battleID)
	if err != nil {
		return domain.Battle{}, err
	}
	if !battle.IsParticipant(viewerID) {
		return domain.Battle{}, domain.ErrBattleNotFound
	}
	return battle, nil
}

// Accept moves a pending battle to active with a freshly sampled question set.
// An empty pool leaves the record untouched.
func (s *BattleService) Accept(ctx context.Context, battleID, viewerID string) (domain.Battle, error) {
	battle, err := s.Get(ctx, battleID, viewerID)
	if err != nil {
		return domain.Battle{}, err
	}
	phase, err := PhaseFor(battle, viewerID)
	if err != nil {
		return domain.Battle{}, err
	}
	if !Allowed(phase, ActionAccept) {
		return domain.Battle{}, domain.ErrInvalidTransition
	}

	pool, err := s.pool.QueryByDifficulty(ctx, s.opts.Difficulty)
	if err != nil {
		return domain.Battle{}, fmt.Errorf("load question pool: %w", err)
	}
	if len(pool) == 0 {
		s.logger.Warn().Str("battle_id", battleID).Str("difficulty", s.opts.Difficulty).Msg("question pool empty")
		return domain.Battle{}, domain.ErrEmptyQuestionPool
	}

	questions := s.sample(pool)
	startedAt := s.now()
	updated, err := s.store.Update(ctx, battleID, domain.BattleUpdate{
		ExpectStatus: domain.StatusPending,
		Status:       domain.StatusActive,
		Questions:    questions,
		StartTime:    &startedAt,
	})
	if err != nil {
		return domain.Battle{}, err
	}
	s.pending.Resolve(updated)

	s.logger.Info().Str("battle_id", battleID).Int("questions", len(questions)).Msg("battle accepted")
	return updated, nil
}

// Decline is local to the declining participant; the record is not mutated.
func (s *BattleService) Decline(ctx context.Context, battleID, viewerID string) error {
	battle, err := s.Get(ctx, battleID, viewerID)
	if err != nil {
		return err
	}
	phase, err := PhaseFor(battle, viewerID)
	if err != nil {
		return err
	}
	if !Allowed(phase, ActionDecline) {
		return domain.ErrInvalidTransition
	}
	s.logger.Info().Str("battle_id", battleID).Str("user_id", viewerID).Msg("battle declined")
	return nil
}

// Complete writes the viewer's own score and flips the battle to completed if it is not
// already. Repeating the call is a no-op.
func (s *BattleService) Complete(ctx context.Context, battleID, viewerID string, score int) (domain.Battle, error) {
	battle, err := s.Get(ctx, battleID, viewerID)
	if err != nil {
		return domain.Battle{}, err
	}
	if battle.Status == domain.StatusPending {
		return domain.Battle{}, domain.ErrInvalidTransition
	}

	endedAt := s.now()
	updated, err := s.store.Update(ctx, battleID, domain.BattleUpdate{
		Status:  domain.StatusCompleted,
		EndTime: &endedAt,
		Score:   &domain.ScoreEntry{ParticipantID: viewerID, Score: score},
	})
	if err != nil {
		return domain.Battle{}, err
	}
	s.pending.Resolve(updated)

	s.logger.Info().Str("battle_id", battleID).Str("user_id", viewerID).Int("score", updated.Scores[viewerID]).Msg("battle score reported")
	return updated, nil
}

// Subscribe streams snapshots of a battle the viewer participates in.
func (s *BattleService) Subscribe(ctx context.Context, battleID, viewerID string) (<-chan domain.Battle, func(), error) {
	if _, err := s.Get(ctx, battleID, viewerID); err != nil {
		return nil, nil, err
	}
	return s.store.Subscribe(ctx, battleID)
}

func (s *BattleService) sample(pool []domain.Question) []domain.Question {
	s.rndMu.Lock()
	defer s.rndMu.Unlock()
	return SampleQuestions(pool, s.opts.QuestionCount, s.rnd)
}

// SampleQuestions shuffles a copy of pool and keeps the first n.
func SampleQuestions(pool []domain.Question, n int, rnd *rand.Rand) []domain.Question {
	out := domain.Battle{Questions: pool}.Clone().Questions
	rnd.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
