package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"quiz-battle-service/internal/domain"
)

const maxUpdateAttempts = 16

// BattleStore keeps each battle as a JSON document at battle:{id} and fans out every change on
// battle:{id}:updates.
//   - Updates run as WATCH/MULTI transactions, so concurrent score writes from both
//     participants commute.
//   - Pending records expire after pendingTTL; activation switches the key to retention.
//   - Subscribers filter by revision because pub/sub and the initial GET can interleave.
type BattleStore struct {
	client     *redis.Client
	pendingTTL time.Duration
	retention  time.Duration
}

func NewBattleStore(client *redis.Client, pendingTTL, retention time.Duration) *BattleStore {
	return &BattleStore{client: client, pendingTTL: pendingTTL, retention: retention}
}

func (s *BattleStore) Create(ctx context.Context, battle domain.Battle) (string, error) {
	if battle.ID == "" {
		battle.ID = uuid.NewString()
	}
	payload, err := json.Marshal(battle)
	if err != nil {
		return "", fmt.Errorf("encode battle: %w", err)
	}
	ok, err := s.client.SetNX(ctx, s.key(battle.ID), payload, s.pendingTTL).Result()
	if err != nil {
		return "", fmt.Errorf("create battle %s: %w", battle.ID, err)
	}
	if !ok {
		return "", fmt.Errorf("create battle %s: id already taken", battle.ID)
	}
	return battle.ID, nil
}

func (s *BattleStore) Get(ctx context.Context, id string) (domain.Battle, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Battle{}, domain.ErrBattleNotFound
		}
		return domain.Battle{}, fmt.Errorf("get battle %s: %w", id, err)
	}
	return decodeBattle(raw)
}

func (s *BattleStore) Update(ctx context.Context, id string, u domain.BattleUpdate) (domain.Battle, error) {
	key := s.key(id)
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		var result domain.Battle
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					return domain.ErrBattleNotFound
				}
				return err
			}
			current, err := decodeBattle(raw)
			if err != nil {
				return err
			}
			next, changed, err := current.Apply(u)
			if err != nil {
				return err
			}
			result = next
			if !changed {
				return nil
			}
			payload, err := json.Marshal(next)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, payload, redis.KeepTTL)
				if current.Status == domain.StatusPending && next.Status != domain.StatusPending {
					if s.retention > 0 {
						pipe.Expire(ctx, key, s.retention)
					} else {
						pipe.Persist(ctx, key)
					}
				}
				pipe.Publish(ctx, s.channel(id), payload)
				return nil
			})
			return err
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			if errors.Is(err, domain.ErrBattleNotFound) || errors.Is(err, domain.ErrInvalidTransition) ||
				errors.Is(err, domain.ErrNotParticipant) || errors.Is(err, domain.ErrInvalidScore) {
				return domain.Battle{}, err
			}
			return domain.Battle{}, fmt.Errorf("update battle %s: %w", id, err)
		}
		return result, nil
	}
	return domain.Battle{}, fmt.Errorf("update battle %s: %w", id, redis.TxFailedErr)
}

// Subscribe confirms the pub/sub subscription before reading the initial snapshot so no change
// can fall between the two.
func (s *BattleStore) Subscribe(ctx context.Context, id string) (<-chan domain.Battle, func(), error) {
	pubsub := s.client.Subscribe(ctx, s.channel(id))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe battle %s: %w", id, err)
	}
	initial, err := s.Get(ctx, id)
	if err != nil {
		_ = pubsub.Close()
		return nil, nil, err
	}

	out := make(chan domain.Battle, 8)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = pubsub.Close()
		})
	}

	go func() {
		defer close(out)
		last := initial.Revision
		deliver(out, initial)
		msgs := pubsub.Channel()
		for {
			select {
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				b, err := decodeBattle([]byte(msg.Payload))
				if err != nil || b.Revision <= last {
					continue
				}
				last = b.Revision
				deliver(out, b)
			}
		}
	}()

	stop := context.AfterFunc(ctx, cancel)
	return out, func() {
		stop()
		cancel()
	}, nil
}

// deliver never blocks; a full buffer loses its oldest snapshot.
func deliver(ch chan domain.Battle, b domain.Battle) {
	select {
	case ch <- b:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	ch <- b
}

func decodeBattle(raw []byte) (domain.Battle, error) {
	var b domain.Battle
	if err := json.Unmarshal(raw, &b); err != nil {
		return domain.Battle{}, fmt.Errorf("decode battle: %w", err)
	}
	return b, nil
}

func (s *BattleStore) key(id string) string {
	return "battle:" + id
}

func (s *BattleStore) channel(id string) string {
	return "battle:" + id + ":updates"
}
