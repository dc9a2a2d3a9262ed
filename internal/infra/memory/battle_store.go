package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"quiz-battle-service/internal/domain"
)

// BattleStore is an in-memory implementation of app.BattleStore.
type BattleStore struct {
	mu          sync.RWMutex
	battles     map[string]domain.Battle
	subscribers map[string]map[chan domain.Battle]struct{}
}

func NewBattleStore() *BattleStore {
	return &BattleStore{
		battles:     make(map[string]domain.Battle),
		subscribers: make(map[string]map[chan domain.Battle]struct{}),
	}
}

func (s *BattleStore) Create(_ context.Context, battle domain.Battle) (string, error) {
	if battle.ID == "" {
		battle.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.battles[battle.ID] = battle.Clone()
	return battle.ID, nil
}

func (s *BattleStore) Get(_ context.Context, id string) (domain.Battle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	battle, ok := s.battles[id]
	if !ok {
		return domain.Battle{}, domain.ErrBattleNotFound
	}
	return battle.Clone(), nil
}

// Update merges u under the store lock and broadcasts when the record changed.
func (s *BattleStore) Update(_ context.Context, id string, u domain.BattleUpdate) (domain.Battle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.battles[id]
	if !ok {
		return domain.Battle{}, domain.ErrBattleNotFound
	}
	next, changed, err := current.Apply(u)
	if err != nil {
		return domain.Battle{}, err
	}
	if changed {
		s.battles[id] = next
		s.broadcastLocked(next)
	}
	return next.Clone(), nil
}

// Subscribe delivers the current snapshot first, then every change. The channel is closed by
// the cancel function or when ctx ends.
func (s *BattleStore) Subscribe(ctx context.Context, id string) (<-chan domain.Battle, func(), error) {
	ch := make(chan domain.Battle, 8)

	s.mu.Lock()
	battle, ok := s.battles[id]
	if !ok {
		s.mu.Unlock()
		return nil, nil, domain.ErrBattleNotFound
	}
	subs, ok := s.subscribers[id]
	if !ok {
		subs = make(map[chan domain.Battle]struct{})
		s.subscribers[id] = subs
	}
	subs[ch] = struct{}{}
	ch <- battle.Clone()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subscribers[id][ch]; ok {
			delete(s.subscribers[id], ch)
			if len(s.subscribers[id]) == 0 {
				delete(s.subscribers, id)
			}
			close(ch)
		}
	}
	stop := context.AfterFunc(ctx, cancel)
	return ch, func() {
		stop()
		cancel()
	}, nil
}

func (s *BattleStore) broadcastLocked(b domain.Battle) {
	for ch := range s.subscribers[b.ID] {
		snapshot := b.Clone()
		select {
		case ch <- snapshot:
		default:
			// slow subscriber: drop its oldest snapshot
			select {
			case <-ch:
			default:
			}
			ch <- snapshot
		}
	}
}
