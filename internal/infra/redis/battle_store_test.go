package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"quiz-battle-service/internal/domain"
)

func TestBattleStoreCreateSetsPendingTTL(t *testing.T) {
	mr, client := startRedis(t)
	store := NewBattleStore(client, time.Hour, 24*time.Hour)
	ctx := context.Background()

	id, err := store.Create(ctx, domain.NewBattle("b1", participant("c"), participant("o"), time.Unix(1_700_000_000, 0)))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id != "b1" {
		t.Fatalf("expected id b1, got %s", id)
	}
	if ttl := mr.TTL("battle:b1"); ttl != time.Hour {
		t.Fatalf("expected pending ttl 1h, got %s", ttl)
	}

	b, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if b.Status != domain.StatusPending || b.Scores["c"] != 0 || b.Scores["o"] != 0 {
		t.Fatalf("unexpected battle: %+v", b)
	}

	if _, err := store.Create(ctx, domain.NewBattle("b1", participant("c"), participant("o"), time.Now())); err == nil {
		t.Fatalf("expected duplicate create to fail")
	}
}

func TestBattleStoreActivationSwitchesToRetention(t *testing.T) {
	mr, client := startRedis(t)
	store := NewBattleStore(client, time.Hour, 24*time.Hour)
	id := activeBattle(t, store)

	if ttl := mr.TTL("battle:" + id); ttl != 24*time.Hour {
		t.Fatalf("expected retention ttl, got %s", ttl)
	}
	b, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if b.Status != domain.StatusActive || len(b.Questions) != 2 || b.StartTime == nil || b.Revision != 2 {
		t.Fatalf("unexpected active battle: %+v", b)
	}
}

func TestBattleStoreUpdateErrors(t *testing.T) {
	_, client := startRedis(t)
	store := NewBattleStore(client, time.Hour, time.Hour)
	ctx := context.Background()

	if _, err := store.Update(ctx, "missing", domain.BattleUpdate{Status: domain.StatusActive}); !errors.Is(err, domain.ErrBattleNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	id := activeBattle(t, store)
	if _, err := store.Update(ctx, id, domain.BattleUpdate{ExpectStatus: domain.StatusPending, Status: domain.StatusActive}); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	end := time.Unix(1_700_000_100, 0)
	if _, err := store.Update(ctx, id, domain.BattleUpdate{
		Status:  domain.StatusCompleted,
		EndTime: &end,
		Score:   &domain.ScoreEntry{ParticipantID: "x", Score: 1},
	}); !errors.Is(err, domain.ErrNotParticipant) {
		t.Fatalf("expected not participant, got %v", err)
	}
}

func TestBattleStoreScoreWritesCommute(t *testing.T) {
	_, client := startRedis(t)
	store := NewBattleStore(client, time.Hour, time.Hour)
	ctx := context.Background()
	id := activeBattle(t, store)

	end := time.Unix(1_700_000_300, 0)
	var wg sync.WaitGroup
	for who, score := range map[string]int{"c": 1, "o": 2} {
		wg.Add(1)
		go func(who string, score int) {
			defer wg.Done()
			if _, err := store.Update(ctx, id, domain.BattleUpdate{
				Status:  domain.StatusCompleted,
				EndTime: &end,
				Score:   &domain.ScoreEntry{ParticipantID: who, Score: score},
			}); err != nil {
				t.Errorf("complete %s: %v", who, err)
			}
		}(who, score)
	}
	wg.Wait()

	b, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if b.Status != domain.StatusCompleted || b.EndTime == nil {
		t.Fatalf("expected completed with end time, got %+v", b)
	}
	if b.Scores["c"] != 1 || b.Scores["o"] != 2 {
		t.Fatalf("unexpected scores: %+v", b.Scores)
	}
	if b.Revision != 4 {
		t.Fatalf("expected revision 4, got %d", b.Revision)
	}

	// repeating a completion is a no-op
	again, err := store.Update(ctx, id, domain.BattleUpdate{
		Status:  domain.StatusCompleted,
		EndTime: &end,
		Score:   &domain.ScoreEntry{ParticipantID: "c", Score: 0},
	})
	if err != nil {
		t.Fatalf("repeat: %v", err)
	}
	if again.Revision != 4 || again.Scores["c"] != 1 {
		t.Fatalf("expected unchanged record, got %+v", again)
	}
}

func TestBattleStoreSubscribe(t *testing.T) {
	_, client := startRedis(t)
	store := NewBattleStore(client, time.Hour, time.Hour)
	ctx := context.Background()

	id, err := store.Create(ctx, domain.NewBattle("b1", participant("c"), participant("o"), time.Unix(1_700_000_000, 0)))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updates, cancel, err := store.Subscribe(ctx, id)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	initial := recv(t, updates)
	if initial.Status != domain.StatusPending {
		t.Fatalf("expected pending snapshot, got %s", initial.Status)
	}

	start := time.Unix(1_700_000_010, 0)
	if _, err := store.Update(ctx, id, domain.BattleUpdate{
		ExpectStatus: domain.StatusPending,
		Status:       domain.StatusActive,
		Questions:    sampleQuestions(),
		StartTime:    &start,
	}); err != nil {
		t.Fatalf("activate: %v", err)
	}

	active := recv(t, updates)
	if active.Status != domain.StatusActive || active.Revision != 2 {
		t.Fatalf("unexpected update: %+v", active)
	}

	cancel()
	select {
	case _, ok := <-updates:
		if ok {
			t.Fatalf("expected channel closed after cancel")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("channel not closed")
	}
}

func TestBattleStoreSubscribeUnknown(t *testing.T) {
	_, client := startRedis(t)
	store := NewBattleStore(client, time.Hour, time.Hour)
	if _, _, err := store.Subscribe(context.Background(), "missing"); !errors.Is(err, domain.ErrBattleNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func recv(t *testing.T, ch <-chan domain.Battle) domain.Battle {
	t.Helper()
	select {
	case b, ok := <-ch:
		if !ok {
			t.Fatalf("subscription closed")
		}
		return b
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for snapshot")
	}
	return domain.Battle{}
}

func activeBattle(t *testing.T, store *BattleStore) string {
	t.Helper()
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	id, err := store.Create(ctx, domain.NewBattle("b-active", participant("c"), participant("o"), now))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.Update(ctx, id, domain.BattleUpdate{
		ExpectStatus: domain.StatusPending,
		Status:       domain.StatusActive,
		Questions:    sampleQuestions(),
		StartTime:    &now,
	}); err != nil {
		t.Fatalf("activate: %v", err)
	}
	return id
}

func startRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func participant(id string) domain.Participant {
	return domain.Participant{ID: id, Name: "user " + id}
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{ID: "q1", Prompt: "What is 2 + 2?", Options: []string{"3", "4", "5", "6"}, CorrectIndex: 1, Difficulty: "medium"},
		{ID: "q2", Prompt: "What is 3 + 3?", Options: []string{"5", "6", "7", "8"}, CorrectIndex: 1, Difficulty: "medium"},
	}
}
