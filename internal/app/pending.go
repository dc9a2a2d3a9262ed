package app

import (
	"sort"
	"sync"
	"time"

	"quiz-battle-service/internal/domain"
)

// PendingChallenges tracks, per challenger, the users they have an unresolved challenge with.
// Entries expire after the configured pending TTL so an ignored or declined challenge does not
// block re-challenging forever.
type PendingChallenges struct {
	mu      sync.Mutex
	targets map[string]map[string]pendingEntry
}

type pendingEntry struct {
	battleID  string
	expiresAt time.Time
}

func NewPendingChallenges() *PendingChallenges {
	return &PendingChallenges{targets: make(map[string]map[string]pendingEntry)}
}

// Reserve claims the challenger→opponent slot. It returns false while a live entry exists.
func (p *PendingChallenges) Reserve(challengerID, opponentID string, now, until time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	byTarget, ok := p.targets[challengerID]
	if !ok {
		byTarget = make(map[string]pendingEntry)
		p.targets[challengerID] = byTarget
	}
	if entry, ok := byTarget[opponentID]; ok && entry.expiresAt.After(now) {
		return false
	}
	byTarget[opponentID] = pendingEntry{expiresAt: until}
	return true
}

// Bind attaches the created battle id to a reserved slot.
func (p *PendingChallenges) Bind(challengerID, opponentID, battleID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if entry, ok := p.targets[challengerID][opponentID]; ok {
		entry.battleID = battleID
		p.targets[challengerID][opponentID] = entry
	}
}

// Release drops a slot regardless of its battle.
func (p *PendingChallenges) Release(challengerID, opponentID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleteLocked(challengerID, opponentID)
}

// Resolve clears the slot once its battle has left the pending state.
func (p *PendingChallenges) Resolve(b domain.Battle) {
	if b.Status == domain.StatusPending {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, ok := p.targets[b.Challenger.ID][b.Opponent.ID]
	if !ok || (entry.battleID != "" && entry.battleID != b.ID) {
		return
	}
	p.deleteLocked(b.Challenger.ID, b.Opponent.ID)
}

// Targets lists the opponents the challenger currently cannot re-challenge.
func (p *PendingChallenges) Targets(challengerID string, now time.Time) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := []string{}
	for opponentID, entry := range p.targets[challengerID] {
		if entry.expiresAt.After(now) {
			out = append(out, opponentID)
			continue
		}
		delete(p.targets[challengerID], opponentID)
	}
	sort.Strings(out)
	return out
}

func (p *PendingChallenges) deleteLocked(challengerID, opponentID string) {
	delete(p.targets[challengerID], opponentID)
	if len(p.targets[challengerID]) == 0 {
		delete(p.targets, challengerID)
	}
}
