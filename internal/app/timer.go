package app

import "time"

// DefaultBattleDuration is the fixed time limit of an active battle.
const DefaultBattleDuration = 5 * time.Minute

// RemainingSeconds is floor((duration - elapsed) / 1s), clamped at zero.
func RemainingSeconds(start, now time.Time, duration time.Duration) int {
	left := duration - now.Sub(start)
	if left <= 0 {
		return 0
	}
	return int(left / time.Second)
}

// Countdown ticks a derived remaining time down to zero and reports expiry once.
type Countdown struct {
	remaining int
	synced    bool
	fired     bool
}

// Sync recomputes the remaining time from the stored start instant. Called on every observed
// snapshot so a reconnecting client never restarts the full duration.
func (c *Countdown) Sync(start, now time.Time, duration time.Duration) {
	c.remaining = RemainingSeconds(start, now, duration)
	c.synced = true
}

// Tick decrements by one second and never goes below zero.
func (c *Countdown) Tick() {
	if c.remaining > 0 {
		c.remaining--
	}
}

// Expired returns true exactly once, the first time it is called at zero.
func (c *Countdown) Expired() bool {
	if !c.synced || c.fired || c.remaining > 0 {
		return false
	}
	c.fired = true
	return true
}

// Stop zeroes the countdown without reporting expiry.
func (c *Countdown) Stop() {
	c.remaining = 0
	c.synced = true
	c.fired = true
}

func (c *Countdown) Remaining() int { return c.remaining }
func (c *Countdown) Synced() bool   { return c.synced }
