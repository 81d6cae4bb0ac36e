package session

import (
	"sync"
	"time"
)

// TimerRegistry holds at most one inactivity timer per user. Arming again
// before expiry replaces the previous timer, giving a sliding idle window.
type TimerRegistry struct {
	mu     sync.Mutex
	timers map[int64]*timerHandle
}

type timerHandle struct {
	timer *time.Timer
}

func NewTimerRegistry() *TimerRegistry {
	return &TimerRegistry{timers: make(map[int64]*timerHandle)}
}

// Arm schedules onExpire(userID) to run once after d, replacing any timer
// already armed for this user. Each call produces a fresh handle; a fire
// that lost the race against a re-arm finds its handle superseded and does
// nothing, so every arm-cycle has at most one expiry side effect.
func (r *TimerRegistry) Arm(userID int64, d time.Duration, onExpire func(userID int64)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.timers[userID]; ok {
		prev.timer.Stop()
	}
	h := &timerHandle{}
	h.timer = time.AfterFunc(d, func() {
		r.mu.Lock()
		if r.timers[userID] != h {
			r.mu.Unlock()
			return
		}
		delete(r.timers, userID)
		r.mu.Unlock()
		onExpire(userID)
	})
	r.timers[userID] = h
}

// Cancel stops and forgets the user's timer, if any. Idempotent.
func (r *TimerRegistry) Cancel(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.timers[userID]; ok {
		h.timer.Stop()
		delete(r.timers, userID)
	}
}
