// Package cooldown limits how often the bot replies in the same chat.
package cooldown

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter allows one event per chat every period.
type Limiter struct {
	period time.Duration

	mu     sync.Mutex
	limits map[int64]*rate.Limiter
}

// New creates a Limiter. A non-positive period never limits.
func New(period time.Duration) *Limiter {
	return &Limiter{
		period: period,
		limits: make(map[int64]*rate.Limiter),
	}
}

// getLimiter gets or creates the limiter of a chat
func (l *Limiter) getLimiter(chatID int64) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limiter, ok := l.limits[chatID]; ok {
		return limiter
	}

	limit := rate.Inf
	if l.period > 0 {
		limit = rate.Every(l.period)
	}
	limiter := rate.NewLimiter(limit, 1)
	l.limits[chatID] = limiter
	return limiter
}

// Allow reserves the chat's slot now, reporting false while it is cooling down.
func (l *Limiter) Allow(chatID int64) bool {
	return l.AllowAt(chatID, time.Now())
}

// AllowAt is Allow at a given instant.
func (l *Limiter) AllowAt(chatID int64, t time.Time) bool {
	return l.getLimiter(chatID).AllowN(t, 1)
}
