package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// sweepEvery is the number of Allow calls between idle-session sweeps.
const sweepEvery = 256

// Config sets the per-session turn budgets. Zero disables a window.
type Config struct {
	TurnsPerMinute int
	TurnsPerHour   int
}

// Enabled reports whether any window is configured.
func (c Config) Enabled() bool {
	return c.TurnsPerMinute > 0 || c.TurnsPerHour > 0
}

// CheckResult is the outcome of one admission check.
type CheckResult struct {
	// Allowed indicates the turn may run.
	Allowed bool

	// Reason names the exhausted window when Allowed is false.
	Reason string

	// Limit is the budget of the exhausted window.
	Limit int64

	// RetryAfter is how long until the exhausted window has room again.
	RetryAfter time.Duration
}

type limit struct {
	name   string
	budget int64
	window *SlidingWindow
}

type sessionWindows struct {
	limits   []*limit
	lastSeen time.Time
}

// Limiter admits turns per session. It is safe for concurrent use.
type Limiter struct {
	config Config
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*sessionWindows
	calls    int
}

// NewLimiter creates a limiter for cfg.
func NewLimiter(cfg Config) *Limiter {
	return &Limiter{
		config:   cfg,
		now:      time.Now,
		sessions: make(map[string]*sessionWindows),
	}
}

// Allow checks and, when admitted, counts one turn for sessionID.
func (l *Limiter) Allow(sessionID string) CheckResult {
	if l == nil || !l.config.Enabled() {
		return CheckResult{Allowed: true}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.calls++
	if l.calls%sweepEvery == 0 {
		l.sweepLocked(now)
	}

	sw := l.sessions[sessionID]
	if sw == nil {
		sw = l.newSessionWindows()
		l.sessions[sessionID] = sw
	}
	sw.lastSeen = now

	for _, lim := range sw.limits {
		if lim.window.Sum(now) >= lim.budget {
			return CheckResult{
				Allowed:    false,
				Reason:     fmt.Sprintf("turns per %s limit exceeded", lim.name),
				Limit:      lim.budget,
				RetryAfter: lim.window.RetryAfter(now),
			}
		}
	}
	for _, lim := range sw.limits {
		lim.window.Add(now, 1)
	}
	return CheckResult{Allowed: true}
}

// Forget drops the windows of sessionID.
func (l *Limiter) Forget(sessionID string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	delete(l.sessions, sessionID)
	l.mu.Unlock()
}

// Sessions returns the number of sessions currently tracked.
func (l *Limiter) Sessions() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sessions)
}

// Sweep drops sessions idle for longer than the widest window.
func (l *Limiter) Sweep() {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.sweepLocked(l.now())
	l.mu.Unlock()
}

func (l *Limiter) sweepLocked(now time.Time) {
	idle := time.Minute
	if l.config.TurnsPerHour > 0 {
		idle = time.Hour
	}
	for id, sw := range l.sessions {
		if now.Sub(sw.lastSeen) > idle {
			delete(l.sessions, id)
		}
	}
}

func (l *Limiter) newSessionWindows() *sessionWindows {
	sw := &sessionWindows{}
	if l.config.TurnsPerMinute > 0 {
		sw.limits = append(sw.limits, &limit{
			name:   "minute",
			budget: int64(l.config.TurnsPerMinute),
			window: NewSlidingWindow(time.Minute, time.Second),
		})
	}
	if l.config.TurnsPerHour > 0 {
		sw.limits = append(sw.limits, &limit{
			name:   "hour",
			budget: int64(l.config.TurnsPerHour),
			window: NewSlidingWindow(time.Hour, time.Minute),
		})
	}
	return sw
}
