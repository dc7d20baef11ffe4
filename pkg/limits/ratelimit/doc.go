// Package ratelimit bounds how many turns a single session may run over
// rolling time windows.
//
// Each session gets its own pair of sliding windows (per minute and per
// hour). A turn is admitted only when both windows have room; an admitted
// turn is counted immediately, a rejected one is not counted at all.
//
//	limiter := ratelimit.NewLimiter(ratelimit.Config{TurnsPerMinute: 10})
//	if res := limiter.Allow(sessionID); !res.Allowed {
//	    // refuse, retry after res.RetryAfter
//	}
//
// Windows of sessions that have been idle for longer than the widest
// window are dropped on a periodic sweep, so memory is bounded by the number
// of recently active sessions.
package ratelimit
