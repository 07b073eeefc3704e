package gateway

import "time"

// rateLimiter is a fixed-window counter: at most limit operations per
// window, reset wholesale once the window has elapsed. Bursts straddling a
// window boundary get through; that is acceptable for a backoff signal.
// Only the owning connection's readPump touches it.
type rateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	count       int
	windowStart time.Time
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

func (l *rateLimiter) allow() bool {
	t := l.now()
	if t.Sub(l.windowStart) >= l.window {
		l.windowStart = t
		l.count = 0
	}
	if l.count >= l.limit {
		return false
	}
	l.count++
	return true
}
