package images

import "time"

// rateWindow is a fixed request budget that resets once window has elapsed
// since the last reset.
type rateWindow struct {
	max    int
	window time.Duration

	count int
	start time.Time
}

// take reserves one request. It reports false when the budget for the
// current window is spent.
func (r *rateWindow) take(now time.Time) bool {
	if r.start.IsZero() || now.Sub(r.start) >= r.window {
		r.count = 0
		r.start = now
	}
	if r.count >= r.max {
		return false
	}
	r.count++
	return true
}

func (r *rateWindow) remaining(now time.Time) int {
	if r.start.IsZero() || now.Sub(r.start) >= r.window {
		return r.max
	}
	return r.max - r.count
}
