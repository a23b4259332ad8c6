// Package ratelimit gates contact submissions per client address with a fixed
// window counter.
//
// A fixed window resets the whole count at once, so a client can get up to
// twice the limit through in a short burst straddling a window boundary.
// That is acceptable for a contact form.
package ratelimit

import (
	"context"
	"time"
)

const (
	DefaultMax    = 5
	DefaultWindow = time.Hour
)

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed bool
	// Remaining is how many more requests the key may make in this window.
	Remaining int
	// ResetAt is when the current window ends.
	ResetAt time.Time
}

// RetryAfter is the wait until the window ends, rounded up to a second.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if d.Allowed || !d.ResetAt.After(now) {
		return 0
	}
	wait := d.ResetAt.Sub(now)
	if wait%time.Second == 0 {
		return wait
	}
	return wait.Truncate(time.Second) + time.Second
}

// Limiter admits or denies a request for key. Implementations must make the
// check and the increment atomic per key.
type Limiter interface {
	Admit(ctx context.Context, key string) (Decision, error)
}

// Clock returns the current time. Tests pass a fixed clock.
type Clock func() time.Time
