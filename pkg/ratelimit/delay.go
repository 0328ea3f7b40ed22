package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// RandomDelay pauses for a uniformly random duration in [min, max] between
// requests. It only sleeps when both bounds are positive.
type RandomDelay struct {
	min, max time.Duration

	mu    sync.Mutex
	rng   *rand.Rand
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRandomDelay creates a delay over [min, max]. Negative bounds clamp to
// zero and a minimum above the maximum clamps down to the maximum.
func NewRandomDelay(min, max time.Duration) *RandomDelay {
	max = maxDuration(max, 0)
	min = maxDuration(min, 0)
	if min > max {
		min = max
	}
	return &RandomDelay{
		min:   min,
		max:   max,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep: sleepContext,
	}
}

// Bounds returns the normalized range
func (d *RandomDelay) Bounds() (time.Duration, time.Duration) {
	return d.min, d.max
}

// Next draws the next pause length without sleeping
func (d *RandomDelay) Next() time.Duration {
	if d.min <= 0 || d.max <= 0 {
		return 0
	}
	if d.max == d.min {
		return d.min
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.min + time.Duration(d.rng.Int63n(int64(d.max-d.min)+1))
}

// Pause sleeps for the next drawn duration and returns it
func (d *RandomDelay) Pause(ctx context.Context) (time.Duration, error) {
	wait := d.Next()
	if wait <= 0 {
		return 0, ctx.Err()
	}
	return wait, d.sleep(ctx, wait)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
