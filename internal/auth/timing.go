package auth

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"time"
)

// LoginDelay pads failed credential checks to a common floor so that an
// unknown email and a wrong password take about the same time.
type LoginDelay struct {
	floor  time.Duration
	jitter time.Duration
}

func NewLoginDelay(floor, jitter time.Duration) *LoginDelay {
	return &LoginDelay{floor: floor, jitter: jitter}
}

// randDuration returns a uniform duration in [0, max) from crypto/rand.
func randDuration(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0
	}
	return time.Duration(binary.BigEndian.Uint64(b[:]) % uint64(max))
}

// WaitFrom blocks until floor+jitter has elapsed since start, or ctx is done.
// A nil receiver does nothing.
func (d *LoginDelay) WaitFrom(ctx context.Context, start time.Time) {
	if d == nil {
		return
	}
	target := d.floor + randDuration(d.jitter)
	remaining := target - time.Since(start)
	if remaining <= 0 {
		return
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
