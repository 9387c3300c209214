package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/BradenHooton/useraccounts/internal/auth"
	"github.com/stretchr/testify/assert"
)

func TestLoginDelay_WaitFrom_PadsToFloor(t *testing.T) {
	delay := auth.NewLoginDelay(80*time.Millisecond, 0)
	start := time.Now()

	delay.WaitFrom(context.Background(), start)

	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestLoginDelay_WaitFrom_AdjustsForElapsedTime(t *testing.T) {
	delay := auth.NewLoginDelay(100*time.Millisecond, 0)
	start := time.Now()

	// Simulate the credential check itself
	time.Sleep(50 * time.Millisecond)

	delay.WaitFrom(context.Background(), start)

	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, 140*time.Millisecond)
}

func TestLoginDelay_WaitFrom_NoWaitIfAlreadyExceeded(t *testing.T) {
	delay := auth.NewLoginDelay(20*time.Millisecond, 0)
	start := time.Now().Add(-time.Second)

	before := time.Now()
	delay.WaitFrom(context.Background(), start)

	assert.Less(t, time.Since(before), 10*time.Millisecond)
}

func TestLoginDelay_WaitFrom_StopsOnCancel(t *testing.T) {
	delay := auth.NewLoginDelay(5*time.Second, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	delay.WaitFrom(ctx, start)

	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestLoginDelay_Nil(t *testing.T) {
	var delay *auth.LoginDelay
	assert.NotPanics(t, func() {
		delay.WaitFrom(context.Background(), time.Now())
	})
}
