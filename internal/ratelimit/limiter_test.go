package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_ImmediateBurst(t *testing.T) {
	l := New(5, 60)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Wait(ctx), "burst token %d", i)
	}
	assert.Equal(t, 0, l.Available())
}

func TestLimiter_WaitsAfterBurst(t *testing.T) {
	l := New(1, 600) // 10/sec refill
	ctx := context.Background()
	require.NoError(t, l.Wait(ctx))

	start := time.Now()
	require.NoError(t, l.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestLimiter_CancelledContext(t *testing.T) {
	l := New(1, 1)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, l.Wait(ctx))

	cancel()
	assert.ErrorIs(t, l.Wait(ctx), context.Canceled)
}

func TestLimiter_Defaults(t *testing.T) {
	l := New(0, 0)
	assert.Equal(t, 10.0, l.max)
	assert.InDelta(t, 0.5, l.rate, 1e-9)
}

func TestLimiter_RefillUsesClock(t *testing.T) {
	l := New(2, 60) // 1/sec
	base := time.Now()
	l.now = func() time.Time { return base }
	l.lastTime = base
	l.tokens = 0

	l.now = func() time.Time { return base.Add(1500 * time.Millisecond) }
	assert.Equal(t, 1, l.Available())

	l.now = func() time.Time { return base.Add(time.Hour) }
	assert.Equal(t, 2, l.Available(), "refill is capped at burst")
}

func TestLimiter_NilNeverThrottles(t *testing.T) {
	var l *Limiter
	assert.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, l.Wait(ctx))
}
