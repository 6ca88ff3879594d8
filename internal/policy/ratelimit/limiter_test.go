package ratelimit

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterWaitPacesSameHost(t *testing.T) {
	t.Parallel()

	var delays atomic.Int64
	// 10 requests per second = 100ms interval
	l := New(Config{
		DefaultRPS:   10,
		DefaultBurst: 1,
		OnDelay:      func(string, time.Duration) { delays.Add(1) },
	})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://quotes.example/page/1/"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://quotes.example/page/2/"))
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
	assert.Equal(t, int64(1), delays.Load())
}

func TestLimiterDifferentHosts(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 1, DefaultBurst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://a.example/1"))

	// Host B should not be blocked by A
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://b.example/1"))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestLimiterDisabledWhenRateIsZero(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	start := time.Now()
	for i := 0; i < 50; i++ {
		require.NoError(t, l.Wait(context.Background(), "https://quotes.example/"))
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestLimiterWaitHonorsContext(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 0.1, DefaultBurst: 1})
	require.NoError(t, l.Wait(context.Background(), "https://quotes.example/"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.Error(t, l.Wait(ctx, "https://quotes.example/"))
}
