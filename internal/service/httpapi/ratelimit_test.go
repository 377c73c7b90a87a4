package httpapi

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRateLimiterDisabled(t *testing.T) {
	assert.Nil(t, NewRateLimiter(0, 10))
	assert.Nil(t, NewRateLimiter(-1, 10))

	var l *RateLimiter
	l.Run(context.Background())
}

func TestRateLimiter_PerClientBuckets(t *testing.T) {
	l := NewRateLimiter(1, 1)
	require.NotNil(t, l)

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"), "clients must not share a bucket")

	now = now.Add(time.Second)
	assert.True(t, l.Allow("10.0.0.1"), "bucket refills with time")
}

func TestRateLimiter_Cleanup(t *testing.T) {
	l := NewRateLimiter(5, 5)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.Allow("old")
	now = now.Add(visitorTTL + time.Second)
	l.Allow("fresh")

	l.Cleanup()
	assert.Equal(t, 1, l.size())
}

func TestRateLimiter_RunStopsOnCancel(t *testing.T) {
	l := NewRateLimiter(5, 5)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
