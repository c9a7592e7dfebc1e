package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowUpToLimit(t *testing.T) {
	now := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	l := New(2, time.Minute)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow())
	l.Record()
	assert.True(t, l.Allow())
	l.Record()

	assert.False(t, l.Allow())
	assert.Equal(t, 2, l.InFlight())
}

func TestWindowSlides(t *testing.T) {
	now := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	l := New(2, time.Minute)
	l.now = func() time.Time { return now }

	l.Record()
	l.Record()
	require.False(t, l.Allow())

	// Half a window later the stamps are still live.
	now = now.Add(30 * time.Second)
	assert.False(t, l.Allow())

	// Once the stamps age out, slots free up again.
	now = now.Add(31 * time.Second)
	assert.True(t, l.Allow())
	assert.Equal(t, 0, l.InFlight())
}

func TestWaitReturnsImmediatelyWhenFree(t *testing.T) {
	l := New(1, time.Minute)
	require.NoError(t, l.Wait(context.Background()))
}

func TestWaitHonoursCancellation(t *testing.T) {
	now := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	l := New(1, time.Hour)
	l.now = func() time.Time { return now }
	l.Record()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := l.Wait(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestWaitResumesAfterSlotFrees(t *testing.T) {
	l := New(1, 20*time.Millisecond)
	l.Record()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, l.Wait(ctx))
	assert.True(t, l.Allow())
}
