package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func TestScheduler_RunsOnEveryTick(t *testing.T) {
	clk := clocktesting.NewFakeClock(time.Now())
	var calls atomic.Int32

	s := New("cleanup", time.Minute, clk, func(context.Context) { calls.Add(1) }, nil)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.Eventually(t, clk.HasWaiters, waitFor, tick)

	for i := 1; i <= 3; i++ {
		clk.Step(time.Minute)
		want := int32(i)
		require.Eventually(t, func() bool { return calls.Load() == want }, waitFor, tick)
		require.Eventually(t, func() bool { return !s.Running() }, waitFor, tick)
	}
}

func TestScheduler_SkipsOverlappingTicks(t *testing.T) {
	clk := clocktesting.NewFakeClock(time.Now())
	release := make(chan struct{})
	var calls atomic.Int32

	s := New("evaluate", time.Second, clk, func(ctx context.Context) {
		calls.Add(1)
		select {
		case <-release:
		case <-ctx.Done():
		}
	}, nil)

	assert.True(t, s.RunNow(context.Background()))
	require.Eventually(t, func() bool { return calls.Load() == 1 }, waitFor, tick)

	assert.False(t, s.RunNow(context.Background()))
	assert.False(t, s.RunNow(context.Background()))
	assert.Equal(t, int64(2), s.Skipped())
	assert.Equal(t, int32(1), calls.Load())

	close(release)
	require.Eventually(t, func() bool { return !s.Running() }, waitFor, tick)

	assert.True(t, s.RunNow(context.Background()))
	require.Eventually(t, func() bool { return calls.Load() == 2 }, waitFor, tick)
	require.Eventually(t, func() bool { return !s.Running() }, waitFor, tick)
}

func TestScheduler_StopCancelsInFlightRun(t *testing.T) {
	clk := clocktesting.NewFakeClock(time.Now())
	started := make(chan struct{})
	cancelled := make(chan struct{})

	s := New("evaluate", time.Second, clk, func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		close(cancelled)
	}, nil)

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyStarted)

	require.Eventually(t, clk.HasWaiters, waitFor, tick)
	clk.Step(time.Second)
	<-started

	s.Stop()

	select {
	case <-cancelled:
	default:
		t.Fatal("Stop returned before the in-flight run finished")
	}
	s.Stop()
}

func TestScheduler_RecoversPanics(t *testing.T) {
	s := New("boom", time.Second, clocktesting.NewFakeClock(time.Now()), func(context.Context) {
		panic("exploded")
	}, nil)

	assert.True(t, s.RunNow(context.Background()))
	require.Eventually(t, func() bool { return !s.Running() }, waitFor, tick)
	assert.True(t, s.RunNow(context.Background()))
	require.Eventually(t, func() bool { return !s.Running() }, waitFor, tick)
}

func TestScheduler_RejectsZeroInterval(t *testing.T) {
	s := New("bad", 0, nil, func(context.Context) {}, nil)
	assert.Error(t, s.Start(context.Background()))
}
