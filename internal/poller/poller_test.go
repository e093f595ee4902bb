package poller

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
	quiet   = 100 * time.Millisecond
)

func newTestPoller(clock clockwork.Clock) (*Poller, *atomic.Int32) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	var calls atomic.Int32
	p := New(clock, func(context.Context) { calls.Add(1) }, logrus.NewEntry(logger))
	return p, &calls
}

func TestPollerTicks(t *testing.T) {
	clock := clockwork.NewFakeClock()
	p, calls := newTestPoller(clock)

	p.Start(10 * time.Minute)
	defer p.Stop()
	assert.True(t, p.Running())

	for i := int32(1); i <= 3; i++ {
		clock.Advance(10 * time.Minute)
		want := i
		require.Eventually(t, func() bool { return calls.Load() == want }, waitFor, tick)
	}
}

func TestPollerRestartKeepsSingleTimer(t *testing.T) {
	clock := clockwork.NewFakeClock()
	p, calls := newTestPoller(clock)

	p.Start(10 * time.Minute)
	defer p.Stop()

	clock.Advance(10 * time.Minute)
	require.Eventually(t, func() bool { return calls.Load() == 1 }, waitFor, tick)

	// restart mid-interval
	clock.Advance(5 * time.Minute)
	p.Start(10 * time.Minute)

	// the replaced timer would have fired here
	clock.Advance(5 * time.Minute)
	assert.Never(t, func() bool { return calls.Load() != 1 }, quiet, tick)

	clock.Advance(5 * time.Minute)
	require.Eventually(t, func() bool { return calls.Load() == 2 }, waitFor, tick)

	clock.Advance(10 * time.Minute)
	require.Eventually(t, func() bool { return calls.Load() == 3 }, waitFor, tick)
	assert.Never(t, func() bool { return calls.Load() > 3 }, quiet, tick)
}

func TestPollerStopIsIdempotent(t *testing.T) {
	clock := clockwork.NewFakeClock()
	p, calls := newTestPoller(clock)

	p.Stop()
	assert.False(t, p.Running())

	p.Start(time.Minute)
	p.Stop()
	p.Stop()
	assert.False(t, p.Running())

	clock.Advance(5 * time.Minute)
	assert.Never(t, func() bool { return calls.Load() > 0 }, quiet, tick)
}

func TestPollerExecuteNow(t *testing.T) {
	clock := clockwork.NewFakeClock()
	p, calls := newTestPoller(clock)

	p.Start(10 * time.Minute)
	defer p.Stop()

	clock.Advance(8 * time.Minute)
	p.ExecuteNow(context.Background(), 0)
	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, p.Running())
	assert.Equal(t, 10*time.Minute, p.Interval())

	// timer was rearmed from the forced update, not from the original start
	clock.Advance(2 * time.Minute)
	assert.Never(t, func() bool { return calls.Load() != 1 }, quiet, tick)

	clock.Advance(8 * time.Minute)
	require.Eventually(t, func() bool { return calls.Load() == 2 }, waitFor, tick)
}

func TestPollerExecuteNowWithoutStart(t *testing.T) {
	clock := clockwork.NewFakeClock()
	p, calls := newTestPoller(clock)
	defer p.Stop()

	p.ExecuteNow(context.Background(), 5*time.Minute)
	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, p.Running())
	assert.Equal(t, 5*time.Minute, p.Interval())

	clock.Advance(5 * time.Minute)
	require.Eventually(t, func() bool { return calls.Load() == 2 }, waitFor, tick)
}

func TestPollerExecuteNowWithoutInterval(t *testing.T) {
	p, calls := newTestPoller(clockwork.NewFakeClock())

	p.ExecuteNow(context.Background(), 0)
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, p.Running())
}

func TestPollerExecuteNowNewInterval(t *testing.T) {
	clock := clockwork.NewFakeClock()
	p, calls := newTestPoller(clock)
	defer p.Stop()

	p.Start(10 * time.Minute)
	p.ExecuteNow(context.Background(), 2*time.Minute)
	assert.Equal(t, 2*time.Minute, p.Interval())

	clock.Advance(2 * time.Minute)
	require.Eventually(t, func() bool { return calls.Load() == 2 }, waitFor, tick)
}
