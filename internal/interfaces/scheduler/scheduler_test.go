package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countingProvider(count *atomic.Int32) func(context.Context) ([]Job, error) {
	return func(context.Context) ([]Job, error) {
		return []Job{&MockJob{ExecuteFunc: func(ctx context.Context) error {
			count.Add(1)
			return nil
		}}}, nil
	}
}

func TestNewScheduler_Validation(t *testing.T) {
	_, err := NewScheduler(SchedulerConfig{})
	assert.Error(t, err)

	_, err = NewScheduler(SchedulerConfig{Interval: -time.Second, JobProvider: countingProvider(new(atomic.Int32))})
	assert.Error(t, err)

	s, err := NewScheduler(SchedulerConfig{JobProvider: countingProvider(new(atomic.Int32))})
	require.NoError(t, err)
	assert.Equal(t, DefaultInterval, s.Interval())
}

func TestScheduler_TicksOnInterval(t *testing.T) {
	var count atomic.Int32
	s, err := NewScheduler(SchedulerConfig{
		Interval:    10 * time.Millisecond,
		WorkerCount: 2,
		QueueSize:   4,
		JobProvider: countingProvider(&count),
	})
	require.NoError(t, err)

	s.Start()
	assert.Eventually(t, func() bool { return count.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	s.Shutdown(time.Second)

	assert.False(t, s.LastRun().IsZero())

	// No further runs after shutdown.
	after := count.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, count.Load())
}

func TestScheduler_RunOnStartup(t *testing.T) {
	var count atomic.Int32
	s, err := NewScheduler(SchedulerConfig{
		Interval:     time.Hour,
		WorkerCount:  1,
		QueueSize:    1,
		RunOnStartup: true,
		JobProvider:  countingProvider(&count),
	})
	require.NoError(t, err)

	s.Start()
	s.Shutdown(time.Second)

	assert.Equal(t, int32(1), count.Load())
}

func TestScheduler_TriggerNow(t *testing.T) {
	var count atomic.Int32
	s, err := NewScheduler(SchedulerConfig{
		Interval:    time.Hour,
		WorkerCount: 1,
		QueueSize:   2,
		JobProvider: countingProvider(&count),
	})
	require.NoError(t, err)

	s.Start()
	require.NoError(t, s.TriggerNow())
	assert.Eventually(t, func() bool { return count.Load() == 1 }, time.Second, 5*time.Millisecond)

	s.Shutdown(time.Second)
	assert.ErrorIs(t, s.TriggerNow(), ErrPoolClosed)
}

func TestScheduler_ProviderError(t *testing.T) {
	s, err := NewScheduler(SchedulerConfig{
		Interval: time.Hour,
		JobProvider: func(context.Context) ([]Job, error) {
			return nil, errors.New("no node")
		},
	})
	require.NoError(t, err)

	s.Start()
	defer s.Shutdown(time.Second)

	assert.ErrorContains(t, s.TriggerNow(), "no node")
	assert.True(t, s.LastRun().IsZero())
}

func TestScheduler_OverlappingTicks(t *testing.T) {
	var running, maxRunning atomic.Int32
	release := make(chan struct{})

	s, err := NewScheduler(SchedulerConfig{
		Interval:    time.Hour,
		WorkerCount: 2,
		QueueSize:   2,
		JobProvider: func(context.Context) ([]Job, error) {
			return []Job{&MockJob{ExecuteFunc: func(ctx context.Context) error {
				n := running.Add(1)
				for {
					m := maxRunning.Load()
					if n <= m || maxRunning.CompareAndSwap(m, n) {
						break
					}
				}
				<-release
				running.Add(-1)
				return nil
			}}}, nil
		},
	})
	require.NoError(t, err)

	s.Start()
	require.NoError(t, s.TriggerNow())
	require.NoError(t, s.TriggerNow())

	assert.Eventually(t, func() bool { return maxRunning.Load() == 2 }, time.Second, 5*time.Millisecond)
	close(release)
	s.Shutdown(time.Second)
}
