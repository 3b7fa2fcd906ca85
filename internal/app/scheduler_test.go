package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type countingSweeper struct {
	calls atomic.Int32
	err   error
}

func (s *countingSweeper) SweepWaitlists(context.Context) (int, error) {
	s.calls.Add(1)
	return 1, s.err
}

func TestScheduler_SweepsOnStartAndTick(t *testing.T) {
	sweeper := &countingSweeper{}
	s := NewScheduler(sweeper, 10*time.Millisecond, zap.NewNop())

	s.Start(context.Background())

	assert.Eventually(t, func() bool {
		return sweeper.calls.Load() >= 3
	}, time.Second, 5*time.Millisecond)

	s.Stop()
	stopped := sweeper.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, sweeper.calls.Load())
}

func TestScheduler_ContinuesAfterError(t *testing.T) {
	sweeper := &countingSweeper{err: errors.New("db down")}
	s := NewScheduler(sweeper, 10*time.Millisecond, zap.NewNop())

	s.Start(context.Background())
	defer s.Stop()

	assert.Eventually(t, func() bool {
		return sweeper.calls.Load() >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestScheduler_Disabled(t *testing.T) {
	sweeper := &countingSweeper{}
	s := NewScheduler(sweeper, 0, zap.NewNop())

	s.Start(context.Background())
	s.Stop()

	assert.Equal(t, int32(0), sweeper.calls.Load())
}

func TestScheduler_StopsOnContextCancel(t *testing.T) {
	sweeper := &countingSweeper{}
	s := NewScheduler(sweeper, time.Hour, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()

	select {
	case <-s.done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after context cancel")
	}
	assert.Equal(t, int32(1), sweeper.calls.Load())
}
