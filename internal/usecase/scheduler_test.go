package usecase

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naka-gawa/repo-cache/internal/domain"
)

type fakeRunner struct {
	calls   atomic.Int32
	release chan struct{}
	err     error
	panics  bool
}

func (f *fakeRunner) Refresh(ctx context.Context) (*domain.CycleSummary, error) {
	f.calls.Add(1)
	if f.panics {
		panic("boom")
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &domain.CycleSummary{}, f.err
}

func TestNewScheduler_InvalidSpec(t *testing.T) {
	_, err := NewScheduler(&fakeRunner{}, "every hour", discardLogger())
	assert.Error(t, err)

	_, err = NewScheduler(&fakeRunner{}, DefaultSchedule, discardLogger())
	assert.NoError(t, err)
}

func TestScheduler_StartRunsImmediately(t *testing.T) {
	runner := &fakeRunner{}
	s, err := NewScheduler(runner, DefaultSchedule, discardLogger())
	require.NoError(t, err)

	s.Start(context.Background())
	assert.Eventually(t, func() bool { return runner.calls.Load() == 1 }, time.Second, 10*time.Millisecond)
	s.Stop()
}

func TestScheduler_CyclesDoNotOverlap(t *testing.T) {
	runner := &fakeRunner{release: make(chan struct{})}
	s, err := NewScheduler(runner, DefaultSchedule, discardLogger())
	require.NoError(t, err)

	s.Start(context.Background())
	require.Eventually(t, func() bool { return runner.calls.Load() == 1 }, time.Second, 10*time.Millisecond)

	s.trigger()
	s.trigger()
	assert.Equal(t, int32(1), runner.calls.Load())

	close(runner.release)
	s.Stop()

	s.trigger()
	s.wg.Wait()
	assert.Equal(t, int32(2), runner.calls.Load(), "a finished cycle frees the slot")
}

func TestScheduler_StopCancelsRunningCycle(t *testing.T) {
	runner := &fakeRunner{release: make(chan struct{})}
	s, err := NewScheduler(runner, DefaultSchedule, discardLogger())
	require.NoError(t, err)

	s.Start(context.Background())
	require.Eventually(t, func() bool { return runner.calls.Load() == 1 }, time.Second, 10*time.Millisecond)

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not cancel the running cycle")
	}
}

func TestScheduler_RunOnceSwallowsFailures(t *testing.T) {
	s, err := NewScheduler(&fakeRunner{err: errors.New("listing failed")}, DefaultSchedule, discardLogger())
	require.NoError(t, err)
	assert.False(t, s.RunOnce(context.Background()))

	s, err = NewScheduler(&fakeRunner{panics: true}, DefaultSchedule, discardLogger())
	require.NoError(t, err)
	assert.NotPanics(t, func() {
		assert.False(t, s.RunOnce(context.Background()))
	})

	s, err = NewScheduler(&fakeRunner{}, DefaultSchedule, discardLogger())
	require.NoError(t, err)
	assert.True(t, s.RunOnce(context.Background()))
}
