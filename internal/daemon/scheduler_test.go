package daemon

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/harvestcycle/internal/config"
	"git.home.luguber.info/inful/harvestcycle/internal/foundation/errors"
	"git.home.luguber.info/inful/harvestcycle/internal/metrics"
	"git.home.luguber.info/inful/harvestcycle/internal/retry"
)

type fakeSaver struct {
	calls    atomic.Int32
	failures atomic.Int32
}

func (f *fakeSaver) SaveChanged(context.Context) (bool, error) {
	f.calls.Add(1)
	if f.failures.Load() > 0 {
		f.failures.Add(-1)
		return false, errors.PersistError("disk full").Build()
	}
	return true, nil
}

type retryRecorder struct {
	metrics.NoopRecorder
	mu      sync.Mutex
	retries int
}

func (r *retryRecorder) IncSaveRetry() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retries++
}

func (r *retryRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.retries
}

func fastPolicy() retry.Policy {
	return retry.NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, 3)
}

func TestScheduler_ScheduleAutoSave(t *testing.T) {
	t.Run("returns job id for valid interval", func(t *testing.T) {
		s, err := NewScheduler(fastPolicy(), nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Stop(context.Background()) })

		id, err := s.ScheduleAutoSave(t.Context(), 10*time.Second, &fakeSaver{})
		require.NoError(t, err)
		require.NotEmpty(t, id)
	})

	t.Run("rejects non-positive interval", func(t *testing.T) {
		s, err := NewScheduler(fastPolicy(), nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Stop(context.Background()) })

		_, err = s.ScheduleAutoSave(t.Context(), 0, &fakeSaver{})
		require.Error(t, err)
	})

	t.Run("rejects nil target", func(t *testing.T) {
		s, err := NewScheduler(fastPolicy(), nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Stop(context.Background()) })

		_, err = s.ScheduleAutoSave(t.Context(), time.Second, nil)
		require.Error(t, err)
	})
}

func TestScheduler_AutoSaveRuns(t *testing.T) {
	s, err := NewScheduler(fastPolicy(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	saver := &fakeSaver{}
	_, err = s.ScheduleAutoSave(t.Context(), 20*time.Millisecond, saver)
	require.NoError(t, err)
	s.Start(t.Context())

	require.Eventually(t, func() bool { return saver.calls.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestScheduler_ExecuteSaveRetries(t *testing.T) {
	rec := &retryRecorder{}
	s, err := NewScheduler(fastPolicy(), rec)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	saver := &fakeSaver{}
	saver.failures.Store(2)
	s.executeSave(t.Context(), saver)

	require.Equal(t, int32(3), saver.calls.Load())
	require.Equal(t, 2, rec.count())
}

func TestScheduler_ExecuteSaveGivesUp(t *testing.T) {
	rec := &retryRecorder{}
	s, err := NewScheduler(fastPolicy(), rec)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	saver := &fakeSaver{}
	saver.failures.Store(10)
	s.executeSave(t.Context(), saver)

	// first attempt plus three retries
	require.Equal(t, int32(4), saver.calls.Load())
	require.Equal(t, 3, rec.count())
}
