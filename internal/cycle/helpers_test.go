package cycle

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/harvestcycle/internal/metrics"
)

var testNow = time.Date(2024, 5, 17, 9, 30, 0, 0, time.UTC)

// writeStateFile writes content to name inside a fresh temp dir and returns the path.
func writeStateFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// createTestStore bootstraps an empty state file and returns a store over it.
func createTestStore(t *testing.T, name string, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	s, err := Create(t.Context(), path, nil, opts...)
	require.NoError(t, err)
	return s
}

type countingRecorder struct {
	mu        sync.Mutex
	saves     map[metrics.ResultLabel]int
	created   map[string]int
	endpoints int
	retries   int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{saves: map[metrics.ResultLabel]int{}, created: map[string]int{}}
}

func (r *countingRecorder) ObserveSaveDuration(time.Duration) {}
func (r *countingRecorder) IncSaveResult(l metrics.ResultLabel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves[l]++
}
func (r *countingRecorder) IncSaveRetry() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retries++
}
func (r *countingRecorder) IncEndpointCreated(group string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created[group]++
}
func (r *countingRecorder) SetEndpointCount(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoints = n
}
