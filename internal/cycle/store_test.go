package cycle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/harvestcycle/internal/foundation/errors"
	"git.home.luguber.info/inful/harvestcycle/internal/metrics"
)

func TestStore(t *testing.T) {
	t.Run("Round trip", testRoundTrip)
	t.Run("Find or create", testFindOrCreate)
	t.Run("Creation side effect", testCreationSideEffect)
	t.Run("Argument validation", testArgumentValidation)
	t.Run("Concurrent saves", testConcurrentSaves)
	t.Run("Concurrent find or create", testConcurrentFindOrCreate)
	t.Run("Save failure keeps state", testSaveFailureKeepsState)
	t.Run("Open failures", testOpenFailures)
}

func testRoundTrip(t *testing.T) {
	for _, name := range []string{"overview.json", "overview.yaml", "overview.xml"} {
		t.Run(name, func(t *testing.T) {
			store := createTestStore(t, name)

			overview := store.GetOverview()
			require.NoError(t, overview.SetMode(ModeRefresh))
			require.NoError(t, overview.SetScenario(ScenarioListIdentifiers))
			require.NoError(t, overview.SetInterval(36*time.Hour))
			overview.StartCycle(testNow)

			a, err := store.GetEndpoint("http://a.example.org/oai", "clarin")
			require.NoError(t, err)
			a.DoneHarvesting(true, testNow.Add(time.Minute))
			require.NoError(t, a.SetIncrement(120))
			a.SetIncremental(true)
			a.SetRefresh(true)

			b, err := store.GetEndpoint("http://b.example.org/oai", "clarin")
			require.NoError(t, err)
			b.DoneHarvesting(false, testNow.Add(2*time.Minute+123*time.Nanosecond))
			b.SetRetry(true)
			b.SetBlocked(true)
			require.NoError(t, b.SetScenario(ScenarioListPrefixes))

			// Same URI, different group: a separate record.
			_, err = store.GetEndpoint("http://a.example.org/oai", "dariah")
			require.NoError(t, err)

			require.NoError(t, store.Save(t.Context()))

			reopened, err := Open(store.Path())
			require.NoError(t, err)
			assert.Equal(t, store.Format(), reopened.Format())
			if diff := cmp.Diff(store.Snapshot(), reopened.Snapshot()); diff != "" {
				t.Fatalf("document changed across save/open (-saved +opened):\n%s", diff)
			}
			assert.Equal(t, []EndpointKey{
				{URI: "http://a.example.org/oai", Group: "clarin"},
				{URI: "http://b.example.org/oai", Group: "clarin"},
				{URI: "http://a.example.org/oai", Group: "dariah"},
			}, reopened.Endpoints())
		})
	}
}

func testFindOrCreate(t *testing.T) {
	store := createTestStore(t, "overview.json")

	first, err := store.GetEndpoint("http://x", "g1")
	require.NoError(t, err)
	second, err := store.GetEndpoint("http://x", "g1")
	require.NoError(t, err)

	first.SetBlocked(true)
	require.NoError(t, first.SetCount(5))

	assert.True(t, second.Blocked(), "mutation through one view must be visible through the other")
	assert.Equal(t, int64(5), second.Count())
	assert.Equal(t, 1, store.Len())

	looked, ok := store.LookupEndpoint("http://x", "g1")
	require.True(t, ok)
	assert.True(t, looked.Blocked())

	_, ok = store.LookupEndpoint("http://x", "g2")
	assert.False(t, ok)
	assert.Equal(t, 1, store.Len(), "lookup must not create records")
}

func testCreationSideEffect(t *testing.T) {
	rec := newCountingRecorder()
	store := createTestStore(t, "overview.json", WithRecorder(rec))
	require.Equal(t, 0, store.Len())

	ep, err := store.GetEndpoint("http://x", "g1")
	require.NoError(t, err)

	assert.Equal(t, 1, store.Len())
	assert.Equal(t, EndpointKey{URI: "http://x", Group: "g1"}, ep.Key())
	assert.False(t, ep.Blocked())
	assert.False(t, ep.Retry())
	assert.False(t, ep.Refresh())
	assert.False(t, ep.Incremental())
	assert.Equal(t, Scenario(""), ep.Scenario())
	assert.True(t, ep.Attempted().IsNone())
	assert.True(t, ep.Harvested().IsNone())
	assert.Zero(t, ep.Count())
	assert.Zero(t, ep.Increment())
	assert.Equal(t, 1, rec.created["g1"])
	assert.Equal(t, 1, rec.endpoints)

	// The new record is part of the next save.
	require.NoError(t, store.Save(t.Context()))
	reopened, err := Open(store.Path())
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.Len())
}

func testArgumentValidation(t *testing.T) {
	store := createTestStore(t, "overview.json")
	before := store.Snapshot()

	cases := []struct{ uri, group string }{
		{"", "g1"},
		{"http://x", ""},
		{"", ""},
		{"http://x/\xff", "g1"},
		{"http://x", "g\xc3"},
	}
	for _, c := range cases {
		ep, err := store.GetEndpoint(c.uri, c.group)
		require.Error(t, err)
		assert.Nil(t, ep)
		assert.True(t, IsInvalidArgument(err), "expected invalid argument, got %v", err)
	}

	if diff := cmp.Diff(before, store.Snapshot()); diff != "" {
		t.Fatalf("document modified by rejected calls:\n%s", diff)
	}
}

func testConcurrentSaves(t *testing.T) {
	const n = 8
	rec := newCountingRecorder()
	store := createTestStore(t, "overview.json", WithRecorder(rec))

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.GetEndpoint(fmt.Sprintf("http://endpoint-%d.example.org/oai", i), "g"); err != nil {
				errs <- err
				return
			}
			errs <- store.Save(context.Background())
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	reopened, err := Open(store.Path())
	require.NoError(t, err)
	assert.Equal(t, n, reopened.Len(), "last save must include every endpoint created before it")
	if diff := cmp.Diff(store.Snapshot(), reopened.Snapshot()); diff != "" {
		t.Fatalf("durable state differs from memory:\n%s", diff)
	}
	// Create saves once, then one save per goroutine.
	assert.Equal(t, n+1, rec.saves[metrics.ResultSuccess])
	assert.True(t, store.LastSaved().IsSome())

	entries, err := os.ReadDir(filepath.Dir(store.Path()))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func testConcurrentFindOrCreate(t *testing.T) {
	const n = 16
	store := createTestStore(t, "overview.json")

	views := make([]*EndpointView, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := store.GetEndpoint("http://race.example.org/oai", "g")
			if err == nil {
				views[i] = v
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, store.Len())
	views[0].SetRetry(true)
	for i, v := range views {
		require.NotNil(t, v, "view %d", i)
		assert.True(t, v.Retry(), "view %d is bound to a different record", i)
	}
}

func testSaveFailureKeepsState(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	rec := newCountingRecorder()
	store, err := Create(t.Context(), filepath.Join(dir, "overview.json"), nil, WithRecorder(rec))
	require.NoError(t, err)

	ep, err := store.GetEndpoint("http://x", "g1")
	require.NoError(t, err)
	ep.DoneHarvesting(true, testNow)
	before := store.Snapshot()

	require.NoError(t, os.RemoveAll(dir))
	err = store.Save(t.Context())
	require.Error(t, err)
	assert.True(t, IsPersistError(err), "expected persist error, got %v", err)
	assert.True(t, ferrors.IsRetryable(err), "an I/O failure can be retried")
	assert.Equal(t, 1, rec.saves[metrics.ResultFailed])
	if diff := cmp.Diff(before, store.Snapshot()); diff != "" {
		t.Fatalf("failed save modified the document:\n%s", diff)
	}

	// The store stays usable and a retry succeeds once the directory is back.
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, store.Save(t.Context()))
	reopened, err := Open(store.Path())
	require.NoError(t, err)
	if diff := cmp.Diff(before, reopened.Snapshot()); diff != "" {
		t.Fatalf("retried save wrote unexpected state:\n%s", diff)
	}
}

func testOpenFailures(t *testing.T) {
	cases := []struct {
		name      string
		path      func(t *testing.T) string
		integrity bool
	}{
		{
			name: "missing file",
			path: func(t *testing.T) string { return filepath.Join(t.TempDir(), "absent.json") },
		},
		{
			name: "empty path",
			path: func(*testing.T) string { return "" },
		},
		{
			name: "directory",
			path: func(t *testing.T) string { return t.TempDir() },
		},
		{
			name: "empty file",
			path: func(t *testing.T) string { return writeStateFile(t, "overview.json", "") },
		},
		{
			name: "json null",
			path: func(t *testing.T) string { return writeStateFile(t, "overview.json", "null") },
		},
		{
			name: "unversioned object",
			path: func(t *testing.T) string { return writeStateFile(t, "overview.json", `{"mode":"normal"}`) },
		},
		{
			name: "corrupt json",
			path: func(t *testing.T) string { return writeStateFile(t, "overview.json", `{"version":1,"endpoints":[`) },
		},
		{
			name: "duplicate endpoint",
			path: func(t *testing.T) string {
				return writeStateFile(t, "overview.json", `{"version":1,"endpoints":[
					{"uri":"http://x","group":"g"},
					{"uri":"http://x","group":"g","count":2}]}`)
			},
			integrity: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store, err := Open(tc.path(t))
			require.Error(t, err)
			assert.Nil(t, store, "a failed open must not hand out a store")
			if tc.integrity {
				assert.True(t, IsIntegrityError(err), "expected integrity error, got %v", err)
			} else {
				assert.True(t, IsLoadError(err), "expected load error, got %v", err)
			}
		})
	}
}

func TestCreate(t *testing.T) {
	t.Run("refuses to overwrite", func(t *testing.T) {
		path := writeStateFile(t, "overview.json", `{"version":1}`)
		store, err := Create(t.Context(), path, nil)
		require.Error(t, err)
		assert.Nil(t, store)
		assert.True(t, IsInvalidArgument(err))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.JSONEq(t, `{"version":1}`, string(data))
	})

	t.Run("seeds document", func(t *testing.T) {
		doc := NewDocument()
		doc.Overview.Interval = time.Hour
		doc.Endpoints = append(doc.Endpoints, &EndpointRecord{URI: "http://x", Group: "g", Incremental: true})

		path := filepath.Join(t.TempDir(), "overview.yml")
		store, err := Create(t.Context(), path, doc)
		require.NoError(t, err)
		assert.Equal(t, FormatYAML, store.Format())

		reopened, err := Open(path)
		require.NoError(t, err)
		ep, ok := reopened.LookupEndpoint("http://x", "g")
		require.True(t, ok)
		assert.True(t, ep.Incremental())
		assert.Equal(t, time.Hour, reopened.GetOverview().Interval())
	})

	t.Run("rejects identities the format cannot store", func(t *testing.T) {
		doc := NewDocument()
		doc.Endpoints = []*EndpointRecord{{URI: "http://x/\x01", Group: "g"}}
		path := filepath.Join(t.TempDir(), "overview.xml")
		_, err := Create(t.Context(), path, doc)
		assert.True(t, IsInvalidArgument(err), "expected invalid argument, got %v", err)
		assert.NoFileExists(t, path)
	})

	t.Run("rejects duplicates", func(t *testing.T) {
		doc := NewDocument()
		doc.Endpoints = []*EndpointRecord{{URI: "u", Group: "g"}, {URI: "u", Group: "g"}}
		_, err := Create(t.Context(), filepath.Join(t.TempDir(), "overview.json"), doc)
		assert.True(t, IsIntegrityError(err))
	})
}

func TestSaveCanceledContext(t *testing.T) {
	store := createTestStore(t, "overview.json")
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err := store.Save(ctx)
	require.Error(t, err)
	assert.True(t, IsPersistError(err))
}

func TestWithFormatOverride(t *testing.T) {
	path := writeStateFile(t, "state.dat", "version: 1\nmode: retry\n")

	_, err := Open(path)
	require.Error(t, err, "a .dat file defaults to JSON")

	store, err := Open(path, WithFormat(FormatYAML))
	require.NoError(t, err)
	assert.Equal(t, ModeRetry, store.GetOverview().Mode())

	_, err = Open(path, WithFormat(Format("toml")))
	assert.True(t, IsInvalidArgument(err))
}

func TestEndpointIdentityEncoding(t *testing.T) {
	cases := []struct {
		name    string
		file    string
		uri     string
		wantErr bool
	}{
		{"json accepts control characters", "overview.json", "http://x/\x01", false},
		{"xml rejects control characters", "overview.xml", "http://x/\x01", true},
		{"xml rejects U+FFFE", "overview.xml", "http://x/\uFFFE", true},
		{"xml accepts tab", "overview.xml", "http://x/\ta", false},
		{"yaml rejects invalid utf-8", "overview.yaml", "http://x/\xfe", true},
		{"xml accepts non-ascii", "overview.xml", "http://bibliothek.example/ö", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := createTestStore(t, tc.file)
			ep, err := store.GetEndpoint(tc.uri, "g")
			if tc.wantErr {
				require.Error(t, err)
				assert.Nil(t, ep)
				assert.True(t, IsInvalidArgument(err), "expected invalid argument, got %v", err)
				assert.Equal(t, 0, store.Len())
				return
			}
			require.NoError(t, err)
			require.NoError(t, store.Save(t.Context()))

			reopened, err := Open(store.Path())
			require.NoError(t, err)
			_, ok := reopened.LookupEndpoint(tc.uri, "g")
			assert.True(t, ok, "identity must survive a save")
		})
	}
}

func TestWriteAtomicRejectsUndecodable(t *testing.T) {
	path := writeStateFile(t, "overview.json", `{"version":1}`)

	err := writeAtomic(path, []byte(`{"mode":"normal"}`), FormatJSON)
	require.Error(t, err)
	assert.True(t, IsPersistError(err), "expected persist error, got %v", err)
	assert.False(t, ferrors.IsRetryable(err), "writing the same bytes again cannot succeed")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":1}`, string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file left behind")
}

func TestSaveChanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overview.json")
	_, err := Create(t.Context(), path, nil)
	require.NoError(t, err)

	store, err := Open(path)
	require.NoError(t, err)

	written, err := store.SaveChanged(t.Context())
	require.NoError(t, err)
	assert.False(t, written, "an unchanged overview is not written")
	assert.False(t, store.LastSaved().IsSome())

	// Another process edits the file while store holds the old document.
	other, err := Open(path)
	require.NoError(t, err)
	_, err = other.GetEndpoint("http://x", "g1")
	require.NoError(t, err)
	require.NoError(t, other.Save(t.Context()))

	written, err = store.SaveChanged(t.Context())
	require.NoError(t, err)
	assert.False(t, written)
	reopened, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.Len(), "external edit was overwritten")

	require.NoError(t, store.GetOverview().SetInterval(time.Hour))
	written, err = store.SaveChanged(t.Context())
	require.NoError(t, err)
	assert.True(t, written)
	assert.True(t, store.LastSaved().IsSome())

	written, err = store.SaveChanged(t.Context())
	require.NoError(t, err)
	assert.False(t, written, "second flush has nothing new")

	require.NoError(t, store.Save(t.Context()), "Save always writes")
	reopened, err = Open(path)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, reopened.GetOverview().Interval())
	assert.Equal(t, 0, reopened.Len())
}
