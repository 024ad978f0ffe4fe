package cycle

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"git.home.luguber.info/inful/harvestcycle/internal/foundation"
	"git.home.luguber.info/inful/harvestcycle/internal/foundation/errors"
	"git.home.luguber.info/inful/harvestcycle/internal/logfields"
	"git.home.luguber.info/inful/harvestcycle/internal/metrics"
)

// Store binds one Document to the state file it was loaded from.
type Store struct {
	path   string
	format Format

	// mu guards membership of doc.Endpoints. Fields of individual records are not guarded.
	mu  sync.Mutex
	doc *Document

	gate     *gate
	recorder metrics.Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithFormat overrides the format derived from the file extension.
func WithFormat(f Format) Option {
	return func(s *Store) { s.format = f }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(s *Store) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithLogger sets the logger; slog.Default() is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func newStore(path string, opts []Option) (*Store, error) {
	s := &Store{
		path:     path,
		format:   FormatForPath(path),
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if !s.format.Valid() {
		return nil, invalidArgument("unsupported state format").WithContext("format", string(s.format)).Build()
	}
	s.gate = newGate(path, s.format)
	return s, nil
}

// Open loads the state file at path. A missing, unreadable, empty or corrupt
// file fails with a load error, duplicate endpoint identities with an
// integrity error. On failure no Store is returned.
func Open(path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, errors.LoadError("state file path is empty").Build()
	}
	s, err := newStore(path, opts)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		msg := "failed to read state file"
		if os.IsNotExist(err) {
			msg = "state file does not exist"
		}
		return nil, errors.LoadError(msg).WithCause(err).WithContext("path", path).Build()
	}
	doc, err := Decode(data, s.format)
	if err != nil {
		return nil, withPath(err, path)
	}
	s.doc = doc
	s.gate.baseline(doc)

	s.recorder.SetEndpointCount(len(doc.Endpoints))
	s.logger.Debug("Loaded overview",
		logfields.Path(path),
		logfields.Format(string(s.format)),
		logfields.Count(len(doc.Endpoints)))
	return s, nil
}

// Create writes doc to a new state file at path and returns a Store bound to it.
// It refuses to replace an existing file. A nil doc starts from NewDocument.
func Create(ctx context.Context, path string, doc *Document, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, invalidArgument("state file path is empty").Build()
	}
	if doc == nil {
		doc = NewDocument()
	}
	if !doc.Overview.Mode.Valid() {
		return nil, invalidArgument("unknown harvest mode").WithContext("mode", string(doc.Overview.Mode)).Build()
	}
	if !doc.Overview.Scenario.Valid() {
		return nil, invalidArgument("unknown scenario").WithContext("scenario", string(doc.Overview.Scenario)).Build()
	}
	if doc.Overview.Interval < 0 {
		return nil, invalidArgument("harvest interval is negative").WithContext("interval", doc.Overview.Interval.String()).Build()
	}
	if err := checkIntegrity(doc); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err == nil {
		return nil, invalidArgument("state file already exists").WithContext("path", path).Build()
	}

	s, err := newStore(path, opts)
	if err != nil {
		return nil, err
	}
	for _, r := range doc.Endpoints {
		if err := validateIdentity(r.URI, r.Group, s.format); err != nil {
			return nil, err
		}
	}
	s.doc = doc
	if err := s.Save(ctx); err != nil {
		return nil, err
	}
	s.recorder.SetEndpointCount(len(doc.Endpoints))
	s.logger.Info("Created overview", logfields.Path(path), logfields.Format(string(s.format)))
	return s, nil
}

// Path returns the state file path.
func (s *Store) Path() string { return s.path }

// Format returns the encoding used for the state file.
func (s *Store) Format() Format { return s.format }

// LastSaved returns the time of the latest successful Save by this Store.
func (s *Store) LastSaved() foundation.Option[time.Time] {
	return foundation.FromPointer(s.gate.lastSaved.Load())
}

// GetOverview returns a view over the cycle-wide attributes.
func (s *Store) GetOverview() *OverviewView {
	return &OverviewView{overview: &s.doc.Overview}
}

// GetEndpoint returns a view over the record for (uri, group), appending a
// record with zero state when none exists yet. Concurrent calls for the same
// pair resolve to the same record.
func (s *Store) GetEndpoint(uri, group string) (*EndpointView, error) {
	if err := validateIdentity(uri, group, s.format); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := EndpointKey{URI: uri, Group: group}
	r := s.doc.find(key)
	if r == nil {
		r = &EndpointRecord{URI: uri, Group: group}
		s.doc.Endpoints = append(s.doc.Endpoints, r)
		s.recorder.IncEndpointCreated(group)
		s.recorder.SetEndpointCount(len(s.doc.Endpoints))
		s.logger.Info("Created endpoint record", logfields.Endpoint(uri), logfields.Group(group))
	}
	return &EndpointView{record: r}, nil
}

// LookupEndpoint returns a view over an existing record without creating one.
func (s *Store) LookupEndpoint(uri, group string) (*EndpointView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.doc.find(EndpointKey{URI: uri, Group: group})
	if r == nil {
		return nil, false
	}
	return &EndpointView{record: r}, true
}

// Endpoints lists the identities of all records in document order.
func (s *Store) Endpoints() []EndpointKey {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]EndpointKey, len(s.doc.Endpoints))
	for i, r := range s.doc.Endpoints {
		keys[i] = r.Key()
	}
	return keys
}

// Len returns the number of endpoint records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.doc.Endpoints)
}

// Snapshot returns a deep copy of the current document.
func (s *Store) Snapshot() *Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.snapshot()
}

// Save writes the current document to the state file, replacing it
// atomically. Saves are mutually exclusive. On failure the in-memory document
// is unchanged and Save may be retried. ctx is only checked before the write starts.
func (s *Store) Save(ctx context.Context) error {
	_, err := s.save(ctx, false)
	return err
}

// SaveChanged is Save, except that nothing is written when the document
// encodes the same as it did when it was loaded or last saved by this Store.
// A long-lived Store that only flushes its own edits this way leaves changes
// made to the file by other processes in place. It reports whether the file
// was written.
func (s *Store) SaveChanged(ctx context.Context) (bool, error) {
	return s.save(ctx, true)
}

func (s *Store) save(ctx context.Context, onlyChanged bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, errors.PersistError("save canceled").WithCause(err).WithContext("path", s.path).Build()
	}

	start := s.now()
	written, err := s.gate.persist(s.Snapshot, s.now, onlyChanged)
	elapsed := s.now().Sub(start)

	if err == nil && !written {
		s.logger.Debug("Overview unchanged, save skipped", logfields.Path(s.path))
		return false, nil
	}
	s.recorder.ObserveSaveDuration(elapsed)
	s.recorder.IncSaveResult(metrics.SaveResult(err))
	if err != nil {
		return false, err
	}
	s.logger.Debug("Saved overview",
		logfields.Path(s.path),
		logfields.DurationMS(float64(elapsed.Microseconds())/1000))
	return true, nil
}
