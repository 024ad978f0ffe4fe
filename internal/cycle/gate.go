package cycle

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"git.home.luguber.info/inful/harvestcycle/internal/foundation/errors"
)

const stateFileMode = 0o644

// gate serializes writes of the state file. Only one encode-and-write runs at a time.
type gate struct {
	mu     sync.Mutex
	path   string
	format Format
	// written is the encoding of the document as last loaded or saved; guarded by mu.
	written   []byte
	lastSaved atomic.Pointer[time.Time]
}

func newGate(path string, format Format) *gate {
	return &gate{path: path, format: format}
}

// baseline records the encoding of a freshly loaded document.
func (g *gate) baseline(doc *Document) {
	data, err := Encode(doc, g.format)
	if err != nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.written = data
}

// persist encodes the document produced by snapshot and replaces the state file.
// snapshot runs while the gate is held, so the file always reflects the newest
// state among the saves that completed. With onlyChanged set, the write is
// skipped when the encoding equals the one last loaded or saved. It reports
// whether the file was written.
func (g *gate) persist(snapshot func() *Document, now func() time.Time, onlyChanged bool) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	data, err := Encode(snapshot(), g.format)
	if err != nil {
		return false, err
	}
	if onlyChanged && g.written != nil && bytes.Equal(data, g.written) {
		return false, nil
	}
	if err := writeAtomic(g.path, data, g.format); err != nil {
		return false, err
	}
	g.written = data
	g.lastSaved.Store(normalizeTime(now()))
	return true, nil
}

// writeAtomic writes data to a temp file next to path, verifies it decodes,
// and renames it over path. A failure leaves path untouched and removes the temp file.
func writeAtomic(path string, data []byte, format Format) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return persistError(err, "failed to create temporary state file", path)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return persistError(err, "failed to write temporary state file", path)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return persistError(err, "failed to sync temporary state file", path)
	}
	if err := tmp.Close(); err != nil {
		return persistError(err, "failed to close temporary state file", path)
	}
	if err := os.Chmod(tmpPath, stateFileMode); err != nil {
		return persistError(err, "failed to set state file permissions", path)
	}

	// Round-trip validation: re-read and verify the file decodes.
	check, err := os.ReadFile(tmpPath)
	if err != nil {
		return persistError(err, "failed to read back temporary state file", path)
	}
	if _, err := Decode(check, format); err != nil {
		return errors.PersistError("round-trip validation failed").
			WithCause(err).
			WithRetry(errors.RetryNever).
			WithContext("path", path).
			Build()
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return persistError(err, "failed to replace state file", path)
	}
	committed = true
	syncDir(dir)
	return nil
}

// syncDir flushes the directory entry of a rename. Not every platform supports it.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

func persistError(cause error, message, path string) error {
	return errors.PersistError(message).
		WithCause(cause).
		WithContext("path", path).
		Build()
}
