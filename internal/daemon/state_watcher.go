package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/harvestcycle/internal/logfields"
)

// StateWatcher monitors the state file and calls a handler after it changed.
// Bursts of events within the debounce window result in a single call.
type StateWatcher struct {
	statePath    string
	onChange     func(ctx context.Context)
	watcher      *fsnotify.Watcher
	mu           sync.Mutex
	stopped      bool
	stopChan     chan struct{}
	changeChan   chan struct{}
	debounceTime time.Duration
}

// NewStateWatcher creates a watcher for statePath.
func NewStateWatcher(statePath string, debounce time.Duration, onChange func(ctx context.Context)) (*StateWatcher, error) {
	if onChange == nil {
		return nil, fmt.Errorf("state watcher needs a change handler")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	absPath, err := filepath.Abs(statePath)
	if err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to resolve state path: %w", err)
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	return &StateWatcher{
		statePath:    absPath,
		onChange:     onChange,
		watcher:      watcher,
		stopChan:     make(chan struct{}),
		changeChan:   make(chan struct{}, 1),
		debounceTime: debounce,
	}, nil
}

// Start begins monitoring the state file.
func (sw *StateWatcher) Start(ctx context.Context) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	// Saves replace the file by rename, so the directory is watched.
	stateDir := filepath.Dir(sw.statePath)
	if err := sw.watcher.Add(stateDir); err != nil {
		return fmt.Errorf("failed to watch state directory %s: %w", stateDir, err)
	}

	slog.Info("Starting state watcher", logfields.Path(sw.statePath))

	go sw.watchLoop(ctx)
	go sw.notifyLoop(ctx)

	return nil
}

// Stop stops the watcher. It is safe to call more than once.
func (sw *StateWatcher) Stop() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.stopped {
		return nil
	}
	sw.stopped = true
	slog.Info("Stopping state watcher")
	close(sw.stopChan)
	return sw.watcher.Close()
}

func (sw *StateWatcher) watchLoop(ctx context.Context) {
	stateFile := filepath.Base(sw.statePath)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sw.stopChan:
			return
		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != stateFile {
				continue
			}

			switch {
			case event.Has(fsnotify.Write), event.Has(fsnotify.Create), event.Has(fsnotify.Rename):
				slog.Debug("State file change detected", logfields.Path(event.Name), slog.String("op", event.Op.String()))
				sw.trigger()
			case event.Has(fsnotify.Remove):
				slog.Warn("State file removed", logfields.Path(event.Name))
			}

		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("State watcher error", logfields.Error(err))
		}
	}
}

func (sw *StateWatcher) notifyLoop(ctx context.Context) {
	var timer *time.Timer
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
		}
	}

	for {
		select {
		case <-ctx.Done():
			stopTimer()
			return
		case <-sw.stopChan:
			stopTimer()
			return
		case <-sw.changeChan:
			stopTimer()
			timer = time.AfterFunc(sw.debounceTime, func() {
				select {
				case <-sw.stopChan:
					return
				default:
				}
				sw.onChange(ctx)
			})
		}
	}
}

func (sw *StateWatcher) trigger() {
	select {
	case sw.changeChan <- struct{}{}:
	default:
		// already pending
	}
}
