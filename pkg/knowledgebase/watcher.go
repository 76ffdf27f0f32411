package knowledgebase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/entrhq/autoact/pkg/logging"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce groups bursts of writes (sqlite touches the db and its
// journal several times per transaction) into one change notification.
const DefaultDebounce = 250 * time.Millisecond

// minTick bounds how often pending changes are checked.
const minTick = 5 * time.Millisecond

// Watcher reports out-of-band changes to a knowledge-base file, for
// example edits made by another process through the CLI.
type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	path     string
	onChange func()
	debounce time.Duration
	logger   *logging.Logger
	pending  bool
	lastSeen time.Time
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
}

// NewWatcher creates a watcher for the database file at path. onChange
// runs on the watcher goroutine after each settled burst of changes.
func NewWatcher(path string, onChange func(), logger *logging.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if logger == nil {
		logger = logging.Nop()
	}

	return &Watcher{
		watcher:  fw,
		path:     filepath.Clean(path),
		onChange: onChange,
		debounce: DefaultDebounce,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// SetDebounce changes the settle window. Call before Start. A
// non-positive window restores DefaultDebounce.
func (w *Watcher) SetDebounce(d time.Duration) {
	if d <= 0 {
		d = DefaultDebounce
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.debounce = d
}

// Start begins watching the file's directory. It does not block.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.add(); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return err
	}
	w.logger.Infof("watching %s", w.path)

	go w.run(ctx)
	return nil
}

func (w *Watcher) add() error {
	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create knowledge base directory: %w", err)
	}
	// Watch the directory: sqlite may replace the file and writes its journal next to it.
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	return nil
}

// Stop stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	wasRunning := w.running
	w.running = false
	w.mu.Unlock()

	if wasRunning {
		close(w.stopCh)
		<-w.doneCh
	}
	if err := w.watcher.Close(); err != nil {
		w.logger.Errorf("error closing watcher: %v", err)
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	w.mu.Lock()
	tick := max(w.debounce/2, minTick)
	w.mu.Unlock()

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Errorf("watch error: %v", err)
		case <-ticker.C:
			w.flush()
		}
	}
}

// relevant reports whether name is the database or one of its sidecar files.
func (w *Watcher) relevant(name string) bool {
	name = filepath.Clean(name)
	return name == w.path || strings.HasPrefix(name, w.path+"-")
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !w.relevant(event.Name) {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	w.logger.Debugf("%s on %s", event.Op, event.Name)
	w.mu.Lock()
	w.pending = true
	w.lastSeen = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) flush() {
	w.mu.Lock()
	fire := w.pending && time.Since(w.lastSeen) >= w.debounce
	if fire {
		w.pending = false
	}
	w.mu.Unlock()

	if fire && w.onChange != nil {
		w.onChange()
	}
}
