// Package watcher watches local directories and reports debounced changes to
// reference dataset files.
package watcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Event represents a file system event.
type Event struct {
	Path      string
	Operation Operation
}

// Operation represents the type of file operation.
type Operation int

// File operation types.
const (
	OpCreate Operation = iota
	OpModify
	OpDelete
)

// String returns the string representation of the operation.
func (o Operation) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Handler is called once per settled file change.
type Handler func(ctx context.Context, event Event) error

type pendingChange struct {
	lastSeen time.Time
	op       Operation
}

// Config holds watcher configuration.
type Config struct {
	Paths []string

	// Extensions limits events to files with these suffixes. Empty means
	// every file.
	Extensions []string

	Debounce time.Duration
}

// Watcher coalesces bursts of fsnotify events per file and hands the
// settled result to a Handler.
type Watcher struct {
	fsWatcher  *fsnotify.Watcher
	handler    Handler
	logger     *slog.Logger
	paths      []string
	extensions []string
	debounce   time.Duration

	mu      sync.Mutex
	pending map[string]*pendingChange
	wg      sync.WaitGroup
}

// New creates a new file watcher.
func New(cfg Config, handler Handler, logger *slog.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if cfg.Debounce == 0 {
		cfg.Debounce = 500 * time.Millisecond
	}

	exts := make([]string, 0, len(cfg.Extensions))
	for _, e := range cfg.Extensions {
		exts = append(exts, strings.ToLower(e))
	}

	return &Watcher{
		fsWatcher:  fsWatcher,
		handler:    handler,
		logger:     logger,
		paths:      cfg.Paths,
		extensions: exts,
		debounce:   cfg.Debounce,
		pending:    make(map[string]*pendingChange),
	}, nil
}

// Run watches the configured paths until ctx is canceled, then closes the
// underlying watcher and waits for in-flight handlers.
func (w *Watcher) Run(ctx context.Context) error {
	for _, path := range w.paths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			w.logger.Warn("invalid watch path", "path", path, "error", err)
			continue
		}
		if err := w.fsWatcher.Add(absPath); err != nil {
			w.logger.Warn("failed to watch path", "path", absPath, "error", err)
			continue
		}
		w.logger.Info("watching directory", "path", absPath)
	}

	ticker := time.NewTicker(w.tick())
	defer ticker.Stop()

	defer func() {
		_ = w.fsWatcher.Close()
		w.wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.record(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", "error", err)

		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

func (w *Watcher) tick() time.Duration {
	if t := w.debounce / 5; t > 0 && t < 100*time.Millisecond {
		return t
	}
	return 100 * time.Millisecond
}

func (w *Watcher) record(event fsnotify.Event) {
	if !w.accepts(event.Name) {
		return
	}

	w.logger.Debug("file event", "path", event.Name, "op", event.Op.String())
	op := fsnotifyOpToOperation(event.Op)

	w.mu.Lock()
	defer w.mu.Unlock()

	existing, ok := w.pending[event.Name]
	if !ok {
		w.pending[event.Name] = &pendingChange{lastSeen: time.Now(), op: op}
		return
	}
	existing.lastSeen = time.Now()
	existing.op = mergeOperations(existing.op, op)
}

// mergeOperations folds a new event into a pending one. A delete wins unless
// the file is recreated afterwards.
func mergeOperations(pending, next Operation) Operation {
	switch {
	case pending == OpDelete && next == OpCreate:
		return OpCreate
	case next == OpDelete:
		return OpDelete
	case pending == OpCreate:
		return OpCreate
	default:
		return next
	}
}

func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	var ready []Event
	now := time.Now()
	for path, p := range w.pending {
		if now.Sub(p.lastSeen) < w.debounce {
			continue
		}
		delete(w.pending, path)
		ready = append(ready, Event{Path: path, Operation: p.op})
	}
	w.mu.Unlock()

	for _, e := range ready {
		w.logger.Info("processing file event",
			"path", e.Path,
			"operation", e.Operation.String(),
		)

		w.wg.Add(1)
		go func(e Event) {
			defer w.wg.Done()
			if err := w.handler(ctx, e); err != nil {
				w.logger.Error("handler error",
					"path", e.Path,
					"operation", e.Operation.String(),
					"error", err,
				)
			}
		}(e)
	}
}

func (w *Watcher) accepts(path string) bool {
	if len(w.extensions) == 0 {
		return true
	}
	lower := strings.ToLower(path)
	for _, ext := range w.extensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// fsnotifyOpToOperation converts fsnotify.Op to our Operation type.
func fsnotifyOpToOperation(op fsnotify.Op) Operation {
	switch {
	case op.Has(fsnotify.Remove):
		return OpDelete
	case op.Has(fsnotify.Rename):
		// the file is gone from its original location
		return OpDelete
	case op.Has(fsnotify.Create):
		return OpCreate
	default:
		return OpModify
	}
}
