// Package watcher reports add, change and unlink events for a directory
// tree and dispatches them one at a time, in arrival order.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/conneroisu/sitebuild/internal/errors"
	"github.com/conneroisu/sitebuild/internal/logging"
)

// FileWatcher watches a directory tree recursively.
type FileWatcher struct {
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	queue     *eventQueue
	filters   []FileFilter
	handlers  []ChangeHandler
	logger    logging.Logger
	mutex     sync.RWMutex
	done      chan struct{}
	stopOnce  sync.Once
}

// ChangeEvent represents a file change event
type ChangeEvent struct {
	Type    EventType
	Path    string
	ModTime time.Time
	Size    int64
}

// EventType represents the type of file change
type EventType int

const (
	EventTypeAdd EventType = iota
	EventTypeChange
	EventTypeUnlink
)

// String returns the string representation of the EventType
func (e EventType) String() string {
	switch e {
	case EventTypeAdd:
		return "add"
	case EventTypeChange:
		return "change"
	case EventTypeUnlink:
		return "unlink"
	default:
		return "unknown"
	}
}

// FileFilter determines if a path should be watched. Filters see
// directories as well as files.
type FileFilter func(path string) bool

// ChangeHandler handles one file change event.
type ChangeHandler func(ctx context.Context, event ChangeEvent) error

// NewFileWatcher creates a new file watcher. A zero debounceDelay dispatches
// every event as it arrives.
func NewFileWatcher(debounceDelay time.Duration, logger logging.Logger) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Nop()
	}

	fw := &FileWatcher{
		watcher:  watcher,
		queue:    newEventQueue(),
		filters:  make([]FileFilter, 0),
		handlers: make([]ChangeHandler, 0),
		logger:   logger.WithComponent("watcher"),
		done:     make(chan struct{}),
	}
	if debounceDelay > 0 {
		fw.debouncer = NewDebouncer(debounceDelay, fw.queue.push)
	}

	return fw, nil
}

// AddFilter adds a file filter
func (fw *FileWatcher) AddFilter(filter FileFilter) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.filters = append(fw.filters, filter)
}

// AddHandler adds a change handler
func (fw *FileWatcher) AddHandler(handler ChangeHandler) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.handlers = append(fw.handlers, handler)
}

// AddRecursive adds a directory and all subdirectories to watch
func (fw *FileWatcher) AddRecursive(root string) error {
	cleanRoot, err := filepath.Abs(filepath.Clean(root))
	if err != nil {
		return fmt.Errorf("invalid root path: %w", err)
	}
	info, err := os.Stat(cleanRoot)
	if err != nil {
		return fmt.Errorf("invalid root path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("invalid root path: %s is not a directory", root)
	}

	_, err = fw.addTree(cleanRoot, false)
	return err
}

// addTree watches every directory under root. When collect is set it also
// returns the files found, used when a directory appears after arming.
func (fw *FileWatcher) addTree(root string, collect bool) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if path != root && !fw.accept(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if err := fw.watcher.Add(path); err != nil {
				return fmt.Errorf("watching %s: %w", path, err)
			}
			return nil
		}
		if collect {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func (fw *FileWatcher) accept(path string) bool {
	fw.mutex.RLock()
	filters := fw.filters
	fw.mutex.RUnlock()

	for _, filter := range filters {
		if !filter(path) {
			return false
		}
	}
	return true
}

// Start starts the event loop and the dispatcher.
func (fw *FileWatcher) Start(ctx context.Context) error {
	go fw.watchLoop(ctx)
	go fw.dispatchLoop(ctx)

	return nil
}

// Stop stops the file watcher and cleans up resources
func (fw *FileWatcher) Stop() error {
	var err error
	fw.stopOnce.Do(func() {
		close(fw.done)
		if fw.debouncer != nil {
			fw.debouncer.Stop()
		}
		err = fw.watcher.Close()
	})
	return err
}

func (fw *FileWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-fw.done:
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleFsnotifyEvent(event)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn(ctx, err, "File watcher error")
		}
	}
}

func (fw *FileWatcher) handleFsnotifyEvent(event fsnotify.Event) {
	if !fw.accept(event.Name) {
		return
	}

	var eventType EventType
	switch {
	case event.Has(fsnotify.Create):
		eventType = EventTypeAdd
	case event.Has(fsnotify.Write):
		eventType = EventTypeChange
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		eventType = EventTypeUnlink
	default:
		return
	}

	if eventType == EventTypeAdd {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			files, err := fw.addTree(event.Name, true)
			if err != nil {
				fw.logger.Warn(context.Background(), err, "Failed to watch new directory", "path", event.Name)
			}
			for _, f := range files {
				fw.emit(newChangeEvent(EventTypeAdd, f))
			}
			return
		}
	}

	fw.emit(newChangeEvent(eventType, event.Name))
}

func newChangeEvent(eventType EventType, path string) ChangeEvent {
	ev := ChangeEvent{Type: eventType, Path: path}
	if eventType != EventTypeUnlink {
		if info, err := os.Stat(path); err == nil {
			ev.ModTime = info.ModTime()
			ev.Size = info.Size()
		}
	}
	return ev
}

func (fw *FileWatcher) emit(event ChangeEvent) {
	if fw.debouncer != nil {
		fw.debouncer.Add(event)
		return
	}
	fw.queue.push(event)
}

func (fw *FileWatcher) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-fw.done:
			return
		case <-fw.queue.signal:
			for _, event := range fw.queue.drain() {
				if ctx.Err() != nil {
					return
				}
				fw.dispatch(ctx, event)
			}
		}
	}
}

// dispatch runs every handler for one event. Handler errors and panics are
// logged and never stop the watcher.
func (fw *FileWatcher) dispatch(ctx context.Context, event ChangeEvent) {
	fw.mutex.RLock()
	handlers := fw.handlers
	fw.mutex.RUnlock()

	for _, handler := range handlers {
		if err := safeCall(ctx, handler, event); err != nil {
			errors.Report(ctx, fw.logger, errors.NewWatchEvent(event.Path, err).
				WithContext("event", event.Type.String()))
		}
	}
}

func safeCall(ctx context.Context, handler ChangeHandler, event ChangeEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v\n%s", r, debug.Stack())
		}
	}()
	return handler(ctx, event)
}

// eventQueue is an unbounded FIFO; events are never dropped.
type eventQueue struct {
	mutex  sync.Mutex
	items  []ChangeEvent
	signal chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{signal: make(chan struct{}, 1)}
}

func (q *eventQueue) push(events ...ChangeEvent) {
	if len(events) == 0 {
		return
	}
	q.mutex.Lock()
	q.items = append(q.items, events...)
	q.mutex.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *eventQueue) drain() []ChangeEvent {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	items := q.items
	q.items = nil
	return items
}

// IgnoreFilter rejects paths under root that match any of the doublestar
// patterns. Patterns are matched against the slash-separated path relative
// to root.
func IgnoreFilter(root string, patterns []string) FileFilter {
	return func(path string) bool {
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			return true
		}
		rel = filepath.ToSlash(rel)
		for _, pattern := range patterns {
			if ok, _ := doublestar.Match(pattern, rel); ok {
				return false
			}
		}
		return true
	}
}

// NoHiddenFilter rejects dot-files and dot-directories, which are editor
// swap files and VCS metadata in practice.
func NoHiddenFilter(path string) bool {
	return !strings.HasPrefix(filepath.Base(path), ".")
}
