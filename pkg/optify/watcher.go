package optify

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/juharris/optify-go/internal/otel"
)

// DefaultDebounceDuration is the default coalescing window Watcher
// waits after the last filesystem event before rebuilding.
const DefaultDebounceDuration = time.Second

// Listener is called after a successful rebuild. The Watcher does not
// record which paths changed, so changedPaths is always nil. Listeners
// run serially, in the order rebuilds succeed; a
// panicking listener is recovered so it cannot corrupt the registry
// swap path for the next rebuild.
type Listener func(changedPaths []string)

// Watcher wraps a Builder in an fsnotify-driven hot-reload loop: it
// installs recursive watches on every root directory before the first
// build, debounces subsequent modify events, rebuilds in a background
// goroutine on quiescence, and atomically swaps the served Registry.
// It embeds *Provider, so every Provider read method (GetOptions,
// GetAllOptions, GetFilteredFeatureNames, and the rest) is callable
// directly on a Watcher and always reads through the most recently
// built Registry.
type Watcher struct {
	*Provider

	builder  *Builder
	logger   *otel.Logger
	metrics  *otel.Metrics
	debounce time.Duration

	current atomic.Pointer[Registry]

	fsWatcher *fsnotify.Watcher
	done      chan struct{}

	mu        sync.Mutex
	listeners map[string]Listener
	timer     *time.Timer
}

// currentRegistry implements registrySource, so the embedded Provider
// always reads through the Registry currently served by this Watcher.
func (w *Watcher) currentRegistry() *Registry {
	return w.current.Load()
}

// WatcherOptions configures Watcher.BuildWithOptions.
type WatcherOptions struct {
	// DebounceDuration overrides DefaultDebounceDuration when non-zero.
	DebounceDuration time.Duration
	Logger           *otel.Logger
	Metrics          *otel.Metrics
}

// BuildWatcher installs filesystem watches on every root in builder
// and performs the first build, returning a live Watcher. Watches are
// installed before the initial build completes so that changes
// arriving mid-build are not lost.
func BuildWatcher(builder *Builder) (*Watcher, error) {
	return BuildWatcherWithOptions(builder, WatcherOptions{})
}

// BuildWatcherWithOptions is BuildWatcher with an explicit debounce
// window and telemetry overrides.
func BuildWatcherWithOptions(builder *Builder, opts WatcherOptions) (*Watcher, error) {
	debounce := opts.DebounceDuration
	if debounce <= 0 {
		debounce = DefaultDebounceDuration
	}
	logger := opts.Logger
	if logger == nil {
		logger = otel.DefaultLogger()
	}
	logger = logger.Component("optify.watcher")

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("error creating filesystem watcher: %w", err)
	}

	w := &Watcher{
		builder:   builder,
		logger:    logger,
		metrics:   opts.Metrics,
		debounce:  debounce,
		fsWatcher: fsWatcher,
		done:      make(chan struct{}),
		listeners: make(map[string]Listener),
	}
	w.Provider = newProvider(w, NewMemoryCache())

	if err := w.watchRoots(); err != nil {
		_ = fsWatcher.Close()
		return nil, err
	}

	registry, err := builder.Build()
	if err != nil {
		_ = fsWatcher.Close()
		return nil, err
	}
	w.current.Store(registry)

	go w.processEvents()

	return w, nil
}

func (w *Watcher) watchRoots() error {
	for _, root := range w.builder.roots {
		if err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !entry.IsDir() {
				return nil
			}
			if entry.Name() == reservedDirectoryName {
				return filepath.SkipDir
			}
			return w.fsWatcher.Add(path)
		}); err != nil {
			return fmt.Errorf("error watching directory '%s': %w", root, err)
		}
	}
	return nil
}

// processEvents is the Watcher's single background goroutine: it
// drains fsnotify events, debounces them, and triggers a rebuild once
// the window quiesces.
func (w *Watcher) processEvents() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleRebuild()
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("filesystem watcher error")
		}
	}
}

func (w *Watcher) scheduleRebuild() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.rebuild)
}

// rebuild re-runs the loader against every watched root and, on
// success, atomically swaps the served Registry and dispatches
// listeners. A parse/validation failure keeps the previous Registry
// and is logged, not propagated, since the source files may simply be
// mid-edit. A panic inside the Builder is recovered so the Watcher
// remains functional with the previous Registry.
func (w *Watcher) rebuild() {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error().Interface("panic", r).Msg("panic during registry rebuild; keeping previous registry")
			if w.metrics != nil {
				w.metrics.RecordWatcherRebuild("panic")
			}
		}
	}()

	registry, err := w.builder.Build()
	if err != nil {
		w.logger.Error().Err(err).Msg("registry rebuild failed; keeping previous registry")
		if w.metrics != nil {
			w.metrics.RecordWatcherRebuild("error")
		}
		return
	}

	w.current.Store(registry)
	if w.metrics != nil {
		w.metrics.RecordWatcherRebuild("success")
	}
	w.dispatchListeners(nil)
}

// dispatchListeners calls every registered listener serially; the
// listeners are held in a map keyed by token, so the order among them
// is not defined. A panicking listener is recovered so it cannot
// interrupt the dispatch of the remaining listeners or the next
// rebuild.
func (w *Watcher) dispatchListeners(changedPaths []string) {
	w.mu.Lock()
	names := make([]string, 0, len(w.listeners))
	for name := range w.listeners {
		names = append(names, name)
	}
	listeners := make([]Listener, 0, len(names))
	for _, name := range names {
		listeners = append(listeners, w.listeners[name])
	}
	w.mu.Unlock()

	for _, listener := range listeners {
		w.invokeListener(listener, changedPaths)
	}
}

func (w *Watcher) invokeListener(listener Listener, changedPaths []string) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error().Interface("panic", r).Msg("watcher listener panicked")
		}
	}()
	listener(changedPaths)
}

// AddListener registers a callback invoked after each successful
// rebuild and returns a token that can be passed to RemoveListener.
func (w *Watcher) AddListener(listener Listener) string {
	token := uuid.New().String()
	w.mu.Lock()
	w.listeners[token] = listener
	w.mu.Unlock()
	return token
}

// RemoveListener unregisters the listener associated with token.
func (w *Watcher) RemoveListener(token string) {
	w.mu.Lock()
	delete(w.listeners, token)
	w.mu.Unlock()
}

// LastModified returns the wall-clock time at which the currently
// served Registry was built.
func (w *Watcher) LastModified() time.Time {
	return w.current.Load().BuiltAt()
}

// Close stops the background watcher goroutine and releases the
// underlying fsnotify watcher. The Watcher's last-built Registry
// remains readable through its embedded Provider after Close.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsWatcher.Close()
}

// Registry returns the currently-served Registry.
func (w *Watcher) Registry() *Registry {
	return w.current.Load()
}
