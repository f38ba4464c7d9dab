package indexing

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/anortham/miller/internal/config"
	"github.com/anortham/miller/internal/debug"
)

// FileWatcher monitors the workspace for changes and feeds them, after
// debounce, through the same delta-check pipeline as a directory sweep.
// Adapted from the teacher's internal/indexing/watcher.go, trimmed of
// LCI's gitignore-aware directory filtering (the scanner's Exclude globs
// already cover that here) and its batch-progress callbacks.
type FileWatcher struct {
	fsw       *fsnotify.Watcher
	cfg       *config.Config
	scanner   *Scanner
	debouncer *eventDebouncer
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	onChanged func(path string) error
	onRemoved func(path string) error
}

// NewFileWatcher builds a watcher that calls onChanged for a
// create/write/rename event and onRemoved for a delete, once debounced.
func NewFileWatcher(cfg *config.Config, scanner *Scanner, onChanged, onRemoved func(path string) error) (*FileWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	fw := &FileWatcher{
		fsw:       fsw,
		cfg:       cfg,
		scanner:   scanner,
		ctx:       ctx,
		cancel:    cancel,
		onChanged: onChanged,
		onRemoved: onRemoved,
	}
	debounce := time.Duration(cfg.WatcherDebounceMs) * time.Millisecond
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}
	fw.debouncer = newEventDebouncer(debounce, fw)
	return fw, nil
}

// Start adds recursive watches rooted at root and begins processing
// events in the background.
func (fw *FileWatcher) Start(root string) error {
	if err := fw.addWatches(root); err != nil {
		return err
	}
	fw.wg.Add(2)
	go fw.processEvents()
	go fw.debouncer.run(&fw.wg)
	debug.LogIndexing("file watcher started for %s\n", root)
	return nil
}

// Stop cancels the background goroutines and closes the underlying
// fsnotify watcher. Pending debounced events at shutdown are dropped —
// the index is being torn down regardless.
func (fw *FileWatcher) Stop() error {
	fw.cancel()
	fw.debouncer.mu.Lock()
	if fw.debouncer.timer != nil {
		fw.debouncer.timer.Stop()
	}
	fw.debouncer.events = make(map[string]watchEventKind)
	fw.debouncer.mu.Unlock()
	err := fw.fsw.Close()
	fw.wg.Wait()
	return err
}

func (fw *FileWatcher) addWatches(root string) error {
	visited := make(map[string]bool)
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || !info.IsDir() {
			return nil
		}
		real, rerr := filepath.EvalSymlinks(path)
		if rerr != nil {
			return nil
		}
		if visited[real] {
			return filepath.SkipDir
		}
		visited[real] = true
		if path != root && ignoredDir(info.Name(), nil) {
			return filepath.SkipDir
		}
		if err := fw.fsw.Add(path); err != nil {
			debug.LogIndexing("watch add failed for %s: %v\n", path, err)
		}
		return nil
	})
}

func (fw *FileWatcher) processEvents() {
	defer fw.wg.Done()
	for {
		select {
		case <-fw.ctx.Done():
			return
		case event, ok := <-fw.fsw.Events:
			if !ok {
				return
			}
			fw.handleEvent(event)
		case _, ok := <-fw.fsw.Errors:
			if !ok {
				return
			}
		}
	}
}

func (fw *FileWatcher) handleEvent(event fsnotify.Event) {
	path := event.Name
	info, err := os.Stat(path)
	if err != nil {
		if event.Op&fsnotify.Remove != 0 {
			fw.debouncer.addEvent(path, eventRemove)
		}
		return
	}
	if info.IsDir() {
		if event.Op&fsnotify.Create != 0 && !ignoredDir(info.Name(), nil) {
			_ = fw.fsw.Add(path)
		}
		return
	}
	if !fw.scanner.shouldIndex(fw.cfg.WorkspacePath, path, info) {
		return
	}
	switch {
	case event.Op&fsnotify.Remove != 0:
		fw.debouncer.addEvent(path, eventRemove)
	case event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0:
		fw.debouncer.addEvent(path, eventChanged)
	}
}

type watchEventKind int

const (
	eventChanged watchEventKind = iota
	eventRemove
)

// eventDebouncer coalesces rapid edits to the same path into a single
// callback, per spec.md §4.9's "debounce (default 100ms, coalescing
// rapid edits to the same path)" rule.
type eventDebouncer struct {
	mu       sync.Mutex
	events   map[string]watchEventKind
	debounce time.Duration
	timer    *time.Timer
	owner    *FileWatcher
}

func newEventDebouncer(debounce time.Duration, owner *FileWatcher) *eventDebouncer {
	return &eventDebouncer{events: make(map[string]watchEventKind), debounce: debounce, owner: owner}
}

func (d *eventDebouncer) addEvent(path string, kind watchEventKind) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events[path] = kind
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.debounce, d.flush)
}

func (d *eventDebouncer) run(wg *sync.WaitGroup) {
	defer wg.Done()
	<-d.owner.ctx.Done()
}

func (d *eventDebouncer) flush() {
	d.mu.Lock()
	events := d.events
	d.events = make(map[string]watchEventKind)
	d.mu.Unlock()

	for path, kind := range events {
		switch kind {
		case eventRemove:
			if d.owner.onRemoved != nil {
				_ = d.owner.onRemoved(path)
			}
		case eventChanged:
			if d.owner.onChanged != nil {
				_ = d.owner.onChanged(path)
			}
		}
	}
}
