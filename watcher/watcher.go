// Package watcher turns raw filesystem notifications on the media directory
// into coalesced change events for the display loop.
package watcher

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mi-skam/bramble/filesystem"
	"github.com/mi-skam/bramble/key"
	"github.com/mi-skam/bramble/log"
	"github.com/mi-skam/bramble/media"
	"github.com/spf13/viper"
	"golang.org/x/exp/slices"
)

const defaultDebounce = 500 * time.Millisecond

// Event carries the settled outcome of one burst of directory changes. The
// sets are diffed against the directory contents as of the previous event,
// restricted to supported media files.
type Event struct {
	Added   []string
	Removed []string
}

// Watcher observes a single media directory and emits at most one Event per
// settled burst of changes. Emission is trailing-edge debounced: a batch copy
// of many files produces one event once the directory has been quiet for the
// full debounce window.
type Watcher struct {
	dir      string
	debounce time.Duration

	fsw    *fsnotify.Watcher
	events chan Event

	mu       sync.Mutex
	running  bool
	timer    *time.Timer
	snapshot map[string]struct{}

	stop    chan struct{}
	stopped chan struct{}
}

// New prepares a watcher for dir. The debounce window comes from the global
// configuration.
func New(dir string) *Watcher {
	debounce := time.Duration(viper.GetInt(key.WatchDebounce)) * time.Millisecond
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	return &Watcher{
		dir:      dir,
		debounce: debounce,
		events:   make(chan Event, 1),
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Events returns the coalesced change stream. A pending event that was never
// consumed is replaced, not queued; consumers rescan the directory anyway.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Start snapshots the directory and begins watching it. The directory itself
// is watched flat; the loop does not descend into subdirectories.
func (w *Watcher) Start() error {
	snapshot, err := listSupported(w.dir)
	if err != nil {
		return err
	}
	w.snapshot = snapshot

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(w.dir); err != nil {
		_ = fsw.Close()
		return err
	}
	w.fsw = fsw

	w.mu.Lock()
	w.running = true
	w.mu.Unlock()

	go w.loop()

	log.Infof("watching %s (debounce %s)", w.dir, w.debounce)
	return nil
}

// Stop shuts the watcher down and waits for the loop to exit. A debounce
// window still open at this point never fires. Stopping a watcher that never
// started is a no-op.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stop)
	_ = w.fsw.Close()
	<-w.stopped

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.mu.Unlock()
}

func (w *Watcher) loop() {
	defer close(w.stopped)

	for {
		select {
		case <-w.stop:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Errorf("watcher: %v", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	if !media.IsSupported(event.Name) {
		return
	}
	w.settle()
}

// settle arms or extends the trailing edge. Every relevant notification
// pushes emission out by the full debounce window.
func (w *Watcher) settle() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Reset(w.debounce)
		return
	}
	w.timer = time.AfterFunc(w.debounce, w.emit)
}

// emit diffs the directory against the last snapshot and publishes the
// result. Bursts that cancel themselves out are suppressed.
func (w *Watcher) emit() {
	w.mu.Lock()
	w.timer = nil

	current, err := listSupported(w.dir)
	if err != nil {
		log.Warnf("watcher: rescan of %s failed: %v", w.dir, err)
		current = map[string]struct{}{}
	}

	added, removed := diff(w.snapshot, current)
	w.snapshot = current

	if len(added) == 0 && len(removed) == 0 {
		w.mu.Unlock()
		return
	}

	// Replace an unconsumed event rather than queueing behind it. The loop
	// is the sole producer, so the drained slot cannot refill in between.
	select {
	case <-w.events:
	default:
	}
	w.events <- Event{Added: added, Removed: removed}
	w.mu.Unlock()

	log.Infof("media directory changed: %d added, %d removed", len(added), len(removed))
}

// listSupported returns the set of playable paths directly inside dir.
func listSupported(dir string) (map[string]struct{}, error) {
	infos, err := filesystem.API().ReadDir(dir)
	if err != nil {
		return nil, err
	}

	paths := make(map[string]struct{})
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		path := filepath.Join(dir, info.Name())
		if media.IsSupported(path) {
			paths[path] = struct{}{}
		}
	}
	return paths, nil
}

func diff(previous, current map[string]struct{}) (added, removed []string) {
	for path := range current {
		if _, ok := previous[path]; !ok {
			added = append(added, path)
		}
	}
	for path := range previous {
		if _, ok := current[path]; !ok {
			removed = append(removed, path)
		}
	}

	slices.SortFunc(added, strings.Compare)
	slices.SortFunc(removed, strings.Compare)
	return added, removed
}
