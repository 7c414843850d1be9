package watch

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"asset-catalog/internal/catalog"
	"asset-catalog/internal/logging"
	"asset-catalog/internal/metrics"

	"github.com/fsnotify/fsnotify"
)

// RescanFunc is invoked, debounced, when a watched volume's tree changes.
type RescanFunc func(volumeID int64)

// Watcher monitors local volume mounts and triggers volume rescans on
// change. SFTP volumes cannot be watched and rely on the periodic scan
// interval instead.
type Watcher struct {
	debounce time.Duration
	rescan   RescanFunc

	mu      sync.Mutex
	timers  map[int64]*time.Timer
	stopped bool

	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
}

func New(debounce time.Duration, rescan RescanFunc) *Watcher {
	if debounce <= 0 {
		debounce = 5 * time.Second
	}
	return &Watcher{
		debounce: debounce,
		rescan:   rescan,
		timers:   make(map[int64]*time.Timer),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Watch runs until Stop. Only local volumes are registered; each volume's
// directory tree is added recursively, and directories created later are
// picked up from their create events.
func (w *Watcher) Watch(volumes []*catalog.Volume) {
	defer close(w.doneChan)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		logging.Error("Failed to create file watcher: %v", err)
		metrics.WatcherErrors.Inc()
		return
	}
	defer func() {
		if err := fsw.Close(); err != nil {
			logging.Error("failed to close file watcher: %v", err)
		}
	}()

	roots := make(map[string]int64)
	watchCount := 0
	for _, v := range volumes {
		if v.Type != catalog.VolumeLocal || v.Disabled {
			continue
		}
		roots[filepath.Clean(v.MountPath)] = v.ID
		watchCount += addTree(fsw, v.MountPath)
	}
	metrics.WatchedDirectories.Set(float64(watchCount))
	logging.Info("Watcher started, %d directories across %d local volumes", watchCount, len(roots))

	for {
		select {
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(fsw, roots, event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			logging.Error("Watcher error: %v", err)
			metrics.WatcherErrors.Inc()
		case <-w.stopChan:
			return
		}
	}
}

// Stop shuts the watcher down and cancels pending debounce timers.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
	<-w.doneChan

	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	for _, t := range w.timers {
		t.Stop()
	}
}

func (w *Watcher) handleEvent(fsw *fsnotify.Watcher, roots map[string]int64, event fsnotify.Event) {
	// Hidden files churn constantly and never hold assets.
	if strings.Contains(event.Name, "/.") {
		return
	}

	metrics.WatcherEventsTotal.WithLabelValues(eventType(event)).Inc()

	// New directories need watching before files land in them.
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := fsw.Add(event.Name); err != nil {
				logging.Warn("failed to watch new directory %s: %v", event.Name, err)
				metrics.WatcherErrors.Inc()
			} else {
				metrics.WatchedDirectories.Inc()
			}
		}
	}

	volID, ok := volumeFor(roots, event.Name)
	if !ok {
		return
	}
	w.schedule(volID)
}

// schedule arms (or re-arms) the volume's debounce timer. A burst of events
// from one copy operation collapses into a single rescan.
func (w *Watcher) schedule(volumeID int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if t, ok := w.timers[volumeID]; ok {
		t.Reset(w.debounce)
		return
	}
	w.timers[volumeID] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, volumeID)
		stopped := w.stopped
		w.mu.Unlock()
		if stopped {
			return
		}
		logging.Debug("Watcher: triggering rescan of volume %d", volumeID)
		w.rescan(volumeID)
	})
}

func addTree(fsw *fsnotify.Watcher, root string) int {
	count := 0
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() && !strings.HasPrefix(info.Name(), ".") {
			if addErr := fsw.Add(path); addErr != nil {
				logging.Warn("failed to add path to watcher %s: %v", path, addErr)
				metrics.WatcherErrors.Inc()
			} else {
				count++
			}
		}
		return nil
	})
	if err != nil {
		logging.Error("failed to walk %s for watcher: %v", root, err)
		metrics.WatcherErrors.Inc()
	}
	return count
}

func volumeFor(roots map[string]int64, name string) (int64, bool) {
	p := filepath.Clean(name)
	for {
		if id, ok := roots[p]; ok {
			return id, true
		}
		parent := filepath.Dir(p)
		if parent == p {
			return 0, false
		}
		p = parent
	}
}

func eventType(event fsnotify.Event) string {
	switch {
	case event.Has(fsnotify.Create):
		return "create"
	case event.Has(fsnotify.Write):
		return "write"
	case event.Has(fsnotify.Remove):
		return "remove"
	case event.Has(fsnotify.Rename):
		return "rename"
	case event.Has(fsnotify.Chmod):
		return "chmod"
	}
	return "other"
}
