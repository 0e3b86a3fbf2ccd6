package watcher

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/DeusData/codebase-inheritors/internal/pipeline"
)

const (
	baseInterval = 1 * time.Second
	maxInterval  = 60 * time.Second
)

type fileSnapshot struct {
	modTime time.Time
	size    int64
}

// LoadFunc is the callback signature for triggering a manifest reload.
type LoadFunc func(ctx context.Context, paths []string) error

// Watcher polls manifest paths for changes and triggers a reload.
type Watcher struct {
	paths    []string
	loadFn   LoadFunc
	snapshot map[string]fileSnapshot
	interval time.Duration
	nextPoll time.Time
	ctx      context.Context
}

// New creates a Watcher over manifest files or directories. loadFn is
// called with the same paths when any manifest changes.
func New(loadFn LoadFunc, paths ...string) *Watcher {
	return &Watcher{
		paths:  paths,
		loadFn: loadFn,
		ctx:    context.Background(),
	}
}

// Run blocks until ctx is cancelled. Ticks at baseInterval, polling only
// when the adaptive interval has elapsed.
func (w *Watcher) Run(ctx context.Context) {
	w.ctx = ctx
	ticker := time.NewTicker(baseInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if time.Now().Before(w.nextPoll) {
				continue
			}
			w.poll()
		}
	}
}

// poll captures a snapshot of the manifests and compares with the previous.
// First poll: captures baseline without triggering a load.
// Subsequent polls: triggers loadFn if any manifest changed.
func (w *Watcher) poll() {
	snap, err := captureSnapshot(w.paths)
	if err != nil {
		slog.Warn("watcher.snapshot", "err", err)
		w.nextPoll = time.Now().Add(maxInterval)
		return
	}

	interval := pollInterval(len(snap))

	if w.snapshot == nil {
		slog.Debug("watcher.baseline", "manifests", len(snap))
		w.snapshot = snap
		w.interval = interval
		w.nextPoll = time.Now().Add(interval)
		return
	}

	if snapshotsEqual(w.snapshot, snap) {
		w.interval = interval
		w.nextPoll = time.Now().Add(interval)
		return
	}

	slog.Info("watcher.changed", "manifests", len(snap))
	if err := w.loadFn(w.ctx, w.paths); err != nil {
		slog.Warn("watcher.load", "err", err)
		// Keep old snapshot so we retry next cycle
		w.nextPoll = time.Now().Add(interval)
		return
	}

	w.snapshot = snap
	w.interval = interval
	w.nextPoll = time.Now().Add(interval)
}

// captureSnapshot lists the manifests under paths and captures mtime+size
// for each.
func captureSnapshot(paths []string) (map[string]fileSnapshot, error) {
	files, err := pipeline.DiscoverManifests(paths)
	if err != nil {
		return nil, err
	}

	snap := make(map[string]fileSnapshot, len(files))
	for _, f := range files {
		info, statErr := os.Stat(f)
		if statErr != nil {
			continue
		}
		snap[f] = fileSnapshot{
			modTime: info.ModTime(),
			size:    info.Size(),
		}
	}
	return snap, nil
}

// snapshotsEqual returns true if two snapshots have identical files with same mtime+size.
func snapshotsEqual(a, b map[string]fileSnapshot) bool {
	if len(a) != len(b) {
		return false
	}
	for path, aSnap := range a {
		bSnap, ok := b[path]
		if !ok {
			return false
		}
		if !aSnap.modTime.Equal(bSnap.modTime) || aSnap.size != bSnap.size {
			return false
		}
	}
	return true
}

// pollInterval computes the adaptive interval from manifest count.
// 1s base + 1s per 50 manifests, capped at 60s.
func pollInterval(manifests int) time.Duration {
	return min(baseInterval+time.Duration(manifests/50)*time.Second, maxInterval)
}
