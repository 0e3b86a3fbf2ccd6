package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestSnapshotsEqual(t *testing.T) {
	now := time.Now()

	a := map[string]fileSnapshot{
		"lib.yaml": {modTime: now, size: 100},
		"app.yaml": {modTime: now, size: 200},
	}
	b := map[string]fileSnapshot{
		"lib.yaml": {modTime: now, size: 100},
		"app.yaml": {modTime: now, size: 200},
	}
	if !snapshotsEqual(a, b) {
		t.Error("identical snapshots should be equal")
	}

	// Different size
	c := map[string]fileSnapshot{
		"lib.yaml": {modTime: now, size: 101},
		"app.yaml": {modTime: now, size: 200},
	}
	if snapshotsEqual(a, c) {
		t.Error("different size should not be equal")
	}

	// Different mtime
	d := map[string]fileSnapshot{
		"lib.yaml": {modTime: now.Add(time.Second), size: 100},
		"app.yaml": {modTime: now, size: 200},
	}
	if snapshotsEqual(a, d) {
		t.Error("different mtime should not be equal")
	}

	// Missing file
	e := map[string]fileSnapshot{
		"lib.yaml": {modTime: now, size: 100},
	}
	if snapshotsEqual(a, e) {
		t.Error("different file count should not be equal")
	}

	// Same count, different file
	f := map[string]fileSnapshot{
		"lib.yaml":   {modTime: now, size: 100},
		"other.yaml": {modTime: now, size: 200},
	}
	if snapshotsEqual(a, f) {
		t.Error("renamed file should not be equal")
	}

	if !snapshotsEqual(map[string]fileSnapshot{}, map[string]fileSnapshot{}) {
		t.Error("both empty should be equal")
	}
}

func TestPollInterval(t *testing.T) {
	tests := []struct {
		manifests int
		expected  time.Duration
	}{
		{0, 1 * time.Second},
		{49, 1 * time.Second},
		{50, 2 * time.Second},
		{500, 11 * time.Second},
		{5000, 60 * time.Second},
	}
	for _, tt := range tests {
		got := pollInterval(tt.manifests)
		if got != tt.expected {
			t.Errorf("pollInterval(%d) = %v, want %v", tt.manifests, got, tt.expected)
		}
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestCaptureSnapshotOnlyManifests(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "lib.yaml"), "project: lib\n")
	writeFile(t, filepath.Join(tmpDir, "notes.txt"), "ignored\n")

	snap, err := captureSnapshot([]string{tmpDir})
	if err != nil {
		t.Fatal(err)
	}
	if len(snap) != 1 {
		t.Fatalf("expected 1 manifest, got %d", len(snap))
	}
	s, ok := snap[filepath.Join(tmpDir, "lib.yaml")]
	if !ok {
		t.Fatal("expected lib.yaml in snapshot")
	}
	if s.size == 0 || s.modTime.IsZero() {
		t.Errorf("unexpected snapshot entry %+v", s)
	}
}

func TestWatcherTriggersOnChange(t *testing.T) {
	tmpDir := t.TempDir()
	manifest := filepath.Join(tmpDir, "lib.yaml")
	writeFile(t, manifest, "project: lib\n")

	var loads atomic.Int32
	var gotPaths []string
	w := New(func(_ context.Context, paths []string) error {
		loads.Add(1)
		gotPaths = paths
		return nil
	}, tmpDir)

	// First poll: baseline, no load
	w.poll()
	if loads.Load() != 0 {
		t.Errorf("first poll should not trigger load, got %d", loads.Load())
	}

	w.poll()
	if loads.Load() != 0 {
		t.Errorf("no-change poll should not trigger load, got %d", loads.Load())
	}

	now := time.Now().Add(time.Second)
	if err := os.Chtimes(manifest, now, now); err != nil {
		t.Fatal(err)
	}
	w.poll()
	if loads.Load() != 1 {
		t.Errorf("changed manifest should trigger load, got %d", loads.Load())
	}
	if len(gotPaths) != 1 || gotPaths[0] != tmpDir {
		t.Errorf("load called with %v", gotPaths)
	}

	// New manifest
	writeFile(t, filepath.Join(tmpDir, "app.yaml"), "project: app\n")
	w.poll()
	if loads.Load() != 2 {
		t.Errorf("new manifest should trigger load, got %d", loads.Load())
	}
}

func TestWatcherRetriesFailedLoad(t *testing.T) {
	tmpDir := t.TempDir()
	manifest := filepath.Join(tmpDir, "lib.yaml")
	writeFile(t, manifest, "project: lib\n")

	var loads atomic.Int32
	fail := true
	w := New(func(context.Context, []string) error {
		loads.Add(1)
		if fail {
			return os.ErrInvalid
		}
		return nil
	}, tmpDir)
	w.poll()

	writeFile(t, manifest, "project: lib\ndependencies: []\n")
	w.poll()
	fail = false
	w.poll()
	if loads.Load() != 2 {
		t.Errorf("failed load should be retried, got %d loads", loads.Load())
	}
	w.poll()
	if loads.Load() != 2 {
		t.Errorf("successful load should update the baseline, got %d loads", loads.Load())
	}
}

func TestWatcherSkipsMissingPath(t *testing.T) {
	var loads atomic.Int32
	w := New(func(context.Context, []string) error {
		loads.Add(1)
		return nil
	}, "/nonexistent/manifests")

	w.poll()
	w.poll()
	if loads.Load() != 0 {
		t.Errorf("should not load missing path, got %d", loads.Load())
	}
	if w.nextPoll.Before(time.Now().Add(maxInterval / 2)) {
		t.Error("missing path should back off")
	}
}

func TestWatcherCancellation(t *testing.T) {
	w := New(func(context.Context, []string) error { return nil }, t.TempDir())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not stop after context cancellation")
	}
}
