package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncerRunsLatestOnly(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	var calls, last atomic.Int32
	for i := 1; i <= 5; i++ {
		i := int32(i)
		d.Trigger(func() {
			calls.Add(1)
			last.Store(i)
		})
	}
	if !d.Pending() {
		t.Fatalf("expected a pending callback")
	}
	time.Sleep(100 * time.Millisecond)
	if calls.Load() != 1 || last.Load() != 5 {
		t.Fatalf("calls=%d last=%d, want 1 call from the last trigger", calls.Load(), last.Load())
	}
	if d.Pending() {
		t.Fatalf("nothing should be pending after the callback ran")
	}
}

func TestDebouncerCancel(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	var calls atomic.Int32
	d.Trigger(func() { calls.Add(1) })
	d.Cancel()
	time.Sleep(60 * time.Millisecond)
	if calls.Load() != 0 {
		t.Fatalf("cancelled callback ran")
	}
}

func TestDebouncerDefaultWait(t *testing.T) {
	if got := NewDebouncer(0).Wait(); got != DefaultDebounce {
		t.Fatalf("Wait = %v, want %v", got, DefaultDebounce)
	}
}

func TestFileWatcherReportsWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("a: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	changed := make(chan string, 4)
	w := NewFileWatcher(path, func(p string) { changed <- p }, WithDebounce(10*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Writes to a sibling file are ignored.
	if err := os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("a: 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-changed:
		if got != path {
			t.Fatalf("changed path = %q, want %q", got, path)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no change reported")
	}

	w.Stop()
	w.Stop()
	cancel()
	select {
	case <-w.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("watch loop did not exit")
	}
}
