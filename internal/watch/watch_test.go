package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dabstractor/jin/internal/workspace"
)

func TestWatcherEmitsEventOnTrackedFileChange(t *testing.T) {
	root := t.TempDir()
	tracked := filepath.Join(root, "a.txt")
	if err := os.WriteFile(tracked, []byte("original"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	meta := workspace.New()
	meta.Set("a.txt", "irrelevant-hash")

	w, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Start(root, meta); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(tracked, []byte("modified"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	select {
	case ev := <-w.Events():
		if ev.Path != "a.txt" {
			t.Errorf("Event.Path = %q, want a.txt", ev.Path)
		}
	case err := <-w.Errors():
		t.Fatalf("unexpected watcher error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a watch event on a.txt")
	}
}

func TestWatcherIgnoresUntrackedFileChange(t *testing.T) {
	root := t.TempDir()
	tracked := filepath.Join(root, "a.txt")
	untracked := filepath.Join(root, "b.txt")
	if err := os.WriteFile(tracked, []byte("original"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(untracked, []byte("original"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	meta := workspace.New()
	meta.Set("a.txt", "irrelevant-hash")

	w, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Start(root, meta); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(untracked, []byte("modified"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	// Then write the tracked path: its event must be the first one
	// delivered, which shows the untracked write produced none and the
	// watcher is alive.
	if err := os.WriteFile(tracked, []byte("modified"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	select {
	case ev := <-w.Events():
		if ev.Path != "a.txt" {
			t.Errorf("Event.Path = %q, want a.txt (the only tracked path)", ev.Path)
		}
	case err := <-w.Errors():
		t.Fatalf("unexpected watcher error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a watch event on a.txt")
	}
}

func TestStartTwiceReturnsError(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	meta := workspace.New()
	meta.Set("a.txt", "h")

	w, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Start(root, meta); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	if err := w.Start(root, meta); err == nil {
		t.Error("expected the second Start call to fail while already running")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	root := t.TempDir()
	meta := workspace.New()

	w, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Start(root, meta); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("first Stop: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}
