package lock

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dabstractor/jin/internal/jinerr"
)

func TestLockCreatesJinDirAndFile(t *testing.T) {
	jinDir := filepath.Join(t.TempDir(), ".jin")
	unlocker, err := Lock(jinDir)
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	defer unlocker.Unlock()

	if _, err := os.Stat(filepath.Join(jinDir, RelPath)); err != nil {
		t.Errorf("expected lock file to exist: %v", err)
	}
}

func TestLockIsExclusive(t *testing.T) {
	jinDir := filepath.Join(t.TempDir(), ".jin")
	first, err := Lock(jinDir)
	if err != nil {
		t.Fatalf("first Lock: %v", err)
	}
	defer first.Unlock()

	_, err = Lock(jinDir)
	if !errors.Is(err, jinerr.ErrLocked) {
		t.Fatalf("second Lock err = %v, want ErrLocked", err)
	}
}

func TestUnlockThenLockAgainSucceeds(t *testing.T) {
	jinDir := filepath.Join(t.TempDir(), ".jin")
	first, err := Lock(jinDir)
	if err != nil {
		t.Fatalf("first Lock: %v", err)
	}
	if err := first.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}

	second, err := Lock(jinDir)
	if err != nil {
		t.Fatalf("second Lock after unlock: %v", err)
	}
	second.Unlock()
}

func TestUnlockIsSafeToCallTwice(t *testing.T) {
	jinDir := filepath.Join(t.TempDir(), ".jin")
	l, err := Lock(jinDir)
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if err := l.Unlock(); err != nil {
		t.Fatalf("first Unlock: %v", err)
	}
	if err := l.Unlock(); err != nil {
		t.Fatalf("second Unlock: %v", err)
	}
}
