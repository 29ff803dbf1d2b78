// Package lock implements the per-project advisory single-writer lock:
// commit, apply, reset --hard, resolve, and repair-with-fixes all hold it
// for their duration so two concurrent jin processes never race on the
// same project.
package lock

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/dabstractor/jin/internal/jinerr"
)

// RelPath is the control-directory-relative location of the lock file.
const RelPath = ".lock"

// Unlocker releases a held lock. Calling it more than once is safe.
type Unlocker interface {
	Unlock() error
}

type fileLock struct {
	f *os.File
}

// Lock takes an exclusive, non-blocking flock on jinDir/.lock. It returns
// jinerr.ErrLocked if another process currently holds it.
func Lock(jinDir string) (Unlocker, error) {
	if err := os.MkdirAll(jinDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", jinerr.ErrIO, jinDir, err)
	}

	path := filepath.Join(jinDir, RelPath)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: open lock file %s: %v", jinerr.ErrIO, path, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, jinerr.ErrLocked
		}
		return nil, fmt.Errorf("%w: flock %s: %v", jinerr.ErrIO, path, err)
	}

	return &fileLock{f: f}, nil
}

func (l *fileLock) Unlock() error {
	if l.f == nil {
		return nil
	}
	err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	closeErr := l.f.Close()
	l.f = nil
	if err != nil {
		return fmt.Errorf("%w: unlock: %v", jinerr.ErrIO, err)
	}
	if closeErr != nil {
		return fmt.Errorf("%w: close lock file: %v", jinerr.ErrIO, closeErr)
	}
	return nil
}
