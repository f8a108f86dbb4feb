package system

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// FileLock is an exclusive advisory lock held on a sidecar "<path>.lock" file.
type FileLock struct {
	f *os.File
}

// LockFile blocks until the lock guarding path is acquired.
func LockFile(path string) (*FileLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	f, err := os.OpenFile(path+".lock", os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return nil, fmt.Errorf("flock %s: %w", path, err)
	}

	return &FileLock{f: f}, nil
}

// Unlock releases the lock. The sidecar file is left in place.
func (l *FileLock) Unlock() error {
	if l == nil || l.f == nil {
		return nil
	}
	defer func() {
		l.f.Close()
		l.f = nil
	}()
	return unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
}
