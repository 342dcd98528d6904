package core

import (
	"fmt"
	"os"
	"syscall"
)

// fileLock is a WriterLock backed by an exclusive flock on a file, shared by
// every process that opens the same data directory.
type fileLock struct {
	path string
}

// NewFileLock returns a WriterLock that locks path, creating it if needed.
func NewFileLock(path string) WriterLock {
	return &fileLock{path: path}
}

// Lock blocks until the exclusive lock is held. The returned function
// releases it.
func (l *fileLock) Lock() (unlock func() error, err error) {
	f, err := os.OpenFile(l.path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("acquiring file lock: %w", err)
	}

	return func() error {
		defer func() { _ = f.Close() }()
		return syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	}, nil
}
