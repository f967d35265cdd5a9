//go:build !windows

package satrain

import (
	"fmt"
	"os"
	"syscall"
	"time"
)

// fileLock serializes config-file writes across processes using flock()
// advisory locking.
type fileLock struct {
	// file is the lock file handle.
	file *os.File

	// timeout bounds how long Lock waits for acquisition.
	timeout time.Duration

	// locked tracks whether the lock is currently held.
	locked bool
}

// newFileLock opens (or creates) the lock file at path.
func newFileLock(path string, timeout time.Duration) (*fileLock, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	return &fileLock{file: file, timeout: timeout}, nil
}

// Lock acquires the exclusive lock, polling with backoff until it is
// granted or the timeout expires.
func (l *fileLock) Lock() error {
	if l.locked {
		return nil
	}

	deadline := time.Now().Add(l.timeout)
	sleep := 10 * time.Millisecond

	for {
		err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			l.locked = true
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("lock timeout after %v", l.timeout)
		}

		time.Sleep(sleep)
		if sleep < 100*time.Millisecond {
			sleep *= 2
		}
	}
}

// Unlock releases the lock and closes the file handle.
// Safe to call multiple times.
func (l *fileLock) Unlock() error {
	if !l.locked {
		if l.file != nil {
			l.file.Close()
			l.file = nil
		}
		return nil
	}

	var unlockErr error
	if l.file != nil {
		unlockErr = syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
		l.file.Close()
		l.file = nil
	}
	l.locked = false

	return unlockErr
}
