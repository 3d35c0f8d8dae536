package security

import (
	"fmt"
	"os"
	"syscall"
	"time"
)

// Lock represents an advisory file lock.
// Uses flock(2) for cross-process locking to prevent TOCTOU race conditions.
type Lock struct {
	file     *os.File
	path     string
	released bool
}

// AcquireLock acquires an exclusive advisory lock on a file.
// Creates lock file if it doesn't exist.
// Times out after specified duration to prevent deadlocks.
//
// The lock file is created at path + ".lock" and uses flock(2) for
// advisory locking, which works across processes but requires cooperation.
//
// Example:
//
//	lock, err := AcquireLock(shimDir, 10*time.Second)
//	if err != nil {
//	    return err
//	}
//	defer lock.Release()
func AcquireLock(path string, timeout time.Duration) (*Lock, error) {
	lockPath := path + ".lock"

	// Create lock file if doesn't exist
	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("cannot create lock file: %w", err)
	}

	// Try to acquire lock with timeout
	deadline := time.Now().Add(timeout)
	for {
		// Try exclusive lock (LOCK_EX | LOCK_NB for non-blocking)
		err = syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			// Lock acquired
			return &Lock{
				file:     file,
				path:     lockPath,
				released: false,
			}, nil
		}

		// Check if timeout
		if time.Now().After(deadline) {
			file.Close()
			return nil, fmt.Errorf("timeout acquiring lock on %s after %v", path, timeout)
		}

		// Wait a bit and retry
		time.Sleep(100 * time.Millisecond)
	}
}

// Release releases the file lock and removes the lock file.
// Should be called via defer to ensure cleanup even on panic.
//
// Returns error if lock was already released or if release fails.
func (l *Lock) Release() error {
	if l.released {
		return fmt.Errorf("lock already released")
	}

	// Release lock
	err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	if err != nil {
		return fmt.Errorf("cannot release lock: %w", err)
	}

	// Close file
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("cannot close lock file: %w", err)
	}

	// Remove lock file (best effort - ignore errors if file doesn't exist)
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cannot remove lock file: %w", err)
	}

	l.released = true
	return nil
}

// WithLock executes a function while holding an exclusive lock.
// Automatically releases lock when function returns.
// This is the recommended way to use locks as it ensures cleanup.
//
// Example:
//
//	err := WithLock(shimDir, 10*time.Second, func() error {
//	    // Critical section - modifications protected by lock
//	    return createShim(shimDir, name)
//	})
func WithLock(path string, timeout time.Duration, fn func() error) error {
	lock, err := AcquireLock(path, timeout)
	if err != nil {
		return err
	}
	defer lock.Release()

	return fn()
}

// AtomicReplace renames oldPath onto newPath, replacing any existing file
// at newPath. It's used for state that is meant to be overwritten in
// place, such as a shim installed by copyExecutable.
//
// The rename itself is atomic on a given filesystem; readers either see the
// old contents or the new ones, never a partial write.
func AtomicReplace(oldPath, newPath string) error {
	return os.Rename(oldPath, newPath)
}
