package history

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
)

// LockFilename is the instance lock file name inside the data directory.
const LockFilename = "invitewatch.lock"

// ErrLocked indicates another process already owns the data directory.
var ErrLocked = errors.New("data directory is in use by another process")

// InstanceLock guards a data directory with flock(2) so that only one
// monitor process writes its history. The kernel drops the lock if the
// process dies.
type InstanceLock struct {
	path string
	file *os.File
}

// NewInstanceLock returns an unacquired lock at path.
func NewInstanceLock(path string) *InstanceLock {
	return &InstanceLock{path: path}
}

// Acquire takes the lock without blocking. It returns ErrLocked when another
// process holds it. On success the owning PID is written to the file.
func (l *InstanceLock) Acquire() error {
	if l.file != nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = file.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return fmt.Errorf("%w: %s", ErrLocked, l.path)
		}
		return fmt.Errorf("flock failed: %w", err)
	}

	if err := file.Truncate(0); err == nil {
		_, _ = file.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
	}
	l.file = file
	return nil
}

// Release drops the lock. Releasing an unheld lock is a no-op.
func (l *InstanceLock) Release() error {
	if l.file == nil {
		return nil
	}

	err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil

	if err != nil {
		return fmt.Errorf("flock unlock failed: %w", err)
	}
	if closeErr != nil {
		return fmt.Errorf("close failed: %w", closeErr)
	}
	return nil
}

// Held reports whether this instance owns the lock.
func (l *InstanceLock) Held() bool {
	return l.file != nil
}

// Path returns the lock file path.
func (l *InstanceLock) Path() string {
	return l.path
}
