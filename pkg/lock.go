package pkg

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

const (
	// LockFileName is the process lock file nbc-bootctl acquires before
	// touching the Facade, relative to <prefix>/run.
	LockFileName = "nbc-bootctl.lock"
)

// ErrLockHeld is returned when a lock cannot be acquired because another
// process holds it.
var ErrLockHeld = errors.New("lock held by another process")

// FileLock represents a file-based lock using flock.
type FileLock struct {
	file *os.File
	path string
}

// LockPath returns the full lock file path for the given prefix.
func LockPath(prefix string) string {
	return filepath.Join(prefix, "run", LockFileName)
}

// AcquireExclusive acquires an exclusive (write) lock on the given path.
// Returns ErrLockHeld if the lock is already held by another process. The
// lock is released when Release() is called or the process exits.
func AcquireExclusive(lockPath string) (*FileLock, error) {
	return acquireLock(lockPath, syscall.LOCK_EX)
}

// AcquireShared acquires a shared (read) lock on the given path. Multiple
// processes can hold shared locks simultaneously.
func AcquireShared(lockPath string) (*FileLock, error) {
	return acquireLock(lockPath, syscall.LOCK_SH)
}

func acquireLock(lockPath string, lockType int) (*FileLock, error) {
	dir := filepath.Dir(lockPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory %s: %w", dir, err)
	}

	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", lockPath, err)
	}

	if err := syscall.Flock(int(file.Fd()), lockType|syscall.LOCK_NB); err != nil {
		_ = file.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return nil, ErrLockHeld
		}
		return nil, fmt.Errorf("failed to acquire lock on %s: %w", lockPath, err)
	}

	return &FileLock{file: file, path: lockPath}, nil
}

// Release releases the lock and closes the underlying file. It is safe to
// call Release multiple times.
func (l *FileLock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Path returns the path of the lock file.
func (l *FileLock) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// AcquireToolLock acquires the exclusive nbc-bootctl process lock for the
// given prefix. Returns a user-friendly error if the lock is already held.
func AcquireToolLock(prefix string) (*FileLock, error) {
	lock, err := AcquireExclusive(LockPath(prefix))
	if err != nil {
		if errors.Is(err, ErrLockHeld) {
			return nil, fmt.Errorf("another nbc-bootctl process is currently operating on %s", prefix)
		}
		return nil, err
	}
	return lock, nil
}
