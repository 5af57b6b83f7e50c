// Package lock implements the exclusive write-lock discipline every
// named-file mutator in the repository goes through: open "<path>.lock"
// with create+exclusive+writeonly, write, then either Commit (rename over
// path) or Rollback (unlink the lock file).
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

// ErrLockDenied is returned when "<path>.lock" already exists.
var ErrLockDenied = errors.New("lock: already held")

// ErrMissingParent is returned when path's parent directory does not exist.
// The caller may create it and retry.
var ErrMissingParent = errors.New("lock: parent directory missing")

// ErrNoPermission is returned when the filesystem denies lock-file creation.
var ErrNoPermission = errors.New("lock: permission denied")

// ErrStaleLock is returned when a Lock is used again after Commit or
// Rollback has already consumed it.
var ErrStaleLock = errors.New("lock: use after commit or rollback")

const (
	blockingRetryDelay = 5 * time.Millisecond
	blockingWaitLimit  = 2 * time.Second
)

// Lock guards a single named file's write path. The zero value is not
// usable; construct one with New.
type Lock struct {
	path     string
	lockPath string
	file     *os.File
	done     bool
}

// New prepares a Lock for path. Acquire must be called before Write.
func New(path string) *Lock {
	return &Lock{path: path, lockPath: path + ".lock"}
}

// Acquire opens "<path>.lock" with O_CREATE|O_EXCL, failing fast per the
// teacher's acquireRefLock discipline (create-exclusive-or-fail, no
// blocking wait by default).
func (l *Lock) Acquire() error {
	if l.done {
		return fmt.Errorf("acquire %q: %w", l.path, ErrStaleLock)
	}
	f, err := os.OpenFile(l.lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		switch {
		case os.IsExist(err):
			return fmt.Errorf("acquire %q: %w", l.path, ErrLockDenied)
		case os.IsNotExist(err):
			return fmt.Errorf("acquire %q: %w", l.path, ErrMissingParent)
		case os.IsPermission(err):
			return fmt.Errorf("acquire %q: %w", l.path, ErrNoPermission)
		default:
			return fmt.Errorf("acquire %q: %w", l.path, err)
		}
	}
	l.file = f
	return nil
}

// AcquireBlocking retries Acquire with backoff until blockingWaitLimit
// elapses, for callers that must wait rather than fail immediately (the
// teacher's acquireRefLock poll loop).
func (l *Lock) AcquireBlocking() error {
	deadline := time.Now().Add(blockingWaitLimit)
	for {
		err := l.Acquire()
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrLockDenied) {
			return err
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("acquire %q: timed out waiting for lock: %w", l.path, ErrLockDenied)
		}
		time.Sleep(blockingRetryDelay)
	}
}

// Write writes data to the held lock file.
func (l *Lock) Write(data []byte) error {
	if l.done || l.file == nil {
		return fmt.Errorf("write %q: %w", l.path, ErrStaleLock)
	}
	if _, err := l.file.Write(data); err != nil {
		return fmt.Errorf("write %q: %w", l.path, err)
	}
	return nil
}

// Commit syncs and closes the lock file, then renames it over path,
// publishing the write atomically. The Lock is consumed; further use
// returns ErrStaleLock.
func (l *Lock) Commit() error {
	if l.done || l.file == nil {
		return fmt.Errorf("commit %q: %w", l.path, ErrStaleLock)
	}
	if err := l.file.Sync(); err != nil {
		_ = l.file.Close()
		l.done = true
		return fmt.Errorf("commit %q: sync: %w", l.path, err)
	}
	if err := l.file.Close(); err != nil {
		l.done = true
		return fmt.Errorf("commit %q: close: %w", l.path, err)
	}
	l.file = nil
	if err := os.Rename(l.lockPath, l.path); err != nil {
		l.done = true
		return fmt.Errorf("commit %q: rename: %w", l.path, err)
	}
	l.done = true
	return nil
}

// Rollback closes and removes the lock file without publishing it. Safe to
// call after a failed Acquire's caller never held the lock; safe to call
// multiple times.
func (l *Lock) Rollback() error {
	if l.done {
		return nil
	}
	l.done = true
	if l.file != nil {
		_ = l.file.Close()
		l.file = nil
	}
	if err := os.Remove(l.lockPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("rollback %q: %w", l.path, err)
	}
	return nil
}

// CompareAndSwap acquires the lock, reads the current file content via
// read, checks it against expected via check, and if check passes, calls
// write with the new content and commits. The lock is held across the
// entire read-check-write sequence so the compare and the store are
// serialized against competing writers, per spec's compare_and_swap
// contract (§4.2).
func (l *Lock) CompareAndSwap(check func(current []byte) error, write func() []byte) error {
	if err := l.Acquire(); err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = l.Rollback()
		}
	}()

	current, err := os.ReadFile(l.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("compare-and-swap %q: read current: %w", l.path, err)
	}
	if err := check(current); err != nil {
		return err
	}
	if err := l.Write(write()); err != nil {
		return err
	}
	if err := l.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// BlockingFileLock is a cross-process advisory lock with a timed blocking
// wait, for callers that must wait rather than fail the way the
// create-exclusive Acquire above does. Lock.Acquire does not use it, and no
// package in this repository calls it outside this package's tests.
type BlockingFileLock struct {
	fl *flock.Flock
}

// NewBlockingFileLock wraps path+".lock" with a gofrs/flock advisory lock.
func NewBlockingFileLock(path string) *BlockingFileLock {
	return &BlockingFileLock{fl: flock.New(path + ".lock")}
}

// Lock blocks (up to timeout) until the advisory lock is acquired.
func (b *BlockingFileLock) Lock(ctx context.Context, timeout time.Duration) error {
	locked, err := b.fl.TryLockContext(ctx, timeout)
	if err != nil {
		return fmt.Errorf("blocking lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("blocking lock: %w", ErrLockDenied)
	}
	return nil
}

// Unlock releases the advisory lock.
func (b *BlockingFileLock) Unlock() error {
	return b.fl.Unlock()
}

// TempName returns a UUID-suffixed temp file name in dir, replacing the
// teacher's os.CreateTemp random-suffix convention with a UUID suffix —
// same atomic temp+rename discipline, a different uniqueness source.
func TempName(dir, prefix string) string {
	return dir + string(os.PathSeparator) + prefix + "-" + uuid.NewString() + ".tmp"
}
