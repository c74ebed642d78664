// Package filelock provides advisory locking for the shared state files
// (suppression set, rate-limit window). The deployment model is
// single-writer-at-a-time; the lock narrows the cross-process
// read-modify-write race window, it does not eliminate it.
package filelock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// Locker serializes access to one shared resource.
// Implementations must be safe for use from a single goroutine;
// concurrent use across goroutines requires separate lock instances.
type Locker interface {
	// Acquire tries to take the lock, retrying until ctx expires.
	Acquire(ctx context.Context) error
	// Release releases the lock if held. Safe to call when not held.
	Release() error
}

// retryDelay is the poll interval while waiting on a contended lock.
const retryDelay = 50 * time.Millisecond

// FlockLocker implements Locker with an OS advisory lock on a sidecar
// ".lock" file next to the protected state file. Locking a sidecar instead
// of the state file itself keeps the lock stable across the
// write-temp-then-rename cycle used for atomic persistence.
type FlockLocker struct {
	fl *flock.Flock
}

// New creates a Locker guarding the state file at path.
func New(path string) (*FlockLocker, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating lock directory %s: %w", dir, err)
	}
	return &FlockLocker{fl: flock.New(path + ".lock")}, nil
}

// Acquire blocks until the lock is held or ctx expires.
func (l *FlockLocker) Acquire(ctx context.Context) error {
	locked, err := l.fl.TryLockContext(ctx, retryDelay)
	if err != nil {
		return fmt.Errorf("acquiring lock %s: %w", l.fl.Path(), err)
	}
	if !locked {
		return fmt.Errorf("lock %s not acquired", l.fl.Path())
	}
	return nil
}

// Release drops the lock.
func (l *FlockLocker) Release() error {
	return l.fl.Unlock()
}

// With runs fn while holding the lock, releasing it on every path.
func With(ctx context.Context, l Locker, fn func() error) error {
	if err := l.Acquire(ctx); err != nil {
		return err
	}
	defer l.Release()
	return fn()
}
