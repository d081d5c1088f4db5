// Package destlock serializes writers per destination path, both within a
// process and across modsync processes sharing a directory.
package destlock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// LockSuffix is appended to a destination to name its lock file.
const LockSuffix = ".lock"

// pollInterval is how often a blocked Acquire retries the file lock.
const pollInterval = 50 * time.Millisecond

// Locker hands out per-destination locks.
type Locker struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

// New creates a Locker.
func New() *Locker {
	return &Locker{held: make(map[string]chan struct{})}
}

// Lock is a held destination lock.
type Lock struct {
	locker *Locker
	key    string
	file   *os.File
	once   sync.Once
}

// Acquire blocks until dest is free in this process and no other process
// holds its lock file, or until ctx is done.
func (l *Locker) Acquire(ctx context.Context, dest string) (*Lock, error) {
	key, err := filepath.Abs(dest)
	if err != nil {
		return nil, err
	}

	if err := l.acquireLocal(ctx, key); err != nil {
		return nil, err
	}

	f, err := l.acquireFile(ctx, key+LockSuffix)
	if err != nil {
		l.releaseLocal(key)
		return nil, err
	}

	return &Lock{locker: l, key: key, file: f}, nil
}

// Release frees the lock and removes its lock file. Safe to call twice.
func (lk *Lock) Release() error {
	var err error
	lk.once.Do(func() {
		path := lk.file.Name()
		_ = os.Remove(path)
		_ = unlockFile(lk.file)
		err = lk.file.Close()
		lk.locker.releaseLocal(lk.key)
	})
	return err
}

func (l *Locker) acquireLocal(ctx context.Context, key string) error {
	for {
		l.mu.Lock()
		ch, busy := l.held[key]
		if !busy {
			l.held[key] = make(chan struct{})
			l.mu.Unlock()
			return nil
		}
		l.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (l *Locker) releaseLocal(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ch, ok := l.held[key]; ok {
		close(ch)
		delete(l.held, key)
	}
}

func (l *Locker) acquireFile(ctx context.Context, path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening lock file: %w", err)
		}

		locked, err := tryLockFile(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("locking %s: %w", path, err)
		}
		if locked {
			// The previous holder may have removed the file after we opened it.
			if same(f, path) {
				return f, nil
			}
			_ = unlockFile(f)
		}
		_ = f.Close()

		select {
		case <-time.After(pollInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func same(f *os.File, path string) bool {
	a, err := f.Stat()
	if err != nil {
		return false
	}
	b, err := os.Stat(path)
	if err != nil {
		return false
	}
	return os.SameFile(a, b)
}
