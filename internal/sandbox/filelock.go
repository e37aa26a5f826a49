package sandbox

import (
	"context"
	"sync"
)

// fileLock is a ref-counted mutex for one path: it is removed from the
// owning map once the last holder releases it, so the map never grows
// without bound across a long-running process.
type fileLock struct {
	mu   sync.Mutex
	refs int
}

// FileLocks is the toolregistry.LockProvider implementation tools are
// wired against in production: one mutex per canonical path, ref-counted
// so concurrent acquires of distinct paths never contend.
type FileLocks struct {
	mu    sync.Mutex
	locks map[string]*fileLock
}

// NewFileLocks creates an empty FileLocks provider.
func NewFileLocks() *FileLocks {
	return &FileLocks{locks: make(map[string]*fileLock)}
}

// Acquire blocks until path's lock is held and returns a func that releases
// it. A ctx cancelled before the lock is free still blocks until acquired;
// callers that need cancellation-aware acquire should race Acquire against
// ctx.Done() themselves, since the registry's lock-provider contract does
// not require preemptible waits.
func (f *FileLocks) Acquire(ctx context.Context, path string) (func(), error) {
	f.mu.Lock()
	lock := f.locks[path]
	if lock == nil {
		lock = &fileLock{}
		f.locks[path] = lock
	}
	lock.refs++
	f.mu.Unlock()

	lock.mu.Lock()
	released := false
	return func() {
		if released {
			return
		}
		released = true
		lock.mu.Unlock()
		f.mu.Lock()
		lock.refs--
		if lock.refs <= 0 {
			delete(f.locks, path)
		}
		f.mu.Unlock()
	}, nil
}
