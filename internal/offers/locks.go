package offers

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// memberLocks serializes assignments to the same member within the process.
type memberLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*memberLock
}

type memberLock struct {
	sem  *semaphore.Weighted
	refs int
}

func newMemberLocks() *memberLocks {
	return &memberLocks{locks: make(map[uuid.UUID]*memberLock)}
}

// lock blocks until id is free or ctx is done. The returned func releases it.
func (l *memberLocks) lock(ctx context.Context, id uuid.UUID) (func(), error) {
	l.mu.Lock()
	ml, ok := l.locks[id]
	if !ok {
		ml = &memberLock{sem: semaphore.NewWeighted(1)}
		l.locks[id] = ml
	}
	ml.refs++
	l.mu.Unlock()

	if err := ml.sem.Acquire(ctx, 1); err != nil {
		l.release(id, ml)
		return nil, Cancelled(ctx)
	}
	return func() {
		ml.sem.Release(1)
		l.release(id, ml)
	}, nil
}

func (l *memberLocks) release(id uuid.UUID, ml *memberLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ml.refs--
	if ml.refs == 0 {
		delete(l.locks, id)
	}
}

// held reports how many members currently have a lock entry.
func (l *memberLocks) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
