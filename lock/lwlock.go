/*
LWLock is light-weight lock, which is called latch in other databases.
LWLock protects in-memory shared structures (page cache frame, bucket of row lock table, table metadata...)
for a short time. It is exclusive only and not re-entrant.

When the lock is held, the goroutine is queued in FIFO order and parks on its own channel.
Release hands the ownership over to the first waiter directly, so the waiters are
served in arrival order and nobody spins.

see https://github.com/postgres/postgres/blob/a448e49bcbe40fb72e1ed85af910dd216d45bad8/src/backend/storage/lmgr/lwlock.c#L1
*/
package lock

import "sync"

// LWLock is light-weight lock. zero value is released lock
type LWLock struct {
	mu      sync.Mutex
	held    bool
	waiters []chan struct{}
}

// NewLWLock initializes lwlock
func NewLWLock() *LWLock {
	return &LWLock{}
}

// Acquire acquires the lock. this blocks until the lock is handed over
func (l *LWLock) Acquire() {
	l.mu.Lock()
	if !l.held {
		l.held = true
		l.mu.Unlock()
		return
	}
	ch := make(chan struct{})
	l.waiters = append(l.waiters, ch)
	l.mu.Unlock()

	// the lock is already ours when the channel is closed
	<-ch
}

// TryAcquire acquires the lock only when nobody holds it
func (l *LWLock) TryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return false
	}
	l.held = true
	return true
}

// Release releases the lock. when there are waiters, the first one gets the lock.
// releasing the lock which is not held is protocol violation and panics
func (l *LWLock) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.held {
		panic("lwlock: release of unheld lock")
	}
	if len(l.waiters) > 0 {
		ch := l.waiters[0]
		l.waiters[0] = nil
		l.waiters = l.waiters[1:]
		close(ch)
		return
	}
	l.held = false
}

// IsHeld returns whether the lock is held by someone
func (l *LWLock) IsHeld() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held
}

// numWaiters returns the number of goroutines waiting for the lock
func (l *LWLock) numWaiters() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.waiters)
}
