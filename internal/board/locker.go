package board

import "sync"

// SessionLocker serialises work per session id. Callers queued behind a held
// lock run in strict arrival order; sessions are fully independent of each
// other. The lock has no timeout: a guarded operation that never returns
// blocks its session until process restart.
type SessionLocker struct {
	mu    sync.Mutex
	locks map[string]*lockState
}

type lockState struct {
	held    bool
	waiters []chan struct{}
}

// NewSessionLocker constructs an empty locker.
func NewSessionLocker() *SessionLocker {
	return &SessionLocker{locks: make(map[string]*lockState)}
}

// RunExclusive runs fn while holding the session's lock. The lock is released
// when fn returns, whatever the outcome, and handed directly to the oldest
// waiter so queued operations observe FIFO ordering.
func (l *SessionLocker) RunExclusive(sessionID string, fn func()) {
	l.acquire(sessionID)
	defer l.release(sessionID)
	fn()
}

func (l *SessionLocker) acquire(sessionID string) {
	l.mu.Lock()
	st := l.locks[sessionID]
	if st == nil {
		st = &lockState{}
		l.locks[sessionID] = st
	}
	if !st.held {
		st.held = true
		l.mu.Unlock()
		return
	}

	wait := make(chan struct{})
	st.waiters = append(st.waiters, wait)
	l.mu.Unlock()

	<-wait
}

func (l *SessionLocker) release(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := l.locks[sessionID]
	if st == nil {
		return
	}

	if len(st.waiters) > 0 {
		// Hand the lock to the oldest waiter; held stays true so a fresh
		// acquirer cannot jump the queue.
		next := st.waiters[0]
		st.waiters = st.waiters[1:]
		close(next)
		return
	}

	st.held = false
}

// Forget drops the bookkeeping for a session's lock. It is a no-op while the
// lock is held or contended, so cleanup after the last disconnect cannot
// strand a queued operation.
func (l *SessionLocker) Forget(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if st := l.locks[sessionID]; st != nil && !st.held && len(st.waiters) == 0 {
		delete(l.locks, sessionID)
	}
}

// Len reports how many sessions currently have lock state, for tests and
// observability.
func (l *SessionLocker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
