package board

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSessionLockerRunsQueuedOperationsInArrivalOrder(t *testing.T) {
	locker := NewSessionLocker()

	var (
		mu    sync.Mutex
		order []int
	)

	release := make(chan struct{})
	holding := make(chan struct{})
	var wg sync.WaitGroup

	// First operation holds the lock until released.
	wg.Add(1)
	go func() {
		defer wg.Done()
		locker.RunExclusive("r1", func() {
			close(holding)
			<-release
			mu.Lock()
			order = append(order, 0)
			mu.Unlock()
		})
	}()
	<-holding

	// Queue successors one at a time so their arrival order is defined.
	for i := 1; i <= 5; i++ {
		i := i
		started := make(chan struct{})
		wg.Add(1)
		go func() {
			defer wg.Done()
			close(started)
			locker.RunExclusive("r1", func() {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
			})
		}()
		<-started
		time.Sleep(10 * time.Millisecond) // let the goroutine enqueue
	}

	close(release)
	wg.Wait()

	require.Equal(t, []int{0, 1, 2, 3, 4, 5}, order)
}

func TestSessionLockerSessionsAreIndependent(t *testing.T) {
	locker := NewSessionLocker()

	blocked := make(chan struct{})
	proceed := make(chan struct{})
	go func() {
		locker.RunExclusive("r1", func() {
			close(blocked)
			<-proceed
		})
	}()
	<-blocked

	// A different session must not wait on r1's lock.
	done := make(chan struct{})
	go func() {
		locker.RunExclusive("r2", func() {})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("operation on independent session blocked")
	}

	close(proceed)
}

func TestSessionLockerReleasesAfterPanicInOperation(t *testing.T) {
	locker := NewSessionLocker()

	func() {
		defer func() { _ = recover() }()
		locker.RunExclusive("r1", func() {
			panic("guarded operation failed")
		})
	}()

	done := make(chan struct{})
	go func() {
		locker.RunExclusive("r1", func() {})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock was not released after panic")
	}
}

func TestSessionLockerForget(t *testing.T) {
	locker := NewSessionLocker()

	locker.RunExclusive("r1", func() {})
	require.Equal(t, 1, locker.Len())

	locker.Forget("r1")
	require.Equal(t, 0, locker.Len())

	// Forget is a no-op while the lock is held.
	held := make(chan struct{})
	proceed := make(chan struct{})
	go func() {
		locker.RunExclusive("r2", func() {
			close(held)
			<-proceed
		})
	}()
	<-held
	locker.Forget("r2")
	require.Equal(t, 1, locker.Len())
	close(proceed)
}
