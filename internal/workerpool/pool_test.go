package workerpool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSubmitRunsAllTasks(t *testing.T) {
	p := New(4, 64)
	defer p.Close()

	var count int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		p.Submit(func() {
			atomic.AddInt64(&count, 1)
			wg.Done()
		})
	}
	wg.Wait()

	if got := atomic.LoadInt64(&count); got != 100 {
		t.Fatalf("ran %d tasks, want 100", got)
	}
}

func TestSubmitBlocksWhenQueueFull(t *testing.T) {
	p := New(1, 1)
	defer p.Close()

	block := make(chan struct{})
	p.Submit(func() { <-block }) // occupies the single worker

	// Fill the one-slot queue.
	done1 := make(chan struct{})
	go func() {
		p.Submit(func() {})
		close(done1)
	}()
	<-done1 // this fits into the queue slot, shouldn't block

	submitted := make(chan struct{})
	go func() {
		p.Submit(func() {}) // queue is now full; should block until space frees
		close(submitted)
	}()

	select {
	case <-submitted:
		t.Fatal("Submit returned before queue space freed up")
	case <-time.After(50 * time.Millisecond):
	}

	close(block) // release the worker, draining the queue

	select {
	case <-submitted:
	case <-time.After(time.Second):
		t.Fatal("Submit never returned after queue space freed")
	}
}

func TestCloseDrainsRemainingTasksThenReturns(t *testing.T) {
	p := New(2, 16)

	var ran int64
	for i := 0; i < 10; i++ {
		p.Submit(func() { atomic.AddInt64(&ran, 1) })
	}
	p.Close()

	if got := atomic.LoadInt64(&ran); got != 10 {
		t.Fatalf("ran %d of 10 tasks before Close returned, want 10", got)
	}
}

func TestSubmitAfterCloseIsNoOp(t *testing.T) {
	p := New(1, 1)
	p.Close()

	done := make(chan struct{})
	go func() {
		p.Submit(func() { t.Error("task should never run after Close") })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit blocked forever after Close")
	}
}

func TestPendingReflectsQueueDepth(t *testing.T) {
	p := New(0, 0) // exercise the default fallbacks
	defer p.Close()

	block := make(chan struct{})
	p.Submit(func() { <-block })
	time.Sleep(20 * time.Millisecond)
	if p.Pending() != 0 {
		t.Fatalf("expected 0 pending once the single running task is picked up, got %d", p.Pending())
	}
	close(block)
}
