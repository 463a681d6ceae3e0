package blazesched

import (
	"sync/atomic"
	"unsafe"
)

// pollLock serializes the global queue's consumer side. Wakers that find
// it held skip global polling instead of spinning.
type pollLock struct {
	i int32
	_ [cacheLinePadSize - unsafe.Sizeof(int32(0))]byte //nolint:unused
}

func (l *pollLock) TryLock() bool {
	return atomic.CompareAndSwapInt32(&l.i, 0, 1)
}

func (l *pollLock) Unlock() {
	if atomic.LoadInt32(&l.i) == 0 {
		panic("BUG: Unlock of unlocked poll lock")
	}
	atomic.StoreInt32(&l.i, 0)
}

// globalQueue is an intrusive multi-producer single-consumer list. Any
// thread may push; only the pollLock holder may pop. head is the producer
// end; tail is consumer-owned. The stub node re-anchors the list when it
// drains.
type globalQueue struct {
	head atomic.Pointer[Task]
	_    [cacheLinePadSize - unsafe.Sizeof(atomic.Pointer[Task]{})]byte //nolint:unused

	poll pollLock

	length atomic.Int64
	_      [cacheLinePadSize - unsafe.Sizeof(atomic.Int64{})]byte //nolint:unused

	tail *Task
	stub Task
}

func (q *globalQueue) init() {
	q.head.Store(&q.stub)
	q.tail = &q.stub
}

// push links the whole batch behind head, consuming it. Wait-free except
// for the window between the exchange and the link store, which pop
// reports as transient emptiness.
func (q *globalQueue) push(b *Batch) {
	if b.len == 0 {
		return
	}
	head, tail, n := b.head, b.tail, b.len
	*b = Batch{}

	// count before publishing so the shutdown heuristic in
	// suspendThread never undercounts queued work
	q.length.Add(int64(n))
	tail.next.Store(nil)
	prev := q.head.Swap(tail)
	prev.next.Store(head)
}

func (q *globalQueue) pushStub() {
	q.stub.next.Store(nil)
	prev := q.head.Swap(&q.stub)
	prev.next.Store(&q.stub)
}

// pop dequeues one task. Caller must hold the poll lock. A nil return
// means empty or a producer mid-push; either way, retry later.
func (q *globalQueue) pop() *Task {
	tail := q.tail
	next := tail.next.Load()

	if tail == &q.stub {
		if next == nil {
			return nil
		}
		q.tail = next
		tail = next
		next = tail.next.Load()
	}

	if next != nil {
		q.tail = next
		tail.next.Store(nil)
		q.length.Add(-1)
		return tail
	}

	if tail != q.head.Load() {
		// a producer exchanged head but has not linked yet
		return nil
	}

	q.pushStub()
	next = tail.next.Load()
	if next == nil {
		return nil
	}
	q.tail = next
	tail.next.Store(nil)
	q.length.Add(-1)
	return tail
}

// appearsEmpty is a racy emptiness estimate used by the shutdown
// decision; the length counter is raised before a push publishes and
// lowered after a pop unlinks, so it may overstate queued work but never
// understates it.
func (q *globalQueue) appearsEmpty() bool {
	return q.length.Load() <= 0
}
