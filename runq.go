package blazesched

import (
	"sync/atomic"
	"unsafe"
)

// runQueue is the per-worker bounded ring: single producer (the owner),
// multiple consumers (the owner popping and siblings stealing). head and
// tail wrap freely; tail - head never exceeds runqSize. The owner is the
// only writer of tail and of buffer cells at tail.
type runQueue struct {
	head atomic.Uint32
	_    [cacheLinePadSize - unsafe.Sizeof(atomic.Uint32{})]byte //nolint:unused
	tail atomic.Uint32
	_    [cacheLinePadSize - unsafe.Sizeof(atomic.Uint32{})]byte //nolint:unused

	buffer [runqSize]atomic.Pointer[Task]
}

func (q *runQueue) size() uint32 {
	return q.tail.Load() - q.head.Load()
}

// push copies as much of b as fits behind tail and returns the overflow:
// the batch remainder, preceded by half the ring when the ring was
// already full. The caller forwards a non-empty overflow to the global
// queue. Owner only.
func (q *runQueue) push(b *Batch) Batch {
	for {
		h := q.head.Load()
		t := q.tail.Load()
		if t-h > runqSize {
			panic("BUG: local runq size exceeds capacity")
		}
		free := runqSize - (t - h)

		if free > 0 {
			for free > 0 && b.len > 0 {
				task := b.PopFront()
				q.buffer[t&runqMask].Store(task)
				t++
				free--
			}
			q.tail.Store(t)
			if b.len == 0 {
				return Batch{}
			}
			ov := *b
			*b = Batch{}
			return ov
		}

		// Ring full and nothing fits: claim the front half from our
		// own buffer and ship it with b. The CAS races only against
		// in-flight stealers.
		n := uint32(runqSize / 2)
		if !q.head.CompareAndSwap(h, h+n) {
			continue
		}
		var ov Batch
		for i := uint32(0); i < n; i++ {
			ov.PushBack(q.buffer[(h+i)&runqMask].Load())
		}
		ov.PushBackBatch(*b)
		*b = Batch{}
		return ov
	}
}

// pop takes the task at head. Owner only, but stealers race on head so a
// plain increment is not enough.
func (q *runQueue) pop() *Task {
	for {
		h := q.head.Load()
		t := q.tail.Load()
		if h == t {
			return nil
		}
		task := q.buffer[h&runqMask].Load()
		if q.head.CompareAndSwap(h, h+1) {
			return task
		}
	}
}

// stealFrom claims the front half of target's ring, parking all but the
// first claimed task in q (which must be the caller's own, empty ring)
// and returning that first task plus the number of tasks transferred.
// The buffer copy runs before the CAS on target.head; a failed CAS
// discards it.
func (q *runQueue) stealFrom(target *runQueue) (*Task, uint32) {
	for {
		h := target.head.Load()
		t := target.tail.Load()
		size := t - h
		if size == 0 {
			return nil, 0
		}
		if size > runqSize {
			// tail advanced between the two loads; reread
			continue
		}
		take := size - size/2

		first := target.buffer[h&runqMask].Load()
		dt := q.tail.Load()
		for i := uint32(1); i < take; i++ {
			task := target.buffer[(h+i)&runqMask].Load()
			q.buffer[(dt+i-1)&runqMask].Store(task)
		}
		if !target.head.CompareAndSwap(h, h+take) {
			continue
		}
		if take > 1 {
			q.tail.Store(dt + take - 1)
		}
		return first, take
	}
}
