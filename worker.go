package blazesched

import (
	"sync/atomic"
	"unsafe"
)

const (
	wakeNone uint32 = 0
	wakeRun  uint32 = 1
)

// Worker is one pool slot's execution loop. Exactly one goroutine runs a
// Worker; tasks executing on it may call Schedule, ScheduleNext and
// Yield through the pointer handed to their continuation.
type Worker struct {
	noCopy No //nolint:unused

	pool  *Pool
	index uint32
	state workerState
	rng   uint32

	// direct holds the pending LIFO successor while a continuation
	// runs. nil means none.
	direct atomic.Pointer[Task]
	_      [cacheLinePadSize - unsafe.Sizeof(atomic.Pointer[Task]{})]byte //nolint:unused

	// wakeReason distinguishes a work wake-up (wakeRun) from a
	// shutdown wake-up (left at wakeNone) on the event.
	wakeReason atomic.Uint32
	event      event

	runq runQueue
}

// Index reports the worker's slot index.
func (w *Worker) Index() int { return int(w.index) }

// Pool reports the pool this worker belongs to.
func (w *Worker) Pool() *Pool { return w.pool }

// runWorker is the body of a freshly spawned worker: it builds the
// Worker record, publishes it, and enters the loop. The association
// exchange is the publication point; every field is initialized before
// it.
func (p *Pool) runWorker(idx uint32) {
	w := &Worker{pool: p, index: idx, event: newEvent()}
	w.seedRand()
	p.threads[idx] = w
	old := p.slots[idx].Swap(slotEncode(0, slotAssociated))
	if slotTag(old) != slotSpawning {
		panic("BUG: worker association on non-spawning slot")
	}
	w.run()
}

func (w *Worker) run() {
	p := w.pool
	w.state = workerWaking
	for {
		t, polledGlobal := w.poll()
		if t != nil {
			// propagate the wake signal before settling into work
			if polledGlobal || w.state == workerWaking {
				p.resumeThread(resumeOpts{wasWaking: w.state == workerWaking})
			}
			w.state = workerRunning
			w.runChain(t)
			continue
		}

		block, exitNow := p.suspendThread(w)
		if exitNow {
			break
		}
		if block {
			p.counters.parks.Add(1)
			p.trace(TracePark, int(w.index))
			w.event.wait()
			reason := w.wakeReason.Swap(wakeNone)
			if p.isShutdown() {
				if reason == wakeRun {
					// the work wake-up lost its race with shutdown;
					// give back the token the waker granted us
					p.activeThreads.Add(-1)
				}
				break
			}
		}
		w.state = workerWaking
	}
	w.exit()
}

func (w *Worker) exit() {
	old := w.pool.slots[w.index].Swap(slotEncode(0, slotShutdown))
	if slotTag(old) != slotAssociated {
		panic("BUG: worker exit from non-associated slot")
	}
	if l := w.pool.log; l != nil {
		l.Trace("worker %d exited", w.index)
	}
}

// poll finds the next task: local ring, then the global queue (draining
// a burst into the ring), then a randomized steal sweep over sibling
// slots. The second result reports whether the task came off the global
// queue.
func (w *Worker) poll() (*Task, bool) {
	p := w.pool

	if t := w.runq.pop(); t != nil {
		return t, false
	}

	if t, acquired := w.pollGlobal(); acquired && t != nil {
		return t, true
	}

	if n := p.maxThreads; n > 1 {
		offset := w.nextRand() % n
		for i := uint32(0); i < n; i++ {
			idx := (offset + i) % n
			if idx == w.index {
				continue
			}
			switch slotTag(p.slots[idx].Load()) {
			case slotFree, slotSpawning:
				continue
			case slotShutdown:
				if p.isShutdown() {
					// a sibling already exited; the pool is winding
					// down and this sweep is moot
					return nil, false
				}
				panic("BUG: poll observed shutdown slot during steal")
			}
			target := p.threads[idx]
			if t, taken := w.runq.stealFrom(&target.runq); t != nil {
				p.counters.steals.Add(1)
				p.counters.stolenTasks.Add(uint64(taken))
				p.trace(TraceSteal, int(w.index))
				return t, false
			}
		}
	}

	return nil, false
}

// pollGlobal drains the global queue under its consumer lock: one task
// for the caller plus a refill burst into the local ring. The second
// result reports whether the lock was acquired at all. The lock is
// released on every exit path.
func (w *Worker) pollGlobal() (*Task, bool) {
	p := w.pool
	q := &p.queue
	if !q.poll.TryLock() {
		return nil, false
	}

	t := q.pop()
	if t == nil {
		q.poll.Unlock()
		return nil, true
	}

	// Go atomics are sequentially consistent, which covers the
	// tail-store-then-head-reload fence this refill loop depends on.
	head := w.runq.head.Load()
	tail := w.runq.tail.Load()
	for tail-head < runqSize {
		nt := q.pop()
		if nt == nil {
			break
		}
		w.runq.buffer[tail&runqMask].Store(nt)
		tail++
		w.runq.tail.Store(tail)
		head = w.runq.head.Load()
	}

	q.poll.Unlock()
	p.counters.globalPolls.Add(1)
	p.trace(TraceGlobalPoll, int(w.index))
	return t, true
}

// runChain executes t and then any LIFO successors installed via
// ScheduleNext, bounded by directHopBudget; a leftover successor is
// demoted to the local ring.
func (w *Worker) runChain(t *Task) {
	p := w.pool
	for hops := 0; ; hops++ {
		w.direct.Store(nil)
		p.counters.tasksRun.Add(1)
		t.run(w, t)
		next := w.direct.Swap(nil)
		if next == nil {
			return
		}
		if hops >= directHopBudget {
			w.Schedule(BatchFrom(next))
			return
		}
		p.counters.directHops.Add(1)
		t = next
	}
}

// Schedule enqueues the batch on this worker's ring, spilling any
// overflow to the global queue, then propagates a wake.
func (w *Worker) Schedule(b Batch) {
	if b.len == 0 {
		return
	}
	p := w.pool
	ov := w.runq.push(&b)
	if ov.len > 0 {
		p.counters.overflows.Add(1)
		p.trace(TraceOverflow, int(w.index))
		p.queue.push(&ov)
	}
	p.resumeThread(resumeOpts{})
}

// ScheduleNext installs t as the LIFO successor of the running
// continuation. A successor already pending is demoted to the local
// ring.
func (w *Worker) ScheduleNext(t *Task) {
	if prev := w.direct.Swap(t); prev != nil {
		w.Schedule(BatchFrom(prev))
	}
}

// Yield reschedules t to the back of the local ring. The calling
// continuation suspends by returning right after.
func (w *Worker) Yield(t *Task) {
	w.Schedule(BatchFrom(t))
}

func (w *Worker) seedRand() {
	seed := uint32((uintptr(unsafe.Pointer(w.pool)) ^ uintptr(unsafe.Pointer(w))) >> 4)
	w.rng = seed | 1
}

func (w *Worker) nextRand() uint32 {
	x := w.rng
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	w.rng = x
	return x
}
