package blazesched

import (
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"
)

// Pool multiplexes tasks across a fixed set of worker slots. It owns the
// slot array, the idle stack packed into idleQueue, the global run queue
// and the active-thread count. A Pool lives for exactly one Run call.
type Pool struct {
	noCopy No //nolint:unused

	idleQueue atomic.Uint64
	_         [cacheLinePadSize - unsafe.Sizeof(atomic.Uint64{})]byte //nolint:unused

	activeThreads atomic.Int32
	_             [cacheLinePadSize - unsafe.Sizeof(atomic.Int32{})]byte //nolint:unused

	queue globalQueue

	slots   []atomic.Uint64
	threads []*Worker

	maxThreads uint32
	wg         sync.WaitGroup
	log        *Logger
	tracer     Tracer
	counters   poolCounters
}

func newPool(opts Options) *Pool {
	n := opts.MaxThreads
	if n < 0 {
		panic("BUG: negative MaxThreads")
	}
	if n == 0 {
		n = runtime.NumCPU()
	}
	// explicit requests are capped by the host CPU count too
	if cpus := runtime.NumCPU(); n > cpus {
		n = cpus
	}
	if n > maxSlots {
		n = maxSlots
	}
	if n < 1 {
		n = 1
	}

	p := &Pool{
		maxThreads: uint32(n),
		log:        opts.Logger,
		tracer:     opts.Tracer,
	}
	p.queue.init()
	p.slots = make([]atomic.Uint64, n)
	p.threads = make([]*Worker, n)

	// link the slots into the idle stack in ascending order; the top is
	// the highest index
	for i := 0; i < n; i++ {
		p.slots[i].Store(slotEncode(uint64(i), slotFree))
	}
	p.idleQueue.Store(idleEncode(uint32(n), 0, 0))

	if p.log != nil {
		p.log.Debug("pool initialized with %d slots", n)
	}
	return p
}

// MaxThreads reports the pool's slot count after clamping.
func (p *Pool) MaxThreads() int { return int(p.maxThreads) }

func (p *Pool) isShutdown() bool {
	return p.idleQueue.Load()&idleShutdown != 0
}

// Schedule enqueues a batch from outside any worker: the batch goes to
// the global queue and a wake is propagated. Scheduling after shutdown
// is a contract violation.
func (p *Pool) Schedule(b Batch) {
	if b.len == 0 {
		return
	}
	p.queue.push(&b)
	p.resumeThread(resumeOpts{})
}

// resumeThread is the single-waker coordination point: it either spawns
// a worker onto a free slot, wakes a parked one, or records a
// notification against an empty idle stack. Only one wake is in flight
// at a time; redundant callers return immediately.
func (p *Pool) resumeThread(opts resumeOpts) {
	for {
		cur := p.idleQueue.Load()
		if cur&idleShutdown != 0 {
			panic("BUG: resume_thread observed pool shutdown")
		}
		if !opts.wasWaking && cur&(idleNotified|idleWaking) != 0 {
			// another waker is in flight
			return
		}

		top := idleIndex(cur)
		if top == 0 {
			// nobody to wake; record that a wake was requested
			newWord := idleEncode(0, idleTag(cur), (idleFlags(cur)&^idleWaking)|idleNotified)
			if p.idleQueue.CompareAndSwap(cur, newWord) {
				p.counters.notifies.Add(1)
				p.trace(TraceNotify, -1)
				return
			}
			continue
		}
		if top > p.maxThreads {
			panic("BUG: invalid slot index in idle queue")
		}

		sw := p.slots[top-1].Load()
		tag := slotTag(sw)
		if tag == slotSpawning {
			// another waker is mid-publish on this slot
			continue
		}
		if tag == slotShutdown {
			panic("BUG: idle stack holds shutdown slot")
		}

		newWord := idleEncode(uint32(slotLink(sw)), idleTag(cur), (idleFlags(cur)|idleWaking)&^idleNotified)
		if !p.idleQueue.CompareAndSwap(cur, newWord) {
			continue
		}

		p.activeThreads.Add(1)
		if tag == slotAssociated {
			w := p.threads[top-1]
			w.wakeReason.Store(wakeRun)
			p.counters.wakes.Add(1)
			p.trace(TraceWake, int(top-1))
			w.event.set()
		} else {
			p.spawnWorker(top-1, opts.noSpawn)
		}
		return
	}
}

func (p *Pool) spawnWorker(idx uint32, inline bool) {
	old := p.slots[idx].Swap(slotEncode(0, slotSpawning))
	if slotTag(old) != slotFree {
		panic("BUG: spawn targets a non-free slot")
	}
	p.counters.spawns.Add(1)
	p.trace(TraceSpawn, int(idx))
	if p.log != nil {
		p.log.Debug("spawning worker on slot %d", idx)
	}
	if inline {
		p.runWorker(idx)
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runWorker(idx)
	}()
}

// suspendThread re-links w's slot onto the idle stack and decides
// whether the worker should block. A pending notification is consumed
// instead of parking. The last worker to park against empty queues
// initiates shutdown.
func (p *Pool) suspendThread(w *Worker) (block, exitNow bool) {
	for {
		cur := p.idleQueue.Load()
		if cur&idleShutdown != 0 {
			p.activeThreads.Add(-1)
			return false, true
		}

		flags := idleFlags(cur)
		top := idleIndex(cur)
		p.slots[w.index].Store(slotEncode(uint64(top), slotAssociated))

		notified := flags&idleNotified != 0
		newFlags := flags &^ idleNotified
		if w.state == workerWaking {
			newFlags &^= idleWaking
		}
		newWord := idleEncode(w.index+1, idleTag(cur)+1, newFlags)
		if !p.idleQueue.CompareAndSwap(cur, newWord) {
			continue
		}

		if notified {
			// a wake was requested while the stack was empty; take it
			return false, false
		}
		if p.activeThreads.Add(-1) == 0 && p.queue.appearsEmpty() {
			p.shutdown()
			return false, true
		}
		return true, false
	}
}

// shutdown marks the pool terminal and wakes every associated worker.
// Idempotent.
func (p *Pool) shutdown() {
	for {
		cur := p.idleQueue.Load()
		if cur&idleShutdown != 0 {
			return
		}
		if p.idleQueue.CompareAndSwap(cur, cur|idleShutdown) {
			break
		}
	}
	p.trace(TraceShutdown, -1)
	if p.log != nil {
		p.log.Debug("pool shutting down")
	}
	for i := uint32(0); i < p.maxThreads; i++ {
		if slotTag(p.slots[i].Load()) == slotAssociated {
			if w := p.threads[i]; w != nil {
				w.event.set()
			}
		}
	}
}

func (p *Pool) deinit() {
	if n := p.activeThreads.Load(); n != 0 {
		panic("BUG: pool deinit with active threads")
	}
	if !p.queue.appearsEmpty() {
		panic("BUG: pool deinit with non-empty global queue")
	}
	for i := uint32(0); i < p.maxThreads; i++ {
		tag := slotTag(p.slots[i].Load())
		if tag == slotAssociated || tag == slotSpawning {
			panic("BUG: pool deinit with live slot")
		}
		if w := p.threads[i]; w != nil && w.runq.size() != 0 {
			panic("BUG: pool deinit with non-empty local ring")
		}
	}
}

// Result is the caller-owned cell the entry computation completes into.
// The first Complete wins and triggers pool shutdown.
type Result[T any] struct {
	pool  *Pool
	won   atomic.Bool
	done  atomic.Bool
	value T
}

func (r *Result[T]) Complete(v T) {
	if !r.won.CompareAndSwap(false, true) {
		return
	}
	r.value = v
	r.done.Store(true)
	r.pool.shutdown()
}

// Run builds a pool, schedules entry as the root continuation and turns
// the calling goroutine into worker 0. It returns once every worker has
// exited. If the pool wound down without entry completing its Result,
// the computation deadlocked.
func Run[T any](opts Options, entry func(*Worker, *Result[T])) (T, error) {
	p := newPool(opts)
	res := &Result[T]{pool: p}

	var root Task
	root.Init(func(w *Worker, _ *Task) {
		entry(w, res)
	})
	b := BatchFrom(&root)
	p.queue.push(&b)

	// the calling goroutine becomes worker 0 and returns at shutdown
	p.resumeThread(resumeOpts{noSpawn: true})

	p.wg.Wait()
	p.deinit()

	if !res.done.Load() {
		if p.log != nil {
			p.log.Warn("entry function deadlocked; %d tasks ran", p.counters.tasksRun.Load())
		}
		var zero T
		return zero, ErrAsyncFnDeadlocked
	}
	return res.value, nil
}

// RunFunc runs fn to completion on worker 0 and returns its result. It
// is the synchronous convenience form of Run.
func RunFunc[T any](opts Options, fn func(*Worker) T) (T, error) {
	return Run(opts, func(w *Worker, res *Result[T]) {
		res.Complete(fn(w))
	})
}
