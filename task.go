package blazesched

import "sync/atomic"

// Task is a suspended computation. The run callback resumes it until its
// next suspension point and returns. A task is owned by at most one queue
// or worker at a time; the intrusive next link belongs to whichever queue
// currently holds it. The scheduler never allocates or frees tasks.
type Task struct {
	next atomic.Pointer[Task]
	run  func(*Worker, *Task)
}

// NewTask wraps run in a heap-allocated Task. Callers that embed Task in
// a larger frame should use Init instead.
func NewTask(run func(*Worker, *Task)) *Task {
	return &Task{run: run}
}

// Init prepares an embedded Task for scheduling.
func (t *Task) Init(run func(*Worker, *Task)) {
	t.next.Store(nil)
	t.run = run
}

// Batch is a caller-owned singly-linked list of tasks moved by value.
// head == nil iff len == 0; tail.next is nil when non-empty.
type Batch struct {
	head *Task
	tail *Task
	len  uint
}

// BatchFrom makes a one-element batch.
func BatchFrom(t *Task) Batch {
	t.next.Store(nil)
	return Batch{head: t, tail: t, len: 1}
}

func (b *Batch) Len() uint { return b.len }

func (b *Batch) Empty() bool { return b.len == 0 }

func (b *Batch) PushFront(t *Task) {
	if b.len == 0 {
		*b = BatchFrom(t)
		return
	}
	t.next.Store(b.head)
	b.head = t
	b.len++
}

func (b *Batch) PushBack(t *Task) {
	if b.len == 0 {
		*b = BatchFrom(t)
		return
	}
	t.next.Store(nil)
	b.tail.next.Store(t)
	b.tail = t
	b.len++
}

// PushFrontBatch splices other before b's head, consuming other.
func (b *Batch) PushFrontBatch(other Batch) {
	if other.len == 0 {
		return
	}
	if b.len == 0 {
		*b = other
		return
	}
	other.tail.next.Store(b.head)
	b.head = other.head
	b.len += other.len
}

// PushBackBatch splices other after b's tail, consuming other.
func (b *Batch) PushBackBatch(other Batch) {
	if other.len == 0 {
		return
	}
	if b.len == 0 {
		*b = other
		return
	}
	b.tail.next.Store(other.head)
	b.tail = other.tail
	b.len += other.len
}

func (b *Batch) PopFront() *Task {
	t := b.head
	if t == nil {
		return nil
	}
	b.head = t.next.Load()
	b.len--
	if b.head == nil {
		b.tail = nil
	}
	t.next.Store(nil)
	return t
}

// Schedule enqueues the batch on w's local ring, consuming it. It must be
// called from code running on w; external producers go through
// Pool.Schedule.
func (b *Batch) Schedule(w *Worker) {
	if w == nil || w.pool == nil {
		panic("BUG: batch scheduled from outside a worker")
	}
	w.Schedule(*b)
	*b = Batch{}
}
