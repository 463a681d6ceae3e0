package blazesched

import "testing"

func mkTasks(n int) []*Task {
	tasks := make([]*Task, n)
	for i := range tasks {
		tasks[i] = NewTask(func(*Worker, *Task) {})
	}
	return tasks
}

func mkBatch(tasks []*Task) Batch {
	var b Batch
	for _, t := range tasks {
		b.PushBack(t)
	}
	return b
}

func TestBatchFromPopFront(t *testing.T) {
	task := NewTask(func(*Worker, *Task) {})
	b := BatchFrom(task)

	if got := b.Len(); got != 1 {
		t.Fatalf("Len() = %d, want 1", got)
	}
	if got := b.PopFront(); got != task {
		t.Errorf("PopFront() = %p, want %p", got, task)
	}
	if !b.Empty() {
		t.Errorf("batch not empty after popping its only task")
	}
	if got := b.PopFront(); got != nil {
		t.Errorf("PopFront() on empty batch = %p, want nil", got)
	}
}

func TestBatchPushBackOrder(t *testing.T) {
	tasks := mkTasks(5)
	b := mkBatch(tasks)

	for i, want := range tasks {
		if got := b.PopFront(); got != want {
			t.Errorf("PopFront() #%d = %p, want %p", i, got, want)
		}
	}
}

func TestBatchPushFront(t *testing.T) {
	tasks := mkTasks(3)
	var b Batch
	for _, task := range tasks {
		b.PushFront(task)
	}

	for i := len(tasks) - 1; i >= 0; i-- {
		if got := b.PopFront(); got != tasks[i] {
			t.Errorf("PopFront() = %p, want %p", got, tasks[i])
		}
	}
}

func TestBatchPushBackBatchOrder(t *testing.T) {
	t1 := mkTasks(3)
	t2 := mkTasks(4)
	b1 := mkBatch(t1)
	b2 := mkBatch(t2)

	b1.PushBackBatch(b2)
	if got := b1.Len(); got != 7 {
		t.Fatalf("Len() = %d, want 7", got)
	}

	want := append(append([]*Task{}, t1...), t2...)
	for i, w := range want {
		if got := b1.PopFront(); got != w {
			t.Errorf("PopFront() #%d = %p, want %p", i, got, w)
		}
	}
}

func TestBatchPushFrontBatch(t *testing.T) {
	t1 := mkTasks(2)
	t2 := mkTasks(2)
	b1 := mkBatch(t1)
	b2 := mkBatch(t2)

	b1.PushFrontBatch(b2)

	want := append(append([]*Task{}, t2...), t1...)
	for i, w := range want {
		if got := b1.PopFront(); got != w {
			t.Errorf("PopFront() #%d = %p, want %p", i, got, w)
		}
	}
}

func TestBatchScheduleOutsideWorkerPanics(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("Schedule outside a worker did not panic")
		}
		if got, ok := r.(string); !ok || got != "BUG: batch scheduled from outside a worker" {
			t.Errorf("panic = %v, want schedule-outside-worker diagnostic", r)
		}
	}()
	b := BatchFrom(NewTask(func(*Worker, *Task) {}))
	b.Schedule(nil)
}
