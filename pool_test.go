package blazesched

import (
	"bytes"
	"errors"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"
)

func TestRunHelloTask(t *testing.T) {
	got, err := RunFunc(Options{MaxThreads: 1}, func(*Worker) int {
		return 42
	})
	if err != nil {
		t.Fatalf("RunFunc() error = %v", err)
	}
	if got != 42 {
		t.Errorf("RunFunc() = %d, want 42", got)
	}
}

func TestRunSingleSlotNeverWakes(t *testing.T) {
	var pool *Pool
	_, err := RunFunc(Options{MaxThreads: 1}, func(w *Worker) int {
		pool = w.Pool()
		return 0
	})
	if err != nil {
		t.Fatalf("RunFunc() error = %v", err)
	}

	s := pool.Stats()
	if s.Spawns != 1 {
		// the one spawn is worker 0 running inline on the caller
		t.Errorf("Spawns = %d, want 1", s.Spawns)
	}
	if s.Wakes != 0 {
		t.Errorf("Wakes = %d, want 0 for a single-slot pool", s.Wakes)
	}
}

func TestRunFanOut(t *testing.T) {
	const children = 10000

	var pool *Pool
	var total, done atomic.Uint64
	var agg Task

	got, err := Run(Options{MaxThreads: 4}, func(w *Worker, res *Result[uint64]) {
		pool = w.Pool()
		agg.Init(func(*Worker, *Task) {
			res.Complete(total.Load())
		})

		var b Batch
		for i := 0; i < children; i++ {
			b.PushBack(NewTask(func(w *Worker, _ *Task) {
				total.Add(1)
				if done.Add(1) == children {
					w.Schedule(BatchFrom(&agg))
				}
			}))
		}
		w.Schedule(b)
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got != children {
		t.Errorf("Run() = %d, want %d", got, children)
	}

	// entry + children + aggregator, each exactly once
	if s := pool.Stats(); s.TasksRun != children+2 {
		t.Errorf("TasksRun = %d, want %d", s.TasksRun, children+2)
	}
}

func TestRunYieldFairness(t *testing.T) {
	var order []byte
	var counters [2]int
	var finished int
	var tasks [2]Task

	_, err := Run(Options{MaxThreads: 1}, func(w *Worker, res *Result[int]) {
		for i := range tasks {
			i := i
			id := byte('A' + i)
			tasks[i].Init(func(w *Worker, t *Task) {
				counters[i]++
				order = append(order, id)
				if counters[i] < 100 {
					w.Yield(t)
					return
				}
				finished++
				if finished == 2 {
					res.Complete(1)
				}
			})
		}
		var b Batch
		b.PushBack(&tasks[0])
		b.PushBack(&tasks[1])
		w.Schedule(b)
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if counters[0] != 100 || counters[1] != 100 {
		t.Fatalf("counters = %v, want both 100", counters)
	}
	interleaved := false
	for i := 1; i < len(order); i++ {
		if order[i] != order[i-1] {
			interleaved = true
			break
		}
	}
	if !interleaved {
		t.Errorf("no interleaving observed in %q", order)
	}
}

func TestRunScheduleNextLIFO(t *testing.T) {
	var order []string
	var a, b, c Task

	_, err := Run(Options{MaxThreads: 1}, func(w *Worker, res *Result[int]) {
		b.Init(func(*Worker, *Task) { order = append(order, "B") })
		c.Init(func(*Worker, *Task) {
			order = append(order, "C")
			res.Complete(1)
		})
		a.Init(func(w *Worker, _ *Task) {
			order = append(order, "A")
			w.ScheduleNext(&b)
			w.Schedule(BatchFrom(&c))
		})
		w.Schedule(BatchFrom(&a))
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := strings.Join(order, ""); got != "ABC" {
		t.Errorf("execution order = %q, want \"ABC\"", got)
	}
}

func TestScheduleNextTwiceDemotesFirst(t *testing.T) {
	var order []string
	var a, b, c Task

	_, err := Run(Options{MaxThreads: 1}, func(w *Worker, res *Result[int]) {
		b.Init(func(*Worker, *Task) {
			order = append(order, "B")
			res.Complete(1)
		})
		c.Init(func(*Worker, *Task) { order = append(order, "C") })
		a.Init(func(w *Worker, _ *Task) {
			order = append(order, "A")
			w.ScheduleNext(&b)
			// the second hint demotes B to the local ring
			w.ScheduleNext(&c)
		})
		w.Schedule(BatchFrom(&a))
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := strings.Join(order, ""); got != "ACB" {
		t.Errorf("execution order = %q, want \"ACB\"", got)
	}
}

func TestDirectHopBudget(t *testing.T) {
	const chain = 20

	var pool *Pool
	var order []int
	tasks := make([]Task, chain)

	_, err := Run(Options{MaxThreads: 1}, func(w *Worker, res *Result[int]) {
		pool = w.Pool()
		for i := range tasks {
			i := i
			tasks[i].Init(func(w *Worker, _ *Task) {
				order = append(order, i)
				if i+1 < chain {
					w.ScheduleNext(&tasks[i+1])
					return
				}
				res.Complete(1)
			})
		}
		w.Schedule(BatchFrom(&tasks[0]))
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for i, got := range order {
		if got != i {
			t.Fatalf("order[%d] = %d, want %d", i, got, i)
		}
	}
	// three chains: 7 hops, 7 hops, 3 hops; the budget demotes the rest
	if s := pool.Stats(); s.DirectHops != 17 {
		t.Errorf("DirectHops = %d, want 17", s.DirectHops)
	}
}

func TestRunOverflowBurst(t *testing.T) {
	const children = 1024

	var pool *Pool
	var total, done atomic.Uint64
	var agg Task
	var traceBuf bytes.Buffer

	got, err := Run(Options{MaxThreads: 4, Tracer: NewWriterTracer(&traceBuf)},
		func(w *Worker, res *Result[uint64]) {
			pool = w.Pool()
			agg.Init(func(*Worker, *Task) {
				res.Complete(total.Load())
			})

			var b Batch
			for i := 0; i < children; i++ {
				b.PushBack(NewTask(func(w *Worker, _ *Task) {
					total.Add(1)
					if done.Add(1) == children {
						w.Schedule(BatchFrom(&agg))
					}
				}))
			}
			// one burst far beyond the local ring's capacity
			w.Schedule(b)
		})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got != children {
		t.Errorf("Run() = %d, want %d", got, children)
	}

	s := pool.Stats()
	if s.Overflows == 0 {
		t.Error("Overflows = 0, want at least one ring overflow")
	}
	if s.GlobalPolls == 0 {
		t.Error("GlobalPolls = 0, want at least one batch from the global queue")
	}
	if !strings.Contains(traceBuf.String(), "overflow") {
		t.Error("trace output missing overflow record")
	}
}

func TestRunDeadlock(t *testing.T) {
	got, err := Run(Options{MaxThreads: 4}, func(*Worker, *Result[int]) {
		// suspend forever: no work scheduled, result never completed
	})
	if !errors.Is(err, ErrAsyncFnDeadlocked) {
		t.Fatalf("Run() error = %v, want ErrAsyncFnDeadlocked", err)
	}
	if got != 0 {
		t.Errorf("Run() = %d, want zero value", got)
	}
}

func TestPoolExternalSchedule(t *testing.T) {
	if runtime.NumCPU() < 2 {
		t.Skip("needs a second worker to drain the global queue")
	}

	var flag atomic.Bool
	poolCh := make(chan *Pool, 1)

	go func() {
		p := <-poolCh
		p.Schedule(BatchFrom(NewTask(func(*Worker, *Task) {
			flag.Store(true)
		})))
	}()

	got, err := Run(Options{MaxThreads: 2}, func(w *Worker, res *Result[int]) {
		poolCh <- w.Pool()
		// keep the pool busy until the external task lands
		keeper := NewTask(func(w *Worker, t *Task) {
			if !flag.Load() {
				w.Yield(t)
				return
			}
			res.Complete(7)
		})
		w.Schedule(BatchFrom(keeper))
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got != 7 {
		t.Errorf("Run() = %d, want 7", got)
	}
	if !flag.Load() {
		t.Error("external task never ran")
	}
}

func TestScheduleAfterShutdownPanics(t *testing.T) {
	var pool *Pool
	if _, err := RunFunc(Options{MaxThreads: 1}, func(w *Worker) int {
		pool = w.Pool()
		return 0
	}); err != nil {
		t.Fatalf("RunFunc() error = %v", err)
	}

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("Schedule after shutdown did not panic")
		}
		if got, ok := r.(string); !ok || got != "BUG: resume_thread observed pool shutdown" {
			t.Errorf("panic = %v, want resume-after-shutdown diagnostic", r)
		}
	}()
	pool.Schedule(BatchFrom(NewTask(func(*Worker, *Task) {})))
}

func TestRunFuncMultiThread(t *testing.T) {
	got, err := RunFunc(Options{MaxThreads: 8}, func(*Worker) string {
		return "done"
	})
	if err != nil {
		t.Fatalf("RunFunc() error = %v", err)
	}
	if got != "done" {
		t.Errorf("RunFunc() = %q, want %q", got, "done")
	}
}
