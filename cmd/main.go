package main

import (
	"sync/atomic"
	"time"

	sched "github.com/GoBlaze/blazesched"
	"github.com/sirupsen/logrus"
)

type childFrame struct {
	task sched.Task
	n    uint64
}

func main() {
	log := sched.NewLog()
	log.SetLevel(logrus.InfoLevel)

	const children = 100_000
	free := sched.NewFreeList(func() *childFrame { return new(childFrame) })

	var pool *sched.Pool
	start := time.Now()

	sum, err := sched.Run(sched.Options{}, func(w *sched.Worker, res *sched.Result[uint64]) {
		pool = w.Pool()

		var acc atomic.Uint64
		var done atomic.Uint64
		var batch sched.Batch
		for i := uint64(1); i <= children; i++ {
			f := free.Get()
			f.n = i
			f.task.Init(func(_ *sched.Worker, _ *sched.Task) {
				acc.Add(f.n)
				free.Put(f)
				if done.Add(1) == children {
					res.Complete(acc.Load())
				}
			})
			batch.PushBack(&f.task)
		}
		batch.Schedule(w)
	})
	if err != nil {
		log.Fatal("run failed: %v", err)
	}

	log.Info("summed %d children to %d in %s on %d slots", children, sum, time.Since(start), pool.MaxThreads())
	log.Info("stats: %s", pool.Stats())
}
