package blazesched

import (
	"fmt"
	"sync/atomic"
	"unsafe"
)

// poolCounters tracks scheduler events. The hot-path counters sit on
// their own cache lines.
type poolCounters struct {
	tasksRun atomic.Uint64
	_        [cacheLinePadSize - unsafe.Sizeof(atomic.Uint64{})]byte //nolint:unused
	steals   atomic.Uint64
	_        [cacheLinePadSize - unsafe.Sizeof(atomic.Uint64{})]byte //nolint:unused

	spawns      atomic.Uint64
	wakes       atomic.Uint64
	notifies    atomic.Uint64
	parks       atomic.Uint64
	stolenTasks atomic.Uint64
	globalPolls atomic.Uint64
	overflows   atomic.Uint64
	directHops  atomic.Uint64
}

// Stats is a point-in-time snapshot of the pool's counters. Values are
// read individually without a global lock, so a snapshot taken mid-run
// may be internally skewed by in-flight events.
type Stats struct {
	TasksRun    uint64 // tasks whose continuation was invoked
	Spawns      uint64 // workers started on fresh slots
	Wakes       uint64 // parked workers unparked for work
	Notifies    uint64 // wake requests recorded against an empty idle stack
	Parks       uint64 // times a worker blocked on its event
	Steals      uint64 // successful steal operations
	StolenTasks uint64 // tasks transferred between rings by stealing
	GlobalPolls uint64 // batches drained from the global queue
	Overflows   uint64 // local-ring overflows pushed to the global queue
	DirectHops  uint64 // LIFO switch-to handoffs
}

func (s Stats) String() string {
	return fmt.Sprintf(
		"tasks=%d spawns=%d wakes=%d notifies=%d parks=%d steals=%d stolen=%d globalPolls=%d overflows=%d directHops=%d",
		s.TasksRun, s.Spawns, s.Wakes, s.Notifies, s.Parks, s.Steals,
		s.StolenTasks, s.GlobalPolls, s.Overflows, s.DirectHops)
}

// Stats snapshots the pool's counters.
func (p *Pool) Stats() Stats {
	c := &p.counters
	return Stats{
		TasksRun:    c.tasksRun.Load(),
		Spawns:      c.spawns.Load(),
		Wakes:       c.wakes.Load(),
		Notifies:    c.notifies.Load(),
		Parks:       c.parks.Load(),
		Steals:      c.steals.Load(),
		StolenTasks: c.stolenTasks.Load(),
		GlobalPolls: c.globalPolls.Load(),
		Overflows:   c.overflows.Load(),
		DirectHops:  c.directHops.Load(),
	}
}
