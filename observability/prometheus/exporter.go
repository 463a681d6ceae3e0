// Package prometheus exposes blazesched pool counters as Prometheus
// collectors.
package prometheus

import (
	sched "github.com/GoBlaze/blazesched"
	prom "github.com/prometheus/client_golang/prometheus"
)

// PoolCollector adapts a pool's Stats snapshot to Prometheus metrics.
// Collect reads the counters at scrape time; the pool must outlive the
// collector's registration.
type PoolCollector struct {
	pool *sched.Pool

	tasksRun    *prom.Desc
	spawns      *prom.Desc
	wakes       *prom.Desc
	notifies    *prom.Desc
	parks       *prom.Desc
	steals      *prom.Desc
	stolenTasks *prom.Desc
	globalPolls *prom.Desc
	overflows   *prom.Desc
	directHops  *prom.Desc
}

var _ prom.Collector = (*PoolCollector)(nil)

// NewPoolCollector creates collectors for every pool counter under the
// given namespace. An empty namespace defaults to "blazesched".
func NewPoolCollector(namespace string, pool *sched.Pool) *PoolCollector {
	if namespace == "" {
		namespace = "blazesched"
	}
	desc := func(name, help string) *prom.Desc {
		return prom.NewDesc(prom.BuildFQName(namespace, "pool", name), help, nil, nil)
	}
	return &PoolCollector{
		pool:        pool,
		tasksRun:    desc("tasks_run_total", "Tasks whose continuation was invoked."),
		spawns:      desc("spawns_total", "Workers started on fresh slots."),
		wakes:       desc("wakes_total", "Parked workers unparked for work."),
		notifies:    desc("notifies_total", "Wake requests recorded against an empty idle stack."),
		parks:       desc("parks_total", "Times a worker blocked on its event."),
		steals:      desc("steals_total", "Successful steal operations."),
		stolenTasks: desc("stolen_tasks_total", "Tasks transferred between rings by stealing."),
		globalPolls: desc("global_polls_total", "Batches drained from the global queue."),
		overflows:   desc("overflows_total", "Local-ring overflows pushed to the global queue."),
		directHops:  desc("direct_hops_total", "LIFO switch-to handoffs."),
	}
}

// Register registers the collector with reg.
func Register(reg prom.Registerer, c *PoolCollector) error {
	return reg.Register(c)
}

func (c *PoolCollector) Describe(ch chan<- *prom.Desc) {
	ch <- c.tasksRun
	ch <- c.spawns
	ch <- c.wakes
	ch <- c.notifies
	ch <- c.parks
	ch <- c.steals
	ch <- c.stolenTasks
	ch <- c.globalPolls
	ch <- c.overflows
	ch <- c.directHops
}

func (c *PoolCollector) Collect(ch chan<- prom.Metric) {
	s := c.pool.Stats()
	counter := func(d *prom.Desc, v uint64) {
		ch <- prom.MustNewConstMetric(d, prom.CounterValue, float64(v))
	}
	counter(c.tasksRun, s.TasksRun)
	counter(c.spawns, s.Spawns)
	counter(c.wakes, s.Wakes)
	counter(c.notifies, s.Notifies)
	counter(c.parks, s.Parks)
	counter(c.steals, s.Steals)
	counter(c.stolenTasks, s.StolenTasks)
	counter(c.globalPolls, s.GlobalPolls)
	counter(c.overflows, s.Overflows)
	counter(c.directHops, s.DirectHops)
}
