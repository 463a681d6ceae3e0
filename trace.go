package blazesched

import (
	"io"
	"strconv"
	"sync"

	"github.com/valyala/bytebufferpool"
)

// TraceEvent identifies a scheduler event delivered to a Tracer.
type TraceEvent uint8

const (
	TraceSpawn TraceEvent = iota
	TraceWake
	TraceNotify
	TracePark
	TraceSteal
	TraceGlobalPoll
	TraceOverflow
	TraceShutdown
)

var traceEventNames = [...]string{
	TraceSpawn:      "spawn",
	TraceWake:       "wake",
	TraceNotify:     "notify",
	TracePark:       "park",
	TraceSteal:      "steal",
	TraceGlobalPoll: "global-poll",
	TraceOverflow:   "overflow",
	TraceShutdown:   "shutdown",
}

func (e TraceEvent) String() string {
	if int(e) < len(traceEventNames) {
		return traceEventNames[e]
	}
	return "unknown"
}

// Tracer observes scheduler events. Implementations are called from
// worker hot paths and must not block on the pool.
type Tracer interface {
	Trace(ev TraceEvent, slot int)
}

// WriterTracer formats one line per event into a pooled buffer before a
// single Write call, so interleaved workers never tear a record.
type WriterTracer struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterTracer(w io.Writer) *WriterTracer {
	return &WriterTracer{w: w}
}

func (t *WriterTracer) Trace(ev TraceEvent, slot int) {
	b := bytebufferpool.Get()
	b.B = append(b.B, ev.String()...)
	b.B = append(b.B, ' ')
	b.B = strconv.AppendInt(b.B, int64(slot), 10)
	b.B = append(b.B, '\n')

	t.mu.Lock()
	_, _ = t.w.Write(b.B)
	t.mu.Unlock()

	bytebufferpool.Put(b)
}

func (p *Pool) trace(ev TraceEvent, slot int) {
	if p.tracer != nil {
		p.tracer.Trace(ev, slot)
	}
}
