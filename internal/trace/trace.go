// Package trace provides an LTSV tracing sink for the multiplication kernel
// and for coordinator session transitions.
//
// Each scalar product and each finished cell becomes one LTSV debug record:
//
//	time:...	level:Debug	task:127.0.0.1:8080	event:product	i:0	k:1	j:0	a:2	b:3	p:6
//	time:...	level:Debug	task:127.0.0.1:8080	event:cell	i:0	j:0	sum:19
//
// On the coordinator each session state change is one record:
//
//	time:...	level:Debug	task:job-1	event:transition	partition:0	start:0	end:2	from:pending	to:sent
//
// The tracer only observes; it never changes a result.
package trace

import (
	"io"

	"github.com/hnakamur/ltsvlog"

	"github.com/dreamware/rowsplit/internal/partition"
	"github.com/dreamware/rowsplit/internal/session"
)

// LTSVTracer implements matrix.Tracer on top of an ltsvlog logger.
type LTSVTracer struct {
	logger *ltsvlog.LTSVLogger
	label  string
}

// NewLTSVTracer writes records to w. The label is attached to every record
// so traces from several tasks can be told apart.
func NewLTSVTracer(w io.Writer, label string) *LTSVTracer {
	return &LTSVTracer{
		logger: ltsvlog.NewLTSVLogger(w, true),
		label:  label,
	}
}

func (t *LTSVTracer) Product(i, k, j int, a, b, p int64) {
	t.logger.Debug().String("task", t.label).String("event", "product").
		Int("i", i).Int("k", k).Int("j", j).
		Int64("a", a).Int64("b", b).Int64("p", p).Log()
}

func (t *LTSVTracer) Cell(i, j int, sum int64) {
	t.logger.Debug().String("task", t.label).String("event", "cell").
		Int("i", i).Int("j", j).Int64("sum", sum).Log()
}

// Transition has the shape of session.TransitionFunc.
func (t *LTSVTracer) Transition(p partition.Partition, from, to session.State) {
	t.logger.Debug().String("task", t.label).String("event", "transition").
		Int("partition", p.Index).Int("start", p.Start).Int("end", p.End).
		String("from", from.String()).String("to", to.String()).Log()
}
