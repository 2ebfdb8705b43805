package trace

import "io"

// Fanout tees the relay flow to several sinks best-effort. A failing sink
// never fails or reorders the relay; errors are the sink's problem to report
// through its own snapshot.
type Fanout struct {
	sinks []io.Writer
}

func NewFanout(sinks ...io.Writer) *Fanout {
	out := make([]io.Writer, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return &Fanout{sinks: out}
}

func (f *Fanout) Write(p []byte) (int, error) {
	for _, s := range f.sinks {
		_, _ = s.Write(p)
	}
	return len(p), nil
}
