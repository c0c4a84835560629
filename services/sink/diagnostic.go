package sink

import (
	"golang.org/x/time/rate"

	"telemetry-logger/views"
)

// Tracer is the operator-facing diagnostic channel. Trace output is not
// subject to the log level: enabling the sink is the switch.
type Tracer interface {
	Trace(format string, args ...any)
}

// DiagnosticSink echoes a short trace of each record, e.g. its source id,
// within a per-second budget so the channel cannot be flooded.
type DiagnosticSink struct {
	out        Tracer
	lim        *rate.Limiter
	verbose    bool
	suppressed uint64
}

// NewDiagnosticSink traces at most maxPerSecond records per second; zero
// or less means unlimited.
func NewDiagnosticSink(out Tracer, maxPerSecond int, verbose bool) *DiagnosticSink {
	lim := rate.NewLimiter(rate.Inf, 0)
	if maxPerSecond > 0 {
		lim = rate.NewLimiter(rate.Limit(maxPerSecond), maxPerSecond)
	}
	return &DiagnosticSink{out: out, lim: lim, verbose: verbose}
}

func (s *DiagnosticSink) Name() string { return "diagnostic" }

// Write never fails; records over budget are counted and summarised with
// the next trace that gets through.
func (s *DiagnosticSink) Write(record []byte) error {
	if !s.lim.Allow() {
		s.suppressed++
		return nil
	}
	line := views.Trace(record, s.verbose)
	if s.suppressed > 0 {
		line = views.WithSuppressed(line, s.suppressed)
		s.suppressed = 0
	}
	s.out.Trace("%s", line)
	return nil
}
