// Package clock provides the scheduler tick counter the logger stamps
// records with. Production code uses Real; tests inject a Fake and move it
// explicitly.
package clock

import (
	"sync/atomic"
	"time"
)

// Clock is a monotonically non-decreasing tick counter running at a known
// rate. The counter is 32 bits wide and wraps; consumers compare ticks
// with unsigned subtraction.
type Clock interface {
	Now() uint32
	TicksPerSecond() uint32
}

// Real derives ticks from the monotonic wall clock since construction.
type Real struct {
	start time.Time
	tps   uint32
}

// NewReal returns a clock ticking tps times per second, starting at zero.
func NewReal(tps uint32) *Real {
	if tps == 0 {
		tps = 1000
	}
	return &Real{start: time.Now(), tps: tps}
}

func (r *Real) Now() uint32 {
	d := time.Since(r.start)
	secs := uint64(d / time.Second)
	rem := uint64(d % time.Second)
	return uint32(secs*uint64(r.tps) + rem*uint64(r.tps)/uint64(time.Second))
}

func (r *Real) TicksPerSecond() uint32 { return r.tps }

// Fake is a deterministic Clock. Time stands still until Advance or Set
// is called. Safe for concurrent use.
type Fake struct {
	now atomic.Uint32
	tps uint32
}

// NewFake returns a fake clock at tick start.
func NewFake(start uint32, tps uint32) *Fake {
	f := &Fake{tps: tps}
	f.now.Store(start)
	return f
}

func (f *Fake) Now() uint32            { return f.now.Load() }
func (f *Fake) TicksPerSecond() uint32 { return f.tps }

// Advance moves the clock forward by n ticks and returns the new value.
func (f *Fake) Advance(n uint32) uint32 { return f.now.Add(n) }

// Set jumps the clock to tick t.
func (f *Fake) Set(t uint32) { f.now.Store(t) }

// Stepping wraps a Fake so that every Now call advances it by step ticks
// first. It models a free-running loop against a scheduler tick.
type Stepping struct {
	*Fake
	step uint32
}

// NewStepping returns a clock that reads start+step on the first call.
func NewStepping(start, step, tps uint32) *Stepping {
	return &Stepping{Fake: NewFake(start, tps), step: step}
}

func (s *Stepping) Now() uint32 { return s.Advance(s.step) }
