// Package gate decides, once per scheduling cycle, whether a source has a
// sample worth emitting.
//
// ShouldEmit never changes gate state. The caller reports a record that
// was actually encoded and handed to the sinks with exactly one
// MarkEmitted call; a record that was not produced leaves the gate armed
// for the next cycle.
package gate

import "telemetry-logger/models"

// Gate is the per-source emission policy.
type Gate interface {
	ShouldEmit(now uint32, s models.Sample) bool
	MarkEmitted(now uint32, s models.Sample)
}

// Level is time-gated: eligible once MinInterval ticks have elapsed since
// the last emission, measured on the scheduling-cycle clock. A new gate is
// eligible immediately.
type Level struct {
	MinInterval uint32

	last   uint32
	primed bool
}

// NewLevel returns a level-triggered gate.
func NewLevel(minInterval uint32) *Level {
	return &Level{MinInterval: minInterval}
}

func (g *Level) ShouldEmit(now uint32, _ models.Sample) bool {
	if !g.primed {
		return true
	}
	// unsigned subtraction stays correct across counter wrap
	return now-g.last >= g.MinInterval
}

func (g *Level) MarkEmitted(now uint32, _ models.Sample) {
	g.last = now
	g.primed = true
}

// Edge is change-gated: eligible when the sample carries a sensor
// timestamp different from the last one this gate saw emitted. A stalled
// sensor therefore produces no duplicate records.
type Edge struct {
	last   uint32
	primed bool
}

// NewEdge returns an edge-triggered gate.
func NewEdge() *Edge {
	return &Edge{}
}

func (g *Edge) ShouldEmit(_ uint32, s models.Sample) bool {
	if s == nil {
		return false
	}
	return !g.primed || s.SourceTimestamp() != g.last
}

func (g *Edge) MarkEmitted(_ uint32, s models.Sample) {
	if s == nil {
		return
	}
	g.last = s.SourceTimestamp()
	g.primed = true
}
