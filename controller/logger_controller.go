package controller

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"telemetry-logger/models"
	"telemetry-logger/services/clock"
	"telemetry-logger/services/codec"
	"telemetry-logger/services/logfile"
	"telemetry-logger/services/sink"
	"telemetry-logger/utils"
)

// State is the scheduling loop's lifecycle phase.
type State int32

const (
	Bootstrapping State = iota
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Bootstrapping:
		return "bootstrapping"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Recorder receives the loop's counters. *metrics.Collector implements it.
type Recorder interface {
	RecordCycle()
	RecordEmitted(id models.SourceID, n int)
	RecordEncodeError(id models.SourceID)
	RecordFlush(err error)
	UpdateLogStats(index, pending int, dropped uint64)
}

type nopRecorder struct{}

func (nopRecorder) RecordCycle()                       {}
func (nopRecorder) RecordEmitted(models.SourceID, int) {}
func (nopRecorder) RecordEncodeError(models.SourceID)  {}
func (nopRecorder) RecordFlush(error)                  {}
func (nopRecorder) UpdateLogStats(int, int, uint64)    {}

// LoggerDeps are the collaborators of the scheduling loop. Log may be nil
// when the file sink is disabled; Metrics may be nil.
type LoggerDeps struct {
	Clock     clock.Clock
	Readiness *Readiness
	Bindings  []Binding
	FanOut    *sink.FanOut
	Log       *logfile.Manager
	Metrics   Recorder
}

// LoggerController runs the single cooperative scheduling loop: every
// cycle it samples the clock once, asks each gate whether its source is
// due, encodes due samples into one working buffer, hands each record to
// the fan-out and finally checks the flush timer.
type LoggerController struct {
	cardinality   map[models.SourceID]int
	capacity      int
	cycleInterval time.Duration
	tps           uint32

	clk      clock.Clock
	ready    *Readiness
	bindings []Binding
	fan      *sink.FanOut
	log      *logfile.Manager
	metrics  Recorder

	state   atomic.Int32
	cycles  atomic.Uint64
	emitted [256]atomic.Uint64 // by source id

	sinkErrLog   rate.Sometimes
	encodeErrLog rate.Sometimes
	flushErrLog  rate.Sometimes
}

// NewLoggerController wires the loop. Nothing is validated until Run.
func NewLoggerController(cfg *utils.Config, deps LoggerDeps) *LoggerController {
	rec := deps.Metrics
	if rec == nil {
		rec = nopRecorder{}
	}
	fan := deps.FanOut
	if fan == nil {
		fan = sink.NewFanOut(nil)
	}
	return &LoggerController{
		cardinality:   cfg.Cardinality(),
		capacity:      cfg.BufferCapacity,
		cycleInterval: time.Duration(cfg.Clock.CycleIntervalUs) * time.Microsecond,
		tps:           cfg.Clock.TicksPerSecond,
		clk:           deps.Clock,
		ready:         deps.Readiness,
		bindings:      deps.Bindings,
		fan:           fan,
		log:           deps.Log,
		metrics:       rec,
		sinkErrLog:    rate.Sometimes{Interval: time.Second},
		encodeErrLog:  rate.Sometimes{Interval: time.Second},
		flushErrLog:   rate.Sometimes{Interval: time.Second},
	}
}

func (lc *LoggerController) State() State { return State(lc.state.Load()) }

// Run waits for readiness, validates the record layouts against the
// working buffer and then loops until ctx is cancelled. On cancellation it
// flushes, closes every sink and closes the session file. A configuration
// error returns before the loop is entered; a fatal storage error ends the
// loop and is returned.
func (lc *LoggerController) Run(ctx context.Context) error {
	if lc.ready != nil {
		utils.L().Info("logger controller: waiting for filesystem and configuration")
		if err := lc.ready.Wait(ctx); err != nil {
			return lc.shutdown()
		}
	}

	enc, err := codec.NewEncoder(codec.LayoutsFor(lc.cardinality), lc.capacity)
	if err != nil {
		return errors.Join(err, lc.shutdown())
	}
	// the single working buffer; no other goroutine touches it
	buf := make([]byte, 0, enc.Capacity())

	lc.state.Store(int32(Running))
	utils.L().Info("logger controller running  sources=%d  sinks=%v  max_record=%dB  cycle=%s",
		len(lc.bindings), lc.fan.Names(), enc.MaxRecordLen(), lc.cycleInterval)
	for _, b := range lc.bindings {
		utils.L().Info("  %-8s %s", b.Source.ID(), b.Describe(lc.tps))
	}

	var pace <-chan time.Time
	if lc.cycleInterval > 0 {
		t := time.NewTicker(lc.cycleInterval)
		defer t.Stop()
		pace = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return lc.shutdown()
		default:
		}

		if err := lc.cycle(enc, buf); err != nil {
			utils.L().Error("logger controller: %v", err)
			return errors.Join(err, lc.shutdown())
		}

		if pace != nil {
			select {
			case <-ctx.Done():
				return lc.shutdown()
			case <-pace:
			}
		}
	}
}

// cycle runs one scheduling iteration. Only fatal storage errors are
// returned; everything else is counted, logged and retried next time.
func (lc *LoggerController) cycle(enc *codec.Encoder, buf []byte) error {
	now := lc.clk.Now()

	for _, b := range lc.bindings {
		s, ok := b.Source.Latest()
		if !ok || !b.Gate.ShouldEmit(now, s) {
			continue
		}
		id := b.Source.ID()
		rec, err := enc.Encode(buf, now, s)
		if err != nil {
			lc.metrics.RecordEncodeError(id)
			lc.encodeErrLog.Do(func() { utils.L().Warn("encode %s: %v", id, err) })
			continue
		}
		if err := lc.fan.Emit(rec); err != nil {
			lc.sinkErrLog.Do(func() { utils.L().Warn("emit %s: %v", id, err) })
		}
		// the record was handed to the fan-out even if some sinks refused it
		b.Gate.MarkEmitted(now, s)
		lc.emitted[id].Add(1)
		lc.metrics.RecordEmitted(id, len(rec))
	}

	if lc.log != nil {
		flushed, err := lc.log.FlushIfDue(now)
		if flushed {
			lc.metrics.RecordFlush(err)
			st := lc.log.Stats()
			lc.metrics.UpdateLogStats(lc.log.Index(), st.PendingBytes, st.DroppedBytes)
		}
		if err != nil {
			if utils.IsFatal(err) {
				return err
			}
			lc.flushErrLog.Do(func() { utils.L().Warn("flush: %v (retrying next interval)", err) })
		}
	}

	lc.cycles.Add(1)
	lc.metrics.RecordCycle()
	return nil
}

// shutdown drains in the order flush, sinks, file.
func (lc *LoggerController) shutdown() error {
	var errs []error
	if lc.log != nil {
		if err := lc.log.Flush(); err != nil && !errors.Is(err, logfile.ErrClosed) {
			errs = append(errs, fmt.Errorf("final flush: %w", err))
		}
	}
	if err := lc.fan.Close(); err != nil {
		errs = append(errs, err)
	}
	if lc.log != nil {
		if err := lc.log.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close log: %w", err))
		}
	}
	lc.state.Store(int32(Stopped))
	utils.L().Info("logger controller stopped  cycles=%d", lc.Cycles())
	return errors.Join(errs...)
}

// Cycles returns the number of completed scheduling cycles.
func (lc *LoggerController) Cycles() uint64 { return lc.cycles.Load() }

// Emitted returns how many records of source id were handed to the
// fan-out.
func (lc *LoggerController) Emitted(id models.SourceID) uint64 { return lc.emitted[id].Load() }

// LogStats prints the per-source record counters.
func (lc *LoggerController) LogStats() {
	utils.L().Info("  cycles   %d", lc.Cycles())
	for _, id := range models.Sources {
		if _, ok := lc.cardinality[id]; ok {
			utils.L().Info("  %-8s records=%d", id, lc.Emitted(id))
		}
	}
	if lc.log != nil {
		st := lc.log.Stats()
		utils.L().Info("  log      file=%s  bytes=%d  pending=%d  dropped=%d  flushes=%d",
			lc.log.Path(), st.BytesWritten, st.PendingBytes, st.DroppedBytes, st.Flushes)
	}
	lc.fan.LogStats(utils.L())
}
