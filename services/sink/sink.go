// Package sink fans encoded records out to every configured destination.
package sink

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"telemetry-logger/utils"
)

var ErrDropped = errors.New("sink: record dropped, queue full")

// Sink accepts one encoded record. The record slice is the scheduling
// loop's working buffer: implementations must copy it if they keep it
// past the return of Write.
type Sink interface {
	Name() string
	Write(record []byte) error
}

// Observer receives per-sink delivery outcomes, typically the metrics
// collector.
type Observer interface {
	RecordSinkWrite(sink string, bytes int)
	RecordSinkError(sink string)
}

// Reporter is implemented by sinks that keep their own delivery counters.
type Reporter interface {
	Stats() (sent, dropped, failed uint64)
}

// FanOut delivers every record to all of its sinks. A failing sink never
// prevents delivery to the sinks after it.
type FanOut struct {
	sinks []Sink
	obs   Observer
}

// NewFanOut builds a fan-out over sinks. obs may be nil.
func NewFanOut(obs Observer, sinks ...Sink) *FanOut {
	return &FanOut{sinks: sinks, obs: obs}
}

// Add appends a sink to the fan-out set.
func (f *FanOut) Add(s Sink) { f.sinks = append(f.sinks, s) }

// Len returns the number of sinks.
func (f *FanOut) Len() int { return len(f.sinks) }

// Names lists the sinks in delivery order.
func (f *FanOut) Names() []string {
	out := make([]string, len(f.sinks))
	for i, s := range f.sinks {
		out[i] = s.Name()
	}
	return out
}

// Emit hands record to every sink and returns the joined errors of those
// that failed.
func (f *FanOut) Emit(record []byte) error {
	var errs []error
	for _, s := range f.sinks {
		if err := deliver(s, record); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			if f.obs != nil {
				f.obs.RecordSinkError(s.Name())
			}
			continue
		}
		if f.obs != nil {
			f.obs.RecordSinkWrite(s.Name(), len(record))
		}
	}
	return errors.Join(errs...)
}

func deliver(s Sink, record []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panic: %v", r)
		}
	}()
	return s.Write(record)
}

// LogStats prints the counters of every sink that implements Reporter.
func (f *FanOut) LogStats(out interface{ Info(string, ...any) }) {
	for _, s := range f.sinks {
		r, ok := s.(Reporter)
		if !ok {
			continue
		}
		sent, dropped, failed := r.Stats()
		out.Info("  %-8s sent=%d  dropped=%d  failed=%d", s.Name(), sent, dropped, failed)
	}
}

// Close closes every sink that holds resources, in reverse order.
func (f *FanOut) Close() error {
	var errs []error
	for i := len(f.sinks) - 1; i >= 0; i-- {
		if c, ok := f.sinks[i].(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s close: %w", f.sinks[i].Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}

// warnLimiter throttles repeated transport warnings to the diagnostic
// channel and reports how many were suppressed in between.
type warnLimiter struct {
	mu         sync.Mutex
	lim        *rate.Limiter
	suppressed int
}

func newWarnLimiter() *warnLimiter {
	return &warnLimiter{lim: rate.NewLimiter(rate.Every(time.Second), 1)}
}

func (w *warnLimiter) warn(format string, args ...any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.lim.Allow() {
		w.suppressed++
		return
	}
	if w.suppressed > 0 {
		format += " (%d similar suppressed)"
		args = append(args, w.suppressed)
		w.suppressed = 0
	}
	utils.L().Warn(format, args...)
}
