package sink

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telemetry-logger/utils"
)

var record = []byte{100, 0, 0, 0, 0x01, 0x04, 0x2C, 0x01, 0x2D, 0x01, 0x0D, 0x0A}

type captureSink struct {
	name string
	err  error
	got  [][]byte
}

func (c *captureSink) Name() string { return c.name }

func (c *captureSink) Write(r []byte) error {
	c.got = append(c.got, append([]byte(nil), r...))
	return c.err
}

type failingWriter struct{}

func (failingWriter) Write([]byte) error { return errors.New("medium removed") }

type countingObserver struct {
	writes map[string]int
	errs   map[string]int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{writes: map[string]int{}, errs: map[string]int{}}
}

func (o *countingObserver) RecordSinkWrite(name string, _ int) { o.writes[name]++ }
func (o *countingObserver) RecordSinkError(name string)        { o.errs[name]++ }

type traceCapture struct {
	mu    sync.Mutex
	lines []string
}

func (t *traceCapture) Trace(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, fmt.Sprintf(format, args...))
}

func (t *traceCapture) Info(format string, args ...any) { t.Trace(format, args...) }

func TestFanOut_FailingFileSinkDoesNotBlockOthers(t *testing.T) {
	durable := &FileSink{w: failingWriter{}}
	live := &captureSink{name: "live"}
	trace := &traceCapture{}
	diag := NewDiagnosticSink(trace, 0, false)
	obs := newCountingObserver()

	f := NewFanOut(obs, durable, live, diag)
	err := f.Emit(record)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "file: medium removed")
	require.Len(t, live.got, 1)
	assert.Equal(t, record, live.got[0])
	assert.Equal(t, []string{"[LOGGER] 0x01"}, trace.lines)

	assert.Equal(t, 1, obs.errs["file"])
	assert.Equal(t, 1, obs.writes["live"])
	assert.Equal(t, 1, obs.writes["diagnostic"])
}

func TestFanOut_AllErrorsJoined(t *testing.T) {
	a := &captureSink{name: "a", err: errors.New("boom-a")}
	b := &captureSink{name: "b", err: errors.New("boom-b")}
	c := &captureSink{name: "c"}

	err := NewFanOut(nil, a, b, c).Emit(record)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom-a")
	assert.Contains(t, err.Error(), "boom-b")
	assert.Len(t, c.got, 1)
}

type panicSink struct{}

func (panicSink) Name() string       { return "panicky" }
func (panicSink) Write([]byte) error { panic("driver fault") }

func TestFanOut_PanickingSinkIsContained(t *testing.T) {
	after := &captureSink{name: "after"}
	err := NewFanOut(nil, panicSink{}, after).Emit(record)

	assert.ErrorContains(t, err, "driver fault")
	assert.Len(t, after.got, 1)
}

func TestFanOut_EmptyAndNames(t *testing.T) {
	f := NewFanOut(nil)
	assert.NoError(t, f.Emit(record))
	assert.Equal(t, 0, f.Len())

	f.Add(&captureSink{name: "x"})
	f.Add(&captureSink{name: "y"})
	assert.Equal(t, []string{"x", "y"}, f.Names())
}

// pipeWriter collects serial output; safe for the writer goroutine.
type pipeWriter struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	block  chan struct{}
	closed bool
}

func (p *pipeWriter) Write(b []byte) (int, error) {
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.Write(b)
}

func (p *pipeWriter) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *pipeWriter) Bytes() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.buf.Bytes()...)
}

func TestSerialSink_CopiesAndDrainsOnClose(t *testing.T) {
	w := &pipeWriter{}
	s := NewSerialSink("serial", w, 8)

	buf := append([]byte(nil), record...)
	require.NoError(t, s.Write(buf))
	buf[0] = 0xEE // the loop reuses its working buffer
	require.NoError(t, s.Write(record))

	require.NoError(t, s.Close())
	assert.True(t, w.closed)
	assert.Equal(t, append(append([]byte(nil), record...), record...), w.Bytes())

	sent, dropped, failed := s.Stats()
	assert.Equal(t, uint64(2), sent)
	assert.Zero(t, dropped)
	assert.Zero(t, failed)

	assert.ErrorIs(t, s.Write(record), io.ErrClosedPipe)
	assert.NoError(t, s.Close())
}

func TestSerialSink_DropsWhenQueueFull(t *testing.T) {
	w := &pipeWriter{block: make(chan struct{})}
	s := NewSerialSink("serial", w, 1)

	var drops int
	for i := 0; i < 10; i++ {
		if errors.Is(s.Write(record), ErrDropped) {
			drops++
		}
	}
	// at most one in flight and one queued
	assert.GreaterOrEqual(t, drops, 8)

	close(w.block)
	require.NoError(t, s.Close())
	_, dropped, _ := s.Stats()
	assert.Equal(t, uint64(drops), dropped)
}

func TestFanOut_LogStatsReportsSerialCounters(t *testing.T) {
	w := &pipeWriter{}
	serial := NewSerialSink("serial", w, 8)
	fan := NewFanOut(nil, &captureSink{name: "live"}, serial)

	require.NoError(t, fan.Emit(record))
	require.NoError(t, serial.Close())

	out := &traceCapture{}
	fan.LogStats(out)
	require.Len(t, out.lines, 1, "only sinks with counters report")
	assert.Contains(t, out.lines[0], "serial")
	assert.Contains(t, out.lines[0], "sent=1")
	assert.Contains(t, out.lines[0], "dropped=0")
}

type fakePublisher struct {
	subject string
	msgs    [][]byte
	err     error
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.subject = subject
	f.msgs = append(f.msgs, append([]byte(nil), data...))
	return nil
}

func TestNATSSink_Publishes(t *testing.T) {
	pub := &fakePublisher{}
	s := newNATSSink(pub, "telemetry.records")

	require.NoError(t, s.Write(record))
	assert.Equal(t, "telemetry.records", pub.subject)
	assert.Equal(t, [][]byte{record}, pub.msgs)
	assert.NoError(t, s.Close())
}

func TestNATSSink_ErrorIsReturnedNotFatal(t *testing.T) {
	pub := &fakePublisher{err: errors.New("nats: connection closed")}
	s := newNATSSink(pub, "telemetry.records")
	other := &captureSink{name: "other"}

	err := NewFanOut(nil, s, other).Emit(record)
	assert.ErrorContains(t, err, "connection closed")
	assert.Len(t, other.got, 1)
}

func TestDiagnosticSink_Budget(t *testing.T) {
	trace := &traceCapture{}
	s := NewDiagnosticSink(trace, 3, false)

	for i := 0; i < 10; i++ {
		require.NoError(t, s.Write(record))
	}
	assert.Len(t, trace.lines, 3)
	assert.Equal(t, uint64(7), s.suppressed)

	time.Sleep(400 * time.Millisecond)
	require.NoError(t, s.Write(record))
	require.Len(t, trace.lines, 4)
	assert.True(t, strings.HasSuffix(trace.lines[3], "(+7 untraced)"), trace.lines[3])
}

func TestDiagnosticSink_Verbose(t *testing.T) {
	trace := &traceCapture{}
	s := NewDiagnosticSink(trace, 0, true)
	require.NoError(t, s.Write(record))
	assert.Equal(t, []string{"[LOGGER] 0x01 distance ts=100 len=4 d0=300 d1=301"}, trace.lines)
}

func TestDiagnosticSink_TracesAboveLogLevel(t *testing.T) {
	var buf bytes.Buffer
	s := NewDiagnosticSink(utils.NewLogger(utils.WARN, &buf), 0, false)

	require.NoError(t, s.Write(record))
	assert.Contains(t, buf.String(), "[TRACE] ")
	assert.Contains(t, buf.String(), "0x01")
}
