// Package metrics exposes the logger's counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"telemetry-logger/models"
)

// Collector holds every metric the logger publishes. It satisfies
// sink.Observer.
type Collector struct {
	reg prometheus.Gatherer

	cycles         prometheus.Counter
	recordsEmitted *prometheus.CounterVec
	bytesEmitted   prometheus.Counter
	encodeErrors   *prometheus.CounterVec
	sinkWrites     *prometheus.CounterVec
	sinkErrors     *prometheus.CounterVec
	flushes        prometheus.Counter
	flushErrors    prometheus.Counter
	droppedBytes   prometheus.Gauge
	pendingBytes   prometheus.Gauge
	sessionIndex   prometheus.Gauge
}

// NewCollector registers the logger metrics on reg. A nil reg uses the
// default Prometheus registry.
func NewCollector(reg *prometheus.Registry) *Collector {
	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if reg != nil {
		registerer, gatherer = reg, reg
	}

	c := &Collector{
		reg: gatherer,
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telemetry_cycles_total",
			Help: "Scheduling loop cycles completed",
		}),
		recordsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telemetry_records_emitted_total",
			Help: "Records encoded and handed to the sinks, by source",
		}, []string{"source"}),
		bytesEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telemetry_bytes_emitted_total",
			Help: "Encoded record bytes handed to the sinks",
		}),
		encodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telemetry_encode_errors_total",
			Help: "Samples that could not be encoded, by source",
		}, []string{"source"}),
		sinkWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telemetry_sink_writes_total",
			Help: "Records accepted by each sink",
		}, []string{"sink"}),
		sinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telemetry_sink_errors_total",
			Help: "Records a sink failed to accept",
		}, []string{"sink"}),
		flushes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telemetry_log_flushes_total",
			Help: "Periodic flushes of the session log",
		}),
		flushErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telemetry_log_flush_errors_total",
			Help: "Failed periodic flushes of the session log",
		}),
		droppedBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "telemetry_log_dropped_bytes",
			Help: "Bytes refused by the session log under backpressure",
		}),
		pendingBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "telemetry_log_pending_bytes",
			Help: "Bytes buffered and not yet written to the session log",
		}),
		sessionIndex: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "telemetry_log_session_index",
			Help: "Index of the session log file currently open",
		}),
	}

	registerer.MustRegister(
		c.cycles,
		c.recordsEmitted,
		c.bytesEmitted,
		c.encodeErrors,
		c.sinkWrites,
		c.sinkErrors,
		c.flushes,
		c.flushErrors,
		c.droppedBytes,
		c.pendingBytes,
		c.sessionIndex,
	)
	return c
}

func (c *Collector) RecordCycle() { c.cycles.Inc() }

// RecordEmitted counts one record of n bytes from source id.
func (c *Collector) RecordEmitted(id models.SourceID, n int) {
	c.recordsEmitted.WithLabelValues(id.String()).Inc()
	c.bytesEmitted.Add(float64(n))
}

func (c *Collector) RecordEncodeError(id models.SourceID) {
	c.encodeErrors.WithLabelValues(id.String()).Inc()
}

func (c *Collector) RecordSinkWrite(sink string, _ int) {
	c.sinkWrites.WithLabelValues(sink).Inc()
}

func (c *Collector) RecordSinkError(sink string) {
	c.sinkErrors.WithLabelValues(sink).Inc()
}

// RecordFlush counts a periodic flush attempt.
func (c *Collector) RecordFlush(err error) {
	if err != nil {
		c.flushErrors.Inc()
		return
	}
	c.flushes.Inc()
}

// UpdateLogStats mirrors the log file manager's buffer state.
func (c *Collector) UpdateLogStats(index, pending int, dropped uint64) {
	c.sessionIndex.Set(float64(index))
	c.pendingBytes.Set(float64(pending))
	c.droppedBytes.Set(float64(dropped))
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

// StartServer serves /metrics on port until ctx is cancelled.
func (c *Collector) StartServer(ctx context.Context, port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
