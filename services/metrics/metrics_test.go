package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telemetry-logger/models"
)

// value returns the counter or gauge value of name with the given label
// value, or -1 when the series does not exist.
func value(t *testing.T, reg *prometheus.Registry, name, label string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if label != "" {
				if len(m.GetLabel()) == 0 || m.GetLabel()[0].GetValue() != label {
					continue
				}
			}
			if m.GetCounter() != nil {
				return m.GetCounter().GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}
	return -1
}

func TestNewCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	assert.NotNil(t, c.cycles)
	assert.NotNil(t, c.recordsEmitted)
	assert.NotNil(t, c.sinkErrors)
	assert.Equal(t, float64(0), value(t, reg, "telemetry_cycles_total", ""))
}

func TestNewCollector_DefaultRegistry(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	assert.NotPanics(t, func() { NewCollector(nil) })
}

func TestRecordEmitted(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordEmitted(models.SourceDistance, 12)
	c.RecordEmitted(models.SourceDistance, 12)
	c.RecordEmitted(models.SourceAccel, 14)

	assert.Equal(t, float64(2), value(t, reg, "telemetry_records_emitted_total", "distance"))
	assert.Equal(t, float64(1), value(t, reg, "telemetry_records_emitted_total", "accel"))
	assert.Equal(t, float64(38), value(t, reg, "telemetry_bytes_emitted_total", ""))
}

func TestSinkObserver(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSinkWrite("file", 12)
	c.RecordSinkError("nats")
	c.RecordSinkError("nats")

	assert.Equal(t, float64(1), value(t, reg, "telemetry_sink_writes_total", "file"))
	assert.Equal(t, float64(2), value(t, reg, "telemetry_sink_errors_total", "nats"))
}

func TestRecordFlush(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordFlush(nil)
	c.RecordFlush(errors.New("sync: i/o error"))
	c.RecordCycle()
	c.UpdateLogStats(3, 100, 7)

	assert.Equal(t, float64(1), value(t, reg, "telemetry_log_flushes_total", ""))
	assert.Equal(t, float64(1), value(t, reg, "telemetry_log_flush_errors_total", ""))
	assert.Equal(t, float64(1), value(t, reg, "telemetry_cycles_total", ""))
	assert.Equal(t, float64(3), value(t, reg, "telemetry_log_session_index", ""))
	assert.Equal(t, float64(7), value(t, reg, "telemetry_log_dropped_bytes", ""))
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordEmitted(models.SourceWheel, 24)

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `telemetry_records_emitted_total{source="wheel"} 1`)
}
