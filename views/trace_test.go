package views

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"telemetry-logger/models"
)

var distanceRecord = []byte{100, 0, 0, 0, 0x01, 0x04, 0x2C, 0x01, 0x2D, 0x01, 0x0D, 0x0A}

func TestTrace_Short(t *testing.T) {
	assert.Equal(t, "[LOGGER] 0x01", Trace(distanceRecord, false))
}

func TestTrace_Verbose(t *testing.T) {
	got := Trace(distanceRecord, true)
	assert.Equal(t, "[LOGGER] 0x01 distance ts=100 len=4 d0=300 d1=301", got)
}

func TestTrace_VerboseAxis(t *testing.T) {
	rec := []byte{1, 0, 0, 0, 0x02, 0x06, 0xFF, 0xFF, 0x02, 0x00, 0x03, 0x00, 0x0D, 0x0A}
	assert.Equal(t, "[LOGGER] 0x02 accel    ts=1 len=6 ax=-1 ay=2 az=3", Trace(rec, true))
}

func TestTrace_BoundedWidth(t *testing.T) {
	rec := []byte{0, 0, 0, 0, 0x01, 20}
	rec = append(rec, make([]byte, 20)...)
	rec = append(rec, 0x0D, 0x0A)

	got := Trace(rec, true)
	assert.Contains(t, got, "d7=0")
	assert.NotContains(t, got, "d8=")
	assert.Contains(t, got, "…+2")
}

func TestTrace_Malformed(t *testing.T) {
	assert.Contains(t, Trace([]byte{1, 2}, true), "short record")
	assert.Contains(t, Trace([]byte{0, 0, 0, 0, 0x01, 0x00, 0x00, 0x00}, true), "undecodable")
}

func TestWithSuppressed(t *testing.T) {
	assert.Equal(t, "[LOGGER] 0x04  (+12 untraced)", WithSuppressed("[LOGGER] 0x04", 12))
}

func TestColumns(t *testing.T) {
	assert.Equal(t, []string{"d0", "d1"}, Columns(models.SourceDistance, 2))
	assert.Equal(t, []string{"gx", "gy", "gz"}, Columns(models.SourceGyro, 3))
	assert.Equal(t, []string{"w0", "w1", "w2", "w3"}, Columns(models.SourceWheel, 4))
	assert.Nil(t, Columns(0x7F, 3))
}
