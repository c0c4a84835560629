package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telemetry-logger/models"
)

// drive evaluates g the way the scheduling loop does and marks on emit.
func drive(g Gate, now uint32, s models.Sample) bool {
	if !g.ShouldEmit(now, s) {
		return false
	}
	g.MarkEmitted(now, s)
	return true
}

func TestLevel_OncePerWindow(t *testing.T) {
	g := NewLevel(200)

	var emitted []uint32
	for now := uint32(0); now < 1000; now++ {
		if drive(g, now, nil) {
			emitted = append(emitted, now)
		}
	}

	assert.Equal(t, []uint32{0, 200, 400, 600, 800}, emitted)

	// never more than one emission in any 200-tick window
	for i := 1; i < len(emitted); i++ {
		assert.GreaterOrEqual(t, emitted[i]-emitted[i-1], uint32(200))
	}
}

func TestLevel_ShouldEmitHasNoSideEffects(t *testing.T) {
	g := NewLevel(10)
	g.MarkEmitted(100, nil)

	for i := 0; i < 5; i++ {
		assert.False(t, g.ShouldEmit(105, nil))
	}
	assert.True(t, g.ShouldEmit(110, nil))
	assert.True(t, g.ShouldEmit(110, nil), "repeated evaluation must not consume eligibility")
}

func TestLevel_UnmarkedStaysEligible(t *testing.T) {
	g := NewLevel(50)
	g.MarkEmitted(0, nil)

	require.True(t, g.ShouldEmit(60, nil))
	// the record was not produced, so no mark; the next cycle is still eligible
	assert.True(t, g.ShouldEmit(61, nil))
}

func TestLevel_CounterWrap(t *testing.T) {
	g := NewLevel(10)
	g.MarkEmitted(^uint32(0)-3, nil)

	assert.False(t, g.ShouldEmit(2, nil))
	assert.True(t, g.ShouldEmit(6, nil))
}

func TestLevel_ZeroIntervalEveryCycle(t *testing.T) {
	g := NewLevel(0)
	for now := uint32(0); now < 5; now++ {
		assert.True(t, drive(g, now, nil))
	}
}

func TestEdge_Dedup(t *testing.T) {
	g := NewEdge()
	stamps := []uint32{5, 5, 5, 7, 7, 9}

	var eligibleAt []int
	for i, ts := range stamps {
		s := &models.AxisSample{Sensor: models.SourceAccel, Timestamp: ts}
		if drive(g, uint32(1000+i), s) {
			eligibleAt = append(eligibleAt, i+1)
		}
	}

	assert.Equal(t, []int{1, 4, 6}, eligibleAt)
}

func TestEdge_FirstSampleAtZeroIsEligible(t *testing.T) {
	g := NewEdge()
	s := &models.AxisSample{Sensor: models.SourceGyro, Timestamp: 0}

	assert.True(t, drive(g, 0, s))
	assert.False(t, drive(g, 1, s))
}

func TestEdge_NoSample(t *testing.T) {
	g := NewEdge()
	assert.False(t, g.ShouldEmit(0, nil))
	assert.NotPanics(t, func() { g.MarkEmitted(0, nil) })
}

func TestEdge_IgnoresCycleClock(t *testing.T) {
	g := NewEdge()
	s := &models.DistanceSample{Timestamp: 42, Values: []uint16{1}}

	require.True(t, drive(g, 0, s))
	for now := uint32(1); now < 100; now++ {
		assert.False(t, g.ShouldEmit(now, s), "stalled source must not re-emit at tick %d", now)
	}
}

func TestIndependentGatesPerSubStream(t *testing.T) {
	accel, gyro := NewEdge(), NewEdge()
	a := &models.AxisSample{Sensor: models.SourceAccel, Timestamp: 3}
	g := &models.AxisSample{Sensor: models.SourceGyro, Timestamp: 3}

	assert.True(t, drive(accel, 0, a))
	assert.True(t, drive(gyro, 0, g), "gyro gate must not share state with accel gate")
	assert.False(t, drive(accel, 1, a))
	assert.False(t, drive(gyro, 1, g))
}
