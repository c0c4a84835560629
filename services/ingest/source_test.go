package ingest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telemetry-logger/models"
	"telemetry-logger/services/clock"
)

func TestDistanceArray_PublishCopies(t *testing.T) {
	d := NewDistanceArray(2)
	_, ok := d.Latest()
	assert.False(t, ok, "no sample before the first publish")

	vals := []uint16{300, 301}
	require.NoError(t, d.Publish(9, vals))
	vals[0] = 0

	s, ok := d.Latest()
	require.True(t, ok)
	ds := s.(*models.DistanceSample)
	assert.Equal(t, []uint16{300, 301}, ds.Values)
	assert.Equal(t, uint32(9), s.SourceTimestamp())
	assert.Equal(t, models.SourceDistance, s.Source())
}

func TestDistanceArray_WrongCount(t *testing.T) {
	d := NewDistanceArray(4)
	assert.Error(t, d.Publish(1, []uint16{1, 2}))
	_, ok := d.Latest()
	assert.False(t, ok)
}

func TestIMU_SubStreamsAreIndependent(t *testing.T) {
	imu := NewIMU()
	imu.PublishAccel(10, 1, 2, 3)

	_, ok := imu.Gyro().Latest()
	assert.False(t, ok)

	a, ok := imu.Accel().Latest()
	require.True(t, ok)
	assert.Equal(t, models.SourceAccel, a.Source())
	assert.Equal(t, uint32(10), a.SourceTimestamp())

	imu.PublishGyro(11, -1, -2, -3)
	g, ok := imu.Gyro().Latest()
	require.True(t, ok)
	assert.Equal(t, &models.AxisSample{Sensor: models.SourceGyro, Timestamp: 11, X: -1, Y: -2, Z: -3}, g)
	assert.Equal(t, models.SourceGyro, imu.Gyro().ID())
}

func TestWheelSpeed_Publish(t *testing.T) {
	w := NewWheelSpeed(2)
	assert.Error(t, w.Publish(1, []float32{1}))
	require.NoError(t, w.Publish(2, []float32{650.5, 651}))

	s, ok := w.Latest()
	require.True(t, ok)
	assert.Equal(t, []float32{650.5, 651}, s.(*models.WheelSample).RPM)
}

// A reader racing a publisher must only ever see samples whose fields all
// come from the same publish.
func TestCell_NoTornReads(t *testing.T) {
	imu := NewIMU()
	imu.PublishAccel(0, 0, 0, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := int16(1); ctx.Err() == nil; i++ {
			imu.PublishAccel(uint32(i), i, i, i)
		}
	}()

	reads := 0
	for ctx.Err() == nil {
		s, ok := imu.Accel().Latest()
		require.True(t, ok)
		a := s.(*models.AxisSample)
		if a.X != a.Y || a.Y != a.Z || uint32(uint16(a.X)) != a.Timestamp&0xFFFF {
			t.Fatalf("torn sample: %+v", a)
		}
		reads++
	}
	wg.Wait()
	assert.Positive(t, reads)
}

func TestCell_Version(t *testing.T) {
	var c Cell[int]
	assert.Nil(t, c.Load())
	v := 3
	c.Store(&v)
	c.Store(&v)
	assert.Equal(t, uint64(2), c.Version())
	assert.Equal(t, 3, *c.Load())
}

func TestSources_PublishedCountsStores(t *testing.T) {
	d := NewDistanceArray(2)
	require.NoError(t, d.Publish(1, []uint16{1, 2}))
	require.Error(t, d.Publish(2, []uint16{1}))
	assert.Equal(t, uint64(1), d.Published(), "rejected samples are not counted")

	imu := NewIMU()
	imu.PublishAccel(1, 0, 0, 0)
	imu.PublishAccel(2, 0, 0, 0)
	assert.Equal(t, uint64(2), imu.Accel().Published())
	assert.Zero(t, imu.Gyro().Published())
}

func TestSimReader_PublishesUntilCancelled(t *testing.T) {
	clk := clock.NewFake(42, 1000)
	ws := NewWheelSpeed(4)
	r := NewWheelSim(ws, clk, 1000)
	assert.Equal(t, "wheel", r.Name())

	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)
	require.Eventually(t, func() bool { return r.Stats() >= 3 }, time.Second, time.Millisecond)
	cancel()

	s, ok := ws.Latest()
	require.True(t, ok)
	assert.Equal(t, uint32(42), s.SourceTimestamp(), "stamped with the clock")
	assert.Len(t, s.(*models.WheelSample).RPM, 4)
}
