package ingest

import (
	"context"
	"math"
	"math/rand"
	"sync/atomic"
	"time"

	"telemetry-logger/services/clock"
	"telemetry-logger/utils"
)

// SimReader stands in for a hardware acquisition task: it publishes a
// synthetic reading into one source at a fixed rate, stamped with the
// scheduler clock as the sensor's own timestamp.
type SimReader struct {
	name     string
	rateHz   int
	sample   func(step float64)
	produced uint64
}

// NewDistanceSim simulates a ride-height style distance array.
func NewDistanceSim(arr *DistanceArray, clk clock.Clock, rateHz int) *SimReader {
	vals := make([]uint16, arr.Units())
	return &SimReader{
		name:   "distance",
		rateHz: rateHz,
		sample: func(step float64) {
			for i := range vals {
				vals[i] = uint16(300 + 40*math.Sin(step+float64(i)) + rand.Float64()*4)
			}
			_ = arr.Publish(clk.Now(), vals)
		},
	}
}

// NewAccelSim simulates raw accelerometer counts (±2 g full scale, 1 g on Z).
func NewAccelSim(imu *IMU, clk clock.Clock, rateHz int) *SimReader {
	return &SimReader{
		name:   "accel",
		rateHz: rateHz,
		sample: func(step float64) {
			imu.PublishAccel(clk.Now(),
				int16(320*math.Sin(step)+rand.Float64()*16),
				int16(160*math.Cos(step)+rand.Float64()*16),
				int16(16384+rand.Float64()*32))
		},
	}
}

// NewGyroSim simulates raw angular-rate counts.
func NewGyroSim(imu *IMU, clk clock.Clock, rateHz int) *SimReader {
	return &SimReader{
		name:   "gyro",
		rateHz: rateHz,
		sample: func(step float64) {
			imu.PublishGyro(clk.Now(),
				int16(120*math.Sin(step*2)+rand.Float64()*8),
				int16(120*math.Cos(step*2)+rand.Float64()*8),
				int16(40+rand.Float64()*4))
		},
	}
}

// NewWheelSim simulates wheel speeds around a cruising RPM.
func NewWheelSim(ws *WheelSpeed, clk clock.Clock, rateHz int) *SimReader {
	rpm := make([]float32, ws.Wheels())
	return &SimReader{
		name:   "wheel",
		rateHz: rateHz,
		sample: func(step float64) {
			for i := range rpm {
				rpm[i] = float32(650 + 80*math.Sin(step/4) + rand.Float64()*5)
			}
			_ = ws.Publish(clk.Now(), rpm)
		},
	}
}

func (r *SimReader) Name() string { return r.name }

func (r *SimReader) Start(ctx context.Context) {
	go r.run(ctx)
	utils.L().Info("%-8s reader started  (rate=%dHz, simulate=true)", r.name, r.rateHz)
}

func (r *SimReader) run(ctx context.Context) {
	rate := r.rateHz
	if rate <= 0 {
		rate = 100
	}
	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()

	var step float64
	for {
		select {
		case <-ctx.Done():
			utils.L().Info("%-8s reader stopped  (produced=%d)", r.name, atomic.LoadUint64(&r.produced))
			return
		case <-ticker.C:
			r.sample(step)
			step += 0.01
			atomic.AddUint64(&r.produced, 1)
		}
	}
}

// Stats returns the number of samples published so far.
func (r *SimReader) Stats() uint64 {
	return atomic.LoadUint64(&r.produced)
}
