package ingest

import (
	"fmt"

	"telemetry-logger/models"
)

// Source is the uniform read-only view the scheduling loop has of a
// sensor family: the latest sample plus the sensor's own timestamp.
type Source interface {
	ID() models.SourceID
	Latest() (models.Sample, bool)
	// Published counts samples made visible since start-up.
	Published() uint64
}

// ─── distance array ─────────────────────────────────────────────────────

// DistanceArray publishes one raw 16-bit value per distance unit.
type DistanceArray struct {
	units int
	cell  Cell[models.DistanceSample]
}

func NewDistanceArray(units int) *DistanceArray {
	return &DistanceArray{units: units}
}

func (d *DistanceArray) ID() models.SourceID { return models.SourceDistance }
func (d *DistanceArray) Units() int          { return d.units }
func (d *DistanceArray) Published() uint64   { return d.cell.Version() }

// Publish copies values into a fresh sample and makes it visible.
func (d *DistanceArray) Publish(ts uint32, values []uint16) error {
	if len(values) != d.units {
		return fmt.Errorf("distance publish: got %d values, want %d", len(values), d.units)
	}
	s := &models.DistanceSample{Timestamp: ts, Values: append([]uint16(nil), values...)}
	d.cell.Store(s)
	return nil
}

func (d *DistanceArray) Latest() (models.Sample, bool) {
	s := d.cell.Load()
	if s == nil {
		return nil, false
	}
	return s, true
}

// ─── inertial unit ──────────────────────────────────────────────────────

// IMU carries two independently updating sub-streams. Each is exposed as
// its own Source so that each gets its own gate.
type IMU struct {
	accel axisStream
	gyro  axisStream
}

func NewIMU() *IMU {
	return &IMU{
		accel: axisStream{id: models.SourceAccel},
		gyro:  axisStream{id: models.SourceGyro},
	}
}

func (m *IMU) PublishAccel(ts uint32, x, y, z int16) { m.accel.publish(ts, x, y, z) }
func (m *IMU) PublishGyro(ts uint32, x, y, z int16)  { m.gyro.publish(ts, x, y, z) }

// Accel returns the acceleration sub-stream.
func (m *IMU) Accel() Source { return &m.accel }

// Gyro returns the angular-rate sub-stream.
func (m *IMU) Gyro() Source { return &m.gyro }

type axisStream struct {
	id   models.SourceID
	cell Cell[models.AxisSample]
}

func (a *axisStream) publish(ts uint32, x, y, z int16) {
	a.cell.Store(&models.AxisSample{Sensor: a.id, Timestamp: ts, X: x, Y: y, Z: z})
}

func (a *axisStream) ID() models.SourceID { return a.id }
func (a *axisStream) Published() uint64   { return a.cell.Version() }

func (a *axisStream) Latest() (models.Sample, bool) {
	s := a.cell.Load()
	if s == nil {
		return nil, false
	}
	return s, true
}

// ─── wheel speed ────────────────────────────────────────────────────────

// WheelSpeed publishes one RPM value per wheel.
type WheelSpeed struct {
	wheels int
	cell   Cell[models.WheelSample]
}

func NewWheelSpeed(wheels int) *WheelSpeed {
	return &WheelSpeed{wheels: wheels}
}

func (w *WheelSpeed) ID() models.SourceID { return models.SourceWheel }
func (w *WheelSpeed) Wheels() int         { return w.wheels }
func (w *WheelSpeed) Published() uint64   { return w.cell.Version() }

func (w *WheelSpeed) Publish(ts uint32, rpm []float32) error {
	if len(rpm) != w.wheels {
		return fmt.Errorf("wheel publish: got %d values, want %d", len(rpm), w.wheels)
	}
	w.cell.Store(&models.WheelSample{Timestamp: ts, RPM: append([]float32(nil), rpm...)})
	return nil
}

func (w *WheelSpeed) Latest() (models.Sample, bool) {
	s := w.cell.Load()
	if s == nil {
		return nil, false
	}
	return s, true
}
