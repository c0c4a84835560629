package models

// Sample is one immutable reading published by an acquisition reader.
// SourceTimestamp is the tick at which the sensor produced the value,
// which is distinct from the logging timestamp of the record.
type Sample interface {
	Source() SourceID
	SourceTimestamp() uint32
}

// DistanceSample holds one raw reading per configured distance unit.
type DistanceSample struct {
	Timestamp uint32   `json:"timestamp"`
	Values    []uint16 `json:"values"`
}

func (d *DistanceSample) Source() SourceID        { return SourceDistance }
func (d *DistanceSample) SourceTimestamp() uint32 { return d.Timestamp }

// AxisSample is a raw three-axis reading from the inertial unit. Sensor
// selects the sub-stream: SourceAccel or SourceGyro.
type AxisSample struct {
	Sensor    SourceID `json:"sensor"`
	Timestamp uint32   `json:"timestamp"`
	X         int16    `json:"x"`
	Y         int16    `json:"y"`
	Z         int16    `json:"z"`
}

func (a *AxisSample) Source() SourceID        { return a.Sensor }
func (a *AxisSample) SourceTimestamp() uint32 { return a.Timestamp }

// WheelSample holds one RPM value per configured wheel.
type WheelSample struct {
	Timestamp uint32    `json:"timestamp"`
	RPM       []float32 `json:"rpm"`
}

func (w *WheelSample) Source() SourceID        { return SourceWheel }
func (w *WheelSample) SourceTimestamp() uint32 { return w.Timestamp }
