package models

import "fmt"

// SourceID is the one-byte code identifying a sensor family on the wire.
type SourceID uint8

const (
	SourceDistance SourceID = 0x01 // distance-sensor array
	SourceAccel    SourceID = 0x02 // accelerometer, raw X/Y/Z
	SourceGyro     SourceID = 0x03 // gyroscope, raw X/Y/Z
	SourceWheel    SourceID = 0x04 // wheel speed, RPM per wheel
)

// Sources lists every known source in emission order. The scheduling loop
// visits bindings in this order every cycle.
var Sources = []SourceID{SourceDistance, SourceAccel, SourceGyro, SourceWheel}

var sourceNames = map[SourceID]string{
	SourceDistance: "distance",
	SourceAccel:    "accel",
	SourceGyro:     "gyro",
	SourceWheel:    "wheel",
}

func (s SourceID) String() string {
	if n, ok := sourceNames[s]; ok {
		return n
	}
	return fmt.Sprintf("source(0x%02x)", uint8(s))
}

// Valid reports whether s is one of the known sensor families.
func (s SourceID) Valid() bool {
	_, ok := sourceNames[s]
	return ok
}
