package views

import (
	"fmt"

	"telemetry-logger/models"
)

// axisColumns is the single source of truth for IMU field naming.
var axisColumns = map[models.SourceID][]string{
	models.SourceAccel: {"ax", "ay", "az"},
	models.SourceGyro:  {"gx", "gy", "gz"},
}

// Columns returns the field names of a source's payload in wire order.
// Distance units and wheels are numbered from zero.
func Columns(id models.SourceID, count int) []string {
	if cols, ok := axisColumns[id]; ok {
		return cols
	}
	var prefix string
	switch id {
	case models.SourceDistance:
		prefix = "d"
	case models.SourceWheel:
		prefix = "w"
	default:
		return nil
	}
	cols := make([]string, count)
	for i := range cols {
		cols[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return cols
}
