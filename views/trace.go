package views

import (
	"fmt"
	"strings"

	"telemetry-logger/models"
	"telemetry-logger/services/codec"
)

// Trace renders a bounded one-line description of an encoded record for
// the diagnostic channel. The short form carries only the source id; the
// verbose form adds the timestamp and decoded values.
func Trace(record []byte, verbose bool) string {
	if len(record) < models.HeaderLen {
		return fmt.Sprintf("[LOGGER] short record (%d bytes)", len(record))
	}
	if !verbose {
		return fmt.Sprintf("[LOGGER] 0x%02x", record[4])
	}

	rec, _, err := codec.Decode(record)
	if err != nil {
		return fmt.Sprintf("[LOGGER] 0x%02x  undecodable: %v", record[4], err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[LOGGER] 0x%02x %-8s ts=%d len=%d", uint8(rec.Source), rec.Source, rec.Timestamp, len(rec.Payload))

	s, err := codec.DecodeSample(rec)
	if err != nil {
		return b.String()
	}
	switch v := s.(type) {
	case *models.DistanceSample:
		writeColumns(&b, Columns(models.SourceDistance, len(v.Values)), func(i int) string { return fmt.Sprint(v.Values[i]) })
	case *models.AxisSample:
		vals := [3]int16{v.X, v.Y, v.Z}
		writeColumns(&b, Columns(v.Sensor, 3), func(i int) string { return fmt.Sprint(vals[i]) })
	case *models.WheelSample:
		writeColumns(&b, Columns(models.SourceWheel, len(v.RPM)), func(i int) string { return fmt.Sprintf("%.1f", v.RPM[i]) })
	}
	return b.String()
}

// WithSuppressed annotates a trace line with the number of records that
// were not traced since the previous line.
func WithSuppressed(line string, n uint64) string {
	return fmt.Sprintf("%s  (+%d untraced)", line, n)
}

// maxTraceColumns bounds verbose lines for wide arrays.
const maxTraceColumns = 8

func writeColumns(b *strings.Builder, cols []string, value func(int) string) {
	for i, c := range cols {
		if i == maxTraceColumns {
			fmt.Fprintf(b, " …+%d", len(cols)-i)
			return
		}
		fmt.Fprintf(b, " %s=%s", c, value(i))
	}
}
