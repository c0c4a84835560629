package models

// Wire framing of one log record:
//
//	timestamp(u32 LE) source_id(u8) length(u8) payload(length) 0x0D 0x0A
const (
	HeaderLen  = 6
	TrailerLen = 2

	// MaxPayloadLen is bounded by the one-byte length field.
	MaxPayloadLen = 255

	// DefaultBufferCapacity matches the working buffer of the flight firmware.
	DefaultBufferCapacity = 128
)

// Terminator marks the end of every record. Readers resynchronise on it.
var Terminator = [TrailerLen]byte{0x0D, 0x0A}

// Record is the decoded form of one log entry.
type Record struct {
	Timestamp uint32   `json:"timestamp"`
	Source    SourceID `json:"source_id"`
	Payload   []byte   `json:"payload"`
}

// Len returns the encoded size of the record.
func (r Record) Len() int {
	return HeaderLen + len(r.Payload) + TrailerLen
}

// PayloadLen returns the payload size for a source with the given
// cardinality (distance units or wheels; ignored for the IMU axes).
// Unknown sources yield -1.
func PayloadLen(id SourceID, count int) int {
	switch id {
	case SourceDistance:
		return 2 * count
	case SourceAccel, SourceGyro:
		return 6
	case SourceWheel:
		return 4 * count
	default:
		return -1
	}
}

// RecordLen returns the full encoded size of a record for the source.
func RecordLen(id SourceID, count int) int {
	n := PayloadLen(id, count)
	if n < 0 {
		return -1
	}
	return HeaderLen + n + TrailerLen
}

// MaxCount returns the largest cardinality of id whose record still fits
// in capacity bytes and whose payload fits the length byte.
func MaxCount(id SourceID, capacity int) int {
	var width int
	switch id {
	case SourceDistance:
		width = 2
	case SourceWheel:
		width = 4
	case SourceAccel, SourceGyro:
		if RecordLen(id, 0) <= capacity {
			return 1
		}
		return 0
	default:
		return 0
	}
	room := capacity - HeaderLen - TrailerLen
	if room > MaxPayloadLen {
		room = MaxPayloadLen
	}
	if room < 0 {
		return 0
	}
	return room / width
}
