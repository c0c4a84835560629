package codec

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"telemetry-logger/models"
)

var (
	ErrShortRecord   = errors.New("codec: short record")
	ErrBadTerminator = errors.New("codec: missing record terminator")
	ErrBadPayload    = errors.New("codec: payload length does not fit source")
)

// Decode parses the record at the start of b and returns it together with
// the number of bytes consumed. The returned payload aliases b.
func Decode(b []byte) (models.Record, int, error) {
	if len(b) < models.HeaderLen {
		return models.Record{}, 0, ErrShortRecord
	}
	plen := int(b[5])
	n := models.HeaderLen + plen + models.TrailerLen
	if len(b) < n {
		return models.Record{}, 0, ErrShortRecord
	}
	if b[n-2] != models.Terminator[0] || b[n-1] != models.Terminator[1] {
		return models.Record{}, 0, ErrBadTerminator
	}
	rec := models.Record{
		Timestamp: binary.LittleEndian.Uint32(b[0:4]),
		Source:    models.SourceID(b[4]),
		Payload:   b[models.HeaderLen : n-models.TrailerLen],
	}
	return rec, n, nil
}

// DecodeSample rebuilds the sample carried by rec. The record does not
// carry the sensor's own timestamp, so the sample is stamped with the
// record's logging timestamp.
func DecodeSample(rec models.Record) (models.Sample, error) {
	p := rec.Payload
	switch rec.Source {
	case models.SourceDistance:
		if len(p)%2 != 0 {
			return nil, fmt.Errorf("%w: distance payload %d bytes", ErrBadPayload, len(p))
		}
		vals := make([]uint16, len(p)/2)
		for i := range vals {
			vals[i] = binary.LittleEndian.Uint16(p[2*i:])
		}
		return &models.DistanceSample{Timestamp: rec.Timestamp, Values: vals}, nil
	case models.SourceAccel, models.SourceGyro:
		if len(p) != 6 {
			return nil, fmt.Errorf("%w: %s payload %d bytes", ErrBadPayload, rec.Source, len(p))
		}
		return &models.AxisSample{
			Sensor:    rec.Source,
			Timestamp: rec.Timestamp,
			X:         int16(binary.LittleEndian.Uint16(p[0:])),
			Y:         int16(binary.LittleEndian.Uint16(p[2:])),
			Z:         int16(binary.LittleEndian.Uint16(p[4:])),
		}, nil
	case models.SourceWheel:
		if len(p)%4 != 0 {
			return nil, fmt.Errorf("%w: wheel payload %d bytes", ErrBadPayload, len(p))
		}
		rpm := make([]float32, len(p)/4)
		for i := range rpm {
			rpm[i] = math.Float32frombits(binary.LittleEndian.Uint32(p[4*i:]))
		}
		return &models.WheelSample{Timestamp: rec.Timestamp, RPM: rpm}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, rec.Source)
	}
}

// Reader decodes a record stream. Bytes that cannot start a well-formed
// record are dropped one at a time until the stream lines up again, so a
// stray byte costs nothing but itself.
type Reader struct {
	r         *bufio.Reader
	skipped   uint64
	inGarbage bool
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, 4096)}
}

// Next returns the next well-formed record. The payload is a fresh copy.
// io.EOF is returned at a clean end of stream and io.ErrUnexpectedEOF
// when the stream ends inside a record.
func (rd *Reader) Next() (models.Record, error) {
	for {
		head, err := rd.r.Peek(models.HeaderLen)
		if err != nil {
			if err == io.EOF && len(head) == 0 {
				return models.Record{}, io.EOF
			}
			if err == io.EOF {
				return models.Record{}, io.ErrUnexpectedEOF
			}
			return models.Record{}, err
		}
		if !plausibleHeader(head) {
			if err := rd.skip(); err != nil {
				return models.Record{}, err
			}
			continue
		}

		n := models.HeaderLen + int(head[5]) + models.TrailerLen
		full, err := rd.r.Peek(n)
		if err != nil && !errors.Is(err, io.EOF) {
			return models.Record{}, err
		}
		if err != nil {
			// too short for the claimed length; it may be garbage in
			// front of a shorter record
			if err := rd.skip(); err != nil {
				return models.Record{}, err
			}
			continue
		}

		rec, _, derr := Decode(full)
		if derr != nil {
			if err := rd.skip(); err != nil {
				return models.Record{}, err
			}
			continue
		}
		rec.Payload = append([]byte(nil), rec.Payload...)
		if _, err := rd.r.Discard(n); err != nil {
			return models.Record{}, err
		}
		rd.inGarbage = false
		return rec, nil
	}
}

// Skipped counts runs of corrupt bytes dropped while resynchronising.
func (rd *Reader) Skipped() uint64 { return rd.skipped }

func (rd *Reader) skip() error {
	if !rd.inGarbage {
		rd.inGarbage = true
		rd.skipped++
	}
	_, err := rd.r.Discard(1)
	return err
}

// plausibleHeader rejects headers whose source id is unknown or whose
// length byte cannot describe that source's payload.
func plausibleHeader(head []byte) bool {
	id := models.SourceID(head[4])
	plen := int(head[5])
	switch id {
	case models.SourceDistance:
		return plen > 0 && plen%2 == 0
	case models.SourceAccel, models.SourceGyro:
		return plen == models.PayloadLen(id, 1)
	case models.SourceWheel:
		return plen > 0 && plen%4 == 0
	}
	return false
}
