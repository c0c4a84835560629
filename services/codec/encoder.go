// Package codec converts samples to the binary log record format and back.
//
//	record := timestamp(u32 LE) source_id(u8) length(u8) payload 0x0D 0x0A
//
// Payloads, all little-endian:
//
//	distance (0x01)  N x u16
//	accel    (0x02)  X, Y, Z as i16
//	gyro     (0x03)  X, Y, Z as i16
//	wheel    (0x04)  W x f32 RPM
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"

	"telemetry-logger/models"
	"telemetry-logger/utils"
)

var (
	ErrUnknownSource  = errors.New("codec: source not configured")
	ErrSampleMismatch = errors.New("codec: sample does not match layout")
	ErrBufferTooSmall = errors.New("codec: record exceeds buffer capacity")
)

// Layout is the configured shape of one source's records. Count is the
// number of distance units or wheels; it is ignored for the IMU axes.
type Layout struct {
	Source models.SourceID
	Count  int
}

func (l Layout) PayloadLen() int { return models.PayloadLen(l.Source, l.Count) }
func (l Layout) RecordLen() int  { return models.RecordLen(l.Source, l.Count) }

// LayoutsFor builds layouts from a source→cardinality map in the fixed
// emission order.
func LayoutsFor(card map[models.SourceID]int) []Layout {
	out := make([]Layout, 0, len(card))
	for id, n := range card {
		out = append(out, Layout{Source: id, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}

// Encoder writes records for a fixed set of layouts. It keeps no state
// between calls; Encode is a pure function of its arguments.
type Encoder struct {
	layouts  [256]*Layout
	capacity int
	maxLen   int
}

// NewEncoder validates every layout against the working buffer capacity.
// Any layout that cannot fit is a configuration error.
func NewEncoder(layouts []Layout, capacity int) (*Encoder, error) {
	e := &Encoder{capacity: capacity}
	var errs []error
	for i := range layouts {
		l := layouts[i]
		switch {
		case !l.Source.Valid():
			errs = append(errs, utils.InvalidConfig("unknown source 0x%02x", uint8(l.Source)))
			continue
		case e.layouts[l.Source] != nil:
			errs = append(errs, utils.InvalidConfig("%s configured twice", l.Source))
			continue
		case (l.Source == models.SourceDistance || l.Source == models.SourceWheel) && l.Count < 1:
			errs = append(errs, utils.InvalidConfig("%s needs at least one channel", l.Source))
			continue
		case l.PayloadLen() > models.MaxPayloadLen:
			errs = append(errs, utils.InvalidConfig("%s payload %d bytes exceeds length field", l.Source, l.PayloadLen()))
			continue
		case l.RecordLen() > capacity:
			errs = append(errs, utils.InvalidConfig("%s record %d bytes exceeds buffer capacity %d",
				l.Source, l.RecordLen(), capacity))
			continue
		}
		e.layouts[l.Source] = &l
		if n := l.RecordLen(); n > e.maxLen {
			e.maxLen = n
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return e, nil
}

// Capacity is the working buffer size the encoder was validated against.
func (e *Encoder) Capacity() int { return e.capacity }

// MaxRecordLen is the largest record any configured source produces.
func (e *Encoder) MaxRecordLen() int { return e.maxLen }

// Layout returns the configured layout for id.
func (e *Encoder) Layout(id models.SourceID) (Layout, bool) {
	l := e.layouts[id]
	if l == nil {
		return Layout{}, false
	}
	return *l, true
}

// Encode writes one record for s into dst[:n] and returns that slice.
// The layout is chosen from s.Source() alone. On error nothing has been
// written to dst.
func (e *Encoder) Encode(dst []byte, ts uint32, s models.Sample) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil sample", ErrSampleMismatch)
	}
	id := s.Source()
	l := e.layouts[id]
	if l == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, id)
	}
	n := l.RecordLen()
	if n > cap(dst) {
		return nil, fmt.Errorf("%w: %s needs %d, have %d", ErrBufferTooSmall, id, n, cap(dst))
	}
	if err := checkShape(l, s); err != nil {
		return nil, err
	}

	buf := dst[:n]
	binary.LittleEndian.PutUint32(buf[0:4], ts)
	buf[4] = byte(id)
	buf[5] = byte(l.PayloadLen())
	p := buf[models.HeaderLen : n-models.TrailerLen]

	switch v := s.(type) {
	case *models.DistanceSample:
		for i, d := range v.Values {
			binary.LittleEndian.PutUint16(p[2*i:], d)
		}
	case *models.AxisSample:
		binary.LittleEndian.PutUint16(p[0:], uint16(v.X))
		binary.LittleEndian.PutUint16(p[2:], uint16(v.Y))
		binary.LittleEndian.PutUint16(p[4:], uint16(v.Z))
	case *models.WheelSample:
		for i, r := range v.RPM {
			binary.LittleEndian.PutUint32(p[4*i:], math.Float32bits(r))
		}
	}

	buf[n-2] = models.Terminator[0]
	buf[n-1] = models.Terminator[1]
	return buf, nil
}

func checkShape(l *Layout, s models.Sample) error {
	switch l.Source {
	case models.SourceDistance:
		v, ok := s.(*models.DistanceSample)
		if !ok || len(v.Values) != l.Count {
			return fmt.Errorf("%w: distance wants %d values", ErrSampleMismatch, l.Count)
		}
	case models.SourceAccel, models.SourceGyro:
		if _, ok := s.(*models.AxisSample); !ok {
			return fmt.Errorf("%w: %s wants an axis sample", ErrSampleMismatch, l.Source)
		}
	case models.SourceWheel:
		v, ok := s.(*models.WheelSample)
		if !ok || len(v.RPM) != l.Count {
			return fmt.Errorf("%w: wheel wants %d values", ErrSampleMismatch, l.Count)
		}
	}
	return nil
}
