package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordLen(t *testing.T) {
	assert.Equal(t, 12, RecordLen(SourceDistance, 2))
	assert.Equal(t, 14, RecordLen(SourceAccel, 1))
	assert.Equal(t, 14, RecordLen(SourceGyro, 1))
	assert.Equal(t, 24, RecordLen(SourceWheel, 4))
	assert.Equal(t, -1, RecordLen(SourceID(9), 1))
}

func TestMaxCount(t *testing.T) {
	assert.Equal(t, 60, MaxCount(SourceDistance, 128))
	assert.Equal(t, 30, MaxCount(SourceWheel, 128))
	assert.Equal(t, 1, MaxCount(SourceAccel, 14))
	assert.Equal(t, 0, MaxCount(SourceGyro, 13))
	assert.Equal(t, 127, MaxCount(SourceDistance, 4096), "bounded by the length byte")
	assert.Equal(t, 63, MaxCount(SourceWheel, 4096))
	assert.Equal(t, 0, MaxCount(SourceDistance, 4))

	for c := 8; c <= 300; c++ {
		for _, id := range Sources {
			if n := MaxCount(id, c); n > 0 {
				assert.LessOrEqual(t, RecordLen(id, n), c)
				assert.LessOrEqual(t, PayloadLen(id, n), MaxPayloadLen)
			}
		}
	}
}

func TestSourceID(t *testing.T) {
	assert.Equal(t, "distance", SourceDistance.String())
	assert.Equal(t, "source(0x09)", SourceID(9).String())
	assert.True(t, SourceWheel.Valid())
	assert.False(t, SourceID(0).Valid())
}
