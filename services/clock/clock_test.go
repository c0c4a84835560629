package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFake(t *testing.T) {
	f := NewFake(10, 1000)
	assert.Equal(t, uint32(10), f.Now())
	assert.Equal(t, uint32(15), f.Advance(5))
	assert.Equal(t, uint32(15), f.Now())

	f.Set(0xFFFFFFFF)
	assert.Equal(t, uint32(1), f.Advance(2), "wraps like the hardware counter")
	assert.Equal(t, uint32(1000), f.TicksPerSecond())
}

func TestStepping(t *testing.T) {
	s := NewStepping(0, 3, 1000)
	assert.Equal(t, uint32(3), s.Now())
	assert.Equal(t, uint32(6), s.Now())
}

func TestReal_Monotonic(t *testing.T) {
	r := NewReal(0)
	assert.Equal(t, uint32(1000), r.TicksPerSecond())

	a := r.Now()
	time.Sleep(5 * time.Millisecond)
	b := r.Now()
	assert.GreaterOrEqual(t, b-a, uint32(4))
}
