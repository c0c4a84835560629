package utils

import "time"

// DefaultTicksPerSecond is the tick rate of the flight scheduler.
const DefaultTicksPerSecond = 1000

// MsToTicks converts a millisecond interval to scheduler ticks, rounding
// up so that a nonzero interval never collapses to zero ticks. Zero stays
// zero and means "every cycle".
func MsToTicks(ms int, ticksPerSecond uint32) uint32 {
	if ms <= 0 {
		return 0
	}
	return uint32((uint64(ms)*uint64(ticksPerSecond) + 999) / 1000)
}

// TicksToDuration converts a tick count back to wall time.
func TicksToDuration(ticks uint32, ticksPerSecond uint32) time.Duration {
	if ticksPerSecond == 0 {
		return 0
	}
	return time.Duration(uint64(ticks) * uint64(time.Second) / uint64(ticksPerSecond))
}
