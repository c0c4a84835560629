package controller

import (
	"fmt"

	"telemetry-logger/models"
	"telemetry-logger/services/gate"
	"telemetry-logger/services/ingest"
	"telemetry-logger/utils"
)

// Binding pairs a source with the gate that decides when it is logged.
type Binding struct {
	Source ingest.Source
	Gate   gate.Gate
}

// NewBindings returns one binding per enabled source in wire-id order.
// Distance and wheel speed are level gated on the configured interval;
// the IMU sub-streams are edge gated on their own timestamps.
func NewBindings(cfg *utils.Config, sc *SourcesController) []Binding {
	tps := cfg.Clock.TicksPerSecond
	var out []Binding
	for _, id := range models.Sources {
		switch id {
		case models.SourceDistance:
			if sc.Distance != nil {
				out = append(out, Binding{
					Source: sc.Distance,
					Gate:   gate.NewLevel(utils.MsToTicks(cfg.Sources.Distance.MinIntervalMs, tps)),
				})
			}
		case models.SourceAccel:
			if sc.IMU != nil {
				out = append(out, Binding{Source: sc.IMU.Accel(), Gate: gate.NewEdge()})
			}
		case models.SourceGyro:
			if sc.IMU != nil {
				out = append(out, Binding{Source: sc.IMU.Gyro(), Gate: gate.NewEdge()})
			}
		case models.SourceWheel:
			if sc.Wheel != nil {
				out = append(out, Binding{
					Source: sc.Wheel,
					Gate:   gate.NewLevel(utils.MsToTicks(cfg.Sources.Wheel.MinIntervalMs, tps)),
				})
			}
		}
	}
	return out
}

// Describe renders the binding's gate policy in wall time.
func (b Binding) Describe(ticksPerSecond uint32) string {
	if l, ok := b.Gate.(*gate.Level); ok {
		return fmt.Sprintf("level min_interval=%s", utils.TicksToDuration(l.MinInterval, ticksPerSecond))
	}
	return "edge"
}
