package controller

import (
	"context"

	"telemetry-logger/services/clock"
	"telemetry-logger/services/ingest"
	"telemetry-logger/utils"
)

// SourcesController owns the sample-source adapters for every enabled
// sensor family and, in simulation mode, the reader goroutines that feed
// them. Hardware drivers publish into the same adapters.
type SourcesController struct {
	Distance *ingest.DistanceArray
	IMU      *ingest.IMU
	Wheel    *ingest.WheelSpeed

	readers []*ingest.SimReader
}

// NewSourcesController creates an adapter for every enabled source.
func NewSourcesController(cfg *utils.Config, clk clock.Clock) *SourcesController {
	sc := &SourcesController{}
	sim := cfg.Simulation.Enabled
	src := cfg.Sources

	if src.Distance.Enabled {
		sc.Distance = ingest.NewDistanceArray(src.Distance.Units)
		if sim {
			sc.readers = append(sc.readers, ingest.NewDistanceSim(sc.Distance, clk, src.Distance.UpdateRateHz))
		}
	}
	if src.IMU.Enabled {
		sc.IMU = ingest.NewIMU()
		if sim {
			sc.readers = append(sc.readers,
				ingest.NewAccelSim(sc.IMU, clk, src.IMU.AccelRateHz),
				ingest.NewGyroSim(sc.IMU, clk, src.IMU.GyroRateHz))
		}
	}
	if src.Wheel.Enabled {
		sc.Wheel = ingest.NewWheelSpeed(src.Wheel.Wheels)
		if sim {
			sc.readers = append(sc.readers, ingest.NewWheelSim(sc.Wheel, clk, src.Wheel.UpdateRateHz))
		}
	}
	return sc
}

// Start launches the simulated readers, if any.
func (sc *SourcesController) Start(ctx context.Context) {
	for _, r := range sc.readers {
		r.Start(ctx)
	}
	if len(sc.readers) == 0 {
		utils.L().Info("sources controller: no simulated readers, waiting on hardware drivers")
		return
	}
	utils.L().Info("sources controller: %d simulated readers launched", len(sc.readers))
}

// Sources lists the enabled adapters in record order.
func (sc *SourcesController) Sources() []ingest.Source {
	var out []ingest.Source
	if sc.Distance != nil {
		out = append(out, sc.Distance)
	}
	if sc.IMU != nil {
		out = append(out, sc.IMU.Accel(), sc.IMU.Gyro())
	}
	if sc.Wheel != nil {
		out = append(out, sc.Wheel)
	}
	return out
}

// LogStats prints how many samples each adapter has published, then the
// produced counter of each simulated reader.
func (sc *SourcesController) LogStats() {
	for _, s := range sc.Sources() {
		utils.L().Info("  %-8s published=%d", s.ID(), s.Published())
	}
	for _, r := range sc.readers {
		utils.L().Info("  %-8s produced=%d", r.Name(), r.Stats())
	}
}
