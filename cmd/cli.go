package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"telemetry-logger/controller"
	"telemetry-logger/models"
	"telemetry-logger/services/clock"
	"telemetry-logger/services/codec"
	"telemetry-logger/services/logfile"
	"telemetry-logger/services/metrics"
	"telemetry-logger/services/sink"
	"telemetry-logger/utils"
)

var configFile string

func buildCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "telemetry-logger",
		Short: "Onboard vehicle telemetry logger",
		Long: `telemetry-logger samples the distance array, IMU and wheel-speed
sources once per scheduling cycle, encodes due samples into fixed binary
records and writes them to a numbered session log and the live transports.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config/logger.yaml", "config file path")

	rootCmd.AddCommand(buildRunCommand())
	rootCmd.AddCommand(buildCheckCommand())
	return rootCmd
}

func buildRunCommand() *cobra.Command {
	var logLevel string
	var logFile string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start logging until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogger(logLevel, logFile)
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
	cmd.Flags().StringVar(&logFile, "log", "", "optional log file path (stdout is always included)")
	return cmd
}

func buildCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and print record sizes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := utils.LoadConfig(configFile)
			if err != nil {
				return err
			}
			enc, err := codec.NewEncoder(codec.LayoutsFor(cfg.Cardinality()), cfg.BufferCapacity)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SOURCE\tID\tCOUNT\tPAYLOAD\tRECORD")
			for _, id := range models.Sources {
				l, ok := enc.Layout(id)
				if !ok {
					continue
				}
				fmt.Fprintf(w, "%s\t0x%02x\t%d\t%d\t%d\n", id, uint8(id), l.Count, l.PayloadLen(), l.RecordLen())
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "buffer_capacity=%d  max_record=%d  ok\n", enc.Capacity(), enc.MaxRecordLen())
			return nil
		},
	}
}

func runLogger(levelFlag, logFile string) error {
	cfg, err := utils.LoadConfig(configFile)
	if err != nil {
		return err
	}
	if levelFlag != "" {
		cfg.Log.Level = levelFlag
	}
	if logFile != "" {
		cfg.Log.File = logFile
	}
	level, err := utils.ParseLevel(cfg.Log.Level)
	if err != nil {
		return utils.InvalidConfig("--log-level: %v", err)
	}

	logger := utils.InitLogger(level, cfg.Log.File)
	// InitLogger keeps the level of an already-created logger
	logger.SetLevel(level)
	defer logger.Close()

	utils.L().Info("═══════════════════════════════════════════════════")
	utils.L().Info("  telemetry-logger  ·  onboard binary record logger")
	utils.L().Info("  GOMAXPROCS=%d  ·  PID=%d", runtime.GOMAXPROCS(0), os.Getpid())
	utils.L().Info("═══════════════════════════════════════════════════")

	ready := controller.NewReadiness()
	ready.MarkConfigLoaded()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Simulation.Enabled && cfg.Simulation.DurationSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.Simulation.DurationSeconds)*time.Second)
		defer cancel()
		utils.L().Info("simulation will auto-stop after %ds", cfg.Simulation.DurationSeconds)
	}

	clk := clock.NewReal(cfg.Clock.TicksPerSecond)

	// ── Metrics ──────────────────────────────────────────────────────
	var (
		obs sink.Observer
		rec controller.Recorder
	)
	if cfg.Metrics.Enabled {
		collector := metrics.NewCollector(nil)
		obs, rec = collector, collector
		go func() {
			if err := collector.StartServer(ctx, cfg.Metrics.Port); err != nil {
				utils.L().Error("metrics server: %v", err)
			}
		}()
		utils.L().Info("metrics on :%d/metrics", cfg.Metrics.Port)
	}

	// ── Storage ──────────────────────────────────────────────────────
	var mgr *logfile.Manager
	if cfg.Sinks.File.Enabled {
		mgr, err = logfile.OpenSession(ctx, logfile.ConfigFrom(cfg.Storage, cfg.Clock.TicksPerSecond))
		if err != nil {
			utils.L().Error("storage unavailable: %v", err)
			return err
		}
	}
	ready.MarkFilesystemReady()

	// ── Pipeline assembly ────────────────────────────────────────────
	//
	//  acquisition ──► sample sources ──► gates ──► encoder ──► fan-out
	//                                                              │
	//                            session log · serial · nats · websocket · diagnostic
	fan := buildSinks(ctx, cfg, mgr, obs)

	sources := controller.NewSourcesController(cfg, clk)
	sources.Start(ctx)

	lc := controller.NewLoggerController(cfg, controller.LoggerDeps{
		Clock:     clk,
		Readiness: ready,
		Bindings:  controller.NewBindings(cfg, sources),
		FanOut:    fan,
		Log:       mgr,
		Metrics:   rec,
	})

	go func() {
		statsTicker := time.NewTicker(5 * time.Second)
		defer statsTicker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-statsTicker.C:
				utils.L().Info("── stats ─────────────────────────")
				sources.LogStats()
				lc.LogStats()
				utils.L().Info("──────────────────────────────────")
			}
		}
	}()

	utils.L().Info("logger starting, press Ctrl+C to stop")
	if err := lc.Run(ctx); err != nil {
		utils.L().Error("logger stopped with error: %v", err)
		return err
	}

	lc.LogStats()
	if mgr != nil {
		fmt.Println("\n✓ telemetry-logger finished. Session log:", mgr.Path())
	}
	return nil
}

// buildSinks adds every enabled sink. Transport sinks that cannot be
// set up are skipped with a warning; logging continues without them.
func buildSinks(ctx context.Context, cfg *utils.Config, mgr *logfile.Manager, obs sink.Observer) *sink.FanOut {
	fan := sink.NewFanOut(obs)
	sc := cfg.Sinks

	if mgr != nil {
		fan.Add(sink.NewFileSink(mgr))
	}
	if sc.Serial.Enabled {
		s, err := sink.OpenSerial(sc.Serial.Device, sc.Serial.QueueSize)
		if err != nil {
			utils.L().Warn("serial sink disabled: %v", err)
		} else {
			fan.Add(s)
		}
	}
	if sc.NATS.Enabled {
		s, err := sink.ConnectNATS(sc.NATS.URL, sc.NATS.Subject)
		if err != nil {
			utils.L().Warn("nats sink disabled: %v", err)
		} else {
			fan.Add(s)
		}
	}
	if sc.WebSocket.Enabled {
		ws := sink.NewWebSocketSink(sc.WebSocket.Path, sc.WebSocket.ClientBuffer)
		go func() {
			if err := ws.Serve(ctx, sc.WebSocket.Listen); err != nil {
				utils.L().Warn("websocket sink: %v", err)
			}
		}()
		fan.Add(ws)
	}
	if sc.Diagnostic.Enabled {
		fan.Add(sink.NewDiagnosticSink(utils.L(), sc.Diagnostic.MaxPerSecond, sc.Diagnostic.Verbose))
	}

	utils.L().Info("sinks: %v", fan.Names())
	return fan
}
