package main

import (
	"flag"
	"log/slog"
	"os"
	"strings"

	"github.com/pthm-cable/rigidsync/config"
	"github.com/pthm-cable/rigidsync/game"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	logStats := flag.Bool("log-stats", false, "Output stats via slog")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot (overrides config)")
	maxTicks := flag.Int("max-ticks", 0, "Stop after N ticks (0 = use demo.steps from config)")

	flag.Parse()

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	// Set up slog (JSON to stdout for structured logging unless configured otherwise)
	hopts := &slog.HandlerOptions{Level: parseLevel(cfg.Log.Level)}
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, hopts)
	if cfg.Log.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, hopts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	dir := cfg.Telemetry.OutputDir
	if *outputDir != "" {
		dir = *outputDir
	}
	ticks := cfg.Demo.Steps
	if *maxTicks > 0 {
		ticks = *maxTicks
	}

	g, err := game.NewGameWithOptions(game.Options{
		Config:    cfg,
		LogStats:  *logStats,
		OutputDir: dir,
		Logger:    logger,
	})
	if err != nil {
		slog.Error("failed to build scene", "error", err)
		os.Exit(1)
	}
	defer g.Unload()

	slog.Info("starting simulation",
		"max_ticks", ticks,
		"dt", cfg.Physics.DT,
		"adaptive", cfg.Physics.Adaptive,
	)

	for int(g.Tick()) < ticks {
		g.Update()
	}

	m := g.Metrics()
	slog.Info("max ticks reached",
		"tick", g.Tick(),
		"anchor_error_mean", m.MeanAnchorError(),
		"anchor_error_max", m.AnchorErrorMax,
		"penetration_mean", m.MeanPenetration(),
		"penetration_max", m.PenetrationMax,
		"step_errors", m.StepErrors,
	)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
