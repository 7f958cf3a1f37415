// Package game runs the built-in rigid body scene headlessly: it wires the
// scene, the step manager, telemetry collection and CSV output together
// from the loaded configuration.
package game

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/pthm-cable/rigidsync/config"
	"github.com/pthm-cable/rigidsync/engine"
	"github.com/pthm-cable/rigidsync/rigid"
	"github.com/pthm-cable/rigidsync/scene"
	"github.com/pthm-cable/rigidsync/sim"
	"github.com/pthm-cable/rigidsync/telemetry"
)

// Options configures a Game.
type Options struct {
	Config    *config.Config // nil = config.Cfg()
	LogStats  bool           // Log window stats via slog
	OutputDir string         // Empty disables CSV output
	Logger    *slog.Logger   // nil = slog.Default()
}

// Metrics accumulates solver quality measurements over the run.
type Metrics struct {
	Steps          int
	AnchorErrorSum float64 // Distance between the joint anchor and the bob's anchor output
	AnchorErrorMax float64
	PenetrationSum float64 // Depth of the crate below the slab surface
	PenetrationMax float64
	StepErrors     int
}

// MeanAnchorError returns the anchor error averaged over all steps.
func (m Metrics) MeanAnchorError() float64 {
	if m.Steps == 0 {
		return 0
	}
	return m.AnchorErrorSum / float64(m.Steps)
}

// MeanPenetration returns the crate penetration averaged over all steps.
func (m Metrics) MeanPenetration() float64 {
	if m.Steps == 0 {
		return 0
	}
	return m.PenetrationSum / float64(m.Steps)
}

// Game holds the running scene and its telemetry.
type Game struct {
	cfg *config.Config
	log *slog.Logger

	sc      *scene.Scene
	manager *sim.Manager
	demo    *demoScene

	// Telemetry
	perfCollector *telemetry.PerfCollector
	collector     *telemetry.Collector
	outputManager *telemetry.OutputManager
	logStats      bool

	metrics  Metrics
	unloaded bool
}

// NewGameWithOptions builds the demo scene and everything needed to step it.
func NewGameWithOptions(opts Options) (*Game, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Cfg()
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	sc := scene.New(log)
	rigid.Register(sc, engine.New(engine.Options{
		InitialContacts:    cfg.Contacts.InitialCapacity,
		MaxContactsPerPair: cfg.Contacts.MaxPerPair,
	}))

	demo, err := buildScene(sc, cfg)
	if err != nil {
		return nil, fmt.Errorf("building scene: %w", err)
	}

	perf := telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow)
	manager := sim.New(sc, sim.Options{
		DT:             cfg.Physics.DT,
		Adaptive:       cfg.Physics.Adaptive,
		RecalcInterval: cfg.Physics.RecalcInterval,
		MinDT:          cfg.Physics.MinDT,
		MaxDT:          cfg.Physics.MaxDT,
		Perf:           perf,
		Logger:         log,
	})
	manager.Scan()

	om, err := telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		return nil, err
	}
	if err := om.WriteConfig(cfg); err != nil {
		log.Error("failed to write config snapshot", "error", err)
	}

	g := &Game{
		cfg:           cfg,
		log:           log,
		sc:            sc,
		manager:       manager,
		demo:          demo,
		perfCollector: perf,
		collector:     telemetry.NewCollector(cfg.Telemetry.StatsInterval),
		outputManager: om,
		logStats:      opts.LogStats,
	}
	log.Info("scene ready",
		"nodes", sc.Len(),
		"run_id", om.RunID(),
		"dt", cfg.Physics.DT,
	)
	return g, nil
}

// Update advances the simulation by one step. A failed step is logged and
// counted; the scene keeps running.
func (g *Game) Update() {
	err := g.manager.Step()
	if err != nil {
		g.log.Error("step failed", "tick", g.manager.Steps(), "error", err)
		g.collector.RecordError()
		g.metrics.StepErrors++
	}
	contacts, active := g.manager.LastContacts()
	g.collector.RecordStep(contacts, active)
	g.measure()
	g.flushTelemetry()
}

// measure samples the anchor drift of the pendulum and the crate's
// penetration into the slab from the pulled output fields.
func (g *Game) measure() {
	d := g.demo
	g.metrics.Steps++

	if v, err := scene.FieldByName(d.joint, "body1AnchorPoint"); err == nil {
		p := v.(scene.SFVec3f)
		e := math.Sqrt(sq(p[0]-d.anchor[0]) + sq(p[1]-d.anchor[1]) + sq(p[2]-d.anchor[2]))
		g.metrics.AnchorErrorSum += e
		g.metrics.AnchorErrorMax = math.Max(g.metrics.AnchorErrorMax, e)
	}
	if v, err := scene.FieldByName(d.crate, "position"); err == nil {
		depth := math.Max(0, float64(d.halfSize-v.(scene.SFVec3f)[1]))
		g.metrics.PenetrationSum += depth
		g.metrics.PenetrationMax = math.Max(g.metrics.PenetrationMax, depth)
	}
}

func sq(v float32) float64 { return float64(v) * float64(v) }

// Tick returns the number of completed steps.
func (g *Game) Tick() uint64 { return g.manager.Steps() }

// Metrics returns the measurements so far.
func (g *Game) Metrics() Metrics { return g.metrics }

// Scene returns the scene being simulated.
func (g *Game) Scene() *scene.Scene { return g.sc }

// Sensor returns the sensor watching the crate.
func (g *Game) Sensor() *rigid.CollisionSensor { return g.demo.sensor }

// Unload deletes every node, releasing the native world, and closes output.
func (g *Game) Unload() {
	if g.unloaded {
		return
	}
	g.unloaded = true

	var nodes []scene.Node
	g.sc.Scan(func(n scene.Node) bool {
		nodes = append(nodes, n)
		return true
	})
	// The collection goes first so its world is destroyed once, as a whole.
	g.sc.DeleteNode(g.demo.world)
	for _, n := range nodes {
		g.sc.DeleteNode(n)
	}
	if err := g.outputManager.Close(); err != nil {
		g.log.Error("failed to close output", "error", err)
	}
}
