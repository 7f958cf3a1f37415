package game

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pthm-cable/rigidsync/config"
	"github.com/pthm-cable/rigidsync/rigid"
)

func newTestGame(t *testing.T, outputDir string) *Game {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	g, err := NewGameWithOptions(Options{Config: cfg, OutputDir: outputDir})
	if err != nil {
		t.Fatalf("NewGameWithOptions: %v", err)
	}
	t.Cleanup(g.Unload)
	return g
}

func TestSceneBinds(t *testing.T) {
	g := newTestGame(t, "")
	d := g.demo

	if d.world.State() != rigid.Bound {
		t.Fatalf("world state: got %v, want bound", d.world.State())
	}
	for name, b := range map[string]rigid.Binding{"crate": d.crate, "bob": d.bob, "joint": d.joint} {
		if b.State() != rigid.Bound {
			t.Errorf("%s state: got %v, want bound", name, b.State())
		}
	}
	if d.joint.Outputs() != 1 {
		t.Errorf("joint outputs: got %d, want 1", d.joint.Outputs())
	}
}

func TestUpdateStepsScene(t *testing.T) {
	g := newTestGame(t, "")

	sawContact := false
	for i := 0; i < 150; i++ {
		g.Update()
		sawContact = sawContact || g.Sensor().Active()
	}

	if g.Tick() != 150 {
		t.Errorf("Tick: got %d, want 150", g.Tick())
	}
	m := g.Metrics()
	if m.Steps != 150 {
		t.Errorf("Metrics.Steps: got %d, want 150", m.Steps)
	}
	if m.StepErrors != 0 {
		t.Errorf("StepErrors: got %d, want 0", m.StepErrors)
	}
	if !sawContact {
		t.Error("crate never touched the slab")
	}
	if m.PenetrationMax >= float64(g.demo.halfSize) {
		t.Errorf("crate sank through the slab: penetration %v", m.PenetrationMax)
	}
	if m.AnchorErrorMax > 0.5 {
		t.Errorf("pendulum left its anchor: max error %v", m.AnchorErrorMax)
	}
}

func TestUnloadReleasesWorld(t *testing.T) {
	g := newTestGame(t, "")
	g.Update()
	g.Unload()
	g.Unload()

	if g.demo.bob.Handle() != nil {
		t.Error("bob still holds a native body after Unload")
	}
	if g.demo.world.State() == rigid.Bound {
		t.Error("world still bound after Unload")
	}
}

func TestOutputWritesStats(t *testing.T) {
	dir := t.TempDir()
	g := newTestGame(t, dir)
	for i := 0; i < g.cfg.Telemetry.StatsInterval; i++ {
		g.Update()
	}
	g.Unload()

	for _, name := range []string{"steps.csv", "perf.csv", "config.yaml"} {
		matches, err := filepath.Glob(filepath.Join(dir, "*", name))
		if err != nil || len(matches) != 1 {
			t.Fatalf("%s: got %v (%v), want one file", name, matches, err)
		}
		info, err := os.Stat(matches[0])
		if err != nil {
			t.Fatal(err)
		}
		if info.Size() == 0 {
			t.Errorf("%s is empty", name)
		}
	}
}
