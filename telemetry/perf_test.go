package telemetry

import (
	"testing"
	"time"
)

func TestPerfCollector_BasicTiming(t *testing.T) {
	pc := NewPerfCollector(10)

	// Simulate a few ticks
	for i := 0; i < 5; i++ {
		pc.StartTick()
		pc.StartPhase(PhaseCollide)
		time.Sleep(100 * time.Microsecond)
		pc.StartPhase(PhaseEvaluate)
		time.Sleep(200 * time.Microsecond)
		pc.EndTick()
	}

	stats := pc.Stats()

	// Verify we got timing data
	if stats.AvgTickDuration <= 0 {
		t.Error("expected positive average tick duration")
	}

	// Verify phases are tracked
	if len(stats.PhaseAvg) == 0 {
		t.Error("expected phase averages to be populated")
	}

	if _, ok := stats.PhaseAvg[PhaseCollide]; !ok {
		t.Error("expected collide phase to be tracked")
	}

	if _, ok := stats.PhaseAvg[PhaseEvaluate]; !ok {
		t.Error("expected evaluate phase to be tracked")
	}
}

func TestPerfCollector_RollingWindow(t *testing.T) {
	pc := NewPerfCollector(5) // Small window

	// Fill window completely
	for i := 0; i < 10; i++ {
		pc.StartTick()
		pc.StartPhase(PhaseCollide)
		pc.EndTick()
	}

	stats := pc.Stats()

	// Should have data
	if stats.AvgTickDuration <= 0 {
		t.Error("expected positive average tick duration after window filled")
	}

	if stats.TicksPerSecond <= 0 {
		t.Error("expected positive ticks per second")
	}
}

func TestPerfCollector_PhasePercentages(t *testing.T) {
	pc := NewPerfCollector(10)

	// Simulate with uneven phase durations
	for i := 0; i < 5; i++ {
		pc.StartTick()
		pc.StartPhase("fast")
		time.Sleep(10 * time.Microsecond)
		pc.StartPhase("slow")
		time.Sleep(100 * time.Microsecond)
		pc.EndTick()
	}

	stats := pc.Stats()

	fastPct := stats.PhasePct["fast"]
	slowPct := stats.PhasePct["slow"]

	// Slow phase should take more % than fast
	if slowPct <= fastPct {
		t.Errorf("expected slow phase (%v%%) > fast phase (%v%%)", slowPct, fastPct)
	}
}

func TestPerfCollector_EmptyStats(t *testing.T) {
	pc := NewPerfCollector(10)

	stats := pc.Stats()

	// Empty collector should return zero values without panicking
	if stats.AvgTickDuration != 0 {
		t.Error("expected zero avg tick duration for empty collector")
	}

	if stats.PhaseAvg == nil {
		t.Error("expected non-nil PhaseAvg map")
	}

	if stats.PhasePct == nil {
		t.Error("expected non-nil PhasePct map")
	}
}

func TestPerfCollector_FakeClock(t *testing.T) {
	pc := NewPerfCollector(4)
	now := time.Unix(0, 0)
	pc.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		pc.StartTick()
		pc.StartPhase(PhaseEvaluate)
		now = now.Add(3 * time.Millisecond)
		pc.StartPhase(PhaseCollide)
		now = now.Add(1 * time.Millisecond)
		pc.EndTick()
	}

	stats := pc.Stats()

	if stats.AvgTickDuration != 4*time.Millisecond {
		t.Errorf("expected 4ms ticks, got %v", stats.AvgTickDuration)
	}
	if stats.PhaseAvg[PhaseEvaluate] != 3*time.Millisecond {
		t.Errorf("expected 3ms evaluate, got %v", stats.PhaseAvg[PhaseEvaluate])
	}
	if pct := stats.PhasePct[PhaseCollide]; pct < 24.9 || pct > 25.1 {
		t.Errorf("expected collide at 25%%, got %v", pct)
	}
	if stats.TicksPerSecond != 250 {
		t.Errorf("expected 250 ticks per second, got %v", stats.TicksPerSecond)
	}

	rec := stats.ToCSV(2)
	if rec.WindowEnd != 2 || rec.EvaluatePct < 74.9 || rec.EvaluatePct > 75.1 {
		t.Errorf("unexpected csv record %+v", rec)
	}
}
