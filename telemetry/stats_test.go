package telemetry

import (
	"math"
	"testing"
)

func TestPercentile(t *testing.T) {
	tests := []struct {
		name   string
		sorted []float64
		p      float64
		want   float64
	}{
		{"empty slice", []float64{}, 0.5, 0},
		{"single element", []float64{5.0}, 0.5, 5.0},
		{"p0", []float64{1, 2, 3, 4, 5}, 0.0, 1.0},
		{"p100", []float64{1, 2, 3, 4, 5}, 1.0, 5.0},
		{"p50 odd", []float64{1, 2, 3, 4, 5}, 0.5, 3.0},
		{"p50 even", []float64{1, 2, 3, 4}, 0.5, 2.5},
		{"p10", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.1, 1.9},
		{"p90", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.9, 9.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Percentile(tt.sorted, tt.p)
			if math.Abs(got-tt.want) > 0.001 {
				t.Errorf("Percentile(%v, %v) = %v, want %v", tt.sorted, tt.p, got, tt.want)
			}
		})
	}
}

func TestComputeCountStats(t *testing.T) {
	mean, p50, p90, max := ComputeCountStats([]int{0, 2, 4, 6, 8})

	if math.Abs(mean-4) > 0.001 {
		t.Errorf("mean = %v, want 4", mean)
	}
	if math.Abs(p50-4) > 0.001 {
		t.Errorf("p50 = %v, want 4", p50)
	}
	if math.Abs(p90-7.2) > 0.001 {
		t.Errorf("p90 = %v, want 7.2", p90)
	}
	if max != 8 {
		t.Errorf("max = %v, want 8", max)
	}
}

func TestComputeCountStatsEmpty(t *testing.T) {
	mean, p50, p90, max := ComputeCountStats(nil)

	if mean != 0 || p50 != 0 || p90 != 0 || max != 0 {
		t.Error("empty slice should return all zeros")
	}
}

func TestCollectorFlush(t *testing.T) {
	c := NewCollector(3)

	c.RecordStep(1, false)
	c.RecordStep(3, true)
	if c.ShouldFlush(2) {
		t.Error("window should not be full after 2 steps")
	}
	c.RecordStep(5, true)
	c.RecordError()
	if !c.ShouldFlush(3) {
		t.Fatal("window should be full after 3 steps")
	}

	stats := c.Flush(3, 0.06, 0.02, SceneSample{Bodies: 2, Awake: 1, KineticEnergy: 4.5})

	if stats.WindowStartStep != 0 || stats.WindowEndStep != 3 {
		t.Errorf("window = [%d,%d], want [0,3]", stats.WindowStartStep, stats.WindowEndStep)
	}
	if stats.ContactsMean != 3 || stats.ContactsMax != 5 {
		t.Errorf("contacts mean/max = %v/%v, want 3/5", stats.ContactsMean, stats.ContactsMax)
	}
	if stats.ActiveSteps != 2 || stats.StepErrors != 1 {
		t.Errorf("active/errors = %d/%d, want 2/1", stats.ActiveSteps, stats.StepErrors)
	}
	if stats.Bodies != 2 || stats.KineticEnergy != 4.5 {
		t.Errorf("scene sample not carried: %+v", stats)
	}

	// Counters reset for the next window
	if c.ShouldFlush(5) {
		t.Error("new window should start at step 3")
	}
	next := c.Flush(6, 0.12, 0.02, SceneSample{})
	if next.ContactsMax != 0 || next.ActiveSteps != 0 || next.StepErrors != 0 {
		t.Errorf("counters not reset: %+v", next)
	}
}
