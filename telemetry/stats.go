package telemetry

import (
	"log/slog"
	"sort"
)

// WindowStats holds aggregated statistics for a window of physics steps.
type WindowStats struct {
	RunID           string  `csv:"run_id"`
	WindowStartStep uint64  `csv:"-"`
	WindowEndStep   uint64  `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`
	DT              float64 `csv:"dt"`

	// Scene counts at window end
	Worlds int `csv:"worlds"`
	Bodies int `csv:"bodies"`
	Awake  int `csv:"awake"`
	Joints int `csv:"joints"`

	// Contacts generated per step during the window
	ContactsMean float64 `csv:"contacts_mean"`
	ContactsP50  float64 `csv:"contacts_p50"`
	ContactsP90  float64 `csv:"contacts_p90"`
	ContactsMax  int     `csv:"contacts_max"`
	ActiveSteps  int     `csv:"sensor_active_steps"` // Steps with at least one active sensor

	// Energy (sampled at window end)
	KineticEnergy float64 `csv:"kinetic_energy"`
	SpeedMax      float64 `csv:"speed_max"`

	StepErrors int `csv:"step_errors"`
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// ComputeCountStats calculates mean, median, p90 and max of per-step counts.
func ComputeCountStats(counts []int) (mean, p50, p90 float64, max int) {
	n := len(counts)
	if n == 0 {
		return 0, 0, 0, 0
	}

	sorted := make([]float64, n)
	var sum float64
	for i, c := range counts {
		sorted[i] = float64(c)
		sum += float64(c)
		if c > max {
			max = c
		}
	}
	mean = sum / float64(n)

	sort.Float64s(sorted)
	p50 = Percentile(sorted, 0.50)
	p90 = Percentile(sorted, 0.90)

	return mean, p50, p90, max
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("window_start", s.WindowStartStep),
		slog.Uint64("window_end", s.WindowEndStep),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Float64("dt", s.DT),
		slog.Int("worlds", s.Worlds),
		slog.Int("bodies", s.Bodies),
		slog.Int("awake", s.Awake),
		slog.Int("joints", s.Joints),
		slog.Float64("contacts_mean", s.ContactsMean),
		slog.Float64("contacts_p50", s.ContactsP50),
		slog.Float64("contacts_p90", s.ContactsP90),
		slog.Int("contacts_max", s.ContactsMax),
		slog.Int("sensor_active_steps", s.ActiveSteps),
		slog.Float64("kinetic_energy", s.KineticEnergy),
		slog.Float64("speed_max", s.SpeedMax),
		slog.Int("step_errors", s.StepErrors),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats",
		"window_end", s.WindowEndStep,
		"sim_time", s.SimTimeSec,
		"dt", s.DT,
		"bodies", s.Bodies,
		"awake", s.Awake,
		"joints", s.Joints,
		"contacts_mean", s.ContactsMean,
		"contacts_max", s.ContactsMax,
		"sensor_active_steps", s.ActiveSteps,
		"kinetic_energy", s.KineticEnergy,
		"speed_max", s.SpeedMax,
		"step_errors", s.StepErrors,
	)
}
