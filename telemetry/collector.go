package telemetry

// Collector accumulates per-step samples within windows and produces WindowStats.
type Collector struct {
	windowSteps uint64

	// Current window tracking
	windowStartStep uint64

	contacts    []int
	activeSteps int
	stepErrors  int
}

// NewCollector creates a new stats collector.
// windowSteps: how many physics steps each stats window covers.
func NewCollector(windowSteps int) *Collector {
	if windowSteps < 1 {
		windowSteps = 1
	}
	return &Collector{
		windowSteps: uint64(windowSteps),
		contacts:    make([]int, 0, windowSteps),
	}
}

// RecordStep records the contacts generated in one step and whether any
// sensor was active afterwards.
func (c *Collector) RecordStep(contacts int, sensorActive bool) {
	c.contacts = append(c.contacts, contacts)
	if sensorActive {
		c.activeSteps++
	}
}

// RecordError records a step that reported an error.
func (c *Collector) RecordError() {
	c.stepErrors++
}

// ShouldFlush returns true if enough steps have passed to flush the window.
func (c *Collector) ShouldFlush(currentStep uint64) bool {
	return currentStep-c.windowStartStep >= c.windowSteps
}

// SceneSample holds the scene state sampled at window end.
type SceneSample struct {
	Worlds        int
	Bodies        int
	Awake         int
	Joints        int
	KineticEnergy float64 // Translational, awake bodies only
	SpeedMax      float64
}

// Flush produces a WindowStats and resets counters for the next window.
func (c *Collector) Flush(currentStep uint64, simTime, dt float64, sample SceneSample) WindowStats {
	mean, p50, p90, max := ComputeCountStats(c.contacts)

	stats := WindowStats{
		WindowStartStep: c.windowStartStep,
		WindowEndStep:   currentStep,
		SimTimeSec:      simTime,
		DT:              dt,
		Worlds:          sample.Worlds,
		Bodies:          sample.Bodies,
		Awake:           sample.Awake,
		Joints:          sample.Joints,
		ContactsMean:    mean,
		ContactsP50:     p50,
		ContactsP90:     p90,
		ContactsMax:     max,
		ActiveSteps:     c.activeSteps,
		KineticEnergy:   sample.KineticEnergy,
		SpeedMax:        sample.SpeedMax,
		StepErrors:      c.stepErrors,
	}

	c.windowStartStep = currentStep
	c.contacts = c.contacts[:0]
	c.activeSteps = 0
	c.stepErrors = 0

	return stats
}
