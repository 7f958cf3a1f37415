package main

import (
	"io"
	"log/slog"
	"math"
	"sync"

	"github.com/pthm-cable/rigidsync/config"
	"github.com/pthm-cable/rigidsync/game"
)

// Fitness weights. Anchor drift is measured in meters; penetration counts
// more since a crate sinking into the slab is visible immediately.
const (
	weightPenetration = 5.0
	weightIterations  = 0.002 // Per solver iteration, favors cheaper steps
	penaltyStepError  = 10.0
)

// FitnessEvaluator runs headless simulations and computes fitness.
type FitnessEvaluator struct {
	params      *ParamVector
	maxTicks    int
	dropHeights []float64
	baseConfig  *config.Config
	quiet       *slog.Logger

	// Best run tracking
	mu          sync.Mutex
	bestFitness float64
	bestMetrics []game.Metrics
	lastMetrics game.Metrics // metrics of the first scenario of the most recent Evaluate call
}

// NewFitnessEvaluator creates a new evaluator. Each evaluation runs one
// scene per drop height.
func NewFitnessEvaluator(params *ParamVector, maxTicks int, dropHeights []float64, baseCfg *config.Config) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		maxTicks:    maxTicks,
		dropHeights: dropHeights,
		baseConfig:  baseCfg,
		quiet:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		bestFitness: math.Inf(1),
	}
}

// BestMetrics returns the per-scenario metrics of the best evaluation.
func (fe *FitnessEvaluator) BestMetrics() []game.Metrics {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.bestMetrics
}

// LastMetrics returns the metrics from the most recent evaluation.
func (fe *FitnessEvaluator) LastMetrics() game.Metrics {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastMetrics
}

// Evaluate computes fitness for a parameter vector (lower = better).
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	// Run all scenarios in parallel; every run owns its scene and world.
	results := make([]game.Metrics, len(fe.dropHeights))
	var wg sync.WaitGroup

	for i, h := range fe.dropHeights {
		wg.Add(1)
		go func(idx int, height float64) {
			defer wg.Done()
			results[idx] = fe.runSimulation(x, height)
		}(i, h)
	}
	wg.Wait()

	cfg := fe.copyConfig()
	fe.params.ApplyToConfig(cfg, x)

	var total float64
	for _, m := range results {
		total += fe.computeFitness(m, cfg.Physics.Iterations)
	}
	avgFitness := total / float64(len(results))

	// Update best tracking
	fe.mu.Lock()
	if avgFitness < fe.bestFitness {
		fe.bestFitness = avgFitness
		fe.bestMetrics = results
	}
	if len(results) > 0 {
		fe.lastMetrics = results[0]
	}
	fe.mu.Unlock()

	return avgFitness
}

// runSimulation executes a single headless run of the demo scene.
func (fe *FitnessEvaluator) runSimulation(x []float64, dropHeight float64) game.Metrics {
	cfg := fe.copyConfig()
	fe.params.ApplyToConfig(cfg, x)
	cfg.Demo.DropHeight = dropHeight

	g, err := game.NewGameWithOptions(game.Options{Config: cfg, Logger: fe.quiet})
	if err != nil {
		// An unbuildable scene scores as if every step failed.
		return game.Metrics{Steps: 1, StepErrors: fe.maxTicks}
	}
	defer g.Unload()

	for int(g.Tick()) < fe.maxTicks {
		g.Update()
	}
	return g.Metrics()
}

// copyConfig creates a copy of the base config. Config holds no shared
// mutable references, so a value copy is deep enough.
func (fe *FitnessEvaluator) copyConfig() *config.Config {
	cfg := *fe.baseConfig
	return &cfg
}

// computeFitness calculates the scalar fitness (lower = better).
// Formula: anchor drift + 5 × penetration + 0.002 × iterations + 10 × step errors.
func (fe *FitnessEvaluator) computeFitness(m game.Metrics, iterations int) float64 {
	return m.MeanAnchorError() +
		weightPenetration*m.MeanPenetration() +
		weightIterations*float64(iterations) +
		penaltyStepError*float64(m.StepErrors)
}
