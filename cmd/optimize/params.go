// Package main provides CMA-ES optimization for rigid body solver parameters.
package main

import (
	"math"

	"github.com/pthm-cable/rigidsync/config"
)

// ParamSpec defines a single optimizable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
	Log     bool    // Search in log10 space
}

// ParamVector holds the set of all optimizable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of optimizable parameters.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			{Name: "error_correction", Path: "physics.error_correction", Min: 0.05, Max: 1.0, Default: 0.8},
			{Name: "constant_force_mix", Path: "physics.constant_force_mix", Min: 1e-6, Max: 1e-2, Default: 1e-4, Log: true},
			{Name: "iterations", Path: "physics.iterations", Min: 1, Max: 40, Default: 10},
			{Name: "contact_surface_thickness", Path: "physics.contact_surface_thickness", Min: 0, Max: 0.05, Default: 0},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

func (s ParamSpec) bounds() (lo, hi float64) {
	if s.Log {
		return math.Log10(s.Min), math.Log10(s.Max)
	}
	return s.Min, s.Max
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		lo, hi := spec.bounds()
		v := raw[i]
		if spec.Log {
			v = math.Log10(v)
		}
		normalized[i] = (v - lo) / (hi - lo)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		lo, hi := spec.bounds()
		v := lo + normalized[i]*(hi-lo)
		if spec.Log {
			v = math.Pow(10, v)
		}
		raw[i] = v
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = math.Max(spec.Min, math.Min(spec.Max, v[i]))
	}
	return clamped
}

// ApplyToConfig applies parameter values to a Config struct.
// Order must match Specs order.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	clamped := pv.Clamp(values)
	cfg.Physics.ErrorCorrection = clamped[0]
	cfg.Physics.ConstantForceMix = clamped[1]
	cfg.Physics.Iterations = int(math.Round(clamped[2]))
	cfg.Physics.ContactSurfaceThickness = clamped[3]
}

// ExtractFromConfig extracts current parameter values from a Config struct.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	return []float64{
		cfg.Physics.ErrorCorrection,
		cfg.Physics.ConstantForceMix,
		float64(cfg.Physics.Iterations),
		cfg.Physics.ContactSurfaceThickness,
	}
}
