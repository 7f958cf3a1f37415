// Package config provides configuration loading and access for the physics runtime.
package config

import (
	_ "embed"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all runtime configuration parameters.
type Config struct {
	Physics   PhysicsConfig   `yaml:"physics"`
	Contacts  ContactsConfig  `yaml:"contacts"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`
	Demo      DemoConfig      `yaml:"demo"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// PhysicsConfig holds world and stepping parameters.
type PhysicsConfig struct {
	DT                      float64    `yaml:"dt"`
	Adaptive                bool       `yaml:"adaptive"`         // Recompute dt from wall-clock intervals
	RecalcInterval          int        `yaml:"recalc_interval"`  // Steps between dt recalculations
	MinDT                   float64    `yaml:"min_dt"`
	MaxDT                   float64    `yaml:"max_dt"`
	Gravity                 [3]float64 `yaml:"gravity"`
	Iterations              int        `yaml:"iterations"`
	PreferAccuracy          bool       `yaml:"prefer_accuracy"`
	ErrorCorrection         float64    `yaml:"error_correction"`
	MaxCorrectionSpeed      float64    `yaml:"max_correction_speed"` // -1 = unbounded
	ConstantForceMix        float64    `yaml:"constant_force_mix"`
	ContactSurfaceThickness float64    `yaml:"contact_surface_thickness"`
}

// ContactsConfig holds collision buffer sizing.
type ContactsConfig struct {
	InitialCapacity int `yaml:"initial_capacity"` // Preallocated contact records per space
	MaxPerPair      int `yaml:"max_per_pair"`     // Contact points generated per geom pair
}

// TelemetryConfig holds performance and statistics output parameters.
type TelemetryConfig struct {
	PerfWindow    int    `yaml:"perf_window"`    // Ticks in the rolling perf window
	StatsInterval int    `yaml:"stats_interval"` // Ticks between stats records
	OutputDir     string `yaml:"output_dir"`     // Empty disables CSV output
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
}

// DemoConfig holds parameters for the built-in demo scene.
type DemoConfig struct {
	Steps          int     `yaml:"steps"`
	DropHeight     float64 `yaml:"drop_height"`
	PendulumLength float64 `yaml:"pendulum_length"`
	BoxSize        float64 `yaml:"box_size"`
}

// DerivedConfig holds values computed from other config values.
type DerivedConfig struct {
	DT32         float32 // Physics.DT as float32, the scene field precision
	GravityNorm  float64 // Magnitude of the gravity vector
	RecalcPeriod float64 // Simulated seconds between dt recalculations
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Physics.DT <= 0 {
		return fmt.Errorf("physics.dt must be positive, got %v", c.Physics.DT)
	}
	if c.Physics.Adaptive {
		if c.Physics.RecalcInterval <= 0 {
			return fmt.Errorf("physics.recalc_interval must be positive, got %d", c.Physics.RecalcInterval)
		}
		if c.Physics.MinDT <= 0 || c.Physics.MaxDT < c.Physics.MinDT {
			return fmt.Errorf("physics.min_dt/max_dt invalid: %v/%v", c.Physics.MinDT, c.Physics.MaxDT)
		}
	}
	if c.Physics.Iterations <= 0 {
		return fmt.Errorf("physics.iterations must be positive, got %d", c.Physics.Iterations)
	}
	if c.Contacts.InitialCapacity < 0 || c.Contacts.MaxPerPair <= 0 {
		return fmt.Errorf("contacts sizing invalid: capacity %d, per pair %d",
			c.Contacts.InitialCapacity, c.Contacts.MaxPerPair)
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.DT32 = float32(c.Physics.DT)
	g := c.Physics.Gravity
	c.Derived.GravityNorm = math.Sqrt(g[0]*g[0] + g[1]*g[1] + g[2]*g[2])
	if c.Physics.RecalcInterval > 0 {
		c.Derived.RecalcPeriod = float64(c.Physics.RecalcInterval) * c.Physics.DT
	}
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
