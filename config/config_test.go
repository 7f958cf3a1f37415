package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Physics.DT != 0.02 {
		t.Errorf("dt: got %v, want 0.02", cfg.Physics.DT)
	}
	if cfg.Physics.RecalcInterval != 10 {
		t.Errorf("recalc_interval: got %d, want 10", cfg.Physics.RecalcInterval)
	}
	if cfg.Derived.DT32 != float32(0.02) {
		t.Errorf("DT32: got %v, want 0.02", cfg.Derived.DT32)
	}
	if cfg.Derived.GravityNorm < 9.79 || cfg.Derived.GravityNorm > 9.81 {
		t.Errorf("GravityNorm: got %v, want 9.8", cfg.Derived.GravityNorm)
	}
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "user.yaml")
	data := []byte("physics:\n  dt: 0.01\n  iterations: 4\ndemo:\n  steps: 7\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Physics.DT != 0.01 {
		t.Errorf("dt: got %v, want 0.01", cfg.Physics.DT)
	}
	if cfg.Physics.Iterations != 4 {
		t.Errorf("iterations: got %d, want 4", cfg.Physics.Iterations)
	}
	if cfg.Demo.Steps != 7 {
		t.Errorf("steps: got %d, want 7", cfg.Demo.Steps)
	}
	// Keys absent from the user file keep their defaults.
	if cfg.Contacts.MaxPerPair != 4 {
		t.Errorf("max_per_pair: got %d, want 4", cfg.Contacts.MaxPerPair)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"zero dt", "physics:\n  dt: 0\n"},
		{"zero iterations", "physics:\n  iterations: 0\n"},
		{"adaptive bad bounds", "physics:\n  adaptive: true\n  min_dt: 0.1\n  max_dt: 0.01\n"},
		{"zero per pair", "contacts:\n  max_per_pair: 0\n"},
		{"malformed", "physics: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Errorf("Load(%q): got nil error, want failure", tt.name)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("got nil error for missing file")
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Demo.Steps = 42
	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := cfg.WriteYAML(path); err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}
	back, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if back.Demo.Steps != 42 {
		t.Errorf("steps: got %d, want 42", back.Demo.Steps)
	}
}
