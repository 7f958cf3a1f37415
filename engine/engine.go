// Package engine is a reference rigid-body engine implementing the physics
// contract. Bodies, geoms and joints are ark entities; every step runs
// velocity integration, contact resolution, position integration and an
// iterative joint projection pass.
package engine

import (
	"github.com/pthm-cable/rigidsync/physics"
)

// Options configure worlds created by an Engine.
type Options struct {
	// InitialContacts is the preallocated contact capacity of each space.
	InitialContacts int
	// MaxContactsPerPair caps the points generated for one geom pair.
	MaxContactsPerPair int
}

// DefaultOptions returns the options used by New(DefaultOptions()).
func DefaultOptions() Options {
	return Options{InitialContacts: 32, MaxContactsPerPair: 4}
}

// Engine creates reference worlds.
type Engine struct {
	opts Options
}

// New creates an engine.
func New(opts Options) *Engine {
	if opts.MaxContactsPerPair <= 0 {
		opts.MaxContactsPerPair = 1
	}
	if opts.InitialContacts < 0 {
		opts.InitialContacts = 0
	}
	return &Engine{opts: opts}
}

// NewWorld creates an empty world.
func (e *Engine) NewWorld(p physics.WorldParams) (physics.World, error) {
	return newWorld(p, e.opts), nil
}
