// Package sim drives the rigid body nodes of a scene. A Manager tracks the
// worlds, collision collections, sensors, joints, bodies and collidables it
// is given and steps them in a fixed order.
package sim

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/tidwall/btree"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/rigidsync/rigid"
	"github.com/pthm-cable/rigidsync/scene"
	"github.com/pthm-cable/rigidsync/telemetry"
)

// Options configure a Manager.
type Options struct {
	DT             float64
	Adaptive       bool // Recompute dt from wall-clock intervals
	RecalcInterval int  // Steps between dt recalculations
	MinDT          float64
	MaxDT          float64

	// Clock defaults to time.Now.
	Clock func() time.Time
	// Perf, when set, times each step phase.
	Perf   *telemetry.PerfCollector
	Logger *slog.Logger
}

// DefaultOptions returns a fixed 50 Hz step.
func DefaultOptions() Options {
	return Options{DT: 0.02, RecalcInterval: 10, MinDT: 0.001, MaxDT: 0.05}
}

// Manager steps the rigid body nodes registered with it. All methods are
// safe for concurrent use; node writes from other goroutines go through Do.
type Manager struct {
	mu   sync.Mutex
	sc   *scene.Scene
	opts Options
	log  *slog.Logger

	worlds      *btree.Map[uint32, *rigid.RigidBodyCollection]
	collections *btree.Map[uint32, *rigid.CollisionCollection]
	sensors     *btree.Map[uint32, *rigid.CollisionSensor]
	joints      *btree.Map[uint32, rigid.Joint]
	bodies      *btree.Map[uint32, *rigid.RigidBody]
	collidables *btree.Map[uint32, rigid.Collidable]

	// Native id lookups, rebuilt every step.
	bodyMap rigid.BodyMap
	geomMap rigid.GeomMap

	dt          float64
	steps       uint64
	simTime     float64
	lastRecalc  time.Time
	recalcSteps int

	lastContacts int
	lastActive   bool
}

// New creates a manager for the nodes of sc.
func New(sc *scene.Scene, opts Options) *Manager {
	if opts.DT <= 0 {
		opts.DT = DefaultOptions().DT
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.RecalcInterval <= 0 {
		opts.RecalcInterval = DefaultOptions().RecalcInterval
	}
	log := opts.Logger
	if log == nil {
		log = sc.Logger()
	}
	return &Manager{
		sc:          sc,
		opts:        opts,
		log:         log,
		worlds:      btree.NewMap[uint32, *rigid.RigidBodyCollection](8),
		collections: btree.NewMap[uint32, *rigid.CollisionCollection](8),
		sensors:     btree.NewMap[uint32, *rigid.CollisionSensor](8),
		joints:      btree.NewMap[uint32, rigid.Joint](32),
		bodies:      btree.NewMap[uint32, *rigid.RigidBody](32),
		collidables: btree.NewMap[uint32, rigid.Collidable](32),
		bodyMap:     make(rigid.BodyMap),
		geomMap:     make(rigid.GeomMap),
		dt:          opts.DT,
	}
}

// Add starts managing n. Nodes of other types are ignored and reported false.
func (m *Manager) Add(n scene.Node) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.add(n)
}

func (m *Manager) add(n scene.Node) bool {
	id := n.NodeBase().ID()
	switch v := n.(type) {
	case *rigid.RigidBodyCollection:
		m.worlds.Set(id, v)
	case *rigid.CollisionCollection:
		m.collections.Set(id, v)
	case *rigid.CollisionSensor:
		m.sensors.Set(id, v)
	case *rigid.RigidBody:
		m.bodies.Set(id, v)
	case rigid.Joint:
		m.joints.Set(id, v)
	case rigid.Collidable:
		m.collidables.Set(id, v)
	default:
		return false
	}
	return true
}

// Remove stops managing n.
func (m *Manager) Remove(n scene.Node) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remove(n.NodeBase().ID())
}

func (m *Manager) remove(id uint32) {
	m.worlds.Delete(id)
	m.collections.Delete(id)
	m.sensors.Delete(id)
	m.joints.Delete(id)
	m.bodies.Delete(id)
	m.collidables.Delete(id)
}

// Scan adds every live node of the scene and returns how many were added.
func (m *Manager) Scan() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	added := 0
	m.sc.Scan(func(n scene.Node) bool {
		if m.add(n) {
			added++
		}
		return true
	})
	return added
}

// Do runs fn under the manager lock, between steps.
func (m *Manager) Do(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn()
}

// DT returns the current step length.
func (m *Manager) DT() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dt
}

// Steps returns the number of completed steps.
func (m *Manager) Steps() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.steps
}

// SimTime returns the simulated time in seconds.
func (m *Manager) SimTime() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.simTime
}

// LastContacts returns the contacts generated by the last step and whether
// any sensor was active after it.
func (m *Manager) LastContacts() (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastContacts, m.lastActive
}

func (m *Manager) phase(name string) {
	if m.opts.Perf != nil {
		m.opts.Perf.StartPhase(name)
	}
}

// Step advances every managed world by one dt. Errors of individual worlds
// are logged and joined; the remaining worlds still step.
func (m *Manager) Step() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.opts.Perf != nil {
		m.opts.Perf.StartTick()
		defer m.opts.Perf.EndTick()
	}
	if m.opts.Adaptive && m.lastRecalc.IsZero() {
		m.lastRecalc = m.opts.Clock()
	}
	m.prune()

	// 1. Deferred recomputes for writes since the last step
	m.phase(telemetry.PhaseFrames)
	m.sc.EndFrame()

	// 2. Contacts, forces and integration
	m.phase(telemetry.PhaseEvaluate)
	var errs []error
	m.worlds.Scan(func(id uint32, w *rigid.RigidBodyCollection) bool {
		if err := w.Evaluate(m.dt); err != nil {
			m.log.Error("world step failed", "node", id, "tick", m.steps, "error", err)
			errs = append(errs, fmt.Errorf("step %s#%d: %w", w.TypeName(), id, err))
		}
		return true
	})

	// 3. Collision for the next step
	m.phase(telemetry.PhaseCollide)
	contacts := 0
	m.collections.Scan(func(_ uint32, c *rigid.CollisionCollection) bool {
		contacts += c.Collide()
		return true
	})
	m.lastContacts = contacts

	// 4. Outputs
	m.phase(telemetry.PhaseJoints)
	m.joints.Scan(func(_ uint32, j rigid.Joint) bool {
		if j.State() == rigid.Bound && j.Outputs() > 0 {
			j.PullOutputs()
		}
		return true
	})

	m.phase(telemetry.PhaseSensors)
	m.rebuildMaps()
	active := false
	m.sensors.Scan(func(_ uint32, s *rigid.CollisionSensor) bool {
		s.UpdateContacts(m.bodyMap, m.geomMap)
		active = active || s.Active()
		return true
	})
	m.lastActive = active

	m.phase(telemetry.PhaseBodies)
	m.bodies.Scan(func(_ uint32, b *rigid.RigidBody) bool {
		b.PullOutputs()
		return true
	})

	m.phase(telemetry.PhaseCollidables)
	m.collidables.Scan(func(_ uint32, c rigid.Collidable) bool {
		c.PullOutputs()
		return true
	})

	m.steps++
	m.simTime += m.dt
	m.adapt()

	return errors.Join(errs...)
}

// prune drops nodes deleted since the last step.
func (m *Manager) prune() {
	var dead []uint32
	collect := func(id uint32, n scene.Node) {
		if n.NodeBase().Deleted() {
			dead = append(dead, id)
		}
	}
	m.worlds.Scan(func(id uint32, n *rigid.RigidBodyCollection) bool { collect(id, n); return true })
	m.collections.Scan(func(id uint32, n *rigid.CollisionCollection) bool { collect(id, n); return true })
	m.sensors.Scan(func(id uint32, n *rigid.CollisionSensor) bool { collect(id, n); return true })
	m.joints.Scan(func(id uint32, n rigid.Joint) bool { collect(id, n); return true })
	m.bodies.Scan(func(id uint32, n *rigid.RigidBody) bool { collect(id, n); return true })
	m.collidables.Scan(func(id uint32, n rigid.Collidable) bool { collect(id, n); return true })
	for _, id := range dead {
		m.remove(id)
	}
}

// rebuildMaps indexes bound bodies and collidables by native id.
func (m *Manager) rebuildMaps() {
	clear(m.bodyMap)
	clear(m.geomMap)
	m.bodies.Scan(func(_ uint32, b *rigid.RigidBody) bool {
		if h := b.Handle(); h != nil {
			m.bodyMap[h.ID()] = b
		}
		return true
	})
	m.collidables.Scan(func(_ uint32, c rigid.Collidable) bool {
		if g := c.Geom(); g != nil {
			m.geomMap[g.ID()] = c
		}
		return true
	})
}

// adapt recomputes dt from the mean wall-clock step interval.
func (m *Manager) adapt() {
	if !m.opts.Adaptive {
		return
	}
	m.recalcSteps++
	if m.recalcSteps < m.opts.RecalcInterval {
		return
	}
	now := m.opts.Clock()
	mean := now.Sub(m.lastRecalc).Seconds() / float64(m.recalcSteps)
	m.lastRecalc = now
	m.recalcSteps = 0
	dt := math.Max(m.opts.MinDT, math.Min(m.opts.MaxDT, mean))
	if dt != m.dt {
		m.log.Debug("dt recalculated", "tick", m.steps, "dt", dt, "previous", m.dt)
		m.dt = dt
	}
}

// Sample summarizes the managed scene for telemetry.
func (m *Manager) Sample() telemetry.SceneSample {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := telemetry.SceneSample{
		Worlds: m.worlds.Len(),
		Bodies: m.bodies.Len(),
		Joints: m.joints.Len(),
	}
	m.bodies.Scan(func(_ uint32, b *rigid.RigidBody) bool {
		h := b.Handle()
		if h == nil || !h.Enabled() {
			return true
		}
		s.Awake++
		v := h.LinearVelocity()
		s.KineticEnergy += 0.5 * b.Mass() * r3.Dot(v, v)
		s.SpeedMax = math.Max(s.SpeedMax, r3.Norm(v))
		return true
	})
	return s
}
