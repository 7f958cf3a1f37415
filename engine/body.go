package engine

import (
	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/rigidsync/physics"
)

// Body is a handle to a body entity.
type Body struct {
	w         *World
	id        uint32
	e         ecs.Entity
	destroyed bool
}

func (b *Body) ID() uint32 { return b.id }

func (b *Body) dead() bool { return b.destroyed || b.w.destroyed }

func (b *Body) components() (*physics.Pose, *Motion, *Dynamics) {
	return b.w.bodyMap.Get(b.e)
}

func (b *Body) SetPosition(p r3.Vec) {
	if b.dead() {
		return
	}
	pose, _, _ := b.components()
	pose.Position = p
	b.w.placeGeoms()
}

func (b *Body) Position() r3.Vec {
	if b.dead() {
		return r3.Vec{}
	}
	pose, _, _ := b.components()
	return pose.Position
}

func (b *Body) SetOrientation(q quat.Number) {
	if b.dead() {
		return
	}
	pose, _, _ := b.components()
	pose.Orientation = physics.Normalize(q)
	b.w.placeGeoms()
}

func (b *Body) Orientation() quat.Number {
	if b.dead() {
		return quat.Number{Real: 1}
	}
	pose, _, _ := b.components()
	return pose.Orientation
}

func (b *Body) SetLinearVelocity(v r3.Vec) {
	if b.dead() {
		return
	}
	_, m, d := b.components()
	m.Linear = v
	wakeIdle(d)
}

func (b *Body) LinearVelocity() r3.Vec {
	if b.dead() {
		return r3.Vec{}
	}
	_, m, _ := b.components()
	return m.Linear
}

func (b *Body) SetAngularVelocity(v r3.Vec) {
	if b.dead() {
		return
	}
	_, m, d := b.components()
	m.Angular = v
	wakeIdle(d)
}

func (b *Body) AngularVelocity() r3.Vec {
	if b.dead() {
		return r3.Vec{}
	}
	_, m, _ := b.components()
	return m.Angular
}

// AddForce accumulates a world-space force for the next step.
func (b *Body) AddForce(f r3.Vec) {
	if b.dead() {
		return
	}
	_, m, _ := b.components()
	m.Force = r3.Add(m.Force, f)
}

// AddTorque accumulates a world-space torque for the next step.
func (b *Body) AddTorque(t r3.Vec) {
	if b.dead() {
		return
	}
	_, m, _ := b.components()
	m.Torque = r3.Add(m.Torque, t)
}

// SetMass sets the mass response. A zero inertia diagonal entry falls back
// to that of a unit sphere of the same mass.
func (b *Body) SetMass(mass physics.Mass) {
	if b.dead() || mass.Mass <= 0 {
		return
	}
	_, _, d := b.components()
	d.InvMass = 1 / mass.Mass
	diag := [3]float64{mass.Inertia[0], mass.Inertia[4], mass.Inertia[8]}
	var inv [3]float64
	for i, v := range diag {
		if v <= 0 {
			v = 0.4 * mass.Mass
		}
		inv[i] = 1 / v
	}
	d.InvInertia = r3.Vec{X: inv[0], Y: inv[1], Z: inv[2]}
}

func (b *Body) SetEnabled(enabled bool) {
	if b.dead() {
		return
	}
	_, _, d := b.components()
	d.Enabled = enabled
	d.Idle = 0
}

// Enabled reports whether the body is simulated: enabled and not asleep.
func (b *Body) Enabled() bool {
	if b.dead() {
		return false
	}
	_, _, d := b.components()
	return d.Enabled && d.Idle >= 0
}

// SetKinematic makes the body immune to forces and contacts. It still
// moves with its velocity.
func (b *Body) SetKinematic(fixed bool) {
	if b.dead() {
		return
	}
	_, _, d := b.components()
	d.Kinematic = fixed
}

func (b *Body) SetGravity(enabled bool) {
	if b.dead() {
		return
	}
	_, _, d := b.components()
	d.Gravity = enabled
}

func (b *Body) SetAutoDisable(a physics.AutoDisable) {
	if b.dead() {
		return
	}
	_, _, d := b.components()
	d.AutoDisable = a
}

func (b *Body) SetFiniteRotation(enabled bool, axis r3.Vec) {
	if b.dead() {
		return
	}
	_, _, d := b.components()
	d.FiniteRotation = enabled
	d.FiniteAxis = axis
}

func (b *Body) AttachGeom(g physics.Geom) {
	geom, ok := g.(*Geom)
	if b.dead() || !ok || geom.dead() {
		return
	}
	_, col := geom.components()
	col.Body = b.id
	b.w.placeGeoms()
}

func (b *Body) DetachGeom(g physics.Geom) {
	geom, ok := g.(*Geom)
	if b.dead() || !ok || geom.dead() {
		return
	}
	geom.detach(b.id)
}

// Destroy removes the body. Attached geoms become static at their current
// world pose and joints lose their reference to it.
func (b *Body) Destroy() {
	if b.destroyed {
		return
	}
	for _, g := range b.w.geoms.Values() {
		g.detach(b.id)
	}
	for _, j := range b.w.joints.Values() {
		j.forget(b.id)
	}
	b.w.ecs.RemoveEntity(b.e)
	b.w.bodies.Delete(b.id)
	b.destroyed = true
}

func wakeIdle(d *Dynamics) {
	if d.Idle < 0 {
		d.Idle = 0
	}
}
