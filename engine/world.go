package engine

import (
	"fmt"
	"math"

	"github.com/mlange-42/ark/ecs"
	"github.com/tidwall/btree"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/rigidsync/physics"
)

// World is a reference simulation world. It is not safe for concurrent use.
type World struct {
	ecs       *ecs.World
	params    physics.WorldParams
	opts      Options
	nextID    uint32
	destroyed bool

	bodyMap     *ecs.Map3[physics.Pose, Motion, Dynamics]
	geomMap     *ecs.Map2[physics.Pose, Collider]
	jointMap    *ecs.Map1[Constraint]
	bodyFilter  *ecs.Filter3[physics.Pose, Motion, Dynamics]
	geomFilter  *ecs.Filter2[physics.Pose, Collider]
	jointFilter *ecs.Filter1[Constraint]

	// Handles by id, ordered so that collision and solver passes are deterministic.
	bodies *btree.Map[uint32, *Body]
	geoms  *btree.Map[uint32, *Geom]
	joints *btree.Map[uint32, *Joint]
	spaces *btree.Map[uint32, *Space]
	groups *btree.Map[uint32, *JointGroup]

	// Contacts fed by Space.Apply, consumed by the next Step.
	pending []physics.ContactPoint
}

func newWorld(p physics.WorldParams, opts Options) *World {
	w := ecs.NewWorld()
	return &World{
		ecs:         w,
		params:      p,
		opts:        opts,
		bodyMap:     ecs.NewMap3[physics.Pose, Motion, Dynamics](w),
		geomMap:     ecs.NewMap2[physics.Pose, Collider](w),
		jointMap:    ecs.NewMap1[Constraint](w),
		bodyFilter:  ecs.NewFilter3[physics.Pose, Motion, Dynamics](w),
		geomFilter:  ecs.NewFilter2[physics.Pose, Collider](w),
		jointFilter: ecs.NewFilter1[Constraint](w),
		bodies:      btree.NewMap[uint32, *Body](32),
		geoms:       btree.NewMap[uint32, *Geom](32),
		joints:      btree.NewMap[uint32, *Joint](32),
		spaces:      btree.NewMap[uint32, *Space](8),
		groups:      btree.NewMap[uint32, *JointGroup](8),
	}
}

func (w *World) id() uint32 {
	w.nextID++
	return w.nextID
}

func (w *World) SetParams(p physics.WorldParams) { w.params = p }

func (w *World) Params() physics.WorldParams { return w.params }

// Handles returns the number of live handles.
func (w *World) Handles() int {
	return w.bodies.Len() + w.geoms.Len() + w.joints.Len() + w.spaces.Len() + w.groups.Len()
}

// NewBody creates an enabled unit-mass body at the origin.
func (w *World) NewBody() (physics.Body, error) {
	if w.destroyed {
		return nil, physics.ErrDestroyed
	}
	pose := physics.IdentityPose
	dyn := Dynamics{
		InvMass:    1,
		InvInertia: r3.Vec{X: 2.5, Y: 2.5, Z: 2.5},
		Enabled:    true,
		Gravity:    true,
	}
	b := &Body{w: w, id: w.id()}
	b.e = w.bodyMap.NewEntity(&pose, &Motion{}, &dyn)
	w.bodies.Set(b.id, b)
	return b, nil
}

func (w *World) NewJointGroup() (physics.JointGroup, error) {
	if w.destroyed {
		return nil, physics.ErrDestroyed
	}
	g := &JointGroup{w: w, id: w.id()}
	w.groups.Set(g.id, g)
	return g, nil
}

// NewJoint creates a joint attached to nothing. group may be nil.
func (w *World) NewJoint(kind physics.JointKind, group physics.JointGroup) (physics.Joint, error) {
	if w.destroyed {
		return nil, physics.ErrDestroyed
	}
	if kind > physics.JointMotor {
		return nil, fmt.Errorf("engine: unsupported joint kind %v", kind)
	}
	c := Constraint{
		Kind: kind,
		Axis: [3]r3.Vec{{X: 1}, {Y: 1}, {Z: 1}},
		Ref1: quat.Number{Real: 1},
		Ref2: quat.Number{Real: 1},
	}
	c.Params[physics.ParamLoStop] = math.Inf(-1)
	c.Params[physics.ParamHiStop] = math.Inf(1)
	c.Params[physics.ParamLoStop2] = math.Inf(-1)
	c.Params[physics.ParamHiStop2] = math.Inf(1)
	c.Params[physics.ParamLoStop3] = math.Inf(-1)
	c.Params[physics.ParamHiStop3] = math.Inf(1)

	j := &Joint{w: w, id: w.id()}
	j.e = w.jointMap.NewEntity(&c)
	if g, ok := group.(*JointGroup); ok && g != nil && !g.destroyed {
		j.group = g
		g.joints = append(g.joints, j)
	}
	w.joints.Set(j.id, j)
	return j, nil
}

// NewGeom creates an enabled static geom at the origin.
func (w *World) NewGeom(shape physics.Shape) (physics.Geom, error) {
	if w.destroyed {
		return nil, physics.ErrDestroyed
	}
	if err := w.checkShape(shape); err != nil {
		return nil, err
	}
	pose := physics.IdentityPose
	col := Collider{Shape: shape, Local: physics.IdentityPose, Enabled: true}
	g := &Geom{w: w, id: w.id(), kind: shape.Kind}
	g.e = w.geomMap.NewEntity(&pose, &col)
	if shape.Kind == physics.ShapeTransform {
		child := shape.Child.(*Geom)
		child.parent = g.id
		g.child = child
	}
	w.geoms.Set(g.id, g)
	return g, nil
}

func (w *World) checkShape(s physics.Shape) error {
	switch s.Kind {
	case physics.ShapeBox:
		if s.Size.X <= 0 || s.Size.Y <= 0 || s.Size.Z <= 0 {
			return fmt.Errorf("engine: box size %v must be positive", s.Size)
		}
	case physics.ShapeSphere:
		if s.Radius <= 0 {
			return fmt.Errorf("engine: sphere radius %v must be positive", s.Radius)
		}
	case physics.ShapeCapsule, physics.ShapeCone:
		if s.Radius <= 0 || s.Length < 0 {
			return fmt.Errorf("engine: %v radius %v length %v invalid", s.Kind, s.Radius, s.Length)
		}
	case physics.ShapeTriMesh:
		if len(s.Vertices) < 3 || len(s.Vertices)%3 != 0 {
			return fmt.Errorf("engine: trimesh needs whole triangles, got %d vertices", len(s.Vertices))
		}
	case physics.ShapeTransform:
		child, ok := s.Child.(*Geom)
		if !ok || child == nil || child.dead() || child.w != w {
			return fmt.Errorf("engine: transform child must be a live geom of this world")
		}
		if child.kind == physics.ShapeTransform || child.parent != 0 {
			return fmt.Errorf("engine: geom %d cannot be wrapped", child.id)
		}
	default:
		return fmt.Errorf("engine: unsupported shape kind %v", s.Kind)
	}
	return nil
}

func (w *World) NewSpace() (physics.Space, error) {
	if w.destroyed {
		return nil, physics.ErrDestroyed
	}
	s := &Space{
		w:     w,
		id:    w.id(),
		geoms: btree.NewMap[uint32, *Geom](16),
		bulk:  physics.NewBulkContact(w.opts.InitialContacts),
	}
	w.spaces.Set(s.id, s)
	return s, nil
}

// Destroy releases every handle of the world. Idempotent.
func (w *World) Destroy() {
	if w.destroyed {
		return
	}
	for _, j := range w.joints.Values() {
		j.Destroy()
	}
	for _, g := range w.groups.Values() {
		g.Destroy()
	}
	for _, s := range w.spaces.Values() {
		s.Destroy()
	}
	for _, g := range w.geoms.Values() {
		g.Destroy()
	}
	for _, b := range w.bodies.Values() {
		b.Destroy()
	}
	w.pending = nil
	w.destroyed = true
}

// Step advances the world by dt seconds.
func (w *World) Step(dt float64) error {
	if w.destroyed {
		return physics.ErrDestroyed
	}
	if dt <= 0 || math.IsNaN(dt) {
		return fmt.Errorf("engine: step dt %v must be positive", dt)
	}
	w.driveJoints(dt)
	w.integrateVelocities(dt)
	w.resolveContacts(dt)
	w.integratePositions(dt)
	iterations := max(w.params.Iterations, 1)
	for i := 0; i < iterations; i++ {
		w.solveJoints(dt)
	}
	w.updateSleep(dt)
	w.placeGeoms()
	w.pending = w.pending[:0]
	return nil
}

func (w *World) integrateVelocities(dt float64) {
	query := w.bodyFilter.Query()
	for query.Next() {
		_, m, d := query.Get()
		if !d.Enabled || d.Kinematic || d.Idle < 0 {
			m.Force, m.Torque = r3.Vec{}, r3.Vec{}
			continue
		}
		acc := r3.Scale(d.InvMass, m.Force)
		if d.Gravity {
			acc = r3.Add(acc, w.params.Gravity)
		}
		m.Linear = r3.Add(m.Linear, r3.Scale(dt, acc))
		m.Angular = r3.Add(m.Angular, r3.Scale(dt, mulElem(d.InvInertia, m.Torque)))
		m.Force, m.Torque = r3.Vec{}, r3.Vec{}
	}
}

func (w *World) integratePositions(dt float64) {
	query := w.bodyFilter.Query()
	for query.Next() {
		p, m, d := query.Get()
		if !d.Enabled || d.Idle < 0 {
			continue
		}
		p.Position = r3.Add(p.Position, r3.Scale(dt, m.Linear))
		angular := m.Angular
		if d.FiniteRotation && r3.Norm(d.FiniteAxis) > 0 {
			// Only the component about the finite rotation axis is integrated.
			axis := r3.Unit(d.FiniteAxis)
			angular = r3.Scale(r3.Dot(angular, axis), axis)
		}
		p.Orientation = integrateOrientation(p.Orientation, angular, dt)
	}
}

// updateSleep puts bodies to sleep after resting below the thresholds for
// the configured time. A sleeping body has a negative Idle.
func (w *World) updateSleep(dt float64) {
	query := w.bodyFilter.Query()
	for query.Next() {
		_, m, d := query.Get()
		if !d.Enabled || d.Kinematic || d.Idle < 0 {
			continue
		}
		ad := d.AutoDisable
		if !ad.Enabled && !w.params.AutoDisable.Enabled {
			continue
		}
		if !ad.Enabled {
			ad = w.params.AutoDisable
		}
		if r3.Norm(m.Linear) < ad.LinearSpeed && r3.Norm(m.Angular) < ad.AngularSpeed {
			d.Idle += dt
			if d.Idle >= ad.Time {
				d.Idle = -1
				m.Linear, m.Angular = r3.Vec{}, r3.Vec{}
			}
		} else {
			d.Idle = 0
		}
	}
}

func (w *World) placeGeoms() {
	query := w.geomFilter.Query()
	for query.Next() {
		pose, col := query.Get()
		if col.Body == 0 {
			continue
		}
		if b, ok := w.bodies.Get(col.Body); ok {
			bp, _, _ := w.bodyMap.Get(b.e)
			*pose = physics.Compose(*bp, col.Local)
		}
	}
}

// bodyState is a view of a body's components. All pointers are nil for
// the static world.
type bodyState struct {
	pose *physics.Pose
	mot  *Motion
	dyn  *Dynamics
}

func (w *World) state(id uint32) bodyState {
	if id == 0 {
		return bodyState{}
	}
	b, ok := w.bodies.Get(id)
	if !ok {
		return bodyState{}
	}
	p, m, d := w.bodyMap.Get(b.e)
	return bodyState{pose: p, mot: m, dyn: d}
}

// invMass is zero for the static world and bodies that do not respond to loads.
func (s bodyState) invMass() float64 {
	if s.dyn == nil || !s.dyn.Enabled || s.dyn.Kinematic {
		return 0
	}
	return s.dyn.InvMass
}

func (s bodyState) velocity() r3.Vec {
	if s.mot == nil {
		return r3.Vec{}
	}
	return s.mot.Linear
}

func (s bodyState) moving() bool {
	return s.mot != nil && s.dyn.Idle >= 0 && s.mot.Linear != (r3.Vec{})
}

func (s bodyState) wake() {
	if s.dyn != nil && s.dyn.Idle < 0 {
		s.dyn.Idle = 0
	}
}

// shift moves a body by d and adds the implied velocity.
func (s bodyState) shift(d r3.Vec, dt float64) {
	if s.pose == nil {
		return
	}
	s.pose.Position = r3.Add(s.pose.Position, d)
	s.mot.Linear = r3.Add(s.mot.Linear, r3.Scale(1/dt, d))
}

func (w *World) resolveContacts(dt float64) {
	for start := 0; start < len(w.pending); {
		// Points of one geom pair share the penetration correction.
		end := start + 1
		for end < len(w.pending) &&
			w.pending[end].Geom1 == w.pending[start].Geom1 &&
			w.pending[end].Geom2 == w.pending[start].Geom2 {
			end++
		}
		share := 1 / float64(end-start)
		for i := start; i < end; i++ {
			w.resolveContact(&w.pending[i], share, dt)
		}
		start = end
	}
}

func (w *World) resolveContact(c *physics.ContactPoint, share, dt float64) {
	s1, s2 := w.state(c.Body1), w.state(c.Body2)
	// A sleeping body hit by a moving one wakes up.
	if s2.moving() {
		s1.wake()
	}
	if s1.moving() {
		s2.wake()
	}
	w1, w2 := s1.invMass(), s2.invMass()
	if w1+w2 == 0 {
		return
	}
	sum := w1 + w2
	n := c.Normal

	vn := r3.Dot(r3.Sub(s1.velocity(), s2.velocity()), n)
	if vn < 0 {
		e := 0.0
		if c.Surface.Mode&physics.SurfaceBounce != 0 && -vn > c.Surface.BounceVel {
			e = c.Surface.Bounce
		}
		jn := -(1 + e) * vn / sum
		s1.applyImpulse(r3.Scale(jn*w1, n))
		s2.applyImpulse(r3.Scale(-jn*w2, n))

		rel := r3.Sub(s1.velocity(), s2.velocity())
		vt := r3.Sub(rel, r3.Scale(r3.Dot(rel, n), n))
		if tn := r3.Norm(vt); tn > 1e-9 {
			jt := math.Min(tn/sum, c.Surface.Mu*jn)
			dir := r3.Scale(-1/tn, vt)
			s1.applyImpulse(r3.Scale(jt*w1, dir))
			s2.applyImpulse(r3.Scale(-jt*w2, dir))
		}
	}

	erp := w.params.ErrorCorrection
	if c.Surface.Mode&physics.SurfaceSoftERP != 0 {
		erp = c.Surface.SoftERP
	}
	depth := c.Depth - w.params.ContactSurfaceThickness
	if depth <= 0 {
		return
	}
	corr := depth * erp * share
	if limit := w.params.MaxCorrectionSpeed; limit >= 0 {
		corr = math.Min(corr, limit*dt)
	}
	if s1.pose != nil && w1 > 0 {
		s1.pose.Position = r3.Add(s1.pose.Position, r3.Scale(corr*w1/sum, n))
	}
	if s2.pose != nil && w2 > 0 {
		s2.pose.Position = r3.Sub(s2.pose.Position, r3.Scale(corr*w2/sum, n))
	}
}

func (s bodyState) applyImpulse(dv r3.Vec) {
	if s.mot == nil {
		return
	}
	s.mot.Linear = r3.Add(s.mot.Linear, dv)
}

func mulElem(a, b r3.Vec) r3.Vec {
	return r3.Vec{X: a.X * b.X, Y: a.Y * b.Y, Z: a.Z * b.Z}
}

// integrateOrientation advances q by angular velocity omega over dt.
func integrateOrientation(q quat.Number, omega r3.Vec, dt float64) quat.Number {
	if omega == (r3.Vec{}) {
		return q
	}
	spin := quat.Mul(quat.Number{Imag: omega.X, Jmag: omega.Y, Kmag: omega.Z}, q)
	return physics.Normalize(quat.Add(q, quat.Scale(dt/2, spin)))
}
