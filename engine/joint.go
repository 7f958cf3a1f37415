package engine

import (
	"math"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/rigidsync/physics"
)

// JointGroup owns joints for bulk destruction.
type JointGroup struct {
	w         *World
	id        uint32
	joints    []*Joint
	destroyed bool
}

// Empty destroys every joint in the group.
func (g *JointGroup) Empty() {
	joints := g.joints
	g.joints = nil
	for _, j := range joints {
		j.group = nil
		j.Destroy()
	}
}

func (g *JointGroup) Destroy() {
	if g.destroyed {
		return
	}
	g.Empty()
	g.w.groups.Delete(g.id)
	g.destroyed = true
}

// Joint is a handle to a constraint entity.
type Joint struct {
	w         *World
	id        uint32
	e         ecs.Entity
	group     *JointGroup
	destroyed bool
}

func (j *Joint) dead() bool { return j.destroyed || j.w.destroyed }

func (j *Joint) constraint() *Constraint { return j.w.jointMap.Get(j.e) }

func (j *Joint) Kind() physics.JointKind {
	if j.dead() {
		return physics.JointBall
	}
	return j.constraint().Kind
}

func bodyID(b physics.Body) uint32 {
	if eb, ok := b.(*Body); ok && eb != nil && !eb.dead() {
		return eb.id
	}
	return 0
}

// Attach connects the joint to two bodies; nil anchors that side to the
// static world. The current anchor and body poses become the reference
// configuration.
func (j *Joint) Attach(b1, b2 physics.Body) {
	if j.dead() {
		return
	}
	c := j.constraint()
	c.Body1, c.Body2 = bodyID(b1), bodyID(b2)
	j.rebase(c)
}

// rebase recomputes body-local anchors and reference poses.
func (j *Joint) rebase(c *Constraint) {
	s1, s2 := j.w.state(c.Body1), j.w.state(c.Body2)
	c.Ref1, c.Ref2 = quat.Number{Real: 1}, quat.Number{Real: 1}
	var p1, p2 r3.Vec
	if s1.pose != nil {
		c.Local1 = toLocal(*s1.pose, c.Anchor)
		c.Ref1 = s1.pose.Orientation
		p1 = s1.pose.Position
	}
	if s2.pose != nil {
		c.Local2 = toLocal(*s2.pose, c.Anchor)
		c.Ref2 = s2.pose.Orientation
		p2 = s2.pose.Position
	}
	c.RefOffset = r3.Sub(p1, p2)
}

func toLocal(p physics.Pose, world r3.Vec) r3.Vec {
	return physics.Rotate(quat.Conj(p.Orientation), r3.Sub(world, p.Position))
}

func (j *Joint) SetAnchor(p r3.Vec) {
	if j.dead() {
		return
	}
	c := j.constraint()
	c.Anchor = p
	s1, s2 := j.w.state(c.Body1), j.w.state(c.Body2)
	if s1.pose != nil {
		c.Local1 = toLocal(*s1.pose, p)
	}
	if s2.pose != nil {
		c.Local2 = toLocal(*s2.pose, p)
	}
}

// Anchor returns the anchor carried by body 1 or 2. A side without a body
// reports the world anchor.
func (j *Joint) Anchor(which int) r3.Vec {
	if j.dead() {
		return r3.Vec{}
	}
	c := j.constraint()
	return j.anchor(c, which)
}

func (j *Joint) anchor(c *Constraint, which int) r3.Vec {
	id, local := c.Body1, c.Local1
	if which == 2 {
		id, local = c.Body2, c.Local2
	}
	s := j.w.state(id)
	if s.pose == nil {
		return c.Anchor
	}
	return r3.Add(s.pose.Position, physics.Rotate(s.pose.Orientation, local))
}

func validAxis(which int) bool { return which >= 1 && which <= 3 }

func (j *Joint) SetAxis(which int, axis r3.Vec) {
	if j.dead() || !validAxis(which) {
		return
	}
	j.constraint().Axis[which-1] = axis
}

// Axis returns an axis in world space. Axis 1 has turned with body 1 since
// attachment, axes 2 and 3 with body 2.
func (j *Joint) Axis(which int) r3.Vec {
	if j.dead() || !validAxis(which) {
		return r3.Vec{}
	}
	return j.axis(j.constraint(), which)
}

func (j *Joint) axis(c *Constraint, which int) r3.Vec {
	id, ref := c.Body1, c.Ref1
	if which > 1 {
		id, ref = c.Body2, c.Ref2
	}
	axis := c.Axis[which-1]
	if s := j.w.state(id); s.pose != nil {
		axis = physics.Rotate(quat.Mul(s.pose.Orientation, quat.Conj(ref)), axis)
	}
	return axis
}

func (j *Joint) SetParam(p physics.JointParam, v float64) {
	if j.dead() || int(p) >= physics.NumJointParams {
		return
	}
	j.constraint().Params[p] = v
}

func (j *Joint) Param(p physics.JointParam) float64 {
	if j.dead() || int(p) >= physics.NumJointParams {
		return 0
	}
	return j.constraint().Params[p]
}

// relative returns the rotation of body 1 relative to body 2 since attachment.
func (j *Joint) relative(c *Constraint) quat.Number {
	q1, q2 := quat.Number{Real: 1}, quat.Number{Real: 1}
	if s := j.w.state(c.Body1); s.pose != nil {
		q1 = quat.Mul(s.pose.Orientation, quat.Conj(c.Ref1))
	}
	if s := j.w.state(c.Body2); s.pose != nil {
		q2 = quat.Mul(s.pose.Orientation, quat.Conj(c.Ref2))
	}
	return quat.Mul(quat.Conj(q2), q1)
}

// Angle returns the hinge rotation about axis 1 since attachment, in (-pi, pi].
func (j *Joint) Angle() float64 { return j.AxisAngle(1) }

func (j *Joint) AngleRate() float64 { return j.AxisAngleRate(1) }

// AxisAngle returns the rotation of body 1 relative to body 2 about the
// attachment-time axis, in (-pi, pi].
func (j *Joint) AxisAngle(which int) float64 {
	if j.dead() || !validAxis(which) {
		return 0
	}
	c := j.constraint()
	axis := unitOr(c.Axis[which-1], r3.Vec{X: 1})
	q := j.relative(c)
	v := r3.Vec{X: q.Imag, Y: q.Jmag, Z: q.Kmag}
	angle := 2 * math.Atan2(r3.Dot(v, axis), q.Real)
	if angle > math.Pi {
		angle -= 2 * math.Pi
	} else if angle <= -math.Pi {
		angle += 2 * math.Pi
	}
	return angle
}

// AxisAngleRate returns the relative angular speed about the current
// world axis.
func (j *Joint) AxisAngleRate(which int) float64 {
	if j.dead() || !validAxis(which) {
		return 0
	}
	c := j.constraint()
	axis := unitOr(j.axis(c, which), r3.Vec{X: 1})
	return r3.Dot(relativeSpin(j.w.state(c.Body1), j.w.state(c.Body2)), axis)
}

func relativeSpin(s1, s2 bodyState) r3.Vec {
	var w1, w2 r3.Vec
	if s1.mot != nil {
		w1 = s1.mot.Angular
	}
	if s2.mot != nil {
		w2 = s2.mot.Angular
	}
	return r3.Sub(w1, w2)
}

// Separation returns the slider displacement along axis 1 since attachment.
func (j *Joint) Separation() float64 {
	if j.dead() {
		return 0
	}
	c := j.constraint()
	return r3.Dot(j.offset(c), unitOr(c.Axis[0], r3.Vec{X: 1}))
}

func (j *Joint) SeparationRate() float64 {
	if j.dead() {
		return 0
	}
	c := j.constraint()
	s1, s2 := j.w.state(c.Body1), j.w.state(c.Body2)
	return r3.Dot(r3.Sub(s1.velocity(), s2.velocity()), unitOr(c.Axis[0], r3.Vec{X: 1}))
}

// offset is the change of body 1's position relative to body 2 since attachment.
func (j *Joint) offset(c *Constraint) r3.Vec {
	s1, s2 := j.w.state(c.Body1), j.w.state(c.Body2)
	var p1, p2 r3.Vec
	if s1.pose != nil {
		p1 = s1.pose.Position
	}
	if s2.pose != nil {
		p2 = s2.pose.Position
	}
	return r3.Sub(r3.Sub(p1, p2), c.RefOffset)
}

// forget detaches the joint from a destroyed body.
func (j *Joint) forget(id uint32) {
	if j.dead() {
		return
	}
	c := j.constraint()
	if c.Body1 == id {
		c.Body1 = 0
	}
	if c.Body2 == id {
		c.Body2 = 0
	}
}

func (j *Joint) Destroy() {
	if j.destroyed {
		return
	}
	if j.group != nil {
		g := j.group
		for i, other := range g.joints {
			if other == j {
				g.joints = append(g.joints[:i], g.joints[i+1:]...)
				break
			}
		}
		j.group = nil
	}
	j.w.ecs.RemoveEntity(j.e)
	j.w.joints.Delete(j.id)
	j.destroyed = true
}

// solveJoints runs one projection pass over every joint. Anchor
// constraints move and turn the attached bodies in proportion to their
// generalized inverse mass; slider constraints only translate.
func (w *World) solveJoints(dt float64) {
	query := w.jointFilter.Query()
	for query.Next() {
		c := query.Get()
		s1, s2 := w.state(c.Body1), w.state(c.Body2)
		if s1.invMass()+s2.invMass() == 0 {
			continue
		}
		if c.Kind == physics.JointMotor {
			// Motors only add torque; they do not hold the bodies together.
			continue
		}
		if c.Kind == physics.JointSlider {
			w1, w2 := s1.invMass(), s2.invMass()
			err := sliderError(c, s1, s2)
			s1.shift(r3.Scale(-w1/(w1+w2), err), dt)
			s2.shift(r3.Scale(w2/(w1+w2), err), dt)
			continue
		}

		a1 := anchorOf(s1, c.Local1, c.Anchor)
		a2 := anchorOf(s2, c.Local2, c.Anchor)
		err := r3.Sub(a1, a2)
		dist := r3.Norm(err)
		if dist < 1e-12 {
			continue
		}
		n := r3.Scale(1/dist, err)
		r1, r2 := s1.arm(a1), s2.arm(a2)
		wsum := s1.generalized(r1, n) + s2.generalized(r2, n)
		if wsum == 0 {
			continue
		}
		lambda := -dist / wsum
		s1.correct(r1, r3.Scale(lambda, n), dt)
		s2.correct(r2, r3.Scale(-lambda, n), dt)
	}
}

// driveJoints loads motor torques onto the attached bodies before the
// velocities are integrated. Motor joints apply a fixed torque per enabled
// axis; double axis hinges drive each axis towards its target rate, capped
// by the axis's maximum torque.
func (w *World) driveJoints(dt float64) {
	w.joints.Scan(func(_ uint32, j *Joint) bool {
		w.drive(j, dt)
		return true
	})
}

func (w *World) drive(j *Joint, dt float64) {
	c := j.constraint()
	s1, s2 := w.state(c.Body1), w.state(c.Body2)
	switch c.Kind {
	case physics.JointMotor:
		n := min(max(int(c.Params[physics.ParamNumAxes]), 0), 3)
		for i := 0; i < n; i++ {
			tau := c.Params[physics.ParamTorque+physics.JointParam(i)]
			if tau == 0 {
				continue
			}
			applyTorque(s1, s2, r3.Scale(tau, unitOr(j.axis(c, i+1), r3.Vec{X: 1})))
		}
	case physics.JointDoubleAxisHinge:
		for i := 0; i < 2; i++ {
			limit := c.Params[physics.ParamMaxForce+physics.JointParam(i)]
			if limit <= 0 {
				continue
			}
			axis := unitOr(j.axis(c, i+1), r3.Vec{X: 1})
			k := angularInverse(s1, axis) + angularInverse(s2, axis)
			if k == 0 {
				continue
			}
			target := c.Params[physics.ParamVelocity+physics.JointParam(i)]
			rate := r3.Dot(relativeSpin(s1, s2), axis)
			tau := math.Max(-limit, math.Min(limit, (target-rate)/(k*dt)))
			applyTorque(s1, s2, r3.Scale(tau, axis))
		}
	}
}

// applyTorque turns body 1 by t and body 2 by the reaction.
func applyTorque(s1, s2 bodyState, t r3.Vec) {
	for _, side := range []struct {
		s    bodyState
		sign float64
	}{{s1, 1}, {s2, -1}} {
		if side.s.invMass() == 0 {
			continue
		}
		side.s.wake()
		side.s.mot.Torque = r3.Add(side.s.mot.Torque, r3.Scale(side.sign, t))
	}
}

// angularInverse is the inverse inertia of a body about axis.
func angularInverse(s bodyState, axis r3.Vec) float64 {
	if s.invMass() == 0 {
		return 0
	}
	return r3.Dot(mulElem(s.dyn.InvInertia, axis), axis)
}

// arm is the lever from the body's center to a world point.
func (s bodyState) arm(p r3.Vec) r3.Vec {
	if s.pose == nil {
		return r3.Vec{}
	}
	return r3.Sub(p, s.pose.Position)
}

// generalized is the inverse mass seen by a correction along n applied at arm r.
func (s bodyState) generalized(r, n r3.Vec) float64 {
	im := s.invMass()
	if im == 0 {
		return 0
	}
	rn := r3.Cross(r, n)
	return im + r3.Dot(mulElem(s.dyn.InvInertia, rn), rn)
}

// correct applies positional impulse p at arm r, updating velocities to match.
func (s bodyState) correct(r, p r3.Vec, dt float64) {
	im := s.invMass()
	if im == 0 {
		return
	}
	dx := r3.Scale(im, p)
	s.pose.Position = r3.Add(s.pose.Position, dx)
	s.mot.Linear = r3.Add(s.mot.Linear, r3.Scale(1/dt, dx))

	dtheta := mulElem(s.dyn.InvInertia, r3.Cross(r, p))
	s.pose.Orientation = integrateOrientation(s.pose.Orientation, dtheta, 1)
	s.mot.Angular = r3.Add(s.mot.Angular, r3.Scale(1/dt, dtheta))
}

func anchorOf(s bodyState, local, world r3.Vec) r3.Vec {
	if s.pose == nil {
		return world
	}
	return r3.Add(s.pose.Position, physics.Rotate(s.pose.Orientation, local))
}

// sliderError is the displacement of body 1 off the slider axis plus any
// travel beyond the separation stops.
func sliderError(c *Constraint, s1, s2 bodyState) r3.Vec {
	var p1, p2 r3.Vec
	if s1.pose != nil {
		p1 = s1.pose.Position
	}
	if s2.pose != nil {
		p2 = s2.pose.Position
	}
	d := r3.Sub(r3.Sub(p1, p2), c.RefOffset)
	axis := unitOr(c.Axis[0], r3.Vec{X: 1})
	along := r3.Dot(d, axis)
	err := r3.Sub(d, r3.Scale(along, axis))

	lo, hi := c.Params[physics.ParamLoStop], c.Params[physics.ParamHiStop]
	if lo <= hi {
		switch {
		case along < lo:
			err = r3.Add(err, r3.Scale(along-lo, axis))
		case along > hi:
			err = r3.Add(err, r3.Scale(along-hi, axis))
		}
	}
	return err
}

func unitOr(v, fallback r3.Vec) r3.Vec {
	if r3.Norm(v) == 0 {
		return fallback
	}
	return r3.Unit(v)
}
