// Package physics defines the contract of a stepped rigid-body engine as
// consumed by the scene bindings: worlds owning bodies, joints, collision
// geometry and spaces, and a bulk contact stream regenerated every step.
//
// Handles are owned by exactly one binding. Destroy on any handle is
// idempotent.
package physics

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrDestroyed is returned when a handle is used after Destroy.
var ErrDestroyed = errors.New("physics: handle destroyed")

// Engine creates worlds.
type Engine interface {
	NewWorld(p WorldParams) (World, error)
}

// WorldParams are the global solver settings of a world.
type WorldParams struct {
	Gravity                 r3.Vec
	Iterations              int
	PreferAccuracy          bool
	ErrorCorrection         float64
	ConstantForceMix        float64
	MaxCorrectionSpeed      float64 // negative is unbounded
	ContactSurfaceThickness float64
	AutoDisable             AutoDisable
}

// AutoDisable describes when a resting body is put to sleep.
type AutoDisable struct {
	Enabled      bool
	LinearSpeed  float64
	AngularSpeed float64
	Time         float64
}

// DefaultWorldParams returns the settings of a freshly created world.
func DefaultWorldParams() WorldParams {
	return WorldParams{
		Gravity:            r3.Vec{Y: -9.8},
		Iterations:         10,
		ErrorCorrection:    0.8,
		ConstantForceMix:   0.0001,
		MaxCorrectionSpeed: -1,
		AutoDisable:        AutoDisable{LinearSpeed: 0.1, AngularSpeed: 0.1},
	}
}

// World owns every handle created from it.
type World interface {
	SetParams(p WorldParams)
	Params() WorldParams
	NewBody() (Body, error)
	NewJointGroup() (JointGroup, error)
	NewJoint(kind JointKind, group JointGroup) (Joint, error)
	NewGeom(shape Shape) (Geom, error)
	NewSpace() (Space, error)
	// Step advances the simulation by dt seconds.
	Step(dt float64) error
	// Handles returns the number of live handles, for diagnostics.
	Handles() int
	Destroy()
}

// Pose is a position and orientation in world space.
type Pose struct {
	Position    r3.Vec
	Orientation quat.Number
}

// IdentityPose is the pose at the origin with no rotation.
var IdentityPose = Pose{Orientation: quat.Number{Real: 1}}

// Mass are the mass properties of a body.
type Mass struct {
	Mass         float64
	CenterOfMass r3.Vec
	Inertia      [9]float64 // row major, body frame
}

// Body is a simulated rigid body.
type Body interface {
	ID() uint32
	SetPosition(p r3.Vec)
	Position() r3.Vec
	SetOrientation(q quat.Number)
	Orientation() quat.Number
	SetLinearVelocity(v r3.Vec)
	LinearVelocity() r3.Vec
	SetAngularVelocity(w r3.Vec)
	AngularVelocity() r3.Vec
	AddForce(f r3.Vec)
	AddTorque(t r3.Vec)
	SetMass(m Mass)
	SetEnabled(enabled bool)
	Enabled() bool
	SetKinematic(fixed bool)
	SetGravity(enabled bool)
	SetAutoDisable(a AutoDisable)
	SetFiniteRotation(enabled bool, axis r3.Vec)
	// AttachGeom makes g follow this body, keeping its placement as the
	// offset from the body.
	AttachGeom(g Geom)
	DetachGeom(g Geom)
	Destroy()
}

// JointKind enumerates the supported joints.
type JointKind uint8

const (
	JointBall JointKind = iota
	JointHinge
	JointSlider
	JointUniversal
	JointDoubleAxisHinge
	JointMotor
)

func (k JointKind) String() string {
	switch k {
	case JointBall:
		return "ball"
	case JointHinge:
		return "hinge"
	case JointSlider:
		return "slider"
	case JointUniversal:
		return "universal"
	case JointDoubleAxisHinge:
		return "double axis hinge"
	case JointMotor:
		return "motor"
	}
	return fmt.Sprintf("JointKind(%d)", uint8(k))
}

// JointParam selects a joint parameter. Params ending in 2 or 3 apply to
// the second or third axis of a joint.
type JointParam uint8

const (
	ParamLoStop JointParam = iota
	ParamHiStop
	ParamBounce
	ParamStopERP
	ParamLoStop2
	ParamHiStop2
	ParamBounce2
	ParamStopERP2
	ParamLoStop3
	ParamHiStop3
	ParamBounce3
	ParamStopERP3
	ParamStopCFM
	// ParamVelocity and ParamMaxForce drive a hinge axis towards a target
	// angular rate with at most ParamMaxForce of torque.
	ParamVelocity
	ParamVelocity2
	ParamMaxForce
	ParamMaxForce2
	ParamSuspensionERP
	ParamSuspensionCFM
	// ParamTorque is a torque applied about a motor axis every step.
	ParamTorque
	ParamTorque2
	ParamTorque3
	// ParamNumAxes is the number of enabled motor axes, 0 to 3.
	ParamNumAxes
	numJointParams
)

// NumJointParams is the number of JointParam values.
const NumJointParams = int(numJointParams)

// JointGroup batches joints for bulk destruction.
type JointGroup interface {
	Empty()
	Destroy()
}

// Joint constrains two bodies. A nil body anchors to the static world.
type Joint interface {
	Kind() JointKind
	Attach(b1, b2 Body)
	SetAnchor(p r3.Vec)
	// Anchor returns the anchor as seen from body 1 or 2, in world space.
	Anchor(which int) r3.Vec
	// SetAxis sets axis 1, 2 or 3. Axis 1 turns with body 1, the others
	// with body 2.
	SetAxis(which int, axis r3.Vec)
	Axis(which int) r3.Vec
	SetParam(p JointParam, v float64)
	Param(p JointParam) float64
	// Angle and AngleRate apply to hinges.
	Angle() float64
	AngleRate() float64
	// AxisAngle and AxisAngleRate measure the rotation of body 1 relative
	// to body 2 about axis 1, 2 or 3 since attachment.
	AxisAngle(which int) float64
	AxisAngleRate(which int) float64
	// Separation and SeparationRate apply to sliders.
	Separation() float64
	SeparationRate() float64
	Destroy()
}

// ShapeKind enumerates collision shapes.
type ShapeKind uint8

const (
	ShapeBox ShapeKind = iota
	ShapeSphere
	ShapeCapsule
	ShapeCone
	ShapeTriMesh
	ShapeTransform
)

func (k ShapeKind) String() string {
	switch k {
	case ShapeBox:
		return "box"
	case ShapeSphere:
		return "sphere"
	case ShapeCapsule:
		return "capsule"
	case ShapeCone:
		return "cone"
	case ShapeTriMesh:
		return "trimesh"
	case ShapeTransform:
		return "transform"
	}
	return fmt.Sprintf("ShapeKind(%d)", uint8(k))
}

// Shape describes collision geometry. Size is the full box extent; Radius
// and Length describe spheres, capsules and cones, whose axis is Y;
// Vertices holds a triangle list. A transform shape wraps Child, placing it
// by the child's own position and orientation relative to the transform.
// The wrapped child no longer collides on its own.
type Shape struct {
	Kind     ShapeKind
	Size     r3.Vec
	Radius   float64
	Length   float64
	Vertices []r3.Vec
	Child    Geom
}

// Geom is a piece of collision geometry. Position and orientation are the
// geom's placement: relative to its body when attached, world otherwise.
type Geom interface {
	ID() uint32
	Kind() ShapeKind
	SetPosition(p r3.Vec)
	Position() r3.Vec
	SetOrientation(q quat.Number)
	Orientation() quat.Number
	SetEnabled(enabled bool)
	Enabled() bool
	// WorldPose returns the placement resolved against the body.
	WorldPose() Pose
	// Body returns the id of the body the geom follows, zero if none.
	Body() uint32
	Destroy()
}

// Space groups geoms tested against each other.
type Space interface {
	Add(g Geom)
	Remove(g Geom)
	SetSurface(s Surface)
	// Collide regenerates the contact stream and returns its length.
	Collide() int
	// Contacts returns the contact stream of the last Collide.
	Contacts() *BulkContact
	// Apply feeds the non-ignored contacts of the last Collide to the
	// solver for the next Step.
	Apply()
	Destroy()
}
