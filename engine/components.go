package engine

import (
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/rigidsync/physics"
)

// Bodies and geoms both carry a physics.Pose component holding their world
// placement.

// Motion holds the velocity and accumulated loads of a body.
type Motion struct {
	Linear  r3.Vec
	Angular r3.Vec
	Force   r3.Vec
	Torque  r3.Vec
}

// Dynamics holds mass response and sleep state of a body.
type Dynamics struct {
	InvMass        float64
	InvInertia     r3.Vec // diagonal, body frame
	Enabled        bool
	Kinematic      bool
	Gravity        bool
	AutoDisable    physics.AutoDisable
	Idle           float64 // seconds spent below the auto-disable thresholds
	FiniteRotation bool
	FiniteAxis     r3.Vec
}

// Collider holds the shape of a geom and where it sits on its body.
type Collider struct {
	Shape   physics.Shape
	Local   physics.Pose // relative to Body when attached
	Body    uint32       // zero when static
	Enabled bool
}

// Constraint holds the state of a joint. Body ids are zero for the static world.
type Constraint struct {
	Kind      physics.JointKind
	Body1     uint32
	Body2     uint32
	Anchor    r3.Vec // world anchor as last set
	Local1    r3.Vec // anchor in body 1 frame
	Local2    r3.Vec // anchor in body 2 frame
	Axis      [3]r3.Vec
	Ref1      quat.Number // body orientations when attached
	Ref2      quat.Number
	RefOffset r3.Vec // body 1 minus body 2 position when attached
	Params    [physics.NumJointParams]float64
}
