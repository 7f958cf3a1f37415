package rigid

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/rigidsync/physics"
	"github.com/pthm-cable/rigidsync/scene"
)

const (
	bodyAngularDampingFactor = iota
	bodyAngularVelocity
	bodyAutoDamp
	bodyAutoDisable
	bodyCenterOfMass
	bodyDisableAngularSpeed
	bodyDisableLinearSpeed
	bodyDisableTime
	bodyEnabled
	bodyFiniteRotationAxis
	bodyFixed
	bodyForces
	bodyGeometry
	bodyInertia
	bodyLinearDampingFactor
	bodyLinearVelocity
	bodyMass
	bodyMassDensityModel
	bodyOrientation
	bodyPosition
	bodyTorques
	bodyUseFiniteRotation
	bodyUseGlobalGravity
	bodyMetadata
)

var bodyTable = scene.NewTable("RigidBody",
	scene.Field{Index: bodyAngularDampingFactor, Name: "angularDampingFactor", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: bodyAngularVelocity, Name: "angularVelocity", Access: scene.InputOutput, Type: scene.TypeSFVec3f},
	scene.Field{Index: bodyAutoDamp, Name: "autoDamp", Access: scene.InputOutput, Type: scene.TypeSFBool},
	scene.Field{Index: bodyAutoDisable, Name: "autoDisable", Access: scene.InputOutput, Type: scene.TypeSFBool},
	scene.Field{Index: bodyCenterOfMass, Name: "centerOfMass", Access: scene.InputOutput, Type: scene.TypeSFVec3f},
	scene.Field{Index: bodyDisableAngularSpeed, Name: "disableAngularSpeed", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: bodyDisableLinearSpeed, Name: "disableLinearSpeed", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: bodyDisableTime, Name: "disableTime", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: bodyEnabled, Name: "enabled", Access: scene.InputOutput, Type: scene.TypeSFBool},
	scene.Field{Index: bodyFiniteRotationAxis, Name: "finiteRotationAxis", Access: scene.InputOutput, Type: scene.TypeSFVec3f},
	scene.Field{Index: bodyFixed, Name: "fixed", Access: scene.InputOutput, Type: scene.TypeSFBool},
	scene.Field{Index: bodyForces, Name: "forces", Access: scene.InputOutput, Type: scene.TypeMFVec3f},
	scene.Field{Index: bodyGeometry, Name: "geometry", Access: scene.InputOutput, Type: scene.TypeMFNode},
	scene.Field{Index: bodyInertia, Name: "inertia", Access: scene.InputOutput, Type: scene.TypeSFMatrix3f},
	scene.Field{Index: bodyLinearDampingFactor, Name: "linearDampingFactor", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: bodyLinearVelocity, Name: "linearVelocity", Access: scene.InputOutput, Type: scene.TypeSFVec3f},
	scene.Field{Index: bodyMass, Name: "mass", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: bodyMassDensityModel, Name: "massDensityModel", Access: scene.InputOutput, Type: scene.TypeSFNode},
	scene.Field{Index: bodyOrientation, Name: "orientation", Access: scene.InputOutput, Type: scene.TypeSFRotation},
	scene.Field{Index: bodyPosition, Name: "position", Access: scene.InputOutput, Type: scene.TypeSFVec3f},
	scene.Field{Index: bodyTorques, Name: "torques", Access: scene.InputOutput, Type: scene.TypeMFVec3f},
	scene.Field{Index: bodyUseFiniteRotation, Name: "useFiniteRotation", Access: scene.InputOutput, Type: scene.TypeSFBool},
	scene.Field{Index: bodyUseGlobalGravity, Name: "useGlobalGravity", Access: scene.InputOutput, Type: scene.TypeSFBool},
	scene.Field{Index: bodyMetadata, Name: "metadata", Access: scene.InputOutput, Type: scene.TypeSFNode},
)

// RigidBody is a simulated body. Forces and torques are applied before
// every step; pose and velocities are read back after it.
type RigidBody struct {
	binding

	angularDamping      scene.SFFloat
	angularVelocity     scene.SFVec3f
	autoDamp            scene.SFBool
	autoDisable         scene.SFBool
	centerOfMass        scene.SFVec3f
	disableAngularSpeed scene.SFFloat
	disableLinearSpeed  scene.SFFloat
	disableTime         scene.SFFloat
	enabled             scene.SFBool
	finiteRotationAxis  scene.SFVec3f
	fixed               scene.SFBool
	forces              scene.MFVec3f
	inertia             scene.SFMatrix3f
	linearDamping       scene.SFFloat
	linearVelocity      scene.SFVec3f
	mass                scene.SFFloat
	orientation         scene.SFRotation
	position            scene.SFVec3f
	torques             scene.MFVec3f
	useFiniteRotation   scene.SFBool
	useGlobalGravity    scene.SFBool

	geometry     scene.SlotList[Collidable]
	densityModel scene.Slot[Geometry]
	metadata     scene.Slot[scene.Node]

	body     physics.Body
	attached []physics.Geom
}

func NewRigidBody() *RigidBody {
	n := &RigidBody{
		angularDamping:   0.001,
		linearDamping:    0.001,
		enabled:          true,
		inertia:          scene.Identity3,
		mass:             1,
		orientation:      scene.SFRotation{0, 0, 1, 0},
		useGlobalGravity: true,
		geometry:         scene.NewSlotList[Collidable]("X3DNBodyCollidableNode"),
		densityModel:     scene.NewSlot[Geometry]("X3DGeometryNode"),
		metadata:         scene.NewSlot[scene.Node]("X3DMetadataObject"),
	}
	n.Init(bodyTable, n)
	return n
}

// Handle returns the native body, nil unless Bound.
func (n *RigidBody) Handle() physics.Body { return n.body }

// Collidables returns the resolved geometry of the body.
func (n *RigidBody) Collidables() []Collidable { return n.geometry.Nodes() }

func (n *RigidBody) Mass() float64 { return float64(n.mass) }

func (n *RigidBody) FieldValue(i int) (scene.Value, error) {
	switch i {
	case bodyAngularDampingFactor:
		return n.angularDamping, nil
	case bodyAngularVelocity:
		return n.angularVelocity, nil
	case bodyAutoDamp:
		return n.autoDamp, nil
	case bodyAutoDisable:
		return n.autoDisable, nil
	case bodyCenterOfMass:
		return n.centerOfMass, nil
	case bodyDisableAngularSpeed:
		return n.disableAngularSpeed, nil
	case bodyDisableLinearSpeed:
		return n.disableLinearSpeed, nil
	case bodyDisableTime:
		return n.disableTime, nil
	case bodyEnabled:
		return n.enabled, nil
	case bodyFiniteRotationAxis:
		return n.finiteRotationAxis, nil
	case bodyFixed:
		return n.fixed, nil
	case bodyForces:
		return n.forces, nil
	case bodyGeometry:
		return n.geometry.Refs(), nil
	case bodyInertia:
		return n.inertia, nil
	case bodyLinearDampingFactor:
		return n.linearDamping, nil
	case bodyLinearVelocity:
		return n.linearVelocity, nil
	case bodyMass:
		return n.mass, nil
	case bodyMassDensityModel:
		return scene.SFNode{Ref: n.densityModel.Ref()}, nil
	case bodyOrientation:
		return n.orientation, nil
	case bodyPosition:
		return n.position, nil
	case bodyTorques:
		return n.torques, nil
	case bodyUseFiniteRotation:
		return n.useFiniteRotation, nil
	case bodyUseGlobalGravity:
		return n.useGlobalGravity, nil
	case bodyMetadata:
		return scene.SFNode{Ref: n.metadata.Ref()}, nil
	}
	return nil, n.UnknownField(i)
}

func (n *RigidBody) SetValue(i int, v scene.Value) error {
	if _, err := n.CheckWrite(i, v); err != nil {
		return err
	}
	switch i {
	case bodyAngularDampingFactor, bodyLinearDampingFactor:
		f := v.(scene.SFFloat)
		if !unit(f) {
			return n.Invalid(i, fmt.Sprintf("damping factor must be in [0,1], got %v", f))
		}
		if i == bodyAngularDampingFactor {
			n.angularDamping = f
		} else {
			n.linearDamping = f
		}
	case bodyAngularVelocity:
		n.angularVelocity = v.(scene.SFVec3f)
		if n.body != nil {
			n.body.SetAngularVelocity(vec(n.angularVelocity))
		}
	case bodyAutoDamp:
		n.autoDamp = v.(scene.SFBool)
	case bodyAutoDisable:
		n.autoDisable = v.(scene.SFBool)
		n.pushAutoDisable()
	case bodyCenterOfMass:
		n.centerOfMass = v.(scene.SFVec3f)
		n.pushMass()
	case bodyDisableAngularSpeed, bodyDisableLinearSpeed, bodyDisableTime:
		f := v.(scene.SFFloat)
		if f < 0 {
			return n.Invalid(i, fmt.Sprintf("must not be negative, got %v", f))
		}
		switch i {
		case bodyDisableAngularSpeed:
			n.disableAngularSpeed = f
		case bodyDisableLinearSpeed:
			n.disableLinearSpeed = f
		default:
			n.disableTime = f
		}
		n.pushAutoDisable()
	case bodyEnabled:
		n.enabled = v.(scene.SFBool)
		if n.body != nil {
			n.body.SetEnabled(bool(n.enabled))
		}
	case bodyFiniteRotationAxis:
		n.finiteRotationAxis = v.(scene.SFVec3f)
		n.pushFiniteRotation()
	case bodyFixed:
		n.fixed = v.(scene.SFBool)
		if n.body != nil {
			n.body.SetKinematic(bool(n.fixed))
		}
	case bodyForces:
		n.forces = append(scene.MFVec3f(nil), v.(scene.MFVec3f)...)
	case bodyGeometry:
		if err := n.geometry.Set(v.(scene.MFNode)); err != nil {
			return n.InvalidCause(i, err)
		}
		if n.body != nil {
			n.attachGeometry()
		}
	case bodyInertia:
		n.inertia = v.(scene.SFMatrix3f)
		n.pushMass()
	case bodyLinearVelocity:
		n.linearVelocity = v.(scene.SFVec3f)
		if n.body != nil {
			n.body.SetLinearVelocity(vec(n.linearVelocity))
		}
	case bodyMass:
		m := v.(scene.SFFloat)
		if m <= 0 {
			return n.Invalid(i, fmt.Sprintf("mass must be positive, got %v", m))
		}
		n.mass = m
		n.pushMass()
	case bodyMassDensityModel:
		if err := n.densityModel.Set(v.(scene.SFNode).Ref); err != nil {
			return n.InvalidCause(i, err)
		}
	case bodyOrientation:
		r := v.(scene.SFRotation)
		if !validRotation(r) {
			return n.Invalid(i, "rotation axis must not be zero")
		}
		n.orientation = r
		if n.body != nil {
			n.body.SetOrientation(orientation(r))
		}
	case bodyPosition:
		p := v.(scene.SFVec3f)
		if !finite(p) {
			return n.Invalid(i, "position must be finite")
		}
		n.position = p
		if n.body != nil {
			n.body.SetPosition(vec(p))
		}
	case bodyTorques:
		n.torques = append(scene.MFVec3f(nil), v.(scene.MFVec3f)...)
	case bodyUseFiniteRotation:
		n.useFiniteRotation = v.(scene.SFBool)
		n.pushFiniteRotation()
	case bodyUseGlobalGravity:
		n.useGlobalGravity = v.(scene.SFBool)
		if n.body != nil {
			n.body.SetGravity(bool(n.useGlobalGravity))
		}
	case bodyMetadata:
		if err := n.metadata.Set(v.(scene.SFNode).Ref); err != nil {
			return n.InvalidCause(i, err)
		}
	}
	n.Notify(i)
	return nil
}

func (n *RigidBody) pushMass() {
	if n.body == nil {
		return
	}
	n.body.SetMass(physics.Mass{
		Mass:         float64(n.mass),
		CenterOfMass: vec(n.centerOfMass),
		Inertia:      inertia(n.inertia),
	})
}

func (n *RigidBody) pushAutoDisable() {
	if n.body == nil {
		return
	}
	n.body.SetAutoDisable(physics.AutoDisable{
		Enabled:      bool(n.autoDisable),
		LinearSpeed:  float64(n.disableLinearSpeed),
		AngularSpeed: float64(n.disableAngularSpeed),
		Time:         float64(n.disableTime),
	})
}

func (n *RigidBody) pushFiniteRotation() {
	if n.body == nil {
		return
	}
	n.body.SetFiniteRotation(bool(n.useFiniteRotation), vec(n.finiteRotationAxis))
}

// attachGeometry makes the body's collidables follow it, binding any that
// are not yet in the body's world.
func (n *RigidBody) attachGeometry() {
	n.detachGeometry()
	for _, c := range n.geometry.Nodes() {
		if c.World() != n.world {
			if err := joinChild(c, n.world, nil); err != nil {
				n.Logger().Warn("collidable bind failed", "node", n.ID(), "collidable", c.NodeBase().ID(), "error", err)
				continue
			}
		}
		if g := c.Geom(); g != nil {
			n.body.AttachGeom(g)
			n.attached = append(n.attached, g)
		}
	}
}

func (n *RigidBody) detachGeometry() {
	for _, g := range n.attached {
		n.body.DetachGeom(g)
	}
	n.attached = n.attached[:0]
}

func (n *RigidBody) create(w physics.World, _ physics.JointGroup) error {
	b, err := w.NewBody()
	if err != nil {
		return err
	}
	n.body = b
	n.world = w
	n.pushMass()
	b.SetPosition(vec(n.position))
	b.SetOrientation(orientation(n.orientation))
	b.SetLinearVelocity(vec(n.linearVelocity))
	b.SetAngularVelocity(vec(n.angularVelocity))
	b.SetKinematic(bool(n.fixed))
	b.SetGravity(bool(n.useGlobalGravity))
	n.pushAutoDisable()
	n.pushFiniteRotation()
	n.attachGeometry()
	b.SetEnabled(bool(n.enabled))
	return nil
}

func (n *RigidBody) destroy() {
	n.detachGeometry()
	n.body.Destroy()
	n.body = nil
}

func (n *RigidBody) SetupFinished() error { return n.FinishSetup(nil, nil) }

func (n *RigidBody) FinishSetup(w physics.World, g physics.JointGroup) error {
	if n.InSetup() {
		if err := n.geometry.Rebind(); err != nil {
			return n.InvalidCause(bodyGeometry, err)
		}
		if err := n.densityModel.Rebind(); err != nil {
			return n.InvalidCause(bodyMassDensityModel, err)
		}
	}
	return n.finishSetup(n, w, g)
}

func (n *RigidBody) SetWorld(w physics.World, g physics.JointGroup) error {
	return n.setWorld(n, w, g)
}

func (n *RigidBody) Delete() {
	if !n.retire(n) {
		return
	}
	n.geometry.Clear()
	n.densityModel.Clear()
	n.metadata.Clear()
}

// PreStep applies the accumulated forces, torques and automatic damping.
func (n *RigidBody) PreStep() {
	if n.body == nil || !n.enabled || n.fixed {
		return
	}
	for _, f := range n.forces {
		n.body.AddForce(vec(f))
	}
	for _, t := range n.torques {
		n.body.AddTorque(vec(t))
	}
	if n.autoDamp {
		n.body.AddForce(r3.Scale(-float64(n.linearDamping)*float64(n.mass), n.body.LinearVelocity()))
		n.body.AddTorque(r3.Scale(-float64(n.angularDamping), n.body.AngularVelocity()))
	}
}

// PullOutputs copies the simulated pose and velocities back into the
// fields and fires them.
func (n *RigidBody) PullOutputs() {
	if n.body == nil || !n.enabled {
		return
	}
	n.position = sfvec(n.body.Position())
	n.orientation = sfrot(n.body.Orientation())
	n.linearVelocity = sfvec(n.body.LinearVelocity())
	n.angularVelocity = sfvec(n.body.AngularVelocity())
	n.Notify(bodyPosition)
	n.Notify(bodyOrientation)
	n.Notify(bodyLinearVelocity)
	n.Notify(bodyAngularVelocity)
}
