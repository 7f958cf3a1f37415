// Package rigid binds the X3D rigid body physics nodes to native physics
// handles. Each binding node keeps its field values on the scene side and
// mirrors them into the handle of the world it is bound to.
package rigid

import (
	"errors"
	"fmt"

	"github.com/pthm-cable/rigidsync/physics"
	"github.com/pthm-cable/rigidsync/scene"
)

var (
	// ErrUnsupportedShapeKind is returned for geometry without a collision form.
	ErrUnsupportedShapeKind = errors.New("rigid: unsupported shape kind")
	// ErrNoWorld is returned when an operation needs a bound world.
	ErrNoWorld = errors.New("rigid: no world")
	// ErrNoGeometry is returned when a collidable has no shape to build from.
	ErrNoGeometry = errors.New("rigid: collidable has no geometry")
)

// ShapeError reports geometry that cannot be turned into a collision shape.
type ShapeError struct {
	Kind string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("rigid: geometry %s has no collision shape", e.Kind)
}

func (e *ShapeError) Unwrap() error { return ErrUnsupportedShapeKind }

// State is the lifecycle state of a binding.
type State uint8

const (
	// Setup: fields are being bulk assigned and nothing is pushed.
	Setup State = iota
	// Unbound: setup finished without a world; no native handle exists.
	Unbound
	// Bound: a native handle exists and writes are pushed to it.
	Bound
)

func (s State) String() string {
	switch s {
	case Setup:
		return "setup"
	case Unbound:
		return "unbound"
	case Bound:
		return "bound"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Binding is a node mirrored by a native handle.
type Binding interface {
	scene.Node
	State() State
	// FinishSetup ends setup and creates the handle in w. A nil world
	// leaves the node Unbound as a template.
	FinishSetup(w physics.World, g physics.JointGroup) error
	// SetWorld moves the node to w, destroying any handle in the previous
	// world. A nil world unbinds.
	SetWorld(w physics.World, g physics.JointGroup) error
	// Delete destroys the handle and retires the node. It is idempotent.
	Delete()
}

// BodyMap resolves native body ids to their nodes.
type BodyMap map[uint32]*RigidBody

// GeomMap resolves native geom ids to their collidables.
type GeomMap map[uint32]Collidable

// handle is implemented by each binding to create and destroy its native
// counterpart.
type handle interface {
	create(w physics.World, g physics.JointGroup) error
	destroy()
}

// binding carries the lifecycle shared by every node backed by a handle.
type binding struct {
	scene.Base
	state State
	world physics.World
	group physics.JointGroup
}

func (b *binding) State() State { return b.state }

// World returns the world the node is bound to, nil otherwise.
func (b *binding) World() physics.World { return b.world }

func (b *binding) finishSetup(h handle, w physics.World, g physics.JointGroup) error {
	if b.Deleted() {
		return nil
	}
	if b.state != Setup {
		if b.state == Unbound && w != nil {
			return b.bind(h, w, g)
		}
		return nil
	}
	b.EndSetup()
	b.state = Unbound
	if w == nil {
		// A world assigned while in setup applies now.
		w, g = b.world, b.group
		b.world, b.group = nil, nil
	}
	if w == nil {
		return nil
	}
	return b.bind(h, w, g)
}

// abortSetup leaves setup unbound after a reference failed to resolve.
// A world assigned during setup is dropped.
func (b *binding) abortSetup() {
	b.EndSetup()
	b.state = Unbound
	b.world, b.group = nil, nil
}

func (b *binding) setWorld(h handle, w physics.World, g physics.JointGroup) error {
	if b.Deleted() {
		return nil
	}
	if b.state == Setup {
		b.world, b.group = w, g
		return nil
	}
	if b.state == Bound {
		if b.world == w && b.group == g {
			return nil
		}
		b.unbind(h)
	}
	if w == nil {
		return nil
	}
	return b.bind(h, w, g)
}

func (b *binding) bind(h handle, w physics.World, g physics.JointGroup) error {
	if err := h.create(w, g); err != nil {
		b.state = Unbound
		b.world, b.group = nil, nil
		return fmt.Errorf("bind %s#%d: %w", b.TypeName(), b.ID(), err)
	}
	b.world, b.group = w, g
	b.state = Bound
	return nil
}

func (b *binding) unbind(h handle) {
	if b.state == Bound {
		h.destroy()
	}
	b.state = Unbound
	b.world, b.group = nil, nil
}

// retire unbinds and marks the node deleted. It reports false when the
// node was deleted already.
func (b *binding) retire(h handle) bool {
	if !b.MarkDeleted() {
		return false
	}
	b.EndSetup()
	b.unbind(h)
	return true
}

// joinChild brings child into w the way its state requires.
func joinChild(child Binding, w physics.World, g physics.JointGroup) error {
	if child.State() == Setup {
		return child.FinishSetup(w, g)
	}
	return child.SetWorld(w, g)
}

// Register installs every node type of the package into sc. Collections
// create their worlds from e.
func Register(sc *scene.Scene, e physics.Engine) {
	sc.Register("RigidBody", func() scene.Node { return NewRigidBody() })
	sc.Register("BallJoint", func() scene.Node { return NewBallJoint() })
	sc.Register("SingleAxisHingeJoint", func() scene.Node { return NewSingleAxisHingeJoint() })
	sc.Register("SliderJoint", func() scene.Node { return NewSliderJoint() })
	sc.Register("UniversalJoint", func() scene.Node { return NewUniversalJoint() })
	sc.Register("DoubleAxisHingeJoint", func() scene.Node { return NewDoubleAxisHingeJoint() })
	sc.Register("MotorJoint", func() scene.Node { return NewMotorJoint() })
	sc.Register("CollidableShape", func() scene.Node { return NewCollidableShape() })
	sc.Register("CollidableOffset", func() scene.Node { return NewCollidableOffset() })
	sc.Register("CollisionCollection", func() scene.Node { return NewCollisionCollection() })
	sc.Register("CollisionSensor", func() scene.Node { return NewCollisionSensor() })
	sc.Register("Contact", func() scene.Node { return NewContact() })
	sc.Register("RigidBodyCollection", func() scene.Node { return NewRigidBodyCollection(e) })
	sc.Register("Shape", func() scene.Node { return NewShape() })
	sc.Register("Box", func() scene.Node { return NewBox() })
	sc.Register("Sphere", func() scene.Node { return NewSphere() })
	sc.Register("Cone", func() scene.Node { return NewCone() })
	sc.Register("Cylinder", func() scene.Node { return NewCylinder() })
	sc.Register("TriangleSet", func() scene.Node { return NewTriangleSet() })
	sc.Register("Coordinate", func() scene.Node { return NewCoordinate() })
	for _, kind := range unsupportedKinds {
		kind := kind
		sc.Register(kind, func() scene.Node { return newUnsupported(kind) })
	}
}
