package rigid

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/rigidsync/physics"
	"github.com/pthm-cable/rigidsync/scene"
)

const (
	rbcAutoDisable = iota
	rbcBodies
	rbcCollider
	rbcConstantForceMix
	rbcContactSurfaceThickness
	rbcDisableAngularSpeed
	rbcDisableLinearSpeed
	rbcDisableTime
	rbcEnabled
	rbcErrorCorrection
	rbcGravity
	rbcIterations
	rbcJoints
	rbcMaxCorrectionSpeed
	rbcPreferAccuracy
	rbcSetContacts
	rbcMetadata
)

var rigidBodyCollectionTable = scene.NewTable("RigidBodyCollection",
	scene.Field{Index: rbcAutoDisable, Name: "autoDisable", Access: scene.InputOutput, Type: scene.TypeSFBool},
	scene.Field{Index: rbcBodies, Name: "bodies", Access: scene.InputOutput, Type: scene.TypeMFNode},
	scene.Field{Index: rbcCollider, Name: "collider", Access: scene.InitializeOnly, Type: scene.TypeSFNode},
	scene.Field{Index: rbcConstantForceMix, Name: "constantForceMix", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: rbcContactSurfaceThickness, Name: "contactSurfaceThickness", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: rbcDisableAngularSpeed, Name: "disableAngularSpeed", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: rbcDisableLinearSpeed, Name: "disableLinearSpeed", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: rbcDisableTime, Name: "disableTime", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: rbcEnabled, Name: "enabled", Access: scene.InputOutput, Type: scene.TypeSFBool},
	scene.Field{Index: rbcErrorCorrection, Name: "errorCorrection", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: rbcGravity, Name: "gravity", Access: scene.InputOutput, Type: scene.TypeSFVec3f},
	scene.Field{Index: rbcIterations, Name: "iterations", Access: scene.InputOutput, Type: scene.TypeSFInt32},
	scene.Field{Index: rbcJoints, Name: "joints", Access: scene.InputOutput, Type: scene.TypeMFNode},
	scene.Field{Index: rbcMaxCorrectionSpeed, Name: "maxCorrectionSpeed", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: rbcPreferAccuracy, Name: "preferAccuracy", Access: scene.InputOutput, Type: scene.TypeSFBool},
	scene.Field{Index: rbcSetContacts, Name: "set_contacts", Access: scene.Input, Type: scene.TypeMFNode},
	scene.Field{Index: rbcMetadata, Name: "metadata", Access: scene.InputOutput, Type: scene.TypeSFNode},
)

// RigidBodyCollection owns a native world holding its bodies and joints.
// Contacts from its collider are applied every step; contacts routed into
// set_contacts override the parameters of their entries in that stream.
type RigidBodyCollection struct {
	binding
	engine physics.Engine

	autoDisable         scene.SFBool
	constantForceMix    scene.SFFloat
	surfaceThickness    scene.SFFloat
	disableAngularSpeed scene.SFFloat
	disableLinearSpeed  scene.SFFloat
	disableTime         scene.SFFloat
	enabled             scene.SFBool
	errorCorrection     scene.SFFloat
	gravity             scene.SFVec3f
	iterations          scene.SFInt32
	maxCorrectionSpeed  scene.SFFloat
	preferAccuracy      scene.SFBool

	bodies   scene.SlotList[*RigidBody]
	joints   scene.SlotList[Joint]
	collider scene.Slot[*CollisionCollection]
	metadata scene.Slot[scene.Node]
	incoming []*Contact

	// memberErr collects member binding failures of the last setup.
	memberErr error
}

func NewRigidBodyCollection(e physics.Engine) *RigidBodyCollection {
	n := &RigidBodyCollection{
		engine:             e,
		constantForceMix:   0.0001,
		enabled:            true,
		errorCorrection:    0.8,
		gravity:            scene.SFVec3f{0, -9.8, 0},
		iterations:         10,
		maxCorrectionSpeed: -1,
		bodies:             scene.NewSlotList[*RigidBody]("RigidBody"),
		joints:             scene.NewSlotList[Joint]("X3DRigidJointNode"),
		collider:           scene.NewSlot[*CollisionCollection]("CollisionCollection"),
		metadata:           scene.NewSlot[scene.Node]("X3DMetadataObject"),
	}
	n.Init(rigidBodyCollectionTable, n)
	return n
}

// Bodies returns the resolved bodies.
func (n *RigidBodyCollection) Bodies() []*RigidBody { return n.bodies.Nodes() }

// Joints returns the resolved joints.
func (n *RigidBodyCollection) Joints() []Joint { return n.joints.Nodes() }

// Collider returns the collision collection feeding contacts, if any.
func (n *RigidBodyCollection) Collider() (*CollisionCollection, bool) { return n.collider.Get() }

// Enabled reports whether the collection is bound and stepping.
func (n *RigidBodyCollection) Enabled() bool { return n.state == Bound && bool(n.enabled) }

func (n *RigidBodyCollection) FieldValue(i int) (scene.Value, error) {
	switch i {
	case rbcAutoDisable:
		return n.autoDisable, nil
	case rbcBodies:
		return n.bodies.Refs(), nil
	case rbcCollider:
		return scene.SFNode{Ref: n.collider.Ref()}, nil
	case rbcConstantForceMix:
		return n.constantForceMix, nil
	case rbcContactSurfaceThickness:
		return n.surfaceThickness, nil
	case rbcDisableAngularSpeed:
		return n.disableAngularSpeed, nil
	case rbcDisableLinearSpeed:
		return n.disableLinearSpeed, nil
	case rbcDisableTime:
		return n.disableTime, nil
	case rbcEnabled:
		return n.enabled, nil
	case rbcErrorCorrection:
		return n.errorCorrection, nil
	case rbcGravity:
		return n.gravity, nil
	case rbcIterations:
		return n.iterations, nil
	case rbcJoints:
		return n.joints.Refs(), nil
	case rbcMaxCorrectionSpeed:
		return n.maxCorrectionSpeed, nil
	case rbcPreferAccuracy:
		return n.preferAccuracy, nil
	case rbcSetContacts:
		out := make(scene.MFNode, len(n.incoming))
		for k, c := range n.incoming {
			out[k] = scene.Direct(c)
		}
		return out, nil
	case rbcMetadata:
		return scene.SFNode{Ref: n.metadata.Ref()}, nil
	}
	return nil, n.UnknownField(i)
}

func (n *RigidBodyCollection) SetValue(i int, v scene.Value) error {
	if _, err := n.CheckWrite(i, v); err != nil {
		return err
	}
	switch i {
	case rbcAutoDisable:
		n.autoDisable = v.(scene.SFBool)
	case rbcBodies:
		before := n.bodies.Nodes()
		if err := n.bodies.Set(v.(scene.MFNode)); err != nil {
			return n.InvalidCause(i, err)
		}
		if n.state == Bound {
			n.rehome(bodyBindings(before), bodyBindings(n.bodies.Nodes()), nil)
		}
	case rbcCollider:
		if err := n.collider.Set(v.(scene.SFNode).Ref); err != nil {
			return n.InvalidCause(i, err)
		}
	case rbcConstantForceMix, rbcContactSurfaceThickness, rbcDisableAngularSpeed, rbcDisableLinearSpeed, rbcDisableTime:
		f := v.(scene.SFFloat)
		if f < 0 {
			return n.Invalid(i, fmt.Sprintf("must not be negative, got %v", f))
		}
		switch i {
		case rbcConstantForceMix:
			n.constantForceMix = f
		case rbcContactSurfaceThickness:
			n.surfaceThickness = f
		case rbcDisableAngularSpeed:
			n.disableAngularSpeed = f
		case rbcDisableLinearSpeed:
			n.disableLinearSpeed = f
		default:
			n.disableTime = f
		}
	case rbcEnabled:
		n.enabled = v.(scene.SFBool)
	case rbcErrorCorrection:
		f := v.(scene.SFFloat)
		if !unit(f) {
			return n.Invalid(i, fmt.Sprintf("must be in [0,1], got %v", f))
		}
		n.errorCorrection = f
	case rbcGravity:
		g := v.(scene.SFVec3f)
		if !finite(g) {
			return n.Invalid(i, "gravity must be finite")
		}
		n.gravity = g
	case rbcIterations:
		it := v.(scene.SFInt32)
		if it < 1 {
			return n.Invalid(i, fmt.Sprintf("iterations must be positive, got %d", it))
		}
		n.iterations = it
	case rbcJoints:
		before := n.joints.Nodes()
		if err := n.joints.Set(v.(scene.MFNode)); err != nil {
			return n.InvalidCause(i, err)
		}
		if n.state == Bound {
			n.rehome(jointBindings(before), jointBindings(n.joints.Nodes()), n.group)
		}
	case rbcMaxCorrectionSpeed:
		f := v.(scene.SFFloat)
		if f < 0 && f != -1 {
			return n.Invalid(i, fmt.Sprintf("must be -1 or non-negative, got %v", f))
		}
		n.maxCorrectionSpeed = f
	case rbcPreferAccuracy:
		n.preferAccuracy = v.(scene.SFBool)
	case rbcSetContacts:
		refs := v.(scene.MFNode)
		incoming := make([]*Contact, 0, len(refs))
		for _, r := range refs {
			c, ok, err := scene.ResolveAs[*Contact](r, "Contact")
			if err != nil {
				return n.InvalidCause(i, err)
			}
			if ok {
				incoming = append(incoming, c)
			}
		}
		n.incoming = incoming
	case rbcMetadata:
		if err := n.metadata.Set(v.(scene.SFNode).Ref); err != nil {
			return n.InvalidCause(i, err)
		}
	}
	if n.world != nil && i != rbcSetContacts {
		n.world.SetParams(n.params())
	}
	n.Notify(i)
	return nil
}

func (n *RigidBodyCollection) params() physics.WorldParams {
	return physics.WorldParams{
		Gravity:                 vec(n.gravity),
		Iterations:              int(n.iterations),
		PreferAccuracy:          bool(n.preferAccuracy),
		ErrorCorrection:         float64(n.errorCorrection),
		ConstantForceMix:        float64(n.constantForceMix),
		MaxCorrectionSpeed:      float64(n.maxCorrectionSpeed),
		ContactSurfaceThickness: float64(n.surfaceThickness),
		AutoDisable: physics.AutoDisable{
			Enabled:      bool(n.autoDisable),
			LinearSpeed:  float64(n.disableLinearSpeed),
			AngularSpeed: float64(n.disableAngularSpeed),
			Time:         float64(n.disableTime),
		},
	}
}

// Gravity returns the world gravity as configured.
func (n *RigidBodyCollection) Gravity() r3.Vec { return vec(n.gravity) }

func bodyBindings(bodies []*RigidBody) []Binding {
	out := make([]Binding, len(bodies))
	for i, b := range bodies {
		out[i] = b
	}
	return out
}

func jointBindings(joints []Joint) []Binding {
	out := make([]Binding, len(joints))
	for i, j := range joints {
		out[i] = j
	}
	return out
}

// rehome unbinds members no longer listed and binds new ones.
func (n *RigidBodyCollection) rehome(before, after []Binding, g physics.JointGroup) {
	keep := make(map[Binding]bool, len(after))
	for _, b := range after {
		keep[b] = true
	}
	for _, b := range before {
		if !keep[b] {
			if err := b.SetWorld(nil, nil); err != nil {
				n.Logger().Warn("unbind failed", "node", b.NodeBase().ID(), "error", err)
			}
		}
	}
	for _, b := range after {
		if err := joinChild(b, n.world, g); err != nil {
			n.Logger().Warn("bind failed", "node", b.NodeBase().ID(), "type", b.NodeBase().TypeName(), "error", err)
		}
	}
}

func (n *RigidBodyCollection) create(physics.World, physics.JointGroup) error {
	if n.engine == nil {
		return ErrNoWorld
	}
	w, err := n.engine.NewWorld(n.params())
	if err != nil {
		return err
	}
	g, err := w.NewJointGroup()
	if err != nil {
		w.Destroy()
		return err
	}
	n.world, n.group = w, g

	var errs []error
	if coll, ok := n.collider.Get(); ok {
		errs = append(errs, joinChild(coll, w, nil))
	}
	for _, b := range n.bodies.Nodes() {
		errs = append(errs, joinChild(b, w, nil))
	}
	for _, j := range n.joints.Nodes() {
		errs = append(errs, joinChild(j, w, g))
	}
	if err := errors.Join(errs...); err != nil {
		n.Logger().Warn("collection members failed to bind", "node", n.ID(), "error", err)
		n.memberErr = err
	}
	return nil
}

func (n *RigidBodyCollection) destroy() {
	for _, j := range n.joints.Nodes() {
		j.SetWorld(nil, nil)
	}
	for _, b := range n.bodies.Nodes() {
		b.SetWorld(nil, nil)
	}
	if coll, ok := n.collider.Get(); ok {
		coll.SetWorld(nil, nil)
	}
	n.group.Destroy()
	n.world.Destroy()
	n.world, n.group = nil, nil
	n.incoming = nil
}

// SetupFinished creates the world and binds the collider, bodies and
// joints to it. Failures of individual members are joined into the error;
// the collection itself stays Bound.
func (n *RigidBodyCollection) SetupFinished() error {
	if !n.InSetup() || n.Deleted() {
		return nil
	}
	for _, err := range []error{n.bodies.Rebind(), n.joints.Rebind(), n.collider.Rebind()} {
		if err != nil {
			return err
		}
	}
	n.EndSetup()
	n.state = Unbound
	n.memberErr = nil
	if err := n.create(nil, nil); err != nil {
		return fmt.Errorf("bind %s#%d: %w", n.TypeName(), n.ID(), err)
	}
	n.state = Bound
	return n.memberErr
}

func (n *RigidBodyCollection) Delete() {
	if !n.retire(n) {
		return
	}
	n.bodies.Clear()
	n.joints.Clear()
	n.collider.Clear()
	n.metadata.Clear()
}

// Evaluate applies contacts and forces and advances the world by dt.
func (n *RigidBodyCollection) Evaluate(dt float64) error {
	if !n.Enabled() {
		return nil
	}
	n.applyContacts()
	for _, b := range n.bodies.Nodes() {
		b.PreStep()
	}
	return n.world.Step(dt)
}

func (n *RigidBodyCollection) applyContacts() {
	coll, ok := n.collider.Get()
	if !ok || !coll.Enabled() || coll.World() != n.world {
		n.incoming = n.incoming[:0]
		return
	}
	bulk := coll.Contacts()
	for _, c := range n.incoming {
		if !c.current(coll) {
			n.Logger().Debug("contact from another stream ignored", "node", n.ID(), "contact", c.ID())
			continue
		}
		c.store(bulk.At(c.index))
	}
	n.incoming = n.incoming[:0]
	coll.ApplyContacts()
}

// PullOutputs refreshes the outputs of every body.
func (n *RigidBodyCollection) PullOutputs() {
	if !n.Enabled() {
		return
	}
	for _, b := range n.bodies.Nodes() {
		b.PullOutputs()
	}
}
