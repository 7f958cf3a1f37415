package rigid

import (
	"github.com/pthm-cable/rigidsync/physics"
	"github.com/pthm-cable/rigidsync/scene"
)

// Field indices shared by every joint type. Type specific fields follow.
const (
	jointBody1 = iota
	jointBody2
	jointForceOutput
	jointMetadata
	jointCommonFields
)

func jointTable(typeName string, fields ...scene.Field) *scene.Table {
	common := []scene.Field{
		{Index: jointBody1, Name: "body1", Access: scene.InputOutput, Type: scene.TypeSFNode},
		{Index: jointBody2, Name: "body2", Access: scene.InputOutput, Type: scene.TypeSFNode},
		{Index: jointForceOutput, Name: "forceOutput", Access: scene.InputOutput, Type: scene.TypeMFString},
		{Index: jointMetadata, Name: "metadata", Access: scene.InputOutput, Type: scene.TypeSFNode},
	}
	return scene.NewTable(typeName, append(common, fields...)...)
}

// Joint is a constraint node between two bodies.
type Joint interface {
	Binding
	// JointHandle returns the native joint, nil unless Bound.
	JointHandle() physics.Joint
	// Outputs returns the number of outputs selected by forceOutput.
	Outputs() int
	// PullOutputs reads every selected output from the native joint and fires it.
	PullOutputs()
}

// jointKind is implemented by each joint type.
type jointKind interface {
	scene.Node
	// push sends the anchor, axes and stops to j.
	push(j physics.Joint)
	// pull refreshes output field index from j and reports whether index
	// is an output of the joint type.
	pull(j physics.Joint, index int) bool
}

type jointBase struct {
	binding
	kind     physics.JointKind
	self     jointKind
	body1    scene.Slot[*RigidBody]
	body2    scene.Slot[*RigidBody]
	metadata scene.Slot[scene.Node]
	outputs  scene.Selection
	joint    physics.Joint
}

func (b *jointBase) init(t *scene.Table, kind physics.JointKind, self jointKind) {
	b.kind = kind
	b.self = self
	b.body1 = scene.NewSlot[*RigidBody]("RigidBody")
	b.body2 = scene.NewSlot[*RigidBody]("RigidBody")
	b.metadata = scene.NewSlot[scene.Node]("X3DMetadataObject")
	b.outputs.Update([]string{scene.SelectNone}, t)
	b.Init(t, self)
}

func (b *jointBase) JointHandle() physics.Joint { return b.joint }

func (b *jointBase) Outputs() int { return b.outputs.Len() }

// Bodies returns the resolved bodies. Either may be nil for the static world.
func (b *jointBase) Bodies() (*RigidBody, *RigidBody) {
	b1, _ := b.body1.Get()
	b2, _ := b.body2.Get()
	return b1, b2
}

func (b *jointBase) commonValue(i int) (scene.Value, error) {
	switch i {
	case jointBody1:
		return scene.SFNode{Ref: b.body1.Ref()}, nil
	case jointBody2:
		return scene.SFNode{Ref: b.body2.Ref()}, nil
	case jointForceOutput:
		return b.outputs.Tokens(), nil
	case jointMetadata:
		return scene.SFNode{Ref: b.metadata.Ref()}, nil
	}
	return nil, b.UnknownField(i)
}

// setCommon stores a shared field. The write was checked by the caller.
func (b *jointBase) setCommon(i int, v scene.Value) error {
	switch i {
	case jointBody1, jointBody2:
		slot := &b.body1
		if i == jointBody2 {
			slot = &b.body2
		}
		if err := slot.Set(v.(scene.SFNode).Ref); err != nil {
			return b.InvalidCause(i, err)
		}
		if b.joint != nil {
			b.attach()
		}
	case jointForceOutput:
		b.outputs.Update(v.(scene.MFString), b.Table())
	case jointMetadata:
		if err := b.metadata.Set(v.(scene.SFNode).Ref); err != nil {
			return b.InvalidCause(i, err)
		}
	}
	b.Notify(i)
	return nil
}

func (b *jointBase) attach() {
	var h1, h2 physics.Body
	if n, ok := b.body1.Get(); ok {
		h1 = n.Handle()
	}
	if n, ok := b.body2.Get(); ok {
		h2 = n.Handle()
	}
	b.joint.Attach(h1, h2)
	b.self.push(b.joint)
}

func (b *jointBase) create(w physics.World, g physics.JointGroup) error {
	j, err := w.NewJoint(b.kind, g)
	if err != nil {
		return err
	}
	b.joint = j
	b.attach()
	return nil
}

func (b *jointBase) destroy() {
	b.joint.Destroy()
	b.joint = nil
}

func (b *jointBase) SetupFinished() error { return b.FinishSetup(nil, nil) }

func (b *jointBase) FinishSetup(w physics.World, g physics.JointGroup) error {
	if b.InSetup() {
		if err := b.body1.Rebind(); err != nil {
			b.abortSetup()
			return b.InvalidCause(jointBody1, err)
		}
		if err := b.body2.Rebind(); err != nil {
			b.abortSetup()
			return b.InvalidCause(jointBody2, err)
		}
	}
	return b.finishSetup(b, w, g)
}

func (b *jointBase) SetWorld(w physics.World, g physics.JointGroup) error {
	return b.setWorld(b, w, g)
}

func (b *jointBase) Delete() {
	if !b.retire(b) {
		return
	}
	b.body1.Clear()
	b.body2.Clear()
	b.metadata.Clear()
}

func (b *jointBase) PullOutputs() {
	if b.joint == nil {
		return
	}
	for _, i := range b.outputs.Indices() {
		if b.self.pull(b.joint, i) {
			b.Notify(i)
		}
	}
}
