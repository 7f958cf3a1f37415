package rigid

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/rigidsync/physics"
	"github.com/pthm-cable/rigidsync/scene"
)

// Field indices shared by every collidable. Type specific fields follow.
const (
	collEnabled = iota
	collRotation
	collTranslation
	collBBoxCenter
	collBBoxSize
	collMetadata
	collCommonFields
)

func collidableTable(typeName string, fields ...scene.Field) *scene.Table {
	common := []scene.Field{
		{Index: collEnabled, Name: "enabled", Access: scene.InputOutput, Type: scene.TypeSFBool},
		{Index: collRotation, Name: "rotation", Access: scene.InputOutput, Type: scene.TypeSFRotation},
		{Index: collTranslation, Name: "translation", Access: scene.InputOutput, Type: scene.TypeSFVec3f},
		{Index: collBBoxCenter, Name: "bboxCenter", Access: scene.InitializeOnly, Type: scene.TypeSFVec3f},
		{Index: collBBoxSize, Name: "bboxSize", Access: scene.InitializeOnly, Type: scene.TypeSFVec3f},
		{Index: collMetadata, Name: "metadata", Access: scene.InputOutput, Type: scene.TypeSFNode},
	}
	return scene.NewTable(typeName, append(common, fields...)...)
}

// Collidable is a node backed by native collision geometry. Translation
// and rotation place the geometry relative to the body it follows.
type Collidable interface {
	Binding
	World() physics.World
	// Geom returns the native geometry, nil unless Bound.
	Geom() physics.Geom
	// Transform returns the placement matrix as of the last frame end.
	Transform() *mat.Dense
	// PullOutputs fires translation and rotation when the native placement changed.
	PullOutputs()
}

type collidableKind interface {
	scene.FrameListener
	newGeom(w physics.World) (physics.Geom, error)
	rebind() error
	clearRefs()
}

type collidableBase struct {
	binding
	self        collidableKind
	enabled     scene.SFBool
	rotation    scene.SFRotation
	translation scene.SFVec3f
	bboxCenter  scene.SFVec3f
	bboxSize    scene.SFVec3f
	metadata    scene.Slot[scene.Node]
	geom        physics.Geom
	matrix      *mat.Dense
}

func (b *collidableBase) init(t *scene.Table, self collidableKind) {
	b.self = self
	b.enabled = true
	b.rotation = scene.SFRotation{0, 0, 1, 0}
	b.bboxSize = scene.SFVec3f{-1, -1, -1}
	b.metadata = scene.NewSlot[scene.Node]("X3DMetadataObject")
	b.matrix = mat.NewDense(4, 4, nil)
	b.Init(t, self)
	b.FrameComplete()
}

func (b *collidableBase) Geom() physics.Geom { return b.geom }

// Transform must not be modified by the caller.
func (b *collidableBase) Transform() *mat.Dense { return b.matrix }

// FrameComplete recomputes the placement matrix from rotation and translation.
func (b *collidableBase) FrameComplete() {
	q := orientation(b.rotation)
	cols := [3]r3.Vec{
		physics.Rotate(q, r3.Vec{X: 1}),
		physics.Rotate(q, r3.Vec{Y: 1}),
		physics.Rotate(q, r3.Vec{Z: 1}),
	}
	for c, v := range cols {
		b.matrix.Set(0, c, v.X)
		b.matrix.Set(1, c, v.Y)
		b.matrix.Set(2, c, v.Z)
		b.matrix.Set(3, c, 0)
	}
	t := vec(b.translation)
	b.matrix.Set(0, 3, t.X)
	b.matrix.Set(1, 3, t.Y)
	b.matrix.Set(2, 3, t.Z)
	b.matrix.Set(3, 3, 1)
}

func (b *collidableBase) commonValue(i int) (scene.Value, error) {
	switch i {
	case collEnabled:
		return b.enabled, nil
	case collRotation:
		return b.rotation, nil
	case collTranslation:
		return b.translation, nil
	case collBBoxCenter:
		return b.bboxCenter, nil
	case collBBoxSize:
		return b.bboxSize, nil
	case collMetadata:
		return scene.SFNode{Ref: b.metadata.Ref()}, nil
	}
	return nil, b.UnknownField(i)
}

func (b *collidableBase) setCommon(i int, v scene.Value) error {
	switch i {
	case collEnabled:
		b.enabled = v.(scene.SFBool)
		if b.geom != nil {
			b.geom.SetEnabled(bool(b.enabled))
		}
	case collRotation:
		r := v.(scene.SFRotation)
		if !validRotation(r) {
			return b.Invalid(i, "rotation axis must not be zero")
		}
		b.rotation = r
		if b.geom != nil {
			b.geom.SetOrientation(orientation(r))
		}
		b.RequestFrame(b.self)
	case collTranslation:
		t := v.(scene.SFVec3f)
		if !finite(t) {
			return b.Invalid(i, "translation must be finite")
		}
		b.translation = t
		if b.geom != nil {
			b.geom.SetPosition(vec(t))
		}
		b.RequestFrame(b.self)
	case collBBoxCenter:
		b.bboxCenter = v.(scene.SFVec3f)
	case collBBoxSize:
		s := v.(scene.SFVec3f)
		if s != (scene.SFVec3f{-1, -1, -1}) && (s[0] < 0 || s[1] < 0 || s[2] < 0) {
			return b.Invalid(i, fmt.Sprintf("bounding box size must be -1 -1 -1 or non-negative, got %v", s))
		}
		b.bboxSize = s
	case collMetadata:
		if err := b.metadata.Set(v.(scene.SFNode).Ref); err != nil {
			return b.InvalidCause(i, err)
		}
	}
	b.Notify(i)
	return nil
}

func (b *collidableBase) create(w physics.World, _ physics.JointGroup) error {
	g, err := b.self.newGeom(w)
	if err != nil {
		return err
	}
	g.SetPosition(vec(b.translation))
	g.SetOrientation(orientation(b.rotation))
	g.SetEnabled(bool(b.enabled))
	b.geom = g
	b.FrameComplete()
	return nil
}

func (b *collidableBase) destroy() {
	b.geom.Destroy()
	b.geom = nil
}

func (b *collidableBase) SetupFinished() error { return b.FinishSetup(nil, nil) }

func (b *collidableBase) FinishSetup(w physics.World, g physics.JointGroup) error {
	if b.InSetup() {
		if err := b.self.rebind(); err != nil {
			b.abortSetup()
			return err
		}
	}
	return b.finishSetup(b, w, g)
}

func (b *collidableBase) SetWorld(w physics.World, g physics.JointGroup) error {
	return b.setWorld(b, w, g)
}

func (b *collidableBase) Delete() {
	if !b.retire(b) {
		return
	}
	b.metadata.Clear()
	b.self.clearRefs()
}

func (b *collidableBase) PullOutputs() {
	if b.geom == nil {
		return
	}
	if t := sfvec(b.geom.Position()); t != b.translation {
		b.translation = t
		b.Notify(collTranslation)
		b.RequestFrame(b.self)
	}
	if q := b.geom.Orientation(); !sameOrientation(q, orientation(b.rotation)) {
		b.rotation = sfrot(q)
		b.Notify(collRotation)
		b.RequestFrame(b.self)
	}
}

const collShape = collCommonFields

var collidableShapeTable = collidableTable("CollidableShape",
	scene.Field{Index: collShape, Name: "shape", Access: scene.InitializeOnly, Type: scene.TypeSFNode},
)

// CollidableShape builds collision geometry from a Shape node.
type CollidableShape struct {
	collidableBase
	shape scene.Slot[*Shape]
}

func NewCollidableShape() *CollidableShape {
	n := &CollidableShape{shape: scene.NewSlot[*Shape]("Shape")}
	n.init(collidableShapeTable, n)
	return n
}

func (n *CollidableShape) FieldValue(i int) (scene.Value, error) {
	if i == collShape {
		return scene.SFNode{Ref: n.shape.Ref()}, nil
	}
	return n.commonValue(i)
}

func (n *CollidableShape) SetValue(i int, v scene.Value) error {
	if _, err := n.CheckWrite(i, v); err != nil {
		return err
	}
	if i != collShape {
		return n.setCommon(i, v)
	}
	if err := n.shape.Set(v.(scene.SFNode).Ref); err != nil {
		return n.InvalidCause(i, err)
	}
	n.Notify(i)
	return nil
}

func (n *CollidableShape) newGeom(w physics.World) (physics.Geom, error) {
	s, ok := n.shape.Get()
	if !ok {
		return nil, ErrNoGeometry
	}
	geometry, ok := s.Geometry()
	if !ok {
		return nil, ErrNoGeometry
	}
	shape, err := geometry.CollisionShape()
	if err != nil {
		return nil, err
	}
	return w.NewGeom(shape)
}

func (n *CollidableShape) rebind() error {
	if err := n.shape.Rebind(); err != nil {
		return n.InvalidCause(collShape, err)
	}
	return nil
}

func (n *CollidableShape) clearRefs() { n.shape.Clear() }

const collCollidable = collCommonFields

var collidableOffsetTable = collidableTable("CollidableOffset",
	scene.Field{Index: collCollidable, Name: "collidable", Access: scene.InitializeOnly, Type: scene.TypeSFNode},
)

// CollidableOffset places another collidable's geometry at an extra offset.
// The wrapped collidable stops colliding on its own.
type CollidableOffset struct {
	collidableBase
	collidable scene.Slot[Collidable]
}

func NewCollidableOffset() *CollidableOffset {
	n := &CollidableOffset{collidable: scene.NewSlot[Collidable]("X3DNBodyCollidableNode")}
	n.init(collidableOffsetTable, n)
	return n
}

func (n *CollidableOffset) FieldValue(i int) (scene.Value, error) {
	if i == collCollidable {
		return scene.SFNode{Ref: n.collidable.Ref()}, nil
	}
	return n.commonValue(i)
}

func (n *CollidableOffset) SetValue(i int, v scene.Value) error {
	if _, err := n.CheckWrite(i, v); err != nil {
		return err
	}
	if i != collCollidable {
		return n.setCommon(i, v)
	}
	r := v.(scene.SFNode).Ref
	if target, ok, _ := scene.Resolve(r); ok && target == scene.Node(n) {
		return n.Invalid(i, "collidable cannot wrap itself")
	}
	if err := n.collidable.Set(r); err != nil {
		return n.InvalidCause(i, err)
	}
	n.Notify(i)
	return nil
}

func (n *CollidableOffset) newGeom(w physics.World) (physics.Geom, error) {
	child, ok := n.collidable.Get()
	if !ok {
		return nil, ErrNoGeometry
	}
	if child.World() != w {
		if err := joinChild(child, w, nil); err != nil {
			return nil, err
		}
	}
	g := child.Geom()
	if g == nil {
		return nil, ErrNoGeometry
	}
	return w.NewGeom(physics.Shape{Kind: physics.ShapeTransform, Child: g})
}

func (n *CollidableOffset) rebind() error {
	if err := n.collidable.Rebind(); err != nil {
		return n.InvalidCause(collCollidable, err)
	}
	return nil
}

func (n *CollidableOffset) clearRefs() { n.collidable.Clear() }
