package rigid

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/rigidsync/physics"
	"github.com/pthm-cable/rigidsync/scene"
)

// Geometry is a geometry node that may be turned into collision geometry.
type Geometry interface {
	scene.Node
	CollisionShape() (physics.Shape, error)
}

// plain is the base of nodes without a native handle.
type plain struct{ scene.Base }

func (p *plain) SetupFinished() error {
	p.EndSetup()
	return nil
}

const (
	shapeGeometry = iota
	shapeMetadata
)

var shapeTable = scene.NewTable("Shape",
	scene.Field{Index: shapeGeometry, Name: "geometry", Access: scene.InputOutput, Type: scene.TypeSFNode},
	scene.Field{Index: shapeMetadata, Name: "metadata", Access: scene.InputOutput, Type: scene.TypeSFNode},
)

// Shape carries the geometry of a CollidableShape. Appearance is not modelled.
type Shape struct {
	plain
	geometry scene.Slot[Geometry]
	metadata scene.Slot[scene.Node]
}

func NewShape() *Shape {
	n := &Shape{
		geometry: scene.NewSlot[Geometry]("X3DGeometryNode"),
		metadata: scene.NewSlot[scene.Node]("X3DMetadataObject"),
	}
	n.Init(shapeTable, n)
	return n
}

// Geometry returns the resolved geometry node.
func (n *Shape) Geometry() (Geometry, bool) { return n.geometry.Get() }

func (n *Shape) FieldValue(i int) (scene.Value, error) {
	switch i {
	case shapeGeometry:
		return scene.SFNode{Ref: n.geometry.Ref()}, nil
	case shapeMetadata:
		return scene.SFNode{Ref: n.metadata.Ref()}, nil
	}
	return nil, n.UnknownField(i)
}

func (n *Shape) SetValue(i int, v scene.Value) error {
	if _, err := n.CheckWrite(i, v); err != nil {
		return err
	}
	var err error
	switch i {
	case shapeGeometry:
		err = n.geometry.Set(v.(scene.SFNode).Ref)
	case shapeMetadata:
		err = n.metadata.Set(v.(scene.SFNode).Ref)
	}
	if err != nil {
		return n.InvalidCause(i, err)
	}
	n.Notify(i)
	return nil
}

func (n *Shape) SetupFinished() error {
	n.EndSetup()
	if err := n.geometry.Rebind(); err != nil {
		return n.InvalidCause(shapeGeometry, err)
	}
	return nil
}

func (n *Shape) Delete() {
	n.geometry.Clear()
	n.metadata.Clear()
}

const (
	boxSize = iota
	boxMetadata
)

var boxTable = scene.NewTable("Box",
	scene.Field{Index: boxSize, Name: "size", Access: scene.InitializeOnly, Type: scene.TypeSFVec3f},
	scene.Field{Index: boxMetadata, Name: "metadata", Access: scene.InputOutput, Type: scene.TypeSFNode},
)

type Box struct {
	plain
	size     scene.SFVec3f
	metadata scene.Ref
}

func NewBox() *Box {
	n := &Box{size: scene.SFVec3f{2, 2, 2}}
	n.Init(boxTable, n)
	return n
}

func (n *Box) FieldValue(i int) (scene.Value, error) {
	switch i {
	case boxSize:
		return n.size, nil
	case boxMetadata:
		return scene.SFNode{Ref: n.metadata}, nil
	}
	return nil, n.UnknownField(i)
}

func (n *Box) SetValue(i int, v scene.Value) error {
	if _, err := n.CheckWrite(i, v); err != nil {
		return err
	}
	switch i {
	case boxSize:
		s := v.(scene.SFVec3f)
		if s[0] <= 0 || s[1] <= 0 || s[2] <= 0 {
			return n.Invalid(i, fmt.Sprintf("size must be positive, got %v", s))
		}
		n.size = s
	case boxMetadata:
		n.metadata = v.(scene.SFNode).Ref
	}
	n.Notify(i)
	return nil
}

func (n *Box) CollisionShape() (physics.Shape, error) {
	return physics.Shape{Kind: physics.ShapeBox, Size: vec(n.size)}, nil
}

const (
	sphereRadius = iota
	sphereMetadata
)

var sphereTable = scene.NewTable("Sphere",
	scene.Field{Index: sphereRadius, Name: "radius", Access: scene.InitializeOnly, Type: scene.TypeSFFloat},
	scene.Field{Index: sphereMetadata, Name: "metadata", Access: scene.InputOutput, Type: scene.TypeSFNode},
)

type Sphere struct {
	plain
	radius   scene.SFFloat
	metadata scene.Ref
}

func NewSphere() *Sphere {
	n := &Sphere{radius: 1}
	n.Init(sphereTable, n)
	return n
}

func (n *Sphere) FieldValue(i int) (scene.Value, error) {
	switch i {
	case sphereRadius:
		return n.radius, nil
	case sphereMetadata:
		return scene.SFNode{Ref: n.metadata}, nil
	}
	return nil, n.UnknownField(i)
}

func (n *Sphere) SetValue(i int, v scene.Value) error {
	if _, err := n.CheckWrite(i, v); err != nil {
		return err
	}
	switch i {
	case sphereRadius:
		r := v.(scene.SFFloat)
		if r <= 0 {
			return n.Invalid(i, fmt.Sprintf("radius must be positive, got %v", r))
		}
		n.radius = r
	case sphereMetadata:
		n.metadata = v.(scene.SFNode).Ref
	}
	n.Notify(i)
	return nil
}

func (n *Sphere) CollisionShape() (physics.Shape, error) {
	return physics.Shape{Kind: physics.ShapeSphere, Radius: float64(n.radius)}, nil
}

// Field layout shared by Cone and Cylinder.
const (
	roundRadius = iota
	roundHeight
	roundMetadata
)

// round is a Y-axis solid described by a radius and a height.
type round struct {
	plain
	kind     physics.ShapeKind
	radius   scene.SFFloat
	height   scene.SFFloat
	metadata scene.Ref
}

func (n *round) FieldValue(i int) (scene.Value, error) {
	switch i {
	case roundRadius:
		return n.radius, nil
	case roundHeight:
		return n.height, nil
	case roundMetadata:
		return scene.SFNode{Ref: n.metadata}, nil
	}
	return nil, n.UnknownField(i)
}

func (n *round) SetValue(i int, v scene.Value) error {
	if _, err := n.CheckWrite(i, v); err != nil {
		return err
	}
	switch i {
	case roundRadius, roundHeight:
		f := v.(scene.SFFloat)
		if f <= 0 {
			return n.Invalid(i, fmt.Sprintf("must be positive, got %v", f))
		}
		if i == roundRadius {
			n.radius = f
		} else {
			n.height = f
		}
	case roundMetadata:
		n.metadata = v.(scene.SFNode).Ref
	}
	n.Notify(i)
	return nil
}

func (n *round) CollisionShape() (physics.Shape, error) {
	return physics.Shape{Kind: n.kind, Radius: float64(n.radius), Length: float64(n.height)}, nil
}

var coneTable = scene.NewTable("Cone",
	scene.Field{Index: roundRadius, Name: "bottomRadius", Access: scene.InitializeOnly, Type: scene.TypeSFFloat},
	scene.Field{Index: roundHeight, Name: "height", Access: scene.InitializeOnly, Type: scene.TypeSFFloat},
	scene.Field{Index: roundMetadata, Name: "metadata", Access: scene.InputOutput, Type: scene.TypeSFNode},
)

var cylinderTable = scene.NewTable("Cylinder",
	scene.Field{Index: roundRadius, Name: "radius", Access: scene.InitializeOnly, Type: scene.TypeSFFloat},
	scene.Field{Index: roundHeight, Name: "height", Access: scene.InitializeOnly, Type: scene.TypeSFFloat},
	scene.Field{Index: roundMetadata, Name: "metadata", Access: scene.InputOutput, Type: scene.TypeSFNode},
)

type Cone struct{ round }

func NewCone() *Cone {
	n := &Cone{round{kind: physics.ShapeCone, radius: 1, height: 2}}
	n.Init(coneTable, n)
	return n
}

// Cylinder collides as a capsule of the same radius and height.
type Cylinder struct{ round }

func NewCylinder() *Cylinder {
	n := &Cylinder{round{kind: physics.ShapeCapsule, radius: 1, height: 2}}
	n.Init(cylinderTable, n)
	return n
}

const (
	coordPoint = iota
	coordMetadata
)

var coordinateTable = scene.NewTable("Coordinate",
	scene.Field{Index: coordPoint, Name: "point", Access: scene.InputOutput, Type: scene.TypeMFVec3f},
	scene.Field{Index: coordMetadata, Name: "metadata", Access: scene.InputOutput, Type: scene.TypeSFNode},
)

type Coordinate struct {
	plain
	point    scene.MFVec3f
	metadata scene.Ref
}

func NewCoordinate() *Coordinate {
	n := &Coordinate{}
	n.Init(coordinateTable, n)
	return n
}

func (n *Coordinate) FieldValue(i int) (scene.Value, error) {
	switch i {
	case coordPoint:
		return n.point, nil
	case coordMetadata:
		return scene.SFNode{Ref: n.metadata}, nil
	}
	return nil, n.UnknownField(i)
}

func (n *Coordinate) SetValue(i int, v scene.Value) error {
	if _, err := n.CheckWrite(i, v); err != nil {
		return err
	}
	switch i {
	case coordPoint:
		n.point = append(scene.MFVec3f(nil), v.(scene.MFVec3f)...)
	case coordMetadata:
		n.metadata = v.(scene.SFNode).Ref
	}
	n.Notify(i)
	return nil
}

const (
	triCoord = iota
	triMetadata
)

var triangleSetTable = scene.NewTable("TriangleSet",
	scene.Field{Index: triCoord, Name: "coord", Access: scene.InputOutput, Type: scene.TypeSFNode},
	scene.Field{Index: triMetadata, Name: "metadata", Access: scene.InputOutput, Type: scene.TypeSFNode},
)

// TriangleSet collides as a triangle mesh built from its coordinates.
// Trailing points that do not complete a triangle are ignored.
type TriangleSet struct {
	plain
	coord    scene.Slot[*Coordinate]
	metadata scene.Ref
}

func NewTriangleSet() *TriangleSet {
	n := &TriangleSet{coord: scene.NewSlot[*Coordinate]("X3DCoordinateNode")}
	n.Init(triangleSetTable, n)
	return n
}

func (n *TriangleSet) FieldValue(i int) (scene.Value, error) {
	switch i {
	case triCoord:
		return scene.SFNode{Ref: n.coord.Ref()}, nil
	case triMetadata:
		return scene.SFNode{Ref: n.metadata}, nil
	}
	return nil, n.UnknownField(i)
}

func (n *TriangleSet) SetValue(i int, v scene.Value) error {
	if _, err := n.CheckWrite(i, v); err != nil {
		return err
	}
	switch i {
	case triCoord:
		if err := n.coord.Set(v.(scene.SFNode).Ref); err != nil {
			return n.InvalidCause(i, err)
		}
	case triMetadata:
		n.metadata = v.(scene.SFNode).Ref
	}
	n.Notify(i)
	return nil
}

func (n *TriangleSet) SetupFinished() error {
	n.EndSetup()
	if err := n.coord.Rebind(); err != nil {
		return n.InvalidCause(triCoord, err)
	}
	return nil
}

func (n *TriangleSet) Delete() { n.coord.Clear() }

func (n *TriangleSet) CollisionShape() (physics.Shape, error) {
	c, ok := n.coord.Get()
	if !ok || len(c.point) < 3 {
		return physics.Shape{}, fmt.Errorf("triangle set without triangles: %w", ErrNoGeometry)
	}
	pts := c.point[:len(c.point)/3*3]
	verts := make([]r3.Vec, len(pts))
	for i, p := range pts {
		verts[i] = vec(p)
	}
	return physics.Shape{Kind: physics.ShapeTriMesh, Vertices: verts}, nil
}

// Geometry kinds kept in the scene but without a collision form.
var unsupportedKinds = []string{
	"ElevationGrid",
	"IndexedFaceSet",
	"TriangleStripSet",
	"TriangleFanSet",
	"IndexedTriangleSet",
	"IndexedTriangleStripSet",
	"IndexedTriangleFanSet",
}

var unsupportedTables = func() map[string]*scene.Table {
	m := make(map[string]*scene.Table, len(unsupportedKinds))
	for _, kind := range unsupportedKinds {
		m[kind] = scene.NewTable(kind,
			scene.Field{Index: 0, Name: "metadata", Access: scene.InputOutput, Type: scene.TypeSFNode},
		)
	}
	return m
}()

type unsupported struct {
	plain
	metadata scene.Ref
}

func newUnsupported(kind string) *unsupported {
	n := &unsupported{}
	n.Init(unsupportedTables[kind], n)
	return n
}

func (n *unsupported) FieldValue(i int) (scene.Value, error) {
	if i == 0 {
		return scene.SFNode{Ref: n.metadata}, nil
	}
	return nil, n.UnknownField(i)
}

func (n *unsupported) SetValue(i int, v scene.Value) error {
	if _, err := n.CheckWrite(i, v); err != nil {
		return err
	}
	n.metadata = v.(scene.SFNode).Ref
	n.Notify(i)
	return nil
}

func (n *unsupported) CollisionShape() (physics.Shape, error) {
	return physics.Shape{}, &ShapeError{Kind: n.TypeName()}
}
