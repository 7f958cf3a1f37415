package rigid

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/rigidsync/scene"
)

func TestCollidableMatrixUpdatedAtFrameEnd(t *testing.T) {
	f := newFixture(t)
	coll := f.box(scene.SFVec3f{1, 1, 1})
	f.finish(coll)
	f.sc.EndFrame()

	f.set(coll, "translation", scene.SFVec3f{1, 2, 3})
	f.set(coll, "translation", scene.SFVec3f{4, 5, 6})
	f.set(coll, "rotation", scene.SFRotation{0, 1, 0, 0})

	m := coll.Transform()
	assert.Zero(t, m.At(0, 3), "matrix waits for the frame end")
	assert.Equal(t, 1, f.sc.Frames().Len(), "writes within a frame queue one recompute")

	assert.Equal(t, 1, f.sc.EndFrame())
	assert.Equal(t, 4.0, m.At(0, 3))
	assert.Equal(t, 5.0, m.At(1, 3))
	assert.Equal(t, 6.0, m.At(2, 3))
	assert.Equal(t, 1.0, m.At(3, 3))
	assert.Zero(t, f.sc.Frames().Len())
}

func TestCollidableRotationMatrix(t *testing.T) {
	f := newFixture(t)
	coll := f.box(scene.SFVec3f{1, 1, 1})
	f.set(coll, "rotation", scene.SFRotation{0, 0, 1, math.Pi / 2})
	f.finish(coll)
	f.sc.EndFrame()

	m := coll.Transform()
	assert.InDelta(t, 0, m.At(0, 0), 1e-6)
	assert.InDelta(t, 1, m.At(1, 0), 1e-6)
	assert.InDelta(t, -1, m.At(0, 1), 1e-6)
	assert.InDelta(t, 1, m.At(2, 2), 1e-6)
}

func TestCollidableRejectsZeroAxis(t *testing.T) {
	f := newFixture(t)
	coll := f.box(scene.SFVec3f{1, 1, 1})
	err := scene.SetByName(coll, "rotation", scene.SFRotation{0, 0, 0, 1})
	require.ErrorIs(t, err, scene.ErrInvalidValue)
	assert.Equal(t, scene.SFRotation{0, 0, 1, 0}, f.get(coll, "rotation"))
}

func TestCollidableUnsupportedShape(t *testing.T) {
	f := newFixture(t)
	grid := f.node("ElevationGrid")
	shape := f.node("Shape")
	f.set(shape, "geometry", scene.NodeValue(grid))
	f.finish(grid, shape)
	coll := f.node("CollidableShape").(*CollidableShape)
	f.set(coll, "shape", scene.NodeValue(shape))
	f.finish(coll)

	w := f.world()
	err := coll.SetWorld(w, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedShapeKind))
	var se *ShapeError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "ElevationGrid", se.Kind)
	assert.Equal(t, Unbound, coll.State())
	assert.Nil(t, coll.Geom())
	assert.Zero(t, w.Handles())
}

func TestCollidableTriangleSet(t *testing.T) {
	tests := []struct {
		name   string
		points scene.MFVec3f
		err    error
	}{
		{"two points", scene.MFVec3f{{0, 0, 0}, {1, 0, 0}}, ErrNoGeometry},
		{"one triangle", scene.MFVec3f{{0, 0, 0}, {1, 0, 0}, {0, 0, 1}}, nil},
		{"trailing point", scene.MFVec3f{{0, 0, 0}, {1, 0, 0}, {0, 0, 1}, {5, 5, 5}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			coord := f.node("Coordinate")
			f.set(coord, "point", tt.points)
			tris := f.node("TriangleSet")
			f.set(tris, "coord", scene.NodeValue(coord))
			shape := f.node("Shape")
			f.set(shape, "geometry", scene.NodeValue(tris))
			f.finish(coord, tris, shape)
			coll := f.node("CollidableShape").(*CollidableShape)
			f.set(coll, "shape", scene.NodeValue(shape))
			f.finish(coll)

			err := coll.SetWorld(f.world(), nil)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				assert.Equal(t, Unbound, coll.State())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, Bound, coll.State())
		})
	}
}

func TestCollidableWithoutShape(t *testing.T) {
	f := newFixture(t)
	coll := f.node("CollidableShape").(*CollidableShape)
	f.finish(coll)
	assert.ErrorIs(t, coll.SetWorld(f.world(), nil), ErrNoGeometry)
}

func TestCollidableSetupFailsOnMismatchedProxy(t *testing.T) {
	f := newFixture(t)
	p := scene.NewProxy("shape")
	coll := f.node("CollidableShape").(*CollidableShape)
	f.set(coll, "shape", scene.SFNode{Ref: scene.Indirect(p)})
	p.SetImplementation(scene.Direct(f.node("RigidBody")))

	err := f.sc.FinishSetup(coll)
	assert.ErrorIs(t, err, scene.ErrTypeMismatch)
	assert.Equal(t, Unbound, coll.State())
	assert.False(t, coll.InSetup())
}

func TestCollidableOffset(t *testing.T) {
	f := newFixture(t)
	inner := f.box(scene.SFVec3f{1, 1, 1})
	f.set(inner, "translation", scene.SFVec3f{1, 0, 0})
	f.finish(inner)

	off := f.node("CollidableOffset").(*CollidableOffset)
	err := scene.SetByName(off, "collidable", scene.NodeValue(off))
	require.ErrorIs(t, err, scene.ErrInvalidValue)
	assert.True(t, f.get(off, "collidable").(scene.SFNode).IsEmpty())

	f.set(off, "collidable", scene.NodeValue(inner))
	f.set(off, "translation", scene.SFVec3f{0, 2, 0})
	f.finish(off)

	w := f.world()
	require.NoError(t, off.SetWorld(w, nil))
	assert.Equal(t, Bound, off.State())
	assert.Equal(t, Bound, inner.State(), "the wrapped collidable joins the same world")
	assert.Equal(t, 2, w.Handles())
	assert.Equal(t, r3.Vec{Y: 2}, off.Geom().WorldPose().Position)
	assert.Equal(t, r3.Vec{X: 1}, inner.Geom().Position(), "the wrapped geom keeps its own offset")
}

func TestCollidableBoundPlacement(t *testing.T) {
	f := newFixture(t)
	coll := f.box(scene.SFVec3f{1, 1, 1})
	f.set(coll, "translation", scene.SFVec3f{0, 1, 0})
	f.finish(coll)
	require.NoError(t, coll.SetWorld(f.world(), nil))

	g := coll.Geom()
	require.NotNil(t, g)
	assert.Equal(t, r3.Vec{Y: 1}, g.Position())

	f.set(coll, "translation", scene.SFVec3f{3, 0, 0})
	assert.Equal(t, r3.Vec{X: 3}, g.Position(), "bound writes push at once")

	f.set(coll, "enabled", scene.SFBool(false))
	assert.False(t, g.Enabled())
}

func TestCollidablePullOutputs(t *testing.T) {
	f := newFixture(t)
	coll := f.box(scene.SFVec3f{1, 1, 1})
	f.finish(coll)
	require.NoError(t, coll.SetWorld(f.world(), nil))
	f.sc.EndFrame()

	translation, _ := coll.Table().IndexOf("translation")
	rotation, _ := coll.Table().IndexOf("rotation")

	coll.ClearChanged()
	coll.PullOutputs()
	assert.False(t, coll.Changed(translation), "unchanged placement fires nothing")
	assert.False(t, coll.Changed(rotation))

	coll.Geom().SetPosition(r3.Vec{X: 2})
	coll.PullOutputs()
	assert.True(t, coll.Changed(translation))
	assert.False(t, coll.Changed(rotation))
	assert.Equal(t, scene.SFVec3f{2, 0, 0}, f.get(coll, "translation"))
	assert.Equal(t, 1, f.sc.EndFrame())
	assert.Equal(t, 2.0, coll.Transform().At(0, 3))
}

func TestCollidableDelete(t *testing.T) {
	f := newFixture(t)
	coll := f.box(scene.SFVec3f{1, 1, 1})
	f.finish(coll)
	w := f.world()
	require.NoError(t, coll.SetWorld(w, nil))
	require.Equal(t, 1, w.Handles())

	f.sc.DeleteNode(coll)
	f.sc.DeleteNode(coll)
	assert.Zero(t, w.Handles())
	assert.Nil(t, coll.Geom())
}
