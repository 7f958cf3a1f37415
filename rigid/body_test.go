package rigid

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/rigidsync/scene"
)

func TestBodyFieldRoundTrip(t *testing.T) {
	tests := []struct {
		field string
		value scene.Value
	}{
		{"angularDampingFactor", scene.SFFloat(0.25)},
		{"angularVelocity", scene.SFVec3f{0, 1, 0}},
		{"autoDamp", scene.SFBool(true)},
		{"autoDisable", scene.SFBool(true)},
		{"centerOfMass", scene.SFVec3f{0, 0.5, 0}},
		{"disableAngularSpeed", scene.SFFloat(0.2)},
		{"disableLinearSpeed", scene.SFFloat(0.3)},
		{"disableTime", scene.SFFloat(1.5)},
		{"enabled", scene.SFBool(false)},
		{"finiteRotationAxis", scene.SFVec3f{1, 0, 0}},
		{"fixed", scene.SFBool(true)},
		{"forces", scene.MFVec3f{{1, 0, 0}, {0, 2, 0}}},
		{"inertia", scene.SFMatrix3f{2, 0, 0, 0, 2, 0, 0, 0, 2}},
		{"linearDampingFactor", scene.SFFloat(0.5)},
		{"linearVelocity", scene.SFVec3f{3, 0, 0}},
		{"mass", scene.SFFloat(4)},
		{"orientation", scene.SFRotation{1, 0, 0, 0.5}},
		{"position", scene.SFVec3f{1, 2, 3}},
		{"torques", scene.MFVec3f{{0, 0, 1}}},
		{"useFiniteRotation", scene.SFBool(true)},
		{"useGlobalGravity", scene.SFBool(false)},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			f := newFixture(t)
			n := f.node("RigidBody")
			i, ok := n.NodeBase().Table().IndexOf(tt.field)
			require.True(t, ok)
			require.NoError(t, n.SetValue(i, tt.value))
			got, err := n.FieldValue(i)
			require.NoError(t, err)
			assert.Equal(t, tt.value, got)
			assert.True(t, n.NodeBase().Changed(i))
		})
	}
}

func TestBodyDefaults(t *testing.T) {
	f := newFixture(t)
	n := f.node("RigidBody")
	assert.Equal(t, scene.SFFloat(1), f.get(n, "mass"))
	assert.Equal(t, scene.SFFloat(0.001), f.get(n, "angularDampingFactor"))
	assert.Equal(t, scene.SFBool(true), f.get(n, "enabled"))
	assert.Equal(t, scene.SFBool(true), f.get(n, "useGlobalGravity"))
	assert.Equal(t, scene.SFRotation{0, 0, 1, 0}, f.get(n, "orientation"))
	assert.Equal(t, scene.Identity3, f.get(n, "inertia"))
}

func TestBodyRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		field string
		value scene.Value
		err   error
	}{
		{"mass", scene.SFFloat(0), scene.ErrInvalidValue},
		{"linearDampingFactor", scene.SFFloat(1.5), scene.ErrInvalidValue},
		{"disableTime", scene.SFFloat(-1), scene.ErrInvalidValue},
		{"orientation", scene.SFRotation{0, 0, 0, 1}, scene.ErrInvalidValue},
		{"mass", scene.SFInt32(2), scene.ErrInvalidValue},
		{"geometry", refs(NewBox()), scene.ErrTypeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			f := newFixture(t)
			n := f.node("RigidBody")
			before := f.get(n, tt.field)
			n.NodeBase().ClearChanged()

			err := scene.SetByName(n, tt.field, tt.value)
			require.ErrorIs(t, err, tt.err)
			assert.Equal(t, before, f.get(n, tt.field), "failed write must not change the field")
			i, _ := n.NodeBase().Table().IndexOf(tt.field)
			assert.False(t, n.NodeBase().Changed(i))
		})
	}
}

func TestBodyTemplateThenWorld(t *testing.T) {
	f := newFixture(t)
	b := f.node("RigidBody").(*RigidBody)
	f.set(b, "position", scene.SFVec3f{0, 2, 0})

	require.NoError(t, b.FinishSetup(nil, nil))
	assert.Equal(t, Unbound, b.State())
	assert.Nil(t, b.Handle())

	// Writes while Unbound are stored and pushed on bind.
	f.set(b, "linearVelocity", scene.SFVec3f{1, 0, 0})
	f.set(b, "enabled", scene.SFBool(false))

	w := f.world()
	require.NoError(t, b.SetWorld(w, nil))
	assert.Equal(t, Bound, b.State())
	require.NotNil(t, b.Handle())
	assert.Equal(t, r3.Vec{Y: 2}, b.Handle().Position())
	assert.Equal(t, r3.Vec{X: 1}, b.Handle().LinearVelocity())
	assert.False(t, b.Handle().Enabled())
	assert.Equal(t, 1, w.Handles())

	// Rebinding to the same world is a no-op.
	h := b.Handle()
	require.NoError(t, b.SetWorld(w, nil))
	assert.Same(t, h, b.Handle())

	require.NoError(t, b.SetWorld(nil, nil))
	assert.Equal(t, Unbound, b.State())
	assert.Zero(t, w.Handles())
}

func TestBodyWorldAssignedDuringSetup(t *testing.T) {
	f := newFixture(t)
	b := f.node("RigidBody").(*RigidBody)
	w := f.world()

	require.NoError(t, b.SetWorld(w, nil))
	assert.Equal(t, Setup, b.State())
	assert.Nil(t, b.Handle())

	require.NoError(t, b.FinishSetup(nil, nil))
	assert.Equal(t, Bound, b.State())
	assert.NotNil(t, b.Handle())
}

func TestBodyWritesPushWhenBound(t *testing.T) {
	f := newFixture(t)
	b := f.node("RigidBody").(*RigidBody)
	require.NoError(t, b.FinishSetup(f.world(), nil))

	f.set(b, "position", scene.SFVec3f{4, 5, 6})
	f.set(b, "angularVelocity", scene.SFVec3f{0, 0, 2})
	f.set(b, "fixed", scene.SFBool(true))

	assert.Equal(t, r3.Vec{X: 4, Y: 5, Z: 6}, b.Handle().Position())
	assert.Equal(t, r3.Vec{Z: 2}, b.Handle().AngularVelocity())
}

func TestBodyDoubleDelete(t *testing.T) {
	f := newFixture(t)
	b := f.node("RigidBody").(*RigidBody)
	w := f.world()
	require.NoError(t, b.FinishSetup(w, nil))
	require.Equal(t, 1, w.Handles())

	f.sc.DeleteNode(b)
	assert.Zero(t, w.Handles())
	assert.Nil(t, b.Handle())
	assert.True(t, b.Deleted())

	assert.NotPanics(t, func() { f.sc.DeleteNode(b) })
	assert.NotPanics(t, b.Delete)
	assert.Zero(t, w.Handles())

	// A deleted node never binds again.
	require.NoError(t, b.SetWorld(w, nil))
	assert.Zero(t, w.Handles())
}

func TestBodyGeometryResetKeepsRefCount(t *testing.T) {
	f := newFixture(t)
	coll := f.box(scene.SFVec3f{1, 1, 1})
	b := f.node("RigidBody")

	f.set(b, "geometry", refs(coll))
	assert.Equal(t, 1, coll.RefCount())
	f.set(b, "geometry", refs(coll))
	assert.Equal(t, 1, coll.RefCount(), "re-setting the same list must not change the count")

	f.set(b, "geometry", scene.MFNode{})
	assert.Zero(t, coll.RefCount())
	assert.Contains(t, f.sc.Collectible(), scene.Node(coll))
}

func TestBodyAttachesGeometryOnBind(t *testing.T) {
	f := newFixture(t)
	coll := f.box(scene.SFVec3f{1, 1, 1})
	f.finish(coll)
	b := f.node("RigidBody").(*RigidBody)
	f.set(b, "geometry", refs(coll))
	f.set(b, "position", scene.SFVec3f{0, 3, 0})

	w := f.world()
	require.NoError(t, b.FinishSetup(w, nil))
	require.NotNil(t, coll.Geom())
	assert.Equal(t, Bound, coll.State())
	assert.Equal(t, b.Handle().ID(), coll.Geom().Body())
	assert.Equal(t, 2, w.Handles())
}

func TestBodyBindFailureLeavesUnbound(t *testing.T) {
	f := newFixtureWith(t, failingEngine{inner: newFixture(t).e})
	b := f.node("RigidBody").(*RigidBody)
	f.finish(b)
	rbc := f.node("RigidBodyCollection").(*RigidBodyCollection)
	f.set(rbc, "bodies", refs(b))

	err := f.sc.FinishSetup(rbc)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errBoom))
	assert.Equal(t, Unbound, b.State())
	assert.Nil(t, b.Handle())

	// The collection itself is up and keeps stepping.
	assert.Equal(t, Bound, rbc.State())
	assert.NoError(t, rbc.Evaluate(0.01))
}

func TestBodyForcesAndOutputs(t *testing.T) {
	f := newFixture(t)
	b := f.node("RigidBody").(*RigidBody)
	f.set(b, "mass", scene.SFFloat(2))
	f.set(b, "forces", scene.MFVec3f{{10, 0, 0}})
	f.finish(b)
	rbc := f.node("RigidBodyCollection").(*RigidBodyCollection)
	f.set(rbc, "gravity", scene.SFVec3f{})
	f.set(rbc, "bodies", refs(b))
	f.finish(rbc)

	require.NoError(t, rbc.Evaluate(0.1))
	b.NodeBase().ClearChanged()
	rbc.PullOutputs()

	assert.Equal(t, scene.SFVec3f{0.5, 0, 0}, f.get(b, "linearVelocity"))
	assert.InDelta(t, 0.05, float64(f.get(b, "position").(scene.SFVec3f)[0]), 1e-6)
	i, _ := bodyTable.IndexOf("position")
	assert.True(t, b.Changed(i))

	// Forces are reapplied every step until cleared.
	require.NoError(t, rbc.Evaluate(0.1))
	rbc.PullOutputs()
	assert.InDelta(t, 1.0, float64(f.get(b, "linearVelocity").(scene.SFVec3f)[0]), 1e-6)

	f.set(b, "forces", scene.MFVec3f{})
	require.NoError(t, rbc.Evaluate(0.1))
	rbc.PullOutputs()
	assert.InDelta(t, 1.0, float64(f.get(b, "linearVelocity").(scene.SFVec3f)[0]), 1e-6)
}
