package rigid

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/rigidsync/scene"
)

// boundCollection returns an empty collision collection bound to a fresh
// world and a sensor watching it.
func boundCollection(f *fixture) (*CollisionCollection, *CollisionSensor) {
	coll := f.node("CollisionCollection").(*CollisionCollection)
	require.NoError(f.t, coll.FinishSetup(f.world(), nil))
	sensor := f.node("CollisionSensor").(*CollisionSensor)
	f.set(sensor, "collider", scene.NodeValue(coll))
	f.finish(sensor)
	return coll, sensor
}

func fill(coll *CollisionCollection, n int) {
	bulk := coll.Contacts()
	bulk.Reset()
	for i := 0; i < n; i++ {
		p := bulk.Next()
		p.Depth = float64(i)
		p.Normal = r3.Vec{Y: 1}
	}
}

func TestSensorContactPoolReuse(t *testing.T) {
	f := newFixture(t)
	coll, sensor := boundCollection(f)
	active, _ := sensorTable.IndexOf("isActive")

	fill(coll, 5)
	sensor.UpdateContacts(nil, nil)
	assert.Equal(t, 5, sensor.NumContacts())
	assert.Equal(t, 5, sensor.Pool().Cap())
	assert.True(t, sensor.Active())
	assert.True(t, sensor.Changed(active))
	first := sensor.Pool().At(0)

	fill(coll, 2)
	sensor.ClearChanged()
	sensor.UpdateContacts(nil, nil)
	assert.Equal(t, 2, sensor.NumContacts())
	assert.GreaterOrEqual(t, sensor.Pool().Cap(), 5, "the pool never shrinks")
	assert.Same(t, first, sensor.Pool().At(0), "contacts are reused")
	assert.Len(t, f.get(sensor, "contacts").(scene.MFNode), 2)
	assert.False(t, sensor.Changed(active), "isActive fires only on a change")
	assert.Equal(t, scene.SFFloat(1), f.get(sensor.Contacts()[1], "depth"))

	fill(coll, 0)
	sensor.UpdateContacts(nil, nil)
	assert.Zero(t, sensor.NumContacts())
	assert.False(t, sensor.Active())
	assert.Empty(t, f.get(sensor, "contacts").(scene.MFNode))
}

func TestSensorDisabled(t *testing.T) {
	f := newFixture(t)
	coll, sensor := boundCollection(f)
	fill(coll, 3)
	sensor.UpdateContacts(nil, nil)
	require.True(t, sensor.Active())

	f.set(sensor, "enabled", scene.SFBool(false))
	sensor.UpdateContacts(nil, nil)
	assert.False(t, sensor.Active())
}

func TestSensorWithoutCollider(t *testing.T) {
	f := newFixture(t)
	sensor := f.node("CollisionSensor").(*CollisionSensor)
	f.finish(sensor)
	assert.NotPanics(t, func() { sensor.UpdateContacts(nil, nil) })
	assert.False(t, sensor.Active())

	rbc := f.node("RigidBodyCollection")
	err := scene.SetByName(sensor, "collider", scene.NodeValue(rbc))
	assert.ErrorIs(t, err, scene.ErrTypeMismatch)
}

type crateScene struct {
	rbc    *RigidBodyCollection
	coll   *CollisionCollection
	sensor *CollisionSensor
	body   *RigidBody
	crate  *CollidableShape
	ground *CollidableShape
}

// newCrateScene drops a unit crate onto a static ground slab. The crate
// starts slightly sunk into the ground.
func newCrateScene(f *fixture) *crateScene {
	s := &crateScene{}
	s.crate = f.box(scene.SFVec3f{1, 1, 1})
	s.ground = f.box(scene.SFVec3f{10, 1, 10})
	f.set(s.ground, "translation", scene.SFVec3f{0, -0.5, 0})
	f.finish(s.crate, s.ground)

	s.body = f.node("RigidBody").(*RigidBody)
	f.set(s.body, "geometry", refs(s.crate))
	f.set(s.body, "position", scene.SFVec3f{0, 0.45, 0})
	f.finish(s.body)

	s.coll = f.node("CollisionCollection").(*CollisionCollection)
	f.set(s.coll, "collidables", refs(s.crate, s.ground))
	f.finish(s.coll)

	s.rbc = f.node("RigidBodyCollection").(*RigidBodyCollection)
	f.set(s.rbc, "collider", scene.NodeValue(s.coll))
	f.set(s.rbc, "bodies", refs(s.body))
	f.finish(s.rbc)

	s.sensor = f.node("CollisionSensor").(*CollisionSensor)
	f.set(s.sensor, "collider", scene.NodeValue(s.coll))
	f.finish(s.sensor)
	return s
}

func (s *crateScene) maps() (BodyMap, GeomMap) {
	bodies := BodyMap{s.body.Handle().ID(): s.body}
	geoms := GeomMap{s.crate.Geom().ID(): s.crate, s.ground.Geom().ID(): s.ground}
	return bodies, geoms
}

func (s *crateScene) step(t *testing.T) {
	t.Helper()
	require.NoError(t, s.rbc.Evaluate(0.01))
	s.coll.Collide()
	s.sensor.UpdateContacts(s.maps())
	s.rbc.PullOutputs()
}

func TestCrateRestsOnGround(t *testing.T) {
	f := newFixture(t)
	s := newCrateScene(f)
	require.Equal(t, Bound, s.coll.State())
	require.Equal(t, Bound, s.crate.State())
	require.Equal(t, Bound, s.ground.State())
	require.Equal(t, s.body.Handle().ID(), s.crate.Geom().Body())

	s.step(t)
	require.Equal(t, 4, s.sensor.NumContacts())
	assert.True(t, s.sensor.Active())
	assert.Len(t, f.get(s.sensor, "intersections").(scene.MFNode), 2, "each collidable is reported once")

	c := s.sensor.Contacts()[0]
	b1, b2 := c.Bodies()
	assert.Same(t, s.body, b1)
	assert.Nil(t, b2, "the ground has no body")
	g1, g2 := c.Geometry()
	assert.Equal(t, Collidable(s.crate), g1)
	assert.Equal(t, Collidable(s.ground), g2)
	assert.Equal(t, scene.NodeValue(s.body), f.get(c, "body1"))

	for i := 0; i < 100; i++ {
		s.step(t)
	}
	y := f.get(s.body, "position").(scene.SFVec3f)[1]
	assert.Greater(t, y, float32(0.45))
	assert.Less(t, y, float32(0.51))
}

func TestRoutedContactsOverrideStream(t *testing.T) {
	f := newFixture(t)
	s := newCrateScene(f)
	require.NoError(t, f.sc.AddRoute(s.sensor, "contacts", s.rbc, "set_contacts"))

	s.coll.Collide()
	s.sensor.UpdateContacts(s.maps())
	require.Equal(t, 4, s.sensor.NumContacts())

	c := s.sensor.Contacts()[0]
	f.set(c, "depth", scene.SFFloat(0.2))
	f.set(c, "bounce", scene.SFFloat(0.5))
	require.NoError(t, s.rbc.Evaluate(0.01))

	p := s.coll.Contacts().At(0)
	assert.InDelta(t, 0.2, p.Depth, 1e-6, "the routed contact is written back before the step")
	assert.InDelta(t, 0.5, p.Surface.Bounce, 1e-6)
	assert.InDelta(t, 0.05, s.coll.Contacts().At(1).Depth, 1e-6, "other contacts keep their values")
}

func TestStaleRoutedContactsIgnored(t *testing.T) {
	f := newFixture(t)
	s := newCrateScene(f)
	require.NoError(t, f.sc.AddRoute(s.sensor, "contacts", s.rbc, "set_contacts"))

	s.coll.Collide()
	s.sensor.UpdateContacts(s.maps())
	c := s.sensor.Contacts()[0]

	// A newer stream replaces the one the routed contacts came from.
	s.coll.Collide()
	f.set(c, "depth", scene.SFFloat(0.3))
	require.NoError(t, s.rbc.Evaluate(0.01))

	d := s.coll.Contacts().At(0).Depth
	assert.False(t, math.Abs(d-0.3) < 1e-6, "stale contact must not be written back, got depth %v", d)
}

func TestSetContactsRejectsNonContacts(t *testing.T) {
	f := newFixture(t)
	rbc := f.node("RigidBodyCollection")
	f.finish(rbc)
	b := f.node("RigidBody")
	err := scene.SetByName(rbc, "set_contacts", refs(b))
	assert.ErrorIs(t, err, scene.ErrTypeMismatch)
}
