package rigid

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/rigidsync/engine"
	"github.com/pthm-cable/rigidsync/physics"
	"github.com/pthm-cable/rigidsync/scene"
)

type fixture struct {
	t  *testing.T
	sc *scene.Scene
	e  physics.Engine
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWith(t, engine.New(engine.DefaultOptions()))
}

func newFixtureWith(t *testing.T, e physics.Engine) *fixture {
	t.Helper()
	sc := scene.New(nil)
	Register(sc, e)
	return &fixture{t: t, sc: sc, e: e}
}

func (f *fixture) node(typeName string) scene.Node {
	f.t.Helper()
	n, err := f.sc.CreateNode(typeName)
	require.NoError(f.t, err)
	return n
}

func (f *fixture) set(n scene.Node, field string, v scene.Value) {
	f.t.Helper()
	require.NoError(f.t, scene.SetByName(n, field, v), "%s.%s", n.NodeBase().TypeName(), field)
}

func (f *fixture) get(n scene.Node, field string) scene.Value {
	f.t.Helper()
	v, err := scene.FieldByName(n, field)
	require.NoError(f.t, err)
	return v
}

func (f *fixture) finish(nodes ...scene.Node) {
	f.t.Helper()
	for _, n := range nodes {
		require.NoError(f.t, f.sc.FinishSetup(n))
	}
}

func (f *fixture) world() physics.World {
	f.t.Helper()
	w, err := f.e.NewWorld(physics.DefaultWorldParams())
	require.NoError(f.t, err)
	return w
}

// box builds a CollidableShape around a Box of the given size. The
// collidable is returned still in setup.
func (f *fixture) box(size scene.SFVec3f) *CollidableShape {
	f.t.Helper()
	geom := f.node("Box")
	f.set(geom, "size", size)
	shape := f.node("Shape")
	f.set(shape, "geometry", scene.NodeValue(geom))
	f.finish(geom, shape)
	coll := f.node("CollidableShape").(*CollidableShape)
	f.set(coll, "shape", scene.NodeValue(shape))
	return coll
}

func refs(nodes ...scene.Node) scene.MFNode {
	out := make(scene.MFNode, len(nodes))
	for i, n := range nodes {
		out[i] = scene.Direct(n)
	}
	return out
}

var errBoom = errors.New("boom")

// failingEngine creates worlds whose body creation fails.
type failingEngine struct{ inner physics.Engine }

func (e failingEngine) NewWorld(p physics.WorldParams) (physics.World, error) {
	w, err := e.inner.NewWorld(p)
	if err != nil {
		return nil, err
	}
	return failingWorld{w}, nil
}

type failingWorld struct{ physics.World }

func (failingWorld) NewBody() (physics.Body, error) { return nil, errBoom }
