package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateNode(t *testing.T) {
	s := testScene()
	a := mustTestNode(s)
	b := mustTestNode(s)
	assert.NotZero(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
	assert.True(t, a.InSetup())
	assert.Equal(t, 2, s.Len())

	got, ok := s.Node(b.ID())
	require.True(t, ok)
	assert.Same(t, b, got)

	_, err := s.CreateNode("Nope")
	require.ErrorIs(t, err, ErrUnknownNodeType)

	assert.Panics(t, func() { s.Register("TestNode", newTestNode) })
}

func TestRoutes(t *testing.T) {
	s := testScene()
	a, b := mustTestNode(s), mustTestNode(s)
	require.NoError(t, s.AddRoute(a, "size_changed", b, "set_size"))

	require.NoError(t, SetByName(a, "size", SFFloat(2)))
	assert.Equal(t, SFFloat(1), b.size, "no delivery during setup")

	require.NoError(t, s.FinishSetup(a))
	require.NoError(t, s.FinishSetup(b))
	require.NoError(t, SetByName(a, "size", SFFloat(3)))
	assert.Equal(t, SFFloat(3), b.size)
	assert.True(t, b.Changed(tnSize))
}

func TestRouteLoopTerminates(t *testing.T) {
	s := testScene()
	a, b := mustTestNode(s), mustTestNode(s)
	require.NoError(t, s.AddRoute(a, "size", b, "size"))
	require.NoError(t, s.AddRoute(b, "size", a, "size"))
	require.NoError(t, s.FinishSetup(a))
	require.NoError(t, s.FinishSetup(b))

	require.NoError(t, SetByName(a, "size", SFFloat(7)))
	assert.Equal(t, SFFloat(7), a.size)
	assert.Equal(t, SFFloat(7), b.size)
}

func TestRouteDeliveryFailureIsContained(t *testing.T) {
	s := testScene()
	a, b := mustTestNode(s), mustTestNode(s)
	require.NoError(t, s.AddRoute(a, "speed", b, "size"))
	require.NoError(t, s.FinishSetup(a))
	require.NoError(t, s.FinishSetup(b))

	a.pull(-1)
	assert.Equal(t, SFFloat(-1), a.speed)
	assert.Equal(t, SFFloat(1), b.size, "the rejected value is not stored")
}

func TestAddRouteErrors(t *testing.T) {
	s := testScene()
	a, b := mustTestNode(s), mustTestNode(s)
	tests := []struct {
		name     string
		src, dst string
		want     error
	}{
		{"unknown source", "nope", "size", ErrUnknownField},
		{"unknown destination", "size", "nope", ErrUnknownField},
		{"from input only", "set_impulse", "size", ErrIncompatibleRoute},
		{"into output only", "size", "speed", ErrIncompatibleRoute},
		{"into initialize only", "size", "radius", ErrIncompatibleRoute},
		{"type mismatch", "position", "size", ErrIncompatibleRoute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, s.AddRoute(a, tt.src, b, tt.dst), tt.want)
		})
	}
}

func TestDeleteNode(t *testing.T) {
	s := testScene()
	a, b, c := mustTestNode(s), mustTestNode(s), mustTestNode(s)
	require.NoError(t, s.AddRoute(a, "size", b, "size"))
	require.NoError(t, s.AddRoute(b, "size", c, "size"))
	for _, p := range []*testNode{a, b, c} {
		require.NoError(t, s.FinishSetup(p))
	}

	s.DeleteNode(b)
	assert.True(t, b.Deleted())
	_, ok := s.Node(b.ID())
	assert.False(t, ok)

	require.NoError(t, SetByName(a, "size", SFFloat(5)))
	assert.Equal(t, SFFloat(1), b.size, "routes into a deleted node are gone")

	s.DeleteNode(b)
	assert.Equal(t, 2, s.Len())
}

func TestCollect(t *testing.T) {
	s := testScene()
	a, b := mustTestNode(s), mustTestNode(s)
	require.NoError(t, SetByName(a, "target", NodeValue(b)))
	a.target.Clear()

	require.Equal(t, []Node{b}, s.Collectible())
	assert.Equal(t, 1, s.Collect())
	assert.Empty(t, s.Collectible())
	assert.Equal(t, 1, s.Len())
}

func TestFrameQueueRunsOncePerFrame(t *testing.T) {
	s := testScene()
	a, b := mustTestNode(s), mustTestNode(s)
	require.NoError(t, s.FinishSetup(a))
	require.NoError(t, s.FinishSetup(b))

	for i := 0; i < 3; i++ {
		require.NoError(t, SetByName(a, "set_impulse", SFFloat(float32(i))))
	}
	require.NoError(t, SetByName(b, "set_impulse", SFFloat(1)))
	assert.Equal(t, 2, s.Frames().Len())

	assert.Equal(t, 2, s.EndFrame())
	assert.Equal(t, 1, a.frames)
	assert.Equal(t, 1, b.frames)

	assert.Equal(t, 0, s.EndFrame())
	assert.Equal(t, 1, a.frames)

	require.NoError(t, SetByName(a, "set_impulse", SFFloat(9)))
	assert.Equal(t, 1, s.EndFrame())
	assert.Equal(t, 2, a.frames)
}

func TestRequestFrameOutsideScene(t *testing.T) {
	p := newTestNode().(*testNode)
	require.NoError(t, p.SetValue(tnImpulse, SFFloat(1)))
	assert.Equal(t, 1, p.frames)
}
