package scene

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	s := testScene()
	a := mustTestNode(s)

	n, ok, err := Resolve(Ref{})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, n)

	n, ok, err = Resolve(Direct(a))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Same(t, a, n)

	outer, inner := NewProxy("outer"), NewProxy("inner")
	outer.SetImplementation(Indirect(inner))

	_, ok, err = Resolve(Indirect(outer))
	require.NoError(t, err, "an unresolved chain is not an error")
	assert.False(t, ok)

	inner.SetImplementation(Direct(a))
	n, ok, err = Resolve(Indirect(outer))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Same(t, a, n)
}

func TestResolveCycle(t *testing.T) {
	p1, p2 := NewProxy("P1"), NewProxy("P2")
	p1.SetImplementation(Indirect(p2))
	p2.SetImplementation(Indirect(p1))

	_, _, err := Resolve(Indirect(p1))
	require.ErrorIs(t, err, ErrCyclicIndirection)
	var ce *CycleError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, []string{"P1", "P2", "P1"}, ce.Chain)
}

func TestResolveAsMismatch(t *testing.T) {
	s := testScene()
	m, err := s.CreateNode("Marker")
	require.NoError(t, err)

	_, _, err = ResolveAs[*testNode](Direct(m), "TestNode")
	require.ErrorIs(t, err, ErrTypeMismatch)
	var tm *TypeMismatchError
	require.True(t, errors.As(err, &tm))
	assert.Equal(t, "TestNode", tm.Expected)
	assert.Equal(t, "Marker", tm.Actual)
}

func TestRefKinds(t *testing.T) {
	s := testScene()
	a := mustTestNode(s)
	assert.Equal(t, RefEmpty, Direct(nil).Kind())
	assert.Equal(t, RefEmpty, Indirect(nil).Kind())
	assert.Equal(t, RefDirect, Direct(a).Kind())
	assert.Equal(t, RefIndirect, Indirect(NewProxy("p")).Kind())
	assert.True(t, Direct(a).Equal(Direct(a)))
	assert.False(t, Direct(a).Equal(Ref{}))
}

func TestSlotRefCounting(t *testing.T) {
	s := testScene()
	a, b, c := mustTestNode(s), mustTestNode(s), mustTestNode(s)

	require.NoError(t, SetByName(a, "target", NodeValue(b)))
	assert.Equal(t, 1, b.RefCount())

	// Same node twice: net count unchanged and never reported collectible.
	require.NoError(t, SetByName(a, "target", NodeValue(b)))
	assert.Equal(t, 1, b.RefCount())
	assert.Empty(t, s.Collectible())

	require.NoError(t, SetByName(a, "target", NodeValue(c)))
	assert.Equal(t, 0, b.RefCount())
	assert.Equal(t, 1, c.RefCount())
	assert.Equal(t, []Node{b}, s.Collectible())

	// Referencing b again takes it out of the collectible set.
	require.NoError(t, SetByName(a, "children", MFNode{Direct(b), Direct(b)}))
	assert.Equal(t, 2, b.RefCount())
	assert.Empty(t, s.Collectible())

	require.NoError(t, SetByName(a, "children", MFNode{Direct(c)}))
	assert.Equal(t, 0, b.RefCount())
	assert.Equal(t, 2, c.RefCount())
}

func TestSlotFailedSetLeavesState(t *testing.T) {
	s := testScene()
	a, b := mustTestNode(s), mustTestNode(s)
	m, err := s.CreateNode("Marker")
	require.NoError(t, err)

	require.NoError(t, SetByName(a, "target", NodeValue(b)))
	a.ClearChanged()

	err = SetByName(a, "target", NodeValue(m))
	require.ErrorIs(t, err, ErrInvalidValue)
	require.ErrorIs(t, err, ErrTypeMismatch)

	got, ok := a.target.Get()
	assert.True(t, ok)
	assert.Same(t, b, got)
	assert.Equal(t, 1, b.RefCount())
	assert.Equal(t, 0, m.NodeBase().RefCount())
	assert.False(t, a.Changed(tnTarget))

	err = SetByName(a, "children", MFNode{Direct(b), Direct(m)})
	require.ErrorIs(t, err, ErrTypeMismatch)
	assert.Equal(t, 1, b.RefCount(), "no partial retain on a failed list write")
}

func TestSlotThroughProxy(t *testing.T) {
	s := testScene()
	a, b := mustTestNode(s), mustTestNode(s)
	px := NewProxy("Later")

	require.NoError(t, SetByName(a, "target", SFNode{Indirect(px)}))
	assert.Equal(t, 1, px.RefCount())
	_, ok := a.target.Get()
	assert.False(t, ok)

	px.SetImplementation(Direct(b))
	assert.Equal(t, 1, b.RefCount(), "the proxy holds its implementation")

	require.NoError(t, s.FinishSetup(a))
	got, ok := a.target.Get()
	assert.True(t, ok)
	assert.Same(t, b, got)

	a.target.Clear()
	assert.Equal(t, 0, px.RefCount())
	assert.Equal(t, 1, b.RefCount())
}
