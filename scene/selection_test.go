package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectionUpdate(t *testing.T) {
	tests := []struct {
		name   string
		tokens []string
		want   []int
	}{
		{"none", []string{"NONE"}, nil},
		{"all", []string{"ALL"}, []int{tnSpeed, tnLevel}},
		{"all among others", []string{"level", "bogus", "ALL"}, []int{tnSpeed, tnLevel}},
		{"explicit with bogus", []string{"level", "bogus", "speed"}, []int{tnLevel, tnSpeed}},
		{"duplicates kept", []string{"level", "level"}, []int{tnLevel, tnLevel}},
		{"any known field kept", []string{"enabled", "size", "level"}, []int{tnEnabled, tnSize, tnLevel}},
		{"aliases resolve", []string{"size_changed", "bogus", "speed"}, []int{tnSize, tnSpeed}},
		{"none among others", []string{"NONE", "speed"}, []int{tnSpeed}},
		{"empty", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sel Selection
			sel.Update([]string{"speed"}, testNodeTable)
			sel.Update(tt.tokens, testNodeTable)
			if len(tt.want) == 0 {
				assert.Empty(t, sel.Indices())
				return
			}
			assert.Equal(t, tt.want, sel.Indices())
			assert.Equal(t, MFString(tt.tokens), sel.Tokens())
		})
	}
}

func TestSelectionDrivesPull(t *testing.T) {
	s := testScene()
	p := mustTestNode(s)
	require.NoError(t, s.FinishSetup(p))

	p.pull(3)
	assert.Equal(t, SFFloat(3), p.speed)
	assert.Equal(t, SFFloat(6), p.level)

	assert.NoError(t, SetByName(p, "forceOutput", MFString{"NONE"}))
	p.ClearChanged()
	p.pull(5)
	assert.Equal(t, SFFloat(3), p.speed, "NONE pulls nothing")
	assert.False(t, p.Changed(tnSpeed))

	assert.NoError(t, SetByName(p, "forceOutput", MFString{"level", "bogus"}))
	p.pull(5)
	assert.Equal(t, SFFloat(3), p.speed)
	assert.Equal(t, SFFloat(10), p.level)
	assert.True(t, p.Changed(tnLevel))
}
