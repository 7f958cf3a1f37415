package scene

import "fmt"

const (
	tnEnabled = iota
	tnSize
	tnPosition
	tnRadius
	tnSpeed
	tnLevel
	tnTarget
	tnChildren
	tnForceOutput
	tnImpulse
)

var testNodeTable = NewTable("TestNode",
	Field{Index: tnEnabled, Name: "enabled", Access: InputOutput, Type: TypeSFBool},
	Field{Index: tnSize, Name: "size", Access: InputOutput, Type: TypeSFFloat},
	Field{Index: tnPosition, Name: "position", Access: InputOutput, Type: TypeSFVec3f},
	Field{Index: tnRadius, Name: "radius", Access: InitializeOnly, Type: TypeSFFloat},
	Field{Index: tnSpeed, Name: "speed", Access: Output, Type: TypeSFFloat},
	Field{Index: tnLevel, Name: "level", Access: Output, Type: TypeSFFloat},
	Field{Index: tnTarget, Name: "target", Access: InputOutput, Type: TypeSFNode},
	Field{Index: tnChildren, Name: "children", Access: InputOutput, Type: TypeMFNode},
	Field{Index: tnForceOutput, Name: "forceOutput", Access: InputOutput, Type: TypeMFString},
	Field{Index: tnImpulse, Name: "impulse", Access: Input, Type: TypeSFFloat},
)

// testNode is a minimal node exercising every part of Base.
type testNode struct {
	Base
	enabled  SFBool
	size     SFFloat
	position SFVec3f
	radius   SFFloat
	speed    SFFloat
	level    SFFloat
	impulse  SFFloat
	target   Slot[*testNode]
	children SlotList[*testNode]
	outputs  Selection
	frames   int
}

// marker is a node of another type.
type marker struct{ Base }

var markerTable = NewTable("Marker")

func newMarker() Node {
	m := &marker{}
	m.Init(markerTable, m)
	return m
}

func (m *marker) FieldValue(i int) (Value, error) { return nil, m.UnknownField(i) }
func (m *marker) SetValue(i int, _ Value) error   { return m.UnknownField(i) }

func (m *marker) SetupFinished() error {
	m.EndSetup()
	return nil
}

func newTestNode() Node {
	p := &testNode{
		enabled:  true,
		size:     1,
		target:   NewSlot[*testNode]("TestNode"),
		children: NewSlotList[*testNode]("TestNode"),
	}
	p.Init(testNodeTable, p)
	p.outputs.Update([]string{SelectAll}, testNodeTable)
	return p
}

func (p *testNode) FieldValue(i int) (Value, error) {
	switch i {
	case tnEnabled:
		return p.enabled, nil
	case tnSize:
		return p.size, nil
	case tnPosition:
		return p.position, nil
	case tnRadius:
		return p.radius, nil
	case tnSpeed:
		return p.speed, nil
	case tnLevel:
		return p.level, nil
	case tnTarget:
		return SFNode{p.target.Ref()}, nil
	case tnChildren:
		return p.children.Refs(), nil
	case tnForceOutput:
		return p.outputs.Tokens(), nil
	case tnImpulse:
		return p.impulse, nil
	}
	return nil, p.UnknownField(i)
}

func (p *testNode) SetValue(i int, v Value) error {
	if _, err := p.CheckWrite(i, v); err != nil {
		return err
	}
	switch i {
	case tnEnabled:
		p.enabled = v.(SFBool)
	case tnSize:
		s := v.(SFFloat)
		if s <= 0 {
			return p.Invalid(i, fmt.Sprintf("size must be positive, got %v", s))
		}
		p.size = s
	case tnPosition:
		p.position = v.(SFVec3f)
	case tnRadius:
		p.radius = v.(SFFloat)
	case tnTarget:
		if err := p.target.Set(v.(SFNode).Ref); err != nil {
			return p.InvalidCause(i, err)
		}
	case tnChildren:
		if err := p.children.Set(v.(MFNode)); err != nil {
			return p.InvalidCause(i, err)
		}
	case tnForceOutput:
		p.outputs.Update(v.(MFString), testNodeTable)
	case tnImpulse:
		p.impulse = v.(SFFloat)
		p.RequestFrame(p)
	}
	p.Notify(i)
	return nil
}

func (p *testNode) SetupFinished() error {
	p.EndSetup()
	return p.target.Rebind()
}

func (p *testNode) FrameComplete() { p.frames++ }

// pull mimics a per-step output pull for the selected fields.
func (p *testNode) pull(speed float32) {
	for _, i := range p.outputs.Indices() {
		switch i {
		case tnSpeed:
			p.speed = SFFloat(speed)
		case tnLevel:
			p.level = SFFloat(speed * 2)
		}
		p.Notify(i)
	}
}

func testScene() *Scene {
	s := New(nil)
	s.Register("TestNode", newTestNode)
	s.Register("Marker", newMarker)
	return s
}

func mustTestNode(s *Scene) *testNode {
	n, err := s.CreateNode("TestNode")
	if err != nil {
		panic(err)
	}
	return n.(*testNode)
}
