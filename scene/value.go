package scene

// Value is a typed field value. The set of implementations is closed.
type Value interface {
	Type() Type
	value()
}

type (
	SFBool     bool
	SFInt32    int32
	SFFloat    float32
	SFVec2f    [2]float32
	SFVec3f    [3]float32
	SFRotation [4]float32 // axis x, y, z then angle in radians
	SFMatrix3f [9]float32 // row major
	MFVec3f    []SFVec3f
	MFString   []string
	MFNode     []Ref
)

// SFNode is a single node reference.
type SFNode struct{ Ref }

func (SFBool) Type() Type     { return TypeSFBool }
func (SFInt32) Type() Type    { return TypeSFInt32 }
func (SFFloat) Type() Type    { return TypeSFFloat }
func (SFVec2f) Type() Type    { return TypeSFVec2f }
func (SFVec3f) Type() Type    { return TypeSFVec3f }
func (SFRotation) Type() Type { return TypeSFRotation }
func (SFMatrix3f) Type() Type { return TypeSFMatrix3f }
func (MFVec3f) Type() Type    { return TypeMFVec3f }
func (MFString) Type() Type   { return TypeMFString }
func (SFNode) Type() Type     { return TypeSFNode }
func (MFNode) Type() Type     { return TypeMFNode }

func (SFBool) value()     {}
func (SFInt32) value()    {}
func (SFFloat) value()    {}
func (SFVec2f) value()    {}
func (SFVec3f) value()    {}
func (SFRotation) value() {}
func (SFMatrix3f) value() {}
func (MFVec3f) value()    {}
func (MFString) value()   {}
func (SFNode) value()     {}
func (MFNode) value()     {}

// Identity3 is the 3x3 identity matrix.
var Identity3 = SFMatrix3f{1, 0, 0, 0, 1, 0, 0, 0, 1}

// NodeValue wraps n in an SFNode value.
func NodeValue(n Node) SFNode { return SFNode{Direct(n)} }
