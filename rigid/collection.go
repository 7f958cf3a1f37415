package rigid

import (
	"fmt"

	"github.com/pthm-cable/rigidsync/physics"
	"github.com/pthm-cable/rigidsync/scene"
)

const (
	ccAppliedParameters = iota
	ccBounce
	ccCollidables
	ccEnabled
	ccFrictionCoefficients
	ccMinBounceSpeed
	ccSlipFactors
	ccSoftnessConstantForceMix
	ccSoftnessErrorCorrection
	ccSurfaceSpeed
	ccMetadata
)

var collisionCollectionTable = scene.NewTable("CollisionCollection",
	scene.Field{Index: ccAppliedParameters, Name: "appliedParameters", Access: scene.InputOutput, Type: scene.TypeMFString},
	scene.Field{Index: ccBounce, Name: "bounce", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: ccCollidables, Name: "collidables", Access: scene.InputOutput, Type: scene.TypeMFNode},
	scene.Field{Index: ccEnabled, Name: "enabled", Access: scene.InputOutput, Type: scene.TypeSFBool},
	scene.Field{Index: ccFrictionCoefficients, Name: "frictionCoefficients", Access: scene.InputOutput, Type: scene.TypeSFVec2f},
	scene.Field{Index: ccMinBounceSpeed, Name: "minBounceSpeed", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: ccSlipFactors, Name: "slipFactors", Access: scene.InputOutput, Type: scene.TypeSFVec2f},
	scene.Field{Index: ccSoftnessConstantForceMix, Name: "softnessConstantForceMix", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: ccSoftnessErrorCorrection, Name: "softnessErrorCorrection", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: ccSurfaceSpeed, Name: "surfaceSpeed", Access: scene.InputOutput, Type: scene.TypeSFVec2f},
	scene.Field{Index: ccMetadata, Name: "metadata", Access: scene.InputOutput, Type: scene.TypeSFNode},
)

// Surface parameter tokens accepted by appliedParameters.
var surfaceTokens = map[string]physics.SurfaceMode{
	"default":                0,
	"BOUNCE":                 physics.SurfaceBounce,
	"USER_FRICTION":          physics.SurfaceUserFriction,
	"FRICTION_COEFFICIENT-2": physics.SurfaceFriction2,
	"ERROR_REDUCTION":        physics.SurfaceSoftERP,
	"CONSTANT_FORCE":         physics.SurfaceSoftCFM,
	"SPEED-1":                physics.SurfaceMotion1,
	"SPEED-2":                physics.SurfaceMotion2,
	"SLIP-1":                 physics.SurfaceSlip1,
	"SLIP-2":                 physics.SurfaceSlip2,
}

func surfaceMode(tokens []string) (physics.SurfaceMode, error) {
	var mode physics.SurfaceMode
	for _, tok := range tokens {
		m, ok := surfaceTokens[tok]
		if !ok {
			return 0, fmt.Errorf("unknown surface parameter %q", tok)
		}
		mode |= m
	}
	return mode, nil
}

// surfaceNames lists the tokens of mode in declaration order.
func surfaceNames(mode physics.SurfaceMode) scene.MFString {
	order := []string{"BOUNCE", "USER_FRICTION", "FRICTION_COEFFICIENT-2", "ERROR_REDUCTION",
		"CONSTANT_FORCE", "SPEED-1", "SPEED-2", "SLIP-1", "SLIP-2"}
	out := scene.MFString{}
	for _, tok := range order {
		if mode&surfaceTokens[tok] != 0 {
			out = append(out, tok)
		}
	}
	if len(out) == 0 {
		out = append(out, "default")
	}
	return out
}

// CollisionCollection owns a collision space over its collidables and
// generates the contact stream each step.
type CollisionCollection struct {
	binding
	applied     scene.MFString
	mode        physics.SurfaceMode
	bounce      scene.SFFloat
	enabled     scene.SFBool
	friction    scene.SFVec2f
	minBounce   scene.SFFloat
	slip        scene.SFVec2f
	softCFM     scene.SFFloat
	softERP     scene.SFFloat
	speed       scene.SFVec2f
	collidables scene.SlotList[Collidable]
	metadata    scene.Slot[scene.Node]

	space  physics.Space
	spaced []physics.Geom
	// generation counts Collide calls so contacts can tell stale streams apart.
	generation uint64
}

func NewCollisionCollection() *CollisionCollection {
	n := &CollisionCollection{
		applied:     scene.MFString{"BOUNCE"},
		mode:        physics.SurfaceBounce,
		enabled:     true,
		minBounce:   0.1,
		softCFM:     0.0001,
		softERP:     0.8,
		collidables: scene.NewSlotList[Collidable]("X3DNBodyCollidableNode"),
		metadata:    scene.NewSlot[scene.Node]("X3DMetadataObject"),
	}
	n.Init(collisionCollectionTable, n)
	return n
}

// Enabled reports whether the collection is bound and generating contacts.
func (n *CollisionCollection) Enabled() bool { return n.space != nil && bool(n.enabled) }

// Collidables returns the resolved collidables.
func (n *CollisionCollection) Collidables() []Collidable { return n.collidables.Nodes() }

// Generation returns the number of contact streams generated so far.
func (n *CollisionCollection) Generation() uint64 { return n.generation }

func (n *CollisionCollection) FieldValue(i int) (scene.Value, error) {
	switch i {
	case ccAppliedParameters:
		return n.applied, nil
	case ccBounce:
		return n.bounce, nil
	case ccCollidables:
		return n.collidables.Refs(), nil
	case ccEnabled:
		return n.enabled, nil
	case ccFrictionCoefficients:
		return n.friction, nil
	case ccMinBounceSpeed:
		return n.minBounce, nil
	case ccSlipFactors:
		return n.slip, nil
	case ccSoftnessConstantForceMix:
		return n.softCFM, nil
	case ccSoftnessErrorCorrection:
		return n.softERP, nil
	case ccSurfaceSpeed:
		return n.speed, nil
	case ccMetadata:
		return scene.SFNode{Ref: n.metadata.Ref()}, nil
	}
	return nil, n.UnknownField(i)
}

func (n *CollisionCollection) SetValue(i int, v scene.Value) error {
	if _, err := n.CheckWrite(i, v); err != nil {
		return err
	}
	switch i {
	case ccAppliedParameters:
		tokens := v.(scene.MFString)
		mode, err := surfaceMode(tokens)
		if err != nil {
			return n.InvalidCause(i, err)
		}
		n.applied = append(scene.MFString(nil), tokens...)
		n.mode = mode
	case ccBounce, ccSoftnessConstantForceMix, ccSoftnessErrorCorrection:
		f := v.(scene.SFFloat)
		if !unit(f) {
			return n.Invalid(i, fmt.Sprintf("must be in [0,1], got %v", f))
		}
		switch i {
		case ccBounce:
			n.bounce = f
		case ccSoftnessConstantForceMix:
			n.softCFM = f
		default:
			n.softERP = f
		}
	case ccCollidables:
		if err := n.collidables.Set(v.(scene.MFNode)); err != nil {
			return n.InvalidCause(i, err)
		}
		if n.space != nil {
			n.fillSpace()
		}
	case ccEnabled:
		n.enabled = v.(scene.SFBool)
	case ccFrictionCoefficients, ccSlipFactors:
		f := v.(scene.SFVec2f)
		if f[0] < 0 || f[1] < 0 {
			return n.Invalid(i, fmt.Sprintf("must not be negative, got %v", f))
		}
		if i == ccFrictionCoefficients {
			n.friction = f
		} else {
			n.slip = f
		}
	case ccMinBounceSpeed:
		f := v.(scene.SFFloat)
		if f < 0 {
			return n.Invalid(i, fmt.Sprintf("must not be negative, got %v", f))
		}
		n.minBounce = f
	case ccSurfaceSpeed:
		n.speed = v.(scene.SFVec2f)
	case ccMetadata:
		if err := n.metadata.Set(v.(scene.SFNode).Ref); err != nil {
			return n.InvalidCause(i, err)
		}
	}
	if n.space != nil {
		n.space.SetSurface(n.surface())
	}
	n.Notify(i)
	return nil
}

func (n *CollisionCollection) surface() physics.Surface {
	return physics.Surface{
		Mode:      n.mode,
		Mu:        float64(n.friction[0]),
		Mu2:       float64(n.friction[1]),
		Bounce:    float64(n.bounce),
		BounceVel: float64(n.minBounce),
		SoftERP:   float64(n.softERP),
		SoftCFM:   float64(n.softCFM),
		Motion1:   float64(n.speed[0]),
		Motion2:   float64(n.speed[1]),
		Slip1:     float64(n.slip[0]),
		Slip2:     float64(n.slip[1]),
	}
}

// fillSpace puts the geometry of every collidable into the space, binding
// collidables that are not yet in the collection's world.
func (n *CollisionCollection) fillSpace() {
	for _, g := range n.spaced {
		n.space.Remove(g)
	}
	n.spaced = n.spaced[:0]
	for _, c := range n.collidables.Nodes() {
		if c.World() != n.world {
			if err := joinChild(c, n.world, nil); err != nil {
				n.Logger().Warn("collidable bind failed", "node", n.ID(), "collidable", c.NodeBase().ID(), "error", err)
				continue
			}
		}
		if g := c.Geom(); g != nil {
			n.space.Add(g)
			n.spaced = append(n.spaced, g)
		}
	}
}

func (n *CollisionCollection) create(w physics.World, _ physics.JointGroup) error {
	s, err := w.NewSpace()
	if err != nil {
		return err
	}
	n.space = s
	n.world = w
	s.SetSurface(n.surface())
	n.fillSpace()
	return nil
}

func (n *CollisionCollection) destroy() {
	n.space.Destroy()
	n.space = nil
	n.spaced = n.spaced[:0]
}

func (n *CollisionCollection) SetupFinished() error { return n.FinishSetup(nil, nil) }

func (n *CollisionCollection) FinishSetup(w physics.World, g physics.JointGroup) error {
	if n.InSetup() {
		if err := n.collidables.Rebind(); err != nil {
			return n.InvalidCause(ccCollidables, err)
		}
	}
	return n.finishSetup(n, w, g)
}

func (n *CollisionCollection) SetWorld(w physics.World, g physics.JointGroup) error {
	return n.setWorld(n, w, g)
}

func (n *CollisionCollection) Delete() {
	if !n.retire(n) {
		return
	}
	n.collidables.Clear()
	n.metadata.Clear()
}

// Collide regenerates the contact stream and returns its length.
func (n *CollisionCollection) Collide() int {
	if !n.Enabled() {
		return 0
	}
	n.generation++
	return n.space.Collide()
}

// Contacts returns the contact stream of the last Collide, nil unless Bound.
func (n *CollisionCollection) Contacts() *physics.BulkContact {
	if n.space == nil {
		return nil
	}
	return n.space.Contacts()
}

// ApplyContacts feeds the non-ignored contacts of the stream to the solver.
func (n *CollisionCollection) ApplyContacts() {
	if n.Enabled() {
		n.space.Apply()
	}
}
