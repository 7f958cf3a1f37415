package rigid

import (
	"fmt"

	"github.com/pthm-cable/rigidsync/physics"
	"github.com/pthm-cable/rigidsync/scene"
)

const (
	contactAppliedParameters = iota
	contactBody1
	contactBody2
	contactBounce
	contactContactNormal
	contactDepth
	contactFrictionCoefficients
	contactFrictionDirection
	contactGeometry1
	contactGeometry2
	contactMinBounceSpeed
	contactPosition
	contactSlipCoefficients
	contactSoftnessConstantForceMix
	contactSoftnessErrorCorrection
	contactSurfaceSpeed
	contactMetadata
)

var contactTable = scene.NewTable("Contact",
	scene.Field{Index: contactAppliedParameters, Name: "appliedParameters", Access: scene.InputOutput, Type: scene.TypeMFString},
	scene.Field{Index: contactBody1, Name: "body1", Access: scene.InputOutput, Type: scene.TypeSFNode},
	scene.Field{Index: contactBody2, Name: "body2", Access: scene.InputOutput, Type: scene.TypeSFNode},
	scene.Field{Index: contactBounce, Name: "bounce", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: contactContactNormal, Name: "contactNormal", Access: scene.InputOutput, Type: scene.TypeSFVec3f},
	scene.Field{Index: contactDepth, Name: "depth", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: contactFrictionCoefficients, Name: "frictionCoefficients", Access: scene.InputOutput, Type: scene.TypeSFVec2f},
	scene.Field{Index: contactFrictionDirection, Name: "frictionDirection", Access: scene.InputOutput, Type: scene.TypeSFVec3f},
	scene.Field{Index: contactGeometry1, Name: "geometry1", Access: scene.InputOutput, Type: scene.TypeSFNode},
	scene.Field{Index: contactGeometry2, Name: "geometry2", Access: scene.InputOutput, Type: scene.TypeSFNode},
	scene.Field{Index: contactMinBounceSpeed, Name: "minBounceSpeed", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: contactPosition, Name: "position", Access: scene.InputOutput, Type: scene.TypeSFVec3f},
	scene.Field{Index: contactSlipCoefficients, Name: "slipCoefficients", Access: scene.InputOutput, Type: scene.TypeSFVec2f},
	scene.Field{Index: contactSoftnessConstantForceMix, Name: "softnessConstantForceMix", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: contactSoftnessErrorCorrection, Name: "softnessErrorCorrection", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: contactSurfaceSpeed, Name: "surfaceSpeed", Access: scene.InputOutput, Type: scene.TypeSFVec2f},
	scene.Field{Index: contactMetadata, Name: "metadata", Access: scene.InputOutput, Type: scene.TypeSFNode},
)

// Contact is one generated contact. Contacts are owned by the sensor pool
// that fills them; their node references are not counted.
type Contact struct {
	plain
	mode      physics.SurfaceMode
	body1     *RigidBody
	body2     *RigidBody
	geom1     Collidable
	geom2     Collidable
	bounce    scene.SFFloat
	normal    scene.SFVec3f
	depth     scene.SFFloat
	friction  scene.SFVec2f
	direction scene.SFVec3f
	minBounce scene.SFFloat
	position  scene.SFVec3f
	slip      scene.SFVec2f
	softCFM   scene.SFFloat
	softERP   scene.SFFloat
	speed     scene.SFVec2f
	metadata  scene.Ref

	// Where the contact came from, for feeding it back to the solver.
	source     *CollisionCollection
	generation uint64
	index      int
}

func NewContact() *Contact {
	n := &Contact{}
	n.Init(contactTable, n)
	return n
}

func nodeRef(n scene.Node, ok bool) scene.SFNode {
	if !ok {
		return scene.SFNode{}
	}
	return scene.NodeValue(n)
}

// Bodies returns the bodies in contact. Either may be nil for static geometry.
func (n *Contact) Bodies() (*RigidBody, *RigidBody) { return n.body1, n.body2 }

// Geometry returns the collidables in contact.
func (n *Contact) Geometry() (Collidable, Collidable) { return n.geom1, n.geom2 }

func (n *Contact) FieldValue(i int) (scene.Value, error) {
	switch i {
	case contactAppliedParameters:
		return surfaceNames(n.mode), nil
	case contactBody1:
		return nodeRef(n.body1, n.body1 != nil), nil
	case contactBody2:
		return nodeRef(n.body2, n.body2 != nil), nil
	case contactBounce:
		return n.bounce, nil
	case contactContactNormal:
		return n.normal, nil
	case contactDepth:
		return n.depth, nil
	case contactFrictionCoefficients:
		return n.friction, nil
	case contactFrictionDirection:
		return n.direction, nil
	case contactGeometry1:
		return nodeRef(n.geom1, n.geom1 != nil), nil
	case contactGeometry2:
		return nodeRef(n.geom2, n.geom2 != nil), nil
	case contactMinBounceSpeed:
		return n.minBounce, nil
	case contactPosition:
		return n.position, nil
	case contactSlipCoefficients:
		return n.slip, nil
	case contactSoftnessConstantForceMix:
		return n.softCFM, nil
	case contactSoftnessErrorCorrection:
		return n.softERP, nil
	case contactSurfaceSpeed:
		return n.speed, nil
	case contactMetadata:
		return scene.SFNode{Ref: n.metadata}, nil
	}
	return nil, n.UnknownField(i)
}

func (n *Contact) SetValue(i int, v scene.Value) error {
	if _, err := n.CheckWrite(i, v); err != nil {
		return err
	}
	switch i {
	case contactAppliedParameters:
		mode, err := surfaceMode(v.(scene.MFString))
		if err != nil {
			return n.InvalidCause(i, err)
		}
		n.mode = mode
	case contactBody1, contactBody2:
		b, _, err := scene.ResolveAs[*RigidBody](v.(scene.SFNode).Ref, "RigidBody")
		if err != nil {
			return n.InvalidCause(i, err)
		}
		if i == contactBody1 {
			n.body1 = b
		} else {
			n.body2 = b
		}
	case contactGeometry1, contactGeometry2:
		g, _, err := scene.ResolveAs[Collidable](v.(scene.SFNode).Ref, "X3DNBodyCollidableNode")
		if err != nil {
			return n.InvalidCause(i, err)
		}
		if i == contactGeometry1 {
			n.geom1 = g
		} else {
			n.geom2 = g
		}
	case contactBounce, contactSoftnessConstantForceMix, contactSoftnessErrorCorrection:
		f := v.(scene.SFFloat)
		if !unit(f) {
			return n.Invalid(i, fmt.Sprintf("must be in [0,1], got %v", f))
		}
		switch i {
		case contactBounce:
			n.bounce = f
		case contactSoftnessConstantForceMix:
			n.softCFM = f
		default:
			n.softERP = f
		}
	case contactContactNormal:
		n.normal = v.(scene.SFVec3f)
	case contactDepth:
		n.depth = v.(scene.SFFloat)
	case contactFrictionCoefficients, contactSlipCoefficients:
		f := v.(scene.SFVec2f)
		if f[0] < 0 || f[1] < 0 {
			return n.Invalid(i, fmt.Sprintf("must not be negative, got %v", f))
		}
		if i == contactFrictionCoefficients {
			n.friction = f
		} else {
			n.slip = f
		}
	case contactFrictionDirection:
		n.direction = v.(scene.SFVec3f)
	case contactMinBounceSpeed:
		f := v.(scene.SFFloat)
		if f < 0 {
			return n.Invalid(i, fmt.Sprintf("must not be negative, got %v", f))
		}
		n.minBounce = f
	case contactPosition:
		n.position = v.(scene.SFVec3f)
	case contactSurfaceSpeed:
		n.speed = v.(scene.SFVec2f)
	case contactMetadata:
		n.metadata = v.(scene.SFNode).Ref
	}
	n.Notify(i)
	return nil
}

// load overwrites the contact from raw contact index of coll's stream.
func (n *Contact) load(coll *CollisionCollection, index int, p *physics.ContactPoint, bodies BodyMap, geoms GeomMap) {
	s := p.Surface
	n.source = coll
	n.generation = coll.generation
	n.index = index
	n.mode = s.Mode
	n.body1 = bodies[p.Body1]
	n.body2 = bodies[p.Body2]
	n.geom1 = geoms[p.Geom1]
	n.geom2 = geoms[p.Geom2]
	n.bounce = scene.SFFloat(s.Bounce)
	n.normal = sfvec(p.Normal)
	n.depth = scene.SFFloat(p.Depth)
	n.friction = scene.SFVec2f{float32(s.Mu), float32(s.Mu2)}
	n.direction = sfvec(p.FrictionDir)
	n.minBounce = scene.SFFloat(s.BounceVel)
	n.position = sfvec(p.Position)
	n.slip = scene.SFVec2f{float32(s.Slip1), float32(s.Slip2)}
	n.softCFM = scene.SFFloat(s.SoftCFM)
	n.softERP = scene.SFFloat(s.SoftERP)
	n.speed = scene.SFVec2f{float32(s.Motion1), float32(s.Motion2)}
}

// store writes the contact's current values back into p.
func (n *Contact) store(p *physics.ContactPoint) {
	p.Position = vec(n.position)
	p.Normal = vec(n.normal)
	p.Depth = float64(n.depth)
	p.FrictionDir = vec(n.direction)
	p.Surface = physics.Surface{
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

// current reports whether the contact belongs to coll's latest stream.
func (n *Contact) current(coll *CollisionCollection) bool {
	return n.source == coll && n.generation == coll.generation && coll.Contacts() != nil && n.index < coll.Contacts().Len()
}

// ContactPool is a grow-only arena of contact nodes reused across steps.
type ContactPool struct {
	scene    *scene.Scene
	contacts []*Contact
}

// NewContactPool returns a pool whose contacts are adopted into sc, which may be nil.
func NewContactPool(sc *scene.Scene) *ContactPool {
	return &ContactPool{scene: sc}
}

// Grow ensures the pool holds at least n contacts.
func (p *ContactPool) Grow(n int) {
	for len(p.contacts) < n {
		c := NewContact()
		c.EndSetup()
		if p.scene != nil {
			p.scene.Adopt(c)
		}
		p.contacts = append(p.contacts, c)
	}
}

func (p *ContactPool) Cap() int { return len(p.contacts) }

func (p *ContactPool) At(i int) *Contact { return p.contacts[i] }
