package rigid

import (
	"github.com/bits-and-blooms/bitset"

	"github.com/pthm-cable/rigidsync/scene"
)

const (
	sensorCollider = iota
	sensorEnabled
	sensorContacts
	sensorIntersections
	sensorIsActive
	sensorMetadata
)

var sensorTable = scene.NewTable("CollisionSensor",
	scene.Field{Index: sensorCollider, Name: "collider", Access: scene.InputOutput, Type: scene.TypeSFNode},
	scene.Field{Index: sensorEnabled, Name: "enabled", Access: scene.InputOutput, Type: scene.TypeSFBool},
	scene.Field{Index: sensorContacts, Name: "contacts", Access: scene.Output, Type: scene.TypeMFNode},
	scene.Field{Index: sensorIntersections, Name: "intersections", Access: scene.Output, Type: scene.TypeMFNode},
	scene.Field{Index: sensorIsActive, Name: "isActive", Access: scene.Output, Type: scene.TypeSFBool},
	scene.Field{Index: sensorMetadata, Name: "metadata", Access: scene.InputOutput, Type: scene.TypeSFNode},
)

// CollisionSensor reports the contacts generated by a collision collection.
type CollisionSensor struct {
	plain
	collider scene.Slot[*CollisionCollection]
	metadata scene.Slot[scene.Node]
	enabled  scene.SFBool
	isActive scene.SFBool

	pool          *ContactPool
	contacts      scene.MFNode
	numContacts   int
	intersections scene.MFNode
	seen          bitset.BitSet
}

func NewCollisionSensor() *CollisionSensor {
	n := &CollisionSensor{
		collider: scene.NewSlot[*CollisionCollection]("CollisionCollection"),
		metadata: scene.NewSlot[scene.Node]("X3DMetadataObject"),
		enabled:  true,
	}
	n.Init(sensorTable, n)
	return n
}

// Pool returns the contact pool, created on first use.
func (n *CollisionSensor) Pool() *ContactPool {
	if n.pool == nil {
		n.pool = NewContactPool(n.Scene())
	}
	return n.pool
}

// Active reports the isActive output.
func (n *CollisionSensor) Active() bool { return bool(n.isActive) }

// Contacts returns the contacts of the last update.
func (n *CollisionSensor) Contacts() []*Contact {
	out := make([]*Contact, n.numContacts)
	for i := range out {
		out[i] = n.pool.At(i)
	}
	return out
}

// NumContacts returns the number of contacts of the last update.
func (n *CollisionSensor) NumContacts() int { return n.numContacts }

func (n *CollisionSensor) FieldValue(i int) (scene.Value, error) {
	switch i {
	case sensorCollider:
		return scene.SFNode{Ref: n.collider.Ref()}, nil
	case sensorEnabled:
		return n.enabled, nil
	case sensorContacts:
		return n.contacts[:n.numContacts], nil
	case sensorIntersections:
		return n.intersections, nil
	case sensorIsActive:
		return n.isActive, nil
	case sensorMetadata:
		return scene.SFNode{Ref: n.metadata.Ref()}, nil
	}
	return nil, n.UnknownField(i)
}

func (n *CollisionSensor) SetValue(i int, v scene.Value) error {
	if _, err := n.CheckWrite(i, v); err != nil {
		return err
	}
	switch i {
	case sensorCollider:
		if err := n.collider.Set(v.(scene.SFNode).Ref); err != nil {
			return n.InvalidCause(i, err)
		}
	case sensorEnabled:
		n.enabled = v.(scene.SFBool)
	case sensorMetadata:
		if err := n.metadata.Set(v.(scene.SFNode).Ref); err != nil {
			return n.InvalidCause(i, err)
		}
	}
	n.Notify(i)
	return nil
}

func (n *CollisionSensor) SetupFinished() error {
	n.EndSetup()
	if err := n.collider.Rebind(); err != nil {
		return n.InvalidCause(sensorCollider, err)
	}
	return nil
}

func (n *CollisionSensor) Delete() {
	n.collider.Clear()
	n.metadata.Clear()
}

// UpdateContacts refreshes the outputs from the collider's contact stream,
// resolving native ids through bodies and geoms.
func (n *CollisionSensor) UpdateContacts(bodies BodyMap, geoms GeomMap) {
	coll, ok := n.collider.Get()
	if !ok || !bool(n.enabled) || !coll.Enabled() {
		n.setActive(false)
		return
	}

	bulk := coll.Contacts()
	count := bulk.Len()
	if count == 0 {
		if n.numContacts > 0 || len(n.intersections) > 0 {
			n.numContacts = 0
			n.intersections = n.intersections[:0]
			n.Notify(sensorContacts)
			n.Notify(sensorIntersections)
		}
		n.setActive(false)
		return
	}

	pool := n.Pool()
	pool.Grow(count)
	for len(n.contacts) < count {
		n.contacts = append(n.contacts, scene.Ref{})
	}

	n.seen.ClearAll()
	n.intersections = n.intersections[:0]
	for i := 0; i < count; i++ {
		c := pool.At(i)
		c.load(coll, i, bulk.At(i), bodies, geoms)
		n.contacts[i] = scene.Direct(c)
		n.intersect(c.geom1)
		n.intersect(c.geom2)
	}
	n.numContacts = count
	n.Notify(sensorContacts)
	n.Notify(sensorIntersections)
	n.setActive(true)
}

func (n *CollisionSensor) intersect(c Collidable) {
	if c == nil {
		return
	}
	id := uint(c.NodeBase().ID())
	if n.seen.Test(id) {
		return
	}
	n.seen.Set(id)
	n.intersections = append(n.intersections, scene.Direct(c))
}

// setActive fires isActive only on a change.
func (n *CollisionSensor) setActive(active bool) {
	if bool(n.isActive) == active {
		return
	}
	n.isActive = scene.SFBool(active)
	n.Notify(sensorIsActive)
}
