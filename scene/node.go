package scene

import (
	"fmt"
	"log/slog"

	"github.com/bits-and-blooms/bitset"
)

// Node is a scene graph node addressed by field index.
type Node interface {
	NodeBase() *Base
	// FieldValue returns the current value of a field.
	FieldValue(index int) (Value, error)
	// SetValue validates and stores a field value. In active mode the
	// change is pushed to any backing physics object and routed.
	SetValue(index int, v Value) error
	// SetupFinished ends the bulk assignment phase.
	SetupFinished() error
}

// Deleter is implemented by nodes that own resources released on deletion.
// Delete must be idempotent.
type Deleter interface {
	Delete()
}

// FrameListener is a node that defers work to the end of the frame.
type FrameListener interface {
	Node
	FrameComplete()
}

type route struct {
	dst   Node
	index int
}

// Base carries the state shared by every node: its field table, setup
// mode, changed flags, reference count and outgoing routes. Node types
// embed it and call Init from their constructor.
type Base struct {
	table   *Table
	self    Node
	id      uint32
	scene   *Scene
	inSetup bool
	deleted bool
	refs    int
	changed bitset.BitSet
	firing  bitset.BitSet
	routes  []route
}

// Init binds the base to its field table and outer node. Nodes start in setup mode.
func (b *Base) Init(t *Table, self Node) {
	b.table = t
	b.self = self
	b.inSetup = true
}

func (b *Base) NodeBase() *Base { return b }

// ID returns the scene-assigned node id, zero for nodes outside a scene.
func (b *Base) ID() uint32       { return b.id }
func (b *Base) TypeName() string { return b.table.typeName }
func (b *Base) Table() *Table    { return b.table }
func (b *Base) Scene() *Scene    { return b.scene }
func (b *Base) InSetup() bool    { return b.inSetup }
func (b *Base) Deleted() bool    { return b.deleted }
func (b *Base) RefCount() int    { return b.refs }

func (b *Base) Logger() *slog.Logger {
	if b.scene != nil {
		return b.scene.log
	}
	return slog.Default()
}

// EndSetup leaves setup mode. It reports whether the node was in setup.
func (b *Base) EndSetup() bool {
	was := b.inSetup
	b.inSetup = false
	return was
}

// MarkDeleted flags the node deleted. It reports true only on the first call.
func (b *Base) MarkDeleted() bool {
	if b.deleted {
		return false
	}
	b.deleted = true
	return true
}

// Changed reports whether the field was written since the last ClearChanged.
func (b *Base) Changed(index int) bool { return b.changed.Test(uint(index)) }

func (b *Base) ClearChanged() { b.changed.ClearAll() }

// CheckWrite applies the checks common to every write: the index exists,
// the access class permits writing in the current mode, and the value has
// the field's type.
func (b *Base) CheckWrite(index int, v Value) (Field, error) {
	f, err := b.table.Field(index)
	if err != nil {
		return Field{}, err
	}
	switch f.Access {
	case Output:
		return f, b.fieldError(f, ErrReadOnlyField, "output only")
	case InitializeOnly:
		if !b.inSetup {
			return f, b.fieldError(f, ErrReadOnlyField, "initialize only")
		}
	}
	if v == nil {
		return f, b.fieldError(f, ErrInvalidValue, "nil value")
	}
	if v.Type() != f.Type {
		return f, b.fieldError(f, ErrInvalidValue, fmt.Sprintf("want %s, got %s", f.Type, v.Type()))
	}
	return f, nil
}

func (b *Base) fieldError(f Field, sentinel error, reason string) *FieldError {
	return &FieldError{Type: b.table.typeName, Field: f.Name, Index: f.Index, Err: sentinel, Reason: reason}
}

// Invalid builds an invalid value error for a field.
func (b *Base) Invalid(index int, reason string) error {
	f, _ := b.table.Field(index)
	return &FieldError{Type: b.table.typeName, Field: f.Name, Index: index, Err: ErrInvalidValue, Reason: reason}
}

// InvalidCause builds an invalid value error caused by err.
func (b *Base) InvalidCause(index int, err error) error {
	f, _ := b.table.Field(index)
	return &FieldError{Type: b.table.typeName, Field: f.Name, Index: index, Err: ErrInvalidValue, Cause: err}
}

// UnknownField builds the error returned for an index outside the table.
func (b *Base) UnknownField(index int) error {
	return &FieldError{Type: b.table.typeName, Index: index, Err: ErrUnknownField}
}

// Notify records a change of the field and, outside setup, delivers it
// along the field's route.
func (b *Base) Notify(index int) {
	b.changed.Set(uint(index))
	if !b.inSetup {
		b.fire(index)
	}
}

func (b *Base) fire(index int) {
	if index >= len(b.routes) || b.routes[index].dst == nil {
		return
	}
	// A route cycle back into this field stops here.
	if b.firing.Test(uint(index)) {
		return
	}
	b.firing.Set(uint(index))
	defer b.firing.Clear(uint(index))

	r := b.routes[index]
	v, err := b.self.FieldValue(index)
	if err == nil {
		err = r.dst.SetValue(r.index, v)
	}
	if err != nil {
		b.Logger().Warn("route delivery failed",
			"node", b.id,
			"type", b.table.typeName,
			"field", b.table.fields[index].Name,
			"error", err,
		)
	}
}

// RequestFrame queues l for FrameComplete at the end of the current frame.
// Outside a scene the callback runs immediately.
func (b *Base) RequestFrame(l FrameListener) {
	if b.scene == nil {
		l.FrameComplete()
		return
	}
	b.scene.frames.Add(l)
}

func (b *Base) retain() {
	b.refs++
	if b.scene != nil && b.refs == 1 {
		b.scene.uncollect(b.id)
	}
}

func (b *Base) release() {
	if b.refs == 0 {
		return
	}
	b.refs--
	if b.refs == 0 && b.scene != nil && !b.deleted {
		b.scene.collect(b.self)
	}
}
