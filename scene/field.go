// Package scene holds the field-based node model shared by every node type:
// per-type field tables, typed values, node references through proxy chains,
// reference counting, routes and the end-of-frame recompute queue.
package scene

import (
	"fmt"
	"strings"
)

// Access is the access class of a field.
type Access uint8

const (
	Input Access = iota
	Output
	InputOutput
	InitializeOnly
)

func (a Access) String() string {
	switch a {
	case Input:
		return "inputOnly"
	case Output:
		return "outputOnly"
	case InputOutput:
		return "inputOutput"
	case InitializeOnly:
		return "initializeOnly"
	}
	return fmt.Sprintf("Access(%d)", uint8(a))
}

// Type is the value type of a field.
type Type uint8

const (
	TypeSFBool Type = iota
	TypeSFInt32
	TypeSFFloat
	TypeSFVec2f
	TypeSFVec3f
	TypeSFRotation
	TypeSFMatrix3f
	TypeMFVec3f
	TypeMFString
	TypeSFNode
	TypeMFNode
)

var typeNames = [...]string{
	TypeSFBool:     "SFBool",
	TypeSFInt32:    "SFInt32",
	TypeSFFloat:    "SFFloat",
	TypeSFVec2f:    "SFVec2f",
	TypeSFVec3f:    "SFVec3f",
	TypeSFRotation: "SFRotation",
	TypeSFMatrix3f: "SFMatrix3f",
	TypeMFVec3f:    "MFVec3f",
	TypeMFString:   "MFString",
	TypeSFNode:     "SFNode",
	TypeMFNode:     "MFNode",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// Field describes one field of a node type.
type Field struct {
	Index  int
	Name   string
	Access Access
	Type   Type
}

// Table is the immutable field table of a node type. Built once per type
// and shared by every node of that type.
type Table struct {
	typeName string
	fields   []Field
	byName   map[string]int
	outputs  []int
}

// NewTable builds a field table. Field indices must be contiguous from zero
// in declaration order; violations and duplicate names panic since tables
// are package-level declarations.
func NewTable(typeName string, fields ...Field) *Table {
	t := &Table{
		typeName: typeName,
		fields:   fields,
		byName:   make(map[string]int, len(fields)*2),
	}
	for i, f := range fields {
		if f.Index != i {
			panic(fmt.Sprintf("scene: %s.%s has index %d, want %d", typeName, f.Name, f.Index, i))
		}
		t.add(f.Name, i)
		switch f.Access {
		case InputOutput:
			t.add("set_"+f.Name, i)
			t.add(f.Name+"_changed", i)
		case Input:
			if !strings.HasPrefix(f.Name, "set_") {
				t.add("set_"+f.Name, i)
			}
		case Output:
			t.outputs = append(t.outputs, i)
		}
	}
	return t
}

func (t *Table) add(name string, index int) {
	if _, dup := t.byName[name]; dup {
		panic(fmt.Sprintf("scene: duplicate field name %s.%s", t.typeName, name))
	}
	t.byName[name] = index
}

// TypeName returns the node type this table describes.
func (t *Table) TypeName() string { return t.typeName }

// Len returns the number of fields.
func (t *Table) Len() int { return len(t.fields) }

// IndexOf maps a field name (or one of its set_/_changed aliases) to its index.
func (t *Table) IndexOf(name string) (int, bool) {
	i, ok := t.byName[name]
	return i, ok
}

// Field returns the field descriptor at index.
func (t *Table) Field(index int) (Field, error) {
	if index < 0 || index >= len(t.fields) {
		return Field{}, &FieldError{Type: t.typeName, Index: index, Err: ErrUnknownField}
	}
	return t.fields[index], nil
}

// Fields returns all field descriptors in index order. The slice must not be modified.
func (t *Table) Fields() []Field { return t.fields }

// Outputs returns the indices of every output-only field in declaration
// order. This is the set selected by "ALL".
func (t *Table) Outputs() []int { return t.outputs }
