package scene

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownField      = errors.New("unknown field")
	ErrReadOnlyField     = errors.New("read-only field")
	ErrInvalidValue      = errors.New("invalid field value")
	ErrTypeMismatch      = errors.New("node type mismatch")
	ErrCyclicIndirection = errors.New("cyclic proxy indirection")
	ErrUnknownNodeType   = errors.New("unknown node type")
	ErrIncompatibleRoute = errors.New("incompatible route")
)

// FieldError reports a failed field access on a node type.
type FieldError struct {
	Type   string
	Field  string
	Index  int
	Err    error // one of the sentinel errors above
	Reason string
	Cause  error
}

func (e *FieldError) Error() string {
	var b strings.Builder
	b.WriteString(e.Type)
	b.WriteByte('.')
	if e.Field != "" {
		b.WriteString(e.Field)
	} else {
		fmt.Fprintf(&b, "#%d", e.Index)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *FieldError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

// TypeMismatchError reports a referenced node lacking a required capability.
type TypeMismatchError struct {
	Expected string
	Actual   string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("node type mismatch: want %s, got %s", e.Expected, e.Actual)
}

func (e *TypeMismatchError) Unwrap() error { return ErrTypeMismatch }

// CycleError reports a proxy chain that revisits a proxy.
type CycleError struct {
	Chain []string
}

func (e *CycleError) Error() string {
	return "cyclic proxy indirection: " + strings.Join(e.Chain, " -> ")
}

func (e *CycleError) Unwrap() error { return ErrCyclicIndirection }
