package scene

import (
	"fmt"
	"sync/atomic"

	"github.com/bits-and-blooms/bitset"
)

// RefKind distinguishes the variants of a Ref.
type RefKind uint8

const (
	RefEmpty RefKind = iota
	RefDirect
	RefIndirect
)

func (k RefKind) String() string {
	switch k {
	case RefEmpty:
		return "empty"
	case RefDirect:
		return "direct"
	case RefIndirect:
		return "indirect"
	}
	return fmt.Sprintf("RefKind(%d)", uint8(k))
}

// Ref is a reference to a node: empty, a concrete node, or a proxy whose
// implementation is resolved on demand.
type Ref struct {
	node  Node
	proxy *Proxy
}

// Direct references a concrete node. A nil node yields an empty Ref.
func Direct(n Node) Ref {
	if n == nil {
		return Ref{}
	}
	return Ref{node: n}
}

// Indirect references a proxy. A nil proxy yields an empty Ref.
func Indirect(p *Proxy) Ref {
	if p == nil {
		return Ref{}
	}
	return Ref{proxy: p}
}

func (r Ref) Kind() RefKind {
	switch {
	case r.node != nil:
		return RefDirect
	case r.proxy != nil:
		return RefIndirect
	}
	return RefEmpty
}

func (r Ref) IsEmpty() bool { return r.node == nil && r.proxy == nil }

// Node returns the referenced node of a direct Ref.
func (r Ref) Node() Node { return r.node }

// Proxy returns the referenced proxy of an indirect Ref.
func (r Ref) Proxy() *Proxy { return r.proxy }

// Equal reports whether both refs hold the same node or proxy.
func (r Ref) Equal(o Ref) bool { return r.node == o.node && r.proxy == o.proxy }

func (r Ref) retain() {
	switch {
	case r.node != nil:
		r.node.NodeBase().retain()
	case r.proxy != nil:
		r.proxy.retain()
	}
}

func (r Ref) release() {
	switch {
	case r.node != nil:
		r.node.NodeBase().release()
	case r.proxy != nil:
		r.proxy.release()
	}
}

var proxySeq atomic.Uint32

// Proxy stands in for a node whose implementation may be supplied later.
// A proxy holds a reference on its implementation.
type Proxy struct {
	id   uint32
	name string
	impl Ref
	refs int
}

// NewProxy creates an unresolved proxy.
func NewProxy(name string) *Proxy {
	return &Proxy{id: proxySeq.Add(1), name: name}
}

func (p *Proxy) Name() string { return p.name }

// RefCount returns the number of holders of this proxy.
func (p *Proxy) RefCount() int { return p.refs }

// Implementation returns the proxy's target, which may itself be a proxy.
func (p *Proxy) Implementation() Ref { return p.impl }

// SetImplementation points the proxy at r. The new target is retained
// before the previous one is released.
func (p *Proxy) SetImplementation(r Ref) {
	r.retain()
	p.impl.release()
	p.impl = r
}

func (p *Proxy) retain() { p.refs++ }

func (p *Proxy) release() {
	if p.refs > 0 {
		p.refs--
	}
}

// Resolve follows r through any proxies to a concrete node. ok is false for
// an empty ref or a chain ending in a proxy without implementation; neither
// is an error. Revisiting a proxy fails with *CycleError.
func Resolve(r Ref) (n Node, ok bool, err error) {
	if r.node != nil {
		return r.node, true, nil
	}
	if r.proxy == nil {
		return nil, false, nil
	}

	var visited bitset.BitSet
	var chain []string
	p := r.proxy
	for {
		chain = append(chain, p.name)
		if visited.Test(uint(p.id)) {
			return nil, false, &CycleError{Chain: chain}
		}
		visited.Set(uint(p.id))

		next := p.impl
		switch {
		case next.node != nil:
			return next.node, true, nil
		case next.proxy == nil:
			return nil, false, nil
		}
		p = next.proxy
	}
}

// ResolveAs resolves r and checks that the node provides capability T.
// capability names T in the mismatch error.
func ResolveAs[T any](r Ref, capability string) (T, bool, error) {
	var zero T
	n, ok, err := Resolve(r)
	if err != nil || !ok {
		return zero, false, err
	}
	t, match := n.(T)
	if !match {
		return zero, false, &TypeMismatchError{Expected: capability, Actual: n.NodeBase().TypeName()}
	}
	return t, true, nil
}
