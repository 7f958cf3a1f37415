package scene

// Slot is a node-valued field requiring capability T of its target.
// The zero value is an empty slot; capability names T in errors.
type Slot[T any] struct {
	capability string
	ref        Ref
	node       T
	ok         bool
}

func NewSlot[T any](capability string) Slot[T] {
	return Slot[T]{capability: capability}
}

// Set resolves r and, on success, takes a reference on the new target
// before dropping the one on the previous target. On failure the slot is
// unchanged.
func (s *Slot[T]) Set(r Ref) error {
	n, ok, err := ResolveAs[T](r, s.capability)
	if err != nil {
		return err
	}
	r.retain()
	s.ref.release()
	s.ref = r
	s.node = n
	s.ok = ok
	return nil
}

// Rebind re-resolves the held reference, picking up proxy implementations
// supplied since Set.
func (s *Slot[T]) Rebind() error {
	n, ok, err := ResolveAs[T](s.ref, s.capability)
	if err != nil {
		return err
	}
	s.node = n
	s.ok = ok
	return nil
}

// Get returns the resolved target. ok is false for an empty or unresolved slot.
func (s *Slot[T]) Get() (T, bool) { return s.node, s.ok }

// Ref returns the held reference as written.
func (s *Slot[T]) Ref() Ref { return s.ref }

// Clear releases the held reference.
func (s *Slot[T]) Clear() {
	var zero T
	s.ref.release()
	s.ref = Ref{}
	s.node = zero
	s.ok = false
}

// SlotList is the multi-valued form of Slot. Unresolved entries are kept
// as written but skipped by Nodes.
type SlotList[T any] struct {
	capability string
	refs       []Ref
	nodes      []T
}

func NewSlotList[T any](capability string) SlotList[T] {
	return SlotList[T]{capability: capability}
}

// Set replaces the list. Every entry is resolved before any reference
// count changes; new entries are retained before old ones are released.
func (s *SlotList[T]) Set(refs []Ref) error {
	nodes := make([]T, 0, len(refs))
	for _, r := range refs {
		n, ok, err := ResolveAs[T](r, s.capability)
		if err != nil {
			return err
		}
		if ok {
			nodes = append(nodes, n)
		}
	}
	held := make([]Ref, len(refs))
	copy(held, refs)
	for _, r := range held {
		r.retain()
	}
	for _, r := range s.refs {
		r.release()
	}
	s.refs = held
	s.nodes = nodes
	return nil
}

// Rebind re-resolves every held reference.
func (s *SlotList[T]) Rebind() error {
	nodes := s.nodes[:0]
	for _, r := range s.refs {
		n, ok, err := ResolveAs[T](r, s.capability)
		if err != nil {
			return err
		}
		if ok {
			nodes = append(nodes, n)
		}
	}
	s.nodes = nodes
	return nil
}

// Nodes returns the resolved targets. The slice must not be modified.
func (s *SlotList[T]) Nodes() []T { return s.nodes }

// Refs returns a copy of the held references.
func (s *SlotList[T]) Refs() MFNode {
	out := make(MFNode, len(s.refs))
	copy(out, s.refs)
	return out
}

func (s *SlotList[T]) Len() int { return len(s.refs) }

func (s *SlotList[T]) Clear() {
	for _, r := range s.refs {
		r.release()
	}
	s.refs = nil
	s.nodes = nil
}
