package scene

import (
	"fmt"
	"log/slog"

	"github.com/tidwall/btree"
)

// Factory constructs a node in setup mode.
type Factory func() Node

// Scene owns node construction, identities, routes, deletion and the
// end-of-frame queue. It is not safe for concurrent use.
type Scene struct {
	log         *slog.Logger
	factories   map[string]Factory
	nodes       *btree.Map[uint32, Node]
	collectible *btree.Map[uint32, Node]
	frames      FrameQueue
	nextID      uint32
}

// New creates an empty scene. A nil logger uses slog.Default().
func New(logger *slog.Logger) *Scene {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scene{
		log:         logger,
		factories:   make(map[string]Factory),
		nodes:       btree.NewMap[uint32, Node](32),
		collectible: btree.NewMap[uint32, Node](32),
	}
}

func (s *Scene) Logger() *slog.Logger { return s.log }

// Register installs a node factory. Registering a type twice panics.
func (s *Scene) Register(typeName string, f Factory) {
	if _, dup := s.factories[typeName]; dup {
		panic(fmt.Sprintf("scene: node type %s registered twice", typeName))
	}
	s.factories[typeName] = f
}

// CreateNode constructs a node of a registered type in setup mode.
func (s *Scene) CreateNode(typeName string) (Node, error) {
	f, ok := s.factories[typeName]
	if !ok {
		return nil, fmt.Errorf("create %q: %w", typeName, ErrUnknownNodeType)
	}
	n := f()
	s.Adopt(n)
	return n, nil
}

// Adopt assigns n an id in this scene. Nodes from CreateNode are adopted already.
func (s *Scene) Adopt(n Node) {
	b := n.NodeBase()
	if b.scene != nil {
		return
	}
	s.nextID++
	b.id = s.nextID
	b.scene = s
	s.nodes.Set(b.id, n)
}

// Node looks up a live node by id.
func (s *Scene) Node(id uint32) (Node, bool) { return s.nodes.Get(id) }

func (s *Scene) Len() int { return s.nodes.Len() }

// Scan visits live nodes in id order until fn returns false.
func (s *Scene) Scan(fn func(Node) bool) {
	s.nodes.Scan(func(_ uint32, n Node) bool { return fn(n) })
}

// FinishSetup ends setup mode for n.
func (s *Scene) FinishSetup(n Node) error {
	if err := n.SetupFinished(); err != nil {
		return fmt.Errorf("finish setup %s#%d: %w", n.NodeBase().TypeName(), n.NodeBase().ID(), err)
	}
	return nil
}

// AddRoute forwards every change of src.srcField to dst.dstField. A field
// has at most one route; adding another replaces it.
func (s *Scene) AddRoute(src Node, srcField string, dst Node, dstField string) error {
	sb, db := src.NodeBase(), dst.NodeBase()
	si, ok := sb.table.IndexOf(srcField)
	if !ok {
		return &FieldError{Type: sb.TypeName(), Field: srcField, Err: ErrUnknownField}
	}
	di, ok := db.table.IndexOf(dstField)
	if !ok {
		return &FieldError{Type: db.TypeName(), Field: dstField, Err: ErrUnknownField}
	}
	sf, df := sb.table.fields[si], db.table.fields[di]
	switch {
	case sf.Access != Output && sf.Access != InputOutput:
		return fmt.Errorf("route from %s.%s (%s): %w", sb.TypeName(), sf.Name, sf.Access, ErrIncompatibleRoute)
	case df.Access != Input && df.Access != InputOutput:
		return fmt.Errorf("route to %s.%s (%s): %w", db.TypeName(), df.Name, df.Access, ErrIncompatibleRoute)
	case sf.Type != df.Type:
		return fmt.Errorf("route %s -> %s: %w", sf.Type, df.Type, ErrIncompatibleRoute)
	}

	if sb.routes == nil {
		sb.routes = make([]route, sb.table.Len())
	}
	if sb.routes[si].dst != nil {
		s.log.Debug("route replaced", "node", sb.id, "field", sf.Name)
	}
	sb.routes[si] = route{dst: dst, index: di}
	return nil
}

// RemoveRoute drops the route leaving src.srcField, if any.
func (s *Scene) RemoveRoute(src Node, srcField string) {
	sb := src.NodeBase()
	if i, ok := sb.table.IndexOf(srcField); ok && i < len(sb.routes) {
		sb.routes[i] = route{}
	}
}

// DeleteNode releases n's resources and removes it with every route
// touching it. Deleting twice is a no-op.
func (s *Scene) DeleteNode(n Node) {
	b := n.NodeBase()
	if d, ok := n.(Deleter); ok {
		d.Delete()
	}
	b.MarkDeleted()
	b.routes = nil
	s.nodes.Scan(func(_ uint32, other Node) bool {
		ob := other.NodeBase()
		for i := range ob.routes {
			if ob.routes[i].dst == n {
				ob.routes[i] = route{}
			}
		}
		return true
	})
	s.nodes.Delete(b.id)
	s.collectible.Delete(b.id)
}

// Collectible returns nodes whose reference count dropped to zero, in id order.
func (s *Scene) Collectible() []Node { return s.collectible.Values() }

// Collect deletes every collectible node and returns how many were deleted.
func (s *Scene) Collect() int {
	nodes := s.collectible.Values()
	for _, n := range nodes {
		s.DeleteNode(n)
	}
	return len(nodes)
}

func (s *Scene) collect(n Node) { s.collectible.Set(n.NodeBase().id, n) }

func (s *Scene) uncollect(id uint32) { s.collectible.Delete(id) }

// Frames returns the end-of-frame queue.
func (s *Scene) Frames() *FrameQueue { return &s.frames }

// EndFrame runs every pending end-of-frame recompute once.
func (s *Scene) EndFrame() int { return s.frames.Drain() }

// FieldByName reads a field by name.
func FieldByName(n Node, name string) (Value, error) {
	b := n.NodeBase()
	i, ok := b.table.IndexOf(name)
	if !ok {
		return nil, &FieldError{Type: b.TypeName(), Field: name, Index: -1, Err: ErrUnknownField}
	}
	return n.FieldValue(i)
}

// SetByName writes a field by name.
func SetByName(n Node, name string, v Value) error {
	b := n.NodeBase()
	i, ok := b.table.IndexOf(name)
	if !ok {
		return &FieldError{Type: b.TypeName(), Field: name, Index: -1, Err: ErrUnknownField}
	}
	return n.SetValue(i, v)
}
