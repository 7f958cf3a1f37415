package engine

import (
	"github.com/mlange-42/ark/ecs"
	"github.com/tidwall/btree"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/rigidsync/physics"
)

// Geom is a handle to a collider entity.
type Geom struct {
	w         *World
	id        uint32
	e         ecs.Entity
	kind      physics.ShapeKind
	parent    uint32 // transform geom wrapping this one
	child     *Geom
	destroyed bool
}

func (g *Geom) ID() uint32 { return g.id }

func (g *Geom) Kind() physics.ShapeKind { return g.kind }

func (g *Geom) dead() bool { return g.destroyed || g.w.destroyed }

func (g *Geom) components() (*physics.Pose, *Collider) { return g.w.geomMap.Get(g.e) }

func (g *Geom) SetPosition(p r3.Vec) {
	if g.dead() {
		return
	}
	_, col := g.components()
	col.Local.Position = p
	g.place()
}

func (g *Geom) Position() r3.Vec {
	if g.dead() {
		return r3.Vec{}
	}
	_, col := g.components()
	return col.Local.Position
}

func (g *Geom) SetOrientation(q quat.Number) {
	if g.dead() {
		return
	}
	_, col := g.components()
	col.Local.Orientation = physics.Normalize(q)
	g.place()
}

func (g *Geom) Orientation() quat.Number {
	if g.dead() {
		return quat.Number{Real: 1}
	}
	_, col := g.components()
	return col.Local.Orientation
}

func (g *Geom) WorldPose() physics.Pose {
	if g.dead() {
		return physics.IdentityPose
	}
	pose, _ := g.components()
	return *pose
}

func (g *Geom) SetEnabled(enabled bool) {
	if g.dead() {
		return
	}
	_, col := g.components()
	col.Enabled = enabled
}

func (g *Geom) Enabled() bool {
	if g.dead() {
		return false
	}
	_, col := g.components()
	return col.Enabled
}

func (g *Geom) Body() uint32 {
	if g.dead() {
		return 0
	}
	_, col := g.components()
	return col.Body
}

// place refreshes the world pose from the placement.
func (g *Geom) place() {
	pose, col := g.components()
	if col.Body == 0 {
		*pose = col.Local
		return
	}
	if b, ok := g.w.bodies.Get(col.Body); ok {
		bp, _, _ := g.w.bodyMap.Get(b.e)
		*pose = physics.Compose(*bp, col.Local)
	}
}

// detach makes the geom static at its current world pose if it follows body.
func (g *Geom) detach(body uint32) {
	if g.dead() {
		return
	}
	pose, col := g.components()
	if col.Body != body {
		return
	}
	col.Body = 0
	col.Local = *pose
}

func (g *Geom) Destroy() {
	if g.destroyed {
		return
	}
	for _, s := range g.w.spaces.Values() {
		s.geoms.Delete(g.id)
	}
	if g.child != nil {
		g.child.parent = 0
		g.child = nil
	}
	if g.parent != 0 {
		if p, ok := g.w.geoms.Get(g.parent); ok {
			p.child = nil
		}
		g.parent = 0
	}
	g.w.ecs.RemoveEntity(g.e)
	g.w.geoms.Delete(g.id)
	g.destroyed = true
}

// Space tests its geoms pairwise in id order.
type Space struct {
	w         *World
	id        uint32
	geoms     *btree.Map[uint32, *Geom]
	surface   physics.Surface
	bulk      *physics.BulkContact
	scratch   []*Geom
	destroyed bool
}

func (s *Space) dead() bool { return s.destroyed || s.w.destroyed }

func (s *Space) Add(g physics.Geom) {
	geom, ok := g.(*Geom)
	if s.dead() || !ok || geom.dead() || geom.w != s.w {
		return
	}
	s.geoms.Set(geom.id, geom)
}

func (s *Space) Remove(g physics.Geom) {
	if geom, ok := g.(*Geom); ok && !s.dead() {
		s.geoms.Delete(geom.id)
	}
}

func (s *Space) SetSurface(surface physics.Surface) { s.surface = surface }

// Collide regenerates the contact stream. Geoms wrapped by a transform,
// disabled geoms, pairs on the same body and pairs of static geoms are skipped.
func (s *Space) Collide() int {
	s.bulk.Reset()
	if s.dead() {
		return 0
	}
	s.scratch = s.scratch[:0]
	s.geoms.Scan(func(_ uint32, g *Geom) bool {
		if _, col := g.components(); col.Enabled && g.parent == 0 {
			s.scratch = append(s.scratch, g)
		}
		return true
	})

	for i := 0; i < len(s.scratch); i++ {
		g1 := s.scratch[i]
		_, c1 := g1.components()
		for k := i + 1; k < len(s.scratch); k++ {
			g2 := s.scratch[k]
			_, c2 := g2.components()
			if c1.Body == c2.Body {
				continue
			}
			sol1, ok1 := g1.solid()
			sol2, ok2 := g2.solid()
			if !ok1 || !ok2 {
				continue
			}
			s.emit(g1, c1, g2, c2, collide(sol1, sol2, s.w.opts.MaxContactsPerPair))
		}
	}
	return s.bulk.Len()
}

func (s *Space) emit(g1 *Geom, c1 *Collider, g2 *Geom, c2 *Collider, hits []hit) {
	for _, h := range hits {
		p := s.bulk.Next()
		p.Position = h.position
		p.Normal = h.normal
		p.Depth = h.depth
		p.Body1, p.Body2 = c1.Body, c2.Body
		p.Geom1, p.Geom2 = g1.id, g2.id
		p.FrictionDir = tangent(h.normal)
		p.Surface = s.surface
	}
}

func (s *Space) Contacts() *physics.BulkContact { return s.bulk }

// Apply queues the non-ignored contacts of the last Collide for the next Step.
func (s *Space) Apply() {
	if s.dead() {
		return
	}
	for i := 0; i < s.bulk.Len(); i++ {
		if c := s.bulk.At(i); !c.Ignored {
			s.w.pending = append(s.w.pending, *c)
		}
	}
}

func (s *Space) Destroy() {
	if s.destroyed {
		return
	}
	s.geoms = btree.NewMap[uint32, *Geom](16)
	s.w.spaces.Delete(s.id)
	s.destroyed = true
}

// solid resolves the geom, through a transform if needed, to a primitive
// in world space.
func (g *Geom) solid() (solid, bool) {
	pose, col := g.components()
	shape := col.Shape
	at := *pose
	if shape.Kind == physics.ShapeTransform {
		if g.child == nil || g.child.dead() {
			return solid{}, false
		}
		_, cc := g.child.components()
		shape = cc.Shape
		at = physics.Compose(at, cc.Local)
	}
	return toSolid(shape, at), true
}

// tangent returns a unit vector perpendicular to n.
func tangent(n r3.Vec) r3.Vec {
	t := r3.Cross(n, r3.Vec{X: 1})
	if r3.Norm(t) < 1e-6 {
		t = r3.Cross(n, r3.Vec{Z: 1})
	}
	if r3.Norm(t) == 0 {
		return r3.Vec{}
	}
	return r3.Unit(t)
}
