package engine

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/rigidsync/physics"
)

// solid is a world-space collision primitive: a sphere or an oriented box.
// Capsules, cones and triangle meshes are approximated by their boxes.
type solid struct {
	sphere bool
	center r3.Vec
	radius float64
	half   r3.Vec
	orient quat.Number
}

type hit struct {
	position r3.Vec
	normal   r3.Vec // toward the first solid
	depth    float64
}

func toSolid(s physics.Shape, at physics.Pose) solid {
	switch s.Kind {
	case physics.ShapeSphere:
		return solid{sphere: true, center: at.Position, radius: s.Radius}
	case physics.ShapeCapsule:
		return box(at, r3.Vec{X: s.Radius, Y: s.Length/2 + s.Radius, Z: s.Radius}, r3.Vec{})
	case physics.ShapeCone:
		return box(at, r3.Vec{X: s.Radius, Y: s.Length / 2, Z: s.Radius}, r3.Vec{})
	case physics.ShapeTriMesh:
		lo := r3.Vec{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
		hi := r3.Scale(-1, lo)
		for _, v := range s.Vertices {
			lo = r3.Vec{X: math.Min(lo.X, v.X), Y: math.Min(lo.Y, v.Y), Z: math.Min(lo.Z, v.Z)}
			hi = r3.Vec{X: math.Max(hi.X, v.X), Y: math.Max(hi.Y, v.Y), Z: math.Max(hi.Z, v.Z)}
		}
		return box(at, r3.Scale(0.5, r3.Sub(hi, lo)), r3.Scale(0.5, r3.Add(hi, lo)))
	}
	return box(at, r3.Scale(0.5, s.Size), r3.Vec{})
}

func box(at physics.Pose, half, offset r3.Vec) solid {
	return solid{
		center: r3.Add(at.Position, physics.Rotate(at.Orientation, offset)),
		half:   half,
		orient: at.Orientation,
	}
}

// collide returns up to limit contact points between a and b.
func collide(a, b solid, limit int) []hit {
	switch {
	case a.sphere && b.sphere:
		return sphereSphere(a, b)
	case a.sphere:
		return sphereBox(a, b, false)
	case b.sphere:
		return sphereBox(b, a, true)
	}
	return boxBox(a, b, limit)
}

func sphereSphere(a, b solid) []hit {
	d := r3.Sub(a.center, b.center)
	dist := r3.Norm(d)
	depth := a.radius + b.radius - dist
	if depth <= 0 {
		return nil
	}
	n := r3.Vec{Y: 1}
	if dist > 1e-12 {
		n = r3.Scale(1/dist, d)
	}
	return []hit{{
		position: r3.Add(b.center, r3.Scale(b.radius-depth/2, n)),
		normal:   n,
		depth:    depth,
	}}
}

// sphereBox collides sphere s with box b. flip reports that the box is the
// first solid, so the normal must point at the box.
func sphereBox(s, b solid, flip bool) []hit {
	inv := quat.Conj(b.orient)
	local := physics.Rotate(inv, r3.Sub(s.center, b.center))
	closest := r3.Vec{
		X: clamp(local.X, -b.half.X, b.half.X),
		Y: clamp(local.Y, -b.half.Y, b.half.Y),
		Z: clamp(local.Z, -b.half.Z, b.half.Z),
	}
	diff := r3.Sub(local, closest)
	dist := r3.Norm(diff)

	var n r3.Vec
	var depth float64
	if dist > 1e-12 {
		if dist >= s.radius {
			return nil
		}
		n = r3.Scale(1/dist, diff)
		depth = s.radius - dist
	} else {
		// Center inside the box: push out through the nearest face.
		n, depth = nearestFace(local, b.half)
		depth += s.radius
	}
	h := hit{
		position: r3.Add(b.center, physics.Rotate(b.orient, closest)),
		normal:   physics.Rotate(b.orient, n),
		depth:    depth,
	}
	if flip {
		h.normal = r3.Scale(-1, h.normal)
	}
	return []hit{h}
}

func nearestFace(p, half r3.Vec) (r3.Vec, float64) {
	dx, dy, dz := half.X-math.Abs(p.X), half.Y-math.Abs(p.Y), half.Z-math.Abs(p.Z)
	switch {
	case dx <= dy && dx <= dz:
		return r3.Vec{X: sign(p.X)}, dx
	case dy <= dz:
		return r3.Vec{Y: sign(p.Y)}, dy
	}
	return r3.Vec{Z: sign(p.Z)}, dz
}

// boxBox intersects the world-aligned bounds of both boxes and reports
// points on the face of least penetration.
func boxBox(a, b solid, limit int) []hit {
	ea, eb := extent(a), extent(b)
	d := r3.Sub(a.center, b.center)
	overlap := r3.Vec{
		X: ea.X + eb.X - math.Abs(d.X),
		Y: ea.Y + eb.Y - math.Abs(d.Y),
		Z: ea.Z + eb.Z - math.Abs(d.Z),
	}
	if overlap.X <= 0 || overlap.Y <= 0 || overlap.Z <= 0 {
		return nil
	}

	lo := vmax(r3.Sub(a.center, ea), r3.Sub(b.center, eb))
	hi := vmin(r3.Add(a.center, ea), r3.Add(b.center, eb))
	mid := r3.Scale(0.5, r3.Add(lo, hi))

	var n r3.Vec
	var depth float64
	var u, v func(r3.Vec, float64) r3.Vec
	var ulo, uhi, vlo, vhi float64
	switch {
	case overlap.Y <= overlap.X && overlap.Y <= overlap.Z:
		n, depth = r3.Vec{Y: sign(d.Y)}, overlap.Y
		u, v = setX, setZ
		ulo, uhi, vlo, vhi = lo.X, hi.X, lo.Z, hi.Z
	case overlap.X <= overlap.Z:
		n, depth = r3.Vec{X: sign(d.X)}, overlap.X
		u, v = setY, setZ
		ulo, uhi, vlo, vhi = lo.Y, hi.Y, lo.Z, hi.Z
	default:
		n, depth = r3.Vec{Z: sign(d.Z)}, overlap.Z
		u, v = setX, setY
		ulo, uhi, vlo, vhi = lo.X, hi.X, lo.Y, hi.Y
	}

	if limit <= 1 {
		return []hit{{position: mid, normal: n, depth: depth}}
	}
	corners := [4][2]float64{{ulo, vlo}, {uhi, vhi}, {ulo, vhi}, {uhi, vlo}}
	count := min(limit, len(corners))
	hits := make([]hit, 0, count)
	for _, c := range corners[:count] {
		hits = append(hits, hit{position: v(u(mid, c[0]), c[1]), normal: n, depth: depth})
	}
	return hits
}

// extent is the half size of the world-aligned bounds of a box.
func extent(s solid) r3.Vec {
	ax := physics.Rotate(s.orient, r3.Vec{X: s.half.X})
	ay := physics.Rotate(s.orient, r3.Vec{Y: s.half.Y})
	az := physics.Rotate(s.orient, r3.Vec{Z: s.half.Z})
	return r3.Vec{
		X: math.Abs(ax.X) + math.Abs(ay.X) + math.Abs(az.X),
		Y: math.Abs(ax.Y) + math.Abs(ay.Y) + math.Abs(az.Y),
		Z: math.Abs(ax.Z) + math.Abs(ay.Z) + math.Abs(az.Z),
	}
}

func setX(p r3.Vec, x float64) r3.Vec {
	p.X = x
	return p
}

func setY(p r3.Vec, y float64) r3.Vec {
	p.Y = y
	return p
}

func setZ(p r3.Vec, z float64) r3.Vec {
	p.Z = z
	return p
}

func vmin(a, b r3.Vec) r3.Vec {
	return r3.Vec{X: math.Min(a.X, b.X), Y: math.Min(a.Y, b.Y), Z: math.Min(a.Z, b.Z)}
}

func vmax(a, b r3.Vec) r3.Vec {
	return r3.Vec{X: math.Max(a.X, b.X), Y: math.Max(a.Y, b.Y), Z: math.Max(a.Z, b.Z)}
}

func clamp(v, lo, hi float64) float64 { return math.Max(lo, math.Min(hi, v)) }

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
