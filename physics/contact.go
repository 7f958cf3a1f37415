package physics

import "gonum.org/v1/gonum/spatial/r3"

// SurfaceMode flags the surface parameters in effect for a contact.
type SurfaceMode uint16

const (
	SurfaceBounce SurfaceMode = 1 << iota
	SurfaceUserFriction
	SurfaceFriction2
	SurfaceSoftERP
	SurfaceSoftCFM
	SurfaceMotion1
	SurfaceMotion2
	SurfaceSlip1
	SurfaceSlip2
)

// Surface are the contact surface parameters applied to generated contacts.
type Surface struct {
	Mode      SurfaceMode
	Mu        float64
	Mu2       float64
	Bounce    float64
	BounceVel float64
	SoftERP   float64
	SoftCFM   float64
	Motion1   float64
	Motion2   float64
	Slip1     float64
	Slip2     float64
}

// ContactPoint is one raw contact. Normal points from geom 2 toward geom 1
// and Depth is the penetration along it. Body and geom ids are zero when absent.
type ContactPoint struct {
	Position    r3.Vec
	Normal      r3.Vec
	Depth       float64
	Body1       uint32
	Body2       uint32
	Geom1       uint32
	Geom2       uint32
	FrictionDir r3.Vec
	Surface     Surface
	Ignored     bool
}

// BulkContact is a grow-only contact buffer. Reset keeps capacity.
type BulkContact struct {
	points []ContactPoint
	n      int
}

// NewBulkContact preallocates room for capacity contacts.
func NewBulkContact(capacity int) *BulkContact {
	return &BulkContact{points: make([]ContactPoint, capacity)}
}

func (b *BulkContact) Len() int { return b.n }

// Cap returns the number of records allocated.
func (b *BulkContact) Cap() int { return len(b.points) }

// At returns contact i, which must be below Len.
func (b *BulkContact) At(i int) *ContactPoint { return &b.points[i] }

// Reset empties the buffer without releasing storage.
func (b *BulkContact) Reset() { b.n = 0 }

// Next appends a zeroed record, growing the buffer when full.
func (b *BulkContact) Next() *ContactPoint {
	if b.n == len(b.points) {
		grown := max(2*len(b.points), 8)
		points := make([]ContactPoint, grown)
		copy(points, b.points)
		b.points = points
	}
	p := &b.points[b.n]
	*p = ContactPoint{}
	b.n++
	return p
}
