package rigid

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/rigidsync/physics"
	"github.com/pthm-cable/rigidsync/scene"
)

func vec(v scene.SFVec3f) r3.Vec {
	return r3.Vec{X: float64(v[0]), Y: float64(v[1]), Z: float64(v[2])}
}

func sfvec(v r3.Vec) scene.SFVec3f {
	return scene.SFVec3f{float32(v.X), float32(v.Y), float32(v.Z)}
}

func orientation(r scene.SFRotation) quat.Number {
	return physics.QuatFromAxisAngle(r3.Vec{X: float64(r[0]), Y: float64(r[1]), Z: float64(r[2])}, float64(r[3]))
}

func sfrot(q quat.Number) scene.SFRotation {
	axis, angle := physics.AxisAngle(q)
	return scene.SFRotation{float32(axis.X), float32(axis.Y), float32(axis.Z), float32(angle)}
}

func inertia(m scene.SFMatrix3f) [9]float64 {
	var out [9]float64
	for i, v := range m {
		out[i] = float64(v)
	}
	return out
}

func validRotation(r scene.SFRotation) bool {
	return r[0] != 0 || r[1] != 0 || r[2] != 0
}

func finite(v scene.SFVec3f) bool {
	for _, c := range v {
		if math.IsNaN(float64(c)) || math.IsInf(float64(c), 0) {
			return false
		}
	}
	return true
}

// sameOrientation compares rotations to single precision.
func sameOrientation(a, b quat.Number) bool {
	d := a.Real*b.Real + a.Imag*b.Imag + a.Jmag*b.Jmag + a.Kmag*b.Kmag
	return math.Abs(d) > 1-1e-6
}

func unit(f scene.SFFloat) bool { return f >= 0 && f <= 1 }
