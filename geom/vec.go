/*package geom contains the geometric primitives shared by the particle side
of the coupling: vectors, the periodic domain and the per-worker bounding
boxes reported by the force calculator.
*/
package geom

import (
	"math"
)

// Vec is a three dimensional vector.
type Vec [3]float64

// Zero sets every component of v to zero.
func (v *Vec) Zero() {
	v[0], v[1], v[2] = 0, 0, 0
}

// AddSelf performs v += u.
func (v *Vec) AddSelf(u *Vec) *Vec {
	for i := 0; i < 3; i++ {
		v[i] += u[i]
	}
	return v
}

// AddAt computes v + u and writes it to target.
func (v *Vec) AddAt(u, target *Vec) *Vec {
	for i := 0; i < 3; i++ {
		target[i] = v[i] + u[i]
	}
	return target
}

// SubAt computes v - u and writes it to target.
func (v *Vec) SubAt(u, target *Vec) *Vec {
	for i := 0; i < 3; i++ {
		target[i] = v[i] - u[i]
	}
	return target
}

// ScaleSelf performs v *= k.
func (v *Vec) ScaleSelf(k float64) *Vec {
	for i := 0; i < 3; i++ {
		v[i] *= k
	}
	return v
}

// ScaleAt computes v * k and writes it to target.
func (v *Vec) ScaleAt(k float64, target *Vec) *Vec {
	for i := 0; i < 3; i++ {
		target[i] = v[i] * k
	}
	return target
}

// AddScaledSelf performs v += u * k. This is the update used by every
// explicit integration step, so it gets its own method.
func (v *Vec) AddScaledSelf(u *Vec, k float64) *Vec {
	for i := 0; i < 3; i++ {
		v[i] += u[i] * k
	}
	return v
}

// Norm returns the Euclidean length of v.
func (v *Vec) Norm() float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}
