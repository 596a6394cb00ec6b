/*package geom contains the small linear algebra toolkit used by the
simulation and rendering pipeline: three dimensional vectors, packed
symmetric covariance matrices, and 3x3 rotation matrices.

Everything is float32 because the particle arrays handed to the simulator
and the rasterizer are float32, and converting back and forth dominates the
cost of the cheap operations done here.
*/
package geom

import (
	"github.com/chewxy/math32"
)

// Vec is a three dimensional vector.
type Vec [3]float32

// Add returns v + u.
func (v Vec) Add(u Vec) Vec {
	return Vec{v[0] + u[0], v[1] + u[1], v[2] + u[2]}
}

// Sub returns v - u.
func (v Vec) Sub(u Vec) Vec {
	return Vec{v[0] - u[0], v[1] - u[1], v[2] - u[2]}
}

// Scale returns c * v.
func (v Vec) Scale(c float32) Vec {
	return Vec{v[0] * c, v[1] * c, v[2] * c}
}

// Dot returns the inner product of v and u.
func (v Vec) Dot(u Vec) float32 {
	return v[0]*u[0] + v[1]*u[1] + v[2]*u[2]
}

// Cross returns the cross product of v and u.
func (v Vec) Cross(u Vec) Vec {
	return Vec{
		v[1]*u[2] - v[2]*u[1],
		v[2]*u[0] - v[0]*u[2],
		v[0]*u[1] - v[1]*u[0],
	}
}

// Norm returns the Euclidean length of v.
func (v Vec) Norm() float32 {
	return math32.Sqrt(v.Dot(v))
}

// Normalize returns v scaled to unit length. The zero vector is returned
// unchanged.
func (v Vec) Normalize() Vec {
	n := v.Norm()
	if n == 0 {
		return v
	}
	return v.Scale(1 / n)
}

// DistSqr returns the squared distance between v and u. Most distance
// comparisons in the pipeline only need the ordering, so the square root is
// left to the caller.
func (v Vec) DistSqr(u Vec) float32 {
	dx, dy, dz := v[0]-u[0], v[1]-u[1], v[2]-u[2]
	return dx*dx + dy*dy + dz*dz
}
