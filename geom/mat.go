package geom

import (
	"github.com/chewxy/math32"
)

// Mat33 is a row-major 3x3 matrix.
type Mat33 [9]float32

// Identity returns the 3x3 identity matrix.
func Identity() Mat33 {
	return Mat33{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// RotationAbout returns the rotation matrix for a counterclockwise rotation
// of the given angle, in degrees, about the x, y, or z axis. Axes other than
// 'x', 'y', and 'z' panic: axis names come from validated configuration, so
// anything else is a programming error.
func RotationAbout(axis byte, degrees float32) Mat33 {
	rad := degrees * math32.Pi / 180
	s, c := math32.Sin(rad), math32.Cos(rad)
	switch axis {
	case 'x':
		return Mat33{1, 0, 0, 0, c, -s, 0, s, c}
	case 'y':
		return Mat33{c, 0, s, 0, 1, 0, -s, 0, c}
	case 'z':
		return Mat33{c, -s, 0, s, c, 0, 0, 0, 1}
	}
	panic("Rotation axis must be one of 'x', 'y', 'z'.")
}

// RotationFromQuat returns the rotation matrix of a quaternion given in
// (w, x, y, z) order. The quaternion is normalized first, so raw network
// outputs can be passed directly.
func RotationFromQuat(w, x, y, z float32) Mat33 {
	n := math32.Sqrt(w*w + x*x + y*y + z*z)
	if n == 0 {
		return Identity()
	}
	w, x, y, z = w/n, x/n, y/n, z/n

	return Mat33{
		1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y),
		2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x),
		2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y),
	}
}

// Mul returns the matrix product m * n.
func (m Mat33) Mul(n Mat33) Mat33 {
	var out Mat33
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var sum float32
			for k := 0; k < 3; k++ {
				sum += m[3*i+k] * n[3*k+j]
			}
			out[3*i+j] = sum
		}
	}
	return out
}

// MulVec returns m * v.
func (m Mat33) MulVec(v Vec) Vec {
	return Vec{
		m[0]*v[0] + m[1]*v[1] + m[2]*v[2],
		m[3]*v[0] + m[4]*v[1] + m[5]*v[2],
		m[6]*v[0] + m[7]*v[1] + m[8]*v[2],
	}
}

// MulVecT returns transpose(m) * v. For rotation matrices this is the
// inverse rotation without materializing the transpose.
func (m Mat33) MulVecT(v Vec) Vec {
	return Vec{
		m[0]*v[0] + m[3]*v[1] + m[6]*v[2],
		m[1]*v[0] + m[4]*v[1] + m[7]*v[2],
		m[2]*v[0] + m[5]*v[1] + m[8]*v[2],
	}
}

// Transpose returns the transpose of m.
func (m Mat33) Transpose() Mat33 {
	return Mat33{
		m[0], m[3], m[6],
		m[1], m[4], m[7],
		m[2], m[5], m[8],
	}
}
