package geom

// Sym is a symmetric 3x3 matrix packed into its upper triangle in the order
// xx, xy, xz, yy, yz, zz. This is the layout the rasterizer expects for
// precomputed covariances, so it is used everywhere a covariance appears.
type Sym [6]float32

// Full unpacks s into a full row-major matrix.
func (s Sym) Full() Mat33 {
	return Mat33{
		s[0], s[1], s[2],
		s[1], s[3], s[4],
		s[2], s[4], s[5],
	}
}

// PackSym packs the symmetric part of m into upper-triangle order. The
// caller is responsible for m actually being symmetric; only the upper
// triangle is read.
func PackSym(m Mat33) Sym {
	return Sym{m[0], m[1], m[2], m[4], m[5], m[8]}
}

// Conjugate returns R * s * transpose(R), packed. This is how a covariance
// matrix transforms under the rotation R.
func (s Sym) Conjugate(r Mat33) Sym {
	return PackSym(r.Mul(s.Full()).Mul(r.Transpose()))
}

// Scale returns c * s. Rescaling positions by a uniform factor k rescales
// covariances by k*k, which is the only use of this method.
func (s Sym) Scale(c float32) Sym {
	return Sym{s[0] * c, s[1] * c, s[2] * c, s[3] * c, s[4] * c, s[5] * c}
}
