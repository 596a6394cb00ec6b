/*package render couples simulated particle state back to the rasterizer:
per-frame camera views, view-dependent color evaluation from spherical
harmonic coefficients, and the assembly of the index-aligned input arrays
the rasterizer consumes.
*/
package render

import (
	"github.com/phil-mansfield/godeform/geom"
)

// Real spherical harmonic basis constants through degree 3.
var (
	shC0 = float32(0.28209479177387814)
	shC1 = float32(0.4886025119029199)
	shC2 = [5]float32{
		1.0925484305920792, -1.0925484305920792, 0.31539156525252005,
		-1.0925484305920792, 0.5462742152960396,
	}
	shC3 = [7]float32{
		-0.5900435899266435, 2.890611442640554, -0.4570457994644658,
		0.3731763325901154, -0.4570457994644658, 1.445305721320277,
		-0.5900435899266435,
	}
)

// EvalSH evaluates a degree-deg spherical harmonic expansion in the unit
// direction dir. coeffs is band major: coefficient b of channel c sits at
// index 3*b + c, so a full degree-3 expansion carries 16*3 values. The
// conventional +0.5 shift is applied and the result is clamped at zero.
func EvalSH(deg int, coeffs []float32, dir geom.Vec) geom.Vec {
	var out geom.Vec
	for c := 0; c < 3; c++ {
		out[c] = shC0 * coeffs[c]
	}

	if deg > 0 {
		x, y, z := dir[0], dir[1], dir[2]
		for c := 0; c < 3; c++ {
			out[c] += -shC1*y*coeffs[3*1+c] +
				shC1*z*coeffs[3*2+c] -
				shC1*x*coeffs[3*3+c]
		}

		if deg > 1 {
			xx, yy, zz := x*x, y*y, z*z
			xy, yz, xz := x*y, y*z, x*z
			for c := 0; c < 3; c++ {
				out[c] += shC2[0]*xy*coeffs[3*4+c] +
					shC2[1]*yz*coeffs[3*5+c] +
					shC2[2]*(2*zz-xx-yy)*coeffs[3*6+c] +
					shC2[3]*xz*coeffs[3*7+c] +
					shC2[4]*(xx-yy)*coeffs[3*8+c]
			}

			if deg > 2 {
				for c := 0; c < 3; c++ {
					out[c] += shC3[0]*y*(3*xx-yy)*coeffs[3*9+c] +
						shC3[1]*xy*z*coeffs[3*10+c] +
						shC3[2]*y*(4*zz-xx-yy)*coeffs[3*11+c] +
						shC3[3]*z*(2*zz-3*xx-3*yy)*coeffs[3*12+c] +
						shC3[4]*x*(4*zz-xx-yy)*coeffs[3*13+c] +
						shC3[5]*z*(xx-yy)*coeffs[3*14+c] +
						shC3[6]*x*(xx-3*yy)*coeffs[3*15+c]
				}
			}
		}
	}

	for c := 0; c < 3; c++ {
		out[c] += 0.5
		if out[c] < 0 {
			out[c] = 0
		}
	}
	return out
}
