package render

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/phil-mansfield/godeform/geom"
	"github.com/phil-mansfield/godeform/particle"
	"github.com/phil-mansfield/godeform/sim"
	"github.com/phil-mansfield/godeform/transform"
)

const testEps = 1e-5

func TestEvalSHDegreeZeroIsViewIndependent(t *testing.T) {
	coeffs := make([]float32, particle.SHCoeffs)
	coeffs[0], coeffs[1], coeffs[2] = 1, 0.5, -0.25

	a := EvalSH(0, coeffs, geom.Vec{1, 0, 0})
	b := EvalSH(0, coeffs, geom.Vec{0, 0, -1})
	assert.Equal(t, a, b)
	assert.InDelta(t, 0.28209479*1+0.5, a[0], testEps)
	assert.InDelta(t, 0.28209479*0.5+0.5, a[1], testEps)
}

func TestEvalSHClampsAtZero(t *testing.T) {
	coeffs := make([]float32, particle.SHCoeffs)
	coeffs[0] = -100
	out := EvalSH(3, coeffs, geom.Vec{0, 0, 1})
	assert.Equal(t, float32(0), out[0])
}

func TestEvalSHHigherBandsDependOnDirection(t *testing.T) {
	coeffs := make([]float32, particle.SHCoeffs)
	coeffs[3*1+0] = 1 // y band of the red channel
	a := EvalSH(3, coeffs, geom.Vec{0, 1, 0})
	b := EvalSH(3, coeffs, geom.Vec{0, -1, 0})
	assert.NotEqual(t, a[0], b[0])
}

func testTransform(t *testing.T) *transform.Transform {
	tr, err := transform.Fit(
		[]geom.Vec{{0, 0, 0}, {1, 1, 1}}, nil, 1.0, geom.Vec{1, 1, 1},
	)
	assert.NoError(t, err)
	return tr
}

func TestOrbitDeterministic(t *testing.T) {
	tr := testTransform(t)
	o := NewOrbit(tr, geom.Vec{1, 1, 1}, geom.Vec{0, 0, 1},
		30, 10, 2, 1, 0, 0, true)

	a, b := o.Camera(5), o.Camera(5)
	assert.Equal(t, *a, *b)

	c := o.Camera(6)
	assert.InDelta(t, a.Azimuth+1, c.Azimuth, testEps)
	assert.NotEqual(t, a.Pos, c.Pos)
}

func TestOrbitStatic(t *testing.T) {
	tr := testTransform(t)
	o := NewOrbit(tr, geom.Vec{1, 1, 1}, geom.Vec{0, 0, 1},
		30, 10, 2, 1, 1, 1, false)
	a, b := o.Camera(0), o.Camera(9)
	assert.Equal(t, a.Pos, b.Pos)
}

func TestOrbitRadius(t *testing.T) {
	tr := testTransform(t)
	o := NewOrbit(tr, geom.Vec{1, 1, 1}, geom.Vec{0, 0, 1},
		0, 0, 2, 0, 0, 0, false)
	cam := o.Camera(0)
	// The grid-frame radius scales back through the transform.
	assert.InDelta(t, 2/tr.Scale, cam.Pos.Sub(cam.Target).Norm(), 1e-3)
}

func testSet(n int) *particle.Set {
	set := &particle.Set{Part: particle.Partition{Visible: n}}
	for i := 0; i < n; i++ {
		set.Pos = append(set.Pos, geom.Vec{1, 1, 1})
		set.Cov = append(set.Cov, geom.Sym{1e-4, 0, 0, 1e-4, 0, 1e-4})
		set.Vol = append(set.Vol, 1e-6)
		set.Opacity = append(set.Opacity, 0.9)
		set.SH = append(set.SH, make([]float32, particle.SHCoeffs))
	}
	return set
}

func TestCouplerIndexAlignment(t *testing.T) {
	tr := testTransform(t)
	set := testSet(4)
	// Two filler particles after the visible ones.
	set.Part.Filled = 2
	set.Pos = append(set.Pos, geom.Vec{1, 1, 1}, geom.Vec{1, 1, 1})
	set.Cov = append(set.Cov, geom.Sym{}, geom.Sym{})

	frozen := &particle.Frozen{
		Pos:     []geom.Vec{{5, 5, 5}, {6, 6, 6}, {7, 7, 7}},
		Cov:     []geom.Sym{{1, 0, 0, 1, 0, 1}, {1, 0, 0, 1, 0, 1}, {1, 0, 0, 1, 0, 1}},
		Opacity: []float32{0.5, 0.6, 0.7},
		SH: [][]float32{
			make([]float32, particle.SHCoeffs),
			make([]float32, particle.SHCoeffs),
			make([]float32, particle.SHCoeffs),
		},
	}

	state := sim.NewParticleState(set.Part.Total())
	copy(state.Pos, set.Pos)
	copy(state.Cov, set.Cov)
	for i := range state.Rot {
		state.Rot[i] = geom.Identity()
	}

	coupler := NewCoupler(tr, set, frozen, 3)
	cam := &Camera{Pos: geom.Vec{0, 0, 10}}

	in, err := coupler.Frame(state, cam)
	assert.NoError(t, err)

	want := set.Part.Visible + frozen.Count()
	assert.Equal(t, want, in.Len())
	assert.Len(t, in.Pos, want)
	assert.Len(t, in.Cov, want)
	assert.Len(t, in.Color, want)
	assert.Len(t, in.Opacity, want)

	// Frozen particles keep their world-frame parameters verbatim.
	assert.Equal(t, geom.Vec{5, 5, 5}, in.Pos[4])
	assert.Equal(t, float32(0.7), in.Opacity[6])
}

func TestCouplerInverseNormalizes(t *testing.T) {
	pos := []geom.Vec{{2, 0, 0}, {0, 2, 0}, {0, 0, 2}}
	cov := []geom.Sym{{1, 0, 0, 1, 0, 1}, {1, 0, 0, 1, 0, 1}, {1, 0, 0, 1, 0, 1}}
	tr, err := transform.Fit(pos, nil, 1.0, geom.Vec{1, 1, 1})
	assert.NoError(t, err)

	set := testSet(3)
	set.Pos, set.Cov = tr.ToSim(pos, cov)

	state := sim.NewParticleState(3)
	copy(state.Pos, set.Pos)
	copy(state.Cov, set.Cov)
	for i := range state.Rot {
		state.Rot[i] = geom.Identity()
	}

	coupler := NewCoupler(tr, set, &particle.Frozen{}, 3)
	in, err := coupler.Frame(state, &Camera{Pos: geom.Vec{0, 0, 10}})
	assert.NoError(t, err)

	// Undeformed state must land exactly on the original world positions.
	for i := range pos {
		for k := 0; k < 3; k++ {
			assert.InDelta(t, pos[i][k], in.Pos[i][k], 1e-4)
		}
	}
}

func TestCouplerShortStateFails(t *testing.T) {
	tr := testTransform(t)
	set := testSet(5)
	coupler := NewCoupler(tr, set, &particle.Frozen{}, 3)
	state := sim.NewParticleState(3)
	_, err := coupler.Frame(state, &Camera{})
	assert.Error(t, err)
}
