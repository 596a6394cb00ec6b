package particle

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/phil-mansfield/godeform/geom"
)

func testScene(pos []geom.Vec, opacity []float32) *Scene {
	s := &Scene{Pos: pos, Opacity: opacity}
	for range pos {
		s.Cov = append(s.Cov, geom.Sym{1e-4, 0, 0, 1e-4, 0, 1e-4})
		s.SH = append(s.SH, make([]float32, SHCoeffs))
	}
	return s
}

func cubeScene(n int, width float32) *Scene {
	pos := []geom.Vec{}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			for k := 0; k < n; k++ {
				f := width / float32(n-1)
				pos = append(pos, geom.Vec{
					f * float32(i), f * float32(j), f * float32(k),
				})
			}
		}
	}
	op := make([]float32, len(pos))
	for i := range op {
		op[i] = 0.9
	}
	return testScene(pos, op)
}

func defaultConfig() *BuildConfig {
	return &BuildConfig{
		OpacityThreshold: 0.02,
		MoveThreshold:    0.05,
		CubeSize:         1.0,
		Offset:           geom.Vec{1, 1, 1},
		GridCells:        25,
		GridLim:          2.0,
	}
}

func TestBuildCullsOpacity(t *testing.T) {
	s := testScene(
		[]geom.Vec{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
		[]float32{0.9, 0.01, 0.02, 0.5},
	)
	set, frozen, _, err := Build(s, defaultConfig())
	assert.NoError(t, err)
	// The threshold is exclusive: opacity exactly at the cutoff is dropped.
	assert.Equal(t, 2, set.Part.Total())
	assert.Equal(t, 2, set.Part.Visible)
	assert.Equal(t, 0, frozen.Count())
	assert.Len(t, set.Vol, 2)
	assert.Len(t, set.Opacity, 2)
}

func TestBuildAllCulledIsFatal(t *testing.T) {
	s := testScene(
		[]geom.Vec{{0, 0, 0}, {1, 0, 0}},
		[]float32{0.1, 0.2},
	)
	cfg := defaultConfig()
	cfg.OpacityThreshold = 0.5
	_, _, _, err := Build(s, cfg)
	assert.Error(t, err)
}

func TestBuildMalformedSimArea(t *testing.T) {
	s := cubeScene(3, 1)
	cfg := defaultConfig()
	cfg.SimArea = []float32{0, 1, 0, 1}
	_, _, _, err := Build(s, cfg)
	assert.Error(t, err)

	cfg.SimArea = []float32{0, 1, 1, 0, 0, 1}
	_, _, _, err = Build(s, cfg)
	assert.Error(t, err)
}

func TestBuildMovingSplit(t *testing.T) {
	s := testScene(
		[]geom.Vec{{0, 0, 0}, {0.01, 0, 0}, {5, 5, 5}},
		[]float32{0.9, 0.9, 0.9},
	)
	s.Moving = []geom.Vec{{0, 0, 0}}

	set, frozen, _, err := Build(s, defaultConfig())
	assert.NoError(t, err)
	assert.Equal(t, 2, set.Part.Total())
	assert.Equal(t, 1, frozen.Count())
	// Frozen particles keep their world-frame position untouched.
	assert.Equal(t, geom.Vec{5, 5, 5}, frozen.Pos[0])
}

func TestBuildSimAreaSplit(t *testing.T) {
	s := testScene(
		[]geom.Vec{{0.25, 0.25, 0.25}, {0.75, 0.75, 0.75}, {2, 2, 2}},
		[]float32{0.9, 0.9, 0.9},
	)
	cfg := defaultConfig()
	cfg.SimArea = []float32{0, 1, 0, 1, 0, 1}

	set, frozen, _, err := Build(s, cfg)
	assert.NoError(t, err)
	assert.Equal(t, 2, set.Part.Total())
	assert.Equal(t, 1, frozen.Count())
	assert.Equal(t, geom.Vec{2, 2, 2}, frozen.Pos[0])
}

func TestBuildSimAreaEmptyIsFatal(t *testing.T) {
	s := cubeScene(3, 1)
	cfg := defaultConfig()
	cfg.SimArea = []float32{10, 11, 10, 11, 10, 11}
	_, _, _, err := Build(s, cfg)
	assert.Error(t, err)
}

type stubFiller struct {
	out []geom.Vec
}

func (f *stubFiller) Fill(
	pos []geom.Vec, opacity []float32, cov []geom.Sym,
) ([]geom.Vec, error) {
	return f.out, nil
}

func TestBuildFillerOrdering(t *testing.T) {
	s := cubeScene(2, 1)
	cfg := defaultConfig()
	cfg.Fill = &stubFiller{out: []geom.Vec{{1, 1, 1}, {1.1, 1, 1}}}

	set, _, _, err := Build(s, cfg)
	assert.NoError(t, err)
	assert.Equal(t, 8, set.Part.Visible)
	assert.Equal(t, 2, set.Part.Filled)
	assert.Equal(t, 10, set.Part.Total())
	// Filler particles always sort after the originals.
	assert.Equal(t, geom.Vec{1, 1, 1}, set.Pos[8])
	assert.Len(t, set.Pos, 10)
	assert.Len(t, set.Cov, 10)
	assert.Len(t, set.Vol, 10)
	// Appearance arrays only cover the visible slice.
	assert.Len(t, set.Opacity, 8)
	assert.Len(t, set.SH, 8)
}

func TestBuildFillerVisualize(t *testing.T) {
	s := cubeScene(2, 1)
	cfg := defaultConfig()
	cfg.Fill = &stubFiller{out: []geom.Vec{{1, 1, 1}}}
	cfg.FillVisualize = true
	cfg.FillOpacity = 1

	set, _, _, err := Build(s, cfg)
	assert.NoError(t, err)
	assert.Equal(t, 9, set.Part.Visible)
	assert.Equal(t, 0, set.Part.Filled)
	assert.Len(t, set.Opacity, 9)
	assert.Len(t, set.SH, 9)
	assert.Equal(t, float32(1), set.Opacity[8])
}

func TestBuildNormalizesIntoCube(t *testing.T) {
	s := cubeScene(3, 40)
	set, _, tr, err := Build(s, defaultConfig())
	assert.NoError(t, err)
	assert.InDelta(t, 1.0/40, tr.Scale, 1e-5)
	for i := range set.Pos {
		for k := 0; k < 3; k++ {
			assert.True(t, set.Pos[i][k] >= 0.5-1e-4)
			assert.True(t, set.Pos[i][k] <= 1.5+1e-4)
		}
	}
}

func TestBuildRotationMismatch(t *testing.T) {
	s := cubeScene(2, 1)
	cfg := defaultConfig()
	cfg.RotationAxes = []byte{'x', 'z'}
	cfg.RotationDegrees = []float32{30}
	_, _, _, err := Build(s, cfg)
	assert.Error(t, err)
}
