package render

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/phil-mansfield/godeform/geom"
)

func lookAtOrigin() *Camera {
	return &Camera{
		Pos:    geom.Vec{0, 0, 2},
		Target: geom.Vec{0, 0, 0},
		Up:     geom.Vec{0, 1, 0},
	}
}

func singleSplat(pos geom.Vec, col geom.Vec) *FrameInput {
	return &FrameInput{
		Pos:     []geom.Vec{pos},
		Cov:     []geom.Sym{{0.01, 0, 0, 0.01, 0, 0.01}},
		Color:   []geom.Vec{col},
		Opacity: []float32{1},
	}
}

func TestPointRasterizerCenterSplat(t *testing.T) {
	r := NewPointRasterizer(64, 64, 60)
	img, err := r.Render(lookAtOrigin(), singleSplat(
		geom.Vec{0, 0, 0}, geom.Vec{1, 0, 0},
	))
	assert.NoError(t, err)

	rgba := img.(*image.RGBA)
	center := rgba.RGBAAt(32, 32)
	assert.Greater(t, center.R, uint8(200))
	assert.Less(t, center.G, uint8(20))

	corner := rgba.RGBAAt(0, 0)
	assert.Equal(t, uint8(0), corner.R)
}

func TestPointRasterizerCullsBehindCamera(t *testing.T) {
	r := NewPointRasterizer(32, 32, 60)
	img, err := r.Render(lookAtOrigin(), singleSplat(
		geom.Vec{0, 0, 10}, geom.Vec{1, 1, 1},
	))
	assert.NoError(t, err)

	rgba := img.(*image.RGBA)
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			assert.Equal(t, r.Background, rgba.RGBAAt(x, y))
		}
	}
}

func TestPointRasterizerNearOccludesFar(t *testing.T) {
	r := NewPointRasterizer(64, 64, 60)
	in := &FrameInput{
		Pos: []geom.Vec{{0, 0, -1}, {0, 0, 0.5}},
		Cov: []geom.Sym{
			{0.04, 0, 0, 0.04, 0, 0.04},
			{0.04, 0, 0, 0.04, 0, 0.04},
		},
		Color:   []geom.Vec{{0, 1, 0}, {1, 0, 0}},
		Opacity: []float32{1, 1},
	}

	img, err := r.Render(lookAtOrigin(), in)
	assert.NoError(t, err)

	center := img.(*image.RGBA).RGBAAt(32, 32)
	assert.Greater(t, center.R, center.G)
}

func TestPointRasterizerDeterministic(t *testing.T) {
	r := NewPointRasterizer(32, 32, 60)
	in := singleSplat(geom.Vec{0.1, -0.2, 0}, geom.Vec{0.2, 0.5, 0.9})

	a, err := r.Render(lookAtOrigin(), in)
	assert.NoError(t, err)
	b, err := r.Render(lookAtOrigin(), in)
	assert.NoError(t, err)

	assert.Equal(t, a.(*image.RGBA).Pix, b.(*image.RGBA).Pix)
}

func TestPointRasterizerRejectsEmptyImage(t *testing.T) {
	r := NewPointRasterizer(0, 0, 60)
	_, err := r.Render(lookAtOrigin(), singleSplat(geom.Vec{}, geom.Vec{}))
	assert.Error(t, err)
}
