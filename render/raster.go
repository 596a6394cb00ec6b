package render

import (
	"fmt"
	"image"
	"image/color"
	"sort"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/phil-mansfield/godeform/geom"
)

// PointRasterizer is the compiled-in software renderer: it projects every
// particle through a pinhole camera and composites isotropic gaussian
// footprints back to front. It trades the anisotropic covariance for its
// largest axis, which is crude next to an accelerator splatting backend but
// keeps the pipeline runnable anywhere.
type PointRasterizer struct {
	Width, Height int
	// FOV is the vertical field of view in degrees.
	FOV float32
	// Background is the clear color.
	Background color.RGBA
}

// NewPointRasterizer returns a renderer with the given image geometry.
func NewPointRasterizer(width, height int, fov float32) *PointRasterizer {
	return &PointRasterizer{
		Width: width, Height: height, FOV: fov,
		Background: color.RGBA{0, 0, 0, 255},
	}
}

type splat struct {
	x, y   float32
	depth  float32
	radius float32
	col    geom.Vec
	alpha  float32
}

// Render implements Rasterizer.
func (r *PointRasterizer) Render(cam *Camera, in *FrameInput) (image.Image, error) {
	if r.Width <= 0 || r.Height <= 0 {
		return nil, fmt.Errorf(
			"Rasterizer image size %dx%d is empty.", r.Width, r.Height,
		)
	}

	view := cam.View()
	fovRad := r.FOV * math32.Pi / 180
	proj := mgl32.Perspective(
		fovRad, float32(r.Width)/float32(r.Height), 1e-3, 1e3,
	)
	// Vertical focal length in pixels, for footprint sizing.
	focal := float32(r.Height) / (2 * math32.Tan(fovRad/2))

	splats := make([]splat, 0, in.Len())
	for i := 0; i < in.Len(); i++ {
		vp := view.Mul4x1(toMgl(in.Pos[i]).Vec4(1))
		depth := -vp.Z()
		if depth <= 1e-3 {
			continue
		}

		clip := proj.Mul4x1(vp)
		ndcX, ndcY := clip.X()/clip.W(), clip.Y()/clip.W()

		splats = append(splats, splat{
			x:      (ndcX + 1) / 2 * float32(r.Width),
			y:      (1 - ndcY) / 2 * float32(r.Height),
			depth:  depth,
			radius: maxSigma(in.Cov[i]) * focal / depth,
			col:    in.Color[i],
			alpha:  in.Opacity[i],
		})
	}

	// Painter's order: far splats first, near splats composite over them.
	sort.Slice(splats, func(i, j int) bool {
		return splats[i].depth > splats[j].depth
	})

	img := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			img.SetRGBA(x, y, r.Background)
		}
	}

	for _, s := range splats {
		r.draw(img, &s)
	}
	return img, nil
}

// draw composites one gaussian footprint. Footprints are cut off at three
// standard deviations.
func (r *PointRasterizer) draw(img *image.RGBA, s *splat) {
	if s.radius <= 0 {
		return
	}
	ext := 3 * s.radius
	x0, x1 := clampInt(s.x-ext, r.Width), clampInt(s.x+ext+1, r.Width)
	y0, y1 := clampInt(s.y-ext, r.Height), clampInt(s.y+ext+1, r.Height)

	inv2s2 := 1 / (2 * s.radius * s.radius)
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			dx, dy := float32(x)+0.5-s.x, float32(y)+0.5-s.y
			a := s.alpha * math32.Exp(-(dx*dx+dy*dy)*inv2s2)
			if a < 1.0/255 {
				continue
			}
			if a > 1 {
				a = 1
			}

			old := img.RGBAAt(x, y)
			img.SetRGBA(x, y, color.RGBA{
				R: blend(old.R, s.col[0], a),
				G: blend(old.G, s.col[1], a),
				B: blend(old.B, s.col[2], a),
				A: 255,
			})
		}
	}
}

func blend(old uint8, c, a float32) uint8 {
	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	v := float32(old)*(1-a) + 255*c*a
	if v > 255 {
		v = 255
	}
	return uint8(v)
}

func clampInt(x float32, max int) int {
	i := int(math32.Floor(x))
	if i < 0 {
		return 0
	}
	if i > max {
		return max
	}
	return i
}

// maxSigma returns the standard deviation along the covariance's widest
// axis, bounded below by the largest diagonal entry.
func maxSigma(c geom.Sym) float32 {
	v := c[0]
	if c[3] > v {
		v = c[3]
	}
	if c[5] > v {
		v = c[5]
	}
	if v <= 0 {
		return 0
	}
	return math32.Sqrt(v)
}
