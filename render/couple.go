package render

import (
	"fmt"
	"image"

	"github.com/phil-mansfield/godeform/geom"
	"github.com/phil-mansfield/godeform/particle"
	"github.com/phil-mansfield/godeform/sim"
	"github.com/phil-mansfield/godeform/transform"
)

// FrameInput is the exact tuple the rasterizer expects. All arrays are
// index parallel: index i refers to the same physical particle in every
// array. Downstream rendering is index-parallel with no join key, so that
// alignment is the coupler's contract.
type FrameInput struct {
	Pos     []geom.Vec
	Cov     []geom.Sym
	Color   []geom.Vec
	Opacity []float32
}

// Len returns the particle count of the frame.
func (in *FrameInput) Len() int { return len(in.Pos) }

// Rasterizer renders one frame. It is an external collaborator; a failed
// render aborts the run.
type Rasterizer interface {
	Render(cam *Camera, in *FrameInput) (image.Image, error)
}

// Coupler converts simulated particle state for the visible subset back
// into renderable world-space parameters and re-attaches the frozen
// particles, every frame.
type Coupler struct {
	tr     *transform.Transform
	set    *particle.Set
	frozen *particle.Frozen
	deg    int
}

// NewCoupler binds a coupler to the fitted transform, the simulated set's
// static appearance attributes, and the frozen particles.
func NewCoupler(
	tr *transform.Transform, set *particle.Set, frozen *particle.Frozen,
	shDegree int,
) *Coupler {
	return &Coupler{tr: tr, set: set, frozen: frozen, deg: shDegree}
}

// Frame assembles the rasterizer input for the given simulated state and
// camera. Simulated positions and covariances are inverse-normalized back
// to the world frame; colors are evaluated from each particle's appearance
// basis in the view direction, rotated by the particle's deformation
// rotation. Frozen particles use the identity rotation and their original
// parameters.
func (c *Coupler) Frame(state *sim.ParticleState, cam *Camera) (*FrameInput, error) {
	visible := c.set.Part.Visible
	if len(state.Pos) < visible {
		return nil, fmt.Errorf(
			"Simulated state has %d particles but %d are visible.",
			len(state.Pos), visible,
		)
	}

	pos, cov := c.tr.FromSim(state.Pos[:visible], state.Cov[:visible])

	n := visible + c.frozen.Count()
	in := &FrameInput{
		Pos:     pos,
		Cov:     cov,
		Color:   make([]geom.Vec, 0, n),
		Opacity: make([]float32, 0, n),
	}

	for i := 0; i < visible; i++ {
		dir := pos[i].Sub(cam.Pos).Normalize()
		dir = state.Rot[i].MulVecT(dir)
		in.Color = append(in.Color, EvalSH(c.deg, c.set.SH[i], dir))
		in.Opacity = append(in.Opacity, c.set.Opacity[i])
	}

	for i := 0; i < c.frozen.Count(); i++ {
		dir := c.frozen.Pos[i].Sub(cam.Pos).Normalize()
		in.Pos = append(in.Pos, c.frozen.Pos[i])
		in.Cov = append(in.Cov, c.frozen.Cov[i])
		in.Color = append(in.Color, EvalSH(c.deg, c.frozen.SH[i], dir))
		in.Opacity = append(in.Opacity, c.frozen.Opacity[i])
	}

	return in, nil
}
