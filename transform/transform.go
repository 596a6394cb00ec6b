/*package transform maps particle positions and covariances between the
reconstruction's world frame and the simulator's normalized grid frame.

The forward pipeline rotates the set by a configured rotation sequence,
recenters it on the midpoint of its bounding box, rescales it so its longest
axis fits inside a cube of side CubeSize, and shifts the cube to Offset
inside the grid domain. Covariances rotate by conjugation and rescale by the
square of the position scale; translations do not touch them.

The scale, center, and rotations are fit exactly once, from the original
undeformed set. Refitting from deformed state would silently change the
volume bookkeeping of every particle, so a Transform is immutable after Fit.
*/
package transform

import (
	"fmt"

	"github.com/phil-mansfield/godeform/geom"
)

// Transform is the fitted, invertible world-to-simulation map.
type Transform struct {
	Rotations []geom.Mat33
	Scale     float32
	Center    geom.Vec

	CubeSize float32
	Offset   geom.Vec
}

// Fit computes the transform for the given world-space positions. rots is
// the ordered rotation sequence applied before any bounding statistics are
// taken. cubeSize is the side length of the normalized cube the set must fit
// in and offset is where the cube's center lands in the grid domain.
func Fit(
	pos []geom.Vec, rots []geom.Mat33, cubeSize float32, offset geom.Vec,
) (*Transform, error) {
	if len(pos) == 0 {
		return nil, fmt.Errorf("Cannot fit a transform to zero particles.")
	}

	t := &Transform{Rotations: rots, CubeSize: cubeSize, Offset: offset}

	min, max := applyRotations(pos[0], rots), applyRotations(pos[0], rots)
	for _, p := range pos[1:] {
		rp := applyRotations(p, rots)
		for k := 0; k < 3; k++ {
			if rp[k] < min[k] {
				min[k] = rp[k]
			}
			if rp[k] > max[k] {
				max[k] = rp[k]
			}
		}
	}

	maxDiff := max[0] - min[0]
	if max[1]-min[1] > maxDiff {
		maxDiff = max[1] - min[1]
	}
	if max[2]-min[2] > maxDiff {
		maxDiff = max[2] - min[2]
	}

	t.Center = min.Add(max).Scale(0.5)
	if maxDiff == 0 {
		// A single particle (or a degenerate stack of them) has no extent to
		// normalize; leave it at unit scale rather than dividing by zero.
		t.Scale = 1
	} else {
		t.Scale = cubeSize / maxDiff
	}

	return t, nil
}

// ToSim maps world-space positions and covariances into the grid frame.
// The outputs are freshly allocated; the inputs are not modified.
func (t *Transform) ToSim(
	pos []geom.Vec, cov []geom.Sym,
) (simPos []geom.Vec, simCov []geom.Sym) {
	simPos = make([]geom.Vec, len(pos))
	for i, p := range pos {
		rp := applyRotations(p, t.Rotations)
		simPos[i] = rp.Sub(t.Center).Scale(t.Scale).Add(t.Offset)
	}

	s2 := t.Scale * t.Scale
	simCov = make([]geom.Sym, len(cov))
	for i, c := range cov {
		rc := c
		for _, r := range t.Rotations {
			rc = rc.Conjugate(r)
		}
		simCov[i] = rc.Scale(s2)
	}

	return simPos, simCov
}

// FromSim is the exact inverse of ToSim.
func (t *Transform) FromSim(
	simPos []geom.Vec, simCov []geom.Sym,
) (pos []geom.Vec, cov []geom.Sym) {
	pos = make([]geom.Vec, len(simPos))
	for i, p := range simPos {
		wp := p.Sub(t.Offset).Scale(1 / t.Scale).Add(t.Center)
		pos[i] = undoRotations(wp, t.Rotations)
	}

	s2 := t.Scale * t.Scale
	cov = make([]geom.Sym, len(simCov))
	for i, c := range simCov {
		rc := c.Scale(1 / s2)
		for k := len(t.Rotations) - 1; k >= 0; k-- {
			rc = rc.Conjugate(t.Rotations[k].Transpose())
		}
		cov[i] = rc
	}

	return pos, cov
}

// PointToWorld maps a single grid-frame point back into the world frame.
// Cameras are configured in the grid frame but the rasterizer lives in the
// world frame, so this is what anchors the camera orbit.
func (t *Transform) PointToWorld(p geom.Vec) geom.Vec {
	wp := p.Sub(t.Offset).Scale(1 / t.Scale).Add(t.Center)
	return undoRotations(wp, t.Rotations)
}

// DirToWorld maps a grid-frame direction into the world frame. Directions
// only see the rotation sequence, not the scale or translations.
func (t *Transform) DirToWorld(d geom.Vec) geom.Vec {
	return undoRotations(d, t.Rotations)
}

// RotateForward applies only the rotation sequence to a world-space point.
// The simulation-area bounds in the configuration are given in this rotated
// (but unscaled, uncentered) frame.
func (t *Transform) RotateForward(p geom.Vec) geom.Vec {
	return applyRotations(p, t.Rotations)
}

func applyRotations(p geom.Vec, rots []geom.Mat33) geom.Vec {
	for _, r := range rots {
		p = r.MulVec(p)
	}
	return p
}

func undoRotations(p geom.Vec, rots []geom.Mat33) geom.Vec {
	for k := len(rots) - 1; k >= 0; k-- {
		p = rots[k].MulVecT(p)
	}
	return p
}
