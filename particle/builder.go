package particle

import (
	"fmt"

	"github.com/phil-mansfield/godeform/geom"
	"github.com/phil-mansfield/godeform/transform"
)

// BuildConfig collects the preprocessing options the builder needs. It is
// produced by the io package from the [Preprocess] config section.
type BuildConfig struct {
	OpacityThreshold float32

	// MoveThreshold is the world-space distance beyond which a particle is
	// frozen when the scene carries a movable-region cloud.
	MoveThreshold float32

	// Rotation sequence applied before any bounding statistics are taken.
	RotationAxes    []byte
	RotationDegrees []float32

	// SimArea optionally restricts simulation to a box, given as
	// x0 x1 y0 y1 z0 z1 in the rotated world frame.
	SimArea []float32

	CubeSize float32
	Offset   geom.Vec

	// Filler options. Fill is nil when filling is disabled.
	Fill          Filler
	FillVisualize bool
	FillOpacity   float32

	// Uniform volumes are used for granular materials, where the occupancy
	// estimate is badly biased.
	UniformVolume bool

	GridCells int
	GridLim   float32
}

// Build runs the order-sensitive preprocessing pipeline: opacity cull,
// near/far split, normalization, sim-area split, interior filling, and
// volume estimation. It returns the simulatable set, the frozen particles
// kept for render-time compositing, and the fitted transform.
func Build(s *Scene, cfg *BuildConfig) (*Set, *Frozen, *transform.Transform, error) {
	if len(cfg.SimArea) != 0 && len(cfg.SimArea) != 6 {
		return nil, nil, nil, fmt.Errorf(
			"SimArea must contain exactly 6 values, but contains %d.",
			len(cfg.SimArea),
		)
	}
	for k := 0; k < len(cfg.SimArea); k += 2 {
		if cfg.SimArea[k] >= cfg.SimArea[k+1] {
			return nil, nil, nil, fmt.Errorf(
				"SimArea axis %d range [%g, %g] is empty.",
				k/2, cfg.SimArea[k], cfg.SimArea[k+1],
			)
		}
	}
	if len(cfg.RotationAxes) != len(cfg.RotationDegrees) {
		return nil, nil, nil, fmt.Errorf(
			"Got %d rotation axes but %d rotation angles.",
			len(cfg.RotationAxes), len(cfg.RotationDegrees),
		)
	}

	kept := cullOpacity(s, cfg.OpacityThreshold)
	if len(kept.Pos) == 0 {
		return nil, nil, nil, fmt.Errorf(
			"No particles with opacity above %g: nothing to simulate.",
			cfg.OpacityThreshold,
		)
	}

	frozen := &Frozen{}
	if len(s.Moving) > 0 {
		kept = splitFar(kept, s.Moving, cfg.MoveThreshold, frozen)
		if len(kept.Pos) == 0 {
			return nil, nil, nil, fmt.Errorf(
				"Every particle is farther than %g from the movable region.",
				cfg.MoveThreshold,
			)
		}
	}

	rots := make([]geom.Mat33, len(cfg.RotationAxes))
	for i := range rots {
		rots[i] = geom.RotationAbout(cfg.RotationAxes[i], cfg.RotationDegrees[i])
	}

	if len(cfg.SimArea) == 6 {
		kept = splitOutsideBox(kept, rots, cfg.SimArea, frozen)
		if len(kept.Pos) == 0 {
			return nil, nil, nil, fmt.Errorf(
				"No particles inside the SimArea box.",
			)
		}
	}

	tr, err := transform.Fit(kept.Pos, rots, cfg.CubeSize, cfg.Offset)
	if err != nil {
		return nil, nil, nil, err
	}
	simPos, simCov := tr.ToSim(kept.Pos, kept.Cov)

	set := &Set{
		Part:    Partition{Visible: len(simPos)},
		Pos:     simPos,
		Cov:     simCov,
		Opacity: kept.Opacity,
		SH:      kept.SH,
	}

	if cfg.Fill != nil {
		filled, err := cfg.Fill.Fill(set.Pos, set.Opacity, set.Cov)
		if err != nil {
			return nil, nil, nil, err
		}
		appendFilled(set, filled, cfg)
	}

	grid := geom.NewGrid(cfg.GridCells, cfg.GridLim)
	set.Vol = Volumes(set.Pos, grid, cfg.UniformVolume)

	return set, frozen, tr, nil
}

func cullOpacity(s *Scene, threshold float32) *Scene {
	out := &Scene{Moving: s.Moving}
	for i := range s.Pos {
		if s.Opacity[i] > threshold {
			out.Pos = append(out.Pos, s.Pos[i])
			out.Cov = append(out.Cov, s.Cov[i])
			out.Opacity = append(out.Opacity, s.Opacity[i])
			out.SH = append(out.SH, s.SH[i])
		}
	}
	return out
}

// splitFar moves particles farther than threshold from every point of the
// movable cloud into frozen. Brute force with an early exit: the movable
// clouds this runs on are small compared to the scene.
func splitFar(s *Scene, moving []geom.Vec, threshold float32, frozen *Frozen) *Scene {
	t2 := threshold * threshold
	out := &Scene{Moving: s.Moving}
	for i := range s.Pos {
		near := false
		for j := range moving {
			if s.Pos[i].DistSqr(moving[j]) <= t2 {
				near = true
				break
			}
		}
		if near {
			out.Pos = append(out.Pos, s.Pos[i])
			out.Cov = append(out.Cov, s.Cov[i])
			out.Opacity = append(out.Opacity, s.Opacity[i])
			out.SH = append(out.SH, s.SH[i])
		} else {
			frozen.append(s, i)
		}
	}
	return out
}

func splitOutsideBox(
	s *Scene, rots []geom.Mat33, box []float32, frozen *Frozen,
) *Scene {
	out := &Scene{Moving: s.Moving}
	for i := range s.Pos {
		p := s.Pos[i]
		for _, r := range rots {
			p = r.MulVec(p)
		}
		inside := true
		for k := 0; k < 3; k++ {
			if p[k] <= box[2*k] || p[k] >= box[2*k+1] {
				inside = false
				break
			}
		}
		if inside {
			out.Pos = append(out.Pos, s.Pos[i])
			out.Cov = append(out.Cov, s.Cov[i])
			out.Opacity = append(out.Opacity, s.Opacity[i])
			out.SH = append(out.SH, s.SH[i])
		} else {
			frozen.append(s, i)
		}
	}
	return out
}

// appendFilled attaches filler particles after the originals. By default
// they are simulation-only. With FillVisualize set they are promoted to
// renderable particles with flat gray appearance and the mean covariance of
// the originals, which is the cheap way to inspect filling quality.
func appendFilled(set *Set, filled []geom.Vec, cfg *BuildConfig) {
	if len(filled) == 0 {
		return
	}

	set.Pos = append(set.Pos, filled...)
	if cfg.FillVisualize {
		var mean geom.Sym
		for i := 0; i < set.Part.Visible; i++ {
			for k := 0; k < 6; k++ {
				mean[k] += set.Cov[i][k]
			}
		}
		for k := 0; k < 6; k++ {
			mean[k] /= float32(set.Part.Visible)
		}

		for range filled {
			set.Cov = append(set.Cov, mean)
			set.Opacity = append(set.Opacity, cfg.FillOpacity)
			set.SH = append(set.SH, make([]float32, SHCoeffs))
		}
		set.Part.Visible += len(filled)
	} else {
		for range filled {
			set.Cov = append(set.Cov, geom.Sym{})
		}
		set.Part.Filled = len(filled)
	}
}
