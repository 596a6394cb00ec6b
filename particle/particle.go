/*package particle turns a reconstructed point scene into the particle set
the simulator runs on: it culls unusable particles, separates the movable
region from the frozen surroundings, normalizes coordinates, optionally
fills the interior with simulation-only particles, and estimates per
particle volumes.
*/
package particle

import (
	"github.com/phil-mansfield/godeform/geom"
)

// SHCoeffs is the number of spherical harmonic coefficients per particle:
// 16 basis functions (degree 3) times three color channels, band major.
const SHCoeffs = 16 * 3

// Scene is a loaded reconstruction. How it is parsed off disk is the scene
// loader's problem; by the time a Scene exists all arrays are parallel.
type Scene struct {
	Pos     []geom.Vec
	Cov     []geom.Sym
	Opacity []float32
	SH      [][]float32

	// Moving optionally marks the movable sub-region as a bare point cloud.
	// Particles far from every point in it are frozen.
	Moving []geom.Vec
}

// Source loads a Scene.
type Source interface {
	Load() (*Scene, error)
}

// Filler synthesizes interior particle positions for already-normalized
// geometry. Implementations are external; the builder only appends what
// they return.
type Filler interface {
	Fill(pos []geom.Vec, opacity []float32, cov []geom.Sym) ([]geom.Vec, error)
}

// Partition is the tagged split of a Set's parallel arrays. Indices
// [0, Visible) are reconstructed particles that are rendered every frame,
// [Visible, Visible+Filled) are simulation-only interior particles. The
// counts are the single source of truth for the split: nothing else in the
// pipeline may assume a particular concatenation order.
type Partition struct {
	Visible int
	Filled  int
}

// Total returns the total particle count of the partition.
func (p Partition) Total() int { return p.Visible + p.Filled }

// Set is the simulatable particle set, in the grid frame. Pos, Cov, and Vol
// span the full partition and are overwritten by the simulator every
// substep. Opacity and SH span only the visible slice and never change.
type Set struct {
	Part Partition

	Pos []geom.Vec
	Cov []geom.Sym
	Vol []float32

	Opacity []float32
	SH      [][]float32
}

// Frozen holds the particles excluded from simulation. Their appearance
// parameters are retained verbatim, in the world frame, and re-attached at
// render time.
type Frozen struct {
	Pos     []geom.Vec
	Cov     []geom.Sym
	Opacity []float32
	SH      [][]float32
}

// Count returns the number of frozen particles.
func (f *Frozen) Count() int { return len(f.Pos) }

func (f *Frozen) append(s *Scene, i int) {
	f.Pos = append(f.Pos, s.Pos[i])
	f.Cov = append(f.Cov, s.Cov[i])
	f.Opacity = append(f.Opacity, s.Opacity[i])
	f.SH = append(f.SH, s.SH[i])
}
