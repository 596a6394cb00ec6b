package particle

import (
	"fmt"

	"github.com/phil-mansfield/godeform/geom"
)

// GridFiller is the compiled-in interior filler. It voxelizes the normalized
// particle positions on the simulation grid, flood-fills the empty region
// reachable from the domain boundary, and treats every unreached empty cell
// as enclosed interior. Each interior cell contributes PerCell^3 particles
// on a regular subcell lattice.
//
// Surfaces with holes wider than a grid cell leak, and the exterior flood
// reaches the inside; that is inherent to occupancy filling and is why the
// grid resolution is shared with the simulator instead of being a separate
// knob.
type GridFiller struct {
	Cells   int
	Lim     float32
	PerCell int
}

// Fill implements Filler.
func (f *GridFiller) Fill(
	pos []geom.Vec, opacity []float32, cov []geom.Sym,
) ([]geom.Vec, error) {
	if f.Cells <= 0 || f.Lim <= 0 {
		return nil, fmt.Errorf(
			"Filler grid %d cells over extent %g is invalid.", f.Cells, f.Lim,
		)
	}
	per := f.PerCell
	if per <= 0 {
		per = 1
	}

	grid := geom.NewGrid(f.Cells, f.Lim)
	occupied := make([]bool, grid.Volume())
	for _, p := range pos {
		if idx, ok := grid.Idx(p); ok {
			occupied[idx] = true
		}
	}

	outside := floodExterior(grid, occupied)

	cw := grid.CellWidth()
	sub := cw / float32(per)
	out := []geom.Vec{}
	for idx := range occupied {
		if occupied[idx] || outside[idx] {
			continue
		}
		x, y, z := grid.Coords(idx)
		for k := 0; k < per; k++ {
			for j := 0; j < per; j++ {
				for i := 0; i < per; i++ {
					out = append(out, geom.Vec{
						float32(x)*cw + (float32(i)+0.5)*sub,
						float32(y)*cw + (float32(j)+0.5)*sub,
						float32(z)*cw + (float32(k)+0.5)*sub,
					})
				}
			}
		}
	}
	return out, nil
}

// floodExterior marks every empty cell reachable from the domain boundary
// through face-adjacent empty cells.
func floodExterior(grid *geom.Grid, occupied []bool) []bool {
	outside := make([]bool, len(occupied))
	queue := []int{}

	push := func(idx int) {
		if !occupied[idx] && !outside[idx] {
			outside[idx] = true
			queue = append(queue, idx)
		}
	}

	n := grid.Cells
	for idx := range occupied {
		x, y, z := grid.Coords(idx)
		if x == 0 || x == n-1 || y == 0 || y == n-1 || z == 0 || z == n-1 {
			push(idx)
		}
	}

	for len(queue) > 0 {
		idx := queue[0]
		queue = queue[1:]

		x, y, z := grid.Coords(idx)
		if x > 0 {
			push(idx - 1)
		}
		if x < n-1 {
			push(idx + 1)
		}
		if y > 0 {
			push(idx - n)
		}
		if y < n-1 {
			push(idx + n)
		}
		if z > 0 {
			push(idx - n*n)
		}
		if z < n-1 {
			push(idx + n*n)
		}
	}
	return outside
}
