package particle

import (
	"github.com/phil-mansfield/godeform/geom"
)

// Volumes estimates the initial volume of every particle from the occupancy
// of the simulator's background grid: each grid cell's volume is split
// evenly among the particles inside it. With uniform set, every particle is
// instead assigned one full cell volume, which is the right estimate for
// granular materials where occupancy tracks packing rather than shape.
func Volumes(pos []geom.Vec, grid *geom.Grid, uniform bool) []float32 {
	vol := make([]float32, len(pos))
	cellVol := grid.CellVolume()

	if uniform {
		for i := range vol {
			vol[i] = cellVol
		}
		return vol
	}

	counts := make([]int32, grid.Volume())
	cells := make([]int, len(pos))
	for i := range pos {
		idx, ok := grid.Idx(pos[i])
		cells[i] = idx
		if ok {
			counts[idx]++
		}
	}

	for i := range pos {
		if cells[i] < 0 {
			// Outside the grid domain. The simulator clamps such particles
			// on load, so give them a whole cell rather than dropping them.
			vol[i] = cellVol
			continue
		}
		vol[i] = cellVol / float32(counts[cells[i]])
	}

	return vol
}
