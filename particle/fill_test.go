package particle

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/phil-mansfield/godeform/geom"
)

// hollowShell places particles on every boundary cell of a cube spanning
// cells [lo, hi] on each axis, leaving the interior empty.
func hollowShell(grid *geom.Grid, lo, hi int) []geom.Vec {
	cw := grid.CellWidth()
	center := func(i int) float32 { return (float32(i) + 0.5) * cw }

	pos := []geom.Vec{}
	for z := lo; z <= hi; z++ {
		for y := lo; y <= hi; y++ {
			for x := lo; x <= hi; x++ {
				onShell := x == lo || x == hi || y == lo || y == hi ||
					z == lo || z == hi
				if onShell {
					pos = append(pos, geom.Vec{center(x), center(y), center(z)})
				}
			}
		}
	}
	return pos
}

func TestGridFillerFillsHollowCube(t *testing.T) {
	grid := geom.NewGrid(10, 2.0)
	pos := hollowShell(grid, 2, 6)

	f := &GridFiller{Cells: 10, Lim: 2.0, PerCell: 1}
	filled, err := f.Fill(pos, nil, nil)
	assert.NoError(t, err)

	// A [2,6] shell encloses a 3x3x3 interior.
	assert.Len(t, filled, 27)

	// Every filled position sits strictly inside the shell.
	cw := grid.CellWidth()
	for _, p := range filled {
		for k := 0; k < 3; k++ {
			assert.Greater(t, p[k], 3*cw)
			assert.Less(t, p[k], 6*cw)
		}
	}
}

func TestGridFillerPerCellSubdivision(t *testing.T) {
	pos := hollowShell(geom.NewGrid(10, 2.0), 2, 6)

	f := &GridFiller{Cells: 10, Lim: 2.0, PerCell: 2}
	filled, err := f.Fill(pos, nil, nil)
	assert.NoError(t, err)
	assert.Len(t, filled, 27*8)
}

func TestGridFillerOpenSurfaceLeaks(t *testing.T) {
	grid := geom.NewGrid(10, 2.0)
	pos := hollowShell(grid, 2, 6)

	// Knock a hole in the shell: the exterior flood reaches the inside and
	// nothing is filled.
	cw := grid.CellWidth()
	hole := geom.Vec{(2 + 0.5) * cw, (4 + 0.5) * cw, (4 + 0.5) * cw}
	open := []geom.Vec{}
	for _, p := range pos {
		if p != hole {
			open = append(open, p)
		}
	}

	f := &GridFiller{Cells: 10, Lim: 2.0, PerCell: 1}
	filled, err := f.Fill(open, nil, nil)
	assert.NoError(t, err)
	assert.Empty(t, filled)
}

func TestGridFillerEmptySceneFillsNothing(t *testing.T) {
	f := &GridFiller{Cells: 8, Lim: 2.0, PerCell: 1}
	filled, err := f.Fill(nil, nil, nil)
	assert.NoError(t, err)
	assert.Empty(t, filled)
}

func TestGridFillerRejectsBadGrid(t *testing.T) {
	f := &GridFiller{Cells: 0, Lim: 2.0}
	_, err := f.Fill(nil, nil, nil)
	assert.Error(t, err)
}
