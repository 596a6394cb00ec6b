package geom

// Grid reasons over the simulator's cubic background grid as a flat 1D
// slice. The grid spans [0, Lim) on every axis with Cells cells per side.
type Grid struct {
	Cells int
	Lim   float32

	cw     float32
	area   int
	volume int
}

// NewGrid returns a Grid with the given cells-per-side and domain extent.
func NewGrid(cells int, lim float32) *Grid {
	g := &Grid{}
	g.Init(cells, lim)
	return g
}

// Init initializes a Grid instance.
func (g *Grid) Init(cells int, lim float32) {
	g.Cells = cells
	g.Lim = lim
	g.cw = lim / float32(cells)
	g.area = cells * cells
	g.volume = cells * cells * cells
}

// CellWidth returns the width of a single grid cell.
func (g *Grid) CellWidth() float32 { return g.cw }

// CellVolume returns the volume of a single grid cell.
func (g *Grid) CellVolume() float32 { return g.cw * g.cw * g.cw }

// Volume returns the total number of cells in the grid.
func (g *Grid) Volume() int { return g.volume }

// Idx returns the flat cell index containing the point v and true, or -1
// and false if v is outside the grid domain.
func (g *Grid) Idx(v Vec) (idx int, ok bool) {
	x := int(v[0] / g.cw)
	y := int(v[1] / g.cw)
	z := int(v[2] / g.cw)
	if v[0] < 0 || v[1] < 0 || v[2] < 0 ||
		x >= g.Cells || y >= g.Cells || z >= g.Cells {
		return -1, false
	}
	return x + y*g.Cells + z*g.area, true
}

// Coords returns the x, y, z cell coordinates of a flat cell index.
func (g *Grid) Coords(idx int) (x, y, z int) {
	x = idx % g.Cells
	y = (idx % g.area) / g.Cells
	z = idx / g.area
	return x, y, z
}
