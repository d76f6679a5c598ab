package model

// Position is where a probe found its target. The zero value means "not
// found", which is what detectors return on a miss.
type Position struct {
	X     int  `json:"x"`
	Y     int  `json:"y"`
	Found bool `json:"found"`
}

// At builds a found position.
func At(x, y int) Position { return Position{X: x, Y: y, Found: true} }

// Region is a rectangle of the screen in device pixels. Probes restricted to
// a region only search inside it.
type Region struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
	W int `json:"w" yaml:"w"`
	H int `json:"h" yaml:"h"`
}

// Contains reports whether p lies inside the region. Empty regions contain nothing.
func (r Region) Contains(p Position) bool {
	if r.W <= 0 || r.H <= 0 {
		return false
	}
	return p.X >= r.X && p.X < r.X+r.W && p.Y >= r.Y && p.Y < r.Y+r.H
}

// ScreenGrid splits the screen into a coarse Cols x Rows grid so templates
// can name regions by cell instead of raw pixels.
type ScreenGrid struct {
	Width  int
	Height int
	Cols   int
	Rows   int
}

// Cell returns the region covered by grid cell (col, row). Out-of-bounds
// cells and degenerate grids return an empty region.
func (g ScreenGrid) Cell(col, row int) Region {
	if g.Cols <= 0 || g.Rows <= 0 || col < 0 || col >= g.Cols || row < 0 || row >= g.Rows {
		return Region{}
	}
	cw := g.Width / g.Cols
	ch := g.Height / g.Rows
	return Region{X: col * cw, Y: row * ch, W: cw, H: ch}
}
