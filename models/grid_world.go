package models

import (
	"errors"
	"fmt"
)

// Heading is the direction the agent is facing. The agent always moves one cell
// along its heading per time step.
type Heading int

// Headings, in the order used by the flat state index.
const (
	NORTH Heading = iota
	EAST
	SOUTH
	WEST
	NUM_HEADINGS = 4
)

// Unit row/column deltas per heading; row 0 is the top of the grid.
var headingDeltas = [NUM_HEADINGS][2]int{
	NORTH: {-1, 0},
	EAST:  {0, 1},
	SOUTH: {1, 0},
	WEST:  {0, -1},
}

// Delta returns the row and column displacement of a single step along h.
func (h Heading) Delta() (dr, dc int) {
	return headingDeltas[h][0], headingDeltas[h][1]
}

func (h Heading) String() string {
	switch h {
	case NORTH:
		return "N"
	case EAST:
		return "E"
	case SOUTH:
		return "S"
	case WEST:
		return "W"
	}
	return fmt.Sprintf("Heading(%d)", int(h))
}

// State is a hidden state of the model: the agent's cell and its heading.
type State struct {
	Row, Col int
	Heading  Heading
}

func (s State) String() string {
	return fmt.Sprintf("(%d,%d,%s)", s.Row, s.Col, s.Heading)
}

// Grid holds the fixed dimensions of a run. Its zero value is not usable; dimensions
// are validated by the caller that constructs it (see localizer.Initialize).
type Grid struct {
	Rows, Cols, Headings int
}

// NewGrid returns a grid with the standard four headings.
func NewGrid(rows, cols int) Grid {
	return Grid{Rows: rows, Cols: cols, Headings: NUM_HEADINGS}
}

// ErrInvalidState is returned when a row, column, heading or flat index lies outside the grid.
var ErrInvalidState error = errors.New("invalid state")

// NumStates is the number of hidden states, rows*cols*headings.
func (g Grid) NumStates() int {
	return g.Rows * g.Cols * g.Headings
}

// NumCells is the number of grid positions, ignoring heading.
func (g Grid) NumCells() int {
	return g.Rows * g.Cols
}

// InBounds reports whether (row, col) is a cell of the grid.
func (g Grid) InBounds(row, col int) bool {
	return row >= 0 && row < g.Rows && col >= 0 && col < g.Cols
}

// CellIndex is the row-major offset of a cell, used for per-cell lookup tables.
func (g Grid) CellIndex(row, col int) int {
	return row*g.Cols + col
}

// IndexOf maps a (row, col, heading) triple to its flat state index.
// Headings of a cell are contiguous, so the cell of index i is i / Headings.
func (g Grid) IndexOf(row, col int, heading Heading) (int, error) {
	if !g.InBounds(row, col) || heading < 0 || int(heading) >= g.Headings {
		return 0, fmt.Errorf("%w: row=%d col=%d heading=%d on %dx%d grid",
			ErrInvalidState, row, col, heading, g.Rows, g.Cols)
	}
	return g.CellIndex(row, col)*g.Headings + int(heading), nil
}

// StateOf is the inverse of IndexOf.
func (g Grid) StateOf(index int) (State, error) {
	if index < 0 || index >= g.NumStates() {
		return State{}, fmt.Errorf("%w: index=%d of %d states", ErrInvalidState, index, g.NumStates())
	}
	heading := index % g.Headings
	cell := index / g.Headings
	return State{
		Row:     cell / g.Cols,
		Col:     cell % g.Cols,
		Heading: Heading(heading),
	}, nil
}

// MustIndexOf is IndexOf for inputs derived from the grid itself; it panics on invalid input.
func (g Grid) MustIndexOf(row, col int, heading Heading) int {
	index, err := g.IndexOf(row, col, heading)
	if err != nil {
		panic(err)
	}
	return index
}

// MustStateOf is StateOf for indices derived from the grid itself; it panics on invalid input.
func (g Grid) MustStateOf(index int) State {
	state, err := g.StateOf(index)
	if err != nil {
		panic(err)
	}
	return state
}

// Visit calls fn on every state in index order.
func (g Grid) Visit(fn func(index int, s State)) {
	for i := 0; i < g.NumStates(); i++ {
		fn(i, g.MustStateOf(i))
	}
}

// VisitCells calls fn on every cell in row-major order.
func (g Grid) VisitCells(fn func(row, col int)) {
	for row := 0; row < g.Rows; row++ {
		for col := 0; col < g.Cols; col++ {
			fn(row, col)
		}
	}
}

// Reading is a single sensor observation: either the cell the sensor reports,
// or no signal at all.
type Reading struct {
	Row, Col int
	None     bool
}

// NoReading is the no-signal marker.
var NoReading = Reading{Row: -1, Col: -1, None: true}

// CellReading returns a reading reporting the cell (row, col).
func CellReading(row, col int) Reading {
	return Reading{Row: row, Col: col}
}

func (r Reading) String() string {
	if r.None {
		return "nothing"
	}
	return fmt.Sprintf("(%d,%d)", r.Row, r.Col)
}

// Sensor rings: offsets at Chebyshev distance one and two from a cell. Every cell
// in the primary ring lies at floor-euclidean distance 1, every secondary cell at 2.
var (
	PrimaryRing = [][2]int{
		{-1, -1}, {-1, 0}, {-1, 1}, {0, 1}, {1, 1}, {1, 0}, {1, -1}, {0, -1},
	}
	SecondaryRing = [][2]int{
		{-2, -2}, {-2, -1}, {-2, 0}, {-2, 1}, {-2, 2},
		{-1, 2}, {0, 2}, {1, 2}, {2, 2}, {2, 1},
		{2, 0}, {2, -1}, {2, -2}, {1, -2}, {0, -2}, {-1, -2},
	}
)

// RingSize counts the offsets of ring that land inside the grid when applied to (row, col).
func (g Grid) RingSize(row, col int, ring [][2]int) (count int) {
	for _, offset := range ring {
		if g.InBounds(row+offset[0], col+offset[1]) {
			count++
		}
	}
	return
}
