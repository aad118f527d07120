package hmm

import (
	"localizer/models"

	"gonum.org/v1/gonum/mat"
)

// TransitionModel is the movement policy written out as a full state-to-state table.
// It is built once per grid and never modified.
type TransitionModel struct {
	grid models.Grid
	// Row i, column j is P(next state j | state i).
	matrix *mat.Dense
	// transposed is matrix^T stored densely, row i holding P(i | j) over sources j.
	transposed *mat.Dense
}

// NewTransitionModel fills the transition table of grid from the movement policy.
// For realistic grid sizes the table is sparse; only the (at most four) states reachable
// from each state are written.
func NewTransitionModel(grid models.Grid) *TransitionModel {
	n := grid.NumStates()
	tm := &TransitionModel{
		grid:   grid,
		matrix: mat.NewDense(n, n, nil),
	}
	grid.Visit(func(i int, s models.State) {
		for h := models.Heading(0); h < models.NUM_HEADINGS; h++ {
			dr, dc := h.Delta()
			row, col := s.Row+dr, s.Col+dc
			if !grid.InBounds(row, col) {
				continue
			}
			j := grid.MustIndexOf(row, col, h)
			tm.matrix.Set(i, j, tm.TransitionProbability(s.Row, s.Col, s.Heading, row, col, h))
		}
		if grid.ValidHeadings(s.Row, s.Col).Count() == 0 {
			tm.matrix.Set(i, i, 1.0)
		}
	})
	tm.transposed = mat.DenseCopyOf(tm.matrix.T())
	return tm
}

// TransitionProbability returns P((nextRow, nextCol, nextHeading) | (row, col, heading)).
// The move is legal only if nextHeading's unit step from (row, col) lands exactly on
// (nextRow, nextCol); the probability is that of choosing nextHeading at the source cell.
// A cell with no valid heading (a 1x1 grid) keeps the agent where it is.
func (tm *TransitionModel) TransitionProbability(
	row, col int, heading models.Heading,
	nextRow, nextCol int, nextHeading models.Heading,
) float64 {
	if tm.grid.ValidHeadings(row, col).Count() == 0 {
		if row == nextRow && col == nextCol && heading == nextHeading {
			return 1.0
		}
		return 0.0
	}

	dr, dc := nextHeading.Delta()
	if nextRow-row != dr || nextCol-col != dc {
		return 0.0
	}
	return tm.grid.HeadingProbabilities(row, col, heading)[nextHeading]
}

// Matrix returns the from->to table: row i, column j is P(j | i).
func (tm *TransitionModel) Matrix() mat.Matrix {
	return tm.matrix
}

// Transposed returns the destination-major table used by the forward recurrence, so that
// Transposed() * belief projects mass onto destination states. Callers must not modify it.
func (tm *TransitionModel) Transposed() *mat.Dense {
	return tm.transposed
}

// Grid returns the grid the model was built for.
func (tm *TransitionModel) Grid() models.Grid {
	return tm.grid
}
