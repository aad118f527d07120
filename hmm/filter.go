package hmm

import (
	"errors"
	"fmt"

	"localizer/models"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrDegenerateBelief is returned when a filter update drives all probability mass to zero,
// i.e. the reading is impossible from every state reachable under the transition model.
var ErrDegenerateBelief error = errors.New("degenerate belief: normalization sum is not positive")

// Prediction is the filter's point estimate: the most probable cell and its marginal probability.
type Prediction struct {
	Row, Col   int
	Confidence float64
}

// BeliefFilter runs the forward algorithm over the hidden (row, col, heading) states.
type BeliefFilter struct {
	grid         models.Grid
	transitions  *TransitionModel
	observations *ObservationModel
	belief       *mat.VecDense
	// projection is the O * T^T scratch matrix, reused across updates.
	projection *mat.Dense
}

// NewBeliefFilter returns a filter whose belief is uniform over all states.
func NewBeliefFilter(transitions *TransitionModel, observations *ObservationModel) *BeliefFilter {
	grid := transitions.Grid()
	n := grid.NumStates()
	init := make([]float64, n)
	for i := range init {
		init[i] = 1.0 / float64(n)
	}
	return &BeliefFilter{
		grid:         grid,
		transitions:  transitions,
		observations: observations,
		belief:       mat.NewVecDense(n, init),
		projection:   mat.NewDense(n, n, nil),
	}
}

// Advance folds one reading into the belief:
//
//	f' = normalize(O_reading * T^T * f)
//
// The product is taken matrix-matrix first, then against the belief vector. On error the
// belief is left as it was.
func (bf *BeliefFilter) Advance(reading models.Reading) (*mat.VecDense, error) {
	if err := bf.advanceWith(bf.observations.DiagonalMatrixFor(reading)); err != nil {
		return nil, fmt.Errorf("advance on reading %v: %w", reading, err)
	}
	return bf.Belief(), nil
}

// advanceWith applies a diagonal observation matrix. O * T^T is row i of T^T scaled by
// O(i,i), so it is formed by copying the dense transpose and scaling rows in place.
func (bf *BeliefFilter) advanceWith(obs *mat.DiagDense) error {
	n := bf.grid.NumStates()
	bf.projection.Copy(bf.transitions.Transposed())
	for i := 0; i < n; i++ {
		floats.Scale(obs.At(i, i), bf.projection.RawRowView(i))
	}

	next := mat.NewVecDense(n, nil)
	next.MulVec(bf.projection, bf.belief)

	if err := normalize(next); err != nil {
		return err
	}

	bf.belief = next
	return nil
}

// Predicted returns T^T * f, the belief one step ahead before any reading is folded in.
func (bf *BeliefFilter) Predicted() *mat.VecDense {
	next := mat.NewVecDense(bf.grid.NumStates(), nil)
	next.MulVec(bf.transitions.Transposed(), bf.belief)
	return next
}

func normalize(v *mat.VecDense) error {
	sum := mat.Sum(v)
	if !(sum > 0) {
		return ErrDegenerateBelief
	}
	v.ScaleVec(1.0/sum, v)
	return nil
}

// Belief returns a copy of the current belief vector.
func (bf *BeliefFilter) Belief() *mat.VecDense {
	return mat.VecDenseCopyOf(bf.belief)
}

// CellProbability is the belief marginalized over heading at (row, col). A cell outside
// the grid is an ErrInvalidState.
func (bf *BeliefFilter) CellProbability(row, col int) (float64, error) {
	if !bf.grid.InBounds(row, col) {
		return 0, fmt.Errorf("cell (%d,%d) on %dx%d grid: %w", row, col, bf.grid.Rows, bf.grid.Cols, models.ErrInvalidState)
	}
	return cellMarginal(bf.grid, bf.belief, row, col), nil
}

func cellMarginal(g models.Grid, v mat.Vector, row, col int) (sum float64) {
	base := g.CellIndex(row, col) * g.Headings
	for h := 0; h < g.Headings; h++ {
		sum += v.AtVec(base + h)
	}
	return
}

// Marginals returns the cell marginals of the belief, indexed [row][col].
func (bf *BeliefFilter) Marginals() [][]float64 {
	return Marginals(bf.grid, bf.belief)
}

// Marginals sums any state-sized vector over heading, indexed [row][col].
func Marginals(g models.Grid, v mat.Vector) [][]float64 {
	cells := make([][]float64, g.Rows)
	for row := range cells {
		cells[row] = make([]float64, g.Cols)
		for col := range cells[row] {
			cells[row][col] = cellMarginal(g, v, row, col)
		}
	}
	return cells
}

// Predict returns the cell with the largest marginal probability. The scan is row-major
// and only a strictly larger marginal replaces the current best, so ties go to the lowest
// row and then the lowest column.
func (bf *BeliefFilter) Predict() Prediction {
	best := Prediction{Confidence: -1}
	bf.grid.VisitCells(func(row, col int) {
		if p := cellMarginal(bf.grid, bf.belief, row, col); p > best.Confidence {
			best = Prediction{Row: row, Col: col, Confidence: p}
		}
	})
	return best
}
