package hmm

import (
	"math"

	"localizer/models"

	"gonum.org/v1/gonum/mat"
)

// Sensor emission probabilities per floor-euclidean distance bucket between the true
// cell and the reported cell.
const (
	EXACT_PROB     = 0.1
	PRIMARY_PROB   = 0.05
	SECONDARY_PROB = 0.025
)

// ObservationModel gives the probability of each sensor reading given the agent's true cell.
// Readings are heading independent.
type ObservationModel struct {
	grid models.Grid
	// nothing holds the no-signal probability per cell, indexed by Grid.CellIndex.
	nothing []float64
}

// NewObservationModel precomputes the per-cell no-signal probabilities of grid.
// Cells near an edge lose ring cells to the outside of the grid, so their
// no-signal probability is larger than an interior cell's.
func NewObservationModel(grid models.Grid) *ObservationModel {
	om := &ObservationModel{
		grid:    grid,
		nothing: make([]float64, grid.NumCells()),
	}
	grid.VisitCells(func(row, col int) {
		om.nothing[grid.CellIndex(row, col)] = 1.0 -
			EXACT_PROB -
			PRIMARY_PROB*float64(grid.RingSize(row, col, models.PrimaryRing)) -
			SECONDARY_PROB*float64(grid.RingSize(row, col, models.SecondaryRing))
	})
	return om
}

// bucketProb maps the floor of the euclidean distance between two cells to its emission probability.
func bucketProb(row, col, readRow, readCol int) float64 {
	dr, dc := float64(row-readRow), float64(col-readCol)
	switch int(math.Sqrt(dr*dr + dc*dc)) {
	case 0:
		return EXACT_PROB
	case 1:
		return PRIMARY_PROB
	case 2:
		return SECONDARY_PROB
	}
	return 0.0
}

// EmissionProbability returns P(reading | agent in (trueRow, trueCol)).
func (om *ObservationModel) EmissionProbability(trueRow, trueCol int, reading models.Reading) float64 {
	if reading.None {
		return om.nothing[om.grid.CellIndex(trueRow, trueCol)]
	}
	return bucketProb(trueRow, trueCol, reading.Row, reading.Col)
}

// DiagonalMatrixFor builds the state-sized diagonal observation matrix of reading,
// whose (i,i) entry is the emission probability at the cell of state i.
func (om *ObservationModel) DiagonalMatrixFor(reading models.Reading) *mat.DiagDense {
	g := om.grid
	diag := make([]float64, g.NumStates())
	g.VisitCells(func(row, col int) {
		p := om.EmissionProbability(row, col, reading)
		base := g.CellIndex(row, col) * g.Headings
		for h := 0; h < g.Headings; h++ {
			diag[base+h] = p
		}
	})
	return mat.NewDiagDense(len(diag), diag)
}
