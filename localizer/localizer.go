// localizer ties the hidden agent, the sensor and the forward filter together behind a
// per-tick interface for drivers and views.
package localizer

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"localizer/agent"
	"localizer/hmm"
	"localizer/models"

	"gonum.org/v1/gonum/mat"
)

// ErrInvalidConfig is returned by Initialize for unusable grid dimensions.
var ErrInvalidConfig error = errors.New("invalid localizer config")

// Config describes a run. Seed and Start are optional.
type Config struct {
	Rows, Cols, Headings int
	// Seed fixes the generator for reproducible runs; nil draws a random seed.
	Seed *uint64
	// Start fixes the agent's initial state; nil starts at the origin with a random heading.
	Start *models.State
}

// TickResult is what a driver sees after one tick.
type TickResult struct {
	Iteration int
	TrueState models.State
	Reading   models.Reading
	Predicted hmm.Prediction
	Correct   bool
	Euclidean float64
	Manhattan int
}

// Localizer is the handle for a single run.
type Localizer struct {
	grid      models.Grid
	seed      uint64
	simulator *agent.Simulator
	filter    *hmm.BeliefFilter
	report    *Report
}

// Initialize validates cfg and builds the models, the filter and the simulator.
func Initialize(cfg Config) (*Localizer, error) {
	if cfg.Rows <= 0 || cfg.Cols <= 0 {
		return nil, fmt.Errorf("%w: grid must be at least 1x1, got %dx%d", ErrInvalidConfig, cfg.Rows, cfg.Cols)
	}
	if cfg.Headings != models.NUM_HEADINGS {
		return nil, fmt.Errorf("%w: %d headings, only %d are supported", ErrInvalidConfig, cfg.Headings, models.NUM_HEADINGS)
	}

	grid := models.Grid{Rows: cfg.Rows, Cols: cfg.Cols, Headings: cfg.Headings}
	var opts []agent.Option
	if cfg.Start != nil {
		if _, err := grid.IndexOf(cfg.Start.Row, cfg.Start.Col, cfg.Start.Heading); err != nil {
			return nil, fmt.Errorf("%w: start %v: %w", ErrInvalidConfig, *cfg.Start, err)
		}
		opts = append(opts, agent.WithStart(*cfg.Start))
	}

	seed := rand.Uint64()
	if cfg.Seed != nil {
		seed = *cfg.Seed
	}
	rng := rand.New(rand.NewPCG(seed, seed))

	return &Localizer{
		grid:      grid,
		seed:      seed,
		simulator: agent.New(grid, rng, opts...),
		filter:    hmm.NewBeliefFilter(hmm.NewTransitionModel(grid), hmm.NewObservationModel(grid)),
		report:    NewReport(),
	}, nil
}

// Tick runs one step: the agent moves, the sensor reads, the filter folds the reading in,
// and the estimate is scored against the truth. A degenerate belief is fatal for the run.
func (loc *Localizer) Tick() (result TickResult, err error) {
	truth := loc.simulator.Step()
	reading := loc.simulator.Sense()

	if _, err = loc.filter.Advance(reading); err != nil {
		return TickResult{}, fmt.Errorf("tick %d: %w", loc.report.Iterations()+1, err)
	}

	pred := loc.filter.Predict()
	result = TickResult{
		TrueState: truth,
		Reading:   reading,
		Predicted: pred,
		Correct:   pred.Row == truth.Row && pred.Col == truth.Col,
		Euclidean: euclidean(truth.Row, truth.Col, pred.Row, pred.Col),
		Manhattan: manhattan(truth.Row, truth.Col, pred.Row, pred.Col),
	}
	result.Iteration = loc.report.Record(result)
	return
}

// BeliefOf returns the belief marginal at (row, col), for rendering a heatmap. A cell
// outside the grid wraps models.ErrInvalidState.
func (loc *Localizer) BeliefOf(row, col int) (float64, error) {
	return loc.filter.CellProbability(row, col)
}

// Marginals returns all cell marginals, indexed [row][col].
func (loc *Localizer) Marginals() [][]float64 {
	return loc.filter.Marginals()
}

// Belief returns a copy of the full state belief.
func (loc *Localizer) Belief() *mat.VecDense {
	return loc.filter.Belief()
}

// TrueState returns the agent's current hidden state.
func (loc *Localizer) TrueState() models.State {
	return loc.simulator.State()
}

func (loc *Localizer) Grid() models.Grid {
	return loc.grid
}

// Seed returns the seed the run's generator was built from.
func (loc *Localizer) Seed() uint64 {
	return loc.seed
}

func (loc *Localizer) Report() *Report {
	return loc.report
}

// Frame is a copy of what views need to draw the latest tick. It shares no memory with the
// localizer, so it can be handed to other goroutines.
type Frame struct {
	Iteration int
	Rows      int
	Cols      int
	Marginals [][]float64
	Truth     models.State
	Reading   models.Reading
	Predicted hmm.Prediction
	Accuracy  float64
}

// Frame captures the current belief and truth. Reading and Predicted are those of the last
// tick; before the first tick there is no reading and the prediction is the uniform tie-break.
func (loc *Localizer) Frame() Frame {
	frame := Frame{
		Iteration: loc.report.Iterations(),
		Rows:      loc.grid.Rows,
		Cols:      loc.grid.Cols,
		Marginals: loc.filter.Marginals(),
		Truth:     loc.simulator.State(),
		Reading:   models.NoReading,
		Predicted: loc.filter.Predict(),
		Accuracy:  loc.report.Accuracy(),
	}
	if history := loc.report.History(); len(history) > 0 {
		frame.Reading = history[len(history)-1].Reading
	}
	return frame
}
