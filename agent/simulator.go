// agent simulates the hidden ground truth: the robot moving on the grid under the
// movement policy, and the noisy sensor that reports on it.
package agent

import (
	"math/rand/v2"

	"localizer/models"

	"gonum.org/v1/gonum/stat/distuv"
)

// Sensor draw layout, out of SENSOR_SLOTS equally likely slots: the first EXACT_SLOTS report
// the agent's own cell, each primary ring cell gets two slots, each secondary ring cell one,
// and the remaining slots report nothing.
const (
	SENSOR_SLOTS    = 40
	EXACT_SLOTS     = 4
	PRIMARY_START   = EXACT_SLOTS
	PRIMARY_SLOTS   = 16
	SECONDARY_START = PRIMARY_START + PRIMARY_SLOTS
	SECONDARY_SLOTS = 16
	NOTHING_START   = SECONDARY_START + SECONDARY_SLOTS
)

// Simulator owns the agent's true state. It draws everything from a single injected generator,
// so a fixed seed reproduces a run exactly.
type Simulator struct {
	grid  models.Grid
	rng   *rand.Rand
	state models.State
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithStart places the agent at a fixed state instead of the default.
func WithStart(start models.State) Option {
	return func(sim *Simulator) {
		sim.state = start
	}
}

// New returns a simulator on grid. By default the agent starts at the origin with a random
// heading.
func New(grid models.Grid, rng *rand.Rand, opts ...Option) *Simulator {
	sim := &Simulator{
		grid: grid,
		rng:  rng,
		state: models.State{
			Row:     0,
			Col:     0,
			Heading: models.Heading(rng.IntN(models.NUM_HEADINGS)),
		},
	}
	for _, opt := range opts {
		opt(sim)
	}
	return sim
}

// State returns the agent's true state.
func (sim *Simulator) State() models.State {
	return sim.state
}

// Step advances the agent one tick: a new heading is drawn from the movement policy and the
// agent moves one cell along it. With no valid heading (a 1x1 grid) the agent stays put and
// keeps its heading.
func (sim *Simulator) Step() models.State {
	s := sim.state
	probs := sim.grid.HeadingProbabilities(s.Row, s.Col, s.Heading)
	if sim.grid.ValidHeadings(s.Row, s.Col).Count() == 0 {
		return s
	}

	heading := models.Heading(distuv.NewCategorical(probs[:], sim.rng).Rand())
	dr, dc := heading.Delta()
	sim.state = models.State{
		Row:     s.Row + dr,
		Col:     s.Col + dc,
		Heading: heading,
	}
	return sim.state
}

// Sense samples a sensor reading for the agent's current cell. Ring cells that fall outside
// the grid are reported as nothing.
func (sim *Simulator) Sense() models.Reading {
	row, col := sim.state.Row, sim.state.Col
	slot := sim.rng.IntN(SENSOR_SLOTS)

	var offset [2]int
	switch {
	case slot < PRIMARY_START:
		return models.CellReading(row, col)
	case slot < SECONDARY_START:
		offset = models.PrimaryRing[(slot-PRIMARY_START)%len(models.PrimaryRing)]
	case slot < NOTHING_START:
		offset = models.SecondaryRing[slot-SECONDARY_START]
	default:
		return models.NoReading
	}

	if r, c := row+offset[0], col+offset[1]; sim.grid.InBounds(r, c) {
		return models.CellReading(r, c)
	}
	return models.NoReading
}
