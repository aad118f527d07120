package models

// Movement policy parameters: the agent keeps its heading with STRAIGHT_PROB when it can,
// and otherwise turns to one of the other valid headings.
const (
	STRAIGHT_PROB = 0.7
	TURN_PROB     = 1.0 - STRAIGHT_PROB
)

// HeadingMask flags which headings keep the agent on the grid from some cell.
type HeadingMask [NUM_HEADINGS]bool

// Count returns the number of valid headings.
func (m HeadingMask) Count() (n int) {
	for _, valid := range m {
		if valid {
			n++
		}
	}
	return
}

// ValidHeadings returns the headings along which a single step from (row, col)
// stays inside the grid. Interior cells have four, edges three and corners two;
// a 1x1 grid has none.
func (g Grid) ValidHeadings(row, col int) (mask HeadingMask) {
	mask[NORTH] = row > 0
	mask[SOUTH] = row < g.Rows-1
	mask[WEST] = col > 0
	mask[EAST] = col < g.Cols-1
	return
}

// HeadingProbabilities returns the probability of each next heading for an agent at
// (row, col) currently facing heading. If the current heading is valid it is kept with
// STRAIGHT_PROB and TURN_PROB is split across the other valid headings; if the agent
// faces a wall, the valid headings are equally likely. With no valid headings every
// entry is zero, and the caller decides what staying put means.
func (g Grid) HeadingProbabilities(row, col int, heading Heading) (probs [NUM_HEADINGS]float64) {
	mask := g.ValidHeadings(row, col)
	n := mask.Count()
	if n == 0 {
		return
	}

	if !mask[heading] {
		for h, valid := range mask {
			if valid {
				probs[h] = 1.0 / float64(n)
			}
		}
		return
	}

	// Only way forward is straight ahead (e.g. a 1xN corridor end facing inward).
	if n == 1 {
		probs[heading] = 1.0
		return
	}

	others := float64(n - 1)
	for h, valid := range mask {
		switch {
		case Heading(h) == heading:
			probs[h] = STRAIGHT_PROB
		case valid:
			probs[h] = TURN_PROB / others
		}
	}
	return
}
