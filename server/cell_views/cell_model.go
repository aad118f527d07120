// cell_views holds the views drawn from the Board view-model: the belief grid and the
// belief surface.
package cell_views

import (
	"fmt"

	"localizer/localizer"
	"localizer/models"
)

// Cell is one grid cell ready for a template: X and Y are svg column and row, which for this
// grid are just col and row since row 0 is drawn at the top.
type Cell struct {
	X, Y int
	Prob float64
	// Heat is Prob relative to the most likely cell, in [0,1].
	Heat float64
	Fill string
}

// Marker locates the true or predicted cell. Rotation is the svg rotation of an up arrow
// for the agent's heading.
type Marker struct {
	X, Y     int
	Rotation int
}

// Board is the view-model for one tick.
type Board struct {
	Cells     [][]Cell // [row][col]
	Truth     Marker
	Predicted Marker
	Status    string
}

// Convert builds the Board for a frame.
func Convert(frame localizer.Frame) Board {
	maxProb := 0.0
	for _, row := range frame.Marginals {
		for _, p := range row {
			maxProb = max(maxProb, p)
		}
	}

	cells := make([][]Cell, len(frame.Marginals))
	for r, row := range frame.Marginals {
		cells[r] = make([]Cell, len(row))
		for c, p := range row {
			heat := 0.0
			if maxProb > 0 {
				heat = p / maxProb
			}
			cells[r][c] = Cell{X: c, Y: r, Prob: p, Heat: heat, Fill: getFill(heat)}
		}
	}

	return Board{
		Cells: cells,
		Truth: Marker{
			X:        frame.Truth.Col,
			Y:        frame.Truth.Row,
			Rotation: getDegrees(frame.Truth.Heading),
		},
		Predicted: Marker{X: frame.Predicted.Col, Y: frame.Predicted.Row},
		Status:    getStatus(frame),
	}
}

// getDegrees is the clockwise rotation of an up arrow to point along heading.
func getDegrees(heading models.Heading) int {
	return 90 * int(heading)
}

// getFill shades from white (no belief) to red (the most likely cell).
func getFill(heat float64) string {
	other := int(100 * (1 - heat))
	return fmt.Sprintf("rgb(100%%,%d%%,%d%%)", other, other)
}

func getStatus(frame localizer.Frame) string {
	return fmt.Sprintf("tick %d | reading %s | accuracy %.3f",
		frame.Iteration, frame.Reading, frame.Accuracy)
}
