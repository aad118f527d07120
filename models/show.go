package models

import (
	"fmt"
	"io"

	"github.com/logrusorgru/aurora"
)

// ShowBelief prints the per-cell belief marginals as a grid, for debugging in a console.
// The true cell is printed green, the predicted cell yellow, and a cell that is both is
// printed bold green. Marginals are indexed [row][col].
func ShowBelief(w io.Writer, marginals [][]float64, truth State, predRow, predCol int) {
	for row := range marginals {
		for col, p := range marginals[row] {
			text := fmt.Sprintf("%5.3f ", p)
			isTrue := row == truth.Row && col == truth.Col
			isPred := row == predRow && col == predCol
			switch {
			case isTrue && isPred:
				fmt.Fprint(w, aurora.Bold(aurora.Green(text)))
			case isTrue:
				fmt.Fprint(w, aurora.Green(text))
			case isPred:
				fmt.Fprint(w, aurora.Yellow(text))
			default:
				fmt.Fprint(w, aurora.Blue(text))
			}
			fmt.Fprint(w, aurora.White("|"))
		}
		fmt.Fprintln(w)
	}
}

// ShowGrid prints the grid with the agent's heading drawn at its cell, for visual reference.
func ShowGrid(w io.Writer, g Grid, truth State) {
	arrows := [NUM_HEADINGS]rune{NORTH: '^', EAST: '>', SOUTH: 'v', WEST: '<'}
	g.VisitCells(func(row, col int) {
		if row == truth.Row && col == truth.Col {
			fmt.Fprintf(w, "%c ", arrows[truth.Heading])
		} else {
			fmt.Fprint(w, "o ")
		}
		if col == g.Cols-1 {
			fmt.Fprintln(w)
		}
	})
}
