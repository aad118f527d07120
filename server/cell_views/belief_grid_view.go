package cell_views

import (
	"fmt"
	"html/template"

	"localizer/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

const cellDim = 60 // cell width and height in pixels

// BeliefGrid draws every cell shaded by its belief marginal, with its probability as text,
// an arrow on the true cell and an outline on the predicted cell.
type BeliefGrid struct {
	id      string
	updates <-chan []fastview.EleUpdate
}

func NewBeliefGrid(
	done <-chan struct{},
	boards <-chan Board,
) (bg *BeliefGrid) {
	// Hyphens are not allowed in template names.
	bg = &BeliefGrid{id: "beliefgrid"}
	bg.updates = channerics.Convert(done, boards, bg.onUpdate)
	return
}

func (bg *BeliefGrid) Updates() <-chan []fastview.EleUpdate {
	return bg.updates
}

func (bg *BeliefGrid) rectId(cell Cell) string {
	return fmt.Sprintf("%s-%d-%d-rect", bg.id, cell.Y, cell.X)
}

func (bg *BeliefGrid) textId(cell Cell) string {
	return fmt.Sprintf("%s-%d-%d-text", bg.id, cell.Y, cell.X)
}

func markerTransform(m Marker) string {
	return fmt.Sprintf("translate(%d, %d) rotate(%d)",
		m.X*cellDim+cellDim/2, m.Y*cellDim+cellDim/2, m.Rotation)
}

// onUpdate returns the updates that bring the page in line with board.
func (bg *BeliefGrid) onUpdate(board Board) (ops []fastview.EleUpdate) {
	for _, row := range board.Cells {
		for _, cell := range row {
			ops = append(ops,
				fastview.EleUpdate{
					EleId: bg.rectId(cell),
					Ops:   []fastview.Op{{Key: "fill", Value: cell.Fill}},
				},
				fastview.EleUpdate{
					EleId: bg.textId(cell),
					Ops:   []fastview.Op{{Key: fastview.TEXT_CONTENT, Value: fmt.Sprintf("%.3f", cell.Prob)}},
				})
		}
	}

	return append(ops,
		fastview.EleUpdate{
			EleId: bg.id + "-truth",
			Ops:   []fastview.Op{{Key: "transform", Value: markerTransform(board.Truth)}},
		},
		fastview.EleUpdate{
			EleId: bg.id + "-prediction",
			Ops: []fastview.Op{
				{Key: "x", Value: fmt.Sprintf("%d", board.Predicted.X*cellDim)},
				{Key: "y", Value: fmt.Sprintf("%d", board.Predicted.Y*cellDim)},
			},
		},
		fastview.EleUpdate{
			EleId: bg.id + "-status",
			Ops:   []fastview.Op{{Key: fastview.TEXT_CONTENT, Value: board.Status}},
		})
}

// Parse adds the grid's svg template to t.
func (bg *BeliefGrid) Parse(
	t *template.Template,
) (name string, err error) {
	name = bg.id
	_, err = t.Funcs(template.FuncMap{
		"rectId":          bg.rectId,
		"textId":          bg.textId,
		"markerTransform": markerTransform,
	}).Parse(
		`{{ define "` + name + `" }}
		<div id="` + bg.id + `-container" style="padding:20px;">
			{{ $cell_dim := ` + fmt.Sprintf("%d", cellDim) + ` }}
			{{ $rows := len .Cells }}
			{{ $cols := len (index .Cells 0) }}
			{{ $half := div $cell_dim 2 }}
			<p id="` + bg.id + `-status">{{ .Status }}</p>
			<svg id="` + bg.id + `" xmlns='http://www.w3.org/2000/svg'
				width="{{ add (mult $cell_dim $cols) 1 }}px"
				height="{{ add (mult $cell_dim $rows) 1 }}px"
				style="shape-rendering: crispEdges;">
				{{ range $row := .Cells }}
					{{ range $cell := $row }}
					<rect id="{{ rectId $cell }}"
						x="{{ mult $cell.X $cell_dim }}"
						y="{{ mult $cell.Y $cell_dim }}"
						width="{{ $cell_dim }}"
						height="{{ $cell_dim }}"
						fill="{{ $cell.Fill }}"
						stroke="black"
						stroke-width="1"/>
					<text id="{{ textId $cell }}"
						x="{{ add (mult $cell.X $cell_dim) $half }}"
						y="{{ add (mult $cell.Y $cell_dim) (sub $cell_dim 6) }}"
						font-size="11" fill="black"
						text-anchor="middle"
						>{{ printf "%.3f" $cell.Prob }}</text>
					{{ end }}
				{{ end }}
				<rect id="` + bg.id + `-prediction"
					x="{{ mult .Predicted.X $cell_dim }}"
					y="{{ mult .Predicted.Y $cell_dim }}"
					width="{{ $cell_dim }}"
					height="{{ $cell_dim }}"
					fill="none" stroke="blue" stroke-width="4"/>
				<g id="` + bg.id + `-truth" transform="{{ markerTransform .Truth }}">
					<text font-size="24" fill="darkgreen"
						dominant-baseline="central" text-anchor="middle">&uarr;</text>
				</g>
			</svg>
		</div>
		{{ end }}`)
	return
}
