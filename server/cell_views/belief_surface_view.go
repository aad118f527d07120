package cell_views

import (
	"fmt"
	"html/template"
	"math"

	"localizer/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// BeliefSurface draws the belief as an isometric surface over the grid: each cell is a
// quad raised by its heat, so a confident belief shows as a single peak.
type BeliefSurface struct {
	id      string
	rows    int
	cols    int
	proj    projection
	updates <-chan []fastview.EleUpdate
}

// projection maps grid coordinates and height to svg coordinates.
type projection struct {
	xyscale float64 // pixels per cell
	zscale  float64 // pixels per unit of heat
	sinAng  float64
	cosAng  float64
}

func newProjection(cellPixels float64) projection {
	ang := math.Pi / 6 // angle of the x and y axes
	return projection{
		xyscale: cellPixels,
		zscale:  cellPixels * 2,
		sinAng:  math.Sin(ang),
		cosAng:  math.Cos(ang),
	}
}

func (p projection) project(x, y, z float64) (float64, float64) {
	sx := (x - y) * p.cosAng * p.xyscale
	sy := (x+y)*p.sinAng*p.xyscale - z*p.zscale
	return sx, sy
}

// NewBeliefSurface returns a surface for a rows x cols grid.
func NewBeliefSurface(
	done <-chan struct{},
	boards <-chan Board,
	rows, cols int,
) (bs *BeliefSurface) {
	bs = &BeliefSurface{
		id:   "beliefsurface",
		rows: rows,
		cols: cols,
		proj: newProjection(cellDim / 2),
	}
	bs.updates = channerics.Convert(done, boards, bs.onUpdate)
	return
}

func (bs *BeliefSurface) Updates() <-chan []fastview.EleUpdate {
	return bs.updates
}

// quad is one cell's face on the surface.
type quad struct {
	Id     string
	Points string
	Fill   string
}

// quads returns the faces back to front, so nearer faces are painted over farther ones.
func (bs *BeliefSurface) quads(board Board) (faces []quad) {
	for diag := 0; diag < bs.rows+bs.cols-1; diag++ {
		for row := 0; row < bs.rows; row++ {
			col := diag - row
			if col < 0 || col >= bs.cols || row >= len(board.Cells) || col >= len(board.Cells[row]) {
				continue
			}
			cell := board.Cells[row][col]
			faces = append(faces, quad{
				Id:     fmt.Sprintf("%s-%d-%d-quad", bs.id, row, col),
				Points: bs.facePoints(cell),
				Fill:   cell.Fill,
			})
		}
	}
	return
}

// facePoints projects the four corners of a cell raised to its heat.
func (bs *BeliefSurface) facePoints(cell Cell) string {
	x, y, z := float64(cell.X), float64(cell.Y), cell.Heat
	corners := [4][2]float64{{x, y}, {x + 1, y}, {x + 1, y + 1}, {x, y + 1}}
	var points string
	for i, corner := range corners {
		sx, sy := bs.proj.project(corner[0], corner[1], z)
		if i > 0 {
			points += " "
		}
		points += fmt.Sprintf("%d,%d", int(sx), int(sy))
	}
	return points
}

// viewBox fits the whole surface, including a full-height peak.
func (bs *BeliefSurface) viewBox() string {
	r, c := float64(bs.rows), float64(bs.cols)
	minX, _ := bs.proj.project(0, r, 0)
	maxX, _ := bs.proj.project(c, 0, 0)
	_, minY := bs.proj.project(0, 0, 1)
	_, maxY := bs.proj.project(c, r, 0)
	return fmt.Sprintf("%d %d %d %d",
		int(minX)-2, int(minY)-2, int(maxX-minX)+4, int(maxY-minY)+4)
}

func (bs *BeliefSurface) onUpdate(board Board) (ops []fastview.EleUpdate) {
	for _, face := range bs.quads(board) {
		ops = append(ops, fastview.EleUpdate{
			EleId: face.Id,
			Ops: []fastview.Op{
				{Key: "points", Value: face.Points},
				{Key: "fill", Value: face.Fill},
			},
		})
	}
	return
}

// Parse adds the surface's svg template to t.
func (bs *BeliefSurface) Parse(
	t *template.Template,
) (name string, err error) {
	name = bs.id
	_, err = t.Funcs(template.FuncMap{
		"surfaceQuads": bs.quads,
	}).Parse(
		`{{ define "` + name + `" }}
		<div style="padding:20px;">
			<svg id="` + bs.id + `" xmlns='http://www.w3.org/2000/svg'
				viewBox="` + bs.viewBox() + `"
				width="` + fmt.Sprintf("%d", (bs.rows+bs.cols)*cellDim/2) + `px"
				style="stroke: lightgrey; stroke-width: 1;">
				{{ range $face := surfaceQuads . }}
					<polygon id="{{ $face.Id }}" fill="{{ $face.Fill }}" points="{{ $face.Points }}"/>
				{{ end }}
			</svg>
		</div>
		{{ end }}`)
	return
}
