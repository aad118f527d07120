package cell_views

import (
	"bytes"
	"html/template"
	"strings"
	"testing"

	"localizer/hmm"
	"localizer/localizer"
	"localizer/models"
	"localizer/server/fastview"

	. "github.com/smartystreets/goconvey/convey"
)

func testFrame() localizer.Frame {
	return localizer.Frame{
		Iteration: 3,
		Rows:      2,
		Cols:      3,
		Marginals: [][]float64{
			{0.1, 0.4, 0.1},
			{0.2, 0.1, 0.1},
		},
		Truth:     models.State{Row: 1, Col: 0, Heading: models.EAST},
		Reading:   models.CellReading(0, 1),
		Predicted: hmm.Prediction{Row: 0, Col: 1, Confidence: 0.4},
		Accuracy:  0.5,
	}
}

func funcs() template.FuncMap {
	return template.FuncMap{
		"add":  func(i, j int) int { return i + j },
		"sub":  func(i, j int) int { return i - j },
		"mult": func(i, j int) int { return i * j },
		"div":  func(i, j int) int { return i / j },
	}
}

func render(vc fastview.ViewComponent, board Board) string {
	t := template.New("test").Funcs(funcs())
	name, err := vc.Parse(t)
	So(err, ShouldBeNil)
	var buf bytes.Buffer
	So(t.ExecuteTemplate(&buf, name, board), ShouldBeNil)
	return buf.String()
}

func findUpdate(updates []fastview.EleUpdate, id string) (fastview.EleUpdate, bool) {
	for _, update := range updates {
		if update.EleId == id {
			return update, true
		}
	}
	return fastview.EleUpdate{}, false
}

func TestConvert(t *testing.T) {
	Convey("When converting a frame to a board", t, func() {
		board := Convert(testFrame())

		Convey("Cells keep row-major layout with x as column", func() {
			So(len(board.Cells), ShouldEqual, 2)
			So(len(board.Cells[0]), ShouldEqual, 3)
			cell := board.Cells[1][2]
			So(cell.X, ShouldEqual, 2)
			So(cell.Y, ShouldEqual, 1)
		})

		Convey("Heat is relative to the most likely cell", func() {
			So(board.Cells[0][1].Heat, ShouldEqual, 1.0)
			So(board.Cells[0][1].Fill, ShouldEqual, "rgb(100%,0%,0%)")
			So(board.Cells[1][0].Heat, ShouldAlmostEqual, 0.5)
		})

		Convey("Markers locate the truth and the prediction", func() {
			So(board.Truth, ShouldResemble, Marker{X: 0, Y: 1, Rotation: 90})
			So(board.Predicted, ShouldResemble, Marker{X: 1, Y: 0})
			So(board.Status, ShouldEqual, "tick 3 | reading (0,1) | accuracy 0.500")
		})

		Convey("An all-zero belief is drawn white", func() {
			frame := testFrame()
			frame.Marginals = [][]float64{{0, 0}}
			So(Convert(frame).Cells[0][1].Fill, ShouldEqual, "rgb(100%,100%,100%)")
		})
	})
}

func TestBeliefGrid(t *testing.T) {
	Convey("When rendering the belief grid", t, func() {
		done := make(chan struct{})
		defer close(done)
		bg := NewBeliefGrid(done, make(chan Board))
		board := Convert(testFrame())

		Convey("The template holds every element the updates address", func() {
			html := render(bg, board)
			for _, update := range bg.onUpdate(board) {
				So(html, ShouldContainSubstring, `id="`+update.EleId+`"`)
			}
			So(html, ShouldContainSubstring, "0.400")
		})

		Convey("Updates carry fills, texts and markers", func() {
			updates := bg.onUpdate(board)
			So(len(updates), ShouldEqual, 2*6+3)

			rect, ok := findUpdate(updates, "beliefgrid-0-1-rect")
			So(ok, ShouldBeTrue)
			So(rect.Ops, ShouldResemble, []fastview.Op{{Key: "fill", Value: "rgb(100%,0%,0%)"}})

			pred, ok := findUpdate(updates, "beliefgrid-prediction")
			So(ok, ShouldBeTrue)
			So(pred.Ops[0], ShouldResemble, fastview.Op{Key: "x", Value: "60"})

			truth, ok := findUpdate(updates, "beliefgrid-truth")
			So(ok, ShouldBeTrue)
			So(truth.Ops[0].Value, ShouldEqual, "translate(30, 90) rotate(90)")
		})
	})
}

func TestBeliefSurface(t *testing.T) {
	Convey("When rendering the belief surface", t, func() {
		done := make(chan struct{})
		defer close(done)
		bs := NewBeliefSurface(done, make(chan Board), 2, 3)
		board := Convert(testFrame())

		Convey("There is one face per cell, painted back to front", func() {
			faces := bs.quads(board)
			So(len(faces), ShouldEqual, 6)
			So(faces[0].Id, ShouldEqual, "beliefsurface-0-0-quad")
			So(faces[len(faces)-1].Id, ShouldEqual, "beliefsurface-1-2-quad")
		})

		Convey("The peak is raised above its neighbours", func() {
			_, flatY := bs.proj.project(1, 0, board.Cells[0][0].Heat)
			_, peakY := bs.proj.project(1, 0, board.Cells[0][1].Heat)
			So(peakY, ShouldBeLessThan, flatY)
		})

		Convey("The template holds every polygon the updates address", func() {
			html := render(bs, board)
			updates := bs.onUpdate(board)
			So(len(updates), ShouldEqual, 6)
			for _, update := range updates {
				So(html, ShouldContainSubstring, `id="`+update.EleId+`"`)
			}
			So(strings.Count(html, "<polygon"), ShouldEqual, 6)
		})
	})
}
