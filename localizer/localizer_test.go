package localizer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"localizer/hmm"
	"localizer/models"

	. "github.com/smartystreets/goconvey/convey"
	"gonum.org/v1/gonum/mat"
)

func seeded(seed uint64) *uint64 {
	return &seed
}

func TestInitialize(t *testing.T) {
	Convey("When initializing a localizer", t, func() {
		Convey("Bad dimensions are rejected", func() {
			_, err := Initialize(Config{Rows: 0, Cols: 3, Headings: 4})
			So(errors.Is(err, ErrInvalidConfig), ShouldBeTrue)
			_, err = Initialize(Config{Rows: 3, Cols: 3, Headings: 3})
			So(errors.Is(err, ErrInvalidConfig), ShouldBeTrue)
		})

		Convey("An off-grid start is rejected as an invalid state", func() {
			_, err := Initialize(Config{Rows: 3, Cols: 3, Headings: 4, Start: &models.State{Row: 3}})
			So(errors.Is(err, ErrInvalidConfig), ShouldBeTrue)
			So(errors.Is(err, models.ErrInvalidState), ShouldBeTrue)
		})

		Convey("The initial belief is uniform", func() {
			loc, err := Initialize(Config{Rows: 4, Cols: 5, Headings: 4, Seed: seeded(1)})
			So(err, ShouldBeNil)
			p, err := loc.BeliefOf(2, 3)
			So(err, ShouldBeNil)
			So(p, ShouldAlmostEqual, 1.0/20, 1e-12)
			So(loc.Seed(), ShouldEqual, uint64(1))
			So(loc.TrueState().Row, ShouldEqual, 0)
			So(loc.TrueState().Col, ShouldEqual, 0)
		})
	})
}

func TestTick(t *testing.T) {
	Convey("When ticking", t, func() {
		Convey("Each tick moves the agent one cell and keeps the belief a distribution", func() {
			loc, err := Initialize(Config{Rows: 6, Cols: 6, Headings: 4, Seed: seeded(7)})
			So(err, ShouldBeNil)
			prev := loc.TrueState()
			for i := 1; i <= 100; i++ {
				res, err := loc.Tick()
				So(err, ShouldBeNil)
				So(res.Iteration, ShouldEqual, i)
				So(manhattan(prev.Row, prev.Col, res.TrueState.Row, res.TrueState.Col), ShouldEqual, 1)
				So(loc.Grid().InBounds(res.TrueState.Row, res.TrueState.Col), ShouldBeTrue)
				So(mat.Sum(loc.Belief()), ShouldAlmostEqual, 1.0, 1e-9)
				p, err := loc.BeliefOf(res.Predicted.Row, res.Predicted.Col)
				So(err, ShouldBeNil)
				So(res.Predicted.Confidence, ShouldAlmostEqual, p, 1e-15)
				So(res.Correct, ShouldEqual, res.Manhattan == 0)
				prev = res.TrueState
			}
			So(loc.Report().Iterations(), ShouldEqual, 100)
		})

		Convey("Off-grid cells are rejected rather than wrapped onto another cell", func() {
			loc, err := Initialize(Config{Rows: 3, Cols: 3, Headings: 4, Seed: seeded(5)})
			So(err, ShouldBeNil)
			for i := 0; i < 3; i++ {
				_, err = loc.Tick()
				So(err, ShouldBeNil)
			}
			for _, cell := range [][2]int{{0, 3}, {-1, 0}, {-1, 3}, {3, 0}} {
				_, err = loc.BeliefOf(cell[0], cell[1])
				So(errors.Is(err, models.ErrInvalidState), ShouldBeTrue)
			}
		})

		Convey("The same seed reproduces the run", func() {
			run := func() (results []TickResult) {
				loc, err := Initialize(Config{Rows: 5, Cols: 7, Headings: 4, Seed: seeded(99)})
				So(err, ShouldBeNil)
				for i := 0; i < 50; i++ {
					res, err := loc.Tick()
					So(err, ShouldBeNil)
					results = append(results, res)
				}
				return
			}
			So(run(), ShouldResemble, run())
		})

		Convey("The filter tracks the agent better than chance", func() {
			loc, err := Initialize(Config{Rows: 8, Cols: 8, Headings: 4, Seed: seeded(2024)})
			So(err, ShouldBeNil)
			for i := 0; i < 400; i++ {
				_, err := loc.Tick()
				So(err, ShouldBeNil)
			}
			// Guessing a cell uniformly would be right 1/64 of the time.
			So(loc.Report().Accuracy(), ShouldBeGreaterThan, 0.1)
			So(loc.Report().MeanManhattan(), ShouldBeLessThan, 3.5)
		})

		Convey("A 1x1 grid never moves and always predicts its only cell", func() {
			start := models.State{Row: 0, Col: 0, Heading: models.EAST}
			loc, err := Initialize(Config{Rows: 1, Cols: 1, Headings: 4, Seed: seeded(3), Start: &start})
			So(err, ShouldBeNil)
			for i := 0; i < 10; i++ {
				res, err := loc.Tick()
				So(err, ShouldBeNil)
				So(res.TrueState, ShouldResemble, start)
				So(res.Correct, ShouldBeTrue)
			}
			So(loc.Report().Accuracy(), ShouldEqual, 1.0)
		})
	})
}

func TestReport(t *testing.T) {
	Convey("When recording ticks", t, func() {
		rp := NewReport()
		So(rp.Accuracy(), ShouldEqual, 0.0)
		So(rp.MeanEuclidean(), ShouldEqual, 0.0)

		rp.Record(TickResult{Correct: true})
		rp.Record(TickResult{Predicted: hmm.Prediction{Row: 3, Col: 4}, Euclidean: 5, Manhattan: 7})
		rp.Record(TickResult{Correct: true})
		rp.Record(TickResult{Euclidean: 1, Manhattan: 1})

		So(rp.Iterations(), ShouldEqual, 4)
		So(rp.NumCorrect(), ShouldEqual, 2)
		So(rp.Accuracy(), ShouldEqual, 0.5)
		So(rp.MeanEuclidean(), ShouldEqual, 1.5)
		So(rp.MeanManhattan(), ShouldEqual, 2.0)
		So(rp.RunningAccuracy(), ShouldResemble, []float64{1, 0.5, 2.0 / 3, 0.5})
		So(rp.History()[1].Iteration, ShouldEqual, 2)

		iteration, accuracy := rp.Snapshot()
		So(iteration, ShouldEqual, 4)
		So(accuracy, ShouldEqual, 0.5)
	})

	Convey("Distances between cells", t, func() {
		So(euclidean(0, 0, 3, 4), ShouldEqual, 5.0)
		So(manhattan(0, 0, 3, -4), ShouldEqual, 7)
	})
}

func TestRunConfig(t *testing.T) {
	Convey("When loading a run config", t, func() {
		dir := t.TempDir()
		write := func(body string) string {
			path := filepath.Join(dir, "config.yaml")
			So(os.WriteFile(path, []byte(body), 0o644), ShouldBeNil)
			return path
		}

		Convey("The definition is decoded over the defaults", func() {
			path := write(`
kind: localizer
def:
  grid:
    rows: 5
    cols: 6
  seed: 42
  tick_interval: 10ms
  run_deadline:
    duration: 1m
`)
			cfg, err := FromYaml(path)
			So(err, ShouldBeNil)
			So(cfg.Grid, ShouldResemble, GridConfig{Rows: 5, Cols: 6})
			So(*cfg.Seed, ShouldEqual, uint64(42))
			So(cfg.Ticks, ShouldEqual, DefaultRunConfig().Ticks)
			interval, err := cfg.Interval()
			So(err, ShouldBeNil)
			So(interval, ShouldEqual, 10*time.Millisecond)

			lc := cfg.LocalizerConfig()
			So(lc.Rows, ShouldEqual, 5)
			So(lc.Headings, ShouldEqual, models.NUM_HEADINGS)

			ctx, cancel, err := cfg.WithRunDeadline(context.Background())
			So(err, ShouldBeNil)
			defer cancel()
			_, hasDeadline := ctx.Deadline()
			So(hasDeadline, ShouldBeTrue)
		})

		Convey("Another kind of config is rejected", func() {
			_, err := FromYaml(write("kind: training\ndef: {}\n"))
			So(errors.Is(err, ErrInvalidConfig), ShouldBeTrue)
		})

		Convey("A missing file is an error", func() {
			_, err := FromYaml(filepath.Join(dir, "missing.yaml"))
			So(err, ShouldNotBeNil)
		})

		Convey("A bad deadline is an error", func() {
			cfg := DefaultRunConfig()
			cfg.RunDeadline = map[string]string{"duration": "soon"}
			_, _, err := cfg.WithRunDeadline(context.Background())
			So(err, ShouldNotBeNil)
		})
	})
}
