// charts renders the end-of-run report: an html page of interactive charts and a static
// png of the per-tick estimation error.
package charts

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strconv"

	"localizer/localizer"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

const (
	PAGE_FILE  = "index.html"
	ERROR_FILE = "error.png"
)

// ErrEmptyRun is returned when there is nothing to plot.
var ErrEmptyRun error = errors.New("no ticks recorded")

// Run is what the report needs from a finished localizer run.
type Run interface {
	Report() *localizer.Report
	Frame() localizer.Frame
	Seed() uint64
}

// WriteReport writes PAGE_FILE and ERROR_FILE under dir, creating it if needed, and returns
// the paths written.
func WriteReport(dir string, run Run) (paths []string, err error) {
	if run.Report().Iterations() == 0 {
		return nil, ErrEmptyRun
	}
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("report dir: %w", err)
	}

	pagePath := filepath.Join(dir, PAGE_FILE)
	if err = writePage(pagePath, run); err != nil {
		return nil, err
	}
	errorPath := filepath.Join(dir, ERROR_FILE)
	if err = writeErrorPlot(errorPath, run.Report()); err != nil {
		return nil, err
	}
	return []string{pagePath, errorPath}, nil
}

func writePage(path string, run Run) (err error) {
	page := components.NewPage()
	page.SetPageTitle(fmt.Sprintf("Localization report (seed %d)", run.Seed()))
	page.AddCharts(
		accuracyLine(run.Report()),
		beliefHeatMap(run.Frame()),
	)

	var f *os.File
	if f, err = os.Create(path); err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()
	if err = page.Render(f); err != nil {
		err = fmt.Errorf("render %s: %w", path, err)
	}
	return
}

// accuracyLine plots the running accuracy against the tick number.
func accuracyLine(rp *localizer.Report) *charts.Line {
	running := rp.RunningAccuracy()
	ticks := make([]string, len(running))
	data := make([]opts.LineData, len(running))
	for i, acc := range running {
		ticks[i] = strconv.Itoa(i + 1)
		data[i] = opts.LineData{Value: acc}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Running accuracy",
			Subtitle: fmt.Sprintf("ticks=%d correct=%d mean manhattan=%.2f", rp.Iterations(), rp.NumCorrect(), rp.MeanManhattan()),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "tick", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "accuracy", Min: 0, Max: 1}),
	)
	line.SetXAxis(ticks).AddSeries("accuracy", data)
	return line
}

// beliefHeatMap shows the final cell marginals with the true and predicted cells named in the
// subtitle. Row 0 is drawn at the top, as on the console.
func beliefHeatMap(frame localizer.Frame) *charts.HeatMap {
	cols := make([]string, frame.Cols)
	for c := range cols {
		cols[c] = strconv.Itoa(c)
	}
	rows := make([]string, frame.Rows)
	for r := range rows {
		rows[r] = strconv.Itoa(r)
	}

	maxProb := 0.0
	data := make([]opts.HeatMapData, 0, frame.Rows*frame.Cols)
	for r, row := range frame.Marginals {
		for c, p := range row {
			maxProb = max(maxProb, p)
			data = append(data, opts.HeatMapData{Value: [3]interface{}{c, r, p}})
		}
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: "Final belief",
			Subtitle: fmt.Sprintf("truth=(%d,%d) predicted=(%d,%d) p=%.3f",
				frame.Truth.Row, frame.Truth.Col,
				frame.Predicted.Row, frame.Predicted.Col, frame.Predicted.Confidence),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Data: cols, Name: "col"}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: rows, Name: "row", Inverse: opts.Bool(true)}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxProb),
			InRange:    &opts.VisualMapInRange{Color: []string{"#440154", "#31688e", "#35b779", "#fde725"}},
		}),
	)
	hm.SetXAxis(cols).AddSeries("belief", data)
	return hm
}

// writeErrorPlot saves the per-tick euclidean and manhattan distance between truth and
// estimate as a png.
func writeErrorPlot(path string, rp *localizer.Report) error {
	history := rp.History()
	euclidPts := make(plotter.XYs, len(history))
	manhattanPts := make(plotter.XYs, len(history))
	for i, result := range history {
		euclidPts[i] = plotter.XY{X: float64(result.Iteration), Y: result.Euclidean}
		manhattanPts[i] = plotter.XY{X: float64(result.Iteration), Y: float64(result.Manhattan)}
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Estimation error (accuracy %.3f)", rp.Accuracy())
	p.X.Label.Text = "Tick"
	p.Y.Label.Text = "Distance (cells)"

	euclidLine, err := plotter.NewLine(euclidPts)
	if err != nil {
		return err
	}
	euclidLine.Color = color.RGBA{R: 31, G: 104, B: 142, A: 255}
	euclidLine.Width = vg.Points(1)

	manhattanLine, err := plotter.NewLine(manhattanPts)
	if err != nil {
		return err
	}
	manhattanLine.Color = color.RGBA{R: 230, G: 120, B: 20, A: 255}
	manhattanLine.Width = vg.Points(1)

	p.Add(plotter.NewGrid(), euclidLine, manhattanLine)
	p.Legend.Add("euclidean", euclidLine)
	p.Legend.Add("manhattan", manhattanLine)
	p.Legend.Top = true
	p.Legend.Left = false

	if err = p.Save(10*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
