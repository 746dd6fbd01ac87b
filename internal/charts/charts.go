// Package charts renders activity matrices as a static PNG heatmap and an
// interactive HTML heatmap.
package charts

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/tphakala/birdnet-listener/internal/errors"
)

// ErrEmptyMatrix is returned for a matrix without rows or columns.
var ErrEmptyMatrix = errors.NewStd("charts: empty activity matrix")

const (
	pngWidth  = 10 * vg.Inch
	pngHeight = 4 * vg.Inch
	colors    = 64
)

// activityGrid exposes a rows×hours matrix as a plotter.GridXYZ, with
// hour of day on x and block on y.
type activityGrid struct {
	data *mat.Dense
}

func newActivityGrid(matrix [][]int) (activityGrid, error) {
	if len(matrix) == 0 || len(matrix[0]) == 0 {
		return activityGrid{}, ErrEmptyMatrix
	}
	rows, cols := len(matrix), len(matrix[0])
	data := mat.NewDense(rows, cols, nil)
	for r, row := range matrix {
		if len(row) != cols {
			return activityGrid{}, fmt.Errorf("charts: row %d has %d columns, want %d", r, len(row), cols)
		}
		for c, v := range row {
			data.Set(r, c, float64(v))
		}
	}
	return activityGrid{data: data}, nil
}

func (g activityGrid) Dims() (c, r int) {
	r, c = g.data.Dims()
	return c, r
}

func (g activityGrid) Z(c, r int) float64 { return g.data.At(r, c) }
func (g activityGrid) X(c int) float64    { return float64(c) }
func (g activityGrid) Y(r int) float64    { return float64(r) }

// blockLabel names row r of n: the last row is the current block.
func blockLabel(r, n int) string {
	age := n - 1 - r
	if age == 0 {
		return "now"
	}
	return "-" + strconv.Itoa(age)
}

// ActivityPNG renders the matrix as a heatmap and returns PNG bytes.
func ActivityPNG(matrix [][]int, title string) ([]byte, error) {
	grid, err := newActivityGrid(matrix)
	if err != nil {
		return nil, err
	}
	_, rows := grid.Dims()

	cmap := moreland.Kindlmann()
	cmap.SetMin(0)
	cmap.SetMax(1)

	heat := plotter.NewHeatMap(grid, cmap.Palette(colors))
	if heat.Max <= heat.Min {
		heat.Max = heat.Min + 1
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Hour of day"
	p.Y.Label.Text = "Days ago"
	p.X.Tick.Marker = plot.TickerFunc(func(_, _ float64) []plot.Tick {
		ticks := make([]plot.Tick, 0, 8)
		for h := 0; h < 24; h += 3 {
			ticks = append(ticks, plot.Tick{Value: float64(h), Label: fmt.Sprintf("%02d", h)})
		}
		return ticks
	})
	p.Y.Tick.Marker = plot.TickerFunc(func(_, _ float64) []plot.Tick {
		ticks := make([]plot.Tick, rows)
		for r := range ticks {
			ticks[r] = plot.Tick{Value: float64(r), Label: blockLabel(r, rows)}
		}
		return ticks
	})
	p.Add(heat)

	w, err := p.WriterTo(pngWidth, pngHeight, "png")
	if err != nil {
		return nil, fmt.Errorf("charts: create png writer: %w", err)
	}
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("charts: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// ActivityHTML renders the matrix as a standalone interactive page.
func ActivityHTML(matrix [][]int, title string) ([]byte, error) {
	grid, err := newActivityGrid(matrix)
	if err != nil {
		return nil, err
	}
	cols, rows := grid.Dims()

	hours := make([]string, cols)
	for c := range hours {
		hours[c] = fmt.Sprintf("%02d", c)
	}
	blocks := make([]string, rows)
	for r := range blocks {
		blocks[r] = blockLabel(r, rows)
	}

	data := make([]opts.HeatMapData, 0, rows*cols)
	peak := 1
	for r, row := range matrix {
		for c, v := range row {
			data = append(data, opts.HeatMapData{Value: [3]any{c, r, v}})
			peak = max(peak, v)
		}
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: title,
			Width:     "100%",
			Height:    "420px",
		}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Name: "Hour", Data: hours}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Name: "Days ago", Data: blocks}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(peak),
			InRange:    &opts.VisualMapInRange{Color: []string{"#1b1b3a", "#2e5c8a", "#3fa7a0", "#9fd356", "#fde725"}},
		}),
	)
	hm.AddSeries("detections", data)

	var buf bytes.Buffer
	if err := hm.Render(&buf); err != nil {
		return nil, fmt.Errorf("charts: render html: %w", err)
	}
	return buf.Bytes(), nil
}
