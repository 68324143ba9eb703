package report

import (
	"io"
	"os"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"github.com/salesflow/salesflow/internal/model"
	"github.com/salesflow/salesflow/pkg/metrics"
)

// writeCategoryChart renders the revenue-by-category bar chart.
// Returns false without error when there is nothing to plot.
func writeCategoryChart(path string, table *metrics.Table) (bool, error) {
	rows := table.RowsByRevenue()
	if len(rows) == 0 {
		return false, nil
	}

	bars := make([]chart.Value, 0, len(rows))
	for _, g := range rows {
		bars = append(bars, chart.Value{Label: g.Key, Value: g.Revenue.InexactFloat64()})
	}

	// Widen the canvas with the bar count so labels stay readable.
	width := 120 + 80*len(bars)
	if width < 512 {
		width = 512
	}

	graph := chart.BarChart{
		Title:      "Revenue by category",
		Background: chart.Style{Padding: chart.Box{Top: 40}},
		Width:      width,
		Height:     512,
		BarWidth:   50,
		Bars:       bars,
		YAxis:      chart.YAxis{ValueFormatter: chart.FloatValueFormatter},
	}

	return true, renderPNG(path, graph.Render)
}

// writeDailyChart renders the daily-revenue time series. A single
// day cannot form a line, so fewer than two days skips the chart.
func writeDailyChart(path string, table *metrics.Table) (bool, error) {
	rows := table.RowsByKey()
	if len(rows) < 2 {
		return false, nil
	}

	xs := make([]time.Time, 0, len(rows))
	ys := make([]float64, 0, len(rows))
	for _, g := range rows {
		day, err := time.Parse(model.DayLayout, g.Key)
		if err != nil {
			return false, err
		}
		xs = append(xs, day)
		ys = append(ys, g.Revenue.InexactFloat64())
	}

	graph := chart.Chart{
		Title:      "Daily revenue",
		Background: chart.Style{Padding: chart.Box{Top: 40}},
		Width:      900,
		Height:     512,
		XAxis:      chart.XAxis{ValueFormatter: chart.TimeDateValueFormatter},
		YAxis:      chart.YAxis{ValueFormatter: chart.FloatValueFormatter},
		Series: []chart.Series{
			chart.TimeSeries{Name: "revenue", XValues: xs, YValues: ys},
		},
	}

	return true, renderPNG(path, graph.Render)
}

func renderPNG(path string, render func(chart.RendererProvider, io.Writer) error) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := render(chart.PNG, file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
