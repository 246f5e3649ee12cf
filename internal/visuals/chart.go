// Package visuals renders spending charts as PNG images.
package visuals

import (
	"fmt"
	"io"
	"time"

	"github.com/wcharczuk/go-chart/v2"

	"finbot/internal/core"
)

// RenderDailySpending writes a date-vs-total line chart for the given day
// totals as a PNG. Callers must make sure totals is non-empty; the chart
// library cannot draw an empty series.
func RenderDailySpending(w io.Writer, totals []core.DayTotal) error {
	if len(totals) == 0 {
		return fmt.Errorf("no data points to plot")
	}

	// The chart library needs a non-degenerate range, so a single day is
	// extended by one flat day.
	if len(totals) == 1 {
		next := totals[0]
		next.Date = core.Date{Time: next.Date.AddDate(0, 0, 1)}
		totals = append(totals, next)
	}

	xs := make([]time.Time, len(totals))
	ys := make([]float64, len(totals))
	for i, dt := range totals {
		xs[i] = dt.Date.Time
		ys[i] = dt.Total.Units()
	}

	graph := chart.Chart{
		Title:  "Daily Spending Over Time",
		Width:  1000,
		Height: 500,
		XAxis: chart.XAxis{
			Name:           "Date",
			ValueFormatter: chart.TimeValueFormatterWithFormat(core.DateLayout),
		},
		YAxis: chart.YAxis{
			Name: "Amount Spent",
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "daily total",
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeWidth: 2.0,
					DotWidth:    3.0,
				},
			},
		},
	}

	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render daily spending chart: %w", err)
	}
	return nil
}
