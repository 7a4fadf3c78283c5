package chart

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"quotechart/internal/config"
	"quotechart/internal/storage"
)

// ErrUnknownSeries is returned for a series name that is not a column of
// the quote series.
var ErrUnknownSeries = errors.New("chart: unknown series")

// Series names a plottable column of storage.QuoteSeriesRow.
type Series string

const (
	LastTradePrice  Series = config.SeriesLastTradePrice
	PriceDifference Series = config.SeriesPriceDifference
	AgeDifference   Series = config.SeriesAgeDifference
)

// DefaultTitle is the chart title used when none is configured.
const DefaultTitle = "quote_snapshots"

// ParseSeries validates configured series names, keeping their order.
func ParseSeries(names []string) ([]Series, error) {
	out := make([]Series, 0, len(names))
	seen := make(map[Series]bool, len(names))
	for _, name := range names {
		s := Series(name)
		switch s {
		case LastTradePrice, PriceDifference, AgeDifference:
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownSeries, name)
		}
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out, nil
}

// points extracts the series, skipping rows where the value is null.
func (s Series) points(rows []storage.QuoteSeriesRow) ([]time.Time, []float64) {
	xs := make([]time.Time, 0, len(rows))
	ys := make([]float64, 0, len(rows))
	for _, row := range rows {
		switch s {
		case LastTradePrice:
			xs = append(xs, row.ScrapedAt)
			ys = append(ys, row.LastTradePrice.InexactFloat64())
		case PriceDifference:
			if !row.PriceDifference.Valid {
				continue
			}
			xs = append(xs, row.ScrapedAt)
			ys = append(ys, row.PriceDifference.Decimal.InexactFloat64())
		case AgeDifference:
			if row.AgeDifference == nil {
				continue
			}
			xs = append(xs, row.ScrapedAt)
			ys = append(ys, float64(*row.AgeDifference))
		}
	}
	return xs, ys
}

// secondary reports whether the series is plotted against the right axis.
// Age deltas are seconds, not price units.
func (s Series) secondary() bool {
	return s == AgeDifference
}

// Options shape a rendered chart.
type Options struct {
	Title  string
	Width  int
	Height int
	Series []Series
	// Anchor positions the time axis when there is no data to plot.
	Anchor time.Time
}

func (o Options) withDefaults() Options {
	if o.Title == "" {
		o.Title = DefaultTitle
	}
	if o.Width <= 0 {
		o.Width = 1280
	}
	if o.Height <= 0 {
		o.Height = 720
	}
	if len(o.Series) == 0 {
		o.Series = []Series{LastTradePrice}
	}
	if o.Anchor.IsZero() {
		o.Anchor = time.Unix(0, 0).UTC()
	}
	return o
}

// Build assembles the chart for rows, which must already be in time order.
func Build(rows []storage.QuoteSeriesRow, opts Options) gochart.Chart {
	opts = opts.withDefaults()

	priceFormatter := func(v interface{}) string {
		return gochart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := gochart.Chart{
		Title:  opts.Title,
		Width:  opts.Width,
		Height: opts.Height,
		Background: gochart.Style{
			Padding: gochart.Box{Top: 50, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: gochart.XAxis{
			ValueFormatter: gochart.TimeValueFormatter,
		},
		YAxis: gochart.YAxis{
			ValueFormatter: priceFormatter,
		},
	}

	var primary, secondary, xs bounds
	for _, s := range opts.Series {
		x, y := s.points(rows)
		if len(x) == 0 {
			continue
		}
		ts := gochart.TimeSeries{
			Name:    string(s),
			XValues: x,
			YValues: y,
		}
		if s.secondary() {
			ts.YAxis = gochart.YAxisSecondary
			graph.YAxisSecondary = gochart.YAxis{Name: "seconds"}
			secondary.addFloats(y)
		} else {
			primary.addFloats(y)
		}
		xs.addTimes(x)
		graph.Series = append(graph.Series, ts)
	}

	if len(graph.Series) == 0 {
		graph.Series = []gochart.Series{placeholder(opts)}
		xs.addTimes([]time.Time{opts.Anchor})
		primary.addFloats([]float64{0})
	}

	if xs.degenerate() {
		graph.XAxis.Range = &gochart.ContinuousRange{
			Min: xs.min - float64(time.Minute),
			Max: xs.max + float64(time.Minute),
		}
	}
	switch {
	case primary.n == 0:
		graph.YAxis.Range = &gochart.ContinuousRange{Min: 0, Max: 1}
	case primary.degenerate():
		graph.YAxis.Range = &gochart.ContinuousRange{Min: primary.min - 1, Max: primary.max + 1}
	}
	if secondary.degenerate() {
		graph.YAxisSecondary.Range = &gochart.ContinuousRange{Min: secondary.min - 1, Max: secondary.max + 1}
	}

	graph.Elements = []gochart.Renderable{gochart.Legend(&graph)}
	return graph
}

// placeholder keeps the chart renderable without data: an invisible line
// under the primary series name.
func placeholder(opts Options) gochart.TimeSeries {
	name := LastTradePrice
	for _, s := range opts.Series {
		if !s.secondary() {
			name = s
			break
		}
	}
	return gochart.TimeSeries{
		Name:    string(name),
		Style:   gochart.Style{StrokeColor: drawing.ColorTransparent, StrokeWidth: 1},
		XValues: []time.Time{opts.Anchor, opts.Anchor},
		YValues: []float64{0, 0},
	}
}

// Render writes the chart for rows as PNG.
func Render(w io.Writer, rows []storage.QuoteSeriesRow, opts Options) error {
	graph := Build(rows, opts)
	if err := graph.Render(gochart.PNG, w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

// bounds tracks min/max of plotted values; x values are unix nanoseconds,
// matching go-chart's time mapping.
type bounds struct {
	min, max float64
	n        int
}

func (b *bounds) addFloats(vs []float64) {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if b.n == 0 || v < b.min {
			b.min = v
		}
		if b.n == 0 || v > b.max {
			b.max = v
		}
		b.n++
	}
}

func (b *bounds) addTimes(ts []time.Time) {
	vs := make([]float64, len(ts))
	for i, t := range ts {
		vs[i] = gochart.TimeToFloat64(t)
	}
	b.addFloats(vs)
}

func (b bounds) degenerate() bool {
	return b.n > 0 && b.max-b.min == 0
}
