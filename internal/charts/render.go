package charts

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/reportloom-cli/internal/analysis"
	"github.com/KaramelBytes/reportloom-cli/internal/utils"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	histogramBins = 20
	maxLineTicks  = 20
	fallbackName  = "chart"
)

// RenderConfig fixes the output image geometry. It is set once when the
// Renderer is built.
type RenderConfig struct {
	Width  int
	Height int
	DPI    float64
}

// DefaultRenderConfig matches a 6x4 inch figure at 100 DPI.
func DefaultRenderConfig() RenderConfig {
	return RenderConfig{Width: 600, Height: 400, DPI: 100}
}

// RenderResult pairs a plan entry with the image written for it.
type RenderResult struct {
	Entry        PlanEntry
	ArtifactPath string
}

// Renderer draws validated plan entries to PNG files.
type Renderer struct {
	cfg RenderConfig
	log *zap.Logger
}

// NewRenderer returns a Renderer. Zero sizes fall back to the defaults.
func NewRenderer(cfg RenderConfig, log *zap.Logger) *Renderer {
	def := DefaultRenderConfig()
	if cfg.Width <= 0 {
		cfg.Width = def.Width
	}
	if cfg.Height <= 0 {
		cfg.Height = def.Height
	}
	if cfg.DPI <= 0 {
		cfg.DPI = def.DPI
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Renderer{cfg: cfg, log: log.Named("render")}
}

// Render writes one PNG per entry into outputDir, creating it if needed.
// An entry that fails to render is logged and skipped; the returned slice
// holds the successes in plan order. The only error is failing to create
// outputDir.
func (r *Renderer) Render(plan []PlanEntry, t *analysis.Table, outputDir string) ([]RenderResult, error) {
	if err := utils.EnsureDir(outputDir); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	names := artifactNames(plan)
	out := make([]RenderResult, 0, len(plan))
	for i, e := range plan {
		path := filepath.Join(outputDir, names[i])
		if err := r.renderEntry(e, t, path); err != nil {
			r.log.Warn("chart skipped", zap.String("chart", e.String()), zap.Error(err))
			continue
		}
		r.log.Debug("chart written", zap.String("chart", e.String()), zap.String("path", path))
		out = append(out, RenderResult{Entry: e, ArtifactPath: path})
	}
	return out, nil
}

// artifactNames derives file names from titles. A name already taken in
// the plan gets the next free numeric suffix, so entries never overwrite
// each other. Names are compared case-insensitively.
func artifactNames(plan []PlanEntry) []string {
	used := make(map[string]bool, len(plan))
	out := make([]string, len(plan))
	for i, e := range plan {
		base := utils.SafeFilename(e.Title())
		if base == "" {
			base = fallbackName
		}
		name := base
		for n := 2; used[strings.ToLower(name)]; n++ {
			name = base + "_" + strconv.Itoa(n)
		}
		used[strings.ToLower(name)] = true
		out[i] = name + ".png"
	}
	return out
}

func (r *Renderer) renderEntry(e PlanEntry, t *analysis.Table, path string) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("render panic: %v", p)
		}
	}()
	var buf bytes.Buffer
	switch e.Type() {
	case Bar:
		err = r.bar(e, t, &buf)
	case Line:
		err = r.line(e, t, &buf)
	case Scatter:
		err = r.scatter(e, t, &buf)
	case Histogram:
		err = r.histogram(e, t, &buf)
	default:
		err = fmt.Errorf("%w: %s", errUnsupportedType, e.Type())
	}
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(path, buf.Bytes())
}

var errNoData = errors.New("no plottable values")

func (r *Renderer) columns(e PlanEntry, t *analysis.Table) (*analysis.Column, *analysis.Column, error) {
	x, ok := t.Column(e.X())
	if !ok {
		return nil, nil, fmt.Errorf("%w: x=%q", errUnknownColumn, e.X())
	}
	yName, hasY := e.Y()
	if !hasY {
		return x, nil, nil
	}
	y, ok := t.Column(yName)
	if !ok {
		return nil, nil, fmt.Errorf("%w: y=%q", errUnknownColumn, yName)
	}
	return x, y, nil
}

func (r *Renderer) base(e PlanEntry) chart.Chart {
	return chart.Chart{
		Title:      e.Title(),
		Width:      r.cfg.Width,
		Height:     r.cfg.Height,
		DPI:        r.cfg.DPI,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
	}
}

// bar plots the mean of y for each x group, groups in first-seen order.
func (r *Renderer) bar(e PlanEntry, t *analysis.Table, buf *bytes.Buffer) error {
	xc, yc, err := r.columns(e, t)
	if err != nil {
		return err
	}
	ys := yc.Floats()
	type group struct {
		sum float64
		n   int
	}
	groups := map[string]*group{}
	var order []string
	for i, xv := range xc.Values {
		if xv.IsMissing() {
			continue
		}
		key := xv.String()
		g, ok := groups[key]
		if !ok {
			g = &group{}
			groups[key] = g
			order = append(order, key)
		}
		if finite(ys[i]) {
			g.sum += ys[i]
			g.n++
		}
	}
	bars := make([]chart.Value, 0, len(order))
	for _, key := range order {
		g := groups[key]
		if g.n == 0 {
			continue
		}
		bars = append(bars, chart.Value{Label: key, Value: g.sum / float64(g.n)})
	}
	if len(bars) == 0 {
		return errNoData
	}
	vals := make([]float64, len(bars))
	for i, b := range bars {
		vals[i] = b.Value
	}
	lo, hi := paddedRange(math.Min(0, floats.Min(vals)), math.Max(0, floats.Max(vals)))
	usable := r.cfg.Width - 120
	barWidth := max(1, usable*2/(3*len(bars)))
	bc := chart.BarChart{
		Title:      e.Title(),
		Width:      r.cfg.Width,
		Height:     r.cfg.Height,
		DPI:        r.cfg.DPI,
		Background: chart.Style{Padding: chart.Box{Top: 40}},
		BarWidth:   barWidth,
		BarSpacing: max(1, barWidth/2),
		YAxis:      chart.YAxis{Range: &chart.ContinuousRange{Min: lo, Max: hi}},
		Bars:       bars,
	}
	return bc.Render(chart.PNG, buf)
}

// line plots y against x in row order. Numeric x is used as is, dates get a
// time axis and anything else is plotted by row position with x as labels.
func (r *Renderer) line(e PlanEntry, t *analysis.Table, buf *bytes.Buffer) error {
	xc, yc, err := r.columns(e, t)
	if err != nil {
		return err
	}
	ys := yc.Floats()
	style := chart.Style{StrokeColor: chart.ColorBlue, StrokeWidth: 2}
	ch := r.base(e)
	ch.XAxis = chart.XAxis{Name: e.X()}
	ch.YAxis = chart.YAxis{Name: yc.Name}

	var xs, yv []float64
	switch axisKind(xc) {
	case axisTime:
		var times []time.Time
		for i, v := range xc.Values {
			tm, ok := cellTime(v)
			if !ok || !finite(ys[i]) {
				continue
			}
			times = append(times, tm)
			xs = append(xs, chart.TimeToFloat64(tm))
			yv = append(yv, ys[i])
		}
		if len(times) == 0 {
			return errNoData
		}
		times, yv = singlePointTimes(times, yv)
		ch.Series = []chart.Series{chart.TimeSeries{Name: yc.Name, XValues: times, YValues: yv, Style: style}}
		lo, hi := paddedTimeRange(floats.Min(xs), floats.Max(xs))
		ch.XAxis.Range = &chart.ContinuousRange{Min: lo, Max: hi}
		ch.XAxis.ValueFormatter = chart.TimeValueFormatterWithFormat("2006-01-02")
	case axisNumber:
		for i, v := range xc.Values {
			if v.Kind != analysis.ValueNumber || !finite(v.Num) || !finite(ys[i]) {
				continue
			}
			xs = append(xs, v.Num)
			yv = append(yv, ys[i])
		}
		if len(xs) == 0 {
			return errNoData
		}
		lo, hi := paddedRange(floats.Min(xs), floats.Max(xs))
		xs, yv = singlePoint(xs, yv)
		ch.Series = []chart.Series{chart.ContinuousSeries{Name: yc.Name, XValues: xs, YValues: yv, Style: style}}
		ch.XAxis.Range = &chart.ContinuousRange{Min: lo, Max: hi}
	default:
		var labels []string
		for i, v := range xc.Values {
			if !finite(ys[i]) {
				continue
			}
			xs = append(xs, float64(len(xs)))
			yv = append(yv, ys[i])
			labels = append(labels, v.String())
		}
		if len(xs) == 0 {
			return errNoData
		}
		// Explicit ticks also fix the x range to [first tick, last tick].
		ch.XAxis.Ticks = positionTicks(labels)
		xs, yv = singlePoint(xs, yv)
		ch.Series = []chart.Series{chart.ContinuousSeries{Name: yc.Name, XValues: xs, YValues: yv, Style: style}}
	}
	lo, hi := paddedRange(floats.Min(yv), floats.Max(yv))
	ch.YAxis.Range = &chart.ContinuousRange{Min: lo, Max: hi}
	return ch.Render(chart.PNG, buf)
}

// scatter plots every row where both x and y are finite numbers as a
// semi-transparent dot.
func (r *Renderer) scatter(e PlanEntry, t *analysis.Table, buf *bytes.Buffer) error {
	xc, yc, err := r.columns(e, t)
	if err != nil {
		return err
	}
	xsAll, ysAll := xc.Floats(), yc.Floats()
	var xs, ys []float64
	for i := range xsAll {
		if finite(xsAll[i]) && finite(ysAll[i]) {
			xs = append(xs, xsAll[i])
			ys = append(ys, ysAll[i])
		}
	}
	if len(xs) == 0 {
		return errNoData
	}
	ch := r.base(e)
	xlo, xhi := paddedRange(floats.Min(xs), floats.Max(xs))
	ylo, yhi := paddedRange(floats.Min(ys), floats.Max(ys))
	ch.XAxis = chart.XAxis{Name: xc.Name, Range: &chart.ContinuousRange{Min: xlo, Max: xhi}}
	ch.YAxis = chart.YAxis{Name: yc.Name, Range: &chart.ContinuousRange{Min: ylo, Max: yhi}}
	xs, ys = singlePoint(xs, ys)
	ch.Series = []chart.Series{chart.ContinuousSeries{
		XValues: xs,
		YValues: ys,
		Style:   dotStyle(chart.ColorBlue.WithAlpha(128)),
	}}
	return ch.Render(chart.PNG, buf)
}

// histogram draws 20 equal-width bins over the finite numeric values of x.
func (r *Renderer) histogram(e PlanEntry, t *analysis.Table, buf *bytes.Buffer) error {
	xc, _, err := r.columns(e, t)
	if err != nil {
		return err
	}
	var vals []float64
	for _, v := range xc.Floats() {
		if finite(v) {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return errNoData
	}
	sort.Float64s(vals)
	lo, hi := vals[0], vals[len(vals)-1]
	name := xc.Name
	if !finite(hi - lo) {
		// The span overflows float64; bin in units of the largest magnitude.
		scale := math.Max(math.Abs(lo), math.Abs(hi))
		for i := range vals {
			vals[i] /= scale
		}
		lo, hi = lo/scale, hi/scale
		name = fmt.Sprintf("%s (x %.3g)", name, scale)
	}
	if lo == hi {
		lo, hi = paddedRange(lo, hi)
	}
	dividers := make([]float64, histogramBins+1)
	floats.Span(dividers, lo, hi)
	// stat.Histogram bins are half-open; nudge the last edge so max lands in the final bin.
	dividers[histogramBins] = math.Nextafter(hi, math.Inf(1))
	counts := stat.Histogram(nil, dividers, vals, nil)

	// Outline of the bars as one filled step series.
	xs := make([]float64, 0, 4*len(counts))
	ys := make([]float64, 0, 4*len(counts))
	for i, c := range counts {
		xs = append(xs, dividers[i], dividers[i], dividers[i+1], dividers[i+1])
		ys = append(ys, 0, c, c, 0)
	}
	ch := r.base(e)
	ch.XAxis = chart.XAxis{Name: name, Range: &chart.ContinuousRange{Min: lo, Max: hi}}
	ch.YAxis = chart.YAxis{Name: "count", Range: &chart.ContinuousRange{Min: 0, Max: floats.Max(counts) * 1.05}}
	ch.Series = []chart.Series{chart.ContinuousSeries{
		XValues: xs,
		YValues: ys,
		Style: chart.Style{
			StrokeColor: chart.ColorBlue,
			StrokeWidth: 1,
			FillColor:   chart.ColorBlue.WithAlpha(96),
		},
	}}
	return ch.Render(chart.PNG, buf)
}

func dotStyle(col drawing.Color) chart.Style {
	return chart.Style{
		StrokeWidth: chart.Disabled,
		DotWidth:    4,
		DotColor:    col,
	}
}

type axis int

const (
	axisCategory axis = iota
	axisNumber
	axisTime
)

// axisKind picks the x axis for a line chart from the present cells.
func axisKind(c *analysis.Column) axis {
	present := c.Present()
	if len(present) == 0 {
		return axisCategory
	}
	switch c.Dtype {
	case analysis.DtypeNumeric:
		return axisNumber
	case analysis.DtypeDatetime:
		return axisTime
	}
	for _, v := range present {
		if _, ok := cellTime(v); !ok {
			return axisCategory
		}
	}
	return axisTime
}

func cellTime(v analysis.Value) (time.Time, bool) {
	switch v.Kind {
	case analysis.ValueDate:
		return v.Time, true
	case analysis.ValueText:
		return analysis.ParseDate(v.Raw)
	}
	return time.Time{}, false
}

func positionTicks(labels []string) []chart.Tick {
	stride := 1
	if len(labels) > maxLineTicks {
		stride = (len(labels) + maxLineTicks - 1) / maxLineTicks
	}
	ticks := make([]chart.Tick, 0, len(labels)/stride+2)
	for i := 0; i < len(labels); i += stride {
		ticks = append(ticks, chart.Tick{Value: float64(i), Label: labels[i]})
	}
	if last := len(labels) - 1; last%stride != 0 {
		ticks = append(ticks, chart.Tick{Value: float64(last), Label: labels[last]})
	}
	if len(labels) == 1 {
		ticks = append(ticks, chart.Tick{Value: 1, Label: ""})
	}
	return ticks
}

// paddedRange widens a degenerate range so the axis has a non-zero span.
func paddedRange(lo, hi float64) (float64, float64) {
	if lo == hi {
		pad := math.Max(math.Abs(lo)*0.1, 0.5)
		return lo - pad, hi + pad
	}
	pad := (hi - lo) * 0.05
	if !finite(pad) {
		return lo, hi
	}
	return lo - pad, hi + pad
}

func paddedTimeRange(lo, hi float64) (float64, float64) {
	if lo == hi {
		day := chart.TimeToFloat64(time.Unix(0, 0).Add(24*time.Hour)) - chart.TimeToFloat64(time.Unix(0, 0))
		return lo - day, hi + day
	}
	return lo, hi
}

// singlePoint duplicates a lone point; the chart library needs two values
// per series.
func singlePoint(xs, ys []float64) ([]float64, []float64) {
	if len(xs) == 1 {
		return []float64{xs[0], xs[0]}, []float64{ys[0], ys[0]}
	}
	return xs, ys
}

func singlePointTimes(ts []time.Time, ys []float64) ([]time.Time, []float64) {
	if len(ts) == 1 {
		return []time.Time{ts[0], ts[0]}, []float64{ys[0], ys[0]}
	}
	return ts, ys
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
