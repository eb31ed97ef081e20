package plot

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
	gonumplot "gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"perfdash/internal/results"
	"perfdash/internal/telemetry"
)

const (
	chartWidth  = 10 * vg.Inch
	chartHeight = 4 * vg.Inch
)

// NativeEngine computes statistics and renders SVG charts in-process from the
// result files.
type NativeEngine struct {
	data *gocache.Cache
}

// NewNativeEngine creates an engine that keeps parsed result files for ttl.
func NewNativeEngine(ttl time.Duration) *NativeEngine {
	return &NativeEngine{data: gocache.New(ttl, 2*ttl)}
}

func (e *NativeEngine) Name() string { return "native" }

func (e *NativeEngine) load(path string) (*results.DataSet, error) {
	if ds, ok := e.data.Get(path); ok {
		return ds.(*results.DataSet), nil
	}
	ds, err := results.ReadData(path)
	if err != nil {
		return nil, err
	}
	e.data.SetDefault(path, ds)
	telemetry.LogDebug("Loaded result data", "path", path, "benchmarks", len(ds.Benchmarks()))
	return ds, nil
}

func (e *NativeEngine) loadPair(ctx context.Context, run1, run2 Run) (*results.DataSet, *results.DataSet, error) {
	var ds1, ds2 *results.DataSet
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		ds1, err = e.load(run1.Path)
		return err
	})
	g.Go(func() (err error) {
		ds2, err = e.load(run2.Path)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return ds1, ds2, nil
}

// Summary draws one box per benchmark, each normalised to its own mean so
// that benchmarks of different magnitudes share an axis. Run1 stats are taken
// over the per-benchmark means.
func (e *NativeEngine) Summary(ctx context.Context, run Run, start int) (Result, error) {
	ds, err := e.load(run.Path)
	if err != nil {
		return Result{}, err
	}

	names := ds.Benchmarks()
	p := newPlot(fmt.Sprintf("%s: all benchmarks", run.Label), "benchmark", "run time / mean")
	nominalX(p, names)

	var rows []BenchmarkRow
	var means []float64
	for i, name := range names {
		values := ds.Values(name, start)
		s := ComputeStats(values)
		rows = append(rows, BenchmarkRow{Name: name, Run1: s})
		if len(values) == 0 {
			continue
		}
		means = append(means, s.Mean)

		box, err := plotter.NewBoxPlot(vg.Points(20), float64(i), normalise(values, s.Mean))
		if err != nil {
			return Result{}, fmt.Errorf("box plot %s: %w", name, err)
		}
		box.FillColor = plotutil.Color(0)
		p.Add(box)
	}

	markup, err := render(p)
	if err != nil {
		return Result{}, err
	}
	return Result{Plot: markup, Stats: Stats{Run1: ComputeStats(means)}, Rows: rows}, nil
}

// SummaryDiff draws the ratio of run2's to run1's mean per benchmark.
func (e *NativeEngine) SummaryDiff(ctx context.Context, run1, run2 Run, start int) (Result, error) {
	ds1, ds2, err := e.loadPair(ctx, run1, run2)
	if err != nil {
		return Result{}, err
	}

	names := union(ds1.Benchmarks(), ds2.Benchmarks())
	rows := make([]BenchmarkRow, 0, len(names))
	ratios := make(plotter.Values, 0, len(names))
	var means1, means2 []float64
	for _, name := range names {
		v1, v2 := ds1.Values(name, start), ds2.Values(name, start)
		row := BenchmarkRow{Name: name, Run1: ComputeStats(v1), Run2: ComputeStats(v2)}
		if len(v1) > 0 {
			means1 = append(means1, row.Run1.Mean)
		}
		if len(v2) > 0 {
			means2 = append(means2, row.Run2.Mean)
		}
		if len(v1) > 0 && len(v2) > 0 {
			row.Ratio = ratio(row.Run1.Mean, row.Run2.Mean)
		}
		rows = append(rows, row)
		ratios = append(ratios, row.Ratio)
	}

	title := fmt.Sprintf("%s (%s) vs %s (%s)", run1.Label, run1.Date, run2.Label, run2.Date)
	p := newPlot(title, "benchmark", fmt.Sprintf("mean %s / mean %s", run2.Label, run1.Label))
	nominalX(p, names)
	if len(ratios) > 0 {
		bars, err := plotter.NewBarChart(ratios, vg.Points(20))
		if err != nil {
			return Result{}, fmt.Errorf("bar chart: %w", err)
		}
		bars.Color = plotutil.Color(1)
		bars.LineStyle.Width = vg.Length(0)
		baseline := plotter.NewFunction(func(float64) float64 { return 1 })
		baseline.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(bars, baseline)
	}

	markup, err := render(p)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Plot:  markup,
		Stats: Stats{Run1: ComputeStats(means1), Run2: ComputeStats(means2)},
		Rows:  rows,
	}, nil
}

// Benchmark draws the run time of every sample of one benchmark in order.
func (e *NativeEngine) Benchmark(ctx context.Context, run Run, benchmark string, start int) (Result, error) {
	ds, err := e.load(run.Path)
	if err != nil {
		return Result{}, err
	}

	series := ds.Series(benchmark, start)
	p := newPlot(fmt.Sprintf("%s: %s", run.Label, benchmark), "iteration", unitLabel(series))
	if err := addSeries(p, 0, run.Label, series, start); err != nil {
		return Result{}, err
	}

	markup, err := render(p)
	if err != nil {
		return Result{}, err
	}
	s := ComputeStats(ds.Values(benchmark, start))
	return Result{
		Plot:  markup,
		Stats: Stats{Run1: s},
		Rows:  []BenchmarkRow{{Name: benchmark, Run1: s}},
	}, nil
}

// BenchmarkDiff overlays the series of one benchmark from two runs.
func (e *NativeEngine) BenchmarkDiff(ctx context.Context, run1, run2 Run, benchmark string, start int) (Result, error) {
	ds1, ds2, err := e.loadPair(ctx, run1, run2)
	if err != nil {
		return Result{}, err
	}

	series1, series2 := ds1.Series(benchmark, start), ds2.Series(benchmark, start)
	p := newPlot(benchmark, "iteration", unitLabel(series1))
	p.Legend.Top = true
	if err := addSeries(p, 0, run1.Label, series1, start); err != nil {
		return Result{}, err
	}
	if err := addSeries(p, 1, run2.Label, series2, start); err != nil {
		return Result{}, err
	}

	markup, err := render(p)
	if err != nil {
		return Result{}, err
	}
	s1, s2 := ComputeStats(ds1.Values(benchmark, start)), ComputeStats(ds2.Values(benchmark, start))
	return Result{
		Plot:  markup,
		Stats: Stats{Run1: s1, Run2: s2},
		Rows:  []BenchmarkRow{{Name: benchmark, Run1: s1, Run2: s2, Ratio: ratio(s1.Mean, s2.Mean)}},
	}, nil
}

func newPlot(title, x, y string) *gonumplot.Plot {
	p := gonumplot.New()
	p.Title.Text = title
	p.X.Label.Text = x
	p.Y.Label.Text = y
	return p
}

// nominalX labels the x axis with names. A file without samples has no
// names, and gonum's NominalX requires at least one.
func nominalX(p *gonumplot.Plot, names []string) {
	if len(names) > 0 {
		p.NominalX(names...)
	}
}

// addSeries plots samples against their position, offset by the start
// iteration so the x axis matches the URL parameter. Empty series are skipped.
func addSeries(p *gonumplot.Plot, idx int, label string, series []results.Sample, start int) error {
	if len(series) == 0 {
		return nil
	}
	xys := make(plotter.XYs, len(series))
	for i, s := range series {
		xys[i].X = float64(start + i)
		xys[i].Y = s.Value
	}
	line, err := plotter.NewLine(xys)
	if err != nil {
		return fmt.Errorf("line %s: %w", label, err)
	}
	line.LineStyle.Color = plotutil.Color(idx)
	line.LineStyle.Width = vg.Points(1.5)
	p.Add(line)
	p.Legend.Add(label, line)
	return nil
}

func normalise(values []float64, mean float64) plotter.Values {
	out := make(plotter.Values, len(values))
	for i, v := range values {
		out[i] = ratio(mean, v)
	}
	return out
}

func unitLabel(series []results.Sample) string {
	if len(series) == 0 || series[0].Unit == "" {
		return "run time"
	}
	return "run time (" + series[0].Unit + ")"
}

// union keeps a's order and appends names only present in b.
func union(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	out := append([]string(nil), a...)
	for _, n := range a {
		seen[n] = true
	}
	for _, n := range b {
		if !seen[n] {
			out = append(out, n)
			seen[n] = true
		}
	}
	return out
}

// render encodes p as inline SVG, dropping the XML prolog.
func render(p *gonumplot.Plot) (template.HTML, error) {
	wt, err := p.WriterTo(chartWidth, chartHeight, "svg")
	if err != nil {
		return "", fmt.Errorf("svg writer: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return "", fmt.Errorf("render svg: %w", err)
	}
	svg := buf.String()
	if i := strings.Index(svg, "<svg"); i > 0 {
		svg = svg[i:]
	}
	return template.HTML(svg), nil
}
