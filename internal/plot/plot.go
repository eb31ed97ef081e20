// Package plot renders benchmark charts and summary statistics for the
// dashboard views. Engines return a fresh Result per call; nothing is shared
// between requests.
package plot

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"time"

	"perfdash/internal/metrics"
	"perfdash/internal/route"
)

// ErrRunCount is returned when a request carries the wrong number of runs for
// its view.
var ErrRunCount = errors.New("wrong number of runs for view")

// RunStats summarises a series of measurements.
type RunStats struct {
	Min     float64 `json:"min"`
	Geomean float64 `json:"geomean"`
	Median  float64 `json:"median"`
	Mean    float64 `json:"mean"`
	Max     float64 `json:"max"`
}

// Stats holds the aggregate figures of the one or two runs on a page.
type Stats struct {
	Run1 RunStats `json:"run1"`
	Run2 RunStats `json:"run2"`
}

// BenchmarkRow is one line of the per-benchmark table.
type BenchmarkRow struct {
	Name  string   `json:"name"`
	Run1  RunStats `json:"run1"`
	Run2  RunStats `json:"run2"`
	Ratio float64  `json:"ratio"`
}

// Result is what an engine produces for one view.
type Result struct {
	Plot  template.HTML
	Stats Stats
	Rows  []BenchmarkRow
}

// Run identifies one result file passed to an engine.
type Run struct {
	Path  string
	Label string
	Date  string
}

// Engine renders the four views. Implementations must be safe for concurrent
// use.
type Engine interface {
	Name() string
	Summary(ctx context.Context, run Run, start int) (Result, error)
	SummaryDiff(ctx context.Context, run1, run2 Run, start int) (Result, error)
	Benchmark(ctx context.Context, run Run, benchmark string, start int) (Result, error)
	BenchmarkDiff(ctx context.Context, run1, run2 Run, benchmark string, start int) (Result, error)
}

// Request is a resolved view request.
type Request struct {
	Kind           route.Kind
	Runs           []Run
	Benchmark      string
	StartIteration int
}

// Dispatcher calls the engine operation matching a request's view.
type Dispatcher struct {
	Engine  Engine
	Metrics *metrics.Metrics
}

// Dispatch calls exactly one engine operation, chosen by req.Kind.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (Result, error) {
	want := 1
	if req.Kind.Diff() {
		want = 2
	}
	if len(req.Runs) != want {
		return Result{}, fmt.Errorf("%w: %s needs %d, got %d", ErrRunCount, req.Kind, want, len(req.Runs))
	}

	start := time.Now()
	var (
		res Result
		err error
	)
	switch req.Kind {
	case route.KindSummary:
		res, err = d.Engine.Summary(ctx, req.Runs[0], req.StartIteration)
	case route.KindSummaryDiff:
		res, err = d.Engine.SummaryDiff(ctx, req.Runs[0], req.Runs[1], req.StartIteration)
	case route.KindBenchmark:
		res, err = d.Engine.Benchmark(ctx, req.Runs[0], req.Benchmark, req.StartIteration)
	case route.KindBenchmarkDiff:
		res, err = d.Engine.BenchmarkDiff(ctx, req.Runs[0], req.Runs[1], req.Benchmark, req.StartIteration)
	default:
		return Result{}, fmt.Errorf("unsupported view %s", req.Kind)
	}

	if d.Metrics != nil {
		d.Metrics.ObservePlot(d.Engine.Name(), req.Kind.String(), time.Since(start), err)
	}
	if err != nil {
		return Result{}, fmt.Errorf("%s %s: %w", d.Engine.Name(), req.Kind, err)
	}
	return res, nil
}
