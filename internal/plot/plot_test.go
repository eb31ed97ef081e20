package plot

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perfdash/internal/metrics"
	"perfdash/internal/route"
)

type call struct {
	op        string
	runs      []Run
	benchmark string
	start     int
}

type recordingEngine struct {
	calls []call
	err   error
}

func (e *recordingEngine) Name() string { return "recording" }

func (e *recordingEngine) record(c call) (Result, error) {
	e.calls = append(e.calls, c)
	if e.err != nil {
		return Result{}, e.err
	}
	return Result{Plot: "<svg/>", Stats: Stats{Run1: RunStats{Mean: 1}}}, nil
}

func (e *recordingEngine) Summary(_ context.Context, run Run, start int) (Result, error) {
	return e.record(call{op: "summary", runs: []Run{run}, start: start})
}

func (e *recordingEngine) SummaryDiff(_ context.Context, run1, run2 Run, start int) (Result, error) {
	return e.record(call{op: "summary_diff", runs: []Run{run1, run2}, start: start})
}

func (e *recordingEngine) Benchmark(_ context.Context, run Run, benchmark string, start int) (Result, error) {
	return e.record(call{op: "benchmark", runs: []Run{run}, benchmark: benchmark, start: start})
}

func (e *recordingEngine) BenchmarkDiff(_ context.Context, run1, run2 Run, benchmark string, start int) (Result, error) {
	return e.record(call{op: "benchmark_diff", runs: []Run{run1, run2}, benchmark: benchmark, start: start})
}

func TestDispatch_CallsExactlyOneOperation(t *testing.T) {
	a := Run{Path: "a.data", Label: "aaaaaaaa"}
	b := Run{Path: "b.data", Label: "bbbbbbbb"}

	tests := []struct {
		name string
		req  Request
		want call
	}{
		{
			name: "summary",
			req:  Request{Kind: route.KindSummary, Runs: []Run{a}, StartIteration: 3},
			want: call{op: "summary", runs: []Run{a}, start: 3},
		},
		{
			name: "summary diff",
			req:  Request{Kind: route.KindSummaryDiff, Runs: []Run{a, b}},
			want: call{op: "summary_diff", runs: []Run{a, b}},
		},
		{
			name: "benchmark",
			req:  Request{Kind: route.KindBenchmark, Runs: []Run{a}, Benchmark: "Richards", StartIteration: 10},
			want: call{op: "benchmark", runs: []Run{a}, benchmark: "Richards", start: 10},
		},
		{
			name: "benchmark diff",
			req:  Request{Kind: route.KindBenchmarkDiff, Runs: []Run{a, b}, Benchmark: "Json"},
			want: call{op: "benchmark_diff", runs: []Run{a, b}, benchmark: "Json"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &recordingEngine{}
			d := &Dispatcher{Engine: engine}

			res, err := d.Dispatch(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, 1.0, res.Stats.Run1.Mean)
			require.Len(t, engine.calls, 1)
			assert.Equal(t, tt.want, engine.calls[0])
		})
	}
}

func TestDispatch_RunCount(t *testing.T) {
	engine := &recordingEngine{}
	d := &Dispatcher{Engine: engine}

	_, err := d.Dispatch(context.Background(), Request{Kind: route.KindSummaryDiff, Runs: []Run{{Path: "a"}}})
	assert.ErrorIs(t, err, ErrRunCount)

	_, err = d.Dispatch(context.Background(), Request{Kind: route.KindBenchmark})
	assert.ErrorIs(t, err, ErrRunCount)

	assert.Empty(t, engine.calls)
}

func TestDispatch_EngineErrorObserved(t *testing.T) {
	m := metrics.NewMetrics(nil)
	engine := &recordingEngine{err: errors.New("boom")}
	d := &Dispatcher{Engine: engine, Metrics: m}

	_, err := d.Dispatch(context.Background(), Request{Kind: route.KindSummary, Runs: []Run{{Path: "a"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recording summary")
	assert.Contains(t, err.Error(), "boom")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.PlotFailures.WithLabelValues("recording", "summary")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.PlotDuration))
}

func TestDispatch_SuccessObserved(t *testing.T) {
	m := metrics.NewMetrics(nil)
	d := &Dispatcher{Engine: &recordingEngine{}, Metrics: m}

	_, err := d.Dispatch(context.Background(), Request{Kind: route.KindBenchmark, Runs: []Run{{Path: "a"}}, Benchmark: "Sieve"})
	require.NoError(t, err)

	assert.Equal(t, 1, testutil.CollectAndCount(m.PlotDuration))
	assert.Equal(t, 0, testutil.CollectAndCount(m.PlotFailures))
}
