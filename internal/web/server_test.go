package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perfdash/internal/config"
	"perfdash/internal/metadata"
	"perfdash/internal/metrics"
	"perfdash/internal/plot"
	"perfdash/internal/results"
	"perfdash/internal/route"
)

const (
	fileA = "2024-01-01.12:00:00-deadbeef-main.data"
	fileB = "2024-01-02.08:30:00-cafebabe12345678-feature-x.data"
)

type fakeEngine struct {
	mu   sync.Mutex
	reqs []string
	runs [][]plot.Run
	args []int
	err  error
}

func (e *fakeEngine) Name() string { return "fake" }

func (e *fakeEngine) record(op string, start int, runs ...plot.Run) (plot.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reqs = append(e.reqs, op)
	e.runs = append(e.runs, runs)
	e.args = append(e.args, start)
	if e.err != nil {
		return plot.Result{}, e.err
	}
	return plot.Result{
		Plot:  `<svg id="chart"></svg>`,
		Stats: plot.Stats{Run1: plot.RunStats{Mean: 1.23456}, Run2: plot.RunStats{Mean: 2}},
		Rows:  []plot.BenchmarkRow{{Name: "Sieve", Ratio: 0.5}},
	}, nil
}

func (e *fakeEngine) Summary(_ context.Context, run plot.Run, start int) (plot.Result, error) {
	return e.record("summary", start, run)
}

func (e *fakeEngine) SummaryDiff(_ context.Context, run1, run2 plot.Run, start int) (plot.Result, error) {
	return e.record("summary_diff", start, run1, run2)
}

func (e *fakeEngine) Benchmark(_ context.Context, run plot.Run, _ string, start int) (plot.Result, error) {
	return e.record("benchmark", start, run)
}

func (e *fakeEngine) BenchmarkDiff(_ context.Context, run1, run2 plot.Run, _ string, start int) (plot.Result, error) {
	return e.record("benchmark_diff", start, run1, run2)
}

type fixture struct {
	dir     string
	engine  *fakeEngine
	metrics *metrics.Metrics
	server  *Server
}

func newFixture(t *testing.T, files ...string) *fixture {
	t.Helper()
	dir := t.TempDir()
	for _, f := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("1\t1\t10\tms\ttotal\tSieve\n"), 0644))
	}

	f := &fixture{dir: dir, engine: &fakeEngine{}, metrics: metrics.NewMetrics(nil)}
	s, err := NewServer(Options{
		Addr:       "127.0.0.1:0",
		Layout:     results.NewLayout(dir, ".data"),
		Parser:     route.Parser{Extension: ".data"},
		Resolver:   metadata.New(),
		Dispatcher: &plot.Dispatcher{Engine: f.engine, Metrics: f.metrics},
		Benchmarks: config.DefaultBenchmarks,
		Metrics:    f.metrics,
	})
	require.NoError(t, err)
	f.server = s
	return f
}

func (f *fixture) get(path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestServer_SummaryView(t *testing.T) {
	f := newFixture(t, fileA)

	w := f.get("/" + fileA)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Contains(t, body, "deadbeef")
	assert.Contains(t, body, "2024-01-01.12:00:00")
	assert.Contains(t, body, "main")
	assert.Contains(t, body, `<svg id="chart"></svg>`, "plot markup is inlined unescaped")
	assert.Contains(t, body, "1.235", "stats are rounded to three decimals")
	assert.Contains(t, body, `value="0"`)

	require.Equal(t, []string{"summary"}, f.engine.reqs)
	assert.Equal(t, 0, f.engine.args[0])
	assert.Equal(t, filepath.Join(f.dir, fileA), f.engine.runs[0][0].Path)
	assert.Equal(t, "deadbeef", f.engine.runs[0][0].Label)
}

func TestServer_StartIteration(t *testing.T) {
	f := newFixture(t, fileA)

	w := f.get("/" + fileA + "/5")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `value="5"`)
	assert.Equal(t, []int{5}, f.engine.args)
}

func TestServer_DispatchByShape(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/" + fileA, "summary"},
		{"/" + fileA + "/" + fileB, "summary_diff"},
		{"/" + fileA + "/Richards", "benchmark"},
		{"/" + fileA + "/Richards/3", "benchmark"},
		{"/" + fileA + "/" + fileB + "/Richards", "benchmark_diff"},
		{"/" + fileA + "/" + fileB + "/Richards/7", "benchmark_diff"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			f := newFixture(t, fileA, fileB)
			w := f.get(tt.path)
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, []string{tt.want}, f.engine.reqs)
		})
	}
}

func TestServer_MissingFileIs404WithEmptyBody(t *testing.T) {
	missing := "2023-05-05.05:05:05-abcdef01-main.data"
	paths := []string{
		"/" + missing,
		"/" + missing + "/5",
		"/" + fileA + "/" + missing,
		"/" + missing + "/" + fileA + "/2",
		"/" + missing + "/Towers",
		"/" + fileA + "/" + missing + "/Towers/1",
	}

	f := newFixture(t, fileA)
	for _, p := range paths {
		t.Run(p, func(t *testing.T) {
			w := f.get(p)
			assert.Equal(t, http.StatusNotFound, w.Code)
			assert.Empty(t, w.Body.String())
		})
	}
	assert.Empty(t, f.engine.reqs, "engine must not run for missing files")
}

func TestServer_UnmatchedPathIsDefault404(t *testing.T) {
	f := newFixture(t, fileA)

	for _, p := range []string{
		"/deadbeef",
		"/not-a-result.data",
		"/" + fileA + "/not-a-benchmark!",
		"/" + fileA + "/" + fileA + "/Sieve/1/extra",
	} {
		w := f.get(p)
		assert.Equal(t, http.StatusNotFound, w.Code, p)
		assert.Equal(t, "404 page not found\n", w.Body.String(), p)
	}
}

func TestServer_DiffContext(t *testing.T) {
	f := newFixture(t, fileA, fileB)
	rt, ok := route.Parser{Extension: ".data"}.Parse("/" + fileA + "/" + fileB)
	require.True(t, ok)

	req := httptest.NewRequest(http.MethodGet, "/"+fileA+"/"+fileB, nil)
	page, err := f.server.buildPage(context.Background(), req, rt)
	require.NoError(t, err)

	assert.Equal(t, RunView{
		File:         fileA,
		Commit:       "deadbeef",
		CommitShort:  "deadbeef",
		CommitDate:   "2024-01-01.12:00:00",
		CommitBranch: "main",
	}, page.Run1())
	assert.Equal(t, RunView{
		File:         fileB,
		Commit:       "cafebabe12345678",
		CommitShort:  "cafebabe",
		CommitDate:   "2024-01-02.08:30:00",
		CommitBranch: "feature-x",
	}, page.Run2())
	assert.Equal(t, config.DefaultBenchmarks, page.Benchmarks)
	assert.Equal(t, "/"+fileA+"/"+fileB, page.RunsPath)
	assert.Equal(t, 2.0, page.Stats.Run2.Mean)
}

func TestServer_EngineFailureIs500(t *testing.T) {
	f := newFixture(t, fileA)
	f.engine.err = errors.New("engine crashed")

	w := f.get("/" + fileA)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PlotFailures.WithLabelValues("fake", "summary")))
}

func TestServer_Index(t *testing.T) {
	f := newFixture(t, fileA, fileB)
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "notes.txt"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "abc.data"), nil, 0644))

	w := f.get("/")
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, `value="`+fileA+`"`)
	assert.Contains(t, body, `value="`+fileB+`"`)
	assert.Contains(t, body, "2024-01-02.08:30:00 cafebabe feature-x")
	assert.NotContains(t, body, "notes.txt")
	assert.NotContains(t, body, "abc.data")
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.ResultFiles))
}

func TestServer_IndexMissingDirectory(t *testing.T) {
	f := newFixture(t)
	f.server.opts.Layout.Dir = filepath.Join(f.dir, "gone")

	w := f.get("/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "No result files found.")
}

func TestServer_StaticAndHealth(t *testing.T) {
	f := newFixture(t)

	w := f.get("/static/js/main.js")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "function submitSelection")
	assert.Contains(t, w.Body.String(), "function minIterationChanged")

	w = f.get("/static/css/style.css")
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.get("/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok\n", w.Body.String())
}

func TestServer_MetricsLabelledByRouteKind(t *testing.T) {
	f := newFixture(t, fileA)

	f.get("/" + fileA)
	f.get("/" + fileA + "/9")
	f.get("/nothing-here")

	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.HTTPRequestsTotal.WithLabelValues("GET", "summary", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "404")))

	w := f.get("/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "perfdash_http_requests_total")
}

func TestServer_RejectsNonGet(t *testing.T) {
	f := newFixture(t, fileA)

	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/"+fileA, nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Empty(t, f.engine.reqs)
}

func TestNewServer_RequiresEngine(t *testing.T) {
	_, err := NewServer(Options{})
	assert.Error(t, err)
}

func TestServer_StartStop(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	f := newFixture(t)
	f.server.srv.Addr = "127.0.0.1:" + strconv.Itoa(port)

	done := make(chan error)
	go func() {
		done <- f.server.Start()
	}()

	ready := false
	for i := 0; i < 20; i++ {
		resp, err := http.Get("http://127.0.0.1:" + strconv.Itoa(port) + "/healthz")
		if err == nil {
			resp.Body.Close()
			ready = true
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if !ready {
		t.Fatal("Server failed to start")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.server.Stop(ctx))
	require.NoError(t, <-done)
}

func TestServer_NativeEngineEmptyResultFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, fileA), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, fileB), []byte("# no data yet\n"), 0644))

	s, err := NewServer(Options{
		Layout:     results.NewLayout(dir, ".data"),
		Parser:     route.Parser{Extension: ".data"},
		Dispatcher: &plot.Dispatcher{Engine: plot.NewNativeEngine(time.Minute)},
		Benchmarks: config.DefaultBenchmarks,
	})
	require.NoError(t, err)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	for _, p := range []string{"/" + fileA, "/" + fileA + "/" + fileB} {
		resp, err := http.Get(ts.URL + p)
		require.NoError(t, err, p)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, p)
	}
}
