package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"perfdash/internal/metadata"
	"perfdash/internal/metrics"
	"perfdash/internal/plot"
	"perfdash/internal/results"
	"perfdash/internal/route"
	"perfdash/internal/telemetry"
)

//go:embed static/*
var staticFiles embed.FS

//go:embed templates/*.html
var templateFiles embed.FS

var pages = []string{"index", "summary", "summary_diff", "benchmark", "benchmark_diff"}

// Options wires the dashboard's collaborators.
type Options struct {
	Addr       string
	Layout     results.Layout
	Parser     route.Parser
	Resolver   *metadata.Resolver
	Dispatcher *plot.Dispatcher
	Benchmarks []string
	// Metrics is optional; without it /metrics is not served.
	Metrics *metrics.Metrics
}

// Server serves the benchmark dashboard.
type Server struct {
	opts      Options
	templates map[string]*template.Template
	handler   http.Handler
	srv       *http.Server
}

// NewServer parses the embedded templates and builds the handler tree.
func NewServer(opts Options) (*Server, error) {
	if opts.Resolver == nil {
		opts.Resolver = metadata.New()
	}
	if opts.Dispatcher == nil || opts.Dispatcher.Engine == nil {
		return nil, errors.New("web: a plot dispatcher with an engine is required")
	}

	s := &Server{opts: opts, templates: make(map[string]*template.Template, len(pages))}
	for _, name := range pages {
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(templateFiles, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		s.templates[name] = tmpl
	}

	s.handler = s.routes()
	s.srv = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler returns the root handler including logging and metrics middleware.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on the configured address and blocks until Stop is called.
func (s *Server) Start() error {
	telemetry.LogInfo("Starting dashboard", "addr", s.opts.Addr, "results", s.opts.Layout.Dir, "engine", s.opts.Dispatcher.Engine.Name())
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts the server down, waiting for in-flight requests until
// ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	contentStatic, _ := fs.Sub(staticFiles, "static")
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(contentStatic)))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.opts.Metrics != nil {
		mux.Handle("GET /metrics", s.opts.Metrics.Handler())
	}
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /", s.handleView)

	var h http.Handler = mux
	if s.opts.Metrics != nil {
		h = s.opts.Metrics.RequestTrackingMiddleware(s.routeLabel, h)
	}
	return telemetry.AccessLog(h)
}

// routeLabel maps a request to a bounded metrics label.
func (s *Server) routeLabel(r *http.Request) string {
	switch p := r.URL.Path; {
	case p == "/":
		return "index"
	case p == "/healthz", p == "/metrics":
		return strings.TrimPrefix(p, "/")
	case strings.HasPrefix(p, "/static/"):
		return "static"
	}
	if rt, ok := s.opts.Parser.Parse(r.URL.Path); ok {
		return rt.Kind.String()
	}
	return "unmatched"
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	files := s.opts.Layout.List()
	if s.opts.Metrics != nil {
		s.opts.Metrics.SetResultFiles(len(files))
	}
	s.render(w, "index", newIndexPage(files, s.opts.Layout.Extension, s.opts.Benchmarks))
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	rt, ok := s.opts.Parser.Parse(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	if err := s.checkFiles(r.Context(), rt.Names); err != nil {
		if errors.Is(err, results.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		telemetry.LogError("Failed to check result files", err, "path", r.URL.Path)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	page, err := s.buildPage(r.Context(), r, rt)
	if err != nil {
		telemetry.LogError("Failed to render plot", err, "path", r.URL.Path, "view", rt.Kind.String())
		http.Error(w, "failed to render plot", http.StatusInternalServerError)
		return
	}
	s.render(w, rt.Kind.String(), page)
}

// checkFiles stats every result file of a route concurrently.
func (s *Server) checkFiles(ctx context.Context, names []results.Name) error {
	g, _ := errgroup.WithContext(ctx)
	for _, n := range names {
		g.Go(func() error {
			return s.opts.Layout.Stat(n)
		})
	}
	return g.Wait()
}

// buildPage resolves metadata for the route's files and runs the plot engine.
func (s *Server) buildPage(ctx context.Context, r *http.Request, rt route.Route) (Page, error) {
	metas := s.opts.Resolver.ResolveAll(ctx, rt.Names)

	page := Page{
		Kind:           rt.Kind,
		Benchmark:      rt.Benchmark,
		StartIteration: rt.StartIteration,
		Benchmarks:     s.opts.Benchmarks,
		Path:           r.URL.Path,
		Base:           rt.Base,
		RunsPath:       rt.RunsPath,
	}
	req := plot.Request{Kind: rt.Kind, Benchmark: rt.Benchmark, StartIteration: rt.StartIteration}
	for i, n := range rt.Names {
		page.Runs = append(page.Runs, RunView{
			File:         n.File,
			Commit:       n.Commit,
			CommitShort:  n.ShortCommit(),
			CommitDate:   metas[i].Date,
			CommitBranch: metas[i].Branch,
		})
		req.Runs = append(req.Runs, plot.Run{
			Path:  s.opts.Layout.Path(n),
			Label: n.ShortCommit(),
			Date:  metas[i].Date,
		})
	}

	res, err := s.opts.Dispatcher.Dispatch(ctx, req)
	if err != nil {
		return Page{}, err
	}
	page.Plot = res.Plot
	page.Stats = res.Stats
	page.Rows = res.Rows
	return page, nil
}

// render executes into a buffer so template errors can still become a 500.
func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.templates[name]
	if !ok {
		telemetry.LogError("Unknown template", fmt.Errorf("no template %q", name))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		telemetry.LogError("Failed to execute template", err, "template", name)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
