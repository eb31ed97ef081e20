package web

import (
	"html/template"

	"perfdash/internal/plot"
	"perfdash/internal/results"
	"perfdash/internal/route"
)

var funcs = template.FuncMap{
	"round":      results.Round,
	"ratioClass": ratioClass,
}

// ratioClass colours a run2/run1 ratio of run times.
func ratioClass(r float64) string {
	switch {
	case r == 0:
		return ""
	case r < 1:
		return "faster"
	case r > 1:
		return "slower"
	}
	return ""
}

// RunView is what a view shows about one result file.
type RunView struct {
	File         string
	Commit       string
	CommitShort  string
	CommitDate   string
	CommitBranch string
}

// Page is the per-request view model. It is built for one response and then
// dropped.
type Page struct {
	Kind           route.Kind
	Runs           []RunView
	Benchmark      string
	StartIteration int
	Benchmarks     []string

	Plot  template.HTML
	Stats plot.Stats
	Rows  []plot.BenchmarkRow

	// Path is the request path, Base the path without the start iteration and
	// RunsPath only the result file segments.
	Path     string
	Base     string
	RunsPath string

	// Files is set on the index page only.
	Files []IndexEntry
}

// Run1 returns the first (or only) run.
func (p Page) Run1() RunView {
	if len(p.Runs) == 0 {
		return RunView{}
	}
	return p.Runs[0]
}

// Run2 returns the second run of a diff view.
func (p Page) Run2() RunView {
	if len(p.Runs) < 2 {
		return RunView{}
	}
	return p.Runs[1]
}

// IndexEntry is one selectable result file on the landing page.
type IndexEntry struct {
	File  string
	Label string
}

func newIndexPage(files []string, ext string, benchmarks []string) Page {
	entries := make([]IndexEntry, 0, len(files))
	for _, f := range files {
		label := f
		if n, err := results.ParseName(f, ext); err == nil {
			label = n.Date() + " " + n.ShortCommit() + " " + n.Branch
		}
		entries = append(entries, IndexEntry{File: f, Label: label})
	}
	return Page{Files: entries, Benchmarks: benchmarks, Path: "/"}
}
