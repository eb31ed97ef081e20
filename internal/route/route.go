// Package route maps dashboard URL paths to the view they request.
package route

import (
	"regexp"
	"strings"

	"perfdash/internal/results"
)

// Kind identifies which of the four parameterized views a path requests.
type Kind int

const (
	KindSummary Kind = iota + 1
	KindSummaryDiff
	KindBenchmark
	KindBenchmarkDiff
)

func (k Kind) String() string {
	switch k {
	case KindSummary:
		return "summary"
	case KindSummaryDiff:
		return "summary_diff"
	case KindBenchmark:
		return "benchmark"
	case KindBenchmarkDiff:
		return "benchmark_diff"
	default:
		return "unknown"
	}
}

// Diff reports whether the view compares two runs.
func (k Kind) Diff() bool {
	return k == KindSummaryDiff || k == KindBenchmarkDiff
}

var (
	reIteration = regexp.MustCompile(`^\d+$`)
	reBenchmark = regexp.MustCompile(`^\w+$`)
)

// Route is a parsed request path.
type Route struct {
	Kind           Kind
	Names          []results.Name
	Benchmark      string
	StartIteration int
	// Base is the request path without the start iteration segment.
	Base string
	// RunsPath is the leading path of result file segments only.
	RunsPath string
}

// Parser matches request paths. Identifiers are structured result filenames;
// with Legacy set, bare hex commit hashes are accepted as well.
type Parser struct {
	Extension string
	Legacy    bool
}

type shape struct {
	kind  Kind
	files int
	bench bool
}

// Shapes are tried in this order; the first match wins, so a numeric second
// segment is an iteration rather than a benchmark name.
var shapes = []shape{
	{kind: KindSummary, files: 1},
	{kind: KindSummaryDiff, files: 2},
	{kind: KindBenchmark, files: 1, bench: true},
	{kind: KindBenchmarkDiff, files: 2, bench: true},
}

// Parse returns the route for path, or false when no shape matches.
func (p Parser) Parse(path string) (Route, bool) {
	trimmed := strings.TrimPrefix(path, "/")
	trimmed = strings.TrimSuffix(trimmed, "/")
	if trimmed == "" {
		return Route{}, false
	}
	segments := strings.Split(trimmed, "/")

	for _, s := range shapes {
		if r, ok := p.match(s, segments); ok {
			return r, true
		}
	}
	return Route{}, false
}

func (p Parser) match(s shape, segments []string) (Route, bool) {
	fixed := s.files
	if s.bench {
		fixed++
	}
	if len(segments) != fixed && len(segments) != fixed+1 {
		return Route{}, false
	}

	r := Route{Kind: s.kind}
	for _, seg := range segments[:s.files] {
		name, ok := p.identifier(seg)
		if !ok {
			return Route{}, false
		}
		r.Names = append(r.Names, name)
	}

	if s.bench {
		bench := segments[s.files]
		if !reBenchmark.MatchString(bench) {
			return Route{}, false
		}
		r.Benchmark = bench
	}

	if len(segments) == fixed+1 {
		iter := segments[fixed]
		if !reIteration.MatchString(iter) {
			return Route{}, false
		}
		r.StartIteration = results.ExtractNumber(iter)
	}

	r.Base = "/" + strings.Join(segments[:fixed], "/")
	r.RunsPath = "/" + strings.Join(segments[:s.files], "/")
	return r, true
}

func (p Parser) identifier(seg string) (results.Name, bool) {
	if name, err := results.ParseName(seg, p.Extension); err == nil {
		return name, true
	}
	if p.Legacy {
		if name, err := results.ParseCommit(seg, p.Extension); err == nil {
			return name, true
		}
	}
	return results.Name{}, false
}
