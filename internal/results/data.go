package results

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
)

// criterionTotal is the measurement criterion the dashboard charts. Other
// criteria (per-phase timings, GC, ...) are ignored.
const criterionTotal = "total"

// Sample is one measured iteration of a benchmark.
type Sample struct {
	Invocation int
	Iteration  int
	Value      float64
	Unit       string
}

// DataSet holds the total-criterion samples of one result file, grouped by
// benchmark.
type DataSet struct {
	order   []string
	samples map[string][]Sample
}

// ReadData reads a tab separated result file. Columns are invocation,
// iteration, value, unit, criterion, benchmark, followed by free-form fields.
func ReadData(path string) (*DataSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ds, err := ParseData(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ds, nil
}

// ParseData parses result data from r.
func ParseData(r io.Reader) (*DataSet, error) {
	ds := &DataSet{samples: make(map[string][]Sample)}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		var fields []string
		if strings.Contains(text, "\t") {
			fields = strings.Split(text, "\t")
		} else {
			fields = strings.Fields(text)
		}
		if len(fields) < 6 {
			return nil, fmt.Errorf("line %d: expected at least 6 columns, got %d", line, len(fields))
		}

		criterion := strings.TrimSpace(fields[4])
		if criterion != "" && criterion != criterionTotal {
			continue
		}

		invocation, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid invocation %q: %w", line, fields[0], err)
		}
		iteration, err := strconv.Atoi(strings.TrimSpace(fields[1]))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid iteration %q: %w", line, fields[1], err)
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid value %q: %w", line, fields[2], err)
		}
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return nil, fmt.Errorf("line %d: value %q is not a finite number", line, fields[2])
		}
		benchmark := strings.TrimSpace(fields[5])
		if benchmark == "" {
			return nil, fmt.Errorf("line %d: missing benchmark name", line)
		}

		if _, seen := ds.samples[benchmark]; !seen {
			ds.order = append(ds.order, benchmark)
		}
		ds.samples[benchmark] = append(ds.samples[benchmark], Sample{
			Invocation: invocation,
			Iteration:  iteration,
			Value:      value,
			Unit:       strings.TrimSpace(fields[3]),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	for _, s := range ds.samples {
		sort.SliceStable(s, func(i, j int) bool {
			if s[i].Invocation != s[j].Invocation {
				return s[i].Invocation < s[j].Invocation
			}
			return s[i].Iteration < s[j].Iteration
		})
	}
	return ds, nil
}

// Benchmarks returns the benchmark names in the order they first appear.
func (d *DataSet) Benchmarks() []string {
	return append([]string(nil), d.order...)
}

// Series returns the samples of a benchmark whose iteration is at least start.
// An unknown benchmark yields an empty series.
func (d *DataSet) Series(benchmark string, start int) []Sample {
	var out []Sample
	for _, s := range d.samples[benchmark] {
		if s.Iteration >= start {
			out = append(out, s)
		}
	}
	return out
}

// Values is Series reduced to the measured values.
func (d *DataSet) Values(benchmark string, start int) []float64 {
	series := d.Series(benchmark, start)
	values := make([]float64, len(series))
	for i, s := range series {
		values[i] = s.Value
	}
	return values
}
