package plot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const (
	defaultScriptTimeout = 60 * time.Second
	maxScriptStdout      = 25 << 20 // 25 MiB
	maxScriptStderr      = 1 << 20  // 1 MiB
)

// ScriptEngine delegates plotting to an external statistics script, e.g.
// "Rscript plotting.R". The script is invoked as
//
//	<interpreter> <script> <function> <args...>
//
// with the functions summary_plot, summary_diff_plot, benchmark_plot and
// benchmark_diff_plot, and must print a JSON document with "plot", "stats" and
// optionally "rows" on stdout.
type ScriptEngine struct {
	Interpreter string
	Script      string
	Timeout     time.Duration
}

type scriptOutput struct {
	Plot  string         `json:"plot"`
	Stats Stats          `json:"stats"`
	Rows  []BenchmarkRow `json:"rows"`
}

func (e *ScriptEngine) Name() string { return "script" }

func (e *ScriptEngine) Summary(ctx context.Context, run Run, start int) (Result, error) {
	return e.call(ctx, "summary_plot", run.Path, strconv.Itoa(start))
}

func (e *ScriptEngine) SummaryDiff(ctx context.Context, run1, run2 Run, start int) (Result, error) {
	return e.call(ctx, "summary_diff_plot",
		run1.Label, run1.Date, run1.Path,
		run2.Label, run2.Date, run2.Path,
		strconv.Itoa(start))
}

func (e *ScriptEngine) Benchmark(ctx context.Context, run Run, benchmark string, start int) (Result, error) {
	return e.call(ctx, "benchmark_plot", run.Path, benchmark, strconv.Itoa(start))
}

func (e *ScriptEngine) BenchmarkDiff(ctx context.Context, run1, run2 Run, benchmark string, start int) (Result, error) {
	return e.call(ctx, "benchmark_diff_plot", run1.Path, run2.Path, benchmark, strconv.Itoa(start))
}

func (e *ScriptEngine) call(ctx context.Context, function string, args ...string) (Result, error) {
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = defaultScriptTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	argv := append([]string{e.Script, function}, args...)
	stdout, stderr, code, err := runCommand(ctx, e.Interpreter, argv, maxScriptStdout, maxScriptStderr)
	if err != nil {
		return Result{}, fmt.Errorf("%s (exit=%d): %w: %s", function, code, err, strings.TrimSpace(stderr))
	}

	var out scriptOutput
	if err := json.Unmarshal([]byte(stdout), &out); err != nil {
		return Result{}, fmt.Errorf("%s did not emit valid JSON on stdout: %w", function, err)
	}
	return Result{Plot: template.HTML(out.Plot), Stats: out.Stats, Rows: out.Rows}, nil
}

func runCommand(ctx context.Context, bin string, args []string, maxStdout, maxStderr int64) (stdout, stderr string, exitCode int, err error) {
	cmd := exec.CommandContext(ctx, bin, args...)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return "", "", 127, err
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return "", "", 127, err
	}

	if err := cmd.Start(); err != nil {
		return "", "", 127, err
	}

	var outBuf, errBuf bytes.Buffer
	outDone := make(chan error, 1)
	errDone := make(chan error, 1)

	go func() {
		_, e := io.Copy(&outBuf, io.LimitReader(stdoutPipe, maxStdout))
		_, _ = io.Copy(io.Discard, stdoutPipe)
		outDone <- e
	}()
	go func() {
		_, e := io.Copy(&errBuf, io.LimitReader(stderrPipe, maxStderr))
		_, _ = io.Copy(io.Discard, stderrPipe)
		errDone <- e
	}()

	<-outDone
	<-errDone
	waitErr := cmd.Wait()

	stdout = outBuf.String()
	stderr = errBuf.String()

	if waitErr != nil {
		exitCode = exitStatus(waitErr)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return stdout, stderr, exitCode, errors.New("plot script timed out")
		}
		return stdout, stderr, exitCode, waitErr
	}
	return stdout, stderr, 0, nil
}

func exitStatus(err error) int {
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return 1
}
