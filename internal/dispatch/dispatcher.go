// Package dispatch runs selected test files as subprocesses, enforcing a
// per-run timeout, separating stdout JSON records from stderr diagnostics,
// and splitting the concatenated JSON objects a single run may emit.
package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"
)

// ReportFlag is the structured-output flag every watched test module is
// invoked with.
const ReportFlag = "--report=json"

// RunResult is the outcome of running one test file: zero or more JSON
// record strings, and an optional error keyed to that file's relative
// path. Exactly one of Records or Err is populated in the unhappy paths;
// both can be empty (an empty, clean run).
type RunResult struct {
	RelPath string
	Records []string
	Err     string
}

// Dispatcher maps test file paths to subprocess runs. Construct with New
// so the interpreter, timeout, and pool size defaults are filled in.
type Dispatcher struct {
	Interpreter string
	Timeout     time.Duration
	Workers     int
	RootPackage string
}

// New creates a Dispatcher. interpreter defaults to "python3" and
// timeout to 20 seconds if zero, so no caller has to hardcode the
// launcher.
func New(interpreter string, timeout time.Duration, workers int, rootPackage string) *Dispatcher {
	if interpreter == "" {
		interpreter = "python3"
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if workers <= 0 {
		workers = 8
	}
	return &Dispatcher{Interpreter: interpreter, Timeout: timeout, Workers: workers, RootPackage: rootPackage}
}

// RunOne runs a single test file: timeout yields a canned message,
// non-empty stderr yields the indented stderr, empty stdout yields
// nothing, and non-empty stdout is split on the "\n{" sentinel into
// individual record strings.
func (d *Dispatcher) RunOne(ctx context.Context, testPath string) RunResult {
	rel := d.relPath(testPath)

	runCtx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, d.Interpreter, testPath, ReportFlag)
	cmd.Dir = filepath.Dir(testPath)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	_ = cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return RunResult{RelPath: rel, Err: "    test run's timeout expired"}
	}
	if stderr.Len() > 0 {
		return RunResult{RelPath: rel, Err: indentStderr(stderr.String())}
	}
	if stdout.Len() == 0 {
		return RunResult{RelPath: rel}
	}
	return RunResult{RelPath: rel, Records: splitRecords(stdout.String())}
}

func indentStderr(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	return "    " + strings.Join(lines, "\n    ")
}

// splitRecords splits stdout on "\n{", the boundary between consecutive
// JSON objects, re-prepending "{" to every piece after the first.
func splitRecords(stdout string) []string {
	parts := strings.Split(stdout, "\n{")
	out := make([]string, len(parts))
	for i, p := range parts {
		if i == 0 {
			out[i] = p
			continue
		}
		out[i] = "{" + p
	}
	return out
}

func (d *Dispatcher) relPath(testPath string) string {
	if d.RootPackage == "" {
		return testPath
	}
	rel, err := filepath.Rel(d.RootPackage, testPath)
	if err != nil {
		return testPath
	}
	return rel
}

// RunMany fans RunOne out across a worker pool sized to Workers, then
// merges: records are concatenated, errors union-merged by relative
// path.
func (d *Dispatcher) RunMany(ctx context.Context, paths []string) ([]string, map[string]string) {
	results := make([]RunResult, len(paths))

	g := new(errgroup.Group)
	g.SetLimit(d.Workers)
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			results[i] = d.RunOne(ctx, p)
			return nil
		})
	}
	_ = g.Wait()

	var records []string
	errs := make(map[string]string)
	for _, r := range results {
		records = append(records, SanitizeRecords(r.Records)...)
		if r.Err != "" {
			errs[r.RelPath] = r.Err
		}
	}
	return records, errs
}

// SanitizeRecords replaces a record that is not valid JSON with a
// synthesized suite record reporting one failed test named
// "json_decoding_error", its log the raw payload, so aggregate counters
// downstream stay monotonic.
func SanitizeRecords(records []string) []string {
	out := make([]string, len(records))
	for i, r := range records {
		if gjson.Valid(r) {
			out[i] = r
			continue
		}
		out[i] = synthesizeProtocolError(r)
	}
	return out
}

func synthesizeProtocolError(raw string) string {
	return fmt.Sprintf(
		`{"test_suite":"<unparseable>","tests_count":1,"fails_count":1,"fails":["json_decoding_error"],"test_logs":{"json_decoding_error":[%q]}}`,
		raw,
	)
}
