// Package render defines the watcher's rendering boundary and a minimal
// pterm-backed implementation. The exact report layout is not a
// contract; the driver only needs a stable call target at the end of
// each cycle.
package render

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/pterm/pterm"
	"github.com/tidwall/gjson"
)

// Renderer is the boundary the Cycle Driver calls into at the end of
// each cycle.
type Renderer interface {
	// About prints the watcher's static help/about screen for the 'a' command.
	About()
	// RenderAnalysis shows which tests were picked and why, without
	// running them, used by debug mode to verify change detection.
	RenderAnalysis(modTests []string, modProductions map[string][]string)
	// RenderSummary shows the aggregate result of one cycle's dispatch.
	RenderSummary(records []string, errs map[string]string, elapsed float64)
}

// PTermRenderer is the default Renderer, printing leveled terminal
// output with pterm.
type PTermRenderer struct{}

// New returns the default pterm-backed Renderer.
func New() *PTermRenderer {
	return &PTermRenderer{}
}

func (r *PTermRenderer) About() {
	pterm.DefaultHeader.WithFullWidth().Println("pywatch")
	pterm.Info.Println("Watches a Python package tree and re-runs the tests affected by each edit.")
	pterm.Println()
	pterm.Println("  q        quit")
	pterm.Println("  r        force a full re-run of every test source")
	pterm.Println("  a        show this screen")
	pterm.Println("  Ctrl+C   quit")
}

func (r *PTermRenderer) RenderAnalysis(modTests []string, modProductions map[string][]string) {
	if len(modTests) == 0 && len(modProductions) == 0 {
		pterm.Info.Println("no changes detected")
		return
	}
	for _, t := range modTests {
		pterm.FgCyan.Printf("  modified test   %s\n", t)
	}
	for p, tests := range modProductions {
		pterm.FgMagenta.Printf("  modified source %s -> %d dependent test(s)\n", p, len(tests))
		for _, t := range tests {
			pterm.FgGray.Printf("      %s\n", t)
		}
	}
}

// Tally sums suite/test/fail counts across a cycle's records. Exported so
// it can be tested without driving pterm's global writer.
func Tally(records []string) (suites, tests, fails int) {
	for _, rec := range records {
		suites++
		tests += int(gjson.Get(rec, "tests_count").Int())
		fails += int(gjson.Get(rec, "fails_count").Int())
	}
	return suites, tests, fails
}

func (r *PTermRenderer) RenderSummary(records []string, errs map[string]string, elapsed float64) {
	suites, tests, fails := Tally(records)

	status := pterm.Success
	if fails > 0 || len(errs) > 0 {
		status = pterm.Warning
	}
	status.Printf(
		"%d suite(s), %d test(s), %d failure(s) in %ss\n",
		suites, tests, fails, humanize.FormatFloat("#.###", elapsed),
	)

	if len(errs) == 0 {
		return
	}
	pterm.Error.Println("failed modules:")
	for path, msg := range errs {
		fmt.Printf("  %s\n%s\n", path, msg)
	}
}
