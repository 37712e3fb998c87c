// Package driver implements the Cycle Driver: the outer loop that polls
// for quit/input commands, computes the next Analysis, dispatches the
// selected tests, and hands results to the renderer. It is a bounded
// cooperative poller over three channels (quit, input, timer), modeled
// as an explicit state machine rather than hidden scheduler magic.
package driver

import (
	"context"
	"time"

	"github.com/pywatch/pywatch/internal/render"
	"github.com/pywatch/pywatch/internal/watch"
)

// AnalysisSource is the subset of *watch.WatchedDir the driver needs.
type AnalysisSource interface {
	TestModulesToRun() (*watch.Analysis, error)
	TestSources() ([]string, error)
}

// Runner is the subset of *dispatch.Dispatcher the driver needs.
type Runner interface {
	RunMany(ctx context.Context, paths []string) ([]string, map[string]string)
}

// Driver owns the cycle state machine. It runs on a single goroutine; the
// only other concurrency is the keyboard reader feeding Input and the
// worker pools inside Watched/Runner, both of which complete before the
// driver acts on their results.
type Driver struct {
	Watched   AnalysisSource
	Runner    Runner
	Renderer  render.Renderer
	Frequency time.Duration
	Debug     bool

	// Input receives single command runes ('q', 'r', 'a') from the
	// keyboard reader. Quit receives a close() broadcast.
	Input chan rune
	Quit  chan struct{}

	// FsWake is an optional additional wake-up source (internal/fswait).
	// A nil channel is valid and simply never fires in the sleep select.
	FsWake chan struct{}

	firstCycle bool

	// pending holds command runes received while sleeping; they are
	// processed at the top of the next cycle, before the channel drain.
	pending []rune
}

// New constructs a Driver. Frequency is the cycle sleep period; Debug
// enables the pause-for-Enter mode that renders the Analysis itself
// instead of dispatching.
func New(watched AnalysisSource, runner Runner, renderer render.Renderer, frequency time.Duration, debug bool) *Driver {
	return &Driver{
		Watched:    watched,
		Runner:     runner,
		Renderer:   renderer,
		Frequency:  frequency,
		Debug:      debug,
		Input:      make(chan rune, 8),
		Quit:       make(chan struct{}),
		firstCycle: true,
	}
}

// Run executes cycles until Quit is closed, the input channel delivers
// 'q', or ctx is canceled. Within a single cycle, every dispatched
// subprocess completes before any are launched for the next; there is no
// pipelining across cycles.
func (d *Driver) Run(ctx context.Context) error {
	for {
		if d.quitRequested() {
			return nil
		}

		forceFull, about, quit := d.drainInput()
		if quit {
			return nil
		}
		if about && !forceFull {
			// The about screen replaces this tick's analysis entirely.
			if d.sleepInterrupted(ctx) {
				return nil
			}
			continue
		}

		toRun, err := d.nextToRun(forceFull)
		if err != nil {
			return err
		}

		d.dispatchOrRender(ctx, toRun, forceFull)
		d.firstCycle = false

		if d.sleepInterrupted(ctx) {
			return nil
		}
	}
}

func (d *Driver) quitRequested() bool {
	select {
	case <-d.Quit:
		return true
	default:
		return false
	}
}

// drainInput processes every buffered command rune, returning whether a
// full forced re-run was requested, whether the about screen was shown,
// and whether quit was requested. An about-only tick skips analysis and
// dispatch entirely.
func (d *Driver) drainInput() (forceFull, about, quit bool) {
	apply := func(ch rune) (stop bool) {
		switch ch {
		case 'q':
			return true
		case 'r':
			forceFull = true
		case 'a':
			about = true
			d.Renderer.About()
		}
		return false
	}
	for _, ch := range d.pending {
		if apply(ch) {
			return forceFull, about, true
		}
	}
	d.pending = d.pending[:0]
	for {
		select {
		case ch := <-d.Input:
			if apply(ch) {
				return forceFull, about, true
			}
		default:
			return forceFull, about, false
		}
	}
}

// nextToRun bypasses the differ entirely on a forced run: it never calls
// TestModulesToRun, so the previous snapshot is left untouched for the
// next normal cycle to diff against.
func (d *Driver) nextToRun(forceFull bool) ([]string, error) {
	if forceFull {
		return d.Watched.TestSources()
	}
	analysis, err := d.Watched.TestModulesToRun()
	if err != nil {
		return nil, err
	}
	if d.Debug {
		d.Renderer.RenderAnalysis(modTestsSlice(analysis), analysis.ModProductions)
		return nil, nil
	}
	return analysis.ToRun(), nil
}

func modTestsSlice(a *watch.Analysis) []string {
	out := make([]string, 0, len(a.ModTests))
	for t := range a.ModTests {
		out = append(out, t)
	}
	return out
}

// dispatchOrRender dispatches when there is something to run; otherwise
// it renders an empty baseline only on the very first cycle, to prove
// the UI is alive without flickering on every empty, no-op cycle
// thereafter. A forced full run dispatches even in debug mode, where a
// normal tick only renders its analysis.
func (d *Driver) dispatchOrRender(ctx context.Context, toRun []string, forceFull bool) {
	if d.Debug && !forceFull {
		return
	}
	if len(toRun) > 0 {
		start := time.Now()
		records, errs := d.Runner.RunMany(ctx, toRun)
		elapsed := time.Since(start).Seconds()
		d.Renderer.RenderSummary(records, errs, elapsed)
		return
	}
	if d.firstCycle {
		d.Renderer.RenderSummary(nil, nil, 0)
	}
}

// sleepInterrupted waits out Frequency (or wakes early on input, FsWake,
// quit, or ctx cancellation) and reports whether the driver should stop.
func (d *Driver) sleepInterrupted(ctx context.Context) bool {
	if d.Debug {
		select {
		case ch := <-d.Input:
			switch ch {
			case '\n':
				// Enter advances to the next cycle.
			case 'q':
				return true
			default:
				// A command rune ends the pause; the next tick's
				// drain acts on it.
				d.pending = append(d.pending, ch)
			}
		case <-d.Quit:
			return true
		case <-ctx.Done():
			return true
		}
		return false
	}

	timer := time.NewTimer(d.Frequency)
	defer timer.Stop()
	select {
	case <-timer.C:
		return false
	case ch := <-d.Input:
		// A command arriving mid-sleep ends the sleep so the next
		// cycle can act on it without waiting out the frequency.
		if ch == 'q' {
			return true
		}
		d.pending = append(d.pending, ch)
		return false
	case <-d.FsWake:
		return false
	case <-d.Quit:
		return true
	case <-ctx.Done():
		return true
	}
}
