package watch

// Analysis is the per-cycle diff produced by Updated: which test sources
// changed directly, which production sources changed and the tests each
// one fans out to, and the derived union of both: the set of tests the
// driver must actually dispatch this cycle.
type Analysis struct {
	ModTests       map[string]bool
	ModProductions map[string][]string
}

// NewAnalysis returns an empty Analysis.
func NewAnalysis() *Analysis {
	return &Analysis{
		ModTests:       make(map[string]bool),
		ModProductions: make(map[string][]string),
	}
}

// ToRun returns the union of directly modified tests and every test fanned
// out to by a modified production source.
func (a *Analysis) ToRun() []string {
	seen := make(map[string]bool, len(a.ModTests))
	out := make([]string, 0, len(a.ModTests))
	for t := range a.ModTests {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for _, tests := range a.ModProductions {
		for _, t := range tests {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}

// Len reports the size of ToRun() without allocating it twice.
func (a *Analysis) Len() int {
	seen := make(map[string]bool, len(a.ModTests))
	for t := range a.ModTests {
		seen[t] = true
	}
	n := len(seen)
	for _, tests := range a.ModProductions {
		for _, t := range tests {
			if !seen[t] {
				seen[t] = true
				n++
			}
		}
	}
	return n
}

// Updated compares prev against now and returns the Analysis of what
// changed. A production path is modified when it is absent from prev's
// mtime map or its mtime increased; the same rule applies to test paths.
// Paths present in prev but vanished from now are silently dropped, no
// ghost re-runs.
func Updated(prev, now *Snapshot) *Analysis {
	analysis := NewAnalysis()
	for p := range now.Productions {
		prevMtime, ok := prev.Mtimes[p]
		if !ok || now.Mtimes[p] > prevMtime {
			analysis.ModProductions[p] = now.ProductionToTests(p)
		}
	}
	for t := range now.Tests {
		prevMtime, ok := prev.Mtimes[t]
		if !ok || now.Mtimes[t] > prevMtime {
			analysis.ModTests[t] = true
		}
	}
	return analysis
}
