// Package watch implements the watcher's change-detection core: an
// immutable Snapshot of discovered sources and their modification times, a
// Differ that compares two snapshots into an Analysis of what must re-run,
// and the WatchedDir that owns the previous snapshot and static mapping
// table across cycles.
package watch

import (
	"os"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// DependencyProvider computes, for a set of test-source paths, the set of
// production paths each one depends on. WatchedDir supplies an
// implementation that fans the work out across a worker pool; Snapshot
// itself is agnostic to how the answer is produced.
type DependencyProvider func(tests []string) map[string]map[string]bool

// Snapshot is an immutable capture of a watched tree's test and production
// sources, their mtimes at capture time, and the static mapping table in
// effect. The production-to-tests reverse index is built at most once, on
// first use, and never mutated afterward.
type Snapshot struct {
	Tests          map[string]bool
	Productions    map[string]bool
	Mtimes         map[string]int64
	staticMappings map[string][]string
	depsOf         DependencyProvider

	once  sync.Once
	index map[string][]string
}

// NewSnapshot captures mtimes for every path in tests and productions and
// returns an immutable Snapshot. depsOf is invoked lazily, only when the
// reverse index is first needed.
func NewSnapshot(tests, productions []string, depsOf DependencyProvider, staticMappings map[string][]string) *Snapshot {
	s := &Snapshot{
		Tests:          make(map[string]bool, len(tests)),
		Productions:    make(map[string]bool, len(productions)),
		Mtimes:         make(map[string]int64, len(tests)+len(productions)),
		staticMappings: staticMappings,
		depsOf:         depsOf,
	}
	for _, t := range tests {
		s.Tests[t] = true
		if ns, ok := mtimeNanos(t); ok {
			s.Mtimes[t] = ns
		}
	}
	for _, p := range productions {
		s.Productions[p] = true
		if ns, ok := mtimeNanos(p); ok {
			s.Mtimes[p] = ns
		}
	}
	return s
}

func mtimeNanos(path string) (int64, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, false
	}
	return info.ModTime().UnixNano(), true
}

// ProductionToTests returns the tests that depend on production path p,
// building the reverse index on first call and caching it thereafter. A
// path with no dependents and no static mapping returns an empty slice.
func (s *Snapshot) ProductionToTests(p string) []string {
	s.once.Do(s.buildIndex)
	return s.index[p]
}

func (s *Snapshot) buildIndex() {
	s.index = make(map[string][]string)
	if s.depsOf == nil {
		s.mergeStaticMappings()
		return
	}

	tests := make([]string, 0, len(s.Tests))
	for t := range s.Tests {
		tests = append(tests, t)
	}
	perTest := s.depsOf(tests)

	seen := make(map[string]map[string]bool)
	for t, deps := range perTest {
		for d := range deps {
			if seen[d] == nil {
				seen[d] = make(map[string]bool)
			}
			seen[d][t] = true
		}
	}
	for d, tt := range seen {
		list := make([]string, 0, len(tt))
		for t := range tt {
			list = append(list, t)
		}
		s.index[d] = list
	}
	s.mergeStaticMappings()
}

// mergeStaticMappings unions every static mapping whose production side is
// in this snapshot's production set into the index, expanding glob
// patterns against the current production set with doublestar.
func (s *Snapshot) mergeStaticMappings() {
	for pattern, mappedTests := range s.staticMappings {
		for prod := range s.Productions {
			matched := prod == pattern
			if !matched {
				if ok, _ := doublestar.Match(pattern, prod); ok {
					matched = true
				}
			}
			if !matched {
				continue
			}
			s.index[prod] = unionStrings(s.index[prod], mappedTests)
		}
	}
}

func unionStrings(existing, additional []string) []string {
	seen := make(map[string]bool, len(existing)+len(additional))
	out := make([]string, 0, len(existing)+len(additional))
	for _, v := range existing {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	for _, v := range additional {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
