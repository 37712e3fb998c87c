package watch

import (
	"path/filepath"
	"strings"
	"time"

	ignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/errgroup"

	"github.com/pywatch/pywatch/internal/discovery"
	"github.com/pywatch/pywatch/internal/errs"
	"github.com/pywatch/pywatch/internal/pyimport"
)

// DefaultTimeout is the subprocess run timeout in the absence of explicit
// configuration.
const DefaultTimeout = 20 * time.Second

// WatchedDir is the Control Surface's anchor object: it owns the previous
// snapshot and the static mapping table across cycles, and is the only
// thing the Cycle Driver mutates. It is read-shared with the analysis
// worker pool (workers receive paths, never the WatchedDir itself).
type WatchedDir struct {
	Dir         string
	RootPackage string
	Timeout     time.Duration
	Workers     int

	walker    *discovery.Walker
	extractor *pyimport.Extractor

	staticMappings map[string][]string
	prev           *Snapshot
}

// NewWatchedDir constructs a WatchedDir rooted at dir. dir must itself be
// a package (contain an __init__.py); otherwise construction fails.
func NewWatchedDir(dir string, ignorePackages, ignoreModules map[string]bool, extractor *pyimport.Extractor) (*WatchedDir, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errs.NewConfigError("resolve watched directory %q: %v", dir, err)
	}
	ok, err := discovery.IsPackage(abs)
	if err != nil {
		return nil, errs.NewConfigError("stat watched directory %q: %v", abs, err)
	}
	if !ok {
		return nil, errs.NewConfigError("%q is not a package (missing __init__.py)", abs)
	}

	walker := discovery.NewWalker(abs, ignorePackages, ignoreModules)
	root, err := walker.RootPackage()
	if err != nil {
		return nil, errs.NewConfigError("resolve root package for %q: %v", abs, err)
	}
	if gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore")); err == nil {
		walker.GitIgnore = gi
		walker.GitIgnoreBase = root
	}

	wd := &WatchedDir{
		Dir:            abs,
		RootPackage:    root,
		Timeout:        DefaultTimeout,
		Workers:        8,
		walker:         walker,
		extractor:      extractor,
		staticMappings: make(map[string][]string),
	}
	wd.prev = NewSnapshot(nil, nil, wd.dependencyProvider, wd.staticMappings)
	return wd, nil
}

// Map registers one static mapping in the "PRODUCTION_PATH->TEST_PATH"
// syntax. Both sides are resolved relative to the root package when such
// a path exists there, else taken verbatim. The production side may be a
// doublestar glob.
func (wd *WatchedDir) Map(mapping string) error {
	idx := strings.Index(mapping, "->")
	if idx < 0 {
		return errs.NewConfigError("static mapping %q missing '->'", mapping)
	}
	prod, test := mapping[:idx], mapping[idx+len("->"):]
	prod = wd.resolveMappingSide(prod)
	test = wd.resolveMappingSide(test)
	wd.staticMappings[prod] = append(wd.staticMappings[prod], test)
	return nil
}

func (wd *WatchedDir) resolveMappingSide(p string) string {
	candidate := filepath.Join(wd.RootPackage, p)
	if discovery.FileExists(candidate) {
		return candidate
	}
	return p
}

// TestModulesToRun captures a fresh snapshot, diffs it against the
// previous one, swaps the previous snapshot to the new one, and returns
// the Analysis. It must be called exactly once per cycle, before
// dispatch; the driver's single thread owns the swap.
func (wd *WatchedDir) TestModulesToRun() (*Analysis, error) {
	now, err := wd.snapshotNow()
	if err != nil {
		return nil, err
	}
	analysis := Updated(wd.prev, now)
	wd.prev = now
	return analysis, nil
}

// TestSources returns the absolute paths of every currently discovered
// test source, used by the Cycle Driver's force-run ('r') command.
func (wd *WatchedDir) TestSources() ([]string, error) {
	tests, err := wd.walker.TestSources()
	if err != nil {
		return nil, err
	}
	out := make([]string, len(tests))
	for i, t := range tests {
		out[i] = t.Path
	}
	return out, nil
}

func (wd *WatchedDir) snapshotNow() (*Snapshot, error) {
	tests, err := wd.TestSources()
	if err != nil {
		return nil, err
	}
	prods, err := wd.walker.ProductionSources()
	if err != nil {
		return nil, err
	}
	prodPaths := make([]string, len(prods))
	for i, p := range prods {
		prodPaths[i] = p.Path
	}
	return NewSnapshot(tests, prodPaths, wd.dependencyProvider, wd.staticMappings), nil
}

// dependencyProvider parses each test source in its own goroutine,
// bounded to Workers concurrent parses.
func (wd *WatchedDir) dependencyProvider(tests []string) map[string]map[string]bool {
	resolver := wd.resolver()
	result := make(map[string]map[string]bool, len(tests))

	if wd.extractor == nil {
		return result
	}

	g := new(errgroup.Group)
	g.SetLimit(wd.workerLimit())
	deps := make([]map[string]bool, len(tests))
	for i, t := range tests {
		i, t := i, t
		g.Go(func() error {
			deps[i] = wd.extractor.Dependencies(t, resolver)
			return nil
		})
	}
	_ = g.Wait()

	for i, t := range tests {
		result[t] = deps[i]
	}
	return result
}

func (wd *WatchedDir) workerLimit() int {
	if wd.Workers <= 0 {
		return 8
	}
	return wd.Workers
}

func (wd *WatchedDir) resolver() pyimport.Resolver {
	pkgs, err := wd.walker.SubPackages()
	sub := make(map[string]bool, len(pkgs))
	if err == nil {
		for _, p := range pkgs {
			sub[p.Dir] = true
		}
	}
	return pyimport.Resolver{RootPackage: wd.RootPackage, SubPackages: sub}
}
