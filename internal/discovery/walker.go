package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	ignore "github.com/sabhiram/go-gitignore"
)

// PackageRef is a directory discovered to be a package.
type PackageRef struct {
	Dir string // absolute path
}

// TestSource is a discovered test file. It carries only its path; import
// resolution against the watched tree is supplied separately.
type TestSource struct {
	Path string // absolute path
}

// ProductionSource is a discovered non-test Python source file.
type ProductionSource struct {
	Path string // absolute path
}

// Walker discovers and classifies Python sources beneath a watched
// directory. A Walker is reusable across cycles: SubPackages, TestSources,
// and ProductionSources re-walk the filesystem on every call (the caller is
// expected to call them once per cycle to build a fresh Snapshot), while
// RootPackage is computed once and cached for the Walker's lifetime.
type Walker struct {
	Dir            string
	IgnorePackages map[string]bool
	IgnoreModules  map[string]bool

	// GitIgnore optionally excludes additional paths beneath Dir from
	// SubPackages, the way a project's own .gitignore would. Nil disables
	// this supplement entirely. GitIgnoreBase is the directory the ignore
	// file's patterns are relative to; empty means Dir.
	GitIgnore     *ignore.GitIgnore
	GitIgnoreBase string

	rootOnce sync.Once
	rootPkg  string
	rootErr  error
}

// NewWalker creates a Walker rooted at dir, which must already be an
// absolute, existing package directory.
func NewWalker(dir string, ignorePackages, ignoreModules map[string]bool) *Walker {
	return &Walker{
		Dir:            dir,
		IgnorePackages: ignorePackages,
		IgnoreModules:  ignoreModules,
	}
}

// RootPackage returns the outermost ancestor of Dir that is still a
// package, computed by repeatedly replacing the current directory with its
// parent while the parent is a package. The result is cached.
func (w *Walker) RootPackage() (string, error) {
	w.rootOnce.Do(func() {
		dir, err := filepath.Abs(w.Dir)
		if err != nil {
			w.rootErr = err
			return
		}
		for {
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			ok, err := IsPackage(parent)
			if err != nil {
				// An unreadable ancestor just stops the climb; dir itself
				// is already known to be a package.
				break
			}
			if !ok {
				break
			}
			dir = parent
		}
		w.rootPkg = dir
	})
	return w.rootPkg, w.rootErr
}

// SubPackages yields Dir plus every descendant directory that is a package
// and whose basename is not ignored. Descent halts into a non-package
// directory: its own descendants, package or not, are never visited.
func (w *Walker) SubPackages() ([]PackageRef, error) {
	abs, err := filepath.Abs(w.Dir)
	if err != nil {
		return nil, err
	}
	var out []PackageRef
	stack := []string{abs}
	for len(stack) > 0 {
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("read dir %s: %w", dir, err)
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			name := e.Name()
			if w.IgnorePackages[name] {
				continue
			}
			sub := filepath.Join(dir, name)
			if w.gitIgnored(sub) {
				continue
			}
			ok, err := IsPackage(sub)
			if err != nil {
				return nil, fmt.Errorf("stat %s: %w", sub, err)
			}
			if !ok {
				continue
			}
			stack = append(stack, sub)
		}
		out = append(out, PackageRef{Dir: dir})
	}
	return out, nil
}

func (w *Walker) gitIgnored(path string) bool {
	if w.GitIgnore == nil {
		return false
	}
	base := w.GitIgnoreBase
	if base == "" {
		base = w.Dir
	}
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	// path is always a directory here; the trailing slash lets
	// directory-only patterns such as "scratch/" match it.
	return w.GitIgnore.MatchesPath(filepath.ToSlash(rel) + "/")
}

// TestSources yields each file in each sub-package that IsTestSource
// identifies as a test.
func (w *Walker) TestSources() ([]TestSource, error) {
	pkgs, err := w.SubPackages()
	if err != nil {
		return nil, err
	}
	var out []TestSource
	for _, pkg := range pkgs {
		entries, err := os.ReadDir(pkg.Dir)
		if err != nil {
			return nil, fmt.Errorf("read dir %s: %w", pkg.Dir, err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if IsTestSource(e.Name(), w.IgnoreModules) {
				out = append(out, TestSource{Path: filepath.Join(pkg.Dir, e.Name())})
			}
		}
	}
	return out, nil
}

// ProductionSources yields each file in each sub-package that
// IsProductionSource identifies as production code. When the root package
// differs from Dir, production files directly under the root package are
// also yielded (but not under siblings of Dir).
func (w *Walker) ProductionSources() ([]ProductionSource, error) {
	pkgs, err := w.SubPackages()
	if err != nil {
		return nil, err
	}
	var out []ProductionSource
	seen := make(map[string]bool)
	for _, pkg := range pkgs {
		files, err := productionFilesIn(pkg.Dir, w.IgnoreModules)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if !seen[f] {
				seen[f] = true
				out = append(out, ProductionSource{Path: f})
			}
		}
	}

	root, err := w.RootPackage()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(w.Dir)
	if err != nil {
		return nil, err
	}
	if root != abs {
		files, err := productionFilesIn(root, w.IgnoreModules)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if !seen[f] {
				seen[f] = true
				out = append(out, ProductionSource{Path: f})
			}
		}
	}
	return out, nil
}

func productionFilesIn(dir string, ignoreModules map[string]bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if IsProductionSource(e.Name(), ignoreModules) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out, nil
}
