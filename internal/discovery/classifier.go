// Package discovery walks a Python package tree and classifies the files
// it finds as packages, test sources, or production sources.
package discovery

import (
	"os"
	"strings"
)

// InitFile is the marker file that makes a directory a package.
const InitFile = "__init__.py"

// DefaultIgnorePackages are the package basenames ignored unless overridden.
func DefaultIgnorePackages() map[string]bool {
	return map[string]bool{"__pycache__": true}
}

// DefaultIgnoreModules are the module basenames ignored unless overridden.
func DefaultIgnoreModules() map[string]bool {
	return map[string]bool{InitFile: true}
}

// IsPackage reports whether dir is a directory containing a regular file
// literally named __init__.py.
func IsPackage(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if !e.IsDir() && e.Name() == InitFile {
			return true, nil
		}
	}
	return false, nil
}

// IsTestSource reports whether basename identifies a test source: a ".py"
// file that starts with "test_" or ends with "_test.py", and is not in
// ignoreModules.
func IsTestSource(basename string, ignoreModules map[string]bool) bool {
	if ignoreModules[basename] {
		return false
	}
	if !strings.HasSuffix(basename, ".py") {
		return false
	}
	return strings.HasPrefix(basename, "test_") || strings.HasSuffix(basename, "_test.py")
}

// IsProductionSource reports whether basename identifies a production
// source: it ends in ".py", is not ignored, and is not a test source.
func IsProductionSource(basename string, ignoreModules map[string]bool) bool {
	if ignoreModules[basename] {
		return false
	}
	if !strings.HasSuffix(basename, ".py") {
		return false
	}
	return !IsTestSource(basename, ignoreModules)
}

// FileExists reports whether path names a regular file (not a directory).
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
