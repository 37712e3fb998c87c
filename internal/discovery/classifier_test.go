package discovery

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsPackage(t *testing.T) {
	dir := t.TempDir()
	ok, err := IsPackage(dir)
	if err != nil {
		t.Fatalf("IsPackage: %v", err)
	}
	if ok {
		t.Fatal("empty dir should not be a package")
	}

	if err := os.WriteFile(filepath.Join(dir, InitFile), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	ok, err = IsPackage(dir)
	if err != nil {
		t.Fatalf("IsPackage: %v", err)
	}
	if !ok {
		t.Fatal("dir with __init__.py should be a package")
	}
}

func TestIsPackageRejectsDirectoryNamedInit(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, InitFile), 0o755); err != nil {
		t.Fatal(err)
	}
	ok, err := IsPackage(dir)
	if err != nil {
		t.Fatalf("IsPackage: %v", err)
	}
	if ok {
		t.Fatal("a directory named __init__.py must not count as the marker file")
	}
}

func TestIsTestSource(t *testing.T) {
	ignore := DefaultIgnoreModules()
	cases := map[string]bool{
		"test_foo.py":  true,
		"foo_test.py":  true,
		"foo.py":       false,
		"conftest.py":  false,
		"__init__.py":  false,
		"test_foo.pyc": false,
	}
	for name, want := range cases {
		if got := IsTestSource(name, ignore); got != want {
			t.Errorf("IsTestSource(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestIsProductionSource(t *testing.T) {
	ignore := DefaultIgnoreModules()
	cases := map[string]bool{
		"foo.py":      true,
		"test_foo.py": false,
		"foo_test.py": false,
		"__init__.py": false,
		"foo.txt":     false,
	}
	for name, want := range cases {
		if got := IsProductionSource(name, ignore); got != want {
			t.Errorf("IsProductionSource(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestIsTestSourceHonorsIgnoreModules(t *testing.T) {
	ignore := map[string]bool{"test_skip.py": true}
	if IsTestSource("test_skip.py", ignore) {
		t.Fatal("explicitly ignored module must not classify as test source")
	}
}
