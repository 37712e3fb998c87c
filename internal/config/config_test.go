package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadProjectConfigValidYml(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, ".pywatchrc.yml", `
version: 1
ignore-package: [vendor, migrations]
ignore-module: [conftest.py]
frequency: 1.5
run-timeout: 10.0
map:
  - "src/app.py->tests/test_app.py"
dbg: true
`)

	cfg, err := LoadProjectConfig(dir, "")
	if err != nil {
		t.Fatalf("LoadProjectConfig() error: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected non-nil config")
	}
	if len(cfg.IgnorePackage) != 2 || cfg.IgnorePackage[0] != "vendor" {
		t.Errorf("IgnorePackage = %v", cfg.IgnorePackage)
	}
	if cfg.Frequency != 1.5 {
		t.Errorf("Frequency = %v, want 1.5", cfg.Frequency)
	}
	if cfg.RunTimeout != 10.0 {
		t.Errorf("RunTimeout = %v, want 10.0", cfg.RunTimeout)
	}
	if !cfg.Dbg {
		t.Error("expected Dbg = true")
	}
	if len(cfg.Map) != 1 {
		t.Fatalf("expected one map entry, got %v", cfg.Map)
	}
}

func TestLoadProjectConfigMissingFile(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadProjectConfig(dir, "")
	if err != nil {
		t.Fatalf("LoadProjectConfig() error: %v", err)
	}
	if cfg != nil {
		t.Errorf("expected nil config for missing file, got %+v", cfg)
	}
}

func TestLoadProjectConfigInvalidMapping(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, ".pywatchrc.yml", "version: 1\nmap: [\"no-arrow-here\"]\n")

	if _, err := LoadProjectConfig(dir, ""); err == nil {
		t.Fatal("expected error for malformed map entry")
	}
}

func TestLoadProjectConfigInvalidVersion(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, ".pywatchrc.yml", "version: 99\n")

	if _, err := LoadProjectConfig(dir, ""); err == nil {
		t.Fatal("expected error for unsupported version")
	}
}

func TestLoadProjectConfigNegativeFrequency(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, ".pywatchrc.yml", "version: 1\nfrequency: -2\n")

	if _, err := LoadProjectConfig(dir, ""); err == nil {
		t.Fatal("expected error for negative frequency")
	}
}

func TestLoadProjectConfigExplicitPath(t *testing.T) {
	dir := t.TempDir()
	custom := writeConfigFile(t, dir, "custom-config.yml", "version: 1\nfrequency: 2.0\n")

	cfg, err := LoadProjectConfig(dir, custom)
	if err != nil {
		t.Fatalf("LoadProjectConfig() error: %v", err)
	}
	if cfg.Frequency != 2.0 {
		t.Errorf("Frequency = %v, want 2.0", cfg.Frequency)
	}
}

func TestLoadProjectConfigYamlExtension(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, ".pywatchrc.yaml", "version: 1\nfrequency: 3.0\n")

	cfg, err := LoadProjectConfig(dir, "")
	if err != nil {
		t.Fatalf("LoadProjectConfig() error: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected non-nil config for .pywatchrc.yaml")
	}
	if cfg.Frequency != 3.0 {
		t.Errorf("Frequency = %v, want 3.0", cfg.Frequency)
	}
}

func TestDefaultsMatchDocumentedBaseline(t *testing.T) {
	d := Defaults()
	if d.Frequency != 0.5 {
		t.Errorf("default frequency = %v, want 0.5", d.Frequency)
	}
	if d.RunTimeout != 20.0 {
		t.Errorf("default run-timeout = %v, want 20.0", d.RunTimeout)
	}
	if d.Dbg {
		t.Error("default dbg should be false")
	}
}

func TestApplyProjectConfigMergesIgnoreListsAndDefersToFlags(t *testing.T) {
	o := Defaults()
	o.IgnorePackage["flagged"] = true

	c := &ProjectConfig{
		IgnorePackage: []string{"fromfile"},
		IgnoreModule:  []string{"conftest.py"},
		Frequency:     3.0,
		Map:           []string{"a.py->a_test.py"},
	}
	o.ApplyProjectConfig(c)

	if !o.IgnorePackage["flagged"] || !o.IgnorePackage["fromfile"] {
		t.Errorf("expected flag- and file-sourced ignores merged, got %v", o.IgnorePackage)
	}
	if !o.IgnoreModule["conftest.py"] {
		t.Errorf("expected conftest.py in ignore modules, got %v", o.IgnoreModule)
	}
	if o.Frequency != 3.0 {
		t.Errorf("frequency = %v, want 3.0 from file", o.Frequency)
	}
	if o.RunTimeout != 20.0 {
		t.Errorf("run-timeout should keep its default, got %v", o.RunTimeout)
	}
	if len(o.Map) != 1 || o.Map[0] != "a.py->a_test.py" {
		t.Errorf("unexpected map: %v", o.Map)
	}
}

func TestApplyProjectConfigNilIsNoOp(t *testing.T) {
	o := Defaults()
	o.ApplyProjectConfig(nil)
	if o.Frequency != 0.5 {
		t.Errorf("nil apply should leave defaults untouched, got %v", o.Frequency)
	}
}
