// Package config handles .pywatchrc.yml project-level configuration and
// its layering under explicit CLI flags, so a project can commit its
// default ignore lists and static mappings instead of repeating them on
// every invocation.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ProjectConfig represents the .pywatchrc.yml configuration file, the
// watcher's options expressed as file-level defaults rather than flags.
type ProjectConfig struct {
	Version       int      `yaml:"version"`
	IgnorePackage []string `yaml:"ignore-package"`
	IgnoreModule  []string `yaml:"ignore-module"`
	Frequency     float64  `yaml:"frequency"`
	RunTimeout    float64  `yaml:"run-timeout"`
	Map           []string `yaml:"map"`
	Dbg           bool     `yaml:"dbg"`
}

// LoadProjectConfig loads project configuration from .pywatchrc.yml or
// .pywatchrc.yaml. If explicitPath is provided (from --config), that file
// is loaded. Otherwise dir is searched for .pywatchrc.yml then
// .pywatchrc.yaml. Returns nil (no error) if no config file is found.
func LoadProjectConfig(dir string, explicitPath string) (*ProjectConfig, error) {
	var configPath string

	if explicitPath != "" {
		configPath = explicitPath
	} else {
		ymlPath := filepath.Join(dir, ".pywatchrc.yml")
		yamlPath := filepath.Join(dir, ".pywatchrc.yaml")

		if _, err := os.Stat(ymlPath); err == nil {
			configPath = ymlPath
		} else if _, err := os.Stat(yamlPath); err == nil {
			configPath = yamlPath
		} else {
			return nil, nil
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read project config %s: %w", configPath, err)
	}

	cfg := &ProjectConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse project config %s: %w", configPath, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid project config %s: %w", configPath, err)
	}

	return cfg, nil
}

// Validate checks that the ProjectConfig values are sane before the
// watcher acts on them.
func (c *ProjectConfig) Validate() error {
	if c.Version != 0 && c.Version != 1 {
		return fmt.Errorf("unsupported config version %d (expected 1)", c.Version)
	}
	if c.Frequency < 0 {
		return fmt.Errorf("frequency must be >= 0, got %f", c.Frequency)
	}
	if c.RunTimeout < 0 {
		return fmt.Errorf("run-timeout must be >= 0, got %f", c.RunTimeout)
	}
	for _, m := range c.Map {
		if !isValidMapping(m) {
			return fmt.Errorf("malformed map entry %q, want PRODUCTION->TEST", m)
		}
	}
	return nil
}

func isValidMapping(mapping string) bool {
	for i := 0; i+1 < len(mapping); i++ {
		if mapping[i] == '-' && mapping[i+1] == '>' {
			return i > 0 && i+2 < len(mapping)
		}
	}
	return false
}

// Options is the fully resolved set of watcher settings, after layering
// flags over the project file over built-in defaults.
type Options struct {
	IgnorePackage map[string]bool
	IgnoreModule  map[string]bool
	Frequency     float64
	RunTimeout    float64
	Map           []string
	Dbg           bool
}

// Defaults returns the built-in option baseline before any file or flag
// overrides are layered in.
func Defaults() Options {
	return Options{
		IgnorePackage: map[string]bool{},
		IgnoreModule:  map[string]bool{},
		Frequency:     0.5,
		RunTimeout:    20.0,
	}
}

// ApplyProjectConfig layers a loaded .pywatchrc.yml over the current
// Options: a positive Frequency or RunTimeout in the file replaces the
// current value, and Dbg is turned on if the file sets it. Flags take
// precedence only because the caller applies them after this call. Ignore
// lists and mappings accumulate rather than overwrite, so a project's
// committed defaults extend, not replace, whatever a one-off invocation
// adds.
func (o *Options) ApplyProjectConfig(c *ProjectConfig) {
	if c == nil {
		return
	}
	for _, name := range c.IgnorePackage {
		o.IgnorePackage[name] = true
	}
	for _, name := range c.IgnoreModule {
		o.IgnoreModule[name] = true
	}
	if c.Frequency > 0 {
		o.Frequency = c.Frequency
	}
	if c.RunTimeout > 0 {
		o.RunTimeout = c.RunTimeout
	}
	o.Map = append(o.Map, c.Map...)
	o.Dbg = o.Dbg || c.Dbg
}
