package config

import (
	"fmt"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Kind names a family of build packages processed by the same capability.
type Kind string

const (
	KindSCSS Kind = "scss"
	KindJS   Kind = "js"
)

// Kinds lists every build kind in the order "build" runs them.
func Kinds() []Kind {
	return []Kind{KindSCSS, KindJS}
}

// ParseKind maps a kind name to a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindSCSS, KindJS:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown build kind %q (supported: scss, js)", s)
}

// BuildConfig holds the build package lists per kind.
type BuildConfig struct {
	// SassBin is the dart-sass executable used to compile scss packages.
	SassBin string `yaml:"sass_bin" toml:"sass_bin"`

	// Concurrency bounds how many packages run at once. Zero means 2*NumCPU.
	Concurrency int `yaml:"concurrency" toml:"concurrency"`

	// ReportDir receives JUnit reports when running in CI.
	ReportDir string `yaml:"report_dir" toml:"report_dir"`

	SCSS []Package `yaml:"scss" toml:"scss"`
	JS   []Package `yaml:"js" toml:"js"`
}

// DefaultBuildConfig returns production defaults.
func DefaultBuildConfig() BuildConfig {
	return BuildConfig{
		SassBin:     "sass",
		Concurrency: runtime.NumCPU() * 2,
		ReportDir:   ".themeforge/reports",
	}
}

// Package is one unit of build work: a set of source patterns processed
// through a capability and written under Dest.
type Package struct {
	// Name identifies the package in reports. Defaults to "<kind>[<index>]".
	Name string `yaml:"name,omitempty" toml:"name,omitempty"`

	// Sources are glob patterns; order matters for concatenation.
	// Patterns prefixed with "!" exclude matches.
	Sources StringList `yaml:"src" toml:"src"`

	// Dest is the output directory.
	Dest string `yaml:"dest" toml:"dest"`

	// Maps is the source map directory relative to Dest. Empty disables maps.
	Maps string `yaml:"maps,omitempty" toml:"maps,omitempty"`

	// Concat is the bundle file name. Empty emits each file independently.
	Concat Concat `yaml:"concat,omitempty" toml:"concat,omitempty"`

	// Min enables minification.
	Min bool `yaml:"min,omitempty" toml:"min,omitempty"`

	// MinExt is the suffix replacing ".js" on minified output.
	MinExt string `yaml:"min_ext,omitempty" toml:"min_ext,omitempty"`

	// KeepSource also emits the unminified file next to the minified one.
	KeepSource bool `yaml:"keep_source,omitempty" toml:"keep_source,omitempty"`

	// Prefix holds browser targets for vendor prefixing.
	Prefix PrefixConfig `yaml:"prefix,omitempty" toml:"prefix,omitempty"`
}

// PrefixConfig lists browser engine targets such as "chrome100" or "safari15".
type PrefixConfig struct {
	Browsers StringList `yaml:"browsers,omitempty" toml:"browsers,omitempty"`
}

// MinSuffix returns the configured minified suffix or ".min.js".
func (p Package) MinSuffix() string {
	if p.MinExt == "" {
		return ".min.js"
	}
	return p.MinExt
}

// MapsEnabled reports whether source maps are written for this package.
func (p Package) MapsEnabled() bool {
	return p.Maps != ""
}

// StringList accepts either a single string or a list of strings.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var v string
		if err := node.Decode(&v); err != nil {
			return err
		}
		*s = StringList{v}
		return nil
	case yaml.SequenceNode:
		var v []string
		if err := node.Decode(&v); err != nil {
			return err
		}
		*s = v
		return nil
	}
	return fmt.Errorf("line %d: expected a string or a list of strings", node.Line)
}

// Concat is a bundle file name, or empty when concatenation is disabled.
// In YAML it also accepts the literal false.
type Concat string

// Enabled reports whether files are concatenated.
func (c Concat) Enabled() bool { return c != "" }

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *Concat) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: concat must be false or a file name", node.Line)
	}
	if node.Tag == "!!bool" {
		var b bool
		if err := node.Decode(&b); err != nil {
			return err
		}
		if b {
			return fmt.Errorf("line %d: concat must be false or a file name", node.Line)
		}
		*c = ""
		return nil
	}
	*c = Concat(node.Value)
	return nil
}

// ListPackages returns the ordered packages configured for kind.
// Missing names are filled in; missing required fields yield a ConfigurationError.
func (c *Config) ListPackages(kind Kind) ([]Package, error) {
	var src []Package
	switch kind {
	case KindSCSS:
		src = c.Build.SCSS
	case KindJS:
		src = c.Build.JS
	default:
		return nil, &ConfigurationError{Problems: []string{fmt.Sprintf("unknown build kind %q", kind)}}
	}

	var problems []string
	pkgs := make([]Package, len(src))
	for i, p := range src {
		path := fmt.Sprintf("build.%s[%d]", kind, i)
		problems = append(problems, validatePackage(p, path)...)

		p.Sources = append(StringList(nil), p.Sources...)
		p.Prefix.Browsers = append(StringList(nil), p.Prefix.Browsers...)
		if p.Name == "" {
			p.Name = fmt.Sprintf("%s[%d]", kind, i)
		}
		pkgs[i] = p
	}
	if len(problems) > 0 {
		return nil, &ConfigurationError{Problems: problems}
	}
	return pkgs, nil
}
