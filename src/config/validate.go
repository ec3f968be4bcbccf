package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/bmatcuk/doublestar/v4"
)

// ConfigurationError reports malformed or missing static configuration.
// It is fatal: nothing runs once it is returned.
type ConfigurationError struct {
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// Validate checks structural invariants of a loaded Config.
// Returns warnings (soft issues) and a ConfigurationError listing every hard problem.
func Validate(cfg *Config) (warnings []string, err error) {
	var errs []string

	// ── Build ─────────────────────────────────────────────────────────────

	if cfg.Build.Concurrency < 0 {
		errs = append(errs, fmt.Sprintf("build.concurrency: must not be negative, got %d", cfg.Build.Concurrency))
	}

	for _, kind := range Kinds() {
		pkgs := cfg.Build.SCSS
		if kind == KindJS {
			pkgs = cfg.Build.JS
		}
		names := make(map[string]bool)
		for i, p := range pkgs {
			path := fmt.Sprintf("build.%s[%d]", kind, i)
			errs = append(errs, validatePackage(p, path)...)

			if p.Name != "" {
				if names[p.Name] {
					errs = append(errs, fmt.Sprintf("%s: duplicate package name %q", path, p.Name))
				}
				names[p.Name] = true
			}

			switch kind {
			case KindSCSS:
				if p.Concat.Enabled() {
					warnings = append(warnings, fmt.Sprintf("%s: concat is ignored for scss packages", path))
				}
				if p.Min {
					warnings = append(warnings, fmt.Sprintf("%s: min is ignored for scss packages", path))
				}
			case KindJS:
				if len(p.Prefix.Browsers) > 0 {
					warnings = append(warnings, fmt.Sprintf("%s: prefix is ignored for js packages", path))
				}
			}

			for _, b := range p.Prefix.Browsers {
				if _, _, perr := ParseBrowser(b); perr != nil {
					errs = append(errs, fmt.Sprintf("%s.prefix.browsers: %v", path, perr))
				}
			}
		}
	}

	// ── Check ─────────────────────────────────────────────────────────────

	for _, set := range []FileSet{FileSetPHP, FileSetJS} {
		for _, pattern := range cfg.Check.Patterns(set) {
			if !doublestar.ValidatePattern(strings.TrimPrefix(pattern, "!")) {
				errs = append(errs, fmt.Sprintf("check.%s: invalid pattern %q", set, pattern))
			}
		}
	}

	// ── Install ───────────────────────────────────────────────────────────

	if strings.TrimSpace(cfg.Install.Composer.Command) == "" {
		warnings = append(warnings, "install.composer.command: empty, install:composer will fail")
	}
	if strings.TrimSpace(cfg.Install.Bower.Command) == "" {
		warnings = append(warnings, "install.bower.command: empty, install:bower will fail")
	}

	// ── Tools ─────────────────────────────────────────────────────────────

	for name, tc := range cfg.Tools {
		if tc.Constraint == "" {
			errs = append(errs, fmt.Sprintf("tools.%s: constraint is required", name))
			continue
		}
		if _, cerr := semver.NewConstraint(tc.Constraint); cerr != nil {
			errs = append(errs, fmt.Sprintf("tools.%s: invalid constraint %q: %v", name, tc.Constraint, cerr))
		}
	}

	if len(errs) > 0 {
		return warnings, &ConfigurationError{Problems: errs}
	}
	return warnings, nil
}

// validatePackage checks the fields every scheduled package must carry.
func validatePackage(p Package, path string) []string {
	var errs []string
	if len(p.Sources) == 0 {
		errs = append(errs, fmt.Sprintf("%s: src is required", path))
	}
	for _, s := range p.Sources {
		if strings.TrimSpace(s) == "" {
			errs = append(errs, fmt.Sprintf("%s: src contains an empty pattern", path))
			continue
		}
		if !doublestar.ValidatePattern(strings.TrimPrefix(s, "!")) {
			errs = append(errs, fmt.Sprintf("%s: invalid src pattern %q", path, s))
		}
	}
	if strings.TrimSpace(p.Dest) == "" {
		errs = append(errs, fmt.Sprintf("%s: dest is required", path))
	}
	if p.Min && p.KeepSource && p.MinSuffix() == ".js" {
		errs = append(errs, fmt.Sprintf("%s: min_ext %q with keep_source writes the minified file over its source", path, p.MinExt))
	}
	if p.Concat.Enabled() && strings.ContainsAny(string(p.Concat), `/\`) {
		errs = append(errs, fmt.Sprintf("%s: concat must be a file name, got %q", path, p.Concat))
	}
	return errs
}

var browserRe = regexp.MustCompile(`^([a-z]+)(\d+(?:\.\d+){0,2})$`)

var knownBrowsers = map[string]bool{
	"chrome":  true,
	"edge":    true,
	"firefox": true,
	"ie":      true,
	"ios":     true,
	"opera":   true,
	"safari":  true,
}

// ParseBrowser splits a target such as "safari15.4" into name and version.
func ParseBrowser(s string) (name, version string, err error) {
	m := browserRe.FindStringSubmatch(strings.ToLower(strings.TrimSpace(s)))
	if m == nil {
		return "", "", fmt.Errorf("target %q must look like chrome100 or safari15.4", s)
	}
	if !knownBrowsers[m[1]] {
		return "", "", fmt.Errorf("unknown browser %q (supported: chrome, edge, firefox, ie, ios, opera, safari)", m[1])
	}
	return m[1], m[2], nil
}
