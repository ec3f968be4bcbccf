package config

// FileSet names one of the configured check pattern lists.
type FileSet string

const (
	FileSetPHP FileSet = "php"
	FileSetJS  FileSet = "js"
)

// CheckerConfig holds per-checker overrides.
type CheckerConfig struct {
	Enabled *bool    `yaml:"enabled,omitempty" toml:"enabled,omitempty"`
	Exclude []string `yaml:"exclude,omitempty" toml:"exclude,omitempty"`
}

// CheckConfig holds static analysis configuration.
type CheckConfig struct {
	// PHP and JS are the pattern lists checked by the PHP and JS checkers.
	PHP StringList `yaml:"php" toml:"php"`
	JS  StringList `yaml:"js" toml:"js"`

	PHPBin       string `yaml:"php_bin" toml:"php_bin"`
	PHPCSBin     string `yaml:"phpcs_bin" toml:"phpcs_bin"`
	PHPCSStd     string `yaml:"phpcs_standard" toml:"phpcs_standard"`
	ESLintBin    string `yaml:"eslint_bin" toml:"eslint_bin"`
	CacheDir     string `yaml:"cache_dir" toml:"cache_dir"`
	TargetBranch string `yaml:"target_branch" toml:"target_branch"`

	Checkers map[string]CheckerConfig `yaml:"checkers" toml:"checkers"`
}

// Patterns returns the pattern list for a file set.
func (c CheckConfig) Patterns(set FileSet) []string {
	switch set {
	case FileSetPHP:
		return c.PHP
	case FileSetJS:
		return c.JS
	}
	return nil
}

// DefaultCheckConfig returns production defaults.
func DefaultCheckConfig() CheckConfig {
	return CheckConfig{
		PHP:       StringList{"{modules,themes}/custom/**/*.{php,inc,module,theme}"},
		JS:        StringList{"{modules,themes}/custom/**/*.js", "!{modules,themes}/custom/**/bower_components/**", "!{modules,themes}/custom/**/dist/**"},
		PHPBin:    "php",
		PHPCSBin:  "vendor/bin/phpcs",
		PHPCSStd:  "vendor/drupal/coder/coder_sniffer/Drupal",
		ESLintBin: "node_modules/.bin/eslint",
		CacheDir:  ".themeforge/cache/check",
		Checkers:  map[string]CheckerConfig{},
	}
}
