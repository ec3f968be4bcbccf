package config

// InstallStep is a shell-style command run during installation.
type InstallStep struct {
	// Command is split into words the way a shell would, without expansion.
	Command string `yaml:"command" toml:"command"`
	// Dir is the working directory relative to the project root.
	Dir string `yaml:"dir,omitempty" toml:"dir,omitempty"`
}

// InstallConfig holds the dependency installation steps.
type InstallConfig struct {
	Composer InstallStep `yaml:"composer" toml:"composer"`
	Bower    InstallStep `yaml:"bower" toml:"bower"`
}

// DefaultInstallConfig returns production defaults.
func DefaultInstallConfig() InstallConfig {
	return InstallConfig{
		Composer: InstallStep{Command: "composer install", Dir: "."},
		Bower:    InstallStep{Command: "node_modules/.bin/bower install", Dir: "."},
	}
}

// ToolConfig gates an external tool on a semver constraint.
// The key in Config.Tools is matched against the base name of the executable.
type ToolConfig struct {
	// Bin overrides the executable queried for its version.
	Bin string `yaml:"bin,omitempty" toml:"bin,omitempty"`
	// VersionArgs defaults to ["--version"].
	VersionArgs []string `yaml:"version_args,omitempty" toml:"version_args,omitempty"`
	// Constraint is a Masterminds semver constraint such as ">= 2.0, < 3".
	Constraint string `yaml:"constraint" toml:"constraint"`
}
