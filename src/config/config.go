package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Default config file names, tried in order when no path is given.
var defaultConfigFiles = []string{".themeforge.yml", ".themeforge.yaml", ".themeforge.toml"}

// Config is the top-level themeforge configuration.
// It is loaded once at startup and treated as read-only afterwards.
type Config struct {
	Build   BuildConfig           `yaml:"build" toml:"build"`
	Check   CheckConfig           `yaml:"check" toml:"check"`
	Install InstallConfig         `yaml:"install" toml:"install"`
	Tools   map[string]ToolConfig `yaml:"tools" toml:"tools"`
}

// Find returns the first default config file present in dir, or "".
func Find(dir string) string {
	for _, name := range defaultConfigFiles {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// LoadForRoot loads path, or the default file found in root when path is
// empty. A root without a config file gets defaults; the working directory
// is never consulted.
func LoadForRoot(root, path string) (*Config, error) {
	if path == "" {
		if path = Find(root); path == "" {
			return defaults(), nil
		}
	}
	return Load(path)
}

// Load reads configuration from a YAML or TOML file, chosen by extension.
// If path is empty, the default files are tried in order.
// Returns defaults if no default file exists.
func Load(path string) (*Config, error) {
	if path == "" {
		if path = Find("."); path == "" {
			return defaults(), nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &ConfigurationError{Problems: []string{fmt.Sprintf("config file %s does not exist", path)}}
		}
		return nil, err
	}

	cfg := defaults()
	if err := decode(path, data, cfg); err != nil {
		return nil, &ConfigurationError{Problems: []string{fmt.Sprintf("parsing %s: %v", path, err)}}
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return toml.Unmarshal(data, cfg)
	default:
		return yaml.Unmarshal(data, cfg)
	}
}

func defaults() *Config {
	return &Config{
		Build:   DefaultBuildConfig(),
		Check:   DefaultCheckConfig(),
		Install: DefaultInstallConfig(),
		Tools:   map[string]ToolConfig{},
	}
}

// Default returns a configuration populated with production defaults only.
func Default() *Config {
	return defaults()
}
