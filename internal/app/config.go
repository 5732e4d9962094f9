package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/afero"
	"github.com/vk/flowgrid/internal/graph"
	"github.com/vk/flowgrid/internal/logging"
)

// Config holds all the necessary configuration for an App instance to run.
// The toml tags are the keys accepted in a config file.
type Config struct {
	FlowPath    string `toml:"flow"`
	ModulesPath string `toml:"modules"`

	LogLevel        string `toml:"log_level"`
	LogFormat       string `toml:"log_format"`
	HealthcheckPort int    `toml:"healthcheck_port"`
	Workers         int    `toml:"workers"`

	Loop         bool          `toml:"loop"`
	LoopInterval time.Duration `toml:"loop_interval"`

	OnFailure      string `toml:"on_failure"`
	InputRetention string `toml:"input_retention"`

	// Describe prints the loaded topology instead of running it.
	Describe bool `toml:"-"`
}

// DefaultConfig returns the values used when neither a flag nor the config
// file sets a field.
func DefaultConfig() Config {
	return Config{
		ModulesPath:    "modules",
		LogLevel:       "info",
		LogFormat:      "auto",
		LoopInterval:   time.Millisecond,
		OnFailure:      "continue",
		InputRetention: "retain",
	}
}

// LoadConfigFile decodes a TOML file over cfg. Keys missing from the file
// leave the existing values in place; unknown keys are an error.
func LoadConfigFile(fs afero.Fs, path string, cfg *Config) error {
	src, err := afero.ReadFile(fs, path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	md, err := toml.Decode(string(src), cfg)
	if err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("config file %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	if c.FlowPath == "" {
		return errors.New("a flow file is required")
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json", "auto":
	default:
		return fmt.Errorf("invalid log format %q: must be 'text', 'json' or 'auto'", c.LogFormat)
	}
	if _, err := graph.ParseFailurePolicy(c.OnFailure); err != nil {
		return err
	}
	if _, err := graph.ParseInputRetention(c.InputRetention); err != nil {
		return err
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	if c.Loop && c.LoopInterval <= 0 {
		return fmt.Errorf("loop interval must be positive")
	}
	if c.HealthcheckPort < 0 || c.HealthcheckPort > 65535 {
		return fmt.Errorf("invalid healthcheck port %d", c.HealthcheckPort)
	}
	return nil
}

// graphOptions translates the policy settings. Validate has already
// rejected anything unparsable.
func (c *Config) graphOptions() []graph.Option {
	policy, _ := graph.ParseFailurePolicy(c.OnFailure)
	retention, _ := graph.ParseInputRetention(c.InputRetention)
	return []graph.Option{
		graph.WithFailurePolicy(policy),
		graph.WithInputRetention(retention),
	}
}
