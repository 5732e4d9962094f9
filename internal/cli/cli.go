package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/vk/flowgrid/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

func usageError(err error) error {
	return &ExitError{Code: 2, Message: err.Error()}
}

const long = `flow runs a graph of nodes described in an HCL, YAML or JSON file.

Each node is an instance of a node class. Classes are compiled in
(console, constant, env, http.request, socketio) or loaded from the
modules directory: shared objects (.so) and module executables (.flowmod).

Log levels: 0 trace, 1 debug, 2 info, 3 warn, 4 err, 5 critical, 6 off.`

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer, fs afero.Fs) (*app.Config, bool, error) {
	cfg := app.DefaultConfig()
	cfg.ModulesPath = defaultModulesPath()

	var (
		configFile string
		helpShown  bool
		parsed     bool
	)
	cmd := &cobra.Command{
		Use:           "flow -f FLOW_FILE [options]",
		Short:         "Run a node-based dataflow graph.",
		Long:          long,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(*cobra.Command, []string) error {
			parsed = true
			return nil
		},
	}
	if args == nil {
		// cobra falls back to os.Args for a nil slice.
		args = []string{}
	}
	cmd.SetArgs(args)
	cmd.SetOut(output)
	cmd.SetErr(output)
	cmd.SetHelpFunc(func(c *cobra.Command, _ []string) {
		helpShown = true
		fmt.Fprintln(c.OutOrStdout(), c.Long)
		fmt.Fprintln(c.OutOrStdout())
		fmt.Fprint(c.OutOrStdout(), c.UsageString())
	})

	flags := cmd.Flags()
	flags.SortFlags = false
	flags.StringVarP(&cfg.FlowPath, "flow", "f", "", "Path to the flow file (.hcl, .yaml, .yml or .json).")
	flags.StringVarP(&cfg.LogLevel, "log_level", "l", cfg.LogLevel, "Log level, 0..6 or a level name.")
	flags.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log output format: text, json or auto.")
	flags.BoolVar(&cfg.Loop, "loop", false, "Run passes repeatedly until interrupted.")
	flags.DurationVar(&cfg.LoopInterval, "loop-interval", cfg.LoopInterval, "Pause between passes with --loop.")
	flags.StringVarP(&cfg.ModulesPath, "modules", "m", cfg.ModulesPath, "Directory to load node modules from.")
	flags.IntVar(&cfg.Workers, "workers", 0, "Maximum node computations in flight. 0 uses the number of CPUs.")
	flags.StringVar(&configFile, "config", "", "TOML file with default settings; explicit flags win.")
	flags.IntVar(&cfg.HealthcheckPort, "healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	flags.StringVar(&cfg.OnFailure, "on-failure", cfg.OnFailure, "What dependents of a failed node do: continue or skip.")
	flags.StringVar(&cfg.InputRetention, "input-retention", cfg.InputRetention, "Whether inputs keep their value between passes: retain or clear.")
	flags.BoolVar(&cfg.Describe, "describe", false, "Print the graph topology and exit without running it.")

	if err := cmd.Execute(); err != nil {
		return nil, false, usageError(err)
	}
	if helpShown || !parsed {
		return nil, true, nil
	}

	if configFile != "" {
		merged, err := mergeConfigFile(fs, configFile, cfg, cmd)
		if err != nil {
			return nil, false, usageError(err)
		}
		cfg = merged
	}

	if cfg.FlowPath == "" {
		return nil, false, usageError(errors.New(`required flag "flow" not set`))
	}
	if err := cfg.Validate(); err != nil {
		return nil, false, usageError(err)
	}
	return &cfg, false, nil
}

// mergeConfigFile layers the file over the defaults and then puts back
// every flag the user set explicitly.
func mergeConfigFile(fs afero.Fs, path string, fromFlags app.Config, cmd *cobra.Command) (app.Config, error) {
	merged := app.DefaultConfig()
	merged.ModulesPath = defaultModulesPath()
	if err := app.LoadConfigFile(fs, path, &merged); err != nil {
		return app.Config{}, err
	}

	changed := cmd.Flags().Changed
	override := func(flag string, apply func()) {
		if changed(flag) {
			apply()
		}
	}
	override("flow", func() { merged.FlowPath = fromFlags.FlowPath })
	override("log_level", func() { merged.LogLevel = fromFlags.LogLevel })
	override("log-format", func() { merged.LogFormat = fromFlags.LogFormat })
	override("loop", func() { merged.Loop = fromFlags.Loop })
	override("loop-interval", func() { merged.LoopInterval = fromFlags.LoopInterval })
	override("modules", func() { merged.ModulesPath = fromFlags.ModulesPath })
	override("workers", func() { merged.Workers = fromFlags.Workers })
	override("healthcheck-port", func() { merged.HealthcheckPort = fromFlags.HealthcheckPort })
	override("on-failure", func() { merged.OnFailure = fromFlags.OnFailure })
	override("input-retention", func() { merged.InputRetention = fromFlags.InputRetention })
	merged.Describe = fromFlags.Describe
	return merged, nil
}

// defaultModulesPath is the "modules" directory next to the executable,
// falling back to the working directory.
func defaultModulesPath() string {
	exe, err := os.Executable()
	if err != nil {
		return "modules"
	}
	return filepath.Join(filepath.Dir(exe), "modules")
}
