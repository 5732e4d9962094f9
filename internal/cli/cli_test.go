package cli

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Help(t *testing.T) {
	t.Parallel()

	for _, arg := range []string{"-h", "--help"} {
		t.Run(arg, func(t *testing.T) {
			t.Parallel()

			// --- Arrange ---
			out := &bytes.Buffer{}

			// --- Act ---
			cfg, shouldExit, err := Parse([]string{arg}, out, afero.NewMemMapFs())

			// --- Assert ---
			require.NoError(t, err)
			assert.True(t, shouldExit)
			assert.Nil(t, cfg)
			assert.Contains(t, out.String(), "Usage:")
			assert.Contains(t, out.String(), "--flow")
			assert.Contains(t, out.String(), "--input-retention")
		})
	}
}

func TestParse_UsageErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		args        []string
		expectedErr string
	}{
		{name: "no arguments", args: nil, expectedErr: `"flow" not set`},
		{name: "unknown flag", args: []string{"--nope"}, expectedErr: "unknown flag"},
		{name: "positional argument", args: []string{"-f", "a.hcl", "extra"}, expectedErr: "unknown command"},
		{name: "log level out of range", args: []string{"-f", "a.hcl", "-l", "9"}, expectedErr: "invalid log level"},
		{name: "unknown log level name", args: []string{"-f", "a.hcl", "-l", "loud"}, expectedErr: "invalid log level"},
		{name: "bad log format", args: []string{"-f", "a.hcl", "--log-format", "xml"}, expectedErr: "invalid log format"},
		{name: "bad failure policy", args: []string{"-f", "a.hcl", "--on-failure", "panic"}, expectedErr: "panic"},
		{name: "bad retention", args: []string{"-f", "a.hcl", "--input-retention", "forever"}, expectedErr: "forever"},
		{name: "negative workers", args: []string{"-f", "a.hcl", "--workers", "-1"}, expectedErr: "workers"},
		{name: "zero loop interval", args: []string{"-f", "a.hcl", "--loop", "--loop-interval", "0s"}, expectedErr: "loop interval"},
		{name: "missing config file", args: []string{"-f", "a.hcl", "--config", "nope.toml"}, expectedErr: "reading config file"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			// --- Act ---
			cfg, shouldExit, err := Parse(tc.args, &bytes.Buffer{}, afero.NewMemMapFs())

			// --- Assert ---
			require.Error(t, err)
			assert.False(t, shouldExit)
			assert.Nil(t, cfg)
			var exitErr *ExitError
			require.True(t, errors.As(err, &exitErr))
			assert.Equal(t, 2, exitErr.Code)
			assert.Contains(t, exitErr.Message, tc.expectedErr)
		})
	}
}

func TestParse_Flags(t *testing.T) {
	t.Parallel()

	// --- Act ---
	cfg, shouldExit, err := Parse([]string{
		"-f", "flow.yaml",
		"-l", "1",
		"--log-format", "json",
		"--loop", "--loop-interval", "250ms",
		"-m", "/opt/flow/modules",
		"--workers", "3",
		"--on-failure", "skip",
		"--input-retention", "clear",
		"--healthcheck-port", "8080",
		"--describe",
	}, &bytes.Buffer{}, afero.NewMemMapFs())

	// --- Assert ---
	require.NoError(t, err)
	require.False(t, shouldExit)
	assert.Equal(t, "flow.yaml", cfg.FlowPath)
	assert.Equal(t, "1", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.True(t, cfg.Loop)
	assert.Equal(t, 250*time.Millisecond, cfg.LoopInterval)
	assert.Equal(t, "/opt/flow/modules", cfg.ModulesPath)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, "skip", cfg.OnFailure)
	assert.Equal(t, "clear", cfg.InputRetention)
	assert.Equal(t, 8080, cfg.HealthcheckPort)
	assert.True(t, cfg.Describe)
}

func TestParse_Defaults(t *testing.T) {
	t.Parallel()

	cfg, _, err := Parse([]string{"--flow", "flow.hcl"}, &bytes.Buffer{}, afero.NewMemMapFs())
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "auto", cfg.LogFormat)
	assert.Equal(t, time.Millisecond, cfg.LoopInterval)
	assert.Equal(t, "continue", cfg.OnFailure)
	assert.Equal(t, "retain", cfg.InputRetention)
	assert.Contains(t, cfg.ModulesPath, "modules")
	assert.False(t, cfg.Loop)
}

func TestParse_ConfigFile(t *testing.T) {
	t.Parallel()

	const file = `
flow = "from-file.hcl"
log_level = "debug"
workers = 4
loop_interval = "2s"
on_failure = "skip"
`

	testCases := []struct {
		name   string
		args   []string
		assert func(t *testing.T, flow, level string, workers int, interval time.Duration, policy string)
	}{
		{
			name: "file fills unset flags",
			args: []string{"--config", "flow.toml"},
			assert: func(t *testing.T, flow, level string, workers int, interval time.Duration, policy string) {
				assert.Equal(t, "from-file.hcl", flow)
				assert.Equal(t, "debug", level)
				assert.Equal(t, 4, workers)
				assert.Equal(t, 2*time.Second, interval)
				assert.Equal(t, "skip", policy)
			},
		},
		{
			name: "explicit flags win",
			args: []string{"--config", "flow.toml", "-f", "cli.hcl", "--workers", "8", "--on-failure", "continue"},
			assert: func(t *testing.T, flow, level string, workers int, interval time.Duration, policy string) {
				assert.Equal(t, "cli.hcl", flow)
				assert.Equal(t, "debug", level)
				assert.Equal(t, 8, workers)
				assert.Equal(t, 2*time.Second, interval)
				assert.Equal(t, "continue", policy)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			// --- Arrange ---
			fs := afero.NewMemMapFs()
			require.NoError(t, afero.WriteFile(fs, "flow.toml", []byte(file), 0o644))

			// --- Act ---
			cfg, _, err := Parse(tc.args, &bytes.Buffer{}, fs)

			// --- Assert ---
			require.NoError(t, err)
			tc.assert(t, cfg.FlowPath, cfg.LogLevel, cfg.Workers, cfg.LoopInterval, cfg.OnFailure)
		})
	}
}

func TestParse_ConfigFileUnknownKey(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "flow.toml", []byte(`flow = "a.hcl"`+"\ncolour = \"red\"\n"), 0o644))

	// --- Act ---
	_, _, err := Parse([]string{"--config", "flow.toml"}, &bytes.Buffer{}, fs)

	// --- Assert ---
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
	assert.Contains(t, exitErr.Message, "colour")
}
