package app

import (
	"io"
	"log/slog"

	"github.com/vk/flowgrid/internal/logging"
)

// newLogger creates the application's logger. It does not set the global
// logger, allowing for isolated logger instances.
func newLogger(cfg *Config, outW io.Writer) (*slog.Logger, logging.Level) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logging.LevelInfo
	}
	return logging.New(level, logging.ResolveFormat(cfg.LogFormat, outW), outW), level
}
