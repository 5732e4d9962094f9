// Package logging builds the slog loggers used across flowgrid. It adds the
// two levels slog lacks (trace and critical), maps the numeric verbosity used
// on the command line, and bridges into hclog for the plugin runtime.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/mattn/go-isatty"
)

// Level is the command-line verbosity, ordered from most to least verbose.
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelCritical
	LevelOff
)

// slog has no trace or critical level; these sit outside its built-in range.
const (
	SlogTrace    = slog.Level(-8)
	SlogCritical = slog.Level(12)
)

var levelNames = map[string]Level{
	"trace":    LevelTrace,
	"debug":    LevelDebug,
	"info":     LevelInfo,
	"warn":     LevelWarn,
	"warning":  LevelWarn,
	"err":      LevelError,
	"error":    LevelError,
	"critical": LevelCritical,
	"off":      LevelOff,
}

// ParseLevel accepts either the numeric form 0..6 or a level name.
func ParseLevel(s string) (Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		return LevelFromInt(n)
	}
	if lvl, ok := levelNames[s]; ok {
		return lvl, nil
	}
	return LevelInfo, fmt.Errorf("invalid log level %q", s)
}

// LevelFromInt validates a numeric verbosity.
func LevelFromInt(n int) (Level, error) {
	if n < int(LevelTrace) || n > int(LevelOff) {
		return LevelInfo, fmt.Errorf("invalid log level %d: must be between %d and %d", n, LevelTrace, LevelOff)
	}
	return Level(n), nil
}

func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "trace"
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "err"
	case LevelCritical:
		return "critical"
	case LevelOff:
		return "off"
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// Slog maps the verbosity onto a slog level.
func (l Level) Slog() slog.Level {
	switch l {
	case LevelTrace:
		return SlogTrace
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	case LevelCritical, LevelOff:
		return SlogCritical
	}
	return slog.LevelInfo
}

// HCLog maps the verbosity onto an hclog level.
func (l Level) HCLog() hclog.Level {
	switch l {
	case LevelTrace:
		return hclog.Trace
	case LevelDebug:
		return hclog.Debug
	case LevelWarn:
		return hclog.Warn
	case LevelError, LevelCritical:
		return hclog.Error
	case LevelOff:
		return hclog.Off
	}
	return hclog.Info
}

// ResolveFormat turns "auto" into "text" when w is a terminal and "json"
// otherwise. Other values are returned lower-cased.
func ResolveFormat(format string, w io.Writer) string {
	format = strings.ToLower(format)
	if format != "auto" {
		return format
	}
	if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return "text"
	}
	return "json"
}

// New creates a logger writing to w. It does not touch the global logger.
func New(level Level, format string, w io.Writer) *slog.Logger {
	if level == LevelOff {
		return slog.New(slog.DiscardHandler)
	}

	opts := &slog.HandlerOptions{
		Level:       level.Slog(),
		ReplaceAttr: replaceLevel,
	}

	var handler slog.Handler
	if ResolveFormat(format, w) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// replaceLevel names the two custom levels instead of printing "DEBUG-4".
func replaceLevel(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	lvl, ok := a.Value.Any().(slog.Level)
	if !ok {
		return a
	}
	switch {
	case lvl <= SlogTrace:
		a.Value = slog.StringValue("TRACE")
	case lvl >= SlogCritical:
		a.Value = slog.StringValue("CRITICAL")
	}
	return a
}

// HCLog adapts a slog logger for libraries that want an hclog.Logger, such
// as the plugin client.
func HCLog(logger *slog.Logger, name string, level Level) hclog.Logger {
	std := slog.NewLogLogger(logger.Handler(), slog.LevelDebug)
	return hclog.FromStandardLogger(std, &hclog.LoggerOptions{
		Name:  name,
		Level: level.HCLog(),
	})
}
