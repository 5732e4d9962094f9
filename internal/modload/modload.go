// Package modload discovers node-class modules in a directory and installs
// them into a registry.Factory.
//
// A directory is scanned once, non-recursively, in listing order. Each file
// whose extension has a registered Opener is opened into a registry.Module
// and installed. A module that fails to open or install is skipped with a
// warning; the rest of the directory still loads. The resources a module
// holds (a plugin process, for instance) are handed back as closers for
// the caller to release.
package modload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"github.com/vk/flowgrid/internal/fsutil"
	"github.com/vk/flowgrid/internal/nodeplugin"
	"github.com/vk/flowgrid/internal/registry"
)

// ErrModuleLoad is wrapped by every entry in Report.Skipped.
var ErrModuleLoad = errors.New("module load failure")

// Opener turns a file into a module. The closer may be nil.
type Opener interface {
	Open(ctx context.Context, path string) (registry.Module, io.Closer, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, path string) (registry.Module, io.Closer, error)

func (fn OpenerFunc) Open(ctx context.Context, path string) (registry.Module, io.Closer, error) {
	return fn(ctx, path)
}

// Skip records a file that was not loaded.
type Skip struct {
	Path string
	Err  error
}

// Report is the outcome of one Load.
type Report struct {
	Loaded  []string
	Skipped []Skip
	Closers []io.Closer
}

// Loader scans module directories.
type Loader struct {
	fs      afero.Fs
	logger  *slog.Logger
	openers map[string]Opener
}

// Option configures a Loader.
type Option func(*Loader)

// WithFs sets the filesystem directories are listed from.
func WithFs(fs afero.Fs) Option {
	return func(l *Loader) { l.fs = fs }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// WithOpener registers o for files ending in ext, replacing any default.
// A nil opener disables the extension.
func WithOpener(ext string, o Opener) Option {
	return func(l *Loader) {
		ext = strings.ToLower(ext)
		if o == nil {
			delete(l.openers, ext)
			return
		}
		l.openers[ext] = o
	}
}

// New creates a Loader. By default it reads the OS filesystem, opens Go
// shared objects (.so) and launches plugin executables (.flowmod).
func New(opts ...Option) *Loader {
	l := &Loader{
		fs:     afero.NewOsFs(),
		logger: slog.Default(),
		openers: map[string]Opener{
			".so":      SharedObjectOpener{},
			".flowmod": nodeplugin.Opener{},
		},
	}
	for _, opt := range opts {
		opt(l)
	}
	if o, ok := l.openers[".flowmod"].(nodeplugin.Opener); ok && o.Logger == nil {
		o.Logger = l.logger
		l.openers[".flowmod"] = o
	}
	return l
}

// Extensions lists the file extensions the loader recognises.
func (l *Loader) Extensions() []string {
	exts := make([]string, 0, len(l.openers))
	for ext := range l.openers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Load installs every module found directly inside dir. A missing dir is
// not an error. Individual module failures end up in the report; only a
// failure to read the directory itself is returned.
func (l *Loader) Load(ctx context.Context, dir string, f *registry.Factory) (*Report, error) {
	logger := l.logger.With("modules_path", dir)
	report := &Report{}

	files, err := fsutil.ListFiles(l.fs, dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("Modules directory not found, continuing without dynamic modules.")
			return report, nil
		}
		return nil, fmt.Errorf("reading modules directory %q: %w", dir, err)
	}
	logger.Debug("Scanning modules directory.", "files", len(files))

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		ext := strings.ToLower(filepath.Ext(path))
		opener, ok := l.openers[ext]
		if !ok {
			logger.Debug("Ignoring file with unknown extension.", "file", path)
			continue
		}

		if err := l.loadOne(ctx, opener, path, f, report); err != nil {
			logger.Warn("Skipping module.", "file", path, "error", err)
			report.Skipped = append(report.Skipped, Skip{Path: path, Err: err})
			continue
		}
		logger.Info("Module loaded.", "file", path)
		report.Loaded = append(report.Loaded, path)
	}
	return report, nil
}

// loadOne opens and installs a single module. A panic raised by the
// module's entry point is turned into an ErrModuleLoad so the rest of the
// directory still loads.
func (l *Loader) loadOne(ctx context.Context, opener Opener, path string, f *registry.Factory, report *Report) (err error) {
	var closer io.Closer
	defer func() {
		if r := recover(); r != nil {
			if closer != nil {
				_ = closer.Close()
			}
			err = fmt.Errorf("%w: loading %s: panic: %v", ErrModuleLoad, filepath.Base(path), r)
		}
	}()

	mod, closer, err := opener.Open(ctx, path)
	if err != nil {
		return fmt.Errorf("%w: opening %s: %w", ErrModuleLoad, filepath.Base(path), err)
	}
	if err := f.Install(mod); err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		return fmt.Errorf("%w: installing %s: %w", ErrModuleLoad, filepath.Base(path), err)
	}
	if closer != nil {
		report.Closers = append(report.Closers, closer)
	}
	return nil
}
