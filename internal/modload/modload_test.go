package modload

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/flowgrid/internal/node"
	"github.com/vk/flowgrid/internal/registry"
)

type noop struct{ *node.Base }

func (*noop) Compute(context.Context) error { return nil }

func ctorNoop(info node.Info, env node.Env) (node.Node, error) {
	return &noop{Base: node.NewBase(info, env)}, nil
}

// moduleWith registers the given class keys.
func moduleWith(keys ...string) registry.Module {
	return registry.ModuleFunc(func(f *registry.Factory) error {
		for _, k := range keys {
			if err := f.RegisterNodeClass(k, "Test", ctorNoop); err != nil {
				return err
			}
		}
		return nil
	})
}

type countingCloser struct{ closed atomic.Int32 }

func (c *countingCloser) Close() error {
	c.closed.Add(1)
	return nil
}

// fakeOpener maps file base names to modules; anything else fails to open.
type fakeOpener struct {
	modules map[string]registry.Module
	closers map[string]*countingCloser
}

func (o *fakeOpener) Open(_ context.Context, path string) (registry.Module, io.Closer, error) {
	name := filepath.Base(path)
	mod, ok := o.modules[name]
	if !ok {
		return nil, nil, errors.New("not a valid module")
	}
	c := &countingCloser{}
	if o.closers == nil {
		o.closers = make(map[string]*countingCloser)
	}
	o.closers[name] = c
	return mod, c, nil
}

func newMemFs(t *testing.T, files ...string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/mods", 0o755))
	for _, f := range files {
		require.NoError(t, afero.WriteFile(fs, filepath.Join("/mods", f), []byte("x"), 0o644))
	}
	return fs
}

func TestLoad_OneValidOneMalformed(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	var logs bytes.Buffer
	opener := &fakeOpener{modules: map[string]registry.Module{"valid.so": moduleWith("test.valid")}}
	l := New(
		WithFs(newMemFs(t, "broken.so", "README.md", "valid.so")),
		WithOpener(".so", opener),
		WithLogger(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))),
	)
	f := registry.New()

	// --- Act ---
	report, err := l.Load(context.Background(), "/mods", f)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []string{"/mods/valid.so"}, report.Loaded)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "/mods/broken.so", report.Skipped[0].Path)
	assert.ErrorIs(t, report.Skipped[0].Err, ErrModuleLoad)
	assert.Len(t, report.Closers, 1)

	assert.True(t, f.Has("test.valid"))
	assert.Equal(t, 1, f.Len())

	out := logs.String()
	assert.Contains(t, out, "Skipping module.")
	assert.Contains(t, out, "Module loaded.")
	assert.Contains(t, out, "Ignoring file with unknown extension.")
}

func TestLoad_PanickingModuleIsSkipped(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	var logs bytes.Buffer
	opener := &fakeOpener{modules: map[string]registry.Module{
		"a_bad.so": registry.ModuleFunc(func(*registry.Factory) error {
			panic("init blew up")
		}),
		"b_good.so": moduleWith("test.good"),
	}}
	l := New(
		WithFs(newMemFs(t, "a_bad.so", "b_good.so")),
		WithOpener(".so", opener),
		WithLogger(slog.New(slog.NewTextHandler(&logs, nil))),
	)
	f := registry.New()

	// --- Act ---
	var (
		report *Report
		err    error
	)
	require.NotPanics(t, func() {
		report, err = l.Load(context.Background(), "/mods", f)
	})

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []string{"/mods/b_good.so"}, report.Loaded)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "/mods/a_bad.so", report.Skipped[0].Path)
	assert.ErrorIs(t, report.Skipped[0].Err, ErrModuleLoad)
	assert.ErrorContains(t, report.Skipped[0].Err, "init blew up")
	assert.Equal(t, int32(1), opener.closers["a_bad.so"].closed.Load())

	assert.True(t, f.Has("test.good"))
	assert.Equal(t, 1, f.Len())
	assert.Contains(t, logs.String(), "Skipping module.")
}

func TestLoad_DuplicateClassAcrossModules(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	opener := &fakeOpener{modules: map[string]registry.Module{
		"a.so": moduleWith("shared", "only.a"),
		"b.so": moduleWith("shared", "only.b"),
	}}
	l := New(WithFs(newMemFs(t, "a.so", "b.so")), WithOpener(".so", opener), WithLogger(slog.New(slog.DiscardHandler)))
	f := registry.New()

	// --- Act ---
	report, err := l.Load(context.Background(), "/mods", f)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []string{"/mods/a.so"}, report.Loaded)
	require.Len(t, report.Skipped, 1)
	assert.ErrorIs(t, report.Skipped[0].Err, registry.ErrDuplicateRegistration)
	assert.ErrorIs(t, report.Skipped[0].Err, ErrModuleLoad)

	assert.False(t, f.Has("only.b"), "a rejected module installs nothing")
	assert.Equal(t, int32(1), opener.closers["b.so"].closed.Load(), "a rejected module is closed")
	assert.Zero(t, opener.closers["a.so"].closed.Load())
}

func TestLoad_MissingDirectory(t *testing.T) {
	t.Parallel()

	l := New(WithFs(afero.NewMemMapFs()), WithLogger(slog.New(slog.DiscardHandler)))

	report, err := l.Load(context.Background(), "/nowhere", registry.New())

	require.NoError(t, err)
	assert.Empty(t, report.Loaded)
	assert.Empty(t, report.Skipped)
}

func TestLoad_CancelledContext(t *testing.T) {
	t.Parallel()

	opener := &fakeOpener{modules: map[string]registry.Module{"a.so": moduleWith("a")}}
	l := New(WithFs(newMemFs(t, "a.so")), WithOpener(".so", opener), WithLogger(slog.New(slog.DiscardHandler)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.Load(ctx, "/mods", registry.New())

	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoad_GarbageSharedObject(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "garbage.so"), []byte("not an ELF file"), 0o644))
	l := New(WithLogger(slog.New(slog.DiscardHandler)))
	f := registry.New()

	// --- Act ---
	report, err := l.Load(context.Background(), dir, f)

	// --- Assert ---
	require.NoError(t, err)
	assert.Empty(t, report.Loaded)
	require.Len(t, report.Skipped, 1)
	assert.ErrorIs(t, report.Skipped[0].Err, ErrModuleLoad)
	assert.Zero(t, f.Len())
}

func TestWithOpener_NilDisablesExtension(t *testing.T) {
	t.Parallel()

	l := New(WithOpener(".so", nil))

	assert.Equal(t, []string{".flowmod"}, l.Extensions())
}
