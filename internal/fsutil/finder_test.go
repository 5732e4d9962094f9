package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListFiles(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/mods/b.so", []byte("x"), 0o644))
	require.NoError(t, afero.WriteFile(fsys, "/mods/a.flowmod", []byte("x"), 0o755))
	require.NoError(t, afero.WriteFile(fsys, "/mods/nested/c.so", []byte("x"), 0o644))

	// --- Act ---
	files, err := ListFiles(fsys, "/mods")

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join("/mods", "a.flowmod"), filepath.Join("/mods", "b.so")}, files)
}

func TestListFiles_MissingDir(t *testing.T) {
	t.Parallel()

	_, err := ListFiles(afero.NewMemMapFs(), "/nowhere")
	assert.True(t, os.IsNotExist(err))
}
