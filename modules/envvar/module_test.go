package envvar

import (
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/flowgrid/internal/datacell"
	"github.com/vk/flowgrid/internal/node"
	"github.com/vk/flowgrid/internal/registry"
)

type testEnv struct{}

func (testEnv) Logger() *slog.Logger { return slog.New(slog.DiscardHandler) }

func newNode(t *testing.T, config map[string]any, vars map[string]string) node.Node {
	t.Helper()
	f := registry.New()
	require.NoError(t, f.Install(Module{}))
	n, err := f.Create(Key, uuid.Nil, "var", testEnv{})
	require.NoError(t, err)
	n.(*Node).lookup = func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	}
	require.NoError(t, n.(node.Configurable).Configure(config))
	require.NoError(t, n.Start(context.Background()))
	return n
}

func TestCompute(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		config      map[string]any
		vars        map[string]string
		wantValue   string
		wantSet     bool
		wantPresent bool
	}{
		{
			name:        "variable set",
			config:      map[string]any{"name": "HOME"},
			vars:        map[string]string{"HOME": "/home/flow"},
			wantValue:   "/home/flow",
			wantSet:     true,
			wantPresent: true,
		},
		{
			name:        "set but empty",
			config:      map[string]any{"name": "EMPTY", "default": "x"},
			vars:        map[string]string{"EMPTY": ""},
			wantValue:   "",
			wantSet:     true,
			wantPresent: true,
		},
		{
			name:      "unset uses default",
			config:    map[string]any{"name": "MISSING", "default": "fallback"},
			wantValue: "fallback",
			wantSet:   true,
		},
		{
			name:   "unset without default leaves value empty",
			config: map[string]any{"name": "MISSING"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			// --- Arrange ---
			n := newNode(t, tc.config, tc.vars)

			// --- Act ---
			err := node.Execute(context.Background(), n)

			// --- Assert ---
			require.NoError(t, err)
			value, err := n.Output("value")
			require.NoError(t, err)
			if !tc.wantSet {
				assert.Nil(t, value.Get())
			} else {
				got, err := datacell.Get[string](value.Get())
				require.NoError(t, err)
				assert.Equal(t, tc.wantValue, got)
			}

			present, err := n.Output("present")
			require.NoError(t, err)
			got, err := datacell.Get[bool](present.Get())
			require.NoError(t, err)
			assert.Equal(t, tc.wantPresent, got)
		})
	}
}

func TestConfigure_RequiresName(t *testing.T) {
	t.Parallel()

	f := registry.New()
	require.NoError(t, f.Install(Module{}))
	n, err := f.Create(Key, uuid.Nil, "var", testEnv{})
	require.NoError(t, err)

	err = n.(node.Configurable).Configure(map[string]any{"default": "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")
}
