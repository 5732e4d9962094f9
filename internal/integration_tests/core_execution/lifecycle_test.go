package integration_tests

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/flowgrid/internal/node"
	"github.com/vk/flowgrid/internal/registry"
	"github.com/vk/flowgrid/internal/testutil"
)

type hooked struct {
	*node.Base
	computes *atomic.Int32
}

func (n *hooked) Compute(context.Context) error {
	n.computes.Add(1)
	return nil
}

// hookedClass builds a class whose start hook fails when failStart is set
// and whose stop hook counts its calls.
func hookedClass(key string, failStart bool, computes, stops *atomic.Int32) *testutil.SimpleModule {
	return &testutil.SimpleModule{
		Key: key,
		New: func(info node.Info, env node.Env) (node.Node, error) {
			n := &hooked{computes: computes}
			n.Base = node.NewBase(info, env,
				node.WithStartHook(func(context.Context) error {
					if failStart {
						return errors.New("resource unavailable")
					}
					return nil
				}),
				node.WithStopHook(func(context.Context) error {
					stops.Add(1)
					return nil
				}),
			)
			return n, nil
		},
	}
}

func TestCoreExecution_LifecycleHooks(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	var computes, stops atomic.Int32
	h := testutil.Harness{
		Modules: []registry.Module{hookedClass("hooked", false, &computes, &stops)},
		Passes:  3,
	}

	// --- Act ---
	result := h.Run(context.Background(), t, "main.hcl", `
		node "hooked" "a" {}
		node "hooked" "b" {}
	`)

	// --- Assert ---
	require.NoError(t, result.Err)
	assert.Equal(t, int32(6), computes.Load(), "two nodes, three passes")
	assert.Equal(t, int32(2), stops.Load(), "each started node is stopped once")
	result.Graph.Visit(func(n node.Node) {
		assert.Equal(t, node.StateStopped, n.State())
	})
}

func TestCoreExecution_FailedStartIsReported(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	var computes, stops atomic.Int32
	h := testutil.Harness{
		Modules: []registry.Module{hookedClass("fragile", true, &computes, &stops)},
	}

	// --- Act ---
	result := h.Run(context.Background(), t, "main.hcl", `node "fragile" "f" {}`)

	// --- Assert ---
	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "resource unavailable")
	assert.Zero(t, computes.Load())
	n, ok := result.Graph.Node("f")
	require.True(t, ok)
	assert.Equal(t, node.StateRegistered, n.State(), "a node whose start hook fails stays registered")
}
