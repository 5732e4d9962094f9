package httprequest

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
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

func newNode(t *testing.T, config map[string]any) node.Node {
	t.Helper()
	f := registry.New()
	require.NoError(t, f.Install(Module{}))
	n, err := f.Create(Key, uuid.Nil, "req", testEnv{})
	require.NoError(t, err)
	require.NoError(t, n.(node.Configurable).Configure(config))
	require.NoError(t, n.Start(context.Background()))
	t.Cleanup(func() { _ = n.Stop(context.Background()) })
	return n
}

func output[T any](t *testing.T, n node.Node, name string) T {
	t.Helper()
	p, err := n.Output(name)
	require.NoError(t, err)
	v, err := datacell.Get[T](p.Get())
	require.NoError(t, err)
	return v
}

func TestCompute_PostsJSONBody(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	type request struct{ method, header, body string }
	received := make(chan request, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		received <- request{method: r.Method, header: r.Header.Get("X-Flow"), body: string(b)}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("created"))
	}))
	t.Cleanup(srv.Close)

	n := newNode(t, map[string]any{
		"url":     srv.URL,
		"method":  "POST",
		"timeout": "5s",
		"headers": map[string]any{"X-Flow": "yes"},
	})
	in, err := n.Input("body")
	require.NoError(t, err)
	require.NoError(t, in.Put(datacell.Of(map[string]any{"k": "v"})))

	// --- Act ---
	err = node.Execute(context.Background(), n)

	// --- Assert ---
	require.NoError(t, err)
	got := <-received
	assert.Equal(t, "POST", got.method)
	assert.Equal(t, "yes", got.header)
	assert.JSONEq(t, `{"k":"v"}`, got.body)
	assert.Equal(t, http.StatusCreated, output[int](t, n, "status_code"))
	assert.Equal(t, "created", output[string](t, n, "body"))
}

func TestCompute_URLInputOverridesConfig(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.URL.Path))
	}))
	t.Cleanup(srv.Close)

	n := newNode(t, map[string]any{"url": "http://127.0.0.1:1/unused"})
	in, err := n.Input("url")
	require.NoError(t, err)
	require.NoError(t, in.Put(datacell.Of(srv.URL+"/override")))

	require.NoError(t, node.Execute(context.Background(), n))

	assert.Equal(t, "/override", output[string](t, n, "body"))
}

func TestCompute_NoURL(t *testing.T) {
	t.Parallel()

	n := newNode(t, map[string]any{})

	err := node.Execute(context.Background(), n)

	assert.ErrorContains(t, err, "no url")
}
