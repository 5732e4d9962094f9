// Package httprequest provides the "http.request" node class. The node owns an
// *http.Client for its lifetime: it is created when the node starts and its
// idle connections are closed when the node stops.
package httprequest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vk/flowgrid/internal/node"
	"github.com/vk/flowgrid/internal/registry"
)

const Key = "http.request"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Config is the node's configuration. The "url" input, when it holds a
// value, overrides URL.
type Config struct {
	URL     string            `flow:"url"`
	Method  string            `flow:"method"`
	Timeout time.Duration     `flow:"timeout"`
	Headers map[string]string `flow:"headers"`
}

type Node struct {
	*node.Base
	cfg    Config
	client *http.Client
}

func New(info node.Info, env node.Env) (node.Node, error) {
	n := &Node{cfg: Config{Method: http.MethodGet, Timeout: 30 * time.Second}}
	n.Base = node.NewBase(info, env,
		node.WithStartHook(n.start),
		node.WithStopHook(n.stop),
	)
	if _, err := node.AddInput[string](n.Base, "url", "overrides the configured url"); err != nil {
		return nil, err
	}
	if _, err := node.AddInput[any](n.Base, "body", "request body; strings are sent as-is, anything else as JSON"); err != nil {
		return nil, err
	}
	if _, err := node.AddOutput[int](n.Base, "status_code", "response status code"); err != nil {
		return nil, err
	}
	if _, err := node.AddOutput[string](n.Base, "body", "response body"); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *Node) Configure(raw map[string]any) error {
	return node.DecodeConfig(raw, &n.cfg)
}

func (n *Node) start(context.Context) error {
	n.client = &http.Client{
		Timeout: n.cfg.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	return nil
}

func (n *Node) stop(context.Context) error {
	n.client.CloseIdleConnections()
	return nil
}

func (n *Node) Compute(ctx context.Context) error {
	url := n.cfg.URL
	if v, ok, err := node.ReadInput[string](n.Base, "url"); err != nil {
		return err
	} else if ok {
		url = v
	}
	if url == "" {
		return fmt.Errorf("no url configured or received")
	}

	body, err := n.requestBody()
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, n.cfg.Method, url, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range n.cfg.Headers {
		req.Header.Set(k, v)
	}

	logger := n.Logger().With("method", n.cfg.Method, "url", url)
	logger.Debug("Making HTTP request.")
	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()
	logger.Debug("Received HTTP response.", "status", resp.Status)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if err := node.WriteOutput(n.Base, "status_code", resp.StatusCode); err != nil {
		return err
	}
	return node.WriteOutput(n.Base, "body", string(respBody))
}

func (n *Node) requestBody() (io.Reader, error) {
	c, err := n.GetInputData("body")
	if err != nil || c == nil {
		return nil, err
	}
	switch v := c.Value().(type) {
	case nil:
		return nil, nil
	case string:
		return bytes.NewBufferString(v), nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		return bytes.NewReader(b), nil
	}
}

// Register registers the class with the factory.
func (Module) Register(f *registry.Factory) error {
	return f.RegisterNodeClass(Key, "Network", New)
}
