// Package socketio provides the "socketio" node class. The node connects to
// a socket.io server when it starts and keeps the connection for its
// lifetime. On every pass it emits the value on its "data" input and waits
// for a reply event, which it places on "response".
package socketio

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/vk/flowgrid/internal/node"
	"github.com/vk/flowgrid/internal/registry"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

const Key = "socketio"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Config is the node's configuration.
type Config struct {
	URL                string        `flow:"url"`
	Namespace          string        `flow:"namespace"`
	EmitEvent          string        `flow:"emit_event"`
	OnEvent            string        `flow:"on_event"`
	Timeout            time.Duration `flow:"timeout"`
	InsecureSkipVerify bool          `flow:"insecure_skip_verify"`
}

type Node struct {
	*node.Base
	cfg Config

	mu     sync.Mutex
	client *socket.Socket
	// waiter receives the next on_event reply. Nil between passes, so a
	// reply that arrives after a timeout is dropped.
	waiter chan any
}

func New(info node.Info, env node.Env) (node.Node, error) {
	n := &Node{cfg: Config{Namespace: "/", Timeout: 10 * time.Second}}
	n.Base = node.NewBase(info, env,
		node.WithStartHook(n.connect),
		node.WithStopHook(n.disconnect),
	)
	if _, err := node.AddInput[any](n.Base, "data", "payload emitted with emit_event"); err != nil {
		return nil, err
	}
	if _, err := node.AddOutput[any](n.Base, "response", "first argument of the on_event reply"); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *Node) Configure(raw map[string]any) error {
	if err := node.DecodeConfig(raw, &n.cfg); err != nil {
		return err
	}
	switch {
	case n.cfg.URL == "":
		return fmt.Errorf("url is required")
	case n.cfg.EmitEvent == "":
		return fmt.Errorf("emit_event is required")
	case n.cfg.OnEvent == "":
		return fmt.Errorf("on_event is required")
	case n.cfg.Timeout <= 0:
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}

func (n *Node) connect(ctx context.Context) error {
	logger := n.Logger().With("url", n.cfg.URL)

	parsedURL, err := url.Parse(n.cfg.URL)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}

	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)
	if n.cfg.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification.")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(n.cfg.Namespace, opts)

	connectChan := make(chan error, 2)
	io.Once(types.EventName("connect"), func(...any) {
		connectChan <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		var err error = fmt.Errorf("connect_error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		connectChan <- err
	})

	logger.Debug("Initiating connection.")
	io.Connect()

	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return fmt.Errorf("socket.io connection failed: %w", err)
		}
	case <-ctx.Done():
		io.Disconnect()
		return fmt.Errorf("context cancelled while waiting for socket.io connection: %w", ctx.Err())
	case <-time.After(n.cfg.Timeout):
		io.Disconnect()
		return fmt.Errorf("timed out after %s waiting for socket.io connection", n.cfg.Timeout)
	}

	io.On(types.EventName(n.cfg.OnEvent), n.deliver)

	logger.Info("Successfully connected.", "sid", io.Id())
	n.mu.Lock()
	n.client = io
	n.mu.Unlock()
	return nil
}

func (n *Node) disconnect(context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.client != nil {
		n.Logger().Debug("Disconnecting socket client.", "sid", n.client.Id())
		n.client.Disconnect()
		n.client = nil
	}
	return nil
}

func (n *Node) Compute(ctx context.Context) error {
	n.mu.Lock()
	client := n.client
	n.mu.Unlock()
	if client == nil || !client.Connected() {
		return fmt.Errorf("socket.io client is not connected")
	}

	data, ok, err := node.ReadInput[any](n.Base, "data")
	if err != nil {
		return err
	}

	done := n.await()
	defer n.release(done)

	n.Logger().Debug("Emitting event.", "event", n.cfg.EmitEvent)
	if !ok {
		client.Emit(n.cfg.EmitEvent)
	} else {
		client.Emit(n.cfg.EmitEvent, data)
	}

	opCtx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	defer cancel()
	select {
	case <-opCtx.Done():
		return fmt.Errorf("timed out after %s waiting for event '%s'", n.cfg.Timeout, n.cfg.OnEvent)
	case response := <-done:
		return node.WriteOutput(n.Base, "response", response)
	}
}

// deliver is the single on_event listener for the connection.
func (n *Node) deliver(args ...any) {
	var response any
	if len(args) > 0 {
		response = args[0]
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.waiter == nil {
		n.Logger().Debug("Dropping reply with no pass waiting.", "event", n.cfg.OnEvent)
		return
	}
	n.waiter <- response
	n.waiter = nil
}

func (n *Node) await() chan any {
	ch := make(chan any, 1)
	n.mu.Lock()
	n.waiter = ch
	n.mu.Unlock()
	return ch
}

func (n *Node) release(ch chan any) {
	n.mu.Lock()
	if n.waiter == ch {
		n.waiter = nil
	}
	n.mu.Unlock()
}

// Register registers the class with the factory.
func (Module) Register(f *registry.Factory) error {
	return f.RegisterNodeClass(Key, "Network", New)
}
