package nodeplugin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"
	"github.com/vk/flowgrid/internal/apiversion"
	"github.com/vk/flowgrid/internal/logging"
	"github.com/vk/flowgrid/internal/registry"
)

// ErrNotAModule is returned when the dispensed plugin does not speak the
// node-class protocol.
var ErrNotAModule = errors.New("plugin does not implement the node class protocol")

// Open launches the module binary at path and returns a registry module for
// the classes it advertises. The returned closer kills the process.
func Open(path string, logger hclog.Logger) (*Module, io.Closer, error) {
	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig:  Handshake,
		Plugins:          PluginMap(nil),
		Cmd:              exec.Command(path),
		AllowedProtocols: []plugin.Protocol{plugin.ProtocolNetRPC},
		Logger:           logger,
	})
	return connect(client, path)
}

// Attach connects to a module process that is already running, typically one
// served in-process by a test.
func Attach(reattach *plugin.ReattachConfig, logger hclog.Logger) (*Module, io.Closer, error) {
	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig:  Handshake,
		Plugins:          PluginMap(nil),
		Reattach:         reattach,
		AllowedProtocols: []plugin.Protocol{plugin.ProtocolNetRPC},
		Logger:           logger,
	})
	return connect(client, fmt.Sprintf("pid %d", reattach.Pid))
}

func connect(client *plugin.Client, source string) (*Module, io.Closer, error) {
	closer := killer{client}

	rpcClient, err := client.Client()
	if err != nil {
		closer.Close()
		return nil, nil, fmt.Errorf("connecting to module %s: %w", source, err)
	}
	raw, err := rpcClient.Dispense(PluginName)
	if err != nil {
		closer.Close()
		return nil, nil, fmt.Errorf("dispensing %q from %s: %w", PluginName, source, err)
	}
	provider, ok := raw.(Provider)
	if !ok {
		closer.Close()
		return nil, nil, ErrNotAModule
	}

	manifest, err := provider.Manifest()
	if err != nil {
		closer.Close()
		return nil, nil, fmt.Errorf("reading manifest from %s: %w", source, err)
	}
	if err := apiversion.Check(manifest.APIVersion); err != nil {
		closer.Close()
		return nil, nil, err
	}
	for _, spec := range manifest.Classes {
		if err := spec.Validate(); err != nil {
			closer.Close()
			return nil, nil, err
		}
	}

	return &Module{Source: source, Manifest: manifest, Provider: provider}, closer, nil
}

type killer struct {
	client *plugin.Client
}

func (k killer) Close() error {
	k.client.Kill()
	return nil
}

// Opener adapts Open to the module loader. The process lives until the
// closer runs.
type Opener struct {
	Logger *slog.Logger
	Level  logging.Level
}

func (o Opener) Open(_ context.Context, path string) (registry.Module, io.Closer, error) {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	name := "module." + filepath.Base(path)
	m, closer, err := Open(path, logging.HCLog(logger, name, o.Level))
	if err != nil {
		return nil, nil, err
	}
	return m, closer, nil
}
