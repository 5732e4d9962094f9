package nodeplugin

import (
	"net/rpc"

	"github.com/hashicorp/go-plugin"
)

// ModulePlugin is the go-plugin glue for the net/rpc transport.
type ModulePlugin struct {
	// Impl is only set on the module side.
	Impl Provider
}

func (p *ModulePlugin) Server(*plugin.MuxBroker) (interface{}, error) {
	return &RPCServer{Impl: p.Impl}, nil
}

func (*ModulePlugin) Client(_ *plugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &RPCClient{client: c}, nil
}

// RPCServer exposes a Provider over net/rpc.
type RPCServer struct {
	Impl Provider
}

func (s *RPCServer) Manifest(_ interface{}, resp *Manifest) error {
	m, err := s.Impl.Manifest()
	if err != nil {
		return err
	}
	*resp = m
	return nil
}

func (s *RPCServer) Compute(req ComputeRequest, resp *ComputeResponse) error {
	out, err := s.Impl.Compute(req)
	if err != nil {
		return err
	}
	*resp = out
	return nil
}

// RPCClient is the host-side Provider talking to a module process.
type RPCClient struct {
	client *rpc.Client
}

func (c *RPCClient) Manifest() (Manifest, error) {
	var m Manifest
	err := c.client.Call("Plugin.Manifest", new(interface{}), &m)
	return m, err
}

func (c *RPCClient) Compute(req ComputeRequest) (ComputeResponse, error) {
	var resp ComputeResponse
	err := c.client.Call("Plugin.Compute", req, &resp)
	return resp, err
}
