package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/vk/flowgrid/internal/node"
	"github.com/vk/flowgrid/internal/registry"
)

// MockSleeperModule registers a "sleeper" class for concurrency tests. Each
// compute sleeps, then records when it ran under the node's name.
type MockSleeperModule struct {
	ExecutionTimes map[string]*ExecutionRecord
	mu             sync.Mutex
	sleepDuration  time.Duration
	completionChan chan<- string
}

// NewMockSleeperModule creates a new sleeper module for testing.
func NewMockSleeperModule(completionChan chan<- string, sleep time.Duration) *MockSleeperModule {
	return &MockSleeperModule{
		ExecutionTimes: make(map[string]*ExecutionRecord),
		sleepDuration:  sleep,
		completionChan: completionChan,
	}
}

type sleeperNode struct {
	*node.Base
	m *MockSleeperModule
}

func (n *sleeperNode) Compute(ctx context.Context) error {
	startTime := time.Now()
	select {
	case <-time.After(n.m.sleepDuration):
	case <-ctx.Done():
		return ctx.Err()
	}
	endTime := time.Now()

	n.m.mu.Lock()
	n.m.ExecutionTimes[n.Name()] = &ExecutionRecord{Start: startTime, End: endTime}
	n.m.mu.Unlock()

	if n.m.completionChan != nil {
		n.m.completionChan <- n.Name()
	}
	return node.WriteOutput[any](n.Base, "out", n.Name())
}

// Record returns the execution record of a node, or nil.
func (m *MockSleeperModule) Record(name string) *ExecutionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ExecutionTimes[name]
}

// Register registers the "sleeper" class, with an "in" and an "out" port of
// type any.
func (m *MockSleeperModule) Register(f *registry.Factory) error {
	return f.RegisterNodeClass("sleeper", "Test", func(info node.Info, env node.Env) (node.Node, error) {
		n := &sleeperNode{Base: node.NewBase(info, env), m: m}
		if err := both[any]()(n.Base); err != nil {
			return nil, err
		}
		return n, nil
	})
}
