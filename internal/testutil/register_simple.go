package testutil

import (
	"github.com/vk/flowgrid/internal/registry"
)

// SimpleModule is a test helper for registering a single node class.
type SimpleModule struct {
	Key      string
	Category string
	New      registry.Constructor
}

// Register implements the registry.Module interface.
func (m *SimpleModule) Register(f *registry.Factory) error {
	category := m.Category
	if category == "" {
		category = "Test"
	}
	return f.RegisterNodeClass(m.Key, category, m.New)
}
