package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/flowgrid/internal/flowdesc"
	"github.com/vk/flowgrid/internal/flowfile"
)

// ParseHCL parses a flow written in HCL, failing the test on error.
func ParseHCL(t *testing.T, flowHCL string) *flowdesc.Description {
	t.Helper()
	desc, err := flowfile.Parse([]byte(flowHCL), "main.hcl")
	require.NoError(t, err)
	return desc
}
