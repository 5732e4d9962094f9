package testutil

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// AssertNodeComputed checks the captured logs for a successful compute of
// the named node.
func AssertNodeComputed(t *testing.T, result *HarnessResult, name string) {
	t.Helper()

	marker := fmt.Sprintf("node=%s", name)
	for _, line := range strings.Split(result.LogOutput, "\n") {
		if strings.Contains(line, "Node computed.") && strings.Contains(line, marker) {
			return
		}
	}
	require.Fail(t, "node did not compute", "expected a compute of node %q in the logs", name)
}
