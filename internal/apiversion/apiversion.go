// Package apiversion guards the contract between the host and dynamically
// loaded modules. A module declares the API version it was built against;
// the host accepts any release with the same major version that is not
// newer than its own.
package apiversion

import (
	"fmt"

	"github.com/hashicorp/go-version"
)

// Current is the module API version implemented by this host.
const Current = "1.0.0"

var (
	current    = version.Must(version.NewVersion(Current))
	constraint = version.MustConstraints(version.NewConstraint(fmt.Sprintf(">= %d.0, <= %s", current.Segments()[0], Current)))
)

// Check validates a module's declared version. An empty string is treated
// as the current version.
func Check(declared string) error {
	if declared == "" {
		return nil
	}
	v, err := version.NewVersion(declared)
	if err != nil {
		return fmt.Errorf("invalid module API version %q: %w", declared, err)
	}
	if !constraint.Check(v) {
		return fmt.Errorf("module API version %s is not compatible with host %s (want %s)", v, current, constraint)
	}
	return nil
}
