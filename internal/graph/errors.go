package graph

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
)

var (
	// ErrGraphBuild is matched by every error returned from Load.
	ErrGraphBuild = errors.New("graph build error")

	ErrMalformedDescription = errors.New("malformed description")
	ErrIncompatibleEdge     = errors.New("incompatible edge")
	ErrCycleDetected        = errors.New("cycle detected")

	// ErrNodeCompute is matched by every error broadcast on OnError.
	ErrNodeCompute = errors.New("node compute failure")
)

// BuildError collects everything that was wrong with a description.
type BuildError struct {
	Graph string
	Err   *multierror.Error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("building graph %q: %v", e.Graph, e.Err)
}

func (e *BuildError) Is(target error) bool { return target == ErrGraphBuild }
func (e *BuildError) Unwrap() error        { return e.Err }

// Problems lists the individual reasons the build failed.
func (e *BuildError) Problems() []error {
	if e.Err == nil {
		return nil
	}
	return e.Err.Errors
}

// ComputeError is what OnError handlers receive when a node's Compute
// fails or panics.
type ComputeError struct {
	NodeID uuid.UUID
	Name   string
	Class  string
	Err    error
}

func (e *ComputeError) Error() string {
	return fmt.Sprintf("node %q (%s) failed: %v", e.Name, e.Class, e.Err)
}

func (e *ComputeError) Is(target error) bool { return target == ErrNodeCompute }
func (e *ComputeError) Unwrap() error        { return e.Err }
