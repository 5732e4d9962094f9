package node

import (
	"context"
	"fmt"

	pkgerrors "github.com/pkg/errors"
	"github.com/vk/flowgrid/internal/datacell"
	"github.com/vk/flowgrid/internal/port"
)

// ExecuteOption adjusts a single Execute call.
type ExecuteOption func(*execution)

type execution struct {
	consume bool
}

// ConsumeInputs empties every input whose cell Compute was given, before
// the node goes back to Idle. A cell delivered while Compute ran is kept
// for the next call.
func ConsumeInputs() ExecuteOption {
	return func(e *execution) { e.consume = true }
}

// Execute runs one Compute on n. It is the only way the scheduler invokes a
// node: calls on the same node are serialized, the state moves through
// Computing back to Idle, and a panic inside Compute is returned as an
// error carrying the stack where it was recovered.
func Execute(ctx context.Context, n Node, opts ...ExecuteOption) (err error) {
	var e execution
	for _, opt := range opts {
		opt(&e)
	}

	b := n.base()
	b.mu.Lock()
	defer b.mu.Unlock()

	switch s := b.State(); s {
	case StateStarted, StateIdle:
	default:
		return fmt.Errorf("node %q is %s: %w", b.info.Name, s, ErrNotStarted)
	}

	var seen map[*port.Port]*datacell.Cell
	if e.consume {
		seen = snapshotInputs(b)
	}

	b.setState(StateComputing)
	defer func() {
		if r := recover(); r != nil {
			err = pkgerrors.Errorf("panic during compute: %v", r)
		}
		for p, c := range seen {
			p.ClearIf(c)
		}
		b.setState(StateIdle)
	}()

	return n.Compute(ctx)
}

func snapshotInputs(b *Base) map[*port.Port]*datacell.Cell {
	ins := b.Inputs()
	seen := make(map[*port.Port]*datacell.Cell, len(ins))
	for _, p := range ins {
		if c := p.Get(); c != nil {
			seen[p] = c
		}
	}
	return seen
}

// BaseOf returns the Base embedded in n.
func BaseOf(n Node) *Base {
	return n.base()
}
