// Package node defines the unit of computation scheduled by a graph. A node
// owns its ports and a lifecycle state machine:
//
//	Registered -> Started -> (Computing <-> Idle) -> Stopped
//
// Concrete node classes embed *Base, declare their ports in their
// constructor and implement Compute.
package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/vk/flowgrid/internal/datacell"
	"github.com/vk/flowgrid/internal/port"
)

var (
	ErrUnknownPort   = errors.New("unknown port")
	ErrDuplicatePort = errors.New("duplicate port")
	// ErrNotRegistered is returned when ports are added after the node left
	// the Registered state.
	ErrNotRegistered = errors.New("node is no longer in the registered state")
	// ErrNotStarted is returned when Compute is requested on a node that is
	// not running.
	ErrNotStarted = errors.New("node is not started")
)

// State is the lifecycle position of a node.
type State int32

const (
	StateRegistered State = iota
	StateStarted
	StateComputing
	StateIdle
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRegistered:
		return "registered"
	case StateStarted:
		return "started"
	case StateComputing:
		return "computing"
	case StateIdle:
		return "idle"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Env is what a node sees of the environment it was created in.
type Env interface {
	Logger() *slog.Logger
}

// Info is the identity of a node instance.
type Info struct {
	ID    uuid.UUID
	Name  string
	Class string
}

// Node is implemented by every node class. The unexported method means
// implementations get everything except Compute by embedding *Base.
type Node interface {
	ID() uuid.UUID
	Name() string
	Class() string
	Info() Info
	State() State

	Ports() []*port.Port
	Input(name string) (*port.Port, error)
	Output(name string) (*port.Port, error)
	GetInputData(name string) (*datacell.Cell, error)
	SetOutputData(name string, c *datacell.Cell) error

	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	// Compute runs one pass of the node's behaviour. It is never called
	// concurrently with itself.
	Compute(ctx context.Context) error

	base() *Base
}

// Hook is a start or stop callback supplied by a node class.
type Hook func(ctx context.Context) error

// Option configures a Base.
type Option func(*Base)

// WithStartHook sets the one-time setup run when the node starts.
func WithStartHook(h Hook) Option {
	return func(b *Base) { b.onStart = h }
}

// WithStopHook sets the teardown run when a started node stops.
func WithStopHook(h Hook) Option {
	return func(b *Base) { b.onStop = h }
}

// Base carries the state shared by all node classes.
type Base struct {
	info Info
	env  Env

	state atomic.Int32
	// mu serializes lifecycle transitions and Compute.
	mu sync.Mutex

	portsMu sync.RWMutex
	ports   []*port.Port
	byName  map[string]*port.Port

	onStart Hook
	onStop  Hook
}

// NewBase creates a Base in the Registered state.
func NewBase(info Info, env Env, opts ...Option) *Base {
	b := &Base{
		info:   info,
		env:    env,
		byName: make(map[string]*port.Port),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Base) base() *Base      { return b }
func (b *Base) ID() uuid.UUID    { return b.info.ID }
func (b *Base) Name() string     { return b.info.Name }
func (b *Base) Class() string    { return b.info.Class }
func (b *Base) Info() Info       { return b.info }
func (b *Base) State() State     { return State(b.state.Load()) }
func (b *Base) Env() Env         { return b.env }
func (b *Base) setState(s State) { b.state.Store(int32(s)) }

// Logger returns the environment's logger tagged with this node.
func (b *Base) Logger() *slog.Logger {
	logger := slog.Default()
	if b.env != nil {
		logger = b.env.Logger()
	}
	return logger.With("node", b.info.Name, "class", b.info.Class)
}

// Start moves a Registered node to Started, running the start hook first.
// On any other state it does nothing. If the hook fails the node stays
// Registered.
func (b *Base) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.State() != StateRegistered {
		return nil
	}
	if b.onStart != nil {
		if err := b.onStart(ctx); err != nil {
			return fmt.Errorf("starting node %q: %w", b.info.Name, err)
		}
	}
	b.setState(StateStarted)
	return nil
}

// Stop moves the node to Stopped. The stop hook only runs if the node was
// started. Stopping an already stopped node does nothing.
func (b *Base) Stop(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.State() {
	case StateStopped:
		return nil
	case StateRegistered:
		b.setState(StateStopped)
		return nil
	}

	var err error
	if b.onStop != nil {
		if hookErr := b.onStop(ctx); hookErr != nil {
			err = fmt.Errorf("stopping node %q: %w", b.info.Name, hookErr)
		}
	}
	b.setState(StateStopped)
	return err
}
