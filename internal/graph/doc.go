// Package graph builds node graphs from descriptions and runs them.
//
// A Graph belongs to an environment (env.Env). The environment supplies the
// node class factory used to create nodes, the logger handed to them, and
// the worker pool that passes run on. Several graphs may share one
// environment; env.Wait then waits for all of them.
//
// # Building
//
// Load turns a flowdesc.Description into live nodes in one step:
//
//	description ──► validate ──► create via factory ──► configure
//	                                                        │
//	                 cycle check ◄── connect ports ◄── seed inputs
//
// The build is all or nothing. Every problem found along the way is
// collected, and if there is at least one the graph stays empty and Load
// returns a *BuildError. The error matches ErrGraphBuild and, through its
// list of problems, the specific reasons:
//
//   - registry.ErrUnknownNodeType: a class key nobody registered.
//   - ErrMalformedDescription: missing names, unknown nodes or ports,
//     configuration a class rejects, seed values of the wrong type.
//   - ErrIncompatibleEdge: wrong port directions, type mismatches, or a
//     second edge into an input that is already fed.
//   - ErrCycleDetected: the edges do not form a DAG.
//
// # Running
//
// Run is non-blocking. It snapshots the topology, opens a pass on the
// environment and dispatches the root nodes. When a node finishes, the
// counter of each dependent is decremented, and a dependent is dispatched
// once its counter reaches zero. Within a pass each node computes at most
// once and never before its upstream nodes; independent branches run in
// parallel up to the environment's worker bound.
//
// Nodes that are not started are passed over, and their dependents still
// run. A failed compute is wrapped in a *ComputeError and broadcast on
// OnError; what happens downstream depends on the FailurePolicy:
//
//   - ContinueDependents (default): dependents run and see the values their
//     inputs held before the failure.
//   - SkipDependents: every descendant of the failed node is passed over
//     for the rest of the pass.
//
// Input values survive between passes unless the graph was created with
// ClearInputs, in which case each node's inputs are emptied right after it
// computes.
//
// # Tracing
//
// Each pass is a "graph.run" span and each compute a "node.compute" child
// span, taken from the environment's tracer provider. Failed computes
// record their error on the span.
//
// # Thread-Safety
//
// All Graph methods are safe for concurrent use. Load holds the write lock;
// Run and the lookups take a read lock only long enough to copy what they
// need, so passes never hold the graph lock while nodes compute.
package graph
