// Package dag holds the dependency structure of a flow graph: which node
// instances feed which. It knows nothing about ports or data, only about
// ordering, and is what the scheduler consults to decide when a node's
// upstream work is finished.
package dag
