// Package registry provides the node class factory: the string-keyed table
// of constructors that graphs use to instantiate nodes from a description.
//
// Built-in modules and dynamically loaded ones register into the same
// Factory. Keys are unique across all of them; a second registration of a
// key is rejected rather than overriding the first, so discovery order
// never silently changes which implementation a graph gets.
package registry
