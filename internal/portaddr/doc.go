// internal/portaddr/doc.go

/*
Package portaddr provides the reference format used by graph descriptions to
name one port of one node, `node.port`.

The node part is either the node's name or its UUID. Node names may contain
dots, so a reference is split on its last dot: `ingest.v2.out` refers to
port `out` of node `ingest.v2`.
*/
package portaddr
