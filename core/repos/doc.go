// Package repos defines the versioned repository a merge reads from.
//
// A Repository serves immutable snapshots of a tree by revision. Every node
// carries an Origin naming the line of history it belongs to: a node added in a
// commit starts a new line, a copy continues its source's line. Two nodes are
// related when they share an origin, which is how merges decide between a
// three-way merge and a replacement.
//
// # Implementations
//
// Memory keeps every revision in process and is used by tests and tooling. The
// SQL-backed repository lives in feature/repository.
//
// # Paths
//
// Repository paths are absolute and slash separated, "/" being the root.
package repos
