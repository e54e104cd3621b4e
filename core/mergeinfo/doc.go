// Package mergeinfo records which revisions of which source paths have been merged
// into the nodes of a working copy.
//
// # Value Type
//
// Mergeinfo maps an absolute source path to a rangelist. It is persisted in the
// svn:mergeinfo property as one "path:rangelist" line per source:
//
//	/trunk:1-5,9
//	/branches/feature:12
//
// # Store
//
// A Store holds the explicit mergeinfo of every registered node. A node's
// effective mergeinfo is its own, or else the nearest ancestor's translated by the
// relative path, or else empty. A parent carrying "/trunk:1-5" therefore gives the
// child "B/rho" the effective mergeinfo "/trunk/B/rho:1-5". Lookups stop at the
// working-copy root.
//
// After a forward merge the orchestrator calls Elide, which removes explicit
// mergeinfo that adds nothing over what the node would inherit. Changed nodes are
// reported by Dirty so they can be written back to the working copy.
package mergeinfo
