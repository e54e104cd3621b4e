// Package reconcile applies the difference between two revisions of a source
// tree to a working copy.
//
// A pass walks the union of the source's left and right trees depth-first in
// name order. For every node the presence on the left, on the right, and in the
// target selects a Case, and each case has one handler:
//
//   - CaseAdd schedules the node and its subtree for addition with history
//   - CaseAddOverTarget merges into, replaces, or skips what is already there
//   - CaseDelete removes the node unless that would lose local changes
//   - CaseChange runs the text and property mergers, or replaces the node when
//     the two sides are unrelated
//   - CaseDeleteAbsent and CaseChangeAbsent skip, since the target has nothing
//     to apply the change to
//
// Nodes only the target has are never visited.
//
// # Skips and Conflicts
//
// Neither is an error. Skips go to the ledger with a reason and conflicts are
// reported as statuses, and the walk moves on to siblings and children. Only
// repository and working-copy failures abort a pass.
//
// # Dry Runs
//
// A dry run walks through an in-memory overlay of the working copy, so later
// passes in the same session observe earlier ones while the working copy stays
// untouched. Directory deletes are reported once without descending.
//
// # Source Cache
//
// Repository reads are cached per Reconciler, keyed by path and revision, with
// a TTL and singleflight protection against duplicate reads.
package reconcile
