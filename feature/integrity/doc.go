// Package integrity checks that a SQL repository is consistent with itself
// and with its blob store.
//
// # Checks Provided
//
//   - Schema: every repository table exists with the columns the models expect.
//   - Blobs: every content sum a node refers to exists in the bucket, and no
//     object in the bucket is unreferenced. Skipped without a blob store.
//   - Index: the mergeinfo index agrees with the svn:mergeinfo property of
//     every live node at a revision.
//
// Orphaned blobs are left behind by commits that stored content and then
// rolled back. They are harmless and can be removed with ?fix=true.
//
// # HTTP Endpoints
//
//   - GET /integrity : Runs all checks.
//   - GET /integrity/schema : Runs the schema check.
//   - GET /integrity/blobs : Runs the blob check (supports ?fix=true).
//   - GET /integrity/index : Runs the index check (supports ?rev=N).
package integrity
