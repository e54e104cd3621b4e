// Package repository keeps versioned trees in a SQL database.
//
// SQLRepository implements repos.Repository and repos.Committer on GORM, over
// MySQL or SQLite. Each commit appends one row per touched path to the nodes
// table; the state of a path at revision R is its newest row not above R, and
// deletions are tombstone rows. Copies write a row for every copied
// descendant that carries the source's origin, so copies stay related.
//
// # Contents
//
// With WithBlobs, file contents go to the content-addressed blob store in
// core/storage and rows keep only the sum. Without it, contents are stored
// inline in the row.
//
// # Mergeinfo Index
//
// Whenever a commit changes a path's svn:mergeinfo property, the path is
// recorded in mergeinfo_changed and each merged range in mergeinfo. Removing
// the property records a change with HasMergeinfo unset and no ranges.
// GetMergeinfo answers explicit, inherited and nearest-ancestor lookups from
// the index alone; GetMergeinfoForTree adds every descendant's explicit value.
//
// # Dumps
//
// ReadDump and Load replay a YAML list of revisions into any Committer:
//
//	revisions:
//	  - log: import
//	    changes:
//	      - {op: add, path: /trunk, kind: dir}
//	      - {op: add, path: /trunk/rho, kind: file, content: "rho\n"}
//	  - log: branch
//	    changes:
//	      - {op: copy, path: /branch, from: {path: /trunk, rev: 1}}
package repository
