// Package merge runs merge sessions against a working copy.
//
// A Session takes the working-copy lock, loads the explicit mergeinfo of every
// versioned node, and works out for the target and each descendant that has
// its own mergeinfo which revisions of the source it still needs. Each
// contiguous run of needed revisions becomes one reconciler pass; nested merge
// roots run their own passes and are excluded from their parent's.
//
// # Recording
//
// A pass that skipped nothing records its revisions in the root's mergeinfo.
// Forward merges union the range in and then try to elide the root's entry
// into what it inherits; reverse merges remove the range. Record-only merges
// record without running passes, and dry runs record nothing.
//
// # Errors
//
// Lock contention, malformed mergeinfo, unrelated range ends, and repository
// or working-copy failures end the session. All but the last are detected
// before anything is written. Skips and conflicts are part of the Report.
package merge
