// Package wc is the working copy a merge writes into.
//
// A working copy is a directory tree on an afero.Fs plus an admin area (".merge"
// by default) holding entries.yaml, the record of every versioned node: its kind,
// schedule, the repository location it tracks, its properties and conflict flags.
// Paths are relative to the working-copy root and slash separated; "" is the root.
//
// # Local Status
//
// ReadLocal combines the record with what is on disk:
//
//   - a record whose file is gone reads as StatusMissing;
//   - a file on disk without a record reads as StatusUnversioned;
//   - scheduled changes read as StatusAdded, StatusDeleted or StatusReplaced.
//
// Writing an added entry over one scheduled for deletion schedules a replacement.
//
// # Locking
//
// Lock takes an exclusive session lock on "<admin>/lock". On the OS filesystem
// this is an flock(2) lock that the kernel drops if the process dies; on other
// filesystems it is an exclusively created lock file. A held lock yields
// ErrLockContention.
package wc
