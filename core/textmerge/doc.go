// Package textmerge performs three-way merges of file contents.
//
// Merge takes the base (the source at the left revision), theirs (the source at
// the right revision) and mine (the working file) and classifies the outcome:
//
//   - StatusUnchanged: nothing to write.
//   - StatusUpdated (U): mine had no local edits and takes the incoming change.
//   - StatusMerged (G): the incoming change combined cleanly with local edits,
//     or was already present.
//   - StatusConflicted (C): overlapping edits. The content carries inline markers
//     and three sidecars hold the competing versions.
//
// # Conflict Markers
//
//	<<<<<<< .working
//	local lines
//	=======
//	incoming lines
//	>>>>>>> .merge-right.r2
//
// Marker lines use the file's line ending: the declared eol-style if any,
// otherwise the first line ending found in mine, otherwise "\n". The sidecars are
// named by appending ".merge-left.rN", ".merge-right.rN" and ".working" to the
// file name.
//
// # Ignoring Whitespace and Line Endings
//
// The ignore options change only the keys used to match and compare lines. The
// bytes written always come from the literal lines: mine's in regions all three
// versions agree on, otherwise the winning side's.
//
// # Binary Files
//
// Binary content is never line merged. If mine equals base the incoming content
// replaces it; if mine already equals theirs nothing happens; anything else is a
// conflict with left and right sidecars and mine left untouched.
package textmerge
