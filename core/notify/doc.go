// Package notify collects what a merge did to each path.
//
// A Ledger keeps the notifications of one merge session in emission order,
// duplicates included, together with the set of skipped paths and the reason for
// each skip. Statuses are two columns wide, text then properties:
//
//	A  added            D  deleted
//	U  updated          G  merged into local edits
//	C  conflicted       R  replaced
//
// A space means no change in that column, so " U" is a property-only update.
//
// Final folds the ordered list into one status per path; a delete followed by an
// add of the same path reads as a replacement.
package notify
