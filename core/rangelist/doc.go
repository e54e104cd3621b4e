// Package rangelist implements the revision interval sets used to record merge history.
//
// A Range is the half-open interval (Start, End]: the changes introduced by revisions
// Start+1 through End. This is the same convention used by "-r N:M" merge arguments,
// so merging "-r 3:7" records the range (3, 7], printed as "4-7".
//
// # Normalization
//
// A Rangelist is always kept normalized: sorted by Start, non-overlapping and
// non-adjacent. Adjacent ranges such as (0,3] and (3,5] collapse into (0,5].
// Every exported operation returns a normalized list and never mutates its inputs.
//
// # Canonical Form
//
// The string form is a comma separated list where a single revision range (n-1, n]
// prints as the bare number n:
//
//	1-3,5,7-9
//
// Parse rejects negative numbers, zero-width or reversed ranges, and ranges that are
// out of order or overlap, returning a *MalformedRangelistError.
//
// # Usage
//
//	rl, err := rangelist.Parse("1-3,5")
//	merged := rangelist.Union(rl, rangelist.Single(4)) // "1-5"
//	todo := rangelist.Remove(rangelist.FromRevisions(0, 9), merged) // "6-9"
package rangelist
