package merge

import (
	"fmt"
	"strconv"
	"strings"

	"merge-engine/core/rangelist"
)

// RevisionRange is the pair of revisions a merge applies the difference of.
// Start > End undoes the revisions (End, Start].
type RevisionRange struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// ParseRevisionRange parses "N:M".
func ParseRevisionRange(s string) (RevisionRange, error) {
	lhs, rhs, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return RevisionRange{}, fmt.Errorf("invalid revision range %q: expected N:M", s)
	}
	start, err := parseRevision(lhs)
	if err != nil {
		return RevisionRange{}, fmt.Errorf("invalid revision range %q: %w", s, err)
	}
	end, err := parseRevision(rhs)
	if err != nil {
		return RevisionRange{}, fmt.Errorf("invalid revision range %q: %w", s, err)
	}
	return RevisionRange{Start: start, End: end}, nil
}

// Change returns the range of a single revision. A negative n undoes revision -n.
func Change(n int64) (RevisionRange, error) {
	switch {
	case n > 0:
		return RevisionRange{Start: n - 1, End: n}, nil
	case n < 0:
		return RevisionRange{Start: -n, End: -n - 1}, nil
	}
	return RevisionRange{}, fmt.Errorf("there is no change 0")
}

// Forward reports whether the range applies revisions rather than undoing them.
func (r RevisionRange) Forward() bool {
	return r.Start < r.End
}

// IsNoop reports whether the range covers no revision.
func (r RevisionRange) IsNoop() bool {
	return r.Start == r.End
}

// Reverse returns the range that undoes r.
func (r RevisionRange) Reverse() RevisionRange {
	return RevisionRange{Start: r.End, End: r.Start}
}

// Low and High return the bounds in ascending order.
func (r RevisionRange) Low() int64 {
	return min(r.Start, r.End)
}

func (r RevisionRange) High() int64 {
	return max(r.Start, r.End)
}

// Revisions returns the revisions the range covers.
func (r RevisionRange) Revisions() rangelist.Rangelist {
	return rangelist.FromRevisions(r.Start, r.End)
}

func (r RevisionRange) String() string {
	return fmt.Sprintf("%d:%d", r.Start, r.End)
}

func parseRevision(s string) (int64, error) {
	rev, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(s), "r"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad revision %q", s)
	}
	if rev < 0 {
		return 0, fmt.Errorf("negative revision %d", rev)
	}
	return rev, nil
}
