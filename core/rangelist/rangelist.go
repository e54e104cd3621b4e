package rangelist

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Range is the revision interval (Start, End].
type Range struct {
	// Start is the revision the range begins after.
	Start int64 `json:"start"`
	// End is the last revision included in the range.
	End int64 `json:"end"`
}

// String returns the canonical form of a single range.
func (r Range) String() string {
	if r.End-r.Start == 1 {
		return strconv.FormatInt(r.End, 10)
	}
	return fmt.Sprintf("%d-%d", r.Start+1, r.End)
}

// Len returns the number of revisions covered by the range.
func (r Range) Len() int64 {
	return r.End - r.Start
}

// Rangelist is a normalized set of revision ranges.
type Rangelist []Range

// Single returns the rangelist holding only the changes of rev.
func Single(rev int64) Rangelist {
	if rev <= 0 {
		return nil
	}
	return Rangelist{{Start: rev - 1, End: rev}}
}

// FromRevisions returns the rangelist for the "-r start:end" range.
// Reversed or empty inputs are accepted and produce the same interval as
// the forward form, so FromRevisions(5, 2) equals FromRevisions(2, 5).
func FromRevisions(start, end int64) Rangelist {
	if start > end {
		start, end = end, start
	}
	if start < 0 {
		start = 0
	}
	if start == end {
		return nil
	}
	return Rangelist{{Start: start, End: end}}
}

// String returns the canonical comma separated form.
func (rl Rangelist) String() string {
	parts := make([]string, 0, len(rl))
	for _, r := range rl {
		parts = append(parts, r.String())
	}
	return strings.Join(parts, ",")
}

// Empty reports whether the list covers no revisions.
func (rl Rangelist) Empty() bool {
	return len(rl) == 0
}

// Len returns the total number of revisions covered.
func (rl Rangelist) Len() int64 {
	var n int64
	for _, r := range rl {
		n += r.Len()
	}
	return n
}

// Revisions lists every revision covered, in ascending order.
func (rl Rangelist) Revisions() []int64 {
	revs := make([]int64, 0, rl.Len())
	for _, r := range rl {
		for rev := r.Start + 1; rev <= r.End; rev++ {
			revs = append(revs, rev)
		}
	}
	return revs
}

// Contains reports whether rev is covered by the list.
func (rl Rangelist) Contains(rev int64) bool {
	i := sort.Search(len(rl), func(i int) bool { return rl[i].End >= rev })
	return i < len(rl) && rl[i].Start < rev
}

// Clone returns a copy of the list that shares no memory with rl.
func (rl Rangelist) Clone() Rangelist {
	if rl == nil {
		return nil
	}
	out := make(Rangelist, len(rl))
	copy(out, rl)
	return out
}

// Equal reports whether a and b cover the same revisions.
func Equal(a, b Rangelist) bool {
	a, b = normalize(a), normalize(b)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Union returns the revisions covered by a or b.
func Union(a, b Rangelist) Rangelist {
	all := make([]Range, 0, len(a)+len(b))
	all = append(all, a...)
	all = append(all, b...)
	return normalize(all)
}

// Intersect returns the revisions covered by both a and b.
func Intersect(a, b Rangelist) Rangelist {
	a, b = normalize(a), normalize(b)
	var out []Range
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		start := max(a[i].Start, b[j].Start)
		end := min(a[i].End, b[j].End)
		if start < end {
			out = append(out, Range{Start: start, End: end})
		}
		if a[i].End < b[j].End {
			i++
		} else {
			j++
		}
	}
	return normalize(out)
}

// Remove returns the revisions covered by a but not by b.
func Remove(a, b Rangelist) Rangelist {
	a, b = normalize(a), normalize(b)
	var out []Range
	j := 0
	for _, r := range a {
		cur := r
		for j < len(b) && b[j].End <= cur.Start {
			j++
		}
		k := j
		for k < len(b) && b[k].Start < cur.End {
			if b[k].Start > cur.Start {
				out = append(out, Range{Start: cur.Start, End: b[k].Start})
			}
			if b[k].End >= cur.End {
				cur.Start = cur.End
				break
			}
			cur.Start = b[k].End
			k++
		}
		if cur.Start < cur.End {
			out = append(out, cur)
		}
	}
	return normalize(out)
}

// IsSubset reports whether every revision of a is also covered by b.
func IsSubset(a, b Rangelist) bool {
	return Remove(a, b).Empty()
}

// normalize sorts the ranges and merges overlapping or adjacent ones.
// Empty and reversed ranges are dropped.
func normalize(rs []Range) Rangelist {
	if len(rs) == 0 {
		return nil
	}
	sorted := make([]Range, 0, len(rs))
	for _, r := range rs {
		if r.Start < r.End {
			sorted = append(sorted, r)
		}
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start == sorted[j].Start {
			return sorted[i].End < sorted[j].End
		}
		return sorted[i].Start < sorted[j].Start
	})

	var out Rangelist
	for _, r := range sorted {
		if n := len(out); n > 0 && r.Start <= out[n-1].End {
			if r.End > out[n-1].End {
				out[n-1].End = r.End
			}
			continue
		}
		out = append(out, r)
	}
	return out
}
