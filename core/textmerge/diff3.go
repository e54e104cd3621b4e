package textmerge

import (
	"github.com/pmezard/go-difflib/difflib"
)

type regionKind int

const (
	// regionSync is a stretch all three versions agree on.
	regionSync regionKind = iota
	// regionSame is a change made identically on both sides.
	regionSame
	// regionMine is changed only locally.
	regionMine
	// regionTheirs is changed only by the incoming side.
	regionTheirs
	// regionConflict is changed differently on both sides.
	regionConflict
)

type span struct {
	start, end int
}

type region struct {
	kind   regionKind
	mine   span
	theirs span
}

// syncPoint is a run of lines matched across base, mine and theirs.
type syncPoint struct {
	base, mine, theirs span
}

// diff3 splits the three key sequences into sync and unstable regions.
func diff3(base, mine, theirs []string) []region {
	var out []region
	iz, ia, ib := 0, 0, 0
	for _, sp := range syncPoints(base, mine, theirs) {
		if sp.mine.start > ia || sp.theirs.start > ib {
			mineSpan := span{ia, sp.mine.start}
			theirsSpan := span{ib, sp.theirs.start}
			baseSpan := span{iz, sp.base.start}

			equalMine := equalRange(mine, mineSpan, base, baseSpan)
			equalTheirs := equalRange(theirs, theirsSpan, base, baseSpan)
			var kind regionKind
			switch {
			case equalRange(mine, mineSpan, theirs, theirsSpan):
				kind = regionSame
			case equalMine:
				kind = regionTheirs
			case equalTheirs:
				kind = regionMine
			default:
				kind = regionConflict
			}
			out = append(out, region{kind: kind, mine: mineSpan, theirs: theirsSpan})
		}

		if sp.base.end > sp.base.start {
			out = append(out, region{kind: regionSync, mine: sp.mine, theirs: sp.theirs})
		}
		iz, ia, ib = sp.base.end, sp.mine.end, sp.theirs.end
	}
	return out
}

// syncPoints intersects the base/mine and base/theirs matching blocks.
// The last point is always the empty sentinel at the end of all three.
func syncPoints(base, mine, theirs []string) []syncPoint {
	mineBlocks := difflib.NewMatcherWithJunk(base, mine, false, nil).GetMatchingBlocks()
	theirsBlocks := difflib.NewMatcherWithJunk(base, theirs, false, nil).GetMatchingBlocks()

	var out []syncPoint
	i, j := 0, 0
	for i < len(mineBlocks) && j < len(theirsBlocks) {
		a, b := mineBlocks[i], theirsBlocks[j]
		start := max(a.A, b.A)
		end := min(a.A+a.Size, b.A+b.Size)
		if start < end {
			out = append(out, syncPoint{
				base:   span{start, end},
				mine:   span{a.B + start - a.A, a.B + end - a.A},
				theirs: span{b.B + start - b.A, b.B + end - b.A},
			})
		}
		if a.A+a.Size < b.A+b.Size {
			i++
		} else {
			j++
		}
	}

	out = append(out, syncPoint{
		base:   span{len(base), len(base)},
		mine:   span{len(mine), len(mine)},
		theirs: span{len(theirs), len(theirs)},
	})
	return out
}

func equalRange(a []string, as span, b []string, bs span) bool {
	if as.end-as.start != bs.end-bs.start {
		return false
	}
	for k := 0; k < as.end-as.start; k++ {
		if a[as.start+k] != b[bs.start+k] {
			return false
		}
	}
	return true
}
