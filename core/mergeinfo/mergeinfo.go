package mergeinfo

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"merge-engine/core/rangelist"
)

// Property is the node property that carries explicit mergeinfo.
const Property = "svn:mergeinfo"

// Mergeinfo maps a merge source path to the revisions merged from it.
type Mergeinfo map[string]rangelist.Rangelist

// Parse decodes the "path:rangelist" lines stored in the mergeinfo property.
// Lines for the same path are unioned. A malformed rangelist is reported as a
// *rangelist.MalformedRangelistError naming the offending line.
func Parse(raw string) (Mergeinfo, error) {
	mi := Mergeinfo{}
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		idx := strings.LastIndex(line, ":")
		if idx <= 0 {
			return nil, &rangelist.MalformedRangelistError{Input: line, Reason: "missing source path"}
		}
		source := line[:idx]
		if !strings.HasPrefix(source, "/") {
			return nil, &rangelist.MalformedRangelistError{Input: line, Reason: fmt.Sprintf("source path %q is not absolute", source)}
		}

		rl, err := rangelist.Parse(line[idx+1:])
		if err != nil {
			return nil, fmt.Errorf("mergeinfo for %s: %w", source, err)
		}
		if rl.Empty() {
			return nil, &rangelist.MalformedRangelistError{Input: line, Reason: "empty rangelist"}
		}
		mi[source] = rangelist.Union(mi[source], rl)
	}
	return mi, nil
}

// String encodes the mergeinfo sorted by source path. Entries with an empty
// rangelist are omitted.
func (mi Mergeinfo) String() string {
	lines := make([]string, 0, len(mi))
	for _, source := range mi.Sources() {
		lines = append(lines, source+":"+mi[source].String())
	}
	return strings.Join(lines, "\n")
}

// Sources returns the source paths with a non-empty rangelist, sorted.
func (mi Mergeinfo) Sources() []string {
	sources := make([]string, 0, len(mi))
	for source, rl := range mi {
		if !rl.Empty() {
			sources = append(sources, source)
		}
	}
	sort.Strings(sources)
	return sources
}

// Clone returns a deep copy.
func (mi Mergeinfo) Clone() Mergeinfo {
	out := make(Mergeinfo, len(mi))
	for source, rl := range mi {
		out[source] = rl.Clone()
	}
	return out
}

// Translate returns the mergeinfo as seen by a descendant at the relative path rel:
// every source path gains the same trailing component.
func (mi Mergeinfo) Translate(rel string) Mergeinfo {
	if rel == "" {
		return mi.Clone()
	}
	out := make(Mergeinfo, len(mi))
	for source, rl := range mi {
		out[path.Join(source, rel)] = rl.Clone()
	}
	return out
}

// Merge returns the per-source union of a and b.
func Merge(a, b Mergeinfo) Mergeinfo {
	out := a.Clone()
	for source, rl := range b {
		out[source] = rangelist.Union(out[source], rl)
	}
	return out.compact()
}

// Remove returns a with every revision recorded in b removed.
func Remove(a, b Mergeinfo) Mergeinfo {
	out := Mergeinfo{}
	for source, rl := range a {
		out[source] = rangelist.Remove(rl, b[source])
	}
	return out.compact()
}

// Intersect returns the revisions recorded in both a and b, per source.
func Intersect(a, b Mergeinfo) Mergeinfo {
	out := Mergeinfo{}
	for source, rl := range a {
		if other, ok := b[source]; ok {
			out[source] = rangelist.Intersect(rl, other)
		}
	}
	return out.compact()
}

// IsSubsetOf reports whether every source of a is present in b and each of its
// rangelists is a subset of the matching one in b.
func (mi Mergeinfo) IsSubsetOf(b Mergeinfo) bool {
	for source, rl := range mi {
		if rl.Empty() {
			continue
		}
		other, ok := b[source]
		if !ok || !rangelist.IsSubset(rl, other) {
			return false
		}
	}
	return true
}

// Equal reports whether a and b record the same revisions for the same sources.
func Equal(a, b Mergeinfo) bool {
	return a.IsSubsetOf(b) && b.IsSubsetOf(a)
}

func (mi Mergeinfo) compact() Mergeinfo {
	for source, rl := range mi {
		if rl.Empty() {
			delete(mi, source)
		}
	}
	return mi
}
