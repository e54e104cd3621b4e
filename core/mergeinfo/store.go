package mergeinfo

import (
	"path"
	"sort"
	"strings"

	"merge-engine/core/rangelist"
)

// Change is a pending write of a node's explicit mergeinfo.
type Change struct {
	// Path is the working-copy path of the node.
	Path string
	// Value is the encoded mergeinfo to store. Ignored when Deleted is set.
	Value string
	// Deleted means the node's explicit mergeinfo was removed.
	Deleted bool
}

type node struct {
	path     string
	parent   int
	explicit Mergeinfo
	has      bool
	dirty    bool
}

// Store indexes explicit mergeinfo for the nodes of one working copy.
//
// Nodes live in a flat arena addressed by integer index; each node keeps the
// index of its nearest registered ancestor, so inheritance never follows
// pointers and never leaves the working-copy root.
type Store struct {
	nodes []node
	index map[string]int
}

// NewStore returns an empty store rooted at the working-copy root "".
func NewStore() *Store {
	s := &Store{index: map[string]int{}}
	s.ensure("")
	return s
}

// Load builds a store from raw property values keyed by working-copy path.
// A nil value registers the node without explicit mergeinfo.
func Load(values map[string]*string) (*Store, error) {
	paths := make([]string, 0, len(values))
	for p := range values {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	s := NewStore()
	for _, p := range paths {
		if err := s.Add(p, values[p]); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add registers a node and its explicit mergeinfo, if any.
// Ancestors should be registered first; otherwise the nearest registered one
// becomes the parent.
func (s *Store) Add(p string, raw *string) error {
	idx := s.ensure(p)
	if raw == nil {
		return nil
	}

	mi, err := Parse(*raw)
	if err != nil {
		return err
	}
	s.nodes[idx].explicit = mi
	s.nodes[idx].has = true
	return nil
}

// Has reports whether the node carries explicit mergeinfo.
func (s *Store) Has(p string) bool {
	idx, ok := s.index[p]
	return ok && s.nodes[idx].has
}

// Explicit returns the node's own mergeinfo and whether it has any.
func (s *Store) Explicit(p string) (Mergeinfo, bool) {
	idx, ok := s.index[p]
	if !ok || !s.nodes[idx].has {
		return nil, false
	}
	return s.nodes[idx].explicit.Clone(), true
}

// Paths returns every registered node with explicit mergeinfo, sorted.
func (s *Store) Paths() []string {
	var out []string
	for _, n := range s.nodes {
		if n.has {
			out = append(out, n.path)
		}
	}
	sort.Strings(out)
	return out
}

// Effective returns the mergeinfo that applies to p: its own, or the nearest
// ancestor's translated to p, or empty.
func (s *Store) Effective(p string) Mergeinfo {
	return s.resolve(p, s.nearest(p))
}

// Inherited returns the mergeinfo p would have if it carried none of its own.
func (s *Store) Inherited(p string) Mergeinfo {
	if p == "" {
		return Mergeinfo{}
	}
	start := s.nearest(p)
	if s.nodes[start].path == p {
		start = s.nodes[start].parent
	}
	return s.resolve(p, start)
}

// MergeIn records rl as merged from source into p. A node without explicit
// mergeinfo starts from what it inherits so no other source is lost.
func (s *Store) MergeIn(p, source string, rl rangelist.Rangelist) {
	n := s.materialize(p)
	n.explicit[source] = rangelist.Union(n.explicit[source], rl)
	n.dirty = true
}

// RemoveRanges records rl as no longer merged from source into p.
// Emptied entries are dropped; an emptied map stays explicit so that it keeps
// blocking inheritance.
func (s *Store) RemoveRanges(p, source string, rl rangelist.Rangelist) {
	n := s.materialize(p)
	remaining := rangelist.Remove(n.explicit[source], rl)
	if remaining.Empty() {
		delete(n.explicit, source)
	} else {
		n.explicit[source] = remaining
	}
	n.dirty = true
}

// Elide drops p's explicit mergeinfo when every entry is covered by the same
// source in the inherited mergeinfo. It reports whether the node elided.
func (s *Store) Elide(p string) bool {
	idx, ok := s.index[p]
	if !ok || !s.nodes[idx].has {
		return false
	}
	n := &s.nodes[idx]
	if !n.explicit.IsSubsetOf(s.Inherited(p)) {
		return false
	}
	n.explicit = nil
	n.has = false
	n.dirty = true
	return true
}

// AlreadyMerged returns the part of candidate not yet merged from source into p.
// An empty result means the whole candidate is already recorded.
func (s *Store) AlreadyMerged(p, source string, candidate rangelist.Rangelist) rangelist.Rangelist {
	return rangelist.Remove(candidate, s.Effective(p)[source])
}

// Unmergeable returns the part of candidate recorded as merged from source into
// p, which is what a reverse merge can undo.
func (s *Store) Unmergeable(p, source string, candidate rangelist.Rangelist) rangelist.Rangelist {
	return rangelist.Intersect(candidate, s.Effective(p)[source])
}

// Dirty returns the pending writes in path order.
func (s *Store) Dirty() []Change {
	var out []Change
	for _, n := range s.nodes {
		if !n.dirty {
			continue
		}
		if n.has {
			out = append(out, Change{Path: n.path, Value: n.explicit.String()})
		} else {
			out = append(out, Change{Path: n.path, Deleted: true})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// MarkClean forgets all pending writes.
func (s *Store) MarkClean() {
	for i := range s.nodes {
		s.nodes[i].dirty = false
	}
}

func (s *Store) materialize(p string) *node {
	idx := s.ensure(p)
	if !s.nodes[idx].has {
		s.nodes[idx].explicit = s.Inherited(p)
		s.nodes[idx].has = true
	}
	return &s.nodes[idx]
}

func (s *Store) resolve(p string, idx int) Mergeinfo {
	for idx >= 0 {
		n := s.nodes[idx]
		if n.has {
			return n.explicit.Translate(relative(n.path, p))
		}
		idx = n.parent
	}
	return Mergeinfo{}
}

// nearest returns the index of p or of its closest registered ancestor.
func (s *Store) nearest(p string) int {
	for {
		if idx, ok := s.index[p]; ok {
			return idx
		}
		p = parentOf(p)
	}
}

func (s *Store) ensure(p string) int {
	if idx, ok := s.index[p]; ok {
		return idx
	}
	parent := -1
	if p != "" {
		parent = s.nearest(parentOf(p))
	}
	s.nodes = append(s.nodes, node{path: p, parent: parent})
	idx := len(s.nodes) - 1
	s.index[p] = idx
	return idx
}

func parentOf(p string) string {
	dir := path.Dir(p)
	if dir == "." || dir == "/" {
		return ""
	}
	return dir
}

func relative(ancestor, p string) string {
	if ancestor == "" {
		return p
	}
	return strings.TrimPrefix(strings.TrimPrefix(p, ancestor), "/")
}
