package mergeinfo

import (
	"errors"
	"testing"

	"merge-engine/core/rangelist"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(s string) *string { return &s }

// TestParse tests decoding and canonical encoding of mergeinfo values.
func TestParse(t *testing.T) {
	mi, err := Parse("/trunk:1-3,5\n/branches/b:7\n")
	require.NoError(t, err)
	assert.Equal(t, "/branches/b:7\n/trunk:1-3,5", mi.String())
	assert.Equal(t, []string{"/branches/b", "/trunk"}, mi.Sources())

	empty, err := Parse("")
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.Equal(t, "", empty.String())

	dup, err := Parse("/trunk:1-2\n/trunk:3")
	require.NoError(t, err)
	assert.Equal(t, "/trunk:1-3", dup.String())
}

// TestParse_Malformed tests that malformed lines surface as MalformedRangelistError.
func TestParse_Malformed(t *testing.T) {
	inputs := map[string]string{
		"NoColon":      "trunk",
		"Relative":     "trunk:1-3",
		"EmptyList":    "/trunk:",
		"BadRange":     "/trunk:3-1",
		"Negative":     "/trunk:-4",
		"SecondLine":   "/trunk:1\n/b:x",
		"OutOfOrder":   "/trunk:5,2",
		"GarbageAfter": "/trunk:1-3junk",
	}

	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(input)
			var malformed *rangelist.MalformedRangelistError
			assert.True(t, errors.As(err, &malformed), "got %v", err)
		})
	}
}

// TestSetOperations tests the per-source set algebra.
func TestSetOperations(t *testing.T) {
	a, _ := Parse("/trunk:1-5\n/b:3")
	b, _ := Parse("/trunk:4-8\n/c:2")

	assert.Equal(t, "/b:3\n/c:2\n/trunk:1-8", Merge(a, b).String())
	assert.Equal(t, "/b:3\n/trunk:1-3", Remove(a, b).String())
	assert.Equal(t, "/trunk:4-5", Intersect(a, b).String())

	sub, _ := Parse("/trunk:2-3")
	assert.True(t, sub.IsSubsetOf(a))
	assert.False(t, a.IsSubsetOf(sub))
	assert.True(t, Equal(a, a.Clone()))
	assert.False(t, Equal(a, b))
}

// TestTranslate tests that every source path gains the relative component.
func TestTranslate(t *testing.T) {
	mi, _ := Parse("/trunk:1-5\n/branches/x:7")
	assert.Equal(t, "/branches/x/B/rho:7\n/trunk/B/rho:1-5", mi.Translate("B/rho").String())
	assert.Equal(t, mi.String(), mi.Translate("").String())
}

// TestStore_Effective tests explicit and inherited lookups.
func TestStore_Effective(t *testing.T) {
	s, err := Load(map[string]*string{
		"":      ptr("/trunk:1-5"),
		"B":     nil,
		"B/rho": nil,
		"C":     ptr("/trunk/C:1-3"),
	})
	require.NoError(t, err)

	tests := []struct {
		path string
		want string
	}{
		{"", "/trunk:1-5"},
		{"B", "/trunk/B:1-5"},
		{"B/rho", "/trunk/B/rho:1-5"},
		{"C", "/trunk/C:1-3"},
		{"C/unregistered", "/trunk/C/unregistered:1-3"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Effective(tt.path).String())
		})
	}

	assert.Equal(t, "/trunk/C:1-5", s.Inherited("C").String())
	assert.Empty(t, s.Inherited(""))
	assert.True(t, s.Has("C"))
	assert.False(t, s.Has("B"))
	assert.Equal(t, []string{"", "C"}, s.Paths())

	explicit, ok := s.Explicit("C")
	require.True(t, ok)
	assert.Equal(t, "/trunk/C:1-3", explicit.String())
	_, ok = s.Explicit("B")
	assert.False(t, ok)
}

// TestStore_LoadMalformed tests that a bad value aborts the load.
func TestStore_LoadMalformed(t *testing.T) {
	s, err := Load(map[string]*string{"": ptr("/trunk:1-5"), "A": ptr("/trunk/A:9-2")})
	assert.Nil(t, s)
	var malformed *rangelist.MalformedRangelistError
	assert.True(t, errors.As(err, &malformed))
}

// TestStore_MergeIn tests that merging into a node without explicit mergeinfo
// keeps its inherited sources.
func TestStore_MergeIn(t *testing.T) {
	s, err := Load(map[string]*string{"": ptr("/trunk:1-5\n/other:2")})
	require.NoError(t, err)

	s.MergeIn("B", "/trunk/B", rangelist.Single(7))
	assert.Equal(t, "/other/B:2\n/trunk/B:1-5,7", s.Effective("B").String())
	assert.True(t, s.Has("B"))

	dirty := s.Dirty()
	require.Len(t, dirty, 1)
	assert.Equal(t, Change{Path: "B", Value: "/other/B:2\n/trunk/B:1-5,7"}, dirty[0])

	s.MarkClean()
	assert.Empty(t, s.Dirty())
}

// TestStore_Elide tests elision when a child's entries are covered by its parent.
func TestStore_Elide(t *testing.T) {
	s, err := Load(map[string]*string{
		"":  ptr("/trunk:1-5"),
		"B": ptr("/trunk/B:1-3"),
		"C": ptr("/trunk/C:1-3\n/elsewhere:4"),
	})
	require.NoError(t, err)

	assert.True(t, s.Elide("B"))
	assert.False(t, s.Has("B"))
	assert.Equal(t, "/trunk/B:1-5", s.Effective("B").String())

	// An entry for a source the parent never mentions stays put.
	assert.False(t, s.Elide("C"))
	assert.True(t, s.Has("C"))

	assert.False(t, s.Elide(""))
	assert.Equal(t, []Change{{Path: "B", Deleted: true}}, s.Dirty())

	// After elision no explicit mergeinfo is a subset of what it would inherit.
	for _, p := range s.Paths() {
		if p == "" {
			continue
		}
		explicit, _ := s.Explicit(p)
		assert.False(t, explicit.IsSubsetOf(s.Inherited(p)), "%s should have elided", p)
	}
}

// TestStore_MergeThenElide tests the forward merge postcondition on a child that
// catches up with its parent.
func TestStore_MergeThenElide(t *testing.T) {
	s, err := Load(map[string]*string{
		"":  ptr("/A:1-4"),
		"D": ptr("/A/D:1-2"),
	})
	require.NoError(t, err)

	s.MergeIn("D", "/A/D", rangelist.FromRevisions(2, 4))
	assert.True(t, s.Elide("D"))
	assert.Equal(t, "/A/D:1-4", s.Effective("D").String())
}

// TestStore_RemoveRanges tests reverse merges, including emptying a node.
func TestStore_RemoveRanges(t *testing.T) {
	s, err := Load(map[string]*string{"": ptr("/A/B:1-2")})
	require.NoError(t, err)

	s.RemoveRanges("", "/A/B", rangelist.Single(2))
	assert.Equal(t, "/A/B:1", s.Effective("").String())

	s.RemoveRanges("", "/A/B", rangelist.Single(1))
	assert.True(t, s.Has(""))
	assert.Empty(t, s.Effective(""))
	assert.Equal(t, []Change{{Path: "", Value: ""}}, s.Dirty())
}

// TestStore_RemoveRangesBlocksInheritance tests that emptied child mergeinfo
// stops the parent's from applying.
func TestStore_RemoveRangesBlocksInheritance(t *testing.T) {
	s, err := Load(map[string]*string{"": ptr("/trunk:1-3")})
	require.NoError(t, err)

	s.RemoveRanges("B", "/trunk/B", rangelist.FromRevisions(0, 3))
	assert.True(t, s.Has("B"))
	assert.Empty(t, s.Effective("B"))
	assert.Empty(t, s.Effective("B/child"))
}

// TestStore_Candidates tests the forward and reverse candidate computations.
func TestStore_Candidates(t *testing.T) {
	s, err := Load(map[string]*string{"": ptr("/trunk:1-5")})
	require.NoError(t, err)

	assert.Equal(t, "6-9", s.AlreadyMerged("", "/trunk", rangelist.FromRevisions(0, 9)).String())
	assert.True(t, s.AlreadyMerged("", "/trunk", rangelist.FromRevisions(1, 3)).Empty())
	assert.Equal(t, "1-5", s.Unmergeable("", "/trunk", rangelist.FromRevisions(0, 9)).String())
	assert.True(t, s.AlreadyMerged("X", "/trunk/X", rangelist.FromRevisions(1, 4)).Empty())
	assert.Equal(t, "2-4", s.AlreadyMerged("X", "/other", rangelist.FromRevisions(1, 4)).String())
}
