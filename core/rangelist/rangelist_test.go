package rangelist

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParse tests decoding of canonical and non-canonical rangelist strings.
func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Rangelist
	}{
		{"Empty", "", nil},
		{"Single", "5", Rangelist{{4, 5}}},
		{"Span", "1-3", Rangelist{{0, 3}}},
		{"Mixed", "1-3,5,7-9", Rangelist{{0, 3}, {4, 5}, {6, 9}}},
		{"AdjacentCollapses", "1-3,4", Rangelist{{0, 4}}},
		{"Spaces", " 2 , 4-6 ", Rangelist{{1, 2}, {3, 6}}},
		{"SingleRevisionSpan", "3-3", Rangelist{{2, 3}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestParse_Malformed tests that invalid input is rejected with a typed error.
func TestParse_Malformed(t *testing.T) {
	inputs := []string{
		"-3",
		"3--5",
		"0",
		"4-3",
		"5,3",
		"1-5,3-7",
		"abc",
		"1,,2",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			rl, err := Parse(input)
			assert.Nil(t, rl)

			var malformed *MalformedRangelistError
			require.True(t, errors.As(err, &malformed), "expected MalformedRangelistError, got %v", err)
			assert.Contains(t, malformed.Error(), "malformed rangelist")
		})
	}
}

// TestString tests canonical encoding and the round trip through Parse.
func TestString(t *testing.T) {
	lists := []Rangelist{
		nil,
		{{0, 1}},
		{{0, 3}, {4, 5}, {6, 9}},
		{{10, 20}},
		{{1, 2}, {3, 4}, {5, 6}},
	}
	want := []string{"", "1", "1-3,5,7-9", "11-20", "2,4,6"}

	for i, rl := range lists {
		assert.Equal(t, want[i], rl.String())

		parsed, err := Parse(rl.String())
		require.NoError(t, err)
		assert.True(t, Equal(rl, parsed), "round trip of %q", rl.String())
	}
}

// TestUnion tests that union results are normalized and contain both inputs.
func TestUnion(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want string
	}{
		{"Disjoint", "1-3", "7-9", "1-3,7-9"},
		{"Adjacent", "1-3", "4-6", "1-6"},
		{"Overlap", "1-5", "3-8", "1-8"},
		{"Contained", "1-9", "4", "1-9"},
		{"Interleaved", "1,3,5", "2,4", "1-5"},
		{"EmptyLeft", "", "2", "2"},
		{"BothEmpty", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := MustParse(tt.a), MustParse(tt.b)
			got := Union(a, b)
			assert.Equal(t, tt.want, got.String())
			assert.True(t, IsSubset(a, got))
			assert.True(t, IsSubset(b, got))
			assertNormalized(t, got)
		})
	}
}

// TestIntersect tests the revisions shared by two lists.
func TestIntersect(t *testing.T) {
	tests := []struct {
		a, b string
		want string
	}{
		{"1-5", "3-8", "3-5"},
		{"1-3", "5-7", ""},
		{"1-10", "2,4,6-7", "2,4,6-7"},
		{"1-3,7-9", "2-8", "2-3,7-8"},
	}

	for _, tt := range tests {
		t.Run(tt.a+"&"+tt.b, func(t *testing.T) {
			got := Intersect(MustParse(tt.a), MustParse(tt.b))
			assert.Equal(t, tt.want, got.String())
			assertNormalized(t, got)
		})
	}
}

// TestRemove tests the set difference a - b.
func TestRemove(t *testing.T) {
	tests := []struct {
		a, b string
		want string
	}{
		{"1-10", "3-4,7", "1-2,5-6,8-10"},
		{"1-3", "1-3", ""},
		{"1-3", "5", "1-3"},
		{"2-5", "1-3", "4-5"},
		{"1-3,6-9", "2-7", "1,8-9"},
		{"", "2", ""},
	}

	for _, tt := range tests {
		t.Run(tt.a+"-"+tt.b, func(t *testing.T) {
			got := Remove(MustParse(tt.a), MustParse(tt.b))
			assert.Equal(t, tt.want, got.String())
			assertNormalized(t, got)
		})
	}
}

// TestIsSubset tests subset checks including the empty list.
func TestIsSubset(t *testing.T) {
	assert.True(t, IsSubset(MustParse("2-3"), MustParse("1-5")))
	assert.True(t, IsSubset(nil, MustParse("1")))
	assert.True(t, IsSubset(MustParse("1-3,5"), MustParse("1-5")))
	assert.False(t, IsSubset(MustParse("1-6"), MustParse("1-5")))
	assert.False(t, IsSubset(MustParse("4"), nil))
}

// TestHelpers tests the constructors and accessors.
func TestHelpers(t *testing.T) {
	assert.Equal(t, "7", Single(7).String())
	assert.Nil(t, Single(0))
	assert.Equal(t, "3-5", FromRevisions(2, 5).String())
	assert.Equal(t, "3-5", FromRevisions(5, 2).String())
	assert.Nil(t, FromRevisions(4, 4))

	rl := MustParse("1-3,7")
	assert.Equal(t, int64(4), rl.Len())
	assert.Equal(t, []int64{1, 2, 3, 7}, rl.Revisions())
	assert.True(t, rl.Contains(2))
	assert.True(t, rl.Contains(7))
	assert.False(t, rl.Contains(5))
	assert.False(t, rl.Contains(0))

	clone := rl.Clone()
	clone[0].End = 99
	assert.Equal(t, int64(3), rl[0].End)
}

func assertNormalized(t *testing.T, rl Rangelist) {
	t.Helper()
	for i, r := range rl {
		assert.Less(t, r.Start, r.End, "range %d is empty", i)
		if i > 0 {
			assert.Less(t, rl[i-1].End, r.Start, "ranges %d and %d overlap or touch", i-1, i)
		}
	}
}
