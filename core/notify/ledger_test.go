package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestStatus tests the column accessors.
func TestStatus(t *testing.T) {
	s := MakeStatus('G', 'U')
	assert.Equal(t, Status("GU"), s)
	assert.Equal(t, byte('G'), s.Text())
	assert.Equal(t, byte('U'), s.Prop())
	assert.False(t, s.IsConflict())
	assert.True(t, MakeStatus(' ', 'C').IsConflict())
	assert.True(t, MakeStatus(' ', ' ').IsNoop())
}

// TestLedger_Order tests that notifications keep emission order and duplicates.
func TestLedger_Order(t *testing.T) {
	l := NewLedger()
	var streamed []Notification
	l.OnNotify(func(n Notification) { streamed = append(streamed, n) })

	l.Notify("E", Deleted)
	l.Notify("E/alpha", Deleted)
	l.Notify("E", Deleted)
	l.Notify("iota", MakeStatus(' ', ' '))

	want := []Notification{{"E", Deleted}, {"E/alpha", Deleted}, {"E", Deleted}}
	assert.Equal(t, want, l.Notifications())
	assert.Equal(t, want, streamed)
	assert.Equal(t, 3, l.Len())
}

// TestLedger_Skips tests the skip set.
func TestLedger_Skips(t *testing.T) {
	l := NewLedger()
	var reported []Skip
	l.OnSkip(func(s Skip) { reported = append(reported, s) })

	l.Skip("lambda", SkipLocalMods)
	l.Skip("E", SkipLocalMods)
	l.Skip("E", SkipObstruction)

	assert.Equal(t, []string{"E", "lambda"}, l.Skipped())
	assert.Equal(t, []Skip{{"E", SkipLocalMods}, {"lambda", SkipLocalMods}}, l.Skips())
	assert.Len(t, reported, 2)
	assert.True(t, l.IsSkipped("E"))
	assert.False(t, l.IsSkipped("iota"))
	assert.Equal(t, 2, l.SkipCount())
}

// TestLedger_Final tests folding into one status per path.
func TestLedger_Final(t *testing.T) {
	l := NewLedger()
	l.Notify("mu", Deleted)
	l.Notify("mu", Added)
	l.Notify("D", Deleted)
	l.Notify("D", Deleted)
	l.Notify("rho", Updated)
	l.Notify("pi", Conflicted)
	l.Notify("E", MakeStatus(' ', 'C'))
	l.Notify("G", MakeStatus(' ', 'U'))
	l.Skip("Q", SkipObstruction)

	final := l.Final()
	assert.Equal(t, Replaced, final["mu"])
	assert.Equal(t, Deleted, final["D"])
	assert.Equal(t, Updated, final["rho"])
	assert.Equal(t, []string{"E", "pi"}, l.Conflicts())

	assert.Equal(t, Summary{
		Deleted:    1,
		Updated:    1,
		Conflicted: 2,
		Replaced:   1,
		PropsOnly:  2,
		Skipped:    1,
	}, l.Summary())
}
