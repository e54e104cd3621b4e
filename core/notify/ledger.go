package notify

import (
	"sort"

	"github.com/samber/lo"
)

// Status is a two column notification code: text then properties.
type Status string

// Common statuses.
const (
	Added      Status = "A "
	Deleted    Status = "D "
	Updated    Status = "U "
	Merged     Status = "G "
	Conflicted Status = "C "
	Replaced   Status = "R "
)

// MakeStatus builds a status from its two columns.
func MakeStatus(text, prop byte) Status {
	return Status([]byte{text, prop})
}

// Text returns the text column.
func (s Status) Text() byte {
	if len(s) == 0 {
		return ' '
	}
	return s[0]
}

// Prop returns the property column.
func (s Status) Prop() byte {
	if len(s) < 2 {
		return ' '
	}
	return s[1]
}

// IsConflict reports whether either column is a conflict.
func (s Status) IsConflict() bool {
	return s.Text() == 'C' || s.Prop() == 'C'
}

// IsNoop reports whether both columns are blank.
func (s Status) IsNoop() bool {
	return s.Text() == ' ' && s.Prop() == ' '
}

// SkipReason explains why a path was left alone.
type SkipReason string

const (
	// SkipObstruction means an unversioned item or an item of another kind is in the way.
	SkipObstruction SkipReason = "obstruction"
	// SkipMissing means the path is versioned but gone from disk.
	SkipMissing SkipReason = "missing"
	// SkipDeletedInTarget means the change applies to something the target no longer has.
	SkipDeletedInTarget SkipReason = "deleted-in-target"
	// SkipLocalMods means a delete would destroy local modifications.
	SkipLocalMods SkipReason = "local-mods"
)

// Notification is one reported path.
type Notification struct {
	Path   string `json:"path"`
	Status Status `json:"status"`
}

// Skip is one skipped path.
type Skip struct {
	Path   string     `json:"path"`
	Reason SkipReason `json:"reason"`
}

// Summary counts final statuses.
type Summary struct {
	Added      int `json:"added"`
	Deleted    int `json:"deleted"`
	Updated    int `json:"updated"`
	Merged     int `json:"merged"`
	Conflicted int `json:"conflicted"`
	Replaced   int `json:"replaced"`
	PropsOnly  int `json:"props_only"`
	Skipped    int `json:"skipped"`
}

// Ledger records the notifications and skips of one merge session.
// It is not safe for concurrent use.
type Ledger struct {
	notes    []Notification
	skips    map[string]SkipReason
	onNotify func(Notification)
	onSkip   func(Skip)
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{skips: map[string]SkipReason{}}
}

// OnNotify registers a callback invoked for every notification as it is recorded.
func (l *Ledger) OnNotify(fn func(Notification)) {
	l.onNotify = fn
}

// OnSkip registers a callback invoked the first time a path is skipped.
func (l *Ledger) OnSkip(fn func(Skip)) {
	l.onSkip = fn
}

// Notify appends a notification. Blank statuses are dropped.
func (l *Ledger) Notify(path string, status Status) {
	if status.IsNoop() {
		return
	}
	n := Notification{Path: path, Status: status}
	l.notes = append(l.notes, n)
	if l.onNotify != nil {
		l.onNotify(n)
	}
}

// Skip records path as skipped. The first reason given for a path is kept.
func (l *Ledger) Skip(path string, reason SkipReason) {
	if _, ok := l.skips[path]; ok {
		return
	}
	l.skips[path] = reason
	if l.onSkip != nil {
		l.onSkip(Skip{Path: path, Reason: reason})
	}
}

// IsSkipped reports whether path was skipped.
func (l *Ledger) IsSkipped(path string) bool {
	_, ok := l.skips[path]
	return ok
}

// Notifications returns the notifications in emission order.
func (l *Ledger) Notifications() []Notification {
	return append([]Notification(nil), l.notes...)
}

// Len returns the number of notifications recorded.
func (l *Ledger) Len() int {
	return len(l.notes)
}

// SkipCount returns the number of skipped paths.
func (l *Ledger) SkipCount() int {
	return len(l.skips)
}

// Skipped returns the skipped paths, sorted.
func (l *Ledger) Skipped() []string {
	paths := lo.Keys(l.skips)
	sort.Strings(paths)
	return paths
}

// Skips returns the skipped paths with their reasons, sorted by path.
func (l *Ledger) Skips() []Skip {
	out := make([]Skip, 0, len(l.skips))
	for _, p := range l.Skipped() {
		out = append(out, Skip{Path: p, Reason: l.skips[p]})
	}
	return out
}

// Final returns the last status of every notified path.
func (l *Ledger) Final() map[string]Status {
	final := make(map[string]Status, len(l.notes))
	for _, n := range l.notes {
		prev, seen := final[n.Path]
		if seen && prev.Text() == 'D' && n.Status.Text() == 'A' {
			final[n.Path] = MakeStatus('R', n.Status.Prop())
			continue
		}
		if seen && prev.Text() == 'R' && n.Status.Text() == 'A' {
			continue
		}
		final[n.Path] = n.Status
	}
	return final
}

// Conflicts returns the paths whose final status is conflicted, sorted.
func (l *Ledger) Conflicts() []string {
	var out []string
	for p, s := range l.Final() {
		if s.IsConflict() {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// Summary counts the final statuses and the skips.
func (l *Ledger) Summary() Summary {
	statuses := lo.Values(l.Final())
	text := func(c byte) int {
		return lo.CountBy(statuses, func(s Status) bool { return s.Text() == c })
	}
	return Summary{
		Added:      text('A'),
		Deleted:    text('D'),
		Updated:    text('U'),
		Merged:     text('G'),
		Conflicted: lo.CountBy(statuses, Status.IsConflict),
		Replaced:   text('R'),
		PropsOnly:  text(' '),
		Skipped:    len(l.skips),
	}
}
