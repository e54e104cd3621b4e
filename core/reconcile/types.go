package reconcile

import (
	"merge-engine/core/textmerge"
)

// Case is the presence pattern of a node on the left side of the source, the
// right side of the source, and the target.
type Case int

const (
	presenceTarget = 1 << iota
	presenceRight
	presenceLeft
)

const (
	// CaseNone means the node exists nowhere.
	CaseNone Case = 0
	// CaseTargetOnly means only the target has the node.
	CaseTargetOnly Case = presenceTarget
	// CaseAdd means the source added the node and the target lacks it.
	CaseAdd Case = presenceRight
	// CaseAddOverTarget means the source added a node the target already has.
	CaseAddOverTarget Case = presenceRight | presenceTarget
	// CaseDeleteAbsent means the source deleted a node the target lacks.
	CaseDeleteAbsent Case = presenceLeft
	// CaseDelete means the source deleted a node the target has.
	CaseDelete Case = presenceLeft | presenceTarget
	// CaseChangeAbsent means the source kept a node the target lacks.
	CaseChangeAbsent Case = presenceLeft | presenceRight
	// CaseChange means all three sides have the node.
	CaseChange Case = presenceLeft | presenceRight | presenceTarget
)

// Classify returns the case for the given presences.
func Classify(left, right, target bool) Case {
	var c Case
	if left {
		c |= presenceLeft
	}
	if right {
		c |= presenceRight
	}
	if target {
		c |= presenceTarget
	}
	return c
}

func (c Case) String() string {
	switch c {
	case CaseNone:
		return "none"
	case CaseTargetOnly:
		return "target-only"
	case CaseAdd:
		return "add"
	case CaseAddOverTarget:
		return "add-over-target"
	case CaseDeleteAbsent:
		return "delete-absent"
	case CaseDelete:
		return "delete"
	case CaseChangeAbsent:
		return "change-absent"
	case CaseChange:
		return "change"
	}
	return "invalid"
}

// Options controls how a pass treats the target.
type Options struct {
	// DryRun reports what would happen without touching the working copy.
	DryRun bool `json:"dry_run"`

	// Force deletes locally modified nodes instead of skipping them.
	Force bool `json:"force"`

	// IgnoreAncestry merges unrelated nodes as if they were related.
	IgnoreAncestry bool `json:"ignore_ancestry"`

	// Text tunes the per-file text merge.
	Text textmerge.Options `json:"text"`
}

// Pass describes one application of the change between two revisions of a
// source path onto a target.
type Pass struct {
	// Source is the repository path of the merge source.
	Source string `json:"source"`

	// LeftRev and RightRev bound the change. A reverse pass has LeftRev > RightRev.
	LeftRev  int64 `json:"left_rev"`
	RightRev int64 `json:"right_rev"`

	// Target is the working-copy path the source maps onto.
	Target string `json:"target"`

	// Exclude lists working-copy paths under Target that the pass must not enter.
	Exclude []string `json:"exclude,omitempty"`

	Options Options `json:"options"`
}

// Result counts what one pass reported.
type Result struct {
	// Notified is the number of notifications emitted by the pass.
	Notified int `json:"notified"`

	// Skipped is the number of skips recorded by the pass, including paths
	// skipped again after an earlier pass.
	Skipped int `json:"skipped"`

	// Conflicted is the number of nodes left conflicted by the pass.
	Conflicted int `json:"conflicted"`
}
