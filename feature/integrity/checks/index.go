package checks

import (
	"context"
	"fmt"
	"sort"

	"merge-engine/core/mergeinfo"
	"merge-engine/feature/repository"
	"merge-engine/feature/repository/models"

	"github.com/samber/lo"
)

// IndexSource is the part of the repository the index check reads.
type IndexSource interface {
	Youngest(ctx context.Context) (int64, error)
	LiveNodes(ctx context.Context, rev int64) ([]models.Node, error)
	IndexedPaths(ctx context.Context, rev int64) ([]string, error)
	GetMergeinfo(ctx context.Context, p string, rev int64, inherit repository.Inheritance) (mergeinfo.Mergeinfo, bool, error)
}

// IndexReport compares the mergeinfo index with the mergeinfo properties of
// the live nodes at one revision.
type IndexReport struct {
	Revision int64 `json:"revision"`
	Checked  int   `json:"checked"`
	// Unindexed paths carry the property but have no index entry.
	Unindexed []string `json:"unindexed"`
	// Stale paths have an index entry but no property.
	Stale []string `json:"stale"`
	// Mismatched paths have both, with different values.
	Mismatched []string `json:"mismatched"`
	Invalid    []string `json:"invalid"`
	Matched    bool     `json:"matched"`
}

// CheckIndex verifies the index at rev. A negative rev checks the youngest revision.
func CheckIndex(ctx context.Context, src IndexSource, rev int64) (*IndexReport, error) {
	youngest, err := src.Youngest(ctx)
	if err != nil {
		return nil, err
	}
	if rev < 0 {
		rev = youngest
	}
	if rev > youngest {
		return nil, fmt.Errorf("no such revision %d", rev)
	}

	nodes, err := src.LiveNodes(ctx, rev)
	if err != nil {
		return nil, err
	}
	indexed, err := src.IndexedPaths(ctx, rev)
	if err != nil {
		return nil, err
	}

	report := &IndexReport{
		Revision:   rev,
		Unindexed:  []string{},
		Stale:      []string{},
		Mismatched: []string{},
		Invalid:    []string{},
	}

	props := map[string]string{}
	for _, n := range nodes {
		if raw, ok := n.Props[mergeinfo.Property]; ok {
			props[n.Path] = raw
		}
	}

	for _, p := range lo.Union(lo.Keys(props), indexed) {
		report.Checked++
		raw, hasProp := props[p]
		stored, hasIndex, err := src.GetMergeinfo(ctx, p, rev, repository.Explicit)
		if err != nil {
			return nil, fmt.Errorf("index check of %s: %w", p, err)
		}

		switch {
		case hasProp && !hasIndex:
			report.Unindexed = append(report.Unindexed, p)
		case !hasProp && hasIndex:
			report.Stale = append(report.Stale, p)
		case hasProp:
			want, err := mergeinfo.Parse(raw)
			if err != nil {
				report.Invalid = append(report.Invalid, p)
				continue
			}
			if !mergeinfo.Equal(want, stored) {
				report.Mismatched = append(report.Mismatched, p)
			}
		}
	}

	for _, list := range [][]string{report.Unindexed, report.Stale, report.Mismatched, report.Invalid} {
		sort.Strings(list)
	}
	report.Matched = len(report.Unindexed)+len(report.Stale)+len(report.Mismatched)+len(report.Invalid) == 0
	return report, nil
}
