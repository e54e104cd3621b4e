package repository

import (
	"context"
	"fmt"
	"path"

	"merge-engine/core/mergeinfo"
	"merge-engine/core/rangelist"
	"merge-engine/core/repos"
	"merge-engine/feature/repository/models"

	"gorm.io/gorm"
)

// Inheritance selects how GetMergeinfo looks for mergeinfo.
type Inheritance int

const (
	// Explicit returns only the path's own mergeinfo.
	Explicit Inheritance = iota
	// Inherited returns the path's own mergeinfo or else the nearest ancestor's.
	Inherited
	// NearestAncestor ignores the path's own mergeinfo and returns the nearest ancestor's.
	NearestAncestor
)

func (i Inheritance) String() string {
	switch i {
	case Inherited:
		return "inherited"
	case NearestAncestor:
		return "nearest-ancestor"
	}
	return "explicit"
}

// ParseInheritance parses the String form of an Inheritance.
func ParseInheritance(s string) (Inheritance, error) {
	switch s {
	case "explicit":
		return Explicit, nil
	case "inherited", "":
		return Inherited, nil
	case "nearest-ancestor":
		return NearestAncestor, nil
	}
	return Explicit, fmt.Errorf("unknown inheritance mode %q", s)
}

// GetMergeinfo returns the mergeinfo of p at rev and whether any applies.
// Inherited mergeinfo is translated to p.
func (r *SQLRepository) GetMergeinfo(ctx context.Context, p string, rev int64, inherit Inheritance) (mergeinfo.Mergeinfo, bool, error) {
	db := r.db.WithContext(ctx)
	p = repos.Clean(p)

	if inherit != NearestAncestor {
		mi, ok, err := explicitAt(db, p, rev)
		if err != nil || ok || inherit == Explicit {
			return mi, ok, err
		}
	}

	for cur := p; cur != "/"; {
		parent := path.Dir(cur)
		mi, ok, err := explicitAt(db, parent, rev)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return mi.Translate(relative(parent, p)), true, nil
		}
		cur = parent
	}
	return nil, false, nil
}

// GetMergeinfoForTree returns the mergeinfo of p, inherited if need be, and
// the explicit mergeinfo of every descendant that has any, keyed by path.
func (r *SQLRepository) GetMergeinfoForTree(ctx context.Context, p string, rev int64) (map[string]mergeinfo.Mergeinfo, error) {
	p = repos.Clean(p)
	out := map[string]mergeinfo.Mergeinfo{}

	mi, ok, err := r.GetMergeinfo(ctx, p, rev, Inherited)
	if err != nil {
		return nil, err
	}
	if ok {
		out[p] = mi
	}

	paths, err := r.IndexedPaths(ctx, rev)
	if err != nil {
		return nil, err
	}
	db := r.db.WithContext(ctx)
	for _, q := range paths {
		if q == p || !repos.Within(q, p) {
			continue
		}
		mi, ok, err := explicitAt(db, q, rev)
		if err != nil {
			return nil, err
		}
		if ok {
			out[q] = mi
		}
	}
	return out, nil
}

// IndexedPaths returns the paths carrying explicit mergeinfo at rev, sorted.
func (r *SQLRepository) IndexedPaths(ctx context.Context, rev int64) ([]string, error) {
	type lastChange struct {
		Path     string
		Revision int64
	}
	var changes []lastChange
	err := r.db.WithContext(ctx).Model(&models.MergeinfoChanged{}).
		Select("path, MAX(revision) AS revision").
		Where("revision <= ?", rev).
		Group("path").Order("path").
		Scan(&changes).Error
	if err != nil {
		return nil, fmt.Errorf("list mergeinfo paths at r%d: %w", rev, err)
	}

	var paths []string
	for _, ch := range changes {
		var row models.MergeinfoChanged
		if err := r.db.WithContext(ctx).Where("revision = ? AND path = ?", ch.Revision, ch.Path).First(&row).Error; err != nil {
			return nil, fmt.Errorf("read mergeinfo change of %s: %w", ch.Path, err)
		}
		if row.HasMergeinfo {
			paths = append(paths, ch.Path)
		}
	}
	return paths, nil
}

// explicitAt returns p's own mergeinfo as of rev. An explicit but empty value
// reports ok.
func explicitAt(db *gorm.DB, p string, rev int64) (mergeinfo.Mergeinfo, bool, error) {
	var changed []models.MergeinfoChanged
	err := db.Where("path = ? AND revision <= ?", p, rev).Order("revision DESC").Limit(1).Find(&changed).Error
	if err != nil {
		return nil, false, fmt.Errorf("read mergeinfo of %s@%d: %w", p, rev, err)
	}
	if len(changed) == 0 || !changed[0].HasMergeinfo {
		return nil, false, nil
	}

	var rows []models.Mergeinfo
	err = db.Where("revision = ? AND mergedto = ?", changed[0].Revision, p).
		Order("mergedfrom, mergedrevstart").Find(&rows).Error
	if err != nil {
		return nil, false, fmt.Errorf("read mergeinfo of %s@%d: %w", p, rev, err)
	}

	mi := mergeinfo.Mergeinfo{}
	for _, row := range rows {
		r := rangelist.Range{Start: row.MergedRevStart, End: row.MergedRevEnd}
		mi[row.MergedFrom] = rangelist.Union(mi[row.MergedFrom], rangelist.Rangelist{r})
	}
	return mi, true, nil
}
