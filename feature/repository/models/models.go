package models

import (
	"time"

	"merge-engine/core/repos"
)

// Revision is one committed revision. Revision 0 is created with the repository.
type Revision struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement:false"`
	Log       string    `gorm:"column:log;type:text"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

// TableName overrides the table name.
func (Revision) TableName() string {
	return "revisions"
}

// Node is the state of a path as of a revision. The live state of a path at
// revision R is its row with the highest Rev not above R; a Deleted row means
// nothing is there.
type Node struct {
	ID      uint64 `gorm:"column:id;primaryKey"`
	Path    string `gorm:"column:path;size:512;not null;index:idx_nodes_path_rev,priority:1"`
	Parent  string `gorm:"column:parent;size:512;index"`
	Rev     int64  `gorm:"column:rev;not null;index:idx_nodes_path_rev,priority:2"`
	Deleted bool   `gorm:"column:deleted;not null"`
	Kind    string `gorm:"column:kind;size:8"`
	// BlobSum addresses the content in the blob store when Content is empty.
	BlobSum      string      `gorm:"column:blob_sum;size:64;index"`
	Content      []byte      `gorm:"column:content"`
	Props        repos.Props `gorm:"column:props;type:text;serializer:json"`
	Origin       string      `gorm:"column:origin;size:600"`
	CreatedRev   int64       `gorm:"column:created_rev"`
	CopyFromPath string      `gorm:"column:copy_from_path;size:512"`
	CopyFromRev  int64       `gorm:"column:copy_from_rev"`
}

// TableName overrides the table name.
func (Node) TableName() string {
	return "nodes"
}

// Mergeinfo is one merged range of one source into one path, recorded at the
// revision that set the path's mergeinfo. Ranges are (start, end].
type Mergeinfo struct {
	ID             uint64 `gorm:"column:id;primaryKey"`
	Revision       int64  `gorm:"column:revision;not null;index:idx_mergeinfo_to_rev,priority:2"`
	MergedFrom     string `gorm:"column:mergedfrom;size:512;not null"`
	MergedTo       string `gorm:"column:mergedto;size:512;not null;index:idx_mergeinfo_to_rev,priority:1"`
	MergedRevStart int64  `gorm:"column:mergedrevstart"`
	MergedRevEnd   int64  `gorm:"column:mergedrevend"`
}

// TableName overrides the table name.
func (Mergeinfo) TableName() string {
	return "mergeinfo"
}

// MergeinfoChanged records that a revision changed a path's explicit mergeinfo.
// HasMergeinfo is false when the mergeinfo was removed, so an empty but
// explicit value stays distinct from none at all.
type MergeinfoChanged struct {
	Revision     int64  `gorm:"column:revision;primaryKey;autoIncrement:false"`
	Path         string `gorm:"column:path;primaryKey;size:512"`
	HasMergeinfo bool   `gorm:"column:has_mergeinfo;not null"`
}

// TableName overrides the table name.
func (MergeinfoChanged) TableName() string {
	return "mergeinfo_changed"
}

// Meta holds repository-wide settings such as the repository UUID.
type Meta struct {
	Key   string `gorm:"column:key;primaryKey;size:64"`
	Value string `gorm:"column:value;size:255"`
}

// TableName overrides the table name.
func (Meta) TableName() string {
	return "repository_meta"
}

// All returns every model, in migration order.
func All() []any {
	return []any{&Meta{}, &Revision{}, &Node{}, &Mergeinfo{}, &MergeinfoChanged{}}
}

// Columns lists the expected columns of each table.
func Columns() map[string][]string {
	return map[string][]string{
		"repository_meta":   {"key", "value"},
		"revisions":         {"id", "log", "created_at"},
		"nodes":             {"id", "path", "parent", "rev", "deleted", "kind", "blob_sum", "content", "props", "origin", "created_rev", "copy_from_path", "copy_from_rev"},
		"mergeinfo":         {"id", "revision", "mergedfrom", "mergedto", "mergedrevstart", "mergedrevend"},
		"mergeinfo_changed": {"revision", "path", "has_mergeinfo"},
	}
}
