package repos

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"path"
	"strings"
)

// ErrNotFound is returned when a path does not exist at a revision.
var ErrNotFound = errors.New("node not found")

// Kind is the type of a node.
type Kind int

const (
	// KindNone means nothing is there.
	KindNone Kind = iota
	// KindFile is a file.
	KindFile
	// KindDir is a directory.
	KindDir
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "dir"
	}
	return "none"
}

// ParseKind parses the String form of a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "file":
		return KindFile, nil
	case "dir":
		return KindDir, nil
	case "none", "":
		return KindNone, nil
	}
	return KindNone, fmt.Errorf("unknown node kind %q", s)
}

// Props maps property names to values. Values may hold arbitrary bytes.
type Props map[string]string

// Clone returns a copy that shares nothing with p.
func (p Props) Clone() Props {
	if p == nil {
		return Props{}
	}
	return maps.Clone(p)
}

// Equal reports whether p and q hold the same properties.
func (p Props) Equal(q Props) bool {
	return maps.Equal(p, q)
}

// Without returns a copy of p with the named properties removed.
func (p Props) Without(names ...string) Props {
	out := p.Clone()
	for _, n := range names {
		delete(out, n)
	}
	return out
}

// Location names a node at a revision.
type Location struct {
	Path string `json:"path" yaml:"path"`
	Rev  int64  `json:"rev" yaml:"rev"`
}

func (l Location) String() string {
	return fmt.Sprintf("%s@%d", l.Path, l.Rev)
}

// Node is a file or directory at a revision.
type Node struct {
	Path    string
	Kind    Kind
	Content []byte
	Props   Props
	// Children holds the sorted names of a directory's entries.
	Children []string
	// Origin identifies the line of history the node belongs to.
	Origin string
	// CreatedRev is the revision that last changed the node.
	CreatedRev int64
	// CopyFrom is set when the node was copied.
	CopyFrom *Location
}

// Op is the kind of change in a commit.
type Op int

const (
	// OpAdd creates a node with a new history.
	OpAdd Op = iota
	// OpModify changes the content or properties of an existing node.
	OpModify
	// OpDelete removes a node and its descendants.
	OpDelete
	// OpCopy copies a node and its descendants, keeping their history.
	OpCopy
)

func (o Op) String() string {
	switch o {
	case OpAdd:
		return "add"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	case OpCopy:
		return "copy"
	}
	return "unknown"
}

// ParseOp parses the String form of an Op.
func ParseOp(s string) (Op, error) {
	switch s {
	case "add":
		return OpAdd, nil
	case "modify":
		return OpModify, nil
	case "delete":
		return OpDelete, nil
	case "copy":
		return OpCopy, nil
	}
	return 0, fmt.Errorf("unknown change op %q", s)
}

// Change is one edit in a commit.
type Change struct {
	Op   Op
	Path string
	Kind Kind
	// Content replaces the file content when not nil.
	Content []byte
	// Props replaces the node properties when not nil.
	Props Props
	// CopyFrom is required for OpCopy.
	CopyFrom *Location
}

// Repository serves tree snapshots by revision.
type Repository interface {
	// Youngest returns the latest revision.
	Youngest(ctx context.Context) (int64, error)
	// Read returns the node at path and rev, or ErrNotFound.
	Read(ctx context.Context, path string, rev int64) (*Node, error)
	// Exists reports whether path exists at rev.
	Exists(ctx context.Context, path string, rev int64) (bool, error)
}

// Committer records new revisions.
type Committer interface {
	Commit(ctx context.Context, log string, changes []Change) (int64, error)
}

// Related reports whether a and b belong to the same line of history.
func Related(a, b *Node) bool {
	return a != nil && b != nil && a.Origin != "" && a.Origin == b.Origin
}

// Clean normalizes a repository path to its absolute form.
func Clean(p string) string {
	return path.Clean("/" + strings.TrimPrefix(p, "/"))
}

// Join appends a relative path to a repository path.
func Join(base, rel string) string {
	if rel == "" {
		return Clean(base)
	}
	return Clean(path.Join(base, rel))
}

// Within reports whether p is base or a descendant of base.
func Within(p, base string) bool {
	p, base = Clean(p), Clean(base)
	return p == base || base == "/" || strings.HasPrefix(p, base+"/")
}
