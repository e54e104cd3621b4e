package repos

import (
	"context"
	"fmt"
	"maps"
	"path"
	"sort"
	"strings"
	"sync"
)

type nodeRev struct {
	kind       Kind
	content    []byte
	props      Props
	origin     string
	createdRev int64
	copyFrom   *Location
}

// Memory is an in-process repository. Revision 0 holds only the root directory.
type Memory struct {
	mu   sync.RWMutex
	revs []map[string]*nodeRev
	logs []string
}

// NewMemory returns a repository at revision 0.
func NewMemory() *Memory {
	root := &nodeRev{kind: KindDir, props: Props{}, origin: "/@0"}
	return &Memory{
		revs: []map[string]*nodeRev{{"/": root}},
		logs: []string{""},
	}
}

// Youngest returns the latest revision.
func (m *Memory) Youngest(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.revs) - 1), nil
}

// Log returns the message recorded for rev.
func (m *Memory) Log(rev int64) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if rev < 0 || rev >= int64(len(m.logs)) {
		return ""
	}
	return m.logs[rev]
}

// Exists reports whether p exists at rev.
func (m *Memory) Exists(ctx context.Context, p string, rev int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, err := m.snapshot(rev)
	if err != nil {
		return false, err
	}
	_, ok := snap[Clean(p)]
	return ok, nil
}

// Read returns the node at p and rev.
func (m *Memory) Read(ctx context.Context, p string, rev int64) (*Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, err := m.snapshot(rev)
	if err != nil {
		return nil, err
	}

	p = Clean(p)
	nr, ok := snap[p]
	if !ok {
		return nil, fmt.Errorf("%s@%d: %w", p, rev, ErrNotFound)
	}

	node := &Node{
		Path:       p,
		Kind:       nr.kind,
		Content:    append([]byte(nil), nr.content...),
		Props:      nr.props.Clone(),
		Origin:     nr.origin,
		CreatedRev: nr.createdRev,
		CopyFrom:   nr.copyFrom,
	}
	if nr.kind == KindDir {
		node.Children = children(snap, p)
	}
	return node, nil
}

// Commit applies changes as a new revision. Either every change applies or none does.
func (m *Memory) Commit(ctx context.Context, log string, changes []Change) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rev := int64(len(m.revs))
	snap := maps.Clone(m.revs[rev-1])
	for _, c := range changes {
		if err := m.apply(snap, rev, c); err != nil {
			return 0, fmt.Errorf("commit r%d: %s %s: %w", rev, c.Op, c.Path, err)
		}
	}

	m.revs = append(m.revs, snap)
	m.logs = append(m.logs, log)
	return rev, nil
}

func (m *Memory) apply(snap map[string]*nodeRev, rev int64, c Change) error {
	p := Clean(c.Path)
	existing, exists := snap[p]
	if c.Op != OpModify && c.Op != OpDelete {
		if exists {
			return fmt.Errorf("path already exists")
		}
		if parent, ok := snap[path.Dir(p)]; !ok || parent.kind != KindDir {
			return fmt.Errorf("parent directory does not exist")
		}
	}

	switch c.Op {
	case OpAdd:
		if c.Kind != KindFile && c.Kind != KindDir {
			return fmt.Errorf("cannot add a node of kind %s", c.Kind)
		}
		snap[p] = &nodeRev{
			kind:       c.Kind,
			content:    append([]byte(nil), c.Content...),
			props:      c.Props.Clone(),
			origin:     fmt.Sprintf("%s@%d", p, rev),
			createdRev: rev,
		}

	case OpModify:
		if !exists {
			return ErrNotFound
		}
		next := *existing
		if c.Content != nil {
			next.content = append([]byte(nil), c.Content...)
		}
		if c.Props != nil {
			next.props = c.Props.Clone()
		}
		next.createdRev = rev
		next.copyFrom = nil
		snap[p] = &next

	case OpDelete:
		if !exists {
			return ErrNotFound
		}
		if p == "/" {
			return fmt.Errorf("cannot delete the root")
		}
		for q := range snap {
			if q == p || strings.HasPrefix(q, p+"/") {
				delete(snap, q)
			}
		}

	case OpCopy:
		if c.CopyFrom == nil {
			return fmt.Errorf("copy without a source")
		}
		src, err := m.snapshot(c.CopyFrom.Rev)
		if err != nil {
			return err
		}
		from := Clean(c.CopyFrom.Path)
		if _, ok := src[from]; !ok {
			return fmt.Errorf("copy source %s: %w", c.CopyFrom, ErrNotFound)
		}
		for q, nr := range src {
			if q != from && !strings.HasPrefix(q, from+"/") {
				continue
			}
			copied := *nr
			copied.createdRev = rev
			copied.copyFrom = nil
			snap[p+strings.TrimPrefix(q, from)] = &copied
		}
		top := *snap[p]
		top.copyFrom = &Location{Path: from, Rev: c.CopyFrom.Rev}
		if c.Content != nil {
			top.content = append([]byte(nil), c.Content...)
		}
		if c.Props != nil {
			top.props = c.Props.Clone()
		}
		snap[p] = &top

	default:
		return fmt.Errorf("unknown op %d", c.Op)
	}
	return nil
}

func (m *Memory) snapshot(rev int64) (map[string]*nodeRev, error) {
	if rev < 0 || rev >= int64(len(m.revs)) {
		return nil, fmt.Errorf("no such revision %d", rev)
	}
	return m.revs[rev], nil
}

func children(snap map[string]*nodeRev, dir string) []string {
	prefix := dir + "/"
	if dir == "/" {
		prefix = "/"
	}
	var names []string
	for q := range snap {
		if q == dir || !strings.HasPrefix(q, prefix) {
			continue
		}
		rest := strings.TrimPrefix(q, prefix)
		if !strings.Contains(rest, "/") {
			names = append(names, rest)
		}
	}
	sort.Strings(names)
	return names
}
