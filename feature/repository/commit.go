package repository

import (
	"context"
	"fmt"
	"path"
	"strings"

	"merge-engine/core/mergeinfo"
	"merge-engine/core/repos"
	"merge-engine/core/storage"
	"merge-engine/feature/repository/models"

	"gorm.io/gorm"
)

// commit stages the rows of one revision. Lookups see the staged rows first,
// then the previous revision.
type commit struct {
	ctx    context.Context
	tx     *gorm.DB
	blobs  *storage.Blobs
	rev    int64
	staged map[string]*models.Node
}

func (c *commit) lookup(p string) (*models.Node, error) {
	if n, ok := c.staged[p]; ok {
		if n.Deleted {
			return nil, nil
		}
		return n, nil
	}
	return latest(c.tx, p, c.rev-1)
}

// subtree returns the live paths of p and its descendants.
func (c *commit) subtree(p string) ([]string, error) {
	rows, err := liveRows(c.tx, p, c.rev-1)
	if err != nil {
		return nil, err
	}
	set := map[string]bool{}
	for _, n := range rows {
		set[n.Path] = true
	}
	for q, n := range c.staged {
		if repos.Within(q, p) {
			set[q] = !n.Deleted
		}
	}

	var out []string
	for _, q := range sortedKeys(set) {
		if set[q] {
			out = append(out, q)
		}
	}
	return out, nil
}

func (c *commit) apply(ch repos.Change) error {
	p := repos.Clean(ch.Path)
	existing, err := c.lookup(p)
	if err != nil {
		return err
	}

	if ch.Op != repos.OpModify && ch.Op != repos.OpDelete {
		if existing != nil {
			return fmt.Errorf("path already exists")
		}
		parent, err := c.lookup(path.Dir(p))
		if err != nil {
			return err
		}
		if parent == nil || parent.Kind != repos.KindDir.String() {
			return fmt.Errorf("parent directory does not exist")
		}
	}

	switch ch.Op {
	case repos.OpAdd:
		if ch.Kind != repos.KindFile && ch.Kind != repos.KindDir {
			return fmt.Errorf("cannot add a node of kind %s", ch.Kind)
		}
		n := &models.Node{
			Path:       p,
			Parent:     parentOf(p),
			Rev:        c.rev,
			Kind:       ch.Kind.String(),
			Props:      ch.Props.Clone(),
			Origin:     fmt.Sprintf("%s@%d", p, c.rev),
			CreatedRev: c.rev,
		}
		if ch.Kind == repos.KindFile {
			if err := c.setContent(n, ch.Content); err != nil {
				return err
			}
		}
		c.staged[p] = n

	case repos.OpModify:
		if existing == nil {
			return repos.ErrNotFound
		}
		n := c.next(existing, p)
		if ch.Content != nil {
			if n.Kind != repos.KindFile.String() {
				return fmt.Errorf("cannot set content on a %s", n.Kind)
			}
			if err := c.setContent(n, ch.Content); err != nil {
				return err
			}
		}
		if ch.Props != nil {
			n.Props = ch.Props.Clone()
		}
		c.staged[p] = n

	case repos.OpDelete:
		if existing == nil {
			return repos.ErrNotFound
		}
		if p == "/" {
			return fmt.Errorf("cannot delete the root")
		}
		paths, err := c.subtree(p)
		if err != nil {
			return err
		}
		for _, q := range paths {
			c.staged[q] = &models.Node{Path: q, Parent: parentOf(q), Rev: c.rev, Deleted: true}
		}

	case repos.OpCopy:
		if ch.CopyFrom == nil {
			return fmt.Errorf("copy without a source")
		}
		if ch.CopyFrom.Rev < 0 || ch.CopyFrom.Rev >= c.rev {
			return fmt.Errorf("no such revision %d", ch.CopyFrom.Rev)
		}
		from := repos.Clean(ch.CopyFrom.Path)
		src, err := liveRows(c.tx, from, ch.CopyFrom.Rev)
		if err != nil {
			return err
		}
		if len(src) == 0 || src[0].Path != from {
			return fmt.Errorf("copy source %s: %w", ch.CopyFrom, repos.ErrNotFound)
		}
		for i := range src {
			q := p + strings.TrimPrefix(src[i].Path, from)
			c.staged[q] = c.next(&src[i], q)
		}

		top := c.staged[p]
		top.CopyFromPath = from
		top.CopyFromRev = ch.CopyFrom.Rev
		if ch.Content != nil {
			if err := c.setContent(top, ch.Content); err != nil {
				return err
			}
		}
		if ch.Props != nil {
			top.Props = ch.Props.Clone()
		}

	default:
		return fmt.Errorf("unknown op %d", ch.Op)
	}
	return nil
}

// next returns a row carrying n's state and history to path p in this revision.
func (c *commit) next(n *models.Node, p string) *models.Node {
	out := *n
	out.ID = 0
	out.Path = p
	out.Parent = parentOf(p)
	out.Rev = c.rev
	out.CreatedRev = c.rev
	out.CopyFromPath = ""
	out.CopyFromRev = 0
	out.Props = n.Props.Clone()
	return &out
}

func (c *commit) setContent(n *models.Node, content []byte) error {
	if c.blobs == nil {
		n.Content = append([]byte{}, content...)
		n.BlobSum = ""
		return nil
	}
	sum, err := c.blobs.Put(c.ctx, content)
	if err != nil {
		return err
	}
	n.Content = nil
	n.BlobSum = sum
	return nil
}

func (c *commit) rows() []models.Node {
	rows := make([]models.Node, 0, len(c.staged))
	for _, p := range sortedKeys(c.staged) {
		rows = append(rows, *c.staged[p])
	}
	return rows
}

// index records every staged path whose explicit mergeinfo differs from the
// previous revision.
func (c *commit) index() error {
	for _, p := range sortedKeys(c.staged) {
		prev, err := latest(c.tx, p, c.rev-1)
		if err != nil {
			return err
		}
		oldValue, oldHas := mergeinfoOf(prev)
		newValue, newHas := mergeinfoOf(c.staged[p])
		if oldHas == newHas && oldValue == newValue {
			continue
		}

		var rows []models.Mergeinfo
		if newHas {
			mi, err := mergeinfo.Parse(newValue)
			if err != nil {
				return fmt.Errorf("invalid mergeinfo on %s: %w", p, err)
			}
			for _, source := range mi.Sources() {
				for _, r := range mi[source] {
					rows = append(rows, models.Mergeinfo{
						Revision:       c.rev,
						MergedFrom:     source,
						MergedTo:       p,
						MergedRevStart: r.Start,
						MergedRevEnd:   r.End,
					})
				}
			}
		}

		changed := &models.MergeinfoChanged{Revision: c.rev, Path: p, HasMergeinfo: newHas}
		if err := c.tx.Create(changed).Error; err != nil {
			return fmt.Errorf("index mergeinfo of %s: %w", p, err)
		}
		if len(rows) > 0 {
			if err := c.tx.Create(&rows).Error; err != nil {
				return fmt.Errorf("index mergeinfo of %s: %w", p, err)
			}
		}
	}
	return nil
}

func mergeinfoOf(n *models.Node) (string, bool) {
	if n == nil || n.Deleted {
		return "", false
	}
	v, ok := n.Props[mergeinfo.Property]
	return v, ok
}
