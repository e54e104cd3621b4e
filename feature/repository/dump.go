package repository

import (
	"context"
	"errors"
	"fmt"
	"io"

	"merge-engine/core/repos"

	"gopkg.in/yaml.v3"
)

// Dump is a sequence of revisions to replay into a repository.
type Dump struct {
	Revisions []DumpRevision `yaml:"revisions"`
}

// DumpRevision is one revision of a dump.
type DumpRevision struct {
	Log     string       `yaml:"log"`
	Changes []DumpChange `yaml:"changes"`
}

// DumpChange is one change of a dump revision.
type DumpChange struct {
	Op      string            `yaml:"op"`
	Path    string            `yaml:"path"`
	Kind    string            `yaml:"kind,omitempty"`
	Content *string           `yaml:"content,omitempty"`
	Props   map[string]string `yaml:"props,omitempty"`
	From    *repos.Location   `yaml:"from,omitempty"`
}

// ReadDump decodes a YAML dump. Unknown fields are rejected.
func ReadDump(r io.Reader) (*Dump, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var d Dump
	if err := dec.Decode(&d); err != nil {
		if errors.Is(err, io.EOF) {
			return &Dump{}, nil
		}
		return nil, fmt.Errorf("decode dump: %w", err)
	}
	return &d, nil
}

// changes converts the dump revision to repository changes.
func (r DumpRevision) changes() ([]repos.Change, error) {
	out := make([]repos.Change, 0, len(r.Changes))
	for i, c := range r.Changes {
		op, err := repos.ParseOp(c.Op)
		if err != nil {
			return nil, fmt.Errorf("change %d: %w", i, err)
		}
		kind, err := repos.ParseKind(c.Kind)
		if err != nil {
			return nil, fmt.Errorf("change %d: %w", i, err)
		}
		if op == repos.OpCopy && c.From == nil {
			return nil, fmt.Errorf("change %d: copy of %s without from", i, c.Path)
		}

		ch := repos.Change{Op: op, Path: c.Path, Kind: kind, CopyFrom: c.From}
		if c.Content != nil {
			ch.Content = []byte(*c.Content)
		} else if op == repos.OpAdd && kind == repos.KindFile {
			ch.Content = []byte{}
		}
		if c.Props != nil {
			ch.Props = repos.Props(c.Props)
		}
		out = append(out, ch)
	}
	return out, nil
}

// Load commits every revision of d in order and returns the new revision numbers.
// It stops at the first failing revision.
func Load(ctx context.Context, committer repos.Committer, d *Dump) ([]int64, error) {
	revs := make([]int64, 0, len(d.Revisions))
	for i, dr := range d.Revisions {
		if err := ctx.Err(); err != nil {
			return revs, err
		}
		changes, err := dr.changes()
		if err != nil {
			return revs, fmt.Errorf("dump revision %d: %w", i+1, err)
		}
		rev, err := committer.Commit(ctx, dr.Log, changes)
		if err != nil {
			return revs, fmt.Errorf("dump revision %d: %w", i+1, err)
		}
		revs = append(revs, rev)
	}
	return revs, nil
}
