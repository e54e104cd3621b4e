package wc

import (
	"context"
	"fmt"

	"merge-engine/core/repos"

	"github.com/spf13/afero"
)

// Checkout materializes repoPath at rev as a new working copy rooted at root.
func Checkout(ctx context.Context, fsys afero.Fs, root string, repo repos.Repository, repoPath string, rev int64, opts ...Option) (*Disk, error) {
	d, err := Create(fsys, root, opts...)
	if err != nil {
		return nil, err
	}

	var visit func(p, url string) error
	visit = func(p, url string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		node, err := repo.Read(ctx, url, rev)
		if err != nil {
			return fmt.Errorf("checkout %s: %w", url, err)
		}
		if err := d.write(p, &Entry{
			Kind:     node.Kind,
			Content:  node.Content,
			Props:    node.Props,
			URL:      node.Path,
			Revision: rev,
		}); err != nil {
			return err
		}
		for _, name := range node.Children {
			if err := visit(joinPath(p, name), repos.Join(url, name)); err != nil {
				return err
			}
		}
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := visit("", repos.Clean(repoPath)); err != nil {
		return nil, err
	}
	if err := d.save(); err != nil {
		return nil, err
	}
	return d, nil
}
