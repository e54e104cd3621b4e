package reconcile

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"merge-engine/core/wc"

	"github.com/samber/lo"
)

// overlay is a working copy view that records writes in memory and leaves the
// underlying working copy untouched. Dry runs walk through it so later passes
// see the effect of earlier ones.
type overlay struct {
	base wc.WorkingCopy
	// written holds entries added or changed by the run.
	written map[string]*wc.Entry
	// gone holds removed paths; their descendants are gone too.
	gone map[string]struct{}
}

func newOverlay(base wc.WorkingCopy) *overlay {
	return &overlay{
		base:    base,
		written: map[string]*wc.Entry{},
		gone:    map[string]struct{}{},
	}
}

func (o *overlay) ReadLocal(ctx context.Context, p string) (*wc.Entry, error) {
	if e, ok := o.written[p]; ok {
		out := e.Clone()
		out.Children = o.children(p, out.Children)
		return out, nil
	}
	if o.isGone(p) {
		return nil, fmt.Errorf("%s: %w", p, wc.ErrNotFound)
	}

	e, err := o.base.ReadLocal(ctx, p)
	if err != nil {
		return nil, err
	}
	if e.Children != nil {
		e.Children = o.children(p, e.Children)
	}
	return e, nil
}

func (o *overlay) WriteLocal(ctx context.Context, p string, e *wc.Entry) error {
	if prev, err := o.ReadLocal(ctx, p); err == nil && e.Status == wc.StatusAdded && prev.Status == wc.StatusDeleted {
		e = e.Clone()
		e.Status = wc.StatusReplaced
	}
	o.written[p] = e.Clone()
	return nil
}

func (o *overlay) RemoveLocal(ctx context.Context, p string) error {
	for q := range o.written {
		if q == p || strings.HasPrefix(q, p+"/") || p == "" {
			delete(o.written, q)
		}
	}
	o.gone[p] = struct{}{}
	return nil
}

func (o *overlay) WriteSidecar(ctx context.Context, p string, content []byte, appendTo bool) error {
	return nil
}

func (o *overlay) Versioned(ctx context.Context) ([]string, error) {
	paths, err := o.base.Versioned(ctx)
	if err != nil {
		return nil, err
	}
	paths = lo.Filter(paths, func(p string, _ int) bool { return !o.isGone(p) })
	for p, e := range o.written {
		if e.Status != wc.StatusDeleted {
			paths = append(paths, p)
		}
	}
	paths = lo.Uniq(paths)
	sort.Strings(paths)
	return paths, nil
}

func (o *overlay) Lock(ctx context.Context) error {
	return o.base.Lock(ctx)
}

func (o *overlay) Unlock(ctx context.Context) error {
	return o.base.Unlock(ctx)
}

func (o *overlay) isGone(p string) bool {
	for {
		if _, ok := o.gone[p]; ok {
			return true
		}
		if p == "" {
			return false
		}
		p = parentOf(p)
	}
}

// children folds written entries into a directory listing.
func (o *overlay) children(dir string, names []string) []string {
	out := append([]string(nil), names...)
	for q := range o.written {
		if q != "" && parentOf(q) == dir {
			out = append(out, path.Base(q))
		}
	}
	out = lo.Uniq(out)
	sort.Strings(out)
	return out
}
