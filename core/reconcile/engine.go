package reconcile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"time"

	"merge-engine/core/mergeinfo"
	"merge-engine/core/notify"
	"merge-engine/core/propmerge"
	"merge-engine/core/repos"
	"merge-engine/core/textmerge"
	"merge-engine/core/wc"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Reconciler applies the difference between two revisions of a source tree
// to a working copy and reports every affected path to a ledger.
type Reconciler struct {
	target wc.WorkingCopy
	ledger *notify.Ledger
	logger *zap.Logger
	cache  *sourceCache
	dry    *overlay
}

// Option configures a Reconciler.
type Option func(*reconcilerConfig)

type reconcilerConfig struct {
	cacheTTL time.Duration
}

// WithCacheTTL sets how long source reads are reused. Zero disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *reconcilerConfig) {
		c.cacheTTL = ttl
	}
}

// New creates a Reconciler reading from repo and writing to target.
func New(repo repos.Repository, target wc.WorkingCopy, ledger *notify.Ledger, logger *zap.Logger, opts ...Option) *Reconciler {
	cfg := reconcilerConfig{cacheTTL: DefaultCacheTTL}
	for _, opt := range opts {
		opt(&cfg)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		target: target,
		ledger: ledger,
		logger: logger,
		cache:  newSourceCache(repo, cfg.cacheTTL),
	}
}

// Run applies one pass. Skips and conflicts are recorded and counted; only
// repository and working-copy errors abort the walk.
func (r *Reconciler) Run(ctx context.Context, p Pass) (*Result, error) {
	w := &walk{
		r:       r,
		pass:    p,
		wc:      r.target,
		exclude: lo.SliceToMap(p.Exclude, func(s string) (string, struct{}) { return cleanPath(s), struct{}{} }),
	}
	w.pass.Target = cleanPath(p.Target)
	w.pass.Source = repos.Clean(p.Source)

	if p.Options.DryRun {
		if r.dry == nil {
			r.dry = newOverlay(r.target)
		}
		w.wc = r.dry
	}

	r.logger.Debug("Starting merge pass",
		zap.String("source", w.pass.Source),
		zap.Int64("left", p.LeftRev),
		zap.Int64("right", p.RightRev),
		zap.String("target", w.pass.Target),
		zap.Bool("dry_run", p.Options.DryRun))

	before := r.ledger.Len()
	if err := w.visit(ctx, ""); err != nil {
		return nil, err
	}
	w.res.Notified = r.ledger.Len() - before

	r.logger.Debug("Finished merge pass",
		zap.Int("notified", w.res.Notified),
		zap.Int("skipped", w.res.Skipped),
		zap.Int("conflicted", w.res.Conflicted))
	return &w.res, nil
}

// walk is the state of a single pass.
type walk struct {
	r       *Reconciler
	pass    Pass
	wc      wc.WorkingCopy
	exclude map[string]struct{}
	res     Result
}

func (w *walk) visit(ctx context.Context, rel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tp := w.targetPath(rel)
	if _, ok := w.exclude[tp]; ok && rel != "" {
		return nil
	}

	left, err := w.r.cache.Read(ctx, w.sourcePath(rel), w.pass.LeftRev)
	if err != nil {
		return err
	}
	right, err := w.r.cache.Read(ctx, w.sourcePath(rel), w.pass.RightRev)
	if err != nil {
		return err
	}
	target, err := w.readTarget(ctx, tp)
	if err != nil {
		return err
	}

	switch c := Classify(left != nil, right != nil, target != nil); c {
	case CaseNone, CaseTargetOnly:
		return nil
	case CaseAdd:
		url, rev, err := w.parentLocation(ctx, tp)
		if err != nil {
			return err
		}
		return w.addTree(ctx, rel, right, url, rev, true)
	case CaseAddOverTarget:
		return w.addOverTarget(ctx, rel, right, target)
	case CaseDeleteAbsent:
		w.skip(tp, notify.SkipMissing)
		return nil
	case CaseDelete:
		_, err := w.delete(ctx, rel, left, target)
		return err
	case CaseChangeAbsent:
		return w.skipChanged(ctx, rel, left, right, notify.SkipDeletedInTarget)
	case CaseChange:
		return w.change(ctx, rel, left, right, target)
	default:
		return fmt.Errorf("unhandled case %s at %s", c, tp)
	}
}

// addTree schedules node and its descendants for addition with history.
func (w *walk) addTree(ctx context.Context, rel string, node *repos.Node, url string, rev int64, top bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tp := w.targetPath(rel)
	e := &wc.Entry{
		Path:     tp,
		Kind:     node.Kind,
		Content:  node.Content,
		Props:    node.Props.Without(mergeinfo.Property),
		Status:   wc.StatusAdded,
		URL:      url,
		Revision: rev,
	}
	if top {
		e.CopyFrom = &repos.Location{Path: node.Path, Rev: w.pass.RightRev}
	}
	if err := w.wc.WriteLocal(ctx, tp, e); err != nil {
		return fmt.Errorf("failed to add %s: %w", tp, err)
	}
	w.notify(tp, notify.Added)

	if node.Kind != repos.KindDir {
		return nil
	}
	for _, name := range node.Children {
		child, err := w.r.cache.Read(ctx, repos.Join(node.Path, name), w.pass.RightRev)
		if err != nil {
			return err
		}
		if child == nil {
			continue
		}
		if err := w.addTree(ctx, joinPath(rel, name), child, repos.Join(url, name), rev, false); err != nil {
			return err
		}
	}
	return nil
}

func (w *walk) addOverTarget(ctx context.Context, rel string, right *repos.Node, target *wc.Entry) error {
	tp := w.targetPath(rel)

	switch {
	case target.Status == wc.StatusUnversioned:
		return w.skipTree(ctx, tp, right, notify.SkipObstruction)
	case target.Status == wc.StatusMissing:
		return w.skipTree(ctx, tp, right, notify.SkipMissing)
	case target.Status == wc.StatusDeleted:
		return w.addTree(ctx, rel, right, target.URL, target.Revision, true)
	case target.Kind != right.Kind:
		w.skip(tp, notify.SkipObstruction)
		return nil
	case right.Kind == repos.KindFile:
		return w.mergeFile(ctx, rel, nil, right, target)
	}

	if err := w.mergeDirProps(ctx, tp, nil, right.Props, target); err != nil {
		return err
	}
	return w.children(ctx, rel, nil, right)
}

// delete applies the removal of left to target. It reports whether anything
// was preserved, in which case the path has been skipped.
func (w *walk) delete(ctx context.Context, rel string, left *repos.Node, target *wc.Entry) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	tp := w.targetPath(rel)
	switch {
	case target.Status == wc.StatusMissing:
		w.skip(tp, notify.SkipMissing)
		return true, nil
	case target.Status == wc.StatusUnversioned:
		w.skip(tp, notify.SkipObstruction)
		return true, nil
	case target.Status == wc.StatusDeleted:
		return false, nil
	case target.Kind != left.Kind:
		w.skip(tp, notify.SkipObstruction)
		return true, nil
	case left.Kind == repos.KindFile:
		if !w.pass.Options.Force && fileModified(left, target) {
			w.skip(tp, notify.SkipLocalMods)
			return true, nil
		}
		return false, w.remove(ctx, tp)
	}
	return w.deleteDir(ctx, rel, left, target)
}

func (w *walk) deleteDir(ctx context.Context, rel string, left *repos.Node, target *wc.Entry) (bool, error) {
	tp := w.targetPath(rel)
	force := w.pass.Options.Force

	if !force && dirModified(left, target) {
		w.skip(tp, notify.SkipLocalMods)
		return true, nil
	}

	// A dry run reports the directory once and does not descend.
	if w.pass.Options.DryRun {
		if !force {
			clean, err := w.wouldDelete(ctx, rel, left, target)
			if err != nil {
				return false, err
			}
			if !clean {
				w.skip(tp, notify.SkipLocalMods)
				return true, nil
			}
		}
		return false, w.remove(ctx, tp)
	}

	// The entry is reported only when the whole subtree will go.
	clean := force
	if !clean {
		var err error
		if clean, err = w.wouldDelete(ctx, rel, left, target); err != nil {
			return false, err
		}
	}
	if clean {
		w.notify(tp, notify.Deleted)
	}

	preserved := false
	for _, name := range unionNames(left.Children, target.Children) {
		childRel := joinPath(rel, name)
		ctp := w.targetPath(childRel)

		cl, err := w.r.cache.Read(ctx, w.sourcePath(childRel), w.pass.LeftRev)
		if err != nil {
			return false, err
		}
		ct, err := w.readTarget(ctx, ctp)
		if err != nil {
			return false, err
		}

		switch {
		case ct == nil:
			continue
		case cl == nil:
			if ct.Status == wc.StatusDeleted || force {
				continue
			}
			reason := notify.SkipLocalMods
			if ct.Status == wc.StatusUnversioned {
				reason = notify.SkipObstruction
			}
			w.skip(ctp, reason)
			preserved = true
			continue
		}

		kept, err := w.delete(ctx, childRel, cl, ct)
		if err != nil {
			return false, err
		}
		preserved = preserved || kept
	}

	if preserved {
		w.skip(tp, notify.SkipLocalMods)
		return true, nil
	}
	return false, w.remove(ctx, tp)
}

// wouldDelete reports whether deleting target as left would preserve nothing.
func (w *walk) wouldDelete(ctx context.Context, rel string, left *repos.Node, target *wc.Entry) (bool, error) {
	switch {
	case target.Status == wc.StatusDeleted:
		return true, nil
	case target.Status == wc.StatusMissing, target.Status == wc.StatusUnversioned, target.Kind != left.Kind:
		return false, nil
	case left.Kind == repos.KindFile:
		return !fileModified(left, target), nil
	case dirModified(left, target):
		return false, nil
	}

	for _, name := range unionNames(left.Children, target.Children) {
		childRel := joinPath(rel, name)
		cl, err := w.r.cache.Read(ctx, w.sourcePath(childRel), w.pass.LeftRev)
		if err != nil {
			return false, err
		}
		ct, err := w.readTarget(ctx, w.targetPath(childRel))
		if err != nil {
			return false, err
		}
		if ct == nil {
			continue
		}
		if cl == nil {
			if ct.Status != wc.StatusDeleted {
				return false, nil
			}
			continue
		}
		clean, err := w.wouldDelete(ctx, childRel, cl, ct)
		if err != nil || !clean {
			return false, err
		}
	}
	return true, nil
}

func (w *walk) remove(ctx context.Context, tp string) error {
	if err := w.wc.RemoveLocal(ctx, tp); err != nil {
		return fmt.Errorf("failed to delete %s: %w", tp, err)
	}
	w.notify(tp, notify.Deleted)
	return nil
}

func (w *walk) change(ctx context.Context, rel string, left, right *repos.Node, target *wc.Entry) error {
	tp := w.targetPath(rel)

	if left.Kind != right.Kind || (!w.pass.Options.IgnoreAncestry && !repos.Related(left, right)) {
		return w.replace(ctx, rel, left, right, target)
	}

	switch {
	case target.Status == wc.StatusMissing:
		return w.skipChanged(ctx, rel, left, right, notify.SkipMissing)
	case target.Status == wc.StatusUnversioned, target.Kind != left.Kind:
		return w.skipChanged(ctx, rel, left, right, notify.SkipObstruction)
	case target.Status == wc.StatusDeleted:
		return w.skipChanged(ctx, rel, left, right, notify.SkipDeletedInTarget)
	case left.Kind == repos.KindFile:
		if !nodeChanged(left, right) {
			return nil
		}
		return w.mergeFile(ctx, rel, left, right, target)
	}

	if !propsOf(left.Props).Equal(propsOf(right.Props)) {
		if err := w.mergeDirProps(ctx, tp, left.Props, right.Props, target); err != nil {
			return err
		}
	}
	return w.children(ctx, rel, left, right)
}

// replace deletes left from target and adds right in its place. Nothing is
// added when the delete preserved local changes.
func (w *walk) replace(ctx context.Context, rel string, left, right *repos.Node, target *wc.Entry) error {
	kept, err := w.delete(ctx, rel, left, target)
	if err != nil || kept {
		return err
	}
	return w.addTree(ctx, rel, right, target.URL, target.Revision, true)
}

// mergeFile merges the change from left to right into target. A nil left
// merges against an empty file at revision 0.
func (w *walk) mergeFile(ctx context.Context, rel string, left, right *repos.Node, target *wc.Entry) error {
	tp := w.targetPath(rel)

	var base []byte
	var baseProps repos.Props
	leftRev := w.pass.LeftRev
	if left != nil {
		base, baseProps = left.Content, left.Props
	} else {
		leftRev = 0
	}

	pm := propmerge.Merge(propsOf(baseProps), propsOf(right.Props), propsOf(target.Props))
	props := withMergeinfo(pm.Props, target.Props)

	opts := w.pass.Options.Text
	opts.EOLStyle = props[textmerge.EOLStyleProperty]
	if opts.EOLStyle != "" {
		if _, err := textmerge.EOLFor(opts.EOLStyle, opts.NativeEOL); err != nil {
			w.r.logger.Warn("Ignoring unknown eol style", zap.String("path", tp), zap.String("style", opts.EOLStyle))
			opts.EOLStyle = ""
		}
	}
	opts.Binary = opts.Binary || textmerge.IsBinaryMimeType(props[textmerge.MimeTypeProperty])

	tm, err := textmerge.Merge(textmerge.Input{
		Base:     base,
		Theirs:   right.Content,
		Mine:     target.Content,
		LeftRev:  leftRev,
		RightRev: w.pass.RightRev,
		Options:  opts,
	})
	if err != nil {
		return fmt.Errorf("failed to merge %s: %w", tp, err)
	}

	text := tm.Status.Code()
	if left == nil && bytes.Equal(target.Content, right.Content) {
		text = 'A'
	}
	if text == ' ' && pm.Status == ' ' {
		return nil
	}

	e := target.Clone()
	e.Content = tm.Content
	e.Props = props
	e.TextConflicted = e.TextConflicted || tm.Status == textmerge.StatusConflicted
	e.PropConflicted = e.PropConflicted || pm.Conflicted()
	if err := w.wc.WriteLocal(ctx, tp, e); err != nil {
		return fmt.Errorf("failed to write %s: %w", tp, err)
	}

	for _, sc := range tm.Sidecars {
		if err := w.wc.WriteSidecar(ctx, tp+sc.Suffix, sc.Content, false); err != nil {
			return err
		}
	}
	if pm.Conflicted() {
		prej := joinPath(parentOf(tp), propmerge.PrejName(path.Base(tp), false))
		if err := w.wc.WriteSidecar(ctx, prej, propmerge.Description(pm.Conflicts), true); err != nil {
			return err
		}
	}

	w.notify(tp, notify.MakeStatus(text, pm.Status))
	return nil
}

// mergeDirProps merges the property change of a directory into target.
func (w *walk) mergeDirProps(ctx context.Context, tp string, base, theirs repos.Props, target *wc.Entry) error {
	pm := propmerge.Merge(propsOf(base), propsOf(theirs), propsOf(target.Props))
	if pm.Status == ' ' {
		return nil
	}

	e := target.Clone()
	e.Props = withMergeinfo(pm.Props, target.Props)
	e.PropConflicted = e.PropConflicted || pm.Conflicted()
	if err := w.wc.WriteLocal(ctx, tp, e); err != nil {
		return fmt.Errorf("failed to write %s: %w", tp, err)
	}
	if pm.Conflicted() {
		prej := joinPath(tp, propmerge.PrejName(path.Base(tp), true))
		if err := w.wc.WriteSidecar(ctx, prej, propmerge.Description(pm.Conflicts), true); err != nil {
			return err
		}
	}

	w.notify(tp, notify.MakeStatus(' ', pm.Status))
	return nil
}

// children visits the union of the left and right entries of a directory.
// Entries only the target has are never visited.
func (w *walk) children(ctx context.Context, rel string, left, right *repos.Node) error {
	var names []string
	for _, n := range []*repos.Node{left, right} {
		if n != nil && n.Kind == repos.KindDir {
			names = append(names, n.Children...)
		}
	}
	for _, name := range unionNames(names) {
		if err := w.visit(ctx, joinPath(rel, name)); err != nil {
			return err
		}
	}
	return nil
}

// skipTree skips tp and every path of node's subtree.
func (w *walk) skipTree(ctx context.Context, tp string, node *repos.Node, reason notify.SkipReason) error {
	w.skip(tp, reason)
	if node.Kind != repos.KindDir {
		return nil
	}
	for _, name := range node.Children {
		child, err := w.r.cache.Read(ctx, repos.Join(node.Path, name), w.pass.RightRev)
		if err != nil {
			return err
		}
		if child == nil {
			continue
		}
		if err := w.skipTree(ctx, joinPath(tp, name), child, reason); err != nil {
			return err
		}
	}
	return nil
}

// skipChanged skips a node the change cannot be applied to, together with
// every descendant the change touches. Unchanged subtrees are left alone.
func (w *walk) skipChanged(ctx context.Context, rel string, left, right *repos.Node, reason notify.SkipReason) error {
	changed, err := w.subtreeChanged(ctx, left, right)
	if err != nil || !changed {
		return err
	}
	w.skip(w.targetPath(rel), reason)
	return w.skipChangedBelow(ctx, rel, left, right, reason)
}

func (w *walk) skipChangedBelow(ctx context.Context, rel string, left, right *repos.Node, reason notify.SkipReason) error {
	if left.Kind != repos.KindDir || right.Kind != repos.KindDir {
		return nil
	}
	for _, name := range unionNames(left.Children, right.Children) {
		childRel := joinPath(rel, name)
		cl, err := w.r.cache.Read(ctx, w.sourcePath(childRel), w.pass.LeftRev)
		if err != nil {
			return err
		}
		cr, err := w.r.cache.Read(ctx, w.sourcePath(childRel), w.pass.RightRev)
		if err != nil {
			return err
		}
		if cl == nil || cr == nil || nodeChanged(cl, cr) {
			w.skip(w.targetPath(childRel), reason)
		}
		if cl != nil && cr != nil {
			if err := w.skipChangedBelow(ctx, childRel, cl, cr, reason); err != nil {
				return err
			}
		}
	}
	return nil
}

// subtreeChanged reports whether anything differs between the two subtrees.
func (w *walk) subtreeChanged(ctx context.Context, left, right *repos.Node) (bool, error) {
	if nodeChanged(left, right) {
		return true, nil
	}
	if left.Kind != repos.KindDir {
		return false, nil
	}
	for _, name := range unionNames(left.Children, right.Children) {
		cl, err := w.r.cache.Read(ctx, repos.Join(left.Path, name), w.pass.LeftRev)
		if err != nil {
			return false, err
		}
		cr, err := w.r.cache.Read(ctx, repos.Join(right.Path, name), w.pass.RightRev)
		if err != nil {
			return false, err
		}
		if cl == nil || cr == nil {
			return true, nil
		}
		changed, err := w.subtreeChanged(ctx, cl, cr)
		if err != nil || changed {
			return changed, err
		}
	}
	return false, nil
}

func (w *walk) notify(tp string, status notify.Status) {
	w.r.ledger.Notify(tp, status)
	if status.IsConflict() {
		w.res.Conflicted++
		w.r.logger.Warn("Conflict", zap.String("path", tp), zap.String("status", string(status)))
	}
}

func (w *walk) skip(tp string, reason notify.SkipReason) {
	w.r.ledger.Skip(tp, reason)
	w.res.Skipped++
	w.r.logger.Info("Skipped path", zap.String("path", tp), zap.String("reason", string(reason)))
}

func (w *walk) readTarget(ctx context.Context, tp string) (*wc.Entry, error) {
	e, err := w.wc.ReadLocal(ctx, tp)
	if errors.Is(err, wc.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", tp, err)
	}
	return e, nil
}

// parentLocation returns the repository location a new child of tp's parent
// would track.
func (w *walk) parentLocation(ctx context.Context, tp string) (string, int64, error) {
	if tp == "" {
		return "", 0, nil
	}
	parent, err := w.readTarget(ctx, parentOf(tp))
	if err != nil || parent == nil {
		return "", 0, err
	}
	return repos.Join(parent.URL, path.Base(tp)), parent.Revision, nil
}

func (w *walk) sourcePath(rel string) string {
	return repos.Join(w.pass.Source, rel)
}

func (w *walk) targetPath(rel string) string {
	return joinPath(w.pass.Target, rel)
}

// propsOf returns the properties the merge compares, which exclude mergeinfo.
func propsOf(p repos.Props) repos.Props {
	return p.Without(mergeinfo.Property)
}

// withMergeinfo returns merged with the mergeinfo of original restored.
func withMergeinfo(merged map[string]string, original repos.Props) repos.Props {
	props := repos.Props(merged).Clone()
	delete(props, mergeinfo.Property)
	if v, ok := original[mergeinfo.Property]; ok {
		props[mergeinfo.Property] = v
	}
	return props
}

func nodeChanged(a, b *repos.Node) bool {
	return a.Kind != b.Kind ||
		a.Origin != b.Origin ||
		!bytes.Equal(a.Content, b.Content) ||
		!propsOf(a.Props).Equal(propsOf(b.Props))
}

func fileModified(left *repos.Node, target *wc.Entry) bool {
	return localSchedule(target) ||
		!bytes.Equal(left.Content, target.Content) ||
		!propsOf(left.Props).Equal(propsOf(target.Props))
}

func dirModified(left *repos.Node, target *wc.Entry) bool {
	return localSchedule(target) || !propsOf(left.Props).Equal(propsOf(target.Props))
}

func localSchedule(e *wc.Entry) bool {
	return e.Status == wc.StatusAdded || e.Status == wc.StatusReplaced || e.TextConflicted || e.PropConflicted
}

func unionNames(lists ...[]string) []string {
	names := lo.Uniq(lo.Flatten(lists))
	sort.Strings(names)
	return names
}

func cleanPath(p string) string {
	p = path.Clean("/" + p)
	return p[1:]
}

func parentOf(p string) string {
	dir := path.Dir(p)
	if dir == "." || dir == "/" {
		return ""
	}
	return dir
}

func joinPath(dir, name string) string {
	if dir == "" {
		return name
	}
	if name == "" {
		return dir
	}
	return dir + "/" + name
}
