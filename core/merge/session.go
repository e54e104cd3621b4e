package merge

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"merge-engine/core/mergeinfo"
	"merge-engine/core/notify"
	"merge-engine/core/rangelist"
	"merge-engine/core/reconcile"
	"merge-engine/core/repos"
	"merge-engine/core/textmerge"
	"merge-engine/core/wc"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

// Request describes one merge invocation.
type Request struct {
	// Target is the working-copy path to merge into. Empty means the root.
	Target string `json:"target"`

	// Source is the repository path to merge from.
	Source string `json:"source"`

	Range RevisionRange `json:"range"`

	// IgnoreAncestry skips the relatedness checks.
	IgnoreAncestry bool `json:"ignore_ancestry"`

	// RecordOnly updates mergeinfo without touching content.
	RecordOnly bool `json:"record_only"`

	// DryRun reports what would happen and changes nothing.
	DryRun bool `json:"dry_run"`

	// Force deletes locally modified nodes.
	Force bool `json:"force"`

	Text textmerge.Options `json:"text"`
}

// Report is the outcome of a merge.
type Report struct {
	Notifications []notify.Notification `json:"notifications"`
	Skipped       []notify.Skip         `json:"skipped"`
	Summary       notify.Summary        `json:"summary"`

	// Mergeinfo is the target's explicit mergeinfo after the merge.
	Mergeinfo string `json:"mergeinfo"`

	// Passes is the number of reconciler passes run.
	Passes int `json:"passes"`
}

// Session merges into one working copy.
type Session struct {
	repo     repos.Repository
	wc       wc.WorkingCopy
	logger   *zap.Logger
	cacheTTL time.Duration
	onNotify func(notify.Notification)
	onSkip   func(notify.Skip)
}

// Option configures a Session.
type Option func(*Session)

// WithObserver streams notifications and skips as they happen.
func WithObserver(onNotify func(notify.Notification), onSkip func(notify.Skip)) Option {
	return func(s *Session) {
		s.onNotify = onNotify
		s.onSkip = onSkip
	}
}

// WithCacheTTL sets how long repository reads are reused within a merge.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Session) {
		s.cacheTTL = ttl
	}
}

// New creates a Session.
func New(repo repos.Repository, target wc.WorkingCopy, logger *zap.Logger, opts ...Option) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		repo:     repo,
		wc:       target,
		logger:   logger,
		cacheTTL: reconcile.DefaultCacheTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// plan is the work for one merge root.
type plan struct {
	root    string
	source  string
	needed  rangelist.Rangelist
	exclude []string
}

// Merge applies req to the working copy. The working-copy lock is held for
// the whole call.
func (s *Session) Merge(ctx context.Context, req Request) (report *Report, err error) {
	target := cleanPath(req.Target)
	source := repos.Clean(req.Source)
	log := s.logger.With(
		zap.String("source", source),
		zap.String("target", target),
		zap.String("range", req.Range.String()))

	// 1. Lock
	if err := s.wc.Lock(ctx); err != nil {
		if errors.Is(err, wc.ErrLockContention) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to lock working copy: %w", err)
	}
	defer func() {
		if uerr := s.wc.Unlock(ctx); uerr != nil {
			err = multierror.Append(err, fmt.Errorf("failed to unlock working copy: %w", uerr))
			report = nil
		}
	}()

	// 2. Load mergeinfo
	if err := s.checkTarget(ctx, target); err != nil {
		return nil, err
	}
	store, err := LoadStore(ctx, s.wc)
	if err != nil {
		return nil, err
	}

	ledger := notify.NewLedger()
	if s.onNotify != nil {
		ledger.OnNotify(s.onNotify)
	}
	if s.onSkip != nil {
		ledger.OnSkip(s.onSkip)
	}

	// 3. Resolve the range
	if req.Range.IsNoop() {
		log.Debug("Empty revision range")
		return s.report(ledger, store, target, 0), nil
	}
	if err := s.checkRange(ctx, source, req); err != nil {
		return nil, err
	}

	// 4. Plan the merge roots
	plans := s.plan(store, target, source, req.Range)
	log.Info("Merging", zap.Int("roots", len(plans)), zap.Bool("dry_run", req.DryRun), zap.Bool("record_only", req.RecordOnly))

	rec := reconcile.New(s.repo, s.wc, ledger, s.logger, reconcile.WithCacheTTL(s.cacheTTL))
	opts := reconcile.Options{
		DryRun:         req.DryRun,
		Force:          req.Force,
		IgnoreAncestry: req.IgnoreAncestry,
		Text:           req.Text,
	}

	// 5. Run the passes and record what applied cleanly
	passes := 0
	for _, p := range plans {
		for _, r := range orderRanges(p.needed, req.Range.Forward()) {
			pass := reconcile.Pass{
				Source:  p.source,
				LeftRev: r.Start, RightRev: r.End,
				Target:  p.root,
				Exclude: p.exclude,
				Options: opts,
			}
			if !req.Range.Forward() {
				pass.LeftRev, pass.RightRev = r.End, r.Start
			}

			skipped := 0
			if !req.RecordOnly {
				res, err := rec.Run(ctx, pass)
				if err != nil {
					return nil, fmt.Errorf("merge %s@%d:%d into %q: %w", p.source, pass.LeftRev, pass.RightRev, p.root, err)
				}
				skipped = res.Skipped
				passes++
			}

			if req.DryRun || skipped > 0 {
				if skipped > 0 {
					log.Info("Not recording mergeinfo for pass with skips",
						zap.String("root", p.root), zap.String("revisions", rangelist.Rangelist{r}.String()))
				}
				continue
			}
			if err := s.record(ctx, store, p, r, req.Range.Forward()); err != nil {
				return nil, err
			}
		}
	}

	report = s.report(ledger, store, target, passes)
	log.Info("Merge complete",
		zap.Int("notifications", len(report.Notifications)),
		zap.Int("skipped", report.Summary.Skipped),
		zap.Int("conflicted", report.Summary.Conflicted))
	return report, nil
}

func (s *Session) checkTarget(ctx context.Context, target string) error {
	e, err := s.wc.ReadLocal(ctx, target)
	if errors.Is(err, wc.ErrNotFound) {
		return fmt.Errorf("%q: %w", target, ErrNotVersioned)
	}
	if err != nil {
		return fmt.Errorf("failed to read merge target: %w", err)
	}
	switch e.Status {
	case wc.StatusUnversioned, wc.StatusDeleted, wc.StatusMissing:
		return fmt.Errorf("%q is %s: %w", target, e.Status, ErrNotVersioned)
	}
	return nil
}

// LoadStore reads the explicit mergeinfo of every versioned node of w.
func LoadStore(ctx context.Context, w wc.WorkingCopy) (*mergeinfo.Store, error) {
	paths, err := w.Versioned(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list versioned nodes: %w", err)
	}

	values := make(map[string]*string, len(paths))
	for _, p := range paths {
		e, err := w.ReadLocal(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %q: %w", p, err)
		}
		if v, ok := e.Props[mergeinfo.Property]; ok {
			values[p] = &v
		} else {
			values[p] = nil
		}
	}

	store, err := mergeinfo.Load(values)
	if err != nil {
		return nil, fmt.Errorf("failed to load mergeinfo: %w", err)
	}
	return store, nil
}

// checkRange verifies both ends exist and, unless ancestry is ignored, belong
// to one line of history. A revision 0 end stands for the empty tree.
func (s *Session) checkRange(ctx context.Context, source string, req Request) error {
	youngest, err := s.repo.Youngest(ctx)
	if err != nil {
		return fmt.Errorf("failed to read youngest revision: %w", err)
	}
	if req.Range.High() > youngest {
		return fmt.Errorf("revision %d: %w", req.Range.High(), ErrNoSuchRevision)
	}
	if req.IgnoreAncestry {
		return nil
	}

	mismatch := func(reason string) error {
		return &AncestryMismatchError{Source: source, Left: req.Range.Start, Right: req.Range.End, Reason: reason}
	}

	high, err := s.read(ctx, source, req.Range.High())
	if err != nil {
		return err
	}
	if high == nil {
		return mismatch(fmt.Sprintf("%s does not exist in r%d", source, req.Range.High()))
	}
	if req.Range.Low() == 0 {
		return nil
	}

	low, err := s.read(ctx, source, req.Range.Low())
	if err != nil {
		return err
	}
	if low == nil {
		return mismatch(fmt.Sprintf("%s does not exist in r%d", source, req.Range.Low()))
	}
	if !repos.Related(low, high) {
		return mismatch(fmt.Sprintf("origins %s and %s differ", low.Origin, high.Origin))
	}
	return nil
}

// plan returns the target and every descendant with explicit mergeinfo, each
// with the revisions it still needs.
func (s *Session) plan(store *mergeinfo.Store, target, source string, rr RevisionRange) []plan {
	roots := []string{target}
	for _, p := range store.Paths() {
		if p != target && within(p, target) {
			roots = append(roots, p)
		}
	}
	sort.Strings(roots)

	candidate := rr.Revisions()
	var plans []plan
	for _, root := range roots {
		src := repos.Join(source, relative(target, root))

		var needed rangelist.Rangelist
		if rr.Forward() {
			needed = store.AlreadyMerged(root, src, candidate)
		} else {
			needed = store.Unmergeable(root, src, candidate)
		}
		if needed.Empty() {
			s.logger.Debug("Nothing to merge", zap.String("root", root))
			continue
		}

		var exclude []string
		for _, other := range roots {
			if other != root && within(other, root) {
				exclude = append(exclude, other)
			}
		}
		plans = append(plans, plan{root: root, source: src, needed: needed, exclude: exclude})
	}
	return plans
}

// record updates the root's mergeinfo for one applied range and writes the
// changed nodes back.
func (s *Session) record(ctx context.Context, store *mergeinfo.Store, p plan, r rangelist.Range, forward bool) error {
	rl := rangelist.Rangelist{r}
	if forward {
		store.MergeIn(p.root, p.source, rl)
		store.Elide(p.root)
	} else {
		store.RemoveRanges(p.root, p.source, rl)
	}

	for _, c := range store.Dirty() {
		e, err := s.wc.ReadLocal(ctx, c.Path)
		if err != nil {
			return fmt.Errorf("failed to read %q for mergeinfo: %w", c.Path, err)
		}
		if e.Status == wc.StatusMissing || e.Status == wc.StatusDeleted {
			s.logger.Warn("Not writing mergeinfo to absent node", zap.String("path", c.Path))
			continue
		}
		e.Props = e.Props.Clone()
		if c.Deleted {
			delete(e.Props, mergeinfo.Property)
		} else {
			e.Props[mergeinfo.Property] = c.Value
		}
		e.Children = nil
		if err := s.wc.WriteLocal(ctx, c.Path, e); err != nil {
			return fmt.Errorf("failed to write mergeinfo of %q: %w", c.Path, err)
		}
	}
	store.MarkClean()
	return nil
}

func (s *Session) report(ledger *notify.Ledger, store *mergeinfo.Store, target string, passes int) *Report {
	explicit, _ := store.Explicit(target)
	return &Report{
		Notifications: ledger.Notifications(),
		Skipped:       ledger.Skips(),
		Summary:       ledger.Summary(),
		Mergeinfo:     explicit.String(),
		Passes:        passes,
	}
}

func (s *Session) read(ctx context.Context, p string, rev int64) (*repos.Node, error) {
	node, err := s.repo.Read(ctx, p, rev)
	if errors.Is(err, repos.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s@%d: %w", p, rev, err)
	}
	return node, nil
}

// orderRanges returns the ranges in application order: ascending for forward
// merges, descending for reverse ones.
func orderRanges(rl rangelist.Rangelist, forward bool) []rangelist.Range {
	out := append([]rangelist.Range(nil), rl...)
	if !forward {
		sort.Slice(out, func(i, j int) bool { return out[i].Start > out[j].Start })
	}
	return out
}

func cleanPath(p string) string {
	return path.Clean("/" + p)[1:]
}

func within(p, base string) bool {
	return base == "" || p == base || strings.HasPrefix(p, base+"/")
}

func relative(base, p string) string {
	if base == "" {
		return p
	}
	return strings.TrimPrefix(strings.TrimPrefix(p, base), "/")
}
