package reconcile

import (
	"context"
	"testing"

	"merge-engine/core/notify"
	"merge-engine/core/repos"
	"merge-engine/core/wc"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	muText    = "This is the file 'mu'.\n"
	rhoText   = "This is the file 'rho'.\n"
	alphaText = "This is the file 'alpha'.\n"
)

type fixture struct {
	repo   *repos.Memory
	fs     afero.Fs
	wc     *wc.Disk
	ledger *notify.Ledger
	rec    *Reconciler
}

// setup builds /A at r1, copies it to /branch at r2, commits each extra change
// set as r3, r4, ..., and checks /branch@2 out at /wc.
func setup(t *testing.T, changes ...[]repos.Change) *fixture {
	t.Helper()
	ctx := context.Background()

	repo := repos.NewMemory()
	_, err := repo.Commit(ctx, "import", []repos.Change{
		{Op: repos.OpAdd, Path: "/A", Kind: repos.KindDir},
		{Op: repos.OpAdd, Path: "/A/mu", Kind: repos.KindFile, Content: []byte(muText)},
		{Op: repos.OpAdd, Path: "/A/B", Kind: repos.KindDir},
		{Op: repos.OpAdd, Path: "/A/B/lambda", Kind: repos.KindFile, Content: []byte("lambda\n"), Props: repos.Props{"foo": "foo_val"}},
		{Op: repos.OpAdd, Path: "/A/B/E", Kind: repos.KindDir},
		{Op: repos.OpAdd, Path: "/A/B/E/alpha", Kind: repos.KindFile, Content: []byte(alphaText)},
		{Op: repos.OpAdd, Path: "/A/B/E/beta", Kind: repos.KindFile, Content: []byte("beta\n")},
		{Op: repos.OpAdd, Path: "/A/D", Kind: repos.KindDir},
		{Op: repos.OpAdd, Path: "/A/D/G", Kind: repos.KindDir},
		{Op: repos.OpAdd, Path: "/A/D/G/rho", Kind: repos.KindFile, Content: []byte(rhoText)},
	})
	require.NoError(t, err)
	_, err = repo.Commit(ctx, "branch", []repos.Change{
		{Op: repos.OpCopy, Path: "/branch", CopyFrom: &repos.Location{Path: "/A", Rev: 1}},
	})
	require.NoError(t, err)
	for _, cs := range changes {
		_, err := repo.Commit(ctx, "change", cs)
		require.NoError(t, err)
	}

	fsys := afero.NewMemMapFs()
	d, err := wc.Checkout(ctx, fsys, "/wc", repo, "/branch", 2)
	require.NoError(t, err)

	ledger := notify.NewLedger()
	return &fixture{
		repo:   repo,
		fs:     fsys,
		wc:     d,
		ledger: ledger,
		rec:    New(repo, d, ledger, zap.NewNop()),
	}
}

func (f *fixture) run(t *testing.T, left, right int64, opts Options) *Result {
	t.Helper()
	res, err := f.rec.Run(context.Background(), Pass{Source: "/A", LeftRev: left, RightRev: right, Options: opts})
	require.NoError(t, err)
	return res
}

func (f *fixture) read(t *testing.T, p string) *wc.Entry {
	t.Helper()
	e, err := f.wc.ReadLocal(context.Background(), p)
	require.NoError(t, err)
	return e
}

func (f *fixture) file(t *testing.T, p string) string {
	t.Helper()
	b, err := afero.ReadFile(f.fs, "/wc/"+p)
	require.NoError(t, err)
	return string(b)
}

func appendRho(line string) []repos.Change {
	return []repos.Change{{Op: repos.OpModify, Path: "/A/D/G/rho", Content: []byte(rhoText + line)}}
}

func notes(pairs ...string) []notify.Notification {
	var out []notify.Notification
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, notify.Notification{Status: notify.Status(pairs[i]), Path: pairs[i+1]})
	}
	return out
}

// TestClassify tests the mapping of presences to cases.
func TestClassify(t *testing.T) {
	tests := []struct {
		left, right, target bool
		want                Case
	}{
		{false, false, false, CaseNone},
		{false, false, true, CaseTargetOnly},
		{false, true, false, CaseAdd},
		{false, true, true, CaseAddOverTarget},
		{true, false, false, CaseDeleteAbsent},
		{true, false, true, CaseDelete},
		{true, true, false, CaseChangeAbsent},
		{true, true, true, CaseChange},
	}

	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.left, tt.right, tt.target))
		})
	}
}

// TestRun_TextMerge tests the U, G and C outcomes for a modified file.
func TestRun_TextMerge(t *testing.T) {
	t.Run("Update", func(t *testing.T) {
		f := setup(t, appendRho("new line\n"))
		res := f.run(t, 2, 3, Options{})

		assert.Equal(t, notes("U ", "D/G/rho"), f.ledger.Notifications())
		assert.Equal(t, 1, res.Notified)
		assert.Equal(t, rhoText+"new line\n", f.file(t, "D/G/rho"))
	})

	t.Run("Merge", func(t *testing.T) {
		f := setup(t, appendRho("new line\n"))
		require.NoError(t, afero.WriteFile(f.fs, "/wc/D/G/rho", []byte("local first\n"+rhoText), 0o644))
		f.run(t, 2, 3, Options{})

		assert.Equal(t, notes("G ", "D/G/rho"), f.ledger.Notifications())
		assert.Equal(t, "local first\n"+rhoText+"new line\n", f.file(t, "D/G/rho"))
	})

	t.Run("Conflict", func(t *testing.T) {
		f := setup(t, appendRho("theirs\n"))
		require.NoError(t, afero.WriteFile(f.fs, "/wc/D/G/rho", []byte(rhoText+"mine\n"), 0o644))
		res := f.run(t, 2, 3, Options{})

		assert.Equal(t, notes("C ", "D/G/rho"), f.ledger.Notifications())
		assert.Equal(t, 1, res.Conflicted)
		assert.Contains(t, f.file(t, "D/G/rho"), "<<<<<<< .working\nmine\n=======\ntheirs\n>>>>>>> .merge-right.r3\n")
		assert.Equal(t, rhoText, f.file(t, "D/G/rho.merge-left.r2"))
		assert.Equal(t, rhoText+"theirs\n", f.file(t, "D/G/rho.merge-right.r3"))
		assert.Equal(t, rhoText+"mine\n", f.file(t, "D/G/rho.working"))
		assert.True(t, f.read(t, "D/G/rho").TextConflicted)
	})
}

// TestRun_Reverse tests that a reverse pass undoes a forward one.
func TestRun_Reverse(t *testing.T) {
	f := setup(t, appendRho("new line\n"))
	f.run(t, 2, 3, Options{})
	f.run(t, 3, 2, Options{})

	assert.Equal(t, notes("U ", "D/G/rho", "U ", "D/G/rho"), f.ledger.Notifications())
	assert.Equal(t, rhoText, f.file(t, "D/G/rho"))
}

// TestRun_Properties tests file and directory property merges.
func TestRun_Properties(t *testing.T) {
	t.Run("FileConflict", func(t *testing.T) {
		f := setup(t, []repos.Change{
			{Op: repos.OpModify, Path: "/A/D", Props: repos.Props{"x": "y"}},
			{Op: repos.OpModify, Path: "/A/B/lambda", Props: repos.Props{"foo": "mod_foo"}},
		})

		lambda := f.read(t, "B/lambda")
		lambda.Props = repos.Props{}
		require.NoError(t, f.wc.WriteLocal(context.Background(), "B/lambda", lambda))

		res := f.run(t, 2, 3, Options{})
		assert.Equal(t, notes(" C", "B/lambda", " U", "D"), f.ledger.Notifications())
		assert.Equal(t, 1, res.Conflicted)

		assert.Equal(t, "Trying to change property 'foo' from 'foo_val' to 'mod_foo',\nbut the property does not exist.\n",
			f.file(t, "B/lambda.prej"))
		assert.True(t, f.read(t, "B/lambda").PropConflicted)
		assert.Equal(t, repos.Props{"x": "y"}, f.read(t, "D").Props)
	})

	t.Run("DirConflict", func(t *testing.T) {
		f := setup(t, []repos.Change{
			{Op: repos.OpModify, Path: "/A/B/E", Props: repos.Props{"p": "theirs"}},
		})

		e := f.read(t, "B/E")
		e.Props = repos.Props{"p": "local"}
		require.NoError(t, f.wc.WriteLocal(context.Background(), "B/E", e))

		res := f.run(t, 2, 3, Options{})
		assert.Equal(t, notes(" C", "B/E"), f.ledger.Notifications())
		assert.Equal(t, 1, res.Conflicted)

		assert.Equal(t, "Trying to add new property 'p' with value 'theirs',\nbut property already exists with value 'local'.\n",
			f.file(t, "B/E/dir_conflicts.prej"))
		got := f.read(t, "B/E")
		assert.True(t, got.PropConflicted)
		assert.Equal(t, repos.Props{"p": "local"}, got.Props)
	})
}

// TestRun_KeepsTargetMergeinfo tests that the target's mergeinfo survives a property merge.
func TestRun_KeepsTargetMergeinfo(t *testing.T) {
	f := setup(t, []repos.Change{
		{Op: repos.OpModify, Path: "/A/D", Props: repos.Props{"x": "y", "svn:mergeinfo": "/elsewhere:5"}},
	})

	d := f.read(t, "D")
	d.Props = repos.Props{"svn:mergeinfo": "/A/D:1-2"}
	require.NoError(t, f.wc.WriteLocal(context.Background(), "D", d))

	f.run(t, 2, 3, Options{})
	assert.Equal(t, repos.Props{"x": "y", "svn:mergeinfo": "/A/D:1-2"}, f.read(t, "D").Props)
}

// TestRun_Add tests additions with history.
func TestRun_Add(t *testing.T) {
	f := setup(t, []repos.Change{
		{Op: repos.OpAdd, Path: "/A/D/H", Kind: repos.KindDir, Props: repos.Props{"svn:mergeinfo": "/x:1"}},
		{Op: repos.OpAdd, Path: "/A/D/H/chi", Kind: repos.KindFile, Content: []byte("chi\n")},
	})
	f.run(t, 2, 3, Options{})

	assert.Equal(t, notes("A ", "D/H", "A ", "D/H/chi"), f.ledger.Notifications())

	h := f.read(t, "D/H")
	assert.Equal(t, wc.StatusAdded, h.Status)
	assert.Equal(t, &repos.Location{Path: "/A/D/H", Rev: 3}, h.CopyFrom)
	assert.Equal(t, "/branch/D/H", h.URL)
	assert.Empty(t, h.Props)

	chi := f.read(t, "D/H/chi")
	assert.Equal(t, wc.StatusAdded, chi.Status)
	assert.Nil(t, chi.CopyFrom)
	assert.Equal(t, "chi\n", f.file(t, "D/H/chi"))
}

// TestRun_AddObstructed tests that unversioned items block additions.
func TestRun_AddObstructed(t *testing.T) {
	f := setup(t, []repos.Change{
		{Op: repos.OpAdd, Path: "/A/D/H", Kind: repos.KindDir},
		{Op: repos.OpAdd, Path: "/A/D/H/chi", Kind: repos.KindFile, Content: []byte("chi\n")},
	})
	require.NoError(t, afero.WriteFile(f.fs, "/wc/D/H", []byte("in the way"), 0o644))

	res := f.run(t, 2, 3, Options{})
	assert.Empty(t, f.ledger.Notifications())
	assert.Equal(t, []string{"D/H", "D/H/chi"}, f.ledger.Skipped())
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, "in the way", f.file(t, "D/H"))
}

// TestRun_AddOverVersioned tests additions onto an existing versioned file.
func TestRun_AddOverVersioned(t *testing.T) {
	add := []repos.Change{{Op: repos.OpAdd, Path: "/A/new", Kind: repos.KindFile, Content: []byte("new\n")}}

	t.Run("Different", func(t *testing.T) {
		f := setup(t, add)
		require.NoError(t, f.wc.WriteLocal(context.Background(), "new", &wc.Entry{Kind: repos.KindFile, Content: []byte("mine\n"), Status: wc.StatusAdded}))
		f.run(t, 2, 3, Options{})

		assert.Equal(t, notes("C ", "new"), f.ledger.Notifications())
		assert.Equal(t, "", f.file(t, "new.merge-left.r0"))
		assert.Equal(t, "mine\n", f.file(t, "new.working"))
	})

	t.Run("Identical", func(t *testing.T) {
		f := setup(t, add)
		require.NoError(t, f.wc.WriteLocal(context.Background(), "new", &wc.Entry{Kind: repos.KindFile, Content: []byte("new\n"), Status: wc.StatusAdded}))
		f.run(t, 2, 3, Options{})

		assert.Equal(t, notes("A ", "new"), f.ledger.Notifications())
	})
}

// TestRun_Delete tests directory deletes with and without local modifications.
func TestRun_Delete(t *testing.T) {
	remove := []repos.Change{{Op: repos.OpDelete, Path: "/A/B/E"}}
	fullDelete := notes("D ", "B/E", "D ", "B/E/alpha", "D ", "B/E/beta", "D ", "B/E")

	t.Run("Clean", func(t *testing.T) {
		f := setup(t, remove)
		f.run(t, 2, 3, Options{})

		assert.Equal(t, fullDelete, f.ledger.Notifications())
		assert.Equal(t, notify.Deleted, f.ledger.Final()["B/E"])
		assert.Equal(t, wc.StatusDeleted, f.read(t, "B/E").Status)
		exists, _ := afero.Exists(f.fs, "/wc/B/E")
		assert.False(t, exists)
	})

	t.Run("LocalPropsSkip", func(t *testing.T) {
		f := setup(t, remove)
		e := f.read(t, "B/E")
		e.Props = repos.Props{"foo": "local"}
		require.NoError(t, f.wc.WriteLocal(context.Background(), "B/E", e))

		f.run(t, 2, 3, Options{})
		assert.Empty(t, f.ledger.Notifications())
		assert.Equal(t, []notify.Skip{{Path: "B/E", Reason: notify.SkipLocalMods}}, f.ledger.Skips())
		assert.Equal(t, wc.StatusNormal, f.read(t, "B/E/alpha").Status)
	})

	t.Run("LocalPropsForce", func(t *testing.T) {
		f := setup(t, remove)
		e := f.read(t, "B/E")
		e.Props = repos.Props{"foo": "local"}
		require.NoError(t, f.wc.WriteLocal(context.Background(), "B/E", e))

		f.run(t, 2, 3, Options{Force: true})
		assert.Equal(t, fullDelete, f.ledger.Notifications())
		assert.Empty(t, f.ledger.Skipped())
	})

	t.Run("ModifiedChild", func(t *testing.T) {
		f := setup(t, remove)
		require.NoError(t, afero.WriteFile(f.fs, "/wc/B/E/alpha", []byte("local\n"), 0o644))

		f.run(t, 2, 3, Options{})
		assert.Equal(t, notes("D ", "B/E/beta"), f.ledger.Notifications())
		assert.Equal(t, []string{"B/E", "B/E/alpha"}, f.ledger.Skipped())
		assert.NotContains(t, f.ledger.Final(), "B/E")
		assert.Equal(t, 1, f.ledger.Summary().Deleted)
		assert.Equal(t, wc.StatusNormal, f.read(t, "B/E").Status)
		assert.Equal(t, "local\n", f.file(t, "B/E/alpha"))
		assert.Equal(t, wc.StatusDeleted, f.read(t, "B/E/beta").Status)
	})

	t.Run("UnversionedChild", func(t *testing.T) {
		f := setup(t, remove)
		require.NoError(t, afero.WriteFile(f.fs, "/wc/B/E/extra", []byte("x"), 0o644))

		f.run(t, 2, 3, Options{})
		assert.Equal(t, []notify.Skip{
			{Path: "B/E", Reason: notify.SkipLocalMods},
			{Path: "B/E/extra", Reason: notify.SkipObstruction},
		}, f.ledger.Skips())
	})
}

// TestRun_DeleteDryRun tests that a dry run reports a directory delete once
// and leaves the working copy alone.
func TestRun_DeleteDryRun(t *testing.T) {
	remove := []repos.Change{{Op: repos.OpDelete, Path: "/A/B/E"}}

	t.Run("Clean", func(t *testing.T) {
		f := setup(t, remove)
		f.run(t, 2, 3, Options{DryRun: true})

		assert.Equal(t, notes("D ", "B/E"), f.ledger.Notifications())
		assert.Equal(t, wc.StatusNormal, f.read(t, "B/E").Status)
		assert.Equal(t, alphaText, f.file(t, "B/E/alpha"))
	})

	t.Run("ModifiedChild", func(t *testing.T) {
		f := setup(t, remove)
		require.NoError(t, afero.WriteFile(f.fs, "/wc/B/E/alpha", []byte("local\n"), 0o644))

		f.run(t, 2, 3, Options{DryRun: true})
		assert.Empty(t, f.ledger.Notifications())
		assert.Equal(t, []string{"B/E"}, f.ledger.Skipped())
	})

	t.Run("ModifiedChildForce", func(t *testing.T) {
		f := setup(t, remove)
		require.NoError(t, afero.WriteFile(f.fs, "/wc/B/E/alpha", []byte("local\n"), 0o644))

		f.run(t, 2, 3, Options{DryRun: true, Force: true})
		assert.Equal(t, notes("D ", "B/E"), f.ledger.Notifications())
		assert.Equal(t, "local\n", f.file(t, "B/E/alpha"))
	})
}

// TestRun_DryRunOverlay tests that consecutive dry-run passes see each other.
func TestRun_DryRunOverlay(t *testing.T) {
	f := setup(t,
		[]repos.Change{
			{Op: repos.OpAdd, Path: "/A/D/H", Kind: repos.KindDir},
			{Op: repos.OpAdd, Path: "/A/D/H/chi", Kind: repos.KindFile, Content: []byte("chi\n")},
		},
		[]repos.Change{{Op: repos.OpModify, Path: "/A/D/H/chi", Content: []byte("chi\nmore\n")}},
	)

	f.run(t, 2, 3, Options{DryRun: true})
	f.run(t, 3, 4, Options{DryRun: true})

	assert.Equal(t, notes("A ", "D/H", "A ", "D/H/chi", "U ", "D/H/chi"), f.ledger.Notifications())
	exists, _ := afero.Exists(f.fs, "/wc/D/H")
	assert.False(t, exists)

	versioned, err := f.wc.Versioned(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, versioned, "D/H")
}

// TestRun_Missing tests changes aimed at paths the target lost or scheduled for deletion.
func TestRun_Missing(t *testing.T) {
	t.Run("MissingDir", func(t *testing.T) {
		f := setup(t, appendRho("x\n"))
		require.NoError(t, f.fs.RemoveAll("/wc/D/G"))

		f.run(t, 2, 3, Options{})
		assert.Empty(t, f.ledger.Notifications())
		assert.Equal(t, []notify.Skip{
			{Path: "D/G", Reason: notify.SkipMissing},
			{Path: "D/G/rho", Reason: notify.SkipMissing},
		}, f.ledger.Skips())
	})

	t.Run("ScheduledForDeletion", func(t *testing.T) {
		f := setup(t, []repos.Change{{Op: repos.OpModify, Path: "/A/mu", Content: []byte(muText + "x\n")}})
		require.NoError(t, f.wc.RemoveLocal(context.Background(), "mu"))

		f.run(t, 2, 3, Options{})
		assert.Empty(t, f.ledger.Notifications())
		assert.Equal(t, []notify.Skip{{Path: "mu", Reason: notify.SkipDeletedInTarget}}, f.ledger.Skips())
	})

	t.Run("UnchangedMissingIgnored", func(t *testing.T) {
		f := setup(t, appendRho("x\n"))
		require.NoError(t, f.fs.RemoveAll("/wc/B"))

		f.run(t, 2, 3, Options{})
		assert.Equal(t, notes("U ", "D/G/rho"), f.ledger.Notifications())
		assert.Empty(t, f.ledger.Skipped())
	})

	t.Run("DeletedParent", func(t *testing.T) {
		f := setup(t, []repos.Change{{Op: repos.OpDelete, Path: "/A/D/G/rho"}})
		require.NoError(t, f.wc.RemoveLocal(context.Background(), "D"))

		f.run(t, 2, 3, Options{})
		assert.Empty(t, f.ledger.Notifications())
		assert.Equal(t, []string{"D", "D/G/rho"}, f.ledger.Skipped())
	})

	t.Run("AlreadyDeleted", func(t *testing.T) {
		f := setup(t, []repos.Change{{Op: repos.OpDelete, Path: "/A/mu"}})
		require.NoError(t, f.wc.RemoveLocal(context.Background(), "mu"))

		res := f.run(t, 2, 3, Options{})
		assert.Empty(t, f.ledger.Notifications())
		assert.Zero(t, res.Skipped)
	})
}

// TestRun_Replace tests that unrelated nodes are replaced unless ancestry is ignored.
func TestRun_Replace(t *testing.T) {
	changes := [][]repos.Change{
		{{Op: repos.OpDelete, Path: "/A/mu"}},
		{{Op: repos.OpAdd, Path: "/A/mu", Kind: repos.KindFile, Content: []byte("new mu\n")}},
	}

	t.Run("File", func(t *testing.T) {
		f := setup(t, changes...)
		f.run(t, 2, 4, Options{})

		assert.Equal(t, notes("D ", "mu", "A ", "mu"), f.ledger.Notifications())
		assert.Equal(t, notify.Replaced, f.ledger.Final()["mu"])

		mu := f.read(t, "mu")
		assert.Equal(t, wc.StatusReplaced, mu.Status)
		assert.Equal(t, &repos.Location{Path: "/A/mu", Rev: 4}, mu.CopyFrom)
		assert.Equal(t, "new mu\n", f.file(t, "mu"))
	})

	t.Run("IgnoreAncestry", func(t *testing.T) {
		f := setup(t, changes...)
		f.run(t, 2, 4, Options{IgnoreAncestry: true})

		assert.Equal(t, notes("U ", "mu"), f.ledger.Notifications())
		assert.Equal(t, wc.StatusNormal, f.read(t, "mu").Status)
	})

	t.Run("Directory", func(t *testing.T) {
		f := setup(t,
			[]repos.Change{{Op: repos.OpDelete, Path: "/A/D/G"}},
			[]repos.Change{
				{Op: repos.OpAdd, Path: "/A/D/G", Kind: repos.KindDir},
				{Op: repos.OpAdd, Path: "/A/D/G/pi", Kind: repos.KindFile, Content: []byte("pi\n")},
			},
		)
		f.run(t, 2, 4, Options{})

		assert.Equal(t, notes("D ", "D/G", "D ", "D/G/rho", "D ", "D/G", "A ", "D/G", "A ", "D/G/pi"), f.ledger.Notifications())
		assert.Equal(t, notify.Replaced, f.ledger.Final()["D/G"])
		assert.Equal(t, wc.StatusReplaced, f.read(t, "D/G").Status)
		assert.Equal(t, wc.StatusAdded, f.read(t, "D/G/pi").Status)
	})
}

// TestRun_Exclude tests that excluded subtrees are not entered.
func TestRun_Exclude(t *testing.T) {
	f := setup(t, appendRho("x\n"))
	_, err := f.rec.Run(context.Background(), Pass{Source: "/A", LeftRev: 2, RightRev: 3, Exclude: []string{"D"}})
	require.NoError(t, err)
	assert.Empty(t, f.ledger.Notifications())
	assert.Equal(t, rhoText, f.file(t, "D/G/rho"))
}

// TestRun_SubtreeTarget tests a pass rooted below the working-copy root.
func TestRun_SubtreeTarget(t *testing.T) {
	f := setup(t, appendRho("x\n"))
	_, err := f.rec.Run(context.Background(), Pass{Source: "/A/D", LeftRev: 2, RightRev: 3, Target: "D"})
	require.NoError(t, err)
	assert.Equal(t, notes("U ", "D/G/rho"), f.ledger.Notifications())
}

// TestRun_Canceled tests that a canceled context stops the walk.
func TestRun_Canceled(t *testing.T) {
	f := setup(t, appendRho("x\n"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.rec.Run(ctx, Pass{Source: "/A", LeftRev: 2, RightRev: 3})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, rhoText, f.file(t, "D/G/rho"))
}
