package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"merge-engine/core/config"
	"merge-engine/core/merge"
	"merge-engine/core/notify"
	"merge-engine/core/repos"
	"merge-engine/core/textmerge"
	"merge-engine/core/wc"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// mergeCmd represents the merge command
var mergeCmd = &cobra.Command{
	Use:   "merge (-r N:M | -c [-]N) SOURCE [TARGET]",
	Short: "Merge a revision range of SOURCE into the working copy",
	Long: `Applies the changes SOURCE underwent between two revisions to TARGET, a path
inside the configured working copy, and records the merge in svn:mergeinfo.
SOURCE is a repository path such as /trunk or ^/trunk.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, logg, err := loadRuntime(cmd)
		if err != nil {
			return err
		}
		defer logg.Sync()

		req, err := mergeRequest(cmd, cfg.Merge, args)
		if err != nil {
			return err
		}

		repo, err := openRepository(ctx, cfg, logg)
		if err != nil {
			return err
		}
		target, err := wc.Open(afero.NewOsFs(), cfg.Merge.WorkingCopy, wc.WithAdminDir(cfg.Merge.AdminDir))
		if err != nil {
			return fmt.Errorf("failed to open working copy %s: %w", cfg.Merge.WorkingCopy, err)
		}

		ttl := time.Duration(cfg.Merge.CacheTTLSeconds) * time.Second
		_, err = runMerge(ctx, cmd.OutOrStdout(), repo, target, logg, req, merge.WithCacheTTL(ttl))
		return err
	},
}

// mergeRequest builds the merge request from the flags and arguments.
func mergeRequest(cmd *cobra.Command, mc config.MergeConfig, args []string) (merge.Request, error) {
	revFlag, _ := cmd.Flags().GetString("revision")
	changeFlag, _ := cmd.Flags().GetString("change")
	extensions, _ := cmd.Flags().GetStringArray("extensions")

	req := merge.Request{
		Source: strings.TrimPrefix(args[0], "^"),
		Text: textmerge.Options{
			IgnoreSpaceChange: mc.IgnoreSpaceChange,
			IgnoreAllSpace:    mc.IgnoreAllSpace,
			IgnoreEOLStyle:    mc.IgnoreEOLStyle,
			NativeEOL:         mc.NativeEOLBytes(),
		},
	}
	if len(args) > 1 {
		req.Target = args[1]
	}
	req.DryRun, _ = cmd.Flags().GetBool("dry-run")
	req.RecordOnly, _ = cmd.Flags().GetBool("record-only")
	req.Force, _ = cmd.Flags().GetBool("force")
	req.IgnoreAncestry, _ = cmd.Flags().GetBool("ignore-ancestry")

	switch {
	case revFlag != "" && changeFlag != "":
		return req, fmt.Errorf("-r and -c are mutually exclusive")
	case revFlag != "":
		rr, err := merge.ParseRevisionRange(revFlag)
		if err != nil {
			return req, err
		}
		req.Range = rr
	case changeFlag != "":
		n, err := strconv.ParseInt(strings.Replace(changeFlag, "r", "", 1), 10, 64)
		if err != nil {
			return req, fmt.Errorf("invalid change %q", changeFlag)
		}
		rr, err := merge.Change(n)
		if err != nil {
			return req, err
		}
		req.Range = rr
	default:
		return req, fmt.Errorf("a revision range is required (-r N:M or -c N)")
	}

	for _, ext := range extensions {
		for _, opt := range strings.Fields(ext) {
			switch opt {
			case "-b", "--ignore-space-change":
				req.Text.IgnoreSpaceChange = true
			case "-w", "--ignore-all-space":
				req.Text.IgnoreAllSpace = true
			case "--ignore-eol-style":
				req.Text.IgnoreEOLStyle = true
			default:
				return req, fmt.Errorf("unknown diff extension %q", opt)
			}
		}
	}
	return req, nil
}

// runMerge runs req, printing each notification and skip to out as it happens.
func runMerge(ctx context.Context, out io.Writer, repo repos.Repository, target wc.WorkingCopy, logg *zap.Logger, req merge.Request, opts ...merge.Option) (*merge.Report, error) {
	observer := merge.WithObserver(
		func(n notify.Notification) {
			fmt.Fprintf(out, "%s %s\n", n.Status, displayPath(n.Path))
		},
		func(s notify.Skip) {
			fmt.Fprintf(out, "Skipped '%s'\n", displayPath(s.Path))
		},
	)

	session := merge.New(repo, target, logg, append(opts, observer)...)
	report, err := session.Merge(ctx, req)
	if err != nil {
		return nil, err
	}

	sum := report.Summary
	logg.Info("Merge summary",
		zap.String("source", req.Source),
		zap.String("range", req.Range.String()),
		zap.Int("added", sum.Added),
		zap.Int("deleted", sum.Deleted),
		zap.Int("updated", sum.Updated),
		zap.Int("merged", sum.Merged),
		zap.Int("conflicted", sum.Conflicted),
		zap.Int("replaced", sum.Replaced),
		zap.Int("skipped", sum.Skipped),
		zap.String("mergeinfo", report.Mergeinfo),
	)
	if sum.Conflicted > 0 {
		fmt.Fprintf(out, "Summary of conflicts:\n  Conflicts: %d\n", sum.Conflicted)
	}
	return report, nil
}

func displayPath(p string) string {
	if p == "" {
		return "."
	}
	return p
}

func addMergeFlags(c *cobra.Command) {
	c.Flags().StringP("revision", "r", "", "revision range N:M to merge")
	c.Flags().StringP("change", "c", "", "single change N to merge, or -N to undo")
	c.Flags().Bool("dry-run", false, "report what would change without changing anything")
	c.Flags().Bool("record-only", false, "record the merge in mergeinfo without changing content")
	c.Flags().Bool("force", false, "delete locally modified items")
	c.Flags().Bool("ignore-ancestry", false, "merge unrelated sources")
	c.Flags().StringArrayP("extensions", "x", nil, "text merge options: -b, -w, --ignore-eol-style")
}

func init() {
	RootCmd.AddCommand(mergeCmd)
	addMergeFlags(mergeCmd)
}
