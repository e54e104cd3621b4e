package cmd

import (
	"context"
	"fmt"
	"strings"

	"merge-engine/core/merge"
	"merge-engine/core/wc"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// mergeinfoCmd represents the mergeinfo command
var mergeinfoCmd = &cobra.Command{
	Use:   "mergeinfo [--show-inherited] [PATH]",
	Short: "Print the mergeinfo of a working-copy node",
	Long: `Prints the explicit svn:mergeinfo of PATH, a path inside the configured
working copy. With --show-inherited, prints the mergeinfo that applies to PATH,
its own or the nearest ancestor's.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logg, err := loadRuntime(cmd)
		if err != nil {
			return err
		}
		defer logg.Sync()

		target, err := wc.Open(afero.NewOsFs(), cfg.Merge.WorkingCopy, wc.WithAdminDir(cfg.Merge.AdminDir))
		if err != nil {
			return fmt.Errorf("failed to open working copy %s: %w", cfg.Merge.WorkingCopy, err)
		}

		p := ""
		if len(args) > 0 {
			p = args[0]
		}
		inherited, _ := cmd.Flags().GetBool("show-inherited")

		value, err := showMergeinfo(cmd.Context(), target, p, inherited)
		if err != nil {
			return err
		}
		if value != "" {
			fmt.Fprintln(cmd.OutOrStdout(), value)
		}
		return nil
	},
}

// showMergeinfo returns the encoded mergeinfo of p in w.
func showMergeinfo(ctx context.Context, w wc.WorkingCopy, p string, inherited bool) (string, error) {
	p = strings.Trim(p, "/")
	if p == "." {
		p = ""
	}
	if _, err := w.ReadLocal(ctx, p); err != nil {
		return "", err
	}

	store, err := merge.LoadStore(ctx, w)
	if err != nil {
		return "", err
	}
	if inherited {
		return store.Effective(p).String(), nil
	}
	mi, _ := store.Explicit(p)
	return mi.String(), nil
}

func init() {
	RootCmd.AddCommand(mergeinfoCmd)
	mergeinfoCmd.Flags().Bool("show-inherited", false, "show the mergeinfo inherited from ancestors")
}
