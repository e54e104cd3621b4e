package cmd

import (
	"fmt"
	"os"

	"merge-engine/feature/repository"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// loadCmd represents the load command
var loadCmd = &cobra.Command{
	Use:   "load DUMPFILE",
	Short: "Commit the revisions of a YAML dump into the repository",
	Long:  `Initializes the repository tables when needed and commits each revision of DUMPFILE in order.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, logg, err := loadRuntime(cmd)
		if err != nil {
			return err
		}
		defer logg.Sync()

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open dump: %w", err)
		}
		defer f.Close()

		dump, err := repository.ReadDump(f)
		if err != nil {
			return err
		}

		repo, err := openRepository(ctx, cfg, logg)
		if err != nil {
			return err
		}
		if err := repo.Migrate(ctx); err != nil {
			return err
		}

		revs, err := repository.Load(ctx, repo, dump)
		if err != nil {
			return err
		}
		for _, rev := range revs {
			fmt.Fprintf(cmd.OutOrStdout(), "Committed revision %d.\n", rev)
		}
		logg.Info("Dump loaded", zap.String("file", args[0]), zap.Int("revisions", len(revs)))
		return nil
	},
}

func init() {
	RootCmd.AddCommand(loadCmd)
}
