package cmd

import (
	"encoding/json"
	"fmt"

	"merge-engine/feature/integrity"

	"github.com/spf13/cobra"
)

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the repository schema, blobs and mergeinfo index",
	Long:  `Runs every integrity check against the configured repository and prints the report as JSON.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, logg, err := loadRuntime(cmd)
		if err != nil {
			return err
		}
		defer logg.Sync()

		repo, err := openRepository(ctx, cfg, logg)
		if err != nil {
			return err
		}

		report := integrity.NewService(repo, logg).RunAll(ctx)
		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))

		if !report.Matched {
			return fmt.Errorf("integrity check failed")
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(verifyCmd)
}
