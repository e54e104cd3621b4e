package cmd

import (
	"fmt"
	"os"

	"merge-engine/core/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "merge-engine",
	Short: "Merge tracking engine",
	Long: `Merge Engine merges revision ranges of a repository path into a working copy
and records what was merged as svn:mergeinfo.
It keeps its repository in SQLite or MySQL and file contents in S3-compatible storage.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		// Console format with debug level gives ISO8601 timestamps on the terminal
		cfg := &logger.Config{
			Level:  "debug",
			Format: "console",
		}

		l, logErr := logger.New(cfg)
		if logErr == nil {
			l.Error("command failed", zap.Error(err))
			_ = l.Sync()
		} else {
			fmt.Println(err)
		}
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().String("config", ".", "directory holding the .env and config files")
}
