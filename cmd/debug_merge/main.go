package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"merge-engine/core/config"
	"merge-engine/core/textmerge"

	"github.com/spf13/cobra"
)

func main() {
	if err := newCommand().Execute(); err != nil {
		log.Fatal(err)
	}
}

// newCommand builds the debug_merge command, which runs the text merger over
// three files:
//
//	debug_merge [-b] [-w] [--eol] [--style CRLF] BASE THEIRS MINE
func newCommand() *cobra.Command {
	var (
		opts   textmerge.Options
		left   int64
		right  int64
		asJSON bool
		dir    string
	)

	c := &cobra.Command{
		Use:          "debug_merge [flags] BASE THEIRS MINE",
		Short:        "Run the text merger over three files",
		Args:         cobra.ExactArgs(3),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// 1. Load config for the native line ending
			cfg, err := config.LoadConfig(dir)
			if err != nil {
				return err
			}

			// 2. Read the three versions
			var inputs [3][]byte
			for i, name := range args {
				if inputs[i], err = os.ReadFile(name); err != nil {
					return err
				}
			}

			// 3. Merge
			opts.NativeEOL = cfg.Merge.NativeEOLBytes()
			res, err := textmerge.Merge(textmerge.Input{
				Base:     inputs[0],
				Theirs:   inputs[1],
				Mine:     inputs[2],
				LeftRev:  left,
				RightRev: right,
				Options:  opts,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				data, err := json.MarshalIndent(map[string]any{
					"status":   res.Status.String(),
					"binary":   res.Binary,
					"content":  string(res.Content),
					"sidecars": len(res.Sidecars),
				}, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
				return nil
			}

			fmt.Fprintf(out, "=== Status: %c (binary=%v) ===\n", res.Status.Code(), res.Binary)
			out.Write(res.Content)
			for _, sc := range res.Sidecars {
				fmt.Fprintf(out, "=== Sidecar %s (%d bytes) ===\n", sc.Suffix, len(sc.Content))
			}
			return nil
		},
	}

	c.Flags().BoolVarP(&opts.IgnoreSpaceChange, "ignore-space-change", "b", false, "ignore changes in the amount of white space")
	c.Flags().BoolVarP(&opts.IgnoreAllSpace, "ignore-all-space", "w", false, "ignore all white space")
	c.Flags().BoolVar(&opts.IgnoreEOLStyle, "eol", false, "ignore line ending differences")
	c.Flags().StringVar(&opts.EOLStyle, "style", "", "svn:eol-style of the file")
	c.Flags().Int64Var(&left, "left", 1, "left revision used in marker labels")
	c.Flags().Int64Var(&right, "right", 2, "right revision used in marker labels")
	c.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	c.Flags().StringVar(&dir, "config", ".", "directory holding the config file")
	return c
}
